package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"tasklist/internal/result"
	"tasklist/internal/store"
	"tasklist/internal/task"
)

type testServer struct {
	srv *Server
	mgr *task.Manager
	st  *store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "tasks.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	mgr := task.NewManager(st)
	return &testServer{
		srv: New(mgr, result.NewExporter(mgr, nil), log.New(io.Discard)),
		mgr: mgr,
		st:  st,
	}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(t *testing.T, name string, cost any) store.Task {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/tarefas", map[string]any{"nome": name, "custo": cost, "dataLimite": "2026-01-15"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d body %s", name, w.Code, w.Body)
	}
	var got store.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body, err)
	}
	msg, _ := body["message"].(string)
	return msg
}

func (ts *testServer) list(t *testing.T) []store.Task {
	t.Helper()
	w := ts.do(http.MethodGet, "/api/tarefas", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	var got []store.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("health = %d %q", w.Code, w.Body)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestCreateListAndMove(t *testing.T) {
	ts := newTestServer(t)
	rent := ts.create(t, "Pay rent", 200.0)
	milk := ts.create(t, "Buy milk", "5.5")
	if rent.Rank != 1 || milk.Rank != 2 || milk.Cost != 5.5 {
		t.Fatalf("unexpected ranks %+v %+v", rent, milk)
	}

	w := ts.do(http.MethodPost, "/api/tarefas/"+itoa(milk.ID)+"/mover-cima", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("move: status %d body %s", w.Code, w.Body)
	}
	if msg := message(t, w); msg != msgReordered {
		t.Errorf("message = %q", msg)
	}

	got := ts.list(t)
	if len(got) != 2 || got[0].Name != "Buy milk" || got[1].Name != "Pay rent" {
		t.Errorf("list = %+v", got)
	}
}

func TestWireFieldNames(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "a", 1)
	w := ts.do(http.MethodGet, "/api/tarefas", nil)
	var raw []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"id", "nome", "custo", "dataLimite", "ordem"} {
		if _, ok := raw[0][k]; !ok {
			t.Errorf("missing field %q in %v", k, raw[0])
		}
	}
}

func TestCreateErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "Pay rent", 1)

	cases := []struct {
		name string
		body any
		want string
	}{
		{"duplicate", map[string]any{"nome": " Pay rent ", "custo": 1, "dataLimite": "2026-01-01"}, msgDupName},
		{"missing fields", map[string]any{"nome": "x"}, msgRequired},
		{"negative cost", map[string]any{"nome": "x", "custo": -1, "dataLimite": "2026-01-01"}, "Custo inválido"},
		{"text cost", map[string]any{"nome": "x", "custo": "abc", "dataLimite": "2026-01-01"}, "Custo inválido"},
		{"bad date", map[string]any{"nome": "x", "custo": 1, "dataLimite": "amanhã"}, "Data limite inválida"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/tarefas", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if msg := message(t, w); msg != tc.want {
				t.Errorf("message = %q, want %q", msg, tc.want)
			}
		})
	}
	if n := len(ts.list(t)); n != 1 {
		t.Errorf("store changed: %d tasks", n)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tarefas", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUpdate(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, "a", 1)
	ts.create(t, "b", 1)

	w := ts.do(http.MethodPut, "/api/tarefas/"+itoa(a.ID), map[string]any{"nome": "a2", "custo": 1500, "dataLimite": "2026-12-31"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", w.Code, w.Body)
	}
	var got store.Task
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Name != "a2" || got.Rank != a.Rank {
		t.Errorf("update = %+v", got)
	}

	w = ts.do(http.MethodPut, "/api/tarefas/"+itoa(a.ID), map[string]any{"nome": "b", "custo": 1, "dataLimite": "2026-12-31"})
	if w.Code != http.StatusBadRequest || message(t, w) != msgDupName {
		t.Errorf("rename conflict = %d %s", w.Code, w.Body)
	}
	w = ts.do(http.MethodPut, "/api/tarefas/999", map[string]any{"nome": "z", "custo": 1, "dataLimite": "2026-12-31"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d", w.Code)
	}
	w = ts.do(http.MethodPut, "/api/tarefas/abc", map[string]any{"nome": "z", "custo": 1, "dataLimite": "2026-12-31"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", w.Code)
	}
}

func TestDelete(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, "a", 1)
	ts.create(t, "b", 1)

	if w := ts.do(http.MethodDelete, "/api/tarefas/"+itoa(a.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := ts.do(http.MethodDelete, "/api/tarefas/"+itoa(a.ID), nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", w.Code)
	}
	got := ts.list(t)
	if len(got) != 1 || got[0].Rank != 2 {
		t.Errorf("remaining = %+v", got)
	}
}

func TestMoveBoundaries(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(t, "a", 1)
	b := ts.create(t, "b", 1)

	w := ts.do(http.MethodPost, "/api/tarefas/"+itoa(a.ID)+"/mover-cima", nil)
	if w.Code != http.StatusBadRequest || message(t, w) != msgAtTop {
		t.Errorf("top = %d %s", w.Code, w.Body)
	}
	w = ts.do(http.MethodPost, "/api/tarefas/"+itoa(b.ID)+"/mover-baixo", nil)
	if w.Code != http.StatusBadRequest || message(t, w) != msgAtBottom {
		t.Errorf("bottom = %d %s", w.Code, w.Body)
	}
	w = ts.do(http.MethodPost, "/api/tarefas/404/mover-baixo", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d", w.Code)
	}
	got := ts.list(t)
	if got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("order changed: %+v", got)
	}
}

func TestMoveParkedTask(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "a", 1)
	b := ts.create(t, "b", 1)
	if err := ts.st.SetRank(context.Background(), b.ID, store.SentinelRank); err != nil {
		t.Fatalf("park: %v", err)
	}

	w := ts.do(http.MethodPost, "/api/tarefas/"+itoa(b.ID)+"/mover-cima", nil)
	if w.Code != http.StatusConflict || message(t, w) != msgParked {
		t.Errorf("parked move = %d %s", w.Code, w.Body)
	}
	// listing repairs it, after which the move goes through
	if got := ts.list(t); len(got) != 2 || got[1].ID != b.ID {
		t.Fatalf("list = %+v", got)
	}
	if w := ts.do(http.MethodPost, "/api/tarefas/"+itoa(b.ID)+"/mover-cima", nil); w.Code != http.StatusOK {
		t.Errorf("move after repair = %d %s", w.Code, w.Body)
	}
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "a", 1234.5)

	w := ts.do(http.MethodGet, "/api/tarefas/export?format=csv", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("csv = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "a,1234.50,2026-01-15,1") {
		t.Errorf("csv body = %s", w.Body)
	}
	if w := ts.do(http.MethodGet, "/api/tarefas/export?format=xml", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown format = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodOptions, "/api/tarefas", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, "Aluguel", 1234.56)
	ts.create(t, "Leite", 5.5)

	w := ts.do(http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("index = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"R$ 1.234,56", "15/01/2026", `class="task-row task-row-highlight"`, "R$ 1.240,06"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestFormFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.form("/tarefas", url.Values{"nome": {"Aluguel"}, "custo": {"1.200,00"}, "dataLimite": {"15/01/2026"}})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("create = %d %q", w.Code, w.Header().Get("Location"))
	}
	ts.form("/tarefas", url.Values{"nome": {"Leite"}, "custo": {"5"}, "dataLimite": {"2026-01-10"}})

	got := ts.list(t)
	if len(got) != 2 || got[0].Cost != 1200 || got[0].DueDate != "2026-01-15" {
		t.Fatalf("tasks = %+v", got)
	}

	w = ts.form("/tarefas/"+itoa(got[1].ID)+"/mover-cima", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("move = %d", w.Code)
	}
	w = ts.form("/tarefas/"+itoa(got[1].ID)+"/mover-cima", nil)
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "erro=") {
		t.Errorf("expected error redirect, got %q", loc)
	}

	w = ts.form("/tarefas/"+itoa(got[0].ID), url.Values{"nome": {"Leite"}, "custo": {"1"}, "dataLimite": {"01/02/2026"}})
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/tarefas/"+itoa(got[0].ID)+"/editar?erro=") {
		t.Errorf("duplicate rename redirect = %q", loc)
	}

	if w := ts.do(http.MethodGet, "/tarefas/"+itoa(got[0].ID)+"/editar", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "15/01/2026") {
		t.Errorf("edit page = %d", w.Code)
	}

	ts.form("/tarefas/"+itoa(got[0].ID)+"/excluir", nil)
	if n := len(ts.list(t)); n != 1 {
		t.Errorf("after delete %d tasks", n)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestFormCostThousandsSeparator(t *testing.T) {
	ts := newTestServer(t)
	w := ts.form("/tarefas", url.Values{"nome": {"Reforma"}, "custo": {"1.234"}, "dataLimite": {"01/03/2026"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("create = %d", w.Code)
	}
	got := ts.list(t)
	if len(got) != 1 || got[0].Cost != 1234 {
		t.Errorf("tasks = %+v", got)
	}
}
