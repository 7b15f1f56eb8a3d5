// Package importer appends tasks read from a JSON or CSV document, a local
// file or an HTTP URL, at the end of the order.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tasklist/internal/format"
	"tasklist/internal/store"
	"tasklist/internal/task"
)

// Creator is the write side the importer needs.
type Creator interface {
	Create(ctx context.Context, in task.Input) (store.Task, error)
}

// Report summarizes one import run.
type Report struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

type Importer struct {
	Client   *http.Client
	MaxRetry int
}

func New() *Importer {
	return &Importer{Client: &http.Client{Timeout: 15 * time.Second}, MaxRetry: 3}
}

// Import reads src (a path or http(s) URL) and creates its tasks in order.
// Conflicting names are skipped; invalid rows are reported and skipped.
func (im *Importer) Import(ctx context.Context, c Creator, src string) (Report, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		body, err = im.doGETWithRetry(ctx, src)
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return Report{}, err
	}

	var inputs []task.Input
	if isCSV(src, body) {
		inputs, err = parseCSV(body)
	} else {
		inputs, err = parseJSON(body)
	}
	if err != nil {
		return Report{}, err
	}
	return create(ctx, c, inputs), nil
}

func create(ctx context.Context, c Creator, inputs []task.Input) Report {
	var rep Report
	for i, in := range inputs {
		_, err := c.Create(ctx, in)
		switch {
		case err == nil:
			rep.Created++
		case errors.Is(err, store.ErrConflict):
			rep.Skipped++
		default:
			rep.Skipped++
			rep.Errors = append(rep.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}
	return rep
}

func isCSV(src string, body []byte) bool {
	if strings.EqualFold(filepath.Ext(src), ".csv") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] != '[' && trimmed[0] != '{'
}

// record accepts the API field names; custo may be a number or a string.
type record struct {
	Nome       string          `json:"nome"`
	Custo      json.RawMessage `json:"custo"`
	DataLimite string          `json:"dataLimite"`
}

func parseJSON(body []byte) ([]task.Input, error) {
	var recs []record
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	out := make([]task.Input, 0, len(recs))
	for i, r := range recs {
		cost, err := parseCost(strings.Trim(string(r.Custo), `"`))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, task.Input{Name: r.Nome, Cost: cost, DueDate: format.NormalizeDate(r.DataLimite)})
	}
	return out, nil
}

// parseCSV reads files in the export layout; id and ordem are ignored.
func parseCSV(body []byte) ([]task.Input, error) {
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, h := range []string{"nome", "custo", "dataLimite"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("csv: missing column %q", h)
		}
	}
	out := make([]task.Input, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cost, err := parseCost(row[col["custo"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, task.Input{
			Name:    row[col["nome"]],
			Cost:    cost,
			DueDate: format.NormalizeDate(row[col["dataLimite"]]),
		})
	}
	return out, nil
}

func parseCost(s string) (float64, error) {
	v, err := format.ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("invalid custo %q", s)
	}
	return v, nil
}

func (im *Importer) doGETWithRetry(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error
	for i := 0; i < im.MaxRetry; i++ {
		b, retry, err := im.get(ctx, urlStr)
		if err == nil {
			return b, nil
		}
		lastErr = err
		if !retry {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(200*(i+1)) * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (im *Importer) get(ctx context.Context, urlStr string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := im.Client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	return b, err != nil, err
}
