package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tasklist/internal/format"
	"tasklist/internal/result"
	"tasklist/internal/store"
	"tasklist/internal/task"
)

const (
	msgRequired  = "Nome, custo e data limite são obrigatórios"
	msgBadJSON   = "JSON inválido"
	msgBadID     = "ID inválido"
	msgNotFound  = "Tarefa não encontrada"
	msgDupName   = "Já existe uma tarefa com esse nome"
	msgRankBusy  = "Conflito de ordem, tente novamente"
	msgAtTop     = "Tarefa já está no topo"
	msgAtBottom  = "Tarefa já está na última posição"
	msgReordered = "Reordenado com sucesso"
	msgParked    = "Tarefa com reordenação interrompida, tente novamente"
	msgInternal  = "Erro interno"
)

var fieldMessages = map[string]string{
	"nome":       "Nome é obrigatório",
	"custo":      "Custo inválido",
	"dataLimite": "Data limite inválida",
}

// httpError maps domain errors onto a status code and a user message.
func (s *Server) httpError(c *gin.Context, err error) (int, string) {
	var (
		ce *store.ConflictError
		ve *task.ValidationError
		be *task.BoundaryError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, task.ErrParked):
		return http.StatusConflict, msgParked
	case errors.As(err, &ce):
		if ce.Field == store.FieldName {
			return http.StatusBadRequest, msgDupName
		}
		return http.StatusBadRequest, msgRankBusy
	case errors.As(err, &ve):
		if msg, ok := fieldMessages[ve.Field]; ok {
			return http.StatusBadRequest, msg
		}
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &be):
		if be.Direction == task.Up {
			return http.StatusBadRequest, msgAtTop
		}
		return http.StatusBadRequest, msgAtBottom
	}
	s.log.Error("request failed", "path", c.Request.URL.Path, "request_id", c.GetString("request_id"), "err", err)
	return http.StatusInternalServerError, msgInternal
}

func (s *Server) writeErr(c *gin.Context, err error) {
	code, msg := s.httpError(c, err)
	c.JSON(code, gin.H{"message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// taskRequest is the create/update body. custo may be a number or a
// numeric string.
type taskRequest struct {
	Nome       *string         `json:"nome"`
	Custo      json.RawMessage `json:"custo"`
	DataLimite *string         `json:"dataLimite"`
}

func (r taskRequest) input() (task.Input, string) {
	raw := strings.TrimSpace(string(r.Custo))
	if r.Nome == nil || strings.TrimSpace(*r.Nome) == "" || raw == "" || raw == "null" || r.DataLimite == nil {
		return task.Input{}, msgRequired
	}
	cost, err := format.ParseNumber(strings.Trim(raw, `"`))
	if err != nil {
		return task.Input{}, fieldMessages["custo"]
	}
	return task.Input{Name: *r.Nome, Cost: cost, DueDate: *r.DataLimite}, ""
}

func (s *Server) bindInput(c *gin.Context) (task.Input, bool) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgBadJSON)
		return task.Input{}, false
	}
	in, msg := req.input()
	if msg != "" {
		badRequest(c, msg)
		return task.Input{}, false
	}
	return in, true
}

// API handlers

func (s *Server) handleList(c *gin.Context) {
	all, err := s.mgr.List(c.Request.Context())
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (s *Server) handleCreate(c *gin.Context) {
	in, ok := s.bindInput(c)
	if !ok {
		return
	}
	t, err := s.mgr.Create(c.Request.Context(), in)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		badRequest(c, msgBadID)
		return
	}
	in, ok := s.bindInput(c)
	if !ok {
		return
	}
	t, err := s.mgr.Update(c.Request.Context(), id, in)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDelete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		badRequest(c, msgBadID)
		return
	}
	if err := s.mgr.Delete(c.Request.Context(), id); err != nil {
		s.writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMove(d task.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			badRequest(c, msgBadID)
			return
		}
		moved, err := s.move(c, id, d)
		if err != nil {
			s.writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msgReordered, "tarefa": moved})
	}
}

func (s *Server) move(c *gin.Context, id int64, d task.Direction) (store.Task, error) {
	if d == task.Up {
		return s.mgr.MoveUp(c.Request.Context(), id)
	}
	return s.mgr.MoveDown(c.Request.Context(), id)
}

func (s *Server) handleExport(c *gin.Context) {
	f := strings.ToLower(c.DefaultQuery("format", "json"))
	switch f {
	case "json", "csv", "pdf":
	default:
		badRequest(c, "Formato desconhecido")
		return
	}
	b, err := s.exporter.Export(c.Request.Context(), f)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	if f != "json" {
		c.Header("Content-Disposition", `attachment; filename="tarefas.`+f+`"`)
	}
	c.Data(http.StatusOK, result.ContentType(f), b)
}
