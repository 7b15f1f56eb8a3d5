package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"tasklist/internal/format"
	"tasklist/internal/task"
)

// Web handlers

func (s *Server) handleIndex(c *gin.Context) {
	all, err := s.mgr.List(c.Request.Context())
	if err != nil {
		_, msg := s.httpError(c, err)
		c.HTML(http.StatusInternalServerError, "index.html", gin.H{"error": msg})
		return
	}
	var total float64
	for _, t := range all {
		total += t.Cost
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"tasks": all,
		"total": total,
		"error": c.Query("erro"),
	})
}

func (s *Server) handleFormEdit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.redirectErr(c, "/", msgBadID)
		return
	}
	t, err := s.mgr.Get(c.Request.Context(), id)
	if err != nil {
		_, msg := s.httpError(c, err)
		s.redirectErr(c, "/", msg)
		return
	}
	c.HTML(http.StatusOK, "edit.html", gin.H{
		"task":  t,
		"due":   format.DateISOToBR(t.DueDate),
		"error": c.Query("erro"),
	})
}

func formInput(c *gin.Context) (task.Input, string) {
	cost, err := format.ParseNumberBR(c.PostForm("custo"))
	if err != nil {
		return task.Input{}, fieldMessages["custo"]
	}
	return task.Input{
		Name:    c.PostForm("nome"),
		Cost:    cost,
		DueDate: format.NormalizeDate(c.PostForm("dataLimite")),
	}, ""
}

func (s *Server) handleFormCreate(c *gin.Context) {
	in, msg := formInput(c)
	if msg != "" {
		s.redirectErr(c, "/", msg)
		return
	}
	if _, err := s.mgr.Create(c.Request.Context(), in); err != nil {
		_, msg := s.httpError(c, err)
		s.redirectErr(c, "/", msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleFormUpdate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.redirectErr(c, "/", msgBadID)
		return
	}
	back := c.Request.URL.Path + "/editar"
	in, msg := formInput(c)
	if msg != "" {
		s.redirectErr(c, back, msg)
		return
	}
	if _, err := s.mgr.Update(c.Request.Context(), id, in); err != nil {
		_, msg := s.httpError(c, err)
		s.redirectErr(c, back, msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleFormDelete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.redirectErr(c, "/", msgBadID)
		return
	}
	if err := s.mgr.Delete(c.Request.Context(), id); err != nil {
		_, msg := s.httpError(c, err)
		s.redirectErr(c, "/", msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleFormMove(d task.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			s.redirectErr(c, "/", msgBadID)
			return
		}
		if _, err := s.move(c, id, d); err != nil {
			_, msg := s.httpError(c, err)
			s.redirectErr(c, "/", msg)
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
	}
}

func (s *Server) redirectErr(c *gin.Context, path, msg string) {
	c.Redirect(http.StatusSeeOther, path+"?erro="+url.QueryEscape(msg))
}
