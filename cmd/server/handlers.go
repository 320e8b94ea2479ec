package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/Skufu/pillscope/internal/conversation"
	"github.com/Skufu/pillscope/internal/medicine"
)

type handlers struct {
	deps routerDeps
}

type messageView struct {
	conversation.Message
	Sections []medicine.Section `json:"sections,omitempty"`
}

type sessionView struct {
	ID       string             `json:"id"`
	Phase    conversation.Phase `json:"phase"`
	Input    string             `json:"input"`
	Thinking bool               `json:"thinking"`
	Messages []messageView      `json:"messages"`
}

type resultView struct {
	medicine.Result
	Sections []medicine.Section `json:"sections,omitempty"`
}

type textRequest struct {
	Text string `json:"text"`
}

type analyzeRequest struct {
	Query string `json:"query"`
}

func viewOf(snap conversation.Snapshot) sessionView {
	return sessionView{
		ID:       snap.ID,
		Phase:    snap.Phase,
		Input:    snap.Input,
		Thinking: snap.Thinking,
		Messages: lo.Map(snap.Messages, func(m conversation.Message, _ int) messageView {
			return messageView{Message: m, Sections: m.Sections()}
		}),
	}
}

func (h *handlers) session(c *gin.Context) (*conversation.Session, bool) {
	s, err := h.deps.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return nil, false
	}
	return s, true
}

// await blocks until the in-flight analysis settles, the client leaves or the
// wait budget runs out. The snapshot is returned either way.
func (h *handlers) await(c *gin.Context, s *conversation.Session) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.waitTimeout)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		h.deps.logger.Debug("wait ended early", "session", s.ID(), "err", err)
	}
}

func (h *handlers) createSession(c *gin.Context) {
	s, err := h.deps.sessions.Create()
	if err != nil {
		if errors.Is(err, conversation.ErrTooManySessions) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too_many_sessions"})
			return
		}
		h.deps.logger.Error("create session failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusCreated, viewOf(s.Snapshot()))
}

func (h *handlers) getSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if c.Query("wait") == "true" {
		h.await(c, s)
	}
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

func (h *handlers) setInput(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	s.SetInput(req.Text)
	c.JSON(http.StatusOK, viewOf(s.Snapshot()))
}

func (h *handlers) postMessage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if _, err := s.Submit(c.Request.Context(), req.Text); err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_input"})
		case errors.Is(err, conversation.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "busy"})
		case errors.Is(err, conversation.ErrSessionClosed):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		default:
			h.deps.logger.Error("submit failed", "session", s.ID(), "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}

	if c.Query("wait") == "true" {
		h.await(c, s)
		c.JSON(http.StatusOK, viewOf(s.Snapshot()))
		return
	}
	c.JSON(http.StatusAccepted, viewOf(s.Snapshot()))
}

func (h *handlers) endSession(c *gin.Context) {
	if err := h.deps.sessions.End(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_input"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.waitTimeout)
	defer cancel()

	res, err := h.deps.analyzer.Analyze(ctx, req.Query)
	if err != nil {
		h.deps.logger.Error("analysis failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis_failed", "message": conversation.FailureText})
		return
	}

	view := resultView{Result: res}
	if res.Kind == medicine.ClassMedicine {
		view.Sections = res.Medicine.Sections()
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) stream(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_input"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.waitTimeout)
	defer cancel()

	err := h.deps.analyzer.AnalyzeStream(ctx, query, func(chunk string) {
		c.SSEvent("chunk", chunk)
		c.Writer.Flush()
	})
	if err != nil {
		h.deps.logger.Error("stream failed", "err", err)
		c.SSEvent("error", conversation.FailureText)
	} else {
		c.SSEvent("done", "")
	}
	c.Writer.Flush()
}
