package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/shared/validate"
	"github.com/GriffinCanCode/termhost/internal/sharing"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/registry"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry  *registry.Registry
	sender    *sharing.Sender
	deliverer *delivery.Deliverer
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	logger    *zap.Logger
}

// NewHandlers creates a new handler set. metrics, tracer and logger may be nil.
func NewHandlers(
	reg *registry.Registry,
	sender *sharing.Sender,
	deliverer *delivery.Deliverer,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:  reg,
		sender:    sender,
		deliverer: deliverer,
		metrics:   metrics,
		tracer:    tracer,
		logger:    logger,
	}
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termhost",
		"version": Version,
	})
}

// Health handles the detailed health check
func (h *Handlers) Health(c *gin.Context) {
	running := 0
	for _, s := range h.registry.All() {
		if s.Running() {
			running++
		}
	}

	body := gin.H{
		"status":   "healthy",
		"sessions": h.registry.Len(),
		"running":  running,
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// MetricsJSON returns the JSON metric snapshot
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, monitoring.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListSessions lists every session
func (h *Handlers) ListSessions(c *gin.Context) {
	all := h.registry.All()
	infos := make([]session.Info, 0, len(all))
	for _, s := range all {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

func projectParam(c *gin.Context) (id.ProjectID, error) {
	return id.ParseProjectID(c.Param("project"))
}

// existing resolves the session of the :project param without creating it
func (h *Handlers) existing(c *gin.Context) (*session.Session, bool) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	s, ok := h.registry.Lookup(project)
	if !ok {
		h.fail(c, errNoSession)
		return nil, false
	}
	return s, true
}

// GetSession returns the session of a project
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// DeleteSession stops and discards the session of a project
func (h *Handlers) DeleteSession(c *gin.Context) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !h.registry.Remove(project) {
		h.fail(c, errNoSession)
		return
	}
	h.sender.Tracker().Forget(project)
	c.Status(http.StatusNoContent)
}

// StartRequest optionally sizes and places a session before it starts
type StartRequest struct {
	Cols       uint16 `json:"cols"`
	Rows       uint16 `json:"rows"`
	WorkingDir string `json:"working_dir"`
}

// StartSession starts the shell of a project, creating the session if needed
func (h *Handlers) StartSession(c *gin.Context) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	s := h.registry.SessionFor(project)
	if req.Cols > 0 && req.Rows > 0 {
		if err := s.Resize(req.Cols, req.Rows); err != nil {
			h.fail(c, err)
			return
		}
	}
	s.SetWorkingDir(req.WorkingDir)

	err = h.traced(c, "session.start", project, func() error {
		return s.Start(c.Request.Context())
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// StopSession stops the shell of a project
func (h *Handlers) StopSession(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}
	s.Stop()
	c.JSON(http.StatusOK, s.Info())
}

// RestartSession clears the terminal: the shell restarts and every shared
// document of the project loses its context.
func (h *Handlers) RestartSession(c *gin.Context) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var lost []id.DocumentID
	err = h.traced(c, "session.restart", project, func() error {
		var clearErr error
		lost, clearErr = h.sender.Clear(c.Request.Context(), project)
		return clearErr
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if lost == nil {
		lost = []id.DocumentID{}
	}
	c.JSON(http.StatusOK, gin.H{
		"session":      h.registry.SessionFor(project).Info(),
		"context_lost": lost,
	})
}

// SubmitRequest carries text for the shell. Raw text goes to the outbox
// unchanged; otherwise it is encoded and followed by a delayed submit.
type SubmitRequest struct {
	Text string `json:"text" binding:"required"`
	Raw  bool   `json:"raw"`
}

// Submit hands text to the project's terminal. The session is not started.
func (h *Handlers) Submit(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validate.Text(req.Text); err != nil {
		h.fail(c, err)
		return
	}

	if req.Raw {
		s.Submit(req.Text)
		c.JSON(http.StatusAccepted, gin.H{"raw": true})
		return
	}

	res, err := h.deliverer.Deliver(s, req.Text, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"raw":             false,
		"multiline":       res.Multiline,
		"characters":      res.Characters,
		"submit_delay_ms": res.SubmitDelay.Milliseconds(),
	})
}

// ResizeRequest is a terminal size
type ResizeRequest struct {
	Cols uint16 `json:"cols" binding:"required"`
	Rows uint16 `json:"rows" binding:"required"`
}

// Resize changes the terminal size of a project
func (h *Handlers) Resize(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}

	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Resize(req.Cols, req.Rows); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// ReadOutput drains buffered terminal output as raw bytes
func (h *Handlers) ReadOutput(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", s.ReadOutput())
}

// GetHistory returns the command history, or one entry with ?offset=n
// counted back from the newest.
func (h *Handlers) GetHistory(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}

	if raw, set := c.GetQuery("offset"); set {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
			return
		}
		cmd, found := s.HistoryEntry(offset)
		if !found {
			h.fail(c, errNoEntry)
			return
		}
		c.JSON(http.StatusOK, gin.H{"offset": offset, "command": cmd})
		return
	}

	entries := s.History()
	c.JSON(http.StatusOK, gin.H{
		"history": entries,
		"count":   len(entries),
	})
}

// ClearHistory drops the command history of a project
func (h *Handlers) ClearHistory(c *gin.Context) {
	s, ok := h.existing(c)
	if !ok {
		return
	}
	s.ClearHistory()
	c.Status(http.StatusNoContent)
}

// traced runs fn inside a child span of the request
func (h *Handlers) traced(c *gin.Context, name string, project id.ProjectID, fn func() error) error {
	if h.tracer == nil {
		return fn()
	}

	span, ctx := h.tracer.StartSpan(c.Request.Context(), name)
	span.SetTag("project_id", project.String())
	c.Request = c.Request.WithContext(ctx)

	start := time.Now()
	err := fn()
	span.SetError(err)
	span.Finish()
	h.tracer.Submit(span)

	h.logger.Debug("Terminal operation",
		zap.String("operation", name),
		zap.String("project_id", project.String()),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return err
}
