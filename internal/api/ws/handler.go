package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/shared/validate"
	"github.com/GriffinCanCode/termhost/internal/sharing"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/registry"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 256
)

var errSlowConsumer = errors.New("client is not reading output fast enough")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is enforced by the CORS layer
	},
}

// Handler manages terminal stream connections
type Handler struct {
	registry  *registry.Registry
	tracker   *sharing.Tracker
	deliverer *delivery.Deliverer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandler creates a new WebSocket handler. metrics and logger may be nil.
func NewHandler(
	reg *registry.Registry,
	tracker *sharing.Tracker,
	deliverer *delivery.Deliverer,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:  reg,
		tracker:   tracker,
		deliverer: deliverer,
		metrics:   metrics,
		logger:    logger,
	}
}

type frame struct {
	kind int
	data []byte
	json any
	name string
}

// conn serializes writes to one websocket
type conn struct {
	ws      *websocket.Conn
	id      id.ConnectionID
	out     chan frame
	closed  chan struct{}
	once    sync.Once
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// HandleConnection upgrades the request and streams the project's terminal.
// The session is started if it is not running.
func (h *Handler) HandleConnection(c *gin.Context) {
	project, err := id.ParseProjectID(c.Param("project"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := id.ConnectionID(uuid.NewString())
	cn := &conn{
		ws:      wsConn,
		id:      connID,
		out:     make(chan frame, sendQueue),
		closed:  make(chan struct{}),
		metrics: h.metrics,
		logger: h.logger.With(
			zap.String("project_id", project.String()),
			zap.String("connection_id", connID.String()),
		),
	}

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	go cn.writeLoop()
	defer cn.close()

	s := h.registry.SessionFor(project)
	unsubOutput := s.Subscribe(func(chunk []byte) {
		cn.push(frame{kind: websocket.BinaryMessage, data: chunk, name: "output"})
	})
	defer unsubOutput()

	unsubState := s.Observe(func(ev session.Event) {
		cn.push(frame{json: gin.H{"type": TypeState, "event": ev}, name: TypeState})
	})
	defer unsubState()

	unsubStatus := h.tracker.Subscribe(func(tr sharing.Transition) {
		if tr.ProjectID != project {
			return
		}
		cn.push(frame{json: gin.H{"type": TypeStatus, "transition": tr}, name: TypeStatus})
	})
	defer unsubStatus()

	if !s.Running() {
		if err := s.Start(c.Request.Context()); err != nil {
			cn.logger.Error("Failed to start session for stream", zap.Error(err))
			cn.sendError(err.Error())
		}
	}

	cn.push(frame{json: gin.H{
		"type":          TypeSystem,
		"connection_id": connID,
		"session":       s.Info(),
	}, name: TypeSystem})
	cn.logger.Info("Terminal stream connected")

	h.readLoop(cn, s)
	cn.logger.Info("Terminal stream disconnected")
}

func (h *Handler) readLoop(cn *conn, s *session.Session) {
	cn.ws.SetReadLimit(1 << 20)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := cn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cn.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", messageLabel(msg.Type))
		}

		switch msg.Type {
		case TypeInput:
			if err := s.WriteInput([]byte(msg.Data)); err != nil {
				cn.sendError(err.Error())
			}
		case TypeResize:
			if err := s.Resize(msg.Cols, msg.Rows); err != nil {
				cn.sendError(err.Error())
			}
		case TypeSubmit:
			h.submit(cn, s, msg)
		case TypePing:
			cn.push(frame{json: gin.H{"type": TypePong}, name: TypePong})
		default:
			cn.sendError("unknown message type")
		}
	}
}

func (h *Handler) submit(cn *conn, s *session.Session, msg ClientMessage) {
	if err := validate.Text(msg.Text); err != nil {
		cn.sendError(err.Error())
		return
	}
	if msg.Raw {
		s.Submit(msg.Text)
		cn.push(frame{json: gin.H{"type": TypeSubmitted, "raw": true}, name: TypeSubmitted})
		return
	}

	res, err := h.deliverer.Deliver(s, msg.Text, nil)
	if err != nil {
		cn.sendError(err.Error())
		return
	}
	cn.push(frame{json: gin.H{
		"type":            TypeSubmitted,
		"raw":             false,
		"multiline":       res.Multiline,
		"characters":      res.Characters,
		"submit_delay_ms": res.SubmitDelay.Milliseconds(),
	}, name: TypeSubmitted})
}

// push queues f without blocking. A full queue closes the connection.
func (c *conn) push(f frame) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.out <- f:
	default:
		c.logger.Warn("Dropping terminal stream", zap.Error(errSlowConsumer))
		c.close()
	}
}

func (c *conn) sendError(msg string) {
	c.push(frame{json: gin.H{
		"type":      TypeError,
		"message":   msg,
		"timestamp": time.Now().Unix(),
	}, name: TypeError})
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case f := <-c.out:
			if err := c.write(f); err != nil {
				c.logger.Debug("WebSocket write error", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) write(f frame) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	var err error
	if f.json != nil {
		err = c.ws.WriteJSON(f.json)
	} else {
		err = c.ws.WriteMessage(f.kind, f.data)
	}
	if err == nil && c.metrics != nil {
		c.metrics.RecordWSMessage("out", f.name)
	}
	return err
}
