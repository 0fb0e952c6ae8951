package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/shared/validate"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"go.uber.org/zap"
)

// ErrEmptyContext is returned when a document composes to nothing
var ErrEmptyContext = errors.New("document has no content to share")

// Sessions resolves the terminal of a project
type Sessions interface {
	SessionFor(project id.ProjectID) *session.Session
}

// Recorder counts sends. monitoring.Metrics implements it.
type Recorder interface {
	RecordContextSend(result string)
	RecordContextLost(count int)
}

// Sender delivers documents to terminals and keeps the tracker current
type Sender struct {
	sessions  Sessions
	tracker   *Tracker
	deliverer *delivery.Deliverer
	recorder  Recorder
	logger    *zap.Logger
}

// NewSender wires a sender. recorder and logger may be nil.
func NewSender(sessions Sessions, tracker *Tracker, deliverer *delivery.Deliverer, recorder Recorder, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		sessions:  sessions,
		tracker:   tracker,
		deliverer: deliverer,
		recorder:  recorder,
		logger:    logger,
	}
}

// Tracker returns the status tracker
func (s *Sender) Tracker() *Tracker {
	return s.tracker
}

// Share composes doc and delivers it to the project's terminal, starting the
// shell if needed. The document becomes shared once the submit keystroke has
// been sent; a send cancelled by a stop or restart leaves it unchanged.
func (s *Sender) Share(ctx context.Context, doc Document) (delivery.Result, error) {
	if _, err := id.ParseProjectID(doc.ProjectID.String()); err != nil {
		return delivery.Result{}, err
	}
	if _, err := id.ParseDocumentID(doc.ID.String()); err != nil {
		return delivery.Result{}, err
	}

	if err := validateDocument(doc); err != nil {
		s.record("rejected")
		return delivery.Result{}, err
	}

	doc.ImagePaths = FilterImages(doc.ImagePaths, s.logger)
	blob := Compose(doc)
	if strings.TrimSpace(blob) == "" {
		s.record("rejected")
		return delivery.Result{}, ErrEmptyContext
	}
	if err := validate.Size(blob, "context", validate.MaxTextSize); err != nil {
		s.record("rejected")
		return delivery.Result{}, err
	}

	s.tracker.Track(doc.ProjectID, doc.ID)
	sess := s.sessions.SessionFor(doc.ProjectID)
	if !sess.Running() {
		if err := sess.Start(ctx); err != nil {
			s.record("rejected")
			return delivery.Result{}, fmt.Errorf("share %s: %w", doc.ID, err)
		}
	}

	logger := s.logger.With(
		zap.String("project_id", doc.ProjectID.String()),
		zap.String("document_id", doc.ID.String()),
	)
	res, err := s.deliverer.Deliver(sess, blob, func(delivered bool) {
		if !delivered {
			s.record("cancelled")
			logger.Info("Context send cancelled")
			return
		}
		s.tracker.MarkShared(doc.ProjectID, doc.ID, time.Now())
		s.record("delivered")
		logger.Info("Context shared")
	})
	if err != nil {
		s.record("rejected")
		return delivery.Result{}, err
	}
	return res, nil
}

// Clear restarts the project's terminal and marks its shared documents
// contextLost. The documents are marked even when the respawn fails, since
// the old shell is gone either way.
func (s *Sender) Clear(ctx context.Context, project id.ProjectID) ([]id.DocumentID, error) {
	err := s.sessions.SessionFor(project).Restart(ctx)

	lost := s.tracker.MarkContextLost(project)
	if s.recorder != nil && len(lost) > 0 {
		s.recorder.RecordContextLost(len(lost))
	}
	s.logger.Info("Terminal cleared",
		zap.String("project_id", project.String()),
		zap.Int("context_lost", len(lost)),
		zap.Error(err),
	)
	return lost, err
}

func validateDocument(doc Document) error {
	if err := validate.String(doc.Title, "title", 0, validate.MaxTitleLength, false); err != nil {
		return err
	}
	return validate.Paths(doc.ImagePaths, "image_paths")
}

func (s *Sender) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordContextSend(result)
	}
}
