package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/shared/validate"
	"github.com/GriffinCanCode/termhost/internal/sharing"
	"github.com/GriffinCanCode/termhost/internal/state"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/gin-gonic/gin"
)

var (
	errNoSession = errors.New("project has no terminal session")
	errNoEntry   = errors.New("history entry not found")
)

// statusFor maps a domain error to an HTTP status and whether a retry can help
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, session.ErrSpawnFailed):
		return http.StatusBadGateway, true
	case errors.Is(err, errNoSession), errors.Is(err, errNoEntry):
		return http.StatusNotFound, false
	case errors.Is(err, id.ErrEmpty),
		errors.Is(err, id.ErrInvalid),
		errors.Is(err, validate.ErrInvalid),
		errors.Is(err, session.ErrInvalidSize),
		errors.Is(err, delivery.ErrEmptyText),
		errors.Is(err, sharing.ErrEmptyContext),
		errors.Is(err, state.ErrInvalidProjectID):
		return http.StatusBadRequest, false
	default:
		return http.StatusInternalServerError, false
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	if retryable {
		body["retryable"] = true
	}
	c.JSON(status, body)
}
