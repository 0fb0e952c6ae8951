package http

import (
	"net/http"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/sharing"
	"github.com/gin-gonic/gin"
)

// ShareRequest is the content of a document to share
type ShareRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	ImagePaths []string `json:"image_paths"`
}

// ListDocuments returns the sharing status of every known document
func (h *Handlers) ListDocuments(c *gin.Context) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	docs := h.sender.Tracker().Documents(project)
	if docs == nil {
		docs = []sharing.DocumentStatus{}
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// ShareDocument sends a document to the project's terminal. The response
// is sent once the text is queued; the document turns shared when the
// submit keystroke follows.
func (h *Handlers) ShareDocument(c *gin.Context) {
	project, err := projectParam(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	docID, err := id.ParseDocumentID(c.Param("document"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc := sharing.Document{
		ProjectID:  project,
		ID:         docID,
		Title:      req.Title,
		Body:       req.Body,
		ImagePaths: req.ImagePaths,
	}

	err = h.traced(c, "document.share", project, func() error {
		res, shareErr := h.sender.Share(c.Request.Context(), doc)
		if shareErr != nil {
			return shareErr
		}
		c.JSON(http.StatusAccepted, gin.H{
			"document_id":     docID,
			"multiline":       res.Multiline,
			"characters":      res.Characters,
			"submit_delay_ms": res.SubmitDelay.Milliseconds(),
			"status":          h.sender.Tracker().Status(project, docID),
		})
		return nil
	})
	if err != nil {
		h.fail(c, err)
	}
}
