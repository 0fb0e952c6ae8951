package sharing

import (
	"strings"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Document is a page of context to hand to the shell
type Document struct {
	ProjectID  id.ProjectID  `json:"project_id"`
	ID         id.DocumentID `json:"document_id"`
	Title      string        `json:"title"`
	Body       string        `json:"body"`
	ImagePaths []string      `json:"image_paths,omitempty"`
}

// Compose assembles the text blob sent for doc:
//
//	# Title
//
//	Body
//
//	Images:
//	/path/one.png
//
// Empty sections are omitted. An empty document composes to "".
func Compose(doc Document) string {
	var parts []string
	if title := strings.TrimSpace(doc.Title); title != "" {
		parts = append(parts, "# "+title)
	}
	if body := strings.TrimSpace(doc.Body); body != "" {
		parts = append(parts, body)
	}
	var images []string
	for _, p := range doc.ImagePaths {
		if p = strings.TrimSpace(p); p != "" {
			images = append(images, p)
		}
	}
	if len(images) > 0 {
		parts = append(parts, "Images:\n"+strings.Join(images, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// FilterImages keeps the paths that exist and hold image data
func FilterImages(paths []string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}

	kept := make([]string, 0, len(paths))
	for _, path := range paths {
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			logger.Warn("Dropping unreadable image", zap.String("path", path), zap.Error(err))
			continue
		}
		if !strings.HasPrefix(mtype.String(), "image/") {
			logger.Warn("Dropping non-image attachment",
				zap.String("path", path),
				zap.String("mime", mtype.String()),
			)
			continue
		}
		kept = append(kept, path)
	}
	return kept
}
