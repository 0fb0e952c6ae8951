package http

import "github.com/gin-gonic/gin"

// Register mounts the control API on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics/json", h.MetricsJSON)
	r.GET("/sessions", h.ListSessions)

	project := r.Group("/projects/:project")
	{
		project.GET("/session", h.GetSession)
		project.DELETE("/session", h.DeleteSession)
		project.POST("/session/start", h.StartSession)
		project.POST("/session/stop", h.StopSession)
		project.POST("/session/restart", h.RestartSession)
		project.POST("/session/submit", h.Submit)
		project.POST("/session/resize", h.Resize)
		project.GET("/session/output", h.ReadOutput)
		project.GET("/session/history", h.GetHistory)
		project.DELETE("/session/history", h.ClearHistory)

		project.GET("/documents", h.ListDocuments)
		project.POST("/documents/:document/share", h.ShareDocument)
	}
}
