package handler

import (
	"net/http"

	"classdoc-go/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总所有控制器，便于统一注册路由。
type Handlers struct {
	Class    *ClassHandler
	Document *DocumentHandler
	Query    *QueryHandler
	Session  *SessionHandler
}

// RegisterRoutes 在 /api/v1 下注册全部路由，sessionHeader 为会话 ID 所在的请求头。
func RegisterRoutes(r *gin.Engine, h *Handlers, sessionHeader string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.Session(sessionHeader))
	{
		session := apiV1.Group("/session")
		{
			session.GET("", h.Session.Get)
			session.DELETE("", h.Session.Clear)
		}

		classes := apiV1.Group("/classes")
		{
			classes.POST("", h.Class.Create)
			classes.GET("", h.Class.List)
			classes.GET("/:classId", h.Class.Get)
			classes.DELETE("/:classId", h.Class.Delete)

			classes.POST("/:classId/ask", h.Query.Ask)
			classes.POST("/:classId/compare", h.Query.Compare)
			classes.POST("/:classId/evaluate", h.Query.Evaluate)
			classes.GET("/:classId/evaluations", h.Query.History)

			documents := classes.Group("/:classId/documents/:role")
			{
				documents.GET("", h.Document.List)
				documents.POST("", h.Document.Upload)
				documents.DELETE("/:fileName", h.Document.Delete)
				documents.GET("/:fileName/url", h.Document.URL)
				documents.GET("/:fileName/status", h.Document.Status)
				documents.POST("/:fileName/select", h.Document.Select)
			}
		}
	}
}
