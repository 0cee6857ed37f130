package handler

import (
	"classdoc-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 负责处理会话状态相关的 API 请求。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler 实例。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Get 返回当前会话。
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessionService.Get(c.Request.Context(), sessionID(c))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取会话成功", session)
}

// Clear 清空当前选择及派生状态。
func (h *SessionHandler) Clear(c *gin.Context) {
	session, err := h.sessionService.ClearSelection(c.Request.Context(), sessionID(c))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "已清空选择", session)
}
