package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionIDKey 是会话 ID 在 Gin 上下文中的键。
const SessionIDKey = "sessionID"

// Session 创建一个 Gin 中间件，从请求头中读取会话 ID。
// 请求未携带或携带了非法 ID 时生成一个新的，并通过响应头返回给调用方。
func Session(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(header)
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.New().String()
		}
		c.Set(SessionIDKey, sessionID)
		c.Header(header, sessionID)
		c.Next()
	}
}
