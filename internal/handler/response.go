// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/middleware"
	"classdoc-go/internal/model"
	"classdoc-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// statusFor 将错误类别映射为 HTTP 状态码。
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpload:
		return http.StatusConflict
	case apperr.KindIndexing, apperr.KindProcessing, apperr.KindCompare, apperr.KindBatch,
		apperr.KindBlobRead, apperr.KindBlobWrite, apperr.KindBlobDelete, apperr.KindDelete:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}

// fail 输出错误响应；data 非 nil 时一并返回（例如部分成功的删除结果）。
func fail(c *gin.Context, err error, data interface{}) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		log.Errorf("[%s %s] 请求失败: %v", c.Request.Method, c.FullPath(), err)
	}
	body := gin.H{
		"code":    status,
		"message": apperr.Message(err),
		"kind":    kind,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message, "kind": apperr.KindValidation})
}

func sessionID(c *gin.Context) string {
	return c.GetString(middleware.SessionIDKey)
}

// classParam 解析路径中的班级 ID。
func classParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("classId"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "无效的班级 ID")
		return 0, false
	}
	return uint(id), true
}

// documentParam 由路径参数构造文档引用。
func documentParam(c *gin.Context) (model.Document, bool) {
	classID, valid := classParam(c)
	if !valid {
		return model.Document{}, false
	}
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		badRequest(c, err.Error())
		return model.Document{}, false
	}
	return model.Document{
		OwnerScope: model.ClassScope(classID),
		Name:       c.Param("fileName"),
		Role:       role,
	}, true
}
