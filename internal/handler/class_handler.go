package handler

import (
	"classdoc-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ClassHandler 负责处理班级管理相关的 API 请求。
type ClassHandler struct {
	classService service.ClassService
}

// NewClassHandler 创建一个新的 ClassHandler 实例。
func NewClassHandler(classService service.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

// CreateClassRequest 定义了创建班级的请求体结构。
type CreateClassRequest struct {
	Name    string `json:"name" binding:"required"`
	Term    string `json:"term" binding:"required"`
	Subject string `json:"subject" binding:"required"`
}

// Create 处理创建班级的请求。
func (h *ClassHandler) Create(c *gin.Context) {
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载")
		return
	}
	class, err := h.classService.Create(req.Name, req.Term, req.Subject)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "创建班级成功", class)
}

// List 处理获取班级列表的请求。
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.classService.List()
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取班级列表成功", classes)
}

// Get 处理获取单个班级的请求。
func (h *ClassHandler) Get(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	class, err := h.classService.Get(classID)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取班级成功", class)
}

// Delete 处理删除班级的请求，部分文件删除失败时同时返回删除结果。
func (h *ClassHandler) Delete(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	res, err := h.classService.Delete(c.Request.Context(), classID)
	if err != nil {
		fail(c, err, res)
		return
	}
	ok(c, "删除班级成功", res)
}
