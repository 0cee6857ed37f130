package handler

import (
	"classdoc-go/internal/model"
	"classdoc-go/internal/service"
	"classdoc-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理文档上传、列表、删除与选择相关的 API 请求。
type DocumentHandler struct {
	classService      service.ClassService
	docService        service.DocumentService
	uploadService     service.UploadService
	processingService service.ProcessingService
	sessionService    service.SessionService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(
	classService service.ClassService,
	docService service.DocumentService,
	uploadService service.UploadService,
	processingService service.ProcessingService,
	sessionService service.SessionService,
) *DocumentHandler {
	return &DocumentHandler{
		classService:      classService,
		docService:        docService,
		uploadService:     uploadService,
		processingService: processingService,
		sessionService:    sessionService,
	}
}

// List 处理获取班级某角色文档列表的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	docs, err := h.docService.List(c.Request.Context(), model.ClassScope(classID), role)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取文件列表成功", docs)
}

// Upload 处理 multipart 上传请求，表单字段为 file。
func (h *DocumentHandler) Upload(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := h.classService.Get(classID); err != nil {
		fail(c, err, nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "缺少上传文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: failed to open multipart file", err)
		badRequest(c, "无法读取上传文件")
		return
	}
	defer file.Close()

	res, err := h.uploadService.Upload(c.Request.Context(), service.UploadInput{
		ClassID:     model.ClassScope(classID),
		Role:        role,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     file,
	})
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "上传成功", res)
}

// Delete 处理删除文档的请求。删除的是当前选择时同时清空会话选择。
func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, valid := documentParam(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	session, err := h.sessionService.Get(ctx, sessionID(c))
	if err != nil {
		fail(c, err, nil)
		return
	}
	res, err := h.docService.Delete(ctx, doc, *session)
	if err != nil {
		fail(c, err, nil)
		return
	}
	if res.ClearSelection {
		if _, err := h.sessionService.ClearSelection(ctx, session.ID); err != nil {
			log.Warnf("[DocumentHandler] 清空会话选择失败, session: %s, error: %v", session.ID, err)
		}
	}
	ok(c, "删除成功", res)
}

// URL 处理获取文档临时访问链接的请求。
func (h *DocumentHandler) URL(c *gin.Context) {
	doc, valid := documentParam(c)
	if !valid {
		return
	}
	url, err := h.docService.URL(c.Request.Context(), doc)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取访问链接成功", gin.H{"fileName": doc.Name, "url": url})
}

// Status 处理查询文档处理状态的请求，不会触发处理。
func (h *DocumentHandler) Status(c *gin.Context) {
	doc, valid := documentParam(c)
	if !valid {
		return
	}
	state, err := h.processingService.CheckStatus(c.Request.Context(), doc.ID())
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取处理状态成功", gin.H{"fileName": doc.Name, "state": state})
}

// Select 处理选择文档的请求：必要时先处理文档，失败时清空选择。
func (h *DocumentHandler) Select(c *gin.Context) {
	doc, valid := documentParam(c)
	if !valid {
		return
	}
	session, state, err := h.sessionService.Select(c.Request.Context(), sessionID(c), doc)
	if err != nil {
		fail(c, err, gin.H{"state": state, "session": session})
		return
	}
	ok(c, "选择文档成功", gin.H{"state": state, "session": session})
}
