package handler

import (
	"context"
	"errors"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/service"
	"classdoc-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler 负责处理问答、对比与评分相关的 API 请求。
type QueryHandler struct {
	queryService      service.QueryService
	evaluationService service.EvaluationService
	docService        service.DocumentService
	sessionService    service.SessionService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService, evaluationService service.EvaluationService, docService service.DocumentService, sessionService service.SessionService) *QueryHandler {
	return &QueryHandler{
		queryService:      queryService,
		evaluationService: evaluationService,
		docService:        docService,
		sessionService:    sessionService,
	}
}

// AskRequest 定义了问答的请求体。FileName 为空时使用会话中选中的参考资料。
type AskRequest struct {
	Question        string `json:"question" binding:"required"`
	FileName        string `json:"fileName"`
	Role            string `json:"role"`
	StudentFileName string `json:"studentFileName"`
	CustomPrompt    string `json:"customPrompt"`
}

// CompareRequest 定义了对比的请求体。文件名为空时使用会话中的选择。
type CompareRequest struct {
	TeacherFile  string `json:"teacherFile"`
	StudentFile  string `json:"studentFile"`
	Question     string `json:"question"`
	CustomPrompt string `json:"customPrompt"`
}

// EvaluateRequest 定义了批量评分的请求体。Submissions 为空时评估班级下的全部学生作业。
type EvaluateRequest struct {
	ReferenceFile string   `json:"referenceFile"`
	Submissions   []string `json:"submissions"`
	Question      string   `json:"question" binding:"required"`
}

// Ask 处理问答请求。
func (h *QueryHandler) Ask(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载")
		return
	}
	ctx := c.Request.Context()
	session, err := h.sessionService.Get(ctx, sessionID(c))
	if err != nil {
		fail(c, err, nil)
		return
	}

	scope := model.ClassScope(classID)
	in := service.AskInput{Question: req.Question, CustomPrompt: req.CustomPrompt}
	if req.FileName != "" {
		role := model.RoleTeacher
		if req.Role != "" {
			if role, err = model.ParseRole(req.Role); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		in.Document = model.Document{OwnerScope: scope, Name: req.FileName, Role: role}
	} else if session.SelectedTeacher != nil {
		in.Document = *session.SelectedTeacher
	}
	if req.StudentFileName != "" {
		in.StudentDocument = &model.Document{OwnerScope: scope, Name: req.StudentFileName, Role: model.RoleStudent}
	}

	answer, err := h.queryService.Ask(ctx, in)
	if err != nil {
		h.clearOnGateFailure(ctx, session.ID, err)
		fail(c, err, nil)
		return
	}
	if err := h.sessionService.RecordAnswer(ctx, session.ID, req.Question, answer); err != nil {
		log.Warnf("[QueryHandler] 保存回答失败, session: %s, error: %v", session.ID, err)
	}
	ok(c, "问答成功", gin.H{"question": req.Question, "answer": answer})
}

// Compare 处理对比请求。
func (h *QueryHandler) Compare(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载")
		return
	}
	ctx := c.Request.Context()
	session, err := h.sessionService.Get(ctx, sessionID(c))
	if err != nil {
		fail(c, err, nil)
		return
	}

	scope := model.ClassScope(classID)
	in := service.CompareInput{Question: req.Question, CustomPrompt: req.CustomPrompt}
	if req.TeacherFile != "" {
		in.Teacher = model.Document{OwnerScope: scope, Name: req.TeacherFile, Role: model.RoleTeacher}
	} else if session.SelectedTeacher != nil {
		in.Teacher = *session.SelectedTeacher
	}
	if req.StudentFile != "" {
		in.Student = model.Document{OwnerScope: scope, Name: req.StudentFile, Role: model.RoleStudent}
	} else if session.SelectedStudent != nil {
		in.Student = *session.SelectedStudent
	}

	comparison, err := h.queryService.Compare(ctx, in)
	if err != nil {
		fail(c, err, nil)
		return
	}
	if err := h.sessionService.RecordComparison(ctx, session.ID, comparison); err != nil {
		log.Warnf("[QueryHandler] 保存对比结果失败, session: %s, error: %v", session.ID, err)
	}
	ok(c, "对比成功", gin.H{"teacherFile": in.Teacher.Name, "studentFile": in.Student.Name, "comparison": comparison})
}

// Evaluate 处理批量评分请求。
func (h *QueryHandler) Evaluate(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载")
		return
	}
	ctx := c.Request.Context()
	scope := model.ClassScope(classID)

	in := service.EvaluateInput{Question: req.Question}
	if req.ReferenceFile != "" {
		in.Reference = model.Document{OwnerScope: scope, Name: req.ReferenceFile, Role: model.RoleTeacher}
	} else {
		session, err := h.sessionService.Get(ctx, sessionID(c))
		if err != nil {
			fail(c, err, nil)
			return
		}
		if session.SelectedTeacher != nil {
			in.Reference = *session.SelectedTeacher
		}
	}

	if len(req.Submissions) > 0 {
		for _, name := range req.Submissions {
			in.Submissions = append(in.Submissions, model.Document{OwnerScope: scope, Name: name, Role: model.RoleStudent})
		}
	} else {
		docs, err := h.docService.List(ctx, scope, model.RoleStudent)
		if err != nil {
			fail(c, err, nil)
			return
		}
		in.Submissions = docs
	}

	run, err := h.evaluationService.Evaluate(ctx, in)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "评分完成", run)
}

// History 处理查询已落库评分记录的请求。
func (h *QueryHandler) History(c *gin.Context) {
	classID, valid := classParam(c)
	if !valid {
		return
	}
	records, err := h.evaluationService.History(model.ClassScope(classID), c.Query("reference"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "获取评分记录成功", records)
}

// clearOnGateFailure 在处理闸门失败后清空会话选择。
func (h *QueryHandler) clearOnGateFailure(ctx context.Context, id string, err error) {
	if !errors.Is(err, apperr.ErrProcessing) {
		return
	}
	if _, cerr := h.sessionService.ClearSelection(ctx, id); cerr != nil {
		log.Warnf("[QueryHandler] 清空会话选择失败, session: %s, error: %v", id, cerr)
	}
}
