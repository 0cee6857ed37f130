package service

import (
	"context"
	"strings"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/pkg/indexing"
	"classdoc-go/pkg/log"
)

// AskInput 是一次针对单个文档的问答请求。
// StudentDocument 非空时，问题同时针对该学生作业。
type AskInput struct {
	Document        model.Document
	StudentDocument *model.Document
	Question        string
	CustomPrompt    string
}

// CompareInput 是一次参考资料与学生作业的对比请求。
type CompareInput struct {
	Teacher      model.Document
	Student      model.Document
	Question     string
	CustomPrompt string
}

// QueryService 接口定义了问答与对比相关的业务操作。
type QueryService interface {
	Ask(ctx context.Context, in AskInput) (string, error)
	Compare(ctx context.Context, in CompareInput) (string, error)
}

type queryService struct {
	indexer    indexing.Client
	processing ProcessingService
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(indexer indexing.Client, processing ProcessingService) QueryService {
	return &queryService{
		indexer:    indexer,
		processing: processing,
	}
}

// Ask 先确保文档已被处理，再向索引服务提问。
func (s *queryService) Ask(ctx context.Context, in AskInput) (string, error) {
	const op = "Ask"
	if strings.TrimSpace(in.Question) == "" {
		return "", apperr.Validation(op, "问题不能为空")
	}
	if in.Document.IsZero() {
		return "", apperr.Validation(op, "未选择文档")
	}
	if _, err := s.processing.EnsureIndexed(ctx, in.Document); err != nil {
		return "", err
	}

	req := indexing.QueryRequest{
		Question:     in.Question,
		CustomPrompt: in.CustomPrompt,
		FileName:     in.Document.ID(),
	}
	if in.StudentDocument != nil && !in.StudentDocument.IsZero() {
		if _, err := s.processing.EnsureIndexed(ctx, *in.StudentDocument); err != nil {
			return "", err
		}
		req.StudentFileName = in.StudentDocument.ID()
	}

	answer, err := s.indexer.Query(ctx, req)
	if err != nil {
		log.Errorf("[QueryService] 问答请求失败, doc: %s, error: %v", in.Document.Key(), err)
		return "", apperr.Wrap(apperr.KindIndexing, op, err, indexing.Detail(err))
	}
	return answer, nil
}

// Compare 重新检查两个文档的处理状态，都已索引时才发起对比。
// 这里不会自动提交索引，未处理的文档直接报错。
func (s *queryService) Compare(ctx context.Context, in CompareInput) (string, error) {
	const op = "Compare"
	if in.Teacher.IsZero() || in.Student.IsZero() {
		return "", apperr.Validation(op, "请同时选择参考资料和学生作业")
	}
	if in.Teacher.Role != model.RoleTeacher || in.Student.Role != model.RoleStudent {
		return "", apperr.Validation(op, "对比需要一份参考资料和一份学生作业")
	}

	for _, doc := range []model.Document{in.Teacher, in.Student} {
		state, err := s.processing.CheckStatus(ctx, doc.ID())
		if err != nil {
			return "", apperr.Wrap(apperr.KindCompare, op, err, "无法查询文档处理状态: "+apperr.Message(err))
		}
		if state != model.IndexIndexed {
			log.Warnf("[QueryService] 对比前文档未处理, doc: %s, state: %s", doc.Key(), state)
			return "", apperr.New(apperr.KindCompare, op, "文档尚未处理，请先处理: "+doc.Name)
		}
	}

	req := indexing.CompareRequest{
		TeacherFile: in.Teacher.ID(),
		StudentFile: in.Student.ID(),
	}
	if q := strings.TrimSpace(in.Question); q != "" {
		req.Question = &q
	}
	if p := strings.TrimSpace(in.CustomPrompt); p != "" {
		req.CustomPrompt = &p
	}

	comparison, err := s.indexer.Compare(ctx, req)
	if err != nil {
		log.Errorf("[QueryService] 对比请求失败, teacher: %s, student: %s, error: %v", in.Teacher.Key(), in.Student.Key(), err)
		return "", apperr.Wrap(apperr.KindCompare, op, err, indexing.Detail(err))
	}
	return comparison, nil
}
