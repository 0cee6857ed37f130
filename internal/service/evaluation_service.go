package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"classdoc-go/internal/apperr"
	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/evaluation"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/tasks"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EvaluateInput 是一次批量评分请求。
type EvaluateInput struct {
	Reference   model.Document
	Submissions []model.Document
	Question    string
}

// EvaluationRun 是一次评分运行的结果。
// Results 以文档 ID 为键，缺失的键表示该作业未被评分。
type EvaluationRun struct {
	RunID       string                            `json:"runId"`
	Reference   model.Document                    `json:"reference"`
	Question    string                            `json:"question"`
	Results     map[string]model.EvaluationResult `json:"results"`
	Breakdown   map[string][]model.CriterionScore `json:"breakdown"`
	Omitted     []string                          `json:"omitted,omitempty"`
	EvaluatedAt time.Time                         `json:"evaluatedAt"`
}

// EvaluationPublisher 将评分结果异步落库。
type EvaluationPublisher interface {
	PublishEvaluationRecord(ctx context.Context, task tasks.EvaluationRecordTask) error
}

// EvaluationService 接口定义了批量评分相关的业务操作。
type EvaluationService interface {
	Evaluate(ctx context.Context, in EvaluateInput) (*EvaluationRun, error)
	History(classID, referenceFile string) ([]model.EvaluationRecord, error)
}

type evaluationService struct {
	evaluator   evaluation.Client
	processing  ProcessingService
	evaluations repository.EvaluationRepository
	publisher   EvaluationPublisher
	rubric      model.Rubric
}

// NewEvaluationService 创建一个新的 EvaluationService 实例。publisher 可以为 nil。
func NewEvaluationService(evaluator evaluation.Client, processing ProcessingService, evaluations repository.EvaluationRepository, publisher EvaluationPublisher, rubric model.Rubric) EvaluationService {
	return &evaluationService{
		evaluator:   evaluator,
		processing:  processing,
		evaluations: evaluations,
		publisher:   publisher,
		rubric:      rubric,
	}
}

// outcome 是单份作业的评分结果，rejected 表示调用本身失败（传输错误、非 2xx、处理失败）。
type outcome struct {
	id       string
	result   *model.EvaluationResult
	rejected error
}

// Evaluate 对每份作业并发发起一次评分请求，等待全部完成后汇总。
// 单份失败只会让该作业从结果中缺席；所有请求都被拒绝时返回 BatchError。
func (s *evaluationService) Evaluate(ctx context.Context, in EvaluateInput) (*EvaluationRun, error) {
	const op = "Evaluate"
	if strings.TrimSpace(in.Question) == "" {
		return nil, apperr.Validation(op, "评分问题不能为空")
	}
	if in.Reference.IsZero() {
		return nil, apperr.Validation(op, "未选择参考资料")
	}
	submissions := dedupe(in.Submissions)
	if len(submissions) == 0 {
		return nil, apperr.Validation(op, "未选择学生作业")
	}

	if _, err := s.processing.EnsureIndexed(ctx, in.Reference); err != nil {
		return nil, err
	}

	run := &EvaluationRun{
		RunID:       uuid.New().String(),
		Reference:   in.Reference,
		Question:    in.Question,
		Results:     make(map[string]model.EvaluationResult, len(submissions)),
		Breakdown:   make(map[string][]model.CriterionScore, len(submissions)),
		EvaluatedAt: time.Now(),
	}
	log.Infof("[EvaluationService] 开始评分, run: %s, reference: %s, submissions: %d", run.RunID, in.Reference.Key(), len(submissions))

	var (
		mu       sync.Mutex
		outcomes = make([]outcome, 0, len(submissions))
		g        errgroup.Group
	)
	for _, sub := range submissions {
		g.Go(func() error {
			o := s.evaluateOne(ctx, in, sub)
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var rejections []error
	for _, o := range outcomes {
		switch {
		case o.rejected != nil:
			rejections = append(rejections, o.rejected)
			run.Omitted = append(run.Omitted, o.id)
		case o.result == nil:
			run.Omitted = append(run.Omitted, o.id)
		default:
			run.Results[o.id] = *o.result
			run.Breakdown[o.id] = o.result.Breakdown(s.rubric)
		}
	}
	sort.Strings(run.Omitted)

	if len(rejections) == len(submissions) {
		log.Errorf("[EvaluationService] 全部评分请求失败, run: %s", run.RunID)
		return nil, apperr.Wrap(apperr.KindBatch, op, errors.Join(rejections...), "评分请求全部失败")
	}

	log.Infof("[EvaluationService] 评分完成, run: %s, evaluated: %d, omitted: %d", run.RunID, len(run.Results), len(run.Omitted))
	s.publish(ctx, run)
	return run, nil
}

func (s *evaluationService) evaluateOne(ctx context.Context, in EvaluateInput, sub model.Document) outcome {
	o := outcome{id: sub.ID()}
	if _, err := s.processing.EnsureIndexed(ctx, sub); err != nil {
		log.Warnf("[EvaluationService] 学生作业处理失败, doc: %s, error: %v", sub.Key(), err)
		o.rejected = err
		return o
	}

	resp, err := s.evaluator.EvaluateAnswer(ctx, evaluation.Request{
		Question:           in.Question,
		StudentFileID:      sub.ID(),
		TeacherFileIDs:     []string{in.Reference.ID()},
		EvaluationCriteria: s.rubric,
	})
	if err != nil {
		log.Warnf("[EvaluationService] 评分请求失败, doc: %s, error: %v", sub.Key(), err)
		o.rejected = fmt.Errorf("%s: %w", sub.ID(), err)
		return o
	}
	if !resp.Success || resp.Evaluation == nil {
		log.Warnf("[EvaluationService] 评分服务未返回结果, doc: %s, error: %s", sub.Key(), resp.Error)
		return o
	}
	o.result = resp.Evaluation
	return o
}

// publish 把结果交给异步落库，失败只记录日志。
func (s *evaluationService) publish(ctx context.Context, run *EvaluationRun) {
	if s.publisher == nil {
		return
	}
	task := tasks.EvaluationRecordTask{
		RunID:         run.RunID,
		ClassID:       run.Reference.OwnerScope,
		ReferenceFile: run.Reference.ID(),
		Question:      run.Question,
		EvaluatedAt:   run.EvaluatedAt,
		Results:       run.Results,
	}
	if err := s.publisher.PublishEvaluationRecord(context.WithoutCancel(ctx), task); err != nil {
		log.Warnf("[EvaluationService] 发送评分记录任务失败, run: %s, error: %v", run.RunID, err)
	}
}

// History 返回某份参考资料最近一次落库的评分记录。
func (s *evaluationService) History(classID, referenceFile string) ([]model.EvaluationRecord, error) {
	if classID == "" || referenceFile == "" {
		return nil, apperr.Validation("History", "班级 ID 与参考资料不能为空")
	}
	records, err := s.evaluations.FindByReference(classID, referenceFile)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "History", err, "查询评分记录失败")
	}
	return records, nil
}

// dedupe 按文档 ID 去重并保留原有顺序，与结果映射使用同一个键。
func dedupe(docs []model.Document) []model.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if d.IsZero() {
			continue
		}
		if _, ok := seen[d.ID()]; ok {
			continue
		}
		seen[d.ID()] = struct{}{}
		out = append(out, d)
	}
	return out
}
