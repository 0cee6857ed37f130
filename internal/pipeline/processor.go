// Package pipeline 定义了评分结果异步落库的处理流程。
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"classdoc-go/internal/model"
	"classdoc-go/internal/repository"
	"classdoc-go/pkg/log"
	"classdoc-go/pkg/tasks"

	"gorm.io/datatypes"
)

// Processor 把 Kafka 中的评分记录任务写入 evaluation_results。
type Processor struct {
	evaluations repository.EvaluationRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(evaluations repository.EvaluationRepository) *Processor {
	return &Processor{evaluations: evaluations}
}

// Process 用本次运行的结果整体替换同一 参考资料+问题 的旧记录。
func (p *Processor) Process(ctx context.Context, task tasks.EvaluationRecordTask) error {
	log.Infof("[Processor] 开始处理评分记录, RunID: %s, Class: %s, Reference: %s", task.RunID, task.ClassID, task.ReferenceFile)
	if task.ClassID == "" || task.ReferenceFile == "" {
		// 缺少定位信息的任务无法落库，重试也没有意义
		log.Warnf("[Processor] 评分记录缺少班级或参考资料, RunID: %s, 跳过", task.RunID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := BuildRecords(task)
	if err != nil {
		log.Errorf("[Processor] 构造评分记录失败, RunID: %s, Error: %v", task.RunID, err)
		return err
	}

	hash := QuestionHash(task.Question)
	if err := p.evaluations.ReplaceRun(task.ClassID, task.ReferenceFile, hash, records); err != nil {
		log.Errorf("[Processor] 写入评分记录失败, RunID: %s, Error: %v", task.RunID, err)
		return fmt.Errorf("写入评分记录失败: %w", err)
	}
	log.Infof("[Processor] 评分记录写入完成, RunID: %s, 记录数: %d", task.RunID, len(records))
	return nil
}

// BuildRecords 把一次运行的结果转换为按提交文件名排序的行。
func BuildRecords(task tasks.EvaluationRecordTask) ([]*model.EvaluationRecord, error) {
	names := make([]string, 0, len(task.Results))
	for name := range task.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	hash := QuestionHash(task.Question)
	records := make([]*model.EvaluationRecord, 0, len(names))
	for _, name := range names {
		result := task.Results[name]
		scores := make(datatypes.JSONMap, len(result.Scores))
		for k, v := range result.Scores {
			scores[k] = v
		}
		suggestions := []string(result.ImprovementSuggestions)
		if suggestions == nil {
			suggestions = []string{}
		}
		raw, err := json.Marshal(suggestions)
		if err != nil {
			return nil, errors.New("无法序列化改进建议: " + name)
		}
		records = append(records, &model.EvaluationRecord{
			RunID:          task.RunID,
			ClassID:        task.ClassID,
			ReferenceFile:  task.ReferenceFile,
			QuestionHash:   hash,
			Question:       task.Question,
			SubmissionFile: name,
			TotalScore:     result.TotalScore,
			Scores:         scores,
			Feedback:       result.Feedback,
			Suggestions:    datatypes.JSON(raw),
			EvaluatedAt:    task.EvaluatedAt,
		})
	}
	return records, nil
}

// QuestionHash 对规范化后的问题取 sha256，用于定位同一问题的历史结果。
func QuestionHash(question string) string {
	normalized := strings.Join(strings.Fields(question), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
