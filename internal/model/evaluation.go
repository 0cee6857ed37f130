package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DefaultCriterionMax 是评分表中未列出的评分项的满分。
const DefaultCriterionMax = 10.0

// Rubric 是评分项名称到满分的映射，由配置给出。
type Rubric map[string]float64

// MaxFor 返回评分项的满分，未列出的评分项为 10。
func (r Rubric) MaxFor(criterion string) float64 {
	if max, ok := r[criterion]; ok && max > 0 {
		return max
	}
	return DefaultCriterionMax
}

// Percentage 计算 score / max * 100，不做截断，展示层自行处理。
func (r Rubric) Percentage(criterion string, score float64) float64 {
	return score / r.MaxFor(criterion) * 100
}

// Suggestions 兼容评分服务以字符串或字符串数组返回的改进建议。
type Suggestions []string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Suggestions) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*s = nil
		return nil
	}
	*s = Suggestions{single}
	return nil
}

// EvaluationResult 是单份学生作业的评分结果，只在一次评分运行内有效。
type EvaluationResult struct {
	TotalScore             float64            `json:"total_score"`
	Scores                 map[string]float64 `json:"scores"`
	Feedback               string             `json:"feedback"`
	ImprovementSuggestions Suggestions        `json:"improvement_suggestions"`
}

// CriterionScore 是某个评分项的得分与百分比。
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Max       float64 `json:"max"`
	Percent   float64 `json:"percent"`
}

// Breakdown 按评分项名称排序返回每项得分。
func (e EvaluationResult) Breakdown(rubric Rubric) []CriterionScore {
	names := make([]string, 0, len(e.Scores))
	for name := range e.Scores {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]CriterionScore, 0, len(names))
	for _, name := range names {
		score := e.Scores[name]
		out = append(out, CriterionScore{
			Criterion: name,
			Score:     score,
			Max:       rubric.MaxFor(name),
			Percent:   rubric.Percentage(name, score),
		})
	}
	return out
}

// EvaluationRecord 定义了 evaluation_results 表的 ORM 模型。
// 同一份参考资料 + 同一问题的记录在每次评分后整体替换。
type EvaluationRecord struct {
	ID             uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID          string            `gorm:"type:char(36);not null;index" json:"runId"`
	ClassID        string            `gorm:"type:varchar(64);not null;index:idx_eval_ref" json:"classId"`
	ReferenceFile  string            `gorm:"type:varchar(255);not null;index:idx_eval_ref" json:"referenceFile"`
	QuestionHash   string            `gorm:"type:char(64);not null;index:idx_eval_ref" json:"-"`
	Question       string            `gorm:"type:text;not null" json:"question"`
	SubmissionFile string            `gorm:"type:varchar(255);not null" json:"submissionFile"`
	TotalScore     float64           `gorm:"not null" json:"totalScore"`
	Scores         datatypes.JSONMap `gorm:"type:json" json:"scores"`
	Feedback       string            `gorm:"type:text" json:"feedback"`
	Suggestions    datatypes.JSON    `gorm:"type:json" json:"suggestions"`
	EvaluatedAt    time.Time         `gorm:"not null" json:"evaluatedAt"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (EvaluationRecord) TableName() string {
	return "evaluation_results"
}
