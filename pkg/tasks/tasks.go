// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"time"

	"classdoc-go/internal/model"
)

// EvaluationRecordTask carries the outcome of one evaluation run so the catalog
// copy in evaluation_results can be replaced asynchronously.
type EvaluationRecordTask struct {
	RunID         string                            `json:"run_id"`
	ClassID       string                            `json:"class_id"`
	ReferenceFile string                            `json:"reference_file"`
	Question      string                            `json:"question"`
	EvaluatedAt   time.Time                         `json:"evaluated_at"`
	Results       map[string]model.EvaluationResult `json:"results"`
}
