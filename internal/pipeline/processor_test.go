package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"classdoc-go/internal/model"
	"classdoc-go/internal/pipeline"
	"classdoc-go/pkg/tasks"

	"github.com/stretchr/testify/require"
)

type replaceCall struct {
	classID, referenceFile, questionHash string
	records                              []*model.EvaluationRecord
}

type fakeEvaluations struct {
	calls []replaceCall
	err   error
}

func (f *fakeEvaluations) ReplaceRun(classID, referenceFile, questionHash string, records []*model.EvaluationRecord) error {
	f.calls = append(f.calls, replaceCall{classID, referenceFile, questionHash, records})
	return f.err
}

func (f *fakeEvaluations) FindByReference(string, string) ([]model.EvaluationRecord, error) {
	return nil, nil
}

func (f *fakeEvaluations) DeleteByClass(string) error { return nil }

func sampleTask() tasks.EvaluationRecordTask {
	return tasks.EvaluationRecordTask{
		RunID:         "run-1",
		ClassID:       "7",
		ReferenceFile: "midterm_key.pdf",
		Question:      "Explain  photosynthesis",
		EvaluatedAt:   time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Results: map[string]model.EvaluationResult{
			"bob.pdf": {TotalScore: 64, Scores: map[string]float64{"completeness": 20}},
			"alice.pdf": {
				TotalScore:             82,
				Scores:                 map[string]float64{"content_accuracy": 35},
				Feedback:               "Clear.",
				ImprovementSuggestions: model.Suggestions{"Mention the Calvin cycle."},
			},
		},
	}
}

func TestProcessReplacesRunForReferenceAndQuestion(t *testing.T) {
	// given
	repo := &fakeEvaluations{}
	p := pipeline.NewProcessor(repo)

	// when
	err := p.Process(context.Background(), sampleTask())

	// then
	require.NoError(t, err)
	require.Len(t, repo.calls, 1)
	call := repo.calls[0]
	require.Equal(t, "7", call.classID)
	require.Equal(t, "midterm_key.pdf", call.referenceFile)
	require.Equal(t, pipeline.QuestionHash("Explain photosynthesis"), call.questionHash)
	require.Len(t, call.records, 2)
	require.Equal(t, "alice.pdf", call.records[0].SubmissionFile)
	require.Equal(t, 35.0, call.records[0].Scores["content_accuracy"])

	var suggestions []string
	require.NoError(t, json.Unmarshal(call.records[0].Suggestions, &suggestions))
	require.Equal(t, []string{"Mention the Calvin cycle."}, suggestions)
	require.JSONEq(t, `[]`, string(call.records[1].Suggestions))
}

func TestProcessEmptyRunStillReplaces(t *testing.T) {
	repo := &fakeEvaluations{}
	task := sampleTask()
	task.Results = nil

	require.NoError(t, pipeline.NewProcessor(repo).Process(context.Background(), task))

	require.Len(t, repo.calls, 1)
	require.Empty(t, repo.calls[0].records)
}

func TestProcessSkipsTaskWithoutReference(t *testing.T) {
	repo := &fakeEvaluations{}
	task := sampleTask()
	task.ReferenceFile = ""

	require.NoError(t, pipeline.NewProcessor(repo).Process(context.Background(), task))

	require.Empty(t, repo.calls)
}

func TestProcessPropagatesRepositoryError(t *testing.T) {
	repo := &fakeEvaluations{err: errors.New("deadlock")}

	err := pipeline.NewProcessor(repo).Process(context.Background(), sampleTask())

	require.ErrorContains(t, err, "deadlock")
}

func TestQuestionHashNormalizesWhitespace(t *testing.T) {
	require.Equal(t, pipeline.QuestionHash("a  b\n c"), pipeline.QuestionHash(" a b c "))
	require.NotEqual(t, pipeline.QuestionHash("a b"), pipeline.QuestionHash("a c"))
	require.Len(t, pipeline.QuestionHash("x"), 64)
}
