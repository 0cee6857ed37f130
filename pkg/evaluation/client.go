// Package evaluation provides a client for the automated answer evaluation service.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"classdoc-go/internal/config"
	"classdoc-go/internal/model"
	"classdoc-go/pkg/log"
)

// Request 对应 POST evaluate-answer 的请求体。
type Request struct {
	Question           string             `json:"question"`
	StudentFileID      string             `json:"student_file_id"`
	TeacherFileIDs     []string           `json:"teacher_file_ids"`
	EvaluationCriteria map[string]float64 `json:"evaluation_criteria,omitempty"`
}

// Response 对应评分服务的响应。success=false 时 Error 给出原因。
type Response struct {
	Success    bool                    `json:"success"`
	Evaluation *model.EvaluationResult `json:"evaluation"`
	Error      string                  `json:"error,omitempty"`
}

// Client defines the interface for an evaluation client.
type Client interface {
	EvaluateAnswer(ctx context.Context, req Request) (*Response, error)
}

type httpClient struct {
	cfg    config.EvaluationConfig
	client *http.Client
}

// NewClient creates a new evaluation client.
func NewClient(cfg config.EvaluationConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// EvaluateAnswer 调用评分服务评估一份学生作业。
// 传输失败与非 2xx 返回 error；服务端明确返回 success=false 时不视为调用失败。
func (c *httpClient) EvaluateAnswer(ctx context.Context, er Request) (*Response, error) {
	reqBytes, err := json.Marshal(er)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.EvaluateEndpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EvaluationClient] 调用评分服务失败, student_file_id: %s, error: %v", er.StudentFileID, err)
		return nil, fmt.Errorf("failed to call evaluation api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read evaluation response: %w", err)
	}

	var evalResp Response
	decodeErr := json.Unmarshal(body, &evalResp)

	if resp.StatusCode != http.StatusOK {
		// Flask 端在 400/500 时同样返回 {success:false, error}
		msg := string(body)
		if decodeErr == nil && evalResp.Error != "" {
			msg = evalResp.Error
		}
		log.Errorf("[EvaluationClient] 评分服务返回非 200 状态码: %s, student_file_id: %s", resp.Status, er.StudentFileID)
		return nil, fmt.Errorf("evaluation api returned non-200 status: %s: %s", resp.Status, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode evaluation response: %w", decodeErr)
	}
	return &evalResp, nil
}
