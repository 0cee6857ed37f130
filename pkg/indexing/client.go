// Package indexing 提供了与外部文档索引/分析服务交互的客户端。
// 该服务负责 PDF 的文本抽取、向量化、问答与对比，这里只做 HTTP 调用。
package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"classdoc-go/internal/config"
	"classdoc-go/pkg/log"
)

// Error 表示索引服务返回了非 2xx 响应，Detail 是服务端的 detail 字段原文。
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("indexing service returned status %d: %s", e.StatusCode, e.Detail)
}

// Detail 提取错误中的服务端说明，非 *Error 时返回错误文本。
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StatusResponse 对应 GET status/{name} 的响应。
type StatusResponse struct {
	IsProcessed bool   `json:"is_processed"`
	Type        string `json:"type,omitempty"`
}

// SubmitRequest 描述一次“提交索引”请求。
type SubmitRequest struct {
	FileName  string
	Content   []byte
	IsTeacher bool
	ClassID   string
}

// QueryRequest 对应 POST query 的请求体。
type QueryRequest struct {
	Question        string `json:"question"`
	CustomPrompt    string `json:"custom_prompt"`
	FileName        string `json:"filename"`
	StudentFileName string `json:"student_filename,omitempty"`
}

// CompareRequest 对应 POST compare-pdfs 的请求体，可选字段为空时发送 null。
type CompareRequest struct {
	TeacherFile  string  `json:"teacher_file"`
	StudentFile  string  `json:"student_file"`
	Question     *string `json:"question"`
	CustomPrompt *string `json:"custom_prompt"`
}

// Client 定义了编排层需要的索引服务操作。
type Client interface {
	Status(ctx context.Context, name string) (*StatusResponse, error)
	Submit(ctx context.Context, req SubmitRequest) error
	Query(ctx context.Context, req QueryRequest) (string, error)
	Compare(ctx context.Context, req CompareRequest) (string, error)
	Delete(ctx context.Context, name string) error
}

type httpClient struct {
	cfg    config.IndexingConfig
	client *http.Client
}

// NewClient 创建一个新的索引服务客户端。
func NewClient(cfg config.IndexingConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Status 查询文档是否已被索引。
func (c *httpClient) Status(ctx context.Context, name string) (*StatusResponse, error) {
	endpoint := c.cfg.BaseURL + c.cfg.StatusEndpoint + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	var status StatusResponse
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Submit 以 multipart 形式提交 PDF。
// 配置了角色专用端点时只发送文件，否则走通用端点并附带 is_teacher / class_id。
func (c *httpClient) Submit(ctx context.Context, sr SubmitRequest) error {
	endpoint, generic := c.submitEndpoint(sr.IsTeacher)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", sr.FileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(sr.Content); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	if generic {
		_ = writer.WriteField("is_teacher", strconv.FormatBool(sr.IsTeacher))
		if sr.ClassID != "" {
			_ = writer.WriteField("class_id", sr.ClassID)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Infof("[IndexingClient] 提交文档进行索引, file: %s, endpoint: %s, size: %d", sr.FileName, endpoint, len(sr.Content))
	return c.do(req, nil)
}

func (c *httpClient) submitEndpoint(isTeacher bool) (string, bool) {
	if isTeacher && c.cfg.TeacherEndpoint != "" {
		return c.cfg.TeacherEndpoint, false
	}
	if !isTeacher && c.cfg.StudentEndpoint != "" {
		return c.cfg.StudentEndpoint, false
	}
	return c.cfg.ProcessEndpoint, true
}

// Query 针对已索引文档提问。
func (c *httpClient) Query(ctx context.Context, qr QueryRequest) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, c.cfg.QueryEndpoint, qr, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Compare 对比教师文档与学生文档。
// 不同版本的服务端分别使用 comparison 与 comparison_result 字段。
func (c *httpClient) Compare(ctx context.Context, cr CompareRequest) (string, error) {
	var resp struct {
		Comparison       string `json:"comparison"`
		ComparisonResult string `json:"comparison_result"`
	}
	if err := c.postJSON(ctx, c.cfg.CompareEndpoint, cr, &resp); err != nil {
		return "", err
	}
	if resp.Comparison != "" {
		return resp.Comparison, nil
	}
	return resp.ComparisonResult, nil
}

// Delete 请求删除文档的索引条目。
func (c *httpClient) Delete(ctx context.Context, name string) error {
	endpoint := c.cfg.BaseURL + c.cfg.DeleteEndpoint + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	return c.do(req, nil)
}

func (c *httpClient) postJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do 执行请求；非 2xx 时解析 detail 并返回 *Error，out 为 nil 时忽略响应体。
func (c *httpClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[IndexingClient] 调用索引服务失败, %s %s, error: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("failed to call indexing service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read indexing response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := parseDetail(body)
		log.Warnf("[IndexingClient] 索引服务返回非 2xx 状态码: %s %s -> %d, detail: %s", req.Method, req.URL.Path, resp.StatusCode, detail)
		return &Error{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode indexing response: %w", err)
	}
	return nil
}

// parseDetail 取出 {"detail": ...}；detail 不是字符串（如校验错误列表）时保留其 JSON 文本。
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	return text
}
