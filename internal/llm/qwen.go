package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hackgpt-server/internal/config"
)

const (
	// DashScope API Endpoint
	qwenEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
)

// qwenClient 调用阿里云 DashScope 的客户端
type qwenClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// newQwenClient 创建 Qwen 客户端
func newQwenClient(cfg config.LLMConfig) *qwenClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = qwenEndpoint
	}
	return &qwenClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeoutOf(cfg), // 设置超时
		},
	}
}

// dashScopeRequest 阿里云 API 请求结构
type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []dashScopeMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string  `json:"result_format"` // "message"
		Temperature  float64 `json:"temperature,omitempty"`
	} `json:"parameters"`
}

type dashScopeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// dashScopeResponse 阿里云 API 响应结构
type dashScopeResponse struct {
	Output struct {
		Choices []struct {
			Message dashScopeMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Generate 同步生成
func (c *qwenClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: qwen api key not configured", ErrLLMCall)
	}

	// 1. 构造请求 Body
	dashReq := dashScopeRequest{
		Model: req.Model,
	}
	dashReq.Input.Messages = []dashScopeMessage{
		{Role: "user", Content: req.Prompt},
	}
	dashReq.Parameters.ResultFormat = "message"
	dashReq.Parameters.Temperature = req.Temperature

	jsonData, err := json.Marshal(dashReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}

	// 2. 发送 HTTP 请求
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrLLMCall, resp.StatusCode, string(bodyBytes))
	}

	// 3. 解析响应
	var dashResp dashScopeResponse
	if err := json.Unmarshal(bodyBytes, &dashResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrLLMCall, err)
	}

	if dashResp.Code != "" {
		return "", fmt.Errorf("%w: %s - %s", ErrLLMCall, dashResp.Code, dashResp.Message)
	}

	if len(dashResp.Output.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrLLMCall)
	}

	return strings.TrimSpace(dashResp.Output.Choices[0].Message.Content), nil
}

// GenerateStream 流式生成
// DashScope 的 SSE 流式暂未接入，退化为同步生成后一次性回调
func (c *qwenClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(delta string) error) (string, error) {
	content, err := c.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		if err := onDelta(content); err != nil {
			return "", err
		}
	}
	return content, nil
}
