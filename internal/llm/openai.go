package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"hackgpt-server/internal/config"
)

// openAIClient 基于 go-openai 的客户端
// OpenAI 和 Azure OpenAI 共用这一个实现，区别只在 ClientConfig
type openAIClient struct {
	client *openai.Client
}

// newOpenAIClient 创建 OpenAI 客户端
// Endpoint 非空时覆盖默认的 api.openai.com
func newOpenAIClient(cfg config.LLMConfig) *openAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	clientConfig.HTTPClient.Timeout = timeoutOf(cfg)
	return &openAIClient{client: openai.NewClientWithConfig(clientConfig)}
}

// newAzureClient 创建 Azure OpenAI 客户端
// Azure 以部署名称而不是模型名称寻址，所有会话模型都映射到配置的部署
func newAzureClient(cfg config.LLMConfig) (*openAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure provider requires llm.endpoint")
	}
	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.AzureAPIVersion != "" {
		clientConfig.APIVersion = cfg.AzureAPIVersion
	}
	if deployment := cfg.AzureDeployment; deployment != "" {
		clientConfig.AzureModelMapperFunc = func(model string) string {
			return deployment
		}
	}
	clientConfig.HTTPClient.Timeout = timeoutOf(cfg)
	return &openAIClient{client: openai.NewClientWithConfig(clientConfig)}, nil
}

// timeoutOf 返回配置的 HTTP 超时
func timeoutOf(cfg config.LLMConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// chatRequest 把生成请求转换为 chat completion 请求
// 渲染后的完整模板作为单条 user 消息发送，历史不拆分为消息数组
func chatRequest(req GenerateRequest) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	}
}

// Generate 同步生成
func (c *openAIClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, chatRequest(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrLLMCall)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream 流式生成
// 增量片段逐个交给 onDelta，结束后返回拼接好的完整文本
func (c *openAIClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(delta string) error) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, chatRequest(req))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLMCall, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}
