// Package llm 封装对外部 LLM 服务的调用
// 供应商（OpenAI / Azure OpenAI / Qwen）在启动时由配置选定，
// 运行期只通过 Client 接口交互，不做任何类型分支
package llm

import (
	"context"
	"errors"
	"fmt"

	"hackgpt-server/internal/config"
)

// ErrLLMCall LLM 调用失败（网络、认证、限流等）
// 所有供应商的传输层错误都会包装这个哨兵值
var ErrLLMCall = errors.New("llm call failed")

// GenerateRequest 一次生成请求
// Prompt 是已经填充完 history / input 的最终文本
type GenerateRequest struct {
	Model       string  // 模型标识
	Temperature float64 // 采样温度 0.0 - 1.0
	Prompt      string  // 最终 Prompt 文本
}

// Client LLM 供应商的能力接口
type Client interface {
	// Generate 同步生成，返回完整回复文本
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream 流式生成
	// 每个增量片段调用一次 onDelta，onDelta 返回错误则中止；
	// 无论是否流式，最终的完整文本都作为返回值给出
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(delta string) error) (string, error)
}

// New 根据配置创建 LLM 客户端
// 未知的 provider 是启动错误
// 参数:
//   - cfg: LLM 配置
//
// 返回:
//   - Client: 客户端实例
//   - error: 配置错误
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIClient(cfg), nil
	case "azure":
		return newAzureClient(cfg)
	case "qwen":
		return newQwenClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
