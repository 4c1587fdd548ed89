// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"strings"
	"unicode"

	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/memory"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/prompt"
	"hackgpt-server/internal/repository"
)

// ChatService 对话编排服务
// 串联会话元数据、对话窗口、Prompt 组装和 LLM 调用，完成一轮对话：
//
//	查会话配置 → 组装 Prompt → 加载窗口历史 → 调用 LLM → 落盘本轮对话
//
// LLM 调用期间不持有任何存储层锁；调用失败时本轮对话不会写入
type ChatService struct {
	sessionRepo *repository.SessionRepository // 会话数据访问层
	window      *memory.Window                // 对话窗口
	llmClient   llm.Client                    // LLM 客户端
	template    string                        // 已校验的 Prompt 模板
}

// NewChatService 创建 ChatService 实例
// 模板在这里一次性校验，缺占位符属于配置错误，直接启动失败
// 参数:
//   - sessionRepo: 会话数据访问层
//   - window: 对话窗口
//   - llmClient: LLM 客户端
//   - template: Prompt 模板文本
//
// 返回:
//   - *ChatService: 服务实例
//   - error: 模板校验错误
func NewChatService(
	sessionRepo *repository.SessionRepository,
	window *memory.Window,
	llmClient llm.Client,
	template string,
) (*ChatService, error) {
	if err := prompt.Validate(template); err != nil {
		return nil, err
	}
	return &ChatService{
		sessionRepo: sessionRepo,
		window:      window,
		llmClient:   llmClient,
		template:    template,
	}, nil
}

// Chat 执行一轮对话，返回模型回复
// LLM 失败时不追加任何消息，错误原样上抛（包装 llm.ErrLLMCall），不重试
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称（必填，没有隐式的"当前会话"）
//   - input: 用户输入
//
// 返回:
//   - string: 模型回复文本
//   - error: ErrNoActiveSession / ErrSessionNotFound / 存储或 LLM 错误
func (s *ChatService) Chat(ctx context.Context, sessionName, input string) (string, error) {
	return s.chat(ctx, sessionName, input, nil)
}

// ChatStream 流式执行一轮对话
// 每个增量片段调用一次 onDelta；完整回复仍作为返回值给出，
// 并且只有在完整回复组装完成后才落盘本轮对话
func (s *ChatService) ChatStream(ctx context.Context, sessionName, input string, onDelta func(delta string) error) (string, error) {
	return s.chat(ctx, sessionName, input, onDelta)
}

// chat Chat / ChatStream 的公共实现
func (s *ChatService) chat(ctx context.Context, sessionName, input string, onDelta func(delta string) error) (string, error) {
	if sessionName == "" {
		return "", ErrNoActiveSession
	}

	session, err := s.sessionRepo.GetByName(ctx, sessionName)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrSessionNotFound
	}

	// 组装 Prompt：hack prompt 进模板，history/input 槽位留到下面填
	composed, err := prompt.Compose(s.template, session.HackPrompt)
	if err != nil {
		return "", err
	}

	pairs, err := s.window.LoadWindow(ctx, sessionName, 0)
	if err != nil {
		return "", err
	}

	req := llm.GenerateRequest{
		Model:       session.Model,
		Temperature: session.Temperature,
		Prompt:      prompt.Render(composed, prompt.FormatHistory(pairs), input),
	}

	var reply string
	if onDelta != nil {
		reply, err = s.llmClient.GenerateStream(ctx, req, onDelta)
	} else {
		reply, err = s.llmClient.Generate(ctx, req)
	}
	if err != nil {
		// 调用失败，本轮不持久化
		return "", err
	}

	// 两条消息一个事务落盘，human 在前
	if err := s.window.AppendTurn(ctx, sessionName, input, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// History 加载会话的窗口历史，供 UI 渲染对话记录
// k 非正数时使用配置的默认窗口大小
func (s *ChatService) History(ctx context.Context, sessionName string, k int) ([]model.MessagePair, error) {
	session, err := s.sessionRepo.GetByName(ctx, sessionName)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.window.LoadWindow(ctx, sessionName, k)
}

// ClearMemory 清空会话记忆
// 幂等；sessionName 为空（没有活跃会话）时按无操作处理
func (s *ChatService) ClearMemory(ctx context.Context, sessionName string) error {
	if sessionName == "" {
		return nil
	}
	return s.window.Clear(ctx, sessionName)
}

// Summarize 用 LLM 给会话生成一个三个词以内的摘要标题
// 摘要只保留字母和数字，可直接用作新的会话基础名称
func (s *ChatService) Summarize(ctx context.Context, sessionName string) (string, error) {
	session, err := s.sessionRepo.GetByName(ctx, sessionName)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrSessionNotFound
	}

	pairs, err := s.window.LoadWindow(ctx, sessionName, 0)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, pair := range pairs {
		parts = append(parts, pair.Human, pair.AI)
	}
	conversation := strings.Join(parts, " ")

	reply, err := s.llmClient.Generate(ctx, llm.GenerateRequest{
		Model:       session.Model,
		Temperature: 0.5,
		Prompt:      "Summarize this conversation so that i could use it as a session name in 3 words: " + conversation,
	})
	if err != nil {
		return "", err
	}

	// 只保留字母和数字
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, reply), nil
}
