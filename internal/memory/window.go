// Package memory 提供会话级的对话窗口记忆
// 在消息日志之上维护一个有界视图：LLM 每次只看到最近 K 轮对话，
// 既限制 Prompt 体积，也限制 Token 成本
package memory

import (
	"context"
	"log"

	"hackgpt-server/internal/cache"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/repository"
)

// DefaultWindowK 默认窗口大小（轮数）
const DefaultWindowK = 10

// Window 对话窗口记忆
// 读路径优先走 Redis 快照，未命中回源消息存储并回填；
// 写路径先落库再失效快照。Redis 故障一律降级为直接读库
type Window struct {
	messageRepo *repository.MessageRepository // 消息存储
	cache       *cache.RedisCache             // 窗口快照缓存，可为 nil
	defaultK    int                           // 默认窗口大小
}

// NewWindow 创建 Window 实例
// 参数:
//   - messageRepo: 消息数据访问层
//   - redisCache: 快照缓存，传 nil 表示不启用缓存
//   - defaultK: 默认窗口大小，非正数时使用 DefaultWindowK
func NewWindow(messageRepo *repository.MessageRepository, redisCache *cache.RedisCache, defaultK int) *Window {
	if defaultK <= 0 {
		defaultK = DefaultWindowK
	}
	return &Window{
		messageRepo: messageRepo,
		cache:       redisCache,
		defaultK:    defaultK,
	}
}

// DefaultK 返回默认窗口大小
func (w *Window) DefaultK() int {
	return w.defaultK
}

// LoadWindow 加载会话的最近 K 轮对话
// 按时间正序返回最近的 min(K, 总轮数) 轮；K 非正数时使用默认值
// 角色过滤先于截断：非 human/ai 的消息不占用窗口名额
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - k: 窗口大小（轮数）
//
// 返回:
//   - []model.MessagePair: 对话轮次列表，没有历史时为空切片
//   - error: 存储错误
func (w *Window) LoadWindow(ctx context.Context, sessionName string, k int) ([]model.MessagePair, error) {
	if k <= 0 {
		k = w.defaultK
	}

	// 先查快照
	if w.cache != nil {
		pairs, hit, err := w.cache.GetWindow(ctx, sessionName, k)
		if err != nil {
			log.Printf("[WARN] window cache read failed for %q: %v", sessionName, err)
		} else if hit {
			return pairs, nil
		}
	}

	// 回源：一轮是两条消息，取最近 2K 条（已按角色过滤）
	messages, err := w.messageRepo.GetWindowBySessionName(ctx, sessionName, 2*k)
	if err != nil {
		return nil, err
	}
	pairs := pairMessages(messages)

	// 回填快照，失败不影响结果
	if w.cache != nil {
		if err := w.cache.SetWindow(ctx, sessionName, k, pairs); err != nil {
			log.Printf("[WARN] window cache write failed for %q: %v", sessionName, err)
		}
	}
	return pairs, nil
}

// AppendTurn 持久化一轮对话
// 两条消息在一个事务中写入（human 在前），随后失效该会话的窗口快照
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - humanText: 用户输入
//   - aiText: 模型回复
//
// 返回:
//   - error: 存储错误
func (w *Window) AppendTurn(ctx context.Context, sessionName, humanText, aiText string) error {
	if err := w.messageRepo.AppendPair(ctx, sessionName, humanText, aiText); err != nil {
		return err
	}
	w.invalidate(ctx, sessionName)
	return nil
}

// Clear 清空会话的全部历史
// 幂等：对空会话或不存在的会话调用也会成功
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - error: 存储错误
func (w *Window) Clear(ctx context.Context, sessionName string) error {
	if err := w.messageRepo.DeleteBySessionName(ctx, sessionName); err != nil {
		return err
	}
	w.invalidate(ctx, sessionName)
	return nil
}

// invalidate 失效会话的窗口快照，缓存错误只记日志
func (w *Window) invalidate(ctx context.Context, sessionName string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.InvalidateWindows(ctx, sessionName); err != nil {
		log.Printf("[WARN] window cache invalidate failed for %q: %v", sessionName, err)
	}
}

// pairMessages 将按时间正序的消息序列折叠为对话轮次
// human 开启一轮，紧随的 ai 结束一轮
// 窗口边界截断产生的孤儿消息（开头多出的 ai、结尾未配对的 human）被丢弃
func pairMessages(messages []model.Message) []model.MessagePair {
	pairs := make([]model.MessagePair, 0, len(messages)/2)
	var pending *model.MessagePair

	for i := range messages {
		switch messages[i].Role {
		case model.MessageRoleHuman:
			// 前一个 human 没等到回复就出现了新的 human，丢弃前者
			pending = &model.MessagePair{Human: messages[i].Content}
		case model.MessageRoleAI:
			if pending == nil {
				// 窗口从半轮中间切开，丢弃这条 ai
				continue
			}
			pending.AI = messages[i].Content
			pairs = append(pairs, *pending)
			pending = nil
		}
	}
	return pairs
}
