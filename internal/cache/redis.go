// Package cache 提供 Redis 缓存操作的封装
// 缓存对话窗口快照和当前活跃会话指针，加速 UI 刷新时的重放
// 缓存永远只是加速层：任何未命中或 Redis 故障都回源数据库
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"hackgpt-server/internal/config"
	"hackgpt-server/internal/model"
)

// 窗口快照的过期时间
// 快照在追加、清空、删除时都会被主动失效，TTL 只是兜底
const windowTTL = 30 * time.Minute

// activeSessionKey 活跃会话指针的 Key
// 单操作者进程，全局只有一个指针
const activeSessionKey = "hackgpt:active_session"

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username, // 阿里云 Redis 需要用户名
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ==================== 窗口快照缓存 ====================
// 以 JSON 存储某个会话在某个窗口大小下的最近对话轮次
// Key 里带上 k，不同窗口大小互不污染

// windowKey 生成窗口快照的 Key
func windowKey(sessionName string, k int) string {
	return fmt.Sprintf("hackgpt:session:%s:window:%d", sessionName, k)
}

// SetWindow 写入窗口快照
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - k: 窗口大小（轮数）
//   - pairs: 窗口内容，按时间正序
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) SetWindow(ctx context.Context, sessionName string, k int, pairs []model.MessagePair) error {
	data, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, windowKey(sessionName, k), data, windowTTL).Err()
}

// GetWindow 读取窗口快照
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - k: 窗口大小（轮数）
//
// 返回:
//   - []model.MessagePair: 窗口内容，未命中返回 nil
//   - bool: 是否命中
//   - error: Redis 操作错误
func (c *RedisCache) GetWindow(ctx context.Context, sessionName string, k int) ([]model.MessagePair, bool, error) {
	data, err := c.client.Get(ctx, windowKey(sessionName, k)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var pairs []model.MessagePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		// 快照损坏按未命中处理，同时删掉脏数据
		c.client.Del(ctx, windowKey(sessionName, k))
		return nil, false, nil
	}
	return pairs, true, nil
}

// InvalidateWindows 删除会话的所有窗口快照
// 追加消息、清空记忆、删除会话时调用
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) InvalidateWindows(ctx context.Context, sessionName string) error {
	// 窗口大小是小整数，用 SCAN 按前缀匹配删除
	pattern := fmt.Sprintf("hackgpt:session:%s:window:*", sessionName)
	iter := c.client.Scan(ctx, 0, pattern, 64).Iterator()

	pipe := c.client.Pipeline()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ==================== 活跃会话指针 ====================
// 记录操作者当前停留在哪个会话上，跨进程重启保留
// 仅供 UI 恢复状态使用，核心操作都显式携带会话名称

// SetActiveSession 设置当前活跃会话
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) SetActiveSession(ctx context.Context, sessionName string) error {
	return c.client.Set(ctx, activeSessionKey, sessionName, 0).Err()
}

// GetActiveSession 获取当前活跃会话名称
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - string: 会话名称，没有活跃会话时为空字符串
//   - error: Redis 操作错误
func (c *RedisCache) GetActiveSession(ctx context.Context) (string, error) {
	name, err := c.client.Get(ctx, activeSessionKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return name, err
}

// ClearActiveSession 清除活跃会话指针
// 活跃会话被删除时调用
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) ClearActiveSession(ctx context.Context) error {
	return c.client.Del(ctx, activeSessionKey).Err()
}
