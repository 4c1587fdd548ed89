package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/memory"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/repository"
)

// newTestDeps 创建内存数据库上的会话存储和对话窗口
func newTestDeps(t *testing.T) (*repository.SessionRepository, *memory.Window) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.ChatSession{}, &model.Message{}))

	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	return sessionRepo, memory.NewWindow(messageRepo, nil, 10)
}

// newTestSessionService 创建不带 Redis 的会话服务
func newTestSessionService(t *testing.T) (*SessionService, *repository.SessionRepository, *memory.Window) {
	t.Helper()
	sessionRepo, window := newTestDeps(t)
	svc := NewSessionService(sessionRepo, window, nil, "gpt-4o", 0.5)
	return svc, sessionRepo, window
}

// mockLLM 可编程的 LLM 客户端替身
type mockLLM struct {
	reply   string              // Generate 返回的文本
	err     error               // 非 nil 时调用失败
	deltas  []string            // GenerateStream 推送的片段，空时退化为一次性推送 reply
	lastReq llm.GenerateRequest // 最近一次请求，供断言
	calls   int                 // 调用计数
}

func (m *mockLLM) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockLLM) GenerateStream(_ context.Context, req llm.GenerateRequest, onDelta func(string) error) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	deltas := m.deltas
	if len(deltas) == 0 {
		deltas = []string{m.reply}
	}
	full := ""
	for _, delta := range deltas {
		full += delta
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	return full, nil
}
