package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackgpt-server/internal/model"
)

// newTestDB 创建内存 SQLite 数据库并迁移表结构
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存库在多个连接之间不共享，限制为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.ChatSession{}, &model.Message{}))
	return db
}

func TestMessageAppendAndLoadOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "demo", model.MessageRoleHuman, "first"))
	require.NoError(t, repo.Append(ctx, "demo", model.MessageRoleAI, "second"))
	require.NoError(t, repo.Append(ctx, "demo", model.MessageRoleHuman, "third"))

	messages, err := repo.GetBySessionName(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)
}

func TestMessageLoadUnknownSessionIsEmpty(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)

	messages, err := repo.GetBySessionName(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessageAppendPairWritesBothInOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendPair(ctx, "demo", "hi", "hello"))

	messages, err := repo.GetBySessionName(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.MessageRoleHuman, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, model.MessageRoleAI, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
}

func TestMessageWindowFiltersRolesBeforeTruncation(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	// 两轮正常对话，中间插入若干非 human/ai 角色的消息
	require.NoError(t, repo.AppendPair(ctx, "demo", "q1", "a1"))
	require.NoError(t, repo.Append(ctx, "demo", "system", "noise"))
	require.NoError(t, repo.Append(ctx, "demo", "tool", "noise"))
	require.NoError(t, repo.AppendPair(ctx, "demo", "q2", "a2"))

	// limit=4 正好是两轮：过滤在截断之前，噪声消息不占名额
	messages, err := repo.GetWindowBySessionName(ctx, "demo", 4)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "q1", messages[0].Content)
	assert.Equal(t, "a2", messages[3].Content)
}

func TestMessageDeleteIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendPair(ctx, "demo", "hi", "hello"))
	require.NoError(t, repo.DeleteBySessionName(ctx, "demo"))

	// 第二次清空同样成功
	require.NoError(t, repo.DeleteBySessionName(ctx, "demo"))

	count, err := repo.CountBySessionName(ctx, "demo")
	require.NoError(t, err)
	assert.Zero(t, count)

	// 不存在的会话也静默成功
	require.NoError(t, repo.DeleteBySessionName(ctx, "missing"))
}

func TestSessionCreateAndGetByName(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	session := &model.ChatSession{
		SessionName: "Demo_abcd1234",
		Model:       "gpt-4o",
		Temperature: 0.5,
		HackPrompt:  "be terse",
	}
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByName(ctx, "Demo_abcd1234")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, "be terse", got.HackPrompt)

	missing, err := repo.GetByName(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &model.ChatSession{
			SessionName: name,
			Model:       "gpt-4o",
			Temperature: 0.5,
		}))
	}

	sessions, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "three", sessions[0].SessionName)
	assert.Equal(t, "two", sessions[1].SessionName)
	assert.Equal(t, "one", sessions[2].SessionName)
}

func TestSessionUniqueNameConflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.ChatSession{
		SessionName: "dup",
		Model:       "gpt-4o",
		Temperature: 0.5,
	}))

	err := repo.Create(ctx, &model.ChatSession{
		SessionName: "dup",
		Model:       "gpt-4o",
		Temperature: 0.5,
	})
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyError(err))
}

func TestSessionUpdateAndDeleteRowCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.ChatSession{
		SessionName: "demo",
		Model:       "gpt-4o",
		Temperature: 0.5,
	}))

	rows, err := repo.Update(ctx, "demo", "gpt-4", 0.9, "override")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	got, err := repo.GetByName(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 0.9, got.Temperature)
	assert.Equal(t, "override", got.HackPrompt)

	// 不存在的会话：0 行受影响，无错误
	rows, err = repo.Update(ctx, "missing", "gpt-4", 0.9, "")
	require.NoError(t, err)
	assert.Zero(t, rows)

	rows, err = repo.Delete(ctx, "demo")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.Delete(ctx, "demo")
	require.NoError(t, err)
	assert.Zero(t, rows)
}
