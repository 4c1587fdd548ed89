// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"hackgpt-server/internal/model"
)

// SessionRepository 会话数据访问层
// 负责会话元数据相关的所有数据库操作
// 会话名称是唯一键，消息分区也使用同一个名称
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create 创建新会话
// session_name 上有唯一索引，名称冲突时返回的错误可用
// IsDuplicateKeyError 判断
// 参数:
//   - ctx: 上下文
//   - session: 会话对象，ID 和时间字段会被自动填充
//
// 返回:
//   - error: 数据库错误
func (r *SessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByName 根据名称获取会话
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - *model.ChatSession: 会话对象，未找到返回 nil
//   - error: 数据库错误
func (r *SessionRepository) GetByName(ctx context.Context, sessionName string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Where("session_name = ?", sessionName).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// List 获取所有会话
// 按创建时间倒序（最新创建的在前）
// 参数:
//   - ctx: 上下文
//
// 返回:
//   - []model.ChatSession: 会话列表
//   - error: 数据库错误
func (r *SessionRepository) List(ctx context.Context) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&sessions).Error
	return sessions, err
}

// Update 更新会话的可变配置字段
// 只覆盖 model / temperature / hack_prompt，名称和创建时间不变
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - modelName: 模型标识
//   - temperature: 采样温度
//   - hackPrompt: Hack Prompt 文本
//
// 返回:
//   - int64: 受影响的行数（0 表示会话不存在）
//   - error: 数据库错误
func (r *SessionRepository) Update(ctx context.Context, sessionName, modelName string, temperature float64, hackPrompt string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("session_name = ?", sessionName).
		Updates(map[string]interface{}{
			"model":       modelName,
			"temperature": temperature,
			"hack_prompt": hackPrompt,
		})
	return result.RowsAffected, result.Error
}

// Delete 删除会话记录
// 只删除元数据，消息的级联清理由上层调用 MessageRepository 完成
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - int64: 受影响的行数（0 表示会话不存在）
//   - error: 数据库错误
func (r *SessionRepository) Delete(ctx context.Context, sessionName string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_name = ?", sessionName).
		Delete(&model.ChatSession{})
	return result.RowsAffected, result.Error
}

// IsDuplicateKeyError 判断错误是否为唯一约束冲突
// GORM 在部分驱动上返回 ErrDuplicatedKey，其余驱动退化为
// 错误文本匹配（mysql 1062 / sqlite UNIQUE / postgres 23505）
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed")
}
