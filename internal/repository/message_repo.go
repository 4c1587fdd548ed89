// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"
	"hackgpt-server/internal/model"
)

// MessageRepository 消息数据访问层
// 对话历史的只追加日志，按会话名称分区
// 负责消息相关的所有数据库操作
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append 追加一条消息
// 单条 INSERT，由数据库保证原子性：要么完整落盘，要么完全不写入
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - role: 消息角色（human / ai）
//   - content: 消息内容
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) Append(ctx context.Context, sessionName, role, content string) error {
	message := &model.Message{
		SessionName: sessionName,
		Role:        role,
		Content:     content,
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// AppendPair 在一个事务中追加一轮对话（先 human 后 ai）
// 两条消息要么都写入，要么都不写入
// 避免出现只有半轮对话（有 ai 回复却没有对应 human 输入）的历史
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - humanText: 用户输入
//   - aiText: 模型回复
//
// 返回:
//   - error: 数据库错误（事务回滚后返回）
func (r *MessageRepository) AppendPair(ctx context.Context, sessionName, humanText, aiText string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		human := &model.Message{
			SessionName: sessionName,
			Role:        model.MessageRoleHuman,
			Content:     humanText,
		}
		if err := tx.Create(human).Error; err != nil {
			return err
		}
		ai := &model.Message{
			SessionName: sessionName,
			Role:        model.MessageRoleAI,
			Content:     aiText,
		}
		return tx.Create(ai).Error
	})
}

// GetBySessionName 获取会话的所有消息
// 按插入顺序正序排列（最早的在前），会话不存在时返回空切片
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - []model.Message: 消息列表
//   - error: 数据库错误
func (r *MessageRepository) GetBySessionName(ctx context.Context, sessionName string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("session_name = ?", sessionName).
		Order("id ASC"). // 主键即插入顺序
		Find(&messages).Error
	return messages, err
}

// GetWindowBySessionName 获取会话的最新 N 条对话消息
// 只统计 human / ai 两种角色，其他角色的消息在截断之前就被过滤掉
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//   - limit: 要获取的消息数量（轮数的两倍）
//
// 返回:
//   - []model.Message: 消息列表（按时间正序）
//   - error: 数据库错误
func (r *MessageRepository) GetWindowBySessionName(ctx context.Context, sessionName string, limit int) ([]model.Message, error) {
	var messages []model.Message

	// 子查询：先按插入顺序倒序取最新的 N 条
	// 然后外层查询再按正序排列
	// 这样可以得到最新的 N 条消息，且顺序正确
	subQuery := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("session_name = ? AND role IN ?", sessionName,
			[]string{model.MessageRoleHuman, model.MessageRoleAI}).
		Order("id DESC").
		Limit(limit)

	err := r.db.WithContext(ctx).
		Table("(?) as t", subQuery).
		Order("id ASC").
		Find(&messages).Error

	return messages, err
}

// CountBySessionName 统计会话的消息数量
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - int64: 消息数量
//   - error: 数据库错误
func (r *MessageRepository) CountBySessionName(ctx context.Context, sessionName string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("session_name = ?", sessionName).Count(&count).Error
	return count, err
}

// DeleteBySessionName 删除会话的所有消息
// 幂等：清空一个空会话或不存在的会话也会静默成功
// 在清空会话记忆和删除会话时使用
// 参数:
//   - ctx: 上下文
//   - sessionName: 会话名称
//
// 返回:
//   - error: 数据库错误
func (r *MessageRepository) DeleteBySessionName(ctx context.Context, sessionName string) error {
	return r.db.WithContext(ctx).Where("session_name = ?", sessionName).Delete(&model.Message{}).Error
}
