// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// 模型、温度的默认值
// 当创建会话时未指定配置则使用这些值
const (
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.5
)

// ChatSession 会话模型
// 对应数据库表 chat_sessions
// 表示用户与 LLM 的一个持久化对话上下文
// 每个会话携带自己的模型、温度和 Hack Prompt 配置
type ChatSession struct {
	// ID 会话唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionName 会话名称
	// 同时作为消息分区的外键（messages.session_name）
	// 创建时由基础名称加 8 位随机十六进制后缀生成
	// 数据库层面强制唯一，随机后缀碰撞会触发唯一约束错误
	SessionName string `gorm:"size:255;uniqueIndex;not null" json:"session_name"`

	// Model 使用的 LLM 模型标识
	// 如 gpt-4o / gpt-4o-mini / gpt-4
	Model string `gorm:"size:100;not null" json:"model"`

	// Temperature 采样温度，范围 0.0 - 1.0
	Temperature float64 `gorm:"not null;default:0.5" json:"temperature"`

	// HackPrompt 用户提供的系统级指令覆盖文本
	// 会被替换进 Prompt 模板的 {hackprompt} 槽位，可以为空
	HackPrompt string `gorm:"type:text" json:"hack_prompt"`

	// CreatedAt 创建时间
	// 会话列表按此字段倒序排列（最新创建的在前）
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Messages 会话中的所有消息（一对多关系，按 session_name 关联）
	Messages []Message `gorm:"foreignKey:SessionName;references:SessionName" json:"messages,omitempty"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "chat_sessions"
}
