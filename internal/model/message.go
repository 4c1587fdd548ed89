// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// MessageRole 消息角色常量
const (
	MessageRoleHuman = "human" // 用户输入
	MessageRoleAI    = "ai"    // 模型回复
)

// Message 消息模型
// 对应数据库表 messages
// 存储会话中的每一条消息，只追加、不修改
// 单条消息一旦写入即不可变，只有整个会话的清空操作会删除它们
type Message struct {
	// ID 消息唯一标识，自增主键
	// 同一会话内按插入顺序递增，作为消息顺序的最终依据
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionName 所属会话名称，外键关联 chat_sessions.session_name
	// 消息按会话名称分区
	SessionName string `gorm:"size:255;index;not null" json:"session_name"`

	// Role 消息角色
	// human: 用户发送的消息
	// ai: 模型的回复
	// 其他角色的消息在构建对话窗口时会被过滤掉
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容
	// 使用 TEXT 类型存储，可以存储较长的内容
	Content string `gorm:"type:text;not null" json:"content"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// MessagePair 一轮对话
// 一条用户输入与对应的模型回复
type MessagePair struct {
	Human string `json:"human"` // 用户输入
	AI    string `json:"ai"`    // 模型回复
}
