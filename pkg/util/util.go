// Package util 提供通用工具函数
package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionName 基于基础名称生成会话名称
// 格式: <base>_<8 位十六进制>
// 后缀取自 UUID v4，碰撞概率可以忽略但不保证唯一，
// 最终唯一性由数据库的唯一索引兜底
// 参数:
//   - base: 基础名称
//
// 返回:
//   - string: 生成的会话名称
func GenerateSessionName(base string) string {
	// uuid.New() 生成 UUID v4（随机生成）
	// 去掉连字符后取前 8 个字符作为后缀
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return base + "_" + suffix
}
