// Package response 提供统一的 HTTP 响应格式
// 所有 API 都使用相同的响应结构，便于前端处理
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code: 业务状态码（0 表示成功）
// message: 提示信息
// data: 响应数据
type Response struct {
	Code    int         `json:"code"`           // 业务状态码
	Message string      `json:"message"`        // 提示信息
	Data    interface{} `json:"data,omitempty"` // 响应数据，可选
}

// 业务状态码定义
const (
	CodeSuccess         = 0    // 成功
	CodeBadRequest      = 1000 // 请求参数错误
	CodeNotFound        = 1003 // 资源不存在
	CodeInternalError   = 1004 // 服务器内部错误
	CodeSessionNotFound = 1301 // 会话不存在
	CodeNoActiveSession = 1302 // 没有活跃会话
	CodeDuplicateName   = 1303 // 会话名称冲突
	CodeLLMCallFailed   = 1401 // LLM 调用失败
)

// Success 返回成功响应
// 参数:
//   - c: Gin 上下文
//   - data: 响应数据，可以是任意类型
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 返回 201 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "创建成功",
		Data:    data,
	})
}

// NoContent 返回 204 无内容响应（用于删除操作）
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 返回 400 错误（请求参数错误）
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeBadRequest,
		Message: message,
	})
}

// NotFound 返回 404 错误（资源不存在）
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeNotFound,
		Message: message,
	})
}

// InternalError 返回 500 错误（服务器内部错误）
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:    CodeInternalError,
		Message: message,
	})
}

// SessionNotFound 返回会话不存在错误
func SessionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeSessionNotFound,
		Message: "会话不存在",
	})
}

// NoActiveSession 返回没有活跃会话错误
// 调用方需要先创建或选择一个会话
func NoActiveSession(c *gin.Context) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeNoActiveSession,
		Message: "没有活跃会话，请先创建会话",
	})
}

// DuplicateName 返回会话名称冲突错误
// 名称后缀随机生成，冲突可以重试
func DuplicateName(c *gin.Context) {
	c.JSON(http.StatusConflict, Response{
		Code:    CodeDuplicateName,
		Message: "会话名称冲突，请重试",
	})
}

// LLMCallFailed 返回 LLM 调用失败错误
// 本轮对话未持久化，可以重新提交
func LLMCallFailed(c *gin.Context, message string) {
	c.JSON(http.StatusBadGateway, Response{
		Code:    CodeLLMCallFailed,
		Message: message,
	})
}
