// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/service"
	"hackgpt-server/pkg/response"
)

// ChatHandler 对话请求处理器
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// ChatRequest 对话请求
type ChatRequest struct {
	Input string `json:"input"` // 用户输入
}

// ChatResponse 对话响应
type ChatResponse struct {
	SessionName string `json:"session_name"` // 会话名称
	Input       string `json:"input"`        // 用户输入
	Content     string `json:"content"`      // 模型回复
}

// Chat 执行一轮对话
// @Summary 发送消息
// @Description 对指定会话发送一条消息，同步等待模型回复
// @Tags 对话
// @Accept json
// @Produce json
// @Param name path string true "会话名称"
// @Param body body ChatRequest true "用户输入"
// @Success 200 {object} response.Response{data=ChatResponse}
// @Router /api/v1/sessions/{name}/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	sessionName := c.Param("name")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}
	if req.Input == "" {
		response.BadRequest(c, "消息内容不能为空")
		return
	}

	content, err := h.chatService.Chat(c.Request.Context(), sessionName, req.Input)
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	response.Success(c, ChatResponse{
		SessionName: sessionName,
		Input:       req.Input,
		Content:     content,
	})
}

// GetMessages 获取会话的窗口历史
// @Summary 获取对话记录
// @Description 返回会话最近 K 轮对话，按时间正序
// @Tags 对话
// @Produce json
// @Param name path string true "会话名称"
// @Param k query int false "窗口大小（轮数）" default(10)
// @Success 200 {object} response.Response
// @Router /api/v1/sessions/{name}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionName := c.Param("name")

	// k 非法或未指定时传 0，由窗口层回落到默认值
	k, _ := strconv.Atoi(c.DefaultQuery("k", "0"))

	pairs, err := h.chatService.History(c.Request.Context(), sessionName, k)
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	response.Success(c, gin.H{
		"session_name": sessionName,
		"turns":        pairs,
		"total":        len(pairs),
	})
}

// ClearMemory 清空会话记忆
// @Summary 清空会话记忆
// @Description 删除会话的全部历史消息；幂等操作
// @Tags 对话
// @Produce json
// @Param name path string true "会话名称"
// @Success 204 "清空成功"
// @Router /api/v1/sessions/{name}/memory [delete]
func (h *ChatHandler) ClearMemory(c *gin.Context) {
	sessionName := c.Param("name")

	if err := h.chatService.ClearMemory(c.Request.Context(), sessionName); err != nil {
		response.InternalError(c, "清空会话记忆失败")
		return
	}

	response.NoContent(c)
}

// Summarize 生成会话摘要
// @Summary 生成会话摘要
// @Description 用 LLM 把当前窗口内容浓缩成三个词以内的标题
// @Tags 对话
// @Produce json
// @Param name path string true "会话名称"
// @Success 200 {object} response.Response
// @Router /api/v1/sessions/{name}/summary [post]
func (h *ChatHandler) Summarize(c *gin.Context) {
	sessionName := c.Param("name")

	summary, err := h.chatService.Summarize(c.Request.Context(), sessionName)
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	response.Success(c, gin.H{
		"session_name": sessionName,
		"summary":      summary,
	})
}

// renderChatError 将对话链路的错误映射为统一响应
func (h *ChatHandler) renderChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		response.NoActiveSession(c)
	case errors.Is(err, service.ErrSessionNotFound):
		response.SessionNotFound(c)
	case errors.Is(err, llm.ErrLLMCall):
		// 本轮对话未持久化，用户可以重新提交
		response.LLMCallFailed(c, err.Error())
	default:
		response.InternalError(c, "对话处理失败")
	}
}
