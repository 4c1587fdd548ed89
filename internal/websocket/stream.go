// Package websocket 提供流式对话的 WebSocket 通道
// HTTP 的同步 chat 接口始终可用，WebSocket 只是可选的流式增强：
// 模型的增量输出逐帧推送，结束帧携带完整回复文本
package websocket

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/service"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	// 读缓冲区大小
	ReadBufferSize: 1024,
	// 写缓冲区大小
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 消息类型
const (
	TypeDelta = "delta" // 增量片段
	TypeDone  = "done"  // 本轮结束，content 为完整回复
	TypeError = "error" // 出错，本轮未持久化
)

// ChatStreamRequest 客户端发来的对话请求
type ChatStreamRequest struct {
	SessionName string `json:"session_name"` // 会话名称
	Input       string `json:"input"`        // 用户输入
}

// ChatStreamFrame 服务端推送的帧
type ChatStreamFrame struct {
	Type    string `json:"type"`              // delta / done / error
	Content string `json:"content,omitempty"` // 片段或完整回复
	Message string `json:"message,omitempty"` // 错误信息
}

// Handler 处理流式对话的 WebSocket 连接
type Handler struct {
	chatService *service.ChatService
}

// NewHandler 创建 WebSocket Handler
func NewHandler(chatService *service.ChatService) *Handler {
	return &Handler{
		chatService: chatService,
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/chat", h.HandleChatWS)
}

// HandleChatWS 处理流式对话连接
// 路由: GET /ws/chat
// 一个连接上可以串行执行多轮对话：读一条请求，流式推送一轮回复，
// 再读下一条。同一连接上不会并发处理两轮对话
func (h *Handler) HandleChatWS(c *gin.Context) {
	// 升级 HTTP 连接为 WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WARN] failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req ChatStreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			// 客户端断开或发来非法帧，结束连接
			return
		}

		if req.Input == "" {
			if err := conn.WriteJSON(ChatStreamFrame{Type: TypeError, Message: "消息内容不能为空"}); err != nil {
				return
			}
			continue
		}

		h.streamOneTurn(c, conn, &req)
	}
}

// streamOneTurn 执行一轮流式对话
func (h *Handler) streamOneTurn(c *gin.Context, conn *websocket.Conn, req *ChatStreamRequest) {
	full, err := h.chatService.ChatStream(c.Request.Context(), req.SessionName, req.Input,
		func(delta string) error {
			return conn.WriteJSON(ChatStreamFrame{Type: TypeDelta, Content: delta})
		})
	if err != nil {
		frame := ChatStreamFrame{Type: TypeError, Message: "对话处理失败"}
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			frame.Message = "没有活跃会话，请先创建会话"
		case errors.Is(err, service.ErrSessionNotFound):
			frame.Message = "会话不存在"
		case errors.Is(err, llm.ErrLLMCall):
			frame.Message = err.Error()
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("[WARN] failed to write error frame: %v", err)
		}
		return
	}

	if err := conn.WriteJSON(ChatStreamFrame{Type: TypeDone, Content: full}); err != nil {
		log.Printf("[WARN] failed to write done frame: %v", err)
	}
}
