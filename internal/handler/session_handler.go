// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"
	"hackgpt-server/internal/service"
	"hackgpt-server/pkg/response"
)

// SessionHandler 会话请求处理器
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// CreateSession 创建新会话
// @Summary 创建会话
// @Description 基于可选的基础名称创建新会话，名称自动追加随机后缀
// @Tags 会话
// @Accept json
// @Produce json
// @Param body body service.CreateSessionRequest true "会话配置"
// @Success 201 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req service.CreateSessionRequest
	// 请求体可以为空，全部字段走默认值
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "无效的请求参数")
			return
		}
	}

	session, err := h.sessionService.Create(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case service.ErrInvalidTemperature:
			response.BadRequest(c, err.Error())
		case service.ErrDuplicateName:
			response.DuplicateName(c)
		default:
			response.InternalError(c, "创建会话失败")
		}
		return
	}

	response.Created(c, session)
}

// ListSessions 获取会话列表
// @Summary 获取会话列表
// @Description 获取全部会话，按创建时间倒序
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response{data=[]service.SessionResponse}
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessionService.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, "获取会话列表失败")
		return
	}

	response.Success(c, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// GetSession 获取会话详情
// @Summary 获取会话详情
// @Tags 会话
// @Produce json
// @Param name path string true "会话名称"
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/sessions/{name} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionName := c.Param("name")

	session, err := h.sessionService.Get(c.Request.Context(), sessionName)
	if err != nil {
		switch err {
		case service.ErrSessionNotFound:
			response.SessionNotFound(c)
		default:
			response.InternalError(c, "获取会话详情失败")
		}
		return
	}

	response.Success(c, session)
}

// UpdateSession 更新会话配置
// @Summary 更新会话配置
// @Description 覆盖会话的模型、温度和 Hack Prompt
// @Tags 会话
// @Accept json
// @Produce json
// @Param name path string true "会话名称"
// @Param body body service.UpdateSessionRequest true "新配置"
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/sessions/{name} [put]
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	sessionName := c.Param("name")

	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	session, err := h.sessionService.Update(c.Request.Context(), sessionName, &req)
	if err != nil {
		switch err {
		case service.ErrSessionNotFound:
			response.SessionNotFound(c)
		case service.ErrInvalidTemperature:
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, "更新会话失败")
		}
		return
	}

	response.Success(c, session)
}

// DeleteSession 删除会话
// @Summary 删除会话
// @Description 删除会话及其全部消息；会话不存在时同样返回成功
// @Tags 会话
// @Produce json
// @Param name path string true "会话名称"
// @Success 204 "删除成功"
// @Router /api/v1/sessions/{name} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	sessionName := c.Param("name")

	if err := h.sessionService.Delete(c.Request.Context(), sessionName); err != nil {
		response.InternalError(c, "删除会话失败")
		return
	}

	response.NoContent(c)
}

// ActivateSession 切换活跃会话
// @Summary 切换活跃会话
// @Tags 会话
// @Produce json
// @Param name path string true "会话名称"
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/sessions/{name}/activate [post]
func (h *SessionHandler) ActivateSession(c *gin.Context) {
	sessionName := c.Param("name")

	session, err := h.sessionService.Activate(c.Request.Context(), sessionName)
	if err != nil {
		switch err {
		case service.ErrSessionNotFound:
			response.SessionNotFound(c)
		default:
			response.InternalError(c, "切换会话失败")
		}
		return
	}

	response.Success(c, session)
}

// GetActiveSession 获取当前活跃会话
// @Summary 获取活跃会话
// @Description 没有活跃会话时 session 为 null
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/sessions/active [get]
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	session, err := h.sessionService.GetActive(c.Request.Context())
	if err != nil {
		response.InternalError(c, "获取活跃会话失败")
		return
	}

	if session == nil {
		response.Success(c, gin.H{
			"session": nil,
		})
		return
	}

	response.Success(c, gin.H{
		"session": session,
	})
}
