// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"hackgpt-server/internal/cache"
	"hackgpt-server/internal/memory"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/repository"
	"hackgpt-server/pkg/util"
)

// 会话服务相关错误
var (
	ErrSessionNotFound    = errors.New("会话不存在")
	ErrNoActiveSession    = errors.New("没有活跃会话")
	ErrDuplicateName      = errors.New("会话名称冲突")
	ErrInvalidTemperature = errors.New("温度必须在 0.0 到 1.0 之间")
)

// SessionService 会话服务
// 管理会话元数据的增删改查，以及"当前活跃会话"指针
// 核心操作都显式携带会话名称，活跃指针只是 UI 恢复状态的便利
type SessionService struct {
	sessionRepo *repository.SessionRepository // 会话数据访问层
	window      *memory.Window                // 对话窗口（删除会话时级联清理消息）
	cache       *cache.RedisCache             // Redis 缓存，可为 nil

	// 默认配置，创建会话时未指定则使用
	defaultModel       string
	defaultTemperature float64

	// 进程内的活跃会话指针
	// Redis 不可用时的降级存储；可用时以 Redis 为准
	mu         sync.Mutex
	activeName string
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	window *memory.Window,
	redisCache *cache.RedisCache,
	defaultModel string,
	defaultTemperature float64,
) *SessionService {
	if defaultModel == "" {
		defaultModel = model.DefaultModel
	}
	return &SessionService{
		sessionRepo:        sessionRepo,
		window:             window,
		cache:              redisCache,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// SessionResponse 会话响应
type SessionResponse struct {
	SessionName string  `json:"session_name"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	HackPrompt  string  `json:"hack_prompt"`
	CreatedAt   string  `json:"created_at"`
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	BaseName    string   `json:"name"`        // 基础名称（可选，默认 "Session"）
	Model       string   `json:"model"`       // 模型（可选）
	Temperature *float64 `json:"temperature"` // 温度（可选）
	HackPrompt  string   `json:"hack_prompt"` // Hack Prompt（可选）
}

// UpdateSessionRequest 更新会话配置请求
type UpdateSessionRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	HackPrompt  string   `json:"hack_prompt"`
}

// Create 创建新会话
// 最终名称是 baseName 加 8 位随机十六进制后缀，由数据库唯一索引兜底；
// 后缀碰撞时重新生成一次，仍然冲突才返回 ErrDuplicateName。
// 创建成功后该会话自动成为活跃会话
func (s *SessionService) Create(ctx context.Context, req *CreateSessionRequest) (*SessionResponse, error) {
	baseName := req.BaseName
	if baseName == "" {
		baseName = "Session"
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	temperature := s.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0.0 || temperature > 1.0 {
		return nil, ErrInvalidTemperature
	}

	session := &model.ChatSession{
		SessionName: util.GenerateSessionName(baseName),
		Model:       modelName,
		Temperature: temperature,
		HackPrompt:  req.HackPrompt,
	}

	err := s.sessionRepo.Create(ctx, session)
	if repository.IsDuplicateKeyError(err) {
		// 随机后缀碰撞，重新生成一次
		session.ID = 0
		session.SessionName = util.GenerateSessionName(baseName)
		err = s.sessionRepo.Create(ctx, session)
		if repository.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateName
		}
	}
	if err != nil {
		return nil, err
	}

	s.setActive(ctx, session.SessionName)
	return toSessionResponse(session), nil
}

// Get 获取会话
func (s *SessionService) Get(ctx context.Context, sessionName string) (*SessionResponse, error) {
	session, err := s.sessionRepo.GetByName(ctx, sessionName)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return toSessionResponse(session), nil
}

// List 获取所有会话
// 按创建时间倒序（最新创建的在前）
func (s *SessionService) List(ctx context.Context) ([]SessionResponse, error) {
	sessions, err := s.sessionRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]SessionResponse, len(sessions))
	for i := range sessions {
		result[i] = *toSessionResponse(&sessions[i])
	}
	return result, nil
}

// Update 更新会话的模型、温度和 Hack Prompt
// 会话不存在时返回 ErrSessionNotFound
func (s *SessionService) Update(ctx context.Context, sessionName string, req *UpdateSessionRequest) (*SessionResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	temperature := s.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if temperature < 0.0 || temperature > 1.0 {
		return nil, ErrInvalidTemperature
	}

	rows, err := s.sessionRepo.Update(ctx, sessionName, modelName, temperature, req.HackPrompt)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, sessionName)
}

// Delete 删除会话
// 级联删除该会话的全部消息；会话不存在时静默成功
// 被删除的会话如果是活跃会话，同时清除活跃指针
func (s *SessionService) Delete(ctx context.Context, sessionName string) error {
	rows, err := s.sessionRepo.Delete(ctx, sessionName)
	if err != nil {
		return err
	}

	// 消息级联清理（幂等，即使会话记录本来就不存在也安全）
	if err := s.window.Clear(ctx, sessionName); err != nil {
		return err
	}

	if rows > 0 {
		s.clearActiveIf(ctx, sessionName)
	}
	return nil
}

// Activate 切换活跃会话
// 会话必须存在；指针写入 Redis（可用时）与进程内存
func (s *SessionService) Activate(ctx context.Context, sessionName string) (*SessionResponse, error) {
	session, err := s.sessionRepo.GetByName(ctx, sessionName)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	s.setActive(ctx, sessionName)
	return toSessionResponse(session), nil
}

// GetActive 获取当前活跃会话
// 指向的会话已被删除时清掉指针并返回 nil（不报错）
func (s *SessionService) GetActive(ctx context.Context) (*SessionResponse, error) {
	name := s.activeSessionName(ctx)
	if name == "" {
		return nil, nil
	}
	session, err := s.sessionRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.clearActiveIf(ctx, name)
		return nil, nil
	}
	return toSessionResponse(session), nil
}

// setActive 更新活跃会话指针
func (s *SessionService) setActive(ctx context.Context, sessionName string) {
	s.mu.Lock()
	s.activeName = sessionName
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SetActiveSession(ctx, sessionName); err != nil {
			log.Printf("[WARN] failed to persist active session pointer: %v", err)
		}
	}
}

// clearActiveIf 当活跃指针指向给定会话时清除它
func (s *SessionService) clearActiveIf(ctx context.Context, sessionName string) {
	s.mu.Lock()
	if s.activeName == sessionName {
		s.activeName = ""
	}
	s.mu.Unlock()

	if s.cache != nil {
		current, err := s.cache.GetActiveSession(ctx)
		if err == nil && current == sessionName {
			if err := s.cache.ClearActiveSession(ctx); err != nil {
				log.Printf("[WARN] failed to clear active session pointer: %v", err)
			}
		}
	}
}

// activeSessionName 读取活跃会话指针，优先 Redis
func (s *SessionService) activeSessionName(ctx context.Context) string {
	if s.cache != nil {
		name, err := s.cache.GetActiveSession(ctx)
		if err == nil {
			return name
		}
		log.Printf("[WARN] failed to read active session pointer: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeName
}

// toSessionResponse 将会话模型转换为响应格式
func toSessionResponse(session *model.ChatSession) *SessionResponse {
	return &SessionResponse{
		SessionName: session.SessionName,
		Model:       session.Model,
		Temperature: session.Temperature,
		HackPrompt:  session.HackPrompt,
		CreatedAt:   session.CreatedAt.Format(time.RFC3339),
	}
}
