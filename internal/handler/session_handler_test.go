package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/memory"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/prompt"
	"hackgpt-server/internal/repository"
	"hackgpt-server/internal/service"
	"hackgpt-server/pkg/response"
)

// stubLLM 固定回复的 LLM 客户端替身
type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Generate(_ context.Context, _ llm.GenerateRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, req llm.GenerateRequest, onDelta func(string) error) (string, error) {
	content, err := s.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		if err := onDelta(content); err != nil {
			return "", err
		}
	}
	return content, nil
}

// newTestRouter 搭建完整的内存版 API，路由注册方式与服务入口一致
func newTestRouter(t *testing.T, llmClient llm.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.ChatSession{}, &model.Message{}))

	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	window := memory.NewWindow(messageRepo, nil, 10)

	sessionService := service.NewSessionService(sessionRepo, window, nil, "gpt-4o", 0.5)
	chatService, err := service.NewChatService(sessionRepo, window, llmClient, prompt.DefaultTemplate)
	require.NoError(t, err)

	sessionHandler := NewSessionHandler(sessionService)
	chatHandler := NewChatHandler(chatService)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.GET("/active-session", sessionHandler.GetActiveSession)

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", sessionHandler.CreateSession)
		sessions.GET("", sessionHandler.ListSessions)
		sessions.GET("/:name", sessionHandler.GetSession)
		sessions.PUT("/:name", sessionHandler.UpdateSession)
		sessions.DELETE("/:name", sessionHandler.DeleteSession)
		sessions.POST("/:name/activate", sessionHandler.ActivateSession)
		sessions.POST("/:name/chat", chatHandler.Chat)
		sessions.GET("/:name/messages", chatHandler.GetMessages)
		sessions.DELETE("/:name/memory", chatHandler.ClearMemory)
		sessions.POST("/:name/summary", chatHandler.Summarize)
	}
	return router
}

// doJSON 发送 JSON 请求并解析统一响应
func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// createSession 通过 API 创建会话并返回生成的名称
func createSession(t *testing.T, router *gin.Engine, body interface{}) string {
	t.Helper()

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	name, _ := data["session_name"].(string)
	require.NotEmpty(t, name)
	return name
}

func TestCreateSessionAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{
		"name":        "Demo",
		"temperature": 0.8,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.Contains(t, data["session_name"], "Demo_")
	assert.Equal(t, "gpt-4o", data["model"])
	assert.Equal(t, 0.8, data["temperature"])
}

func TestCreateSessionAPIEmptyBody(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateSessionAPIInvalidTemperature(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{
		"temperature": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, resp.Code)
}

func TestListAndGetSessionAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})
	name := createSession(t, router, nil)

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+name, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := resp.Data.(map[string]interface{})
	assert.Equal(t, name, detail["session_name"])
}

func TestGetSessionAPINotFound(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, resp.Code)
}

func TestUpdateSessionAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})
	name := createSession(t, router, nil)

	w, resp := doJSON(t, router, http.MethodPut, "/api/v1/sessions/"+name, gin.H{
		"model":       "gpt-4",
		"temperature": 0.2,
		"hack_prompt": "be brief",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "gpt-4", data["model"])
	assert.Equal(t, 0.2, data["temperature"])
	assert.Equal(t, "be brief", data["hack_prompt"])
}

func TestDeleteSessionAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})
	name := createSession(t, router, nil)

	w, _ := doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+name, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// 幂等，重复删除同样成功
	w, _ = doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+name, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+name, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveSessionAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	// 初始没有活跃会话
	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/active-session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Nil(t, data["session"])

	// 创建即激活
	name := createSession(t, router, nil)

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/active-session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	session := data["session"].(map[string]interface{})
	assert.Equal(t, name, session["session_name"])

	// 创建第二个会话后把活跃指针切回第一个
	createSession(t, router, gin.H{"name": "other"})
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/active-session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	session = data["session"].(map[string]interface{})
	assert.Equal(t, name, session["session_name"])
}

func TestChatAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "42"})
	name := createSession(t, router, nil)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/chat", gin.H{
		"input": "meaning of life?",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "42", data["content"])

	// 历史里应当有这一轮
	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+name+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
}

func TestChatAPIEmptyInput(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "42"})
	name := createSession(t, router, nil)

	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/chat", gin.H{"input": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatAPILLMFailure(t *testing.T) {
	router := newTestRouter(t, &stubLLM{err: fmt.Errorf("%w: upstream down", llm.ErrLLMCall)})
	name := createSession(t, router, nil)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/chat", gin.H{
		"input": "hello",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, response.CodeLLMCallFailed, resp.Code)
}

func TestChatAPISessionNotFound(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions/missing/chat", gin.H{
		"input": "hello",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeSessionNotFound, resp.Code)
}

func TestClearMemoryAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "ok"})
	name := createSession(t, router, nil)

	_, _ = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/chat", gin.H{"input": "hi"})

	w, _ := doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+name+"/memory", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/"+name+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["total"])
}

func TestSummarizeAPI(t *testing.T) {
	router := newTestRouter(t, &stubLLM{reply: "Quick Math Chat"})
	name := createSession(t, router, nil)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+name+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "QuickMathChat", data["summary"])
}
