package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "datachat/handler/http"
	"datachat/src/core/chat"
	"datachat/src/embedding"
	"datachat/src/llm"
)

type fakeSearcher struct{}

func (fakeSearcher) SearchSimilar(ctx context.Context, query string, k int) ([]embedding.SimilarityResult, error) {
	return nil, nil
}

type fakeHistory struct {
	turns    []chat.Turn
	gotLimit int
}

func (f *fakeHistory) Add(ctx context.Context, userName, role, content string, metadata map[string]interface{}) error {
	return nil
}

func (f *fakeHistory) GetRecent(ctx context.Context, userName string, limit int) ([]chat.Turn, error) {
	f.gotLimit = limit
	return f.turns, nil
}

type fakeProvider struct{ answer string }

func (p *fakeProvider) Generate(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []llm.Turn) (string, error) {
	return p.answer, nil
}

func (p *fakeProvider) GenerateStream(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []llm.Turn, onChunk func(chunk string) error) error {
	return onChunk(p.answer)
}

func newTestRouter(t *testing.T, history *fakeHistory) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	holder := llm.NewHolder(&fakeProvider{answer: "ok"})
	chatService, err := chat.NewService(fakeSearcher{}, holder, history)
	require.NoError(t, err)

	h := handler.NewHandler(chatService, nil, nil, nil, nil, nil, "http://ollama:11434")
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func TestGetChatHistoryEndpoint(t *testing.T) {
	history := &fakeHistory{turns: []chat.Turn{
		{Role: "user", Content: "what is a kettle?", CreatedAt: time.Now().UTC()},
		{Role: "assistant", Content: "a pot for boiling water", CreatedAt: time.Now().UTC()},
	}}
	r := newTestRouter(t, history)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history/alice?limit=3", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, history.gotLimit)

	var resp struct {
		UserName string      `json:"user_name"`
		Turns    []chat.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.UserName)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "user", resp.Turns[0].Role)
}

func TestGetChatHistoryRejectsBadLimit(t *testing.T) {
	r := newTestRouter(t, &fakeHistory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history/alice?limit=lots", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwitchProviderEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeHistory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/llm/switch",
		strings.NewReader(`{"model": "llama3.2"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Model     string `json:"model"`
		ServerURL string `json:"server_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "llama3.2", resp.Model)
	assert.Equal(t, "http://ollama:11434", resp.ServerURL)
}

func TestSwitchProviderRequiresModel(t *testing.T) {
	r := newTestRouter(t, &fakeHistory{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/llm/switch", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
