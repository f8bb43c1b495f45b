package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"localchat/internal/ai"
	"localchat/internal/bootstrap"
	"localchat/internal/config"
	"localchat/internal/model"
	"localchat/internal/platform/sqlite"
	"localchat/internal/transport/http/response"
)

type stubStore struct{}

func (stubStore) AddDocuments(context.Context, []schema.Document) error { return nil }

func (stubStore) SimilaritySearch(context.Context, string, int) ([]schema.Document, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	app := &bootstrap.App{
		Config: &config.Config{
			App: config.AppConfig{Name: "localchat", Env: "test", GinMode: gin.TestMode},
		},
		Logger:      zap.NewNop(),
		DB:          db,
		LLM:         ai.NewClient(ai.ClientConfig{BaseURL: "http://127.0.0.1:1"}, nil),
		VectorStore: stubStore{},
		StartedAt:   time.Now(),
	}
	return NewRouter(app)
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/api/v1/nope", nil))

	if w.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404 for an unknown route, got %d", w.Code)
	}
	var body response.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != response.CodeNotFound {
		t.Fatalf("expected code %d, got %d", response.CodeNotFound, body.Code)
	}
}

func TestRouterListSessions(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/api/v1/sessions", nil))

	if w.Code != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body response.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Code != response.CodeOK {
		t.Fatalf("expected code %d, got %d", response.CodeOK, body.Code)
	}
}
