package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/memoria/internal/auth"
	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// tokenAuthenticator は固定トークンのみを受け付けるTokenAuthenticator。
type tokenAuthenticator map[string]string

func (a tokenAuthenticator) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	userID, ok := a[token]
	if !ok {
		return nil, model.NewUnauthorizedError()
	}
	return &auth.Identity{UserID: userID, SessionID: "sess-" + userID}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(&RouterDeps{
		Authenticator:     tokenAuthenticator{"good-token": "user-1"},
		CORSAllowedOrigin: "https://memoria.example.com",
		DB:                fakePinger{},
		AuthService: &mockAuthService{
			getUserFn: func(_ context.Context, userID string) (*model.User, error) {
				return &model.User{ID: userID}, nil
			},
		},
		BaseURL: "https://memoria.example.com",
		MemoryService: &mockMemoryService{
			listFn: func(_ context.Context, viewerID, ownerID string) ([]*model.Memory, error) {
				return []*model.Memory{}, nil
			},
			likeFn: func(context.Context, string, string) error { return nil },
		},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
}

func TestNewRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}

func TestNewRouter_ProtectedRoutesRequireBearer(t *testing.T) {
	router := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/auth/v1/user"},
		{http.MethodPost, "/auth/v1/logout"},
		{http.MethodGet, "/rest/v1/profiles?q=a"},
		{http.MethodGet, "/rest/v1/memories"},
		{http.MethodPut, "/rest/v1/memories/m1/like"},
		{http.MethodGet, "/rest/v1/memory_likes"},
		{http.MethodGet, "/rest/v1/friend_requests"},
		{http.MethodPost, "/rest/v1/user_activity"},
		{http.MethodPut, "/storage/v1/avatar"},
		{http.MethodPost, "/functions/v1/send-notification"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer wrong-token")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestNewRouter_AuthenticatedRequest(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/auth/v1/user"},
		{http.MethodGet, "/rest/v1/memories"},
		{http.MethodPut, "/rest/v1/memories/m1/like"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer good-token")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("request id header missing")
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}
		})
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/rest/v1/memories", nil)
	req.Header.Set("Origin", "https://memoria.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://memoria.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if w.Code == http.StatusUnauthorized {
		t.Error("preflight must not require a bearer token")
	}
}
