package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/memoria/internal/auth"
	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	signUpFn       func(ctx context.Context, email, password string, opts auth.SignUpOptions) (*model.User, *auth.IssuedSession, error)
	confirmEmailFn func(ctx context.Context, token string) (string, error)
	signInFn       func(ctx context.Context, email, password string) (*auth.IssuedSession, error)
	refreshFn      func(ctx context.Context, refreshToken string) (*auth.IssuedSession, error)
	signOutFn      func(ctx context.Context, sessionID string) error
	getUserFn      func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string, opts auth.SignUpOptions) (*model.User, *auth.IssuedSession, error) {
	return m.signUpFn(ctx, email, password, opts)
}

func (m *mockAuthService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	return m.confirmEmailFn(ctx, token)
}

func (m *mockAuthService) SignInWithPassword(ctx context.Context, email, password string) (*auth.IssuedSession, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.IssuedSession, error) {
	return m.refreshFn(ctx, refreshToken)
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return m.getUserFn(ctx, userID)
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	h := NewAuthHandler(svc, "https://memoria.example.com")
	h.now = func() time.Time { return testNow }
	return h
}

func testSession() *auth.IssuedSession {
	return &auth.IssuedSession{
		SessionID:    "sess-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(time.Hour),
		User:         &model.User{ID: "user-1", Email: "alice@example.com", FullName: "Alice"},
	}
}

func TestAuthHandler_SignUp_WithoutSession(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(_ context.Context, email, password string, opts auth.SignUpOptions) (*model.User, *auth.IssuedSession, error) {
			if email != "alice@example.com" || password != "secret123" {
				t.Errorf("credentials = %q/%q", email, password)
			}
			if opts.FullName != "Alice" {
				t.Errorf("FullName = %q, want Alice", opts.FullName)
			}
			if opts.RedirectTo != "https://memoria.example.com/setup" {
				t.Errorf("RedirectTo = %q", opts.RedirectTo)
			}
			return &model.User{ID: "user-1", Email: email, FullName: opts.FullName}, nil, nil
		},
	}
	h := newTestAuthHandler(svc)

	body := `{"email":"alice@example.com","password":"secret123","redirect_to":"/setup","data":{"full_name":"Alice"}}`
	req := httptest.NewRequest(http.MethodPost, "/auth/v1/signup", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		User    userResponse     `json:"user"`
		Session *sessionResponse `json:"session"`
	}
	decodeBody(t, w, &resp)
	if resp.User.ID != "user-1" || resp.User.UserMetadata["full_name"] != "Alice" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.Session != nil {
		t.Errorf("session = %+v, want null", resp.Session)
	}
}

func TestAuthHandler_SignUp_ServiceError(t *testing.T) {
	svc := &mockAuthService{
		signUpFn: func(context.Context, string, string, auth.SignUpOptions) (*model.User, *auth.IssuedSession, error) {
			return nil, nil, model.NewUserAlreadyRegisteredError()
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/signup", bytes.NewBufferString(`{"email":"a@b.c","password":"x"}`))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeUserAlreadyRegistered {
		t.Errorf("code = %q", got)
	}
}

func TestAuthHandler_SignUp_InvalidJSON(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/signup", bytes.NewBufferString(`{`))
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", got)
	}
}

func TestAuthHandler_Token_GrantTypes(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(_ context.Context, email, password string) (*auth.IssuedSession, error) {
			if email != "alice@example.com" || password != "pw" {
				return nil, model.NewInvalidCredentialsError()
			}
			return testSession(), nil
		},
		refreshFn: func(_ context.Context, token string) (*auth.IssuedSession, error) {
			if token != "refresh" {
				return nil, model.NewInvalidRefreshTokenError()
			}
			return testSession(), nil
		},
	}
	h := newTestAuthHandler(svc)

	tests := []struct {
		name       string
		grant      string
		body       string
		wantStatus int
	}{
		{"password", "password", `{"email":"alice@example.com","password":"pw"}`, http.StatusOK},
		{"wrong password", "password", `{"email":"alice@example.com","password":"nope"}`, http.StatusBadRequest},
		{"refresh", "refresh_token", `{"refresh_token":"refresh"}`, http.StatusOK},
		{"stale refresh", "refresh_token", `{"refresh_token":"old"}`, http.StatusUnauthorized},
		{"unknown grant", "magic", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/v1/token?grant_type="+tt.grant, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Token(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp sessionResponse
			decodeBody(t, w, &resp)
			if resp.AccessToken != "access" || resp.RefreshToken != "refresh" || resp.TokenType != "bearer" {
				t.Errorf("session = %+v", resp)
			}
			if resp.ExpiresIn != 3600 {
				t.Errorf("expires_in = %d, want 3600", resp.ExpiresIn)
			}
			if resp.ExpiresAt != testNow.Add(time.Hour).Unix() {
				t.Errorf("expires_at = %d", resp.ExpiresAt)
			}
		})
	}
}

func TestAuthHandler_Confirm_Redirects(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		wantLoc string
	}{
		{"same origin", "https://memoria.example.com/setup", "https://memoria.example.com/setup"},
		{"relative", "/timeline", "https://memoria.example.com/timeline"},
		{"foreign origin", "https://evil.example.net/", "https://memoria.example.com"},
		{"protocol relative", "//evil.example.net", "https://memoria.example.com"},
		{"empty", "", "https://memoria.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				confirmEmailFn: func(_ context.Context, token string) (string, error) {
					if token != "tok" {
						t.Errorf("token = %q", token)
					}
					return tt.stored, nil
				},
			}
			h := newTestAuthHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/auth/v1/confirm?token=tok", nil)
			w := httptest.NewRecorder()
			h.Confirm(w, req)

			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.wantLoc {
				t.Errorf("Location = %q, want %q", got, tt.wantLoc)
			}
		})
	}
}

func TestAuthHandler_Confirm_MissingToken(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/v1/confirm", nil)
	w := httptest.NewRecorder()
	h.Confirm(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAuthHandler_User(t *testing.T) {
	svc := &mockAuthService{
		getUserFn: func(_ context.Context, userID string) (*model.User, error) {
			return &model.User{ID: userID, Email: "alice@example.com"}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/auth/v1/user", nil), "user-1")
	w := httptest.NewRecorder()
	h.User(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp userResponse
	decodeBody(t, w, &resp)
	if resp.ID != "user-1" {
		t.Errorf("id = %q", resp.ID)
	}
}

func TestAuthHandler_User_Unauthenticated(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.User(w, httptest.NewRequest(http.MethodGet, "/auth/v1/user", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var signedOut string
	svc := &mockAuthService{
		signOutFn: func(_ context.Context, sessionID string) error {
			signedOut = sessionID
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/v1/logout", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), &auth.Identity{UserID: "user-1", SessionID: "sess-1"}))
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if signedOut != "sess-1" {
		t.Errorf("signed out session = %q, want sess-1", signedOut)
	}
}
