package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/memoria/internal/auth"
	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string, opts auth.SignUpOptions) (*model.User, *auth.IssuedSession, error)
	ConfirmEmail(ctx context.Context, token string) (string, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.IssuedSession, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.IssuedSession, error)
	SignOut(ctx context.Context, sessionID string) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler はパスワード認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	baseURL string
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。baseURLはメール確認後の既定のリダイレクト先。
func NewAuthHandler(service AuthServiceInterface, baseURL string) *AuthHandler {
	return &AuthHandler{service: service, baseURL: baseURL, now: time.Now}
}

type signUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirect_to"`
	Data       struct {
		FullName string `json:"full_name"`
	} `json:"data"`
}

type signUpResponse struct {
	User    userResponse     `json:"user"`
	Session *sessionResponse `json:"session"`
}

// SignUp はユーザーを登録する。メール確認が必要な場合sessionはnullになる。
// POST /auth/v1/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, session, err := h.service.SignUp(r.Context(), req.Email, req.Password, auth.SignUpOptions{
		FullName:   req.Data.FullName,
		RedirectTo: h.safeRedirect(req.RedirectTo),
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := signUpResponse{User: toUserResponse(user)}
	if session != nil {
		s := h.toSessionResponse(session)
		resp.Session = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

type tokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// Token はパスワードまたはリフレッシュトークンでセッションを発行する。
// POST /auth/v1/token?grant_type=password|refresh_token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		session *auth.IssuedSession
		err     error
	)
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		session, err = h.service.SignInWithPassword(r.Context(), req.Email, req.Password)
	case "refresh_token":
		session, err = h.service.Refresh(r.Context(), req.RefreshToken)
	default:
		err = model.NewValidationError("grant_type", "must be password or refresh_token")
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toSessionResponse(session))
}

// Confirm はメール確認リンクを処理し、登録時に指定されたページへリダイレクトする。
// GET /auth/v1/confirm?token=xxx
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.WriteError(w, model.NewInvalidConfirmationError())
		return
	}

	redirectTo, err := h.service.ConfirmEmail(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	http.Redirect(w, r, h.safeRedirect(redirectTo), http.StatusFound)
}

// User は現在のログインユーザー情報を返す。
// GET /auth/v1/user
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout は呼び出し元のセッションを破棄する。
// POST /auth/v1/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.SignOut(r.Context(), identity.SessionID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) toSessionResponse(s *auth.IssuedSession) sessionResponse {
	expiresIn := int64(s.ExpiresAt.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return sessionResponse{
		AccessToken:  s.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
		ExpiresAt:    s.ExpiresAt.Unix(),
		RefreshToken: s.RefreshToken,
		User:         toUserResponse(s.User),
	}
}

// safeRedirect はリダイレクト先をBASE_URLと同じオリジンに限定する。
// 相対パスはBASE_URLからのパスとして扱い、それ以外はBASE_URLを返す。
func (h *AuthHandler) safeRedirect(target string) string {
	base, err := url.Parse(h.baseURL)
	if err != nil || target == "" {
		return h.baseURL
	}
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return strings.TrimRight(h.baseURL, "/") + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != base.Scheme || u.Host != base.Host {
		return h.baseURL
	}
	return target
}
