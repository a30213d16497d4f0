package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
	Create(ctx context.Context, viewerID string, in profile.CreateInput) (*model.Profile, error)
	Update(ctx context.Context, viewerID, id string, patch model.ProfilePatch) (*model.Profile, error)
	Search(ctx context.Context, viewerID, query string, limit int) ([]*model.Profile, error)
}

// ProfileHandler はプロフィール関連のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Search は名前またはメールアドレスでプロフィールを検索する。呼び出し元自身は含まない。
// GET /rest/v1/profiles?q=xxx&limit=10
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	limit := profile.MaxSearchResults
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteError(w, model.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	profiles, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]profileResponse, len(profiles))
	for i, p := range profiles {
		resp[i] = toProfileResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createProfileRequest struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
	Location  string `json:"location"`
}

// Create は呼び出し元のプロフィールを作成する。
// POST /rest/v1/profiles
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req createProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = userID
	}

	p, err := h.service.Create(r.Context(), userID, profile.CreateInput{
		ID:        req.ID,
		FullName:  req.FullName,
		Email:     req.Email,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
		Location:  req.Location,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(p))
}

// Get はプロフィールを取得する。
// GET /rest/v1/profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewerID(w, r); !ok {
		return
	}

	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

type updateProfileRequest struct {
	FullName           *string `json:"full_name"`
	Email              *string `json:"email"`
	Bio                *string `json:"bio"`
	AvatarURL          *string `json:"avatar_url"`
	Location           *string `json:"location"`
	EmailNotifications *bool   `json:"email_notifications"`
	IsPrivate          *bool   `json:"is_private"`
}

// Update はプロフィールを部分更新する。所有者本人のみ。
// PATCH /rest/v1/profiles/{id}
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), model.ProfilePatch{
		FullName:           req.FullName,
		Email:              req.Email,
		Bio:                req.Bio,
		AvatarURL:          req.AvatarURL,
		Location:           req.Location,
		EmailNotifications: req.EmailNotifications,
		IsPrivate:          req.IsPrivate,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}
