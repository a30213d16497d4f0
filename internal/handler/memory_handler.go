package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// MemoryServiceInterface は思い出ハンドラーが必要とするサービスインターフェース。
type MemoryServiceInterface interface {
	List(ctx context.Context, viewerID, ownerID string) ([]*model.Memory, error)
	Get(ctx context.Context, viewerID, id string) (*model.Memory, error)
	Create(ctx context.Context, viewerID string, in model.NewMemory) (*model.Memory, error)
	Update(ctx context.Context, viewerID, id string, patch model.MemoryPatch) (*model.Memory, error)
	Delete(ctx context.Context, viewerID, id string) error
	Liked(ctx context.Context, viewerID, memoryID string) (bool, error)
	Like(ctx context.Context, viewerID, memoryID string) error
	Unlike(ctx context.Context, viewerID, memoryID string) error
	LikedMemoryIDs(ctx context.Context, viewerID string) ([]string, error)
}

// MemoryHandler は思い出と「いいね」関連のHTTPハンドラー。
type MemoryHandler struct {
	service MemoryServiceInterface
}

// NewMemoryHandler はMemoryHandlerを生成する。
func NewMemoryHandler(service MemoryServiceInterface) *MemoryHandler {
	return &MemoryHandler{service: service}
}

// List は指定ユーザーの思い出のうち呼び出し元が閲覧できるものを返す。
// user_id省略時は呼び出し元自身の思い出。
// GET /rest/v1/memories?user_id=xxx
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}
	ownerID := r.URL.Query().Get("user_id")
	if ownerID == "" {
		ownerID = userID
	}

	memories, err := h.service.List(r.Context(), userID, ownerID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]memoryResponse, len(memories))
	for i, m := range memories {
		resp[i] = toMemoryResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createMemoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Emotion     string `json:"emotion"`
	Location    string `json:"location"`
	IsPrivate   bool   `json:"is_private"`
	ImageURL    string `json:"image_url"`
}

// Create は呼び出し元の思い出を作成する。
// POST /rest/v1/memories
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req createMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var date time.Time
	if req.Date != "" {
		d, err := parseMemoryDate(req.Date)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		date = d
	}

	m, err := h.service.Create(r.Context(), userID, model.NewMemory{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Emotion:     req.Emotion,
		Location:    req.Location,
		IsPrivate:   req.IsPrivate,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemoryResponse(m))
}

// Get は思い出を1件取得する。閲覧できない思い出は404。
// GET /rest/v1/memories/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoryResponse(m))
}

type updateMemoryRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Emotion     *string `json:"emotion"`
	Location    *string `json:"location"`
	IsPrivate   *bool   `json:"is_private"`
	ImageURL    *string `json:"image_url"`
}

// Update は思い出を部分更新する。所有者のみ。
// PATCH /rest/v1/memories/{id}
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req updateMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := model.MemoryPatch{
		Title:       req.Title,
		Description: req.Description,
		Emotion:     req.Emotion,
		Location:    req.Location,
		IsPrivate:   req.IsPrivate,
		ImageURL:    req.ImageURL,
	}
	if req.Date != nil {
		d, err := parseMemoryDate(*req.Date)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		patch.Date = &d
	}

	m, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemoryResponse(m))
}

// Delete は思い出を削除する。所有者のみ。
// DELETE /rest/v1/memories/{id}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

// Liked は呼び出し元が思い出に「いいね」しているかどうかを返す。
// GET /rest/v1/memories/{id}/like
func (h *MemoryHandler) Liked(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	liked, err := h.service.Liked(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
}

// Like は思い出に「いいね」する。既に「いいね」済みでも成功する。
// PUT /rest/v1/memories/{id}/like
func (h *MemoryHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Like(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: true})
}

// Unlike は「いいね」を取り消す。「いいね」していなくても成功する。
// DELETE /rest/v1/memories/{id}/like
func (h *MemoryHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Unlike(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: false})
}

type likedIDsResponse struct {
	MemoryIDs []string `json:"memory_ids"`
}

// LikedIDs は呼び出し元が「いいね」した思い出のID一覧を返す。
// GET /rest/v1/memory_likes
func (h *MemoryHandler) LikedIDs(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.LikedMemoryIDs(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, likedIDsResponse{MemoryIDs: ids})
}

func parseMemoryDate(s string) (time.Time, error) {
	d, err := time.Parse(model.MemoryDateLayout, s)
	if err != nil {
		return time.Time{}, model.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}
