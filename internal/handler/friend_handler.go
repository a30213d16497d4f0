package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// FriendshipServiceInterface はフレンドリクエストハンドラーが必要とするサービスインターフェース。
type FriendshipServiceInterface interface {
	Send(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error)
	Transition(ctx context.Context, viewerID, id string, to model.FriendRequestStatus) (*model.FriendRequest, error)
	Cancel(ctx context.Context, viewerID, id string) error
	List(ctx context.Context, viewerID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error)
}

// FriendHandler はフレンドリクエスト関連のHTTPハンドラー。
type FriendHandler struct {
	service FriendshipServiceInterface
}

// NewFriendHandler はFriendHandlerを生成する。
func NewFriendHandler(service FriendshipServiceInterface) *FriendHandler {
	return &FriendHandler{service: service}
}

// List は呼び出し元が端点となるエッジを相手側のプロフィール付きで返す。
// GET /rest/v1/friend_requests?role=sent|received|any&status=pending
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	list, err := h.service.List(r.Context(), userID, model.FriendRequestFilter{
		Role:   model.FriendRole(q.Get("role")),
		Status: model.FriendRequestStatus(q.Get("status")),
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := make([]friendRequestResponse, len(list))
	for i, item := range list {
		resp[i] = toFriendRequestResponse(&item.Request)
		p := toProfileResponse(&item.Counterpart)
		resp[i].Profile = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

type sendFriendRequestRequest struct {
	ReceiverID string `json:"receiver_id"`
}

// Send はフレンドリクエストを送信する。
// POST /rest/v1/friend_requests
func (h *FriendHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req sendFriendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fr, err := h.service.Send(r.Context(), userID, req.ReceiverID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFriendRequestResponse(fr))
}

type updateFriendRequestRequest struct {
	Status string `json:"status"`
}

// Update はエッジの状態を遷移させる(accepted / rejected / removed)。
// PATCH /rest/v1/friend_requests/{id}
func (h *FriendHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req updateFriendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fr, err := h.service.Transition(r.Context(), userID, chi.URLParam(r, "id"), model.FriendRequestStatus(req.Status))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFriendRequestResponse(fr))
}

// Cancel は送信者が保留中のリクエストを取り消す。
// DELETE /rest/v1/friend_requests/{id}
func (h *FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
