package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// ActivityRecorderInterface は操作ログハンドラーが必要とするインターフェース。
type ActivityRecorderInterface interface {
	Record(ctx context.Context, userID string, activityType model.ActivityType) (*model.UserActivity, error)
}

// ActivityHandler は操作ログのHTTPハンドラー。
type ActivityHandler struct {
	recorder ActivityRecorderInterface
}

// NewActivityHandler はActivityHandlerを生成する。
func NewActivityHandler(recorder ActivityRecorderInterface) *ActivityHandler {
	return &ActivityHandler{recorder: recorder}
}

type recordActivityRequest struct {
	UserID       string `json:"user_id"`
	ActivityType string `json:"activity_type"`
}

type activityResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

// Record は呼び出し元自身の操作ログを1件追記する。
// POST /rest/v1/user_activity
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	var req recordActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID != "" && req.UserID != userID {
		middleware.WriteError(w, model.NewForbiddenError("Activity can only be recorded for yourself"))
		return
	}

	a, err := h.recorder.Record(r.Context(), userID, model.ActivityType(req.ActivityType))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activityResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		ActivityType: string(a.ActivityType),
		Timestamp:    a.Timestamp,
		CreatedAt:    a.CreatedAt,
	})
}
