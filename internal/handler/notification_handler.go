package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// NotificationDispatcherInterface は通知ハンドラーが必要とするインターフェース。
type NotificationDispatcherInterface interface {
	Dispatch(ctx context.Context, n model.Notification) error
}

// NotificationHandler は管理者通知関数のHTTPハンドラー。
type NotificationHandler struct {
	dispatcher NotificationDispatcherInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(dispatcher NotificationDispatcherInterface) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

type sendNotificationRequest struct {
	Type string `json:"type"`
	User struct {
		Email string `json:"email"`
		ID    string `json:"id"`
	} `json:"user"`
	Details string `json:"details"`
}

type sendNotificationResponse struct {
	Status string `json:"status"`
}

// Send は通知を受け付ける。送信は非同期で行うため202を返す。
// POST /functions/v1/send-notification
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewerID(w, r); !ok {
		return
	}

	var req sendNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.dispatcher.Dispatch(r.Context(), model.Notification{
		Type:    model.NotificationType(req.Type),
		User:    model.NotificationUser{Email: req.User.Email, ID: req.User.ID},
		Details: req.Details,
	})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sendNotificationResponse{Status: "accepted"})
}
