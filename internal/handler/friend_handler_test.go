package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/memoria/internal/model"
)

// mockFriendService はFriendshipServiceInterfaceのモック実装。
type mockFriendService struct {
	sendFn       func(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error)
	transitionFn func(ctx context.Context, viewerID, id string, to model.FriendRequestStatus) (*model.FriendRequest, error)
	cancelFn     func(ctx context.Context, viewerID, id string) error
	listFn       func(ctx context.Context, viewerID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error)
}

func (m *mockFriendService) Send(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	return m.sendFn(ctx, senderID, receiverID)
}

func (m *mockFriendService) Transition(ctx context.Context, viewerID, id string, to model.FriendRequestStatus) (*model.FriendRequest, error) {
	return m.transitionFn(ctx, viewerID, id, to)
}

func (m *mockFriendService) Cancel(ctx context.Context, viewerID, id string) error {
	return m.cancelFn(ctx, viewerID, id)
}

func (m *mockFriendService) List(ctx context.Context, viewerID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error) {
	return m.listFn(ctx, viewerID, filter)
}

func TestFriendHandler_List_IncludesCounterpart(t *testing.T) {
	svc := &mockFriendService{
		listFn: func(_ context.Context, viewerID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error) {
			if filter.Role != model.FriendRoleReceived || filter.Status != model.FriendRequestPending {
				t.Errorf("filter = %+v", filter)
			}
			return []*model.FriendRequestWithProfile{{
				Request:     model.FriendRequest{ID: "fr-1", SenderID: "user-2", ReceiverID: viewerID, Status: model.FriendRequestPending},
				Counterpart: model.Profile{ID: "user-2", FullName: "Bob"},
			}}, nil
		},
	}
	h := NewFriendHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/rest/v1/friend_requests?role=received&status=pending", nil), "user-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp []friendRequestResponse
	decodeBody(t, w, &resp)
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if resp[0].Profile == nil || resp[0].Profile.FullName != "Bob" {
		t.Errorf("profile = %+v", resp[0].Profile)
	}
}

func TestFriendHandler_List_InvalidFilter(t *testing.T) {
	svc := &mockFriendService{
		listFn: func(context.Context, string, model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error) {
			return nil, model.NewValidationError("role", "must be sent, received or any")
		},
	}
	h := NewFriendHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/rest/v1/friend_requests?role=everyone", nil), "user-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestFriendHandler_Send(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"created", nil, http.StatusCreated},
		{"duplicate", model.NewFriendRequestExistsError(), http.StatusConflict},
		{"unknown receiver", model.NewProfileNotFoundError("user-9"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockFriendService{
				sendFn: func(_ context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.FriendRequest{ID: "fr-1", SenderID: senderID, ReceiverID: receiverID, Status: model.FriendRequestPending}, nil
				},
			}
			h := NewFriendHandler(svc)

			req := withUserID(httptest.NewRequest(http.MethodPost, "/rest/v1/friend_requests", bytes.NewBufferString(`{"receiver_id":"user-2"}`)), "user-1")
			w := httptest.NewRecorder()
			h.Send(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestFriendHandler_Update_Transitions(t *testing.T) {
	svc := &mockFriendService{
		transitionFn: func(_ context.Context, _, id string, to model.FriendRequestStatus) (*model.FriendRequest, error) {
			if to == model.FriendRequestPending {
				return nil, model.NewValidationError("status", "must be accepted, rejected or removed")
			}
			if to == model.FriendRequestRemoved {
				return nil, model.NewInvalidTransitionError(model.FriendRequestPending, to)
			}
			return &model.FriendRequest{ID: id, Status: to}, nil
		},
	}
	h := NewFriendHandler(svc)

	tests := []struct {
		status     string
		wantStatus int
	}{
		{"accepted", http.StatusOK},
		{"rejected", http.StatusOK},
		{"removed", http.StatusConflict},
		{"pending", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/rest/v1/friend_requests/fr-1", bytes.NewBufferString(`{"status":"`+tt.status+`"}`))
			req = withChiURLParam(withUserID(req, "user-1"), "id", "fr-1")
			w := httptest.NewRecorder()
			h.Update(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestFriendHandler_Cancel(t *testing.T) {
	var cancelled string
	svc := &mockFriendService{
		cancelFn: func(_ context.Context, _, id string) error {
			cancelled = id
			return nil
		},
	}
	h := NewFriendHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/rest/v1/friend_requests/fr-1", nil), "user-1"), "id", "fr-1")
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if cancelled != "fr-1" {
		t.Errorf("cancelled = %q", cancelled)
	}
}
