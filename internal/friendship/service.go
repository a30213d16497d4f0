// Package friendship はフレンドリクエスト(エッジ)の状態遷移を提供する。
//
// 状態遷移:
//
//	pending  → accepted | rejected  (受信者のみ)
//	accepted → removed              (どちらの端点でも可)
//	pending  → (削除)               (送信者による取り消し)
package friendship

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/repository"
)

// Service はフレンドリクエストのサービス層。
type Service struct {
	requests repository.FriendRequestRepository
	profiles repository.ProfileRepository
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	requests repository.FriendRequestRepository,
	profiles repository.ProfileRepository,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{requests: requests, profiles: profiles, metrics: collector, now: time.Now}
}

// Send はsenderからreceiverへpendingのエッジを作成する。
// 同じ組み合わせに有効なエッジ(pending/accepted)がどちら向きにでもあれば拒否する。
func (s *Service) Send(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	if receiverID == "" {
		return nil, model.NewValidationError("receiver_id", "is required")
	}
	if senderID == receiverID {
		return nil, model.NewValidationError("receiver_id", "cannot send a friend request to yourself")
	}

	receiver, err := s.profiles.FindByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if receiver == nil {
		return nil, model.NewProfileNotFoundError(receiverID)
	}

	now := s.now()
	req := &model.FriendRequest{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.FriendRequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewFriendRequestExistsError()
		case errors.Is(err, repository.ErrMissingReference):
			return nil, model.NewProfileNotFoundError(receiverID)
		}
		return nil, fmt.Errorf("フレンドリクエストの作成に失敗しました: %w", err)
	}

	s.metrics.RecordFriendTransition(string(model.FriendRequestPending))
	slog.Info("friend request sent",
		slog.String("request_id", req.ID),
		slog.String("sender_id", senderID),
		slog.String("receiver_id", receiverID),
	)
	return req, nil
}

// Respond は受信者がpendingのエッジを承認または拒否する。
func (s *Service) Respond(ctx context.Context, viewerID, id string, accept bool) (*model.FriendRequest, error) {
	req, err := s.find(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != viewerID {
		return nil, model.NewForbiddenError("Only the receiver can respond to a friend request")
	}

	to := model.FriendRequestRejected
	if accept {
		to = model.FriendRequestAccepted
	}
	return s.transition(ctx, req, to)
}

// Remove はacceptedのエッジをremovedにする。どちらの端点からでも実行できる。
func (s *Service) Remove(ctx context.Context, viewerID, id string) (*model.FriendRequest, error) {
	req, err := s.find(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, req, model.FriendRequestRemoved)
}

// Transition は遷移先ステータスに応じてRespondまたはRemoveを実行する。
func (s *Service) Transition(ctx context.Context, viewerID, id string, to model.FriendRequestStatus) (*model.FriendRequest, error) {
	switch to {
	case model.FriendRequestAccepted:
		return s.Respond(ctx, viewerID, id, true)
	case model.FriendRequestRejected:
		return s.Respond(ctx, viewerID, id, false)
	case model.FriendRequestRemoved:
		return s.Remove(ctx, viewerID, id)
	}
	return nil, model.NewValidationError("status", fmt.Sprintf("cannot change status to %q", to))
}

// Cancel は送信者がpendingのエッジを取り消す。エッジは削除される。
func (s *Service) Cancel(ctx context.Context, viewerID, id string) error {
	req, err := s.find(ctx, viewerID, id)
	if err != nil {
		return err
	}
	if req.SenderID != viewerID {
		return model.NewForbiddenError("Only the sender can cancel a friend request")
	}
	if req.Status != model.FriendRequestPending {
		return model.NewInvalidTransitionError(req.Status, "cancelled")
	}

	deleted, err := s.requests.DeletePending(ctx, id, viewerID)
	if err != nil {
		return fmt.Errorf("フレンドリクエストの削除に失敗しました: %w", err)
	}
	if !deleted {
		// 並行して承認・拒否された
		return model.NewInvalidTransitionError(req.Status, "cancelled")
	}
	slog.Info("friend request cancelled", slog.String("request_id", id), slog.String("sender_id", viewerID))
	return nil
}

// List は呼び出し元が端点となるエッジを相手側のプロフィール付きで返す。
func (s *Service) List(ctx context.Context, viewerID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error) {
	switch filter.Role {
	case "":
		filter.Role = model.FriendRoleAny
	case model.FriendRoleSent, model.FriendRoleReceived, model.FriendRoleAny:
	default:
		return nil, model.NewValidationError("role", fmt.Sprintf("unknown role %q", filter.Role))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	list, err := s.requests.ListForUser(ctx, viewerID, filter)
	if err != nil {
		return nil, fmt.Errorf("フレンドリクエスト一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []*model.FriendRequestWithProfile{}
	}
	return list, nil
}

// find は呼び出し元が端点であるエッジを返す。端点でない場合は存在しない場合と同じエラーを返す。
func (s *Service) find(ctx context.Context, viewerID, id string) (*model.FriendRequest, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("フレンドリクエストの取得に失敗しました: %w", err)
	}
	if req == nil || !req.Involves(viewerID) {
		return nil, model.NewFriendRequestNotFoundError(id)
	}
	return req, nil
}

func (s *Service) transition(ctx context.Context, req *model.FriendRequest, to model.FriendRequestStatus) (*model.FriendRequest, error) {
	if !req.Status.CanTransition(to) {
		return nil, model.NewInvalidTransitionError(req.Status, to)
	}

	now := s.now()
	ok, err := s.requests.UpdateStatus(ctx, req.ID, req.Status, to, now)
	if err != nil {
		return nil, fmt.Errorf("フレンドリクエストの更新に失敗しました: %w", err)
	}
	if !ok {
		// 並行して別の遷移が適用された
		return nil, model.NewInvalidTransitionError(req.Status, to)
	}

	from := req.Status
	req.Status = to
	req.UpdatedAt = now
	s.metrics.RecordFriendTransition(string(to))
	slog.Info("friend request transitioned",
		slog.String("request_id", req.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return req, nil
}
