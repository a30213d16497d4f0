package model

import "time"

// FriendRequestStatus はフレンドリクエスト(エッジ)の状態を表す。
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
	// FriendRequestRemoved は一度フレンドになった後に解除されたエッジ。
	// 承認されなかったリクエスト(rejected)とは区別して履歴を残す。
	FriendRequestRemoved FriendRequestStatus = "removed"
)

// Valid は既知のステータスかどうかを返す。
func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestRejected, FriendRequestRemoved:
		return true
	}
	return false
}

// Active はエッジが組み合わせの一意制約の対象(pending/accepted)かどうかを返す。
func (s FriendRequestStatus) Active() bool {
	return s == FriendRequestPending || s == FriendRequestAccepted
}

// CanTransition は状態遷移が許可されているかどうかを返す。
// pending → accepted|rejected、accepted → removed のみ許可する。
// pendingエッジの取り消しは遷移ではなく削除で表現する。
func (s FriendRequestStatus) CanTransition(to FriendRequestStatus) bool {
	switch s {
	case FriendRequestPending:
		return to == FriendRequestAccepted || to == FriendRequestRejected
	case FriendRequestAccepted:
		return to == FriendRequestRemoved
	}
	return false
}

// FriendRequest は2ユーザー間の有向エッジを表す。
// acceptedのエッジはどちらの端点から見てもフレンドとして扱う。
type FriendRequest struct {
	ID         string
	SenderID   string
	ReceiverID string
	Status     FriendRequestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Counterpart は指定ユーザーから見た相手側のユーザーIDを返す。
func (r *FriendRequest) Counterpart(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// Involves は指定ユーザーがエッジの端点かどうかを返す。
func (r *FriendRequest) Involves(userID string) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// FriendRequestWithProfile はエッジと相手側のプロフィールの組を表す。
type FriendRequestWithProfile struct {
	Request     FriendRequest
	Counterpart Profile
}

// FriendRole はエッジ一覧取得時の視点を表す。
type FriendRole string

const (
	FriendRoleSent     FriendRole = "sent"
	FriendRoleReceived FriendRole = "received"
	FriendRoleAny      FriendRole = "any"
)

// FriendRequestFilter はエッジ一覧の絞り込み条件を表す。Statusが空の場合は全状態を対象とする。
type FriendRequestFilter struct {
	Role   FriendRole
	Status FriendRequestStatus
}
