// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/memoria/internal/model"
)

// UserRepository は認証ユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス(小文字化済み)でユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// MarkEmailConfirmed はメールアドレス確認日時を記録する。
	MarkEmailConfirmed(ctx context.Context, id string, at time.Time) error
}

// EmailConfirmationRepository はメール確認トークンの永続化インターフェース。
type EmailConfirmationRepository interface {
	// Create は確認トークンを保存する。
	Create(ctx context.Context, c *model.EmailConfirmation) error

	// Consume は有効期限内のトークンを削除して返す。見つからない場合はnilを返す。
	Consume(ctx context.Context, token string) (*model.EmailConfirmation, error)

	// DeleteExpired はbefore以前に期限切れとなったトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindByRefreshToken はリフレッシュトークンでセッションを取得する。期限切れの場合はnilを返す。
	FindByRefreshToken(ctx context.Context, refreshToken string) (*model.Session, error)
	// Rotate はリフレッシュトークンがoldTokenのままである場合に限り新しいトークンと有効期限に置き換える。
	// 置き換えた場合はtrueを返す。
	Rotate(ctx context.Context, id, oldToken, newToken string, expiresAt, refreshedAt time.Time) (bool, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindByEmail はメールアドレスでプロフィールを検索する(大文字小文字を区別しない)。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)

	// Create はプロフィールを作成する。既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, profile *model.Profile) error

	// Update はプロフィールの全フィールドを更新する。
	Update(ctx context.Context, profile *model.Profile) error

	// Search は名前またはメールアドレスの部分一致(大文字小文字を区別しない)で検索する。
	// excludeIDのプロフィールは結果に含めない。
	Search(ctx context.Context, excludeID, query string, limit int) ([]*model.Profile, error)
}

// MemoryRepository は思い出の永続化インターフェース。
// 読み取り系メソッドは閲覧者(viewerID)の可視性条件をクエリで強制する。
type MemoryRepository interface {
	// FindVisible は閲覧者から見える思い出を取得する。見えない、または存在しない場合はnilを返す。
	FindVisible(ctx context.Context, viewerID, id string) (*model.Memory, error)

	// ListVisibleByUser はownerIDの思い出のうち閲覧者から見えるものを日付の降順で返す。
	ListVisibleByUser(ctx context.Context, viewerID, ownerID string) ([]*model.Memory, error)

	// Create は思い出を作成する。
	Create(ctx context.Context, memory *model.Memory) error

	// Update は思い出を更新する。所有者の行のみ対象とする。
	Update(ctx context.Context, memory *model.Memory) error

	// Delete は所有者の思い出を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

// MemoryLikeRepository は「いいね」の永続化インターフェース。
type MemoryLikeRepository interface {
	// Exists は(userID, memoryID)の「いいね」が存在するかどうかを返す。
	Exists(ctx context.Context, userID, memoryID string) (bool, error)

	// Insert は「いいね」を追加する。既に存在する場合は何もしない。
	Insert(ctx context.Context, like *model.MemoryLike) error

	// Delete は「いいね」を削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, userID, memoryID string) error

	// ListMemoryIDsByUser はユーザーが「いいね」した思い出のID一覧を返す。
	ListMemoryIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// FriendRequestRepository はフレンドリクエスト(エッジ)の永続化インターフェース。
type FriendRequestRepository interface {
	// FindByID は指定IDのエッジを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.FriendRequest, error)

	// Create はエッジを作成する。同じ無向ペアに有効なエッジがある場合はErrDuplicateを返す。
	Create(ctx context.Context, req *model.FriendRequest) error

	// UpdateStatus は現在のステータスがfromの場合に限りtoへ更新する。更新した場合はtrueを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.FriendRequestStatus, at time.Time) (bool, error)

	// DeletePending はsenderIDが送信したpendingエッジを削除する。削除した場合はtrueを返す。
	DeletePending(ctx context.Context, id, senderID string) (bool, error)

	// ListForUser はユーザーが端点となるエッジを相手側のプロフィールと共に返す。
	ListForUser(ctx context.Context, userID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error)
}

// ActivityRepository は操作ログの永続化インターフェース。追記のみ。
type ActivityRepository interface {
	// Create は操作ログを1行追加する。
	Create(ctx context.Context, activity *model.UserActivity) error
}
