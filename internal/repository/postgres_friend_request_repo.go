package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/memoria/internal/model"
)

// PostgresFriendRequestRepo はPostgreSQLを使用したフレンドリクエストリポジトリ。
type PostgresFriendRequestRepo struct {
	db *sql.DB
}

// NewPostgresFriendRequestRepo はPostgresFriendRequestRepoを生成する。
func NewPostgresFriendRequestRepo(db *sql.DB) *PostgresFriendRequestRepo {
	return &PostgresFriendRequestRepo{db: db}
}

// FindByID は指定IDのエッジを取得する。見つからない場合はnilを返す。
func (r *PostgresFriendRequestRepo) FindByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	req := &model.FriendRequest{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, status, created_at, updated_at
		 FROM friend_requests WHERE id = $1`,
		id,
	).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フレンドリクエストの取得に失敗しました: %w", err)
	}
	return req, nil
}

// Create はエッジを作成する。
// 同じ無向ペアに有効なエッジがある場合はErrDuplicate、相手ユーザーが存在しない場合はErrMissingReferenceを返す。
func (r *PostgresFriendRequestRepo) Create(ctx context.Context, req *model.FriendRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.SenderID, req.ReceiverID, req.Status, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		translated := translateError(err)
		if errors.Is(translated, ErrDuplicate) || errors.Is(translated, ErrMissingReference) {
			return translated
		}
		return fmt.Errorf("フレンドリクエストの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は現在のステータスがfromの場合に限りtoへ更新する。
func (r *PostgresFriendRequestRepo) UpdateStatus(ctx context.Context, id string, from, to model.FriendRequestStatus, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE friend_requests SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2`,
		id, from, to, at,
	)
	if err != nil {
		return false, fmt.Errorf("フレンドリクエストの更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// DeletePending はsenderIDが送信したpendingエッジを削除する。
func (r *PostgresFriendRequestRepo) DeletePending(ctx context.Context, id, senderID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM friend_requests WHERE id = $1 AND sender_id = $2 AND status = 'pending'`,
		id, senderID,
	)
	if err != nil {
		return false, fmt.Errorf("フレンドリクエストの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// ListForUser はユーザーが端点となるエッジを相手側のプロフィールと共に新しい順で返す。
// 相手のプロフィールが未作成の場合は空のプロフィール(IDのみ)を設定する。
func (r *PostgresFriendRequestRepo) ListForUser(ctx context.Context, userID string, filter model.FriendRequestFilter) ([]*model.FriendRequestWithProfile, error) {
	var conds []string
	args := []any{userID}

	switch filter.Role {
	case model.FriendRoleSent:
		conds = append(conds, "f.sender_id = $1")
	case model.FriendRoleReceived:
		conds = append(conds, "f.receiver_id = $1")
	default:
		conds = append(conds, "(f.sender_id = $1 OR f.receiver_id = $1)")
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("f.status = $%d", len(args)))
	}

	query := `SELECT f.id, f.sender_id, f.receiver_id, f.status, f.created_at, f.updated_at,
		c.id, COALESCE(p.full_name, ''), COALESCE(p.email, ''), COALESCE(p.bio, ''),
		COALESCE(p.avatar_url, ''), COALESCE(p.location, ''),
		COALESCE(p.email_notifications, true), COALESCE(p.is_private, false),
		COALESCE(p.created_at, f.created_at), COALESCE(p.updated_at, f.updated_at)
	FROM friend_requests f
	CROSS JOIN LATERAL (
		SELECT CASE WHEN f.sender_id = $1 THEN f.receiver_id ELSE f.sender_id END AS id
	) c
	LEFT JOIN profiles p ON p.id = c.id
	WHERE ` + strings.Join(conds, " AND ") + `
	ORDER BY f.created_at DESC, f.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("フレンドリクエスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.FriendRequestWithProfile
	for rows.Next() {
		item := &model.FriendRequestWithProfile{}
		req := &item.Request
		p := &item.Counterpart
		if err := rows.Scan(
			&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt, &req.UpdatedAt,
			&p.ID, &p.FullName, &p.Email, &p.Bio, &p.AvatarURL, &p.Location,
			&p.EmailNotifications, &p.IsPrivate, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フレンドリクエスト行の読み取りに失敗しました: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フレンドリクエスト一覧の走査に失敗しました: %w", err)
	}
	return results, nil
}

// compile-time interface check
var _ FriendRequestRepository = (*PostgresFriendRequestRepo)(nil)
