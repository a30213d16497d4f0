package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/memoria/internal/model"
)

// PostgresMemoryLikeRepo はPostgreSQLを使用した「いいね」リポジトリ。
type PostgresMemoryLikeRepo struct {
	db *sql.DB
}

// NewPostgresMemoryLikeRepo はPostgresMemoryLikeRepoを生成する。
func NewPostgresMemoryLikeRepo(db *sql.DB) *PostgresMemoryLikeRepo {
	return &PostgresMemoryLikeRepo{db: db}
}

// Exists は(userID, memoryID)の「いいね」が存在するかどうかを返す。
func (r *PostgresMemoryLikeRepo) Exists(ctx context.Context, userID, memoryID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memory_likes WHERE user_id = $1 AND memory_id = $2)`,
		userID, memoryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("いいねの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Insert は「いいね」を追加する。既に存在する場合は何もしない。
func (r *PostgresMemoryLikeRepo) Insert(ctx context.Context, like *model.MemoryLike) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memory_likes (id, user_id, memory_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, memory_id) DO NOTHING`,
		like.ID, like.UserID, like.MemoryID, like.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("いいねの追加に失敗しました: %w", err)
	}
	return nil
}

// Delete は「いいね」を削除する。存在しない場合は何もしない。
func (r *PostgresMemoryLikeRepo) Delete(ctx context.Context, userID, memoryID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM memory_likes WHERE user_id = $1 AND memory_id = $2`,
		userID, memoryID,
	)
	if err != nil {
		return fmt.Errorf("いいねの削除に失敗しました: %w", err)
	}
	return nil
}

// ListMemoryIDsByUser はユーザーが「いいね」した思い出のID一覧を新しい順で返す。
func (r *PostgresMemoryLikeRepo) ListMemoryIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT memory_id FROM memory_likes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("いいね一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("いいね行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("いいね一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ MemoryLikeRepository = (*PostgresMemoryLikeRepo)(nil)
