package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/memoria/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した操作ログリポジトリ。
// INSERTごとにトリガーがuser_activityチャネルへ通知する。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Create は操作ログを1行追加する。
func (r *PostgresActivityRepo) Create(ctx context.Context, a *model.UserActivity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_activity (id, user_id, activity_type, timestamp, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.ActivityType, a.Timestamp, a.CreatedAt,
	)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrMissingReference) {
			return translated
		}
		return fmt.Errorf("操作ログの記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
