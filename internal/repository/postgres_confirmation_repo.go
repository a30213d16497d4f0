package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/memoria/internal/model"
)

// PostgresConfirmationRepo はPostgreSQLを使用したメール確認トークンリポジトリ。
type PostgresConfirmationRepo struct {
	db *sql.DB
}

// NewPostgresConfirmationRepo はPostgresConfirmationRepoを生成する。
func NewPostgresConfirmationRepo(db *sql.DB) *PostgresConfirmationRepo {
	return &PostgresConfirmationRepo{db: db}
}

// Create は確認トークンを保存する。
func (r *PostgresConfirmationRepo) Create(ctx context.Context, c *model.EmailConfirmation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_confirmations (token, user_id, redirect_to, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.Token, c.UserID, c.RedirectTo, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("確認トークンの保存に失敗しました: %w", err)
	}
	return nil
}

// Consume は有効期限内のトークンを削除して返す。トークンは1回しか使えない。
func (r *PostgresConfirmationRepo) Consume(ctx context.Context, token string) (*model.EmailConfirmation, error) {
	c := &model.EmailConfirmation{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM email_confirmations
		 WHERE token = $1 AND expires_at > now()
		 RETURNING token, user_id, redirect_to, expires_at, created_at`,
		token,
	).Scan(&c.Token, &c.UserID, &c.RedirectTo, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("確認トークンの消費に失敗しました: %w", err)
	}
	return c, nil
}

// DeleteExpired はbefore以前に期限切れとなったトークンを削除する。
func (r *PostgresConfirmationRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM email_confirmations WHERE expires_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ確認トークンの削除に失敗しました: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ EmailConfirmationRepository = (*PostgresConfirmationRepo)(nil)
