package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/memoria/internal/model"
)

// PostgresMemoryRepo はPostgreSQLを使用した思い出リポジトリ。
type PostgresMemoryRepo struct {
	db *sql.DB
}

// NewPostgresMemoryRepo はPostgresMemoryRepoを生成する。
func NewPostgresMemoryRepo(db *sql.DB) *PostgresMemoryRepo {
	return &PostgresMemoryRepo{db: db}
}

const memoryColumns = `m.id, m.user_id, m.title, COALESCE(m.description, ''), m.date,
	COALESCE(m.emotion, ''), COALESCE(m.location, ''), m.is_private, COALESCE(m.image_url, ''), m.created_at`

// visibleToViewer は閲覧者($1)が思い出mを閲覧できる条件。
// 所有者本人、公開の思い出、またはacceptedのエッジで結ばれた相手の非公開の思い出。
const visibleToViewer = `(
	m.user_id = $1
	OR m.is_private = false
	OR EXISTS (
		SELECT 1 FROM friend_requests f
		WHERE f.status = 'accepted'
		  AND ((f.sender_id = $1 AND f.receiver_id = m.user_id)
		    OR (f.receiver_id = $1 AND f.sender_id = m.user_id))
	)
)`

func scanMemory(row interface{ Scan(...any) error }) (*model.Memory, error) {
	m := &model.Memory{}
	err := row.Scan(&m.ID, &m.UserID, &m.Title, &m.Description, &m.Date,
		&m.Emotion, &m.Location, &m.IsPrivate, &m.ImageURL, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindVisible は閲覧者から見える思い出を取得する。見えない、または存在しない場合はnilを返す。
func (r *PostgresMemoryRepo) FindVisible(ctx context.Context, viewerID, id string) (*model.Memory, error) {
	m, err := scanMemory(r.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m WHERE m.id = $2 AND `+visibleToViewer,
		viewerID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("思い出の取得に失敗しました: %w", err)
	}
	return m, nil
}

// ListVisibleByUser はownerIDの思い出のうち閲覧者から見えるものを日付の降順で返す。
func (r *PostgresMemoryRepo) ListVisibleByUser(ctx context.Context, viewerID, ownerID string) ([]*model.Memory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories m
		 WHERE m.user_id = $2 AND `+visibleToViewer+`
		 ORDER BY m.date DESC, m.created_at DESC`,
		viewerID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("思い出一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var memories []*model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("思い出行の読み取りに失敗しました: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("思い出一覧の走査に失敗しました: %w", err)
	}
	return memories, nil
}

// Create は思い出を作成する。空文字の任意項目はNULLとして保存する。
func (r *PostgresMemoryRepo) Create(ctx context.Context, m *model.Memory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, title, description, date, emotion, location, is_private, image_url, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5::date, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10)`,
		m.ID, m.UserID, m.Title, m.Description, m.Date.Format(model.MemoryDateLayout),
		m.Emotion, m.Location, m.IsPrivate, m.ImageURL, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("思い出の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は思い出を更新する。所有者の行のみ対象とする。
func (r *PostgresMemoryRepo) Update(ctx context.Context, m *model.Memory) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE memories
		 SET title = $3, description = NULLIF($4, ''), date = $5::date, emotion = NULLIF($6, ''),
		     location = NULLIF($7, ''), is_private = $8, image_url = NULLIF($9, '')
		 WHERE id = $1 AND user_id = $2`,
		m.ID, m.UserID, m.Title, m.Description, m.Date.Format(model.MemoryDateLayout),
		m.Emotion, m.Location, m.IsPrivate, m.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("思い出の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は所有者の思い出を削除する。関連する「いいね」はCASCADE削除される。
func (r *PostgresMemoryRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("思い出の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ MemoryRepository = (*PostgresMemoryRepo)(nil)
