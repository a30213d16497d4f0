// Package activity はユーザー操作ログの記録と、その変更通知ストリームを提供する。
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/repository"
)

// Recorder はuser_activityへの追記を行う。
type Recorder struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

// NewRecorder はRecorderの新しいインスタンスを生成する。
func NewRecorder(repo repository.ActivityRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// Record は操作ログを1行追加する。未知の種別はバリデーションエラー。
func (r *Recorder) Record(ctx context.Context, userID string, activityType model.ActivityType) (*model.UserActivity, error) {
	if !activityType.Valid() {
		return nil, model.NewValidationError("activity_type", fmt.Sprintf("unknown activity type %q", activityType))
	}

	now := r.now()
	a := &model.UserActivity{
		ID:           uuid.New().String(),
		UserID:       userID,
		ActivityType: activityType,
		Timestamp:    now,
		CreatedAt:    now,
	}
	if err := r.repo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("操作ログの記録に失敗しました: %w", err)
	}
	return a, nil
}
