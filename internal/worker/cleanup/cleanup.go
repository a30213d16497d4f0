// Package cleanup は期限切れの認証データを削除する定期ジョブを提供する。
// 対象はsessionsとemail_confirmationsで、どちらも有効期限を過ぎた行を削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredDeleter はbefore以前に期限切れとなった行を削除するインターフェース。
// repository.SessionRepositoryとrepository.EmailConfirmationRepositoryが満たす。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type target struct {
	name    string
	deleter ExpiredDeleter
}

// CleanupJob は期限切れセッションと期限切れ確認トークンの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	targets []target
	logger  *slog.Logger
	now     func() time.Time
	Grace   time.Duration // 期限切れから削除までの猶予（デフォルト: 0）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions, confirmations ExpiredDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		targets: []target{
			{name: "sessions", deleter: sessions},
			{name: "email_confirmations", deleter: confirmations},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Run は各対象の期限切れ行を削除する。
// 1つの対象が失敗しても残りの対象は処理し、失敗をまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	before := j.now().Add(-j.Grace)

	var errs []error
	for _, t := range j.targets {
		start := time.Now()
		deleted, err := t.deleter.DeleteExpired(ctx, before)
		if err != nil {
			j.logger.Error("クリーンアップジョブの実行に失敗しました",
				slog.String("target", t.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%sのクリーンアップに失敗: %w", t.name, err))
			continue
		}

		j.logger.Info("クリーンアップジョブが完了しました",
			slog.String("target", t.name),
			slog.Int64("deleted_count", deleted),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return errors.Join(errs...)
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました", slog.Duration("interval", interval))
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
