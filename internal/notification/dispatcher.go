package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/model"
)

// queueSize は未送信通知を保持できる件数。超過分は破棄する。
const queueSize = 100

// Dispatcher は管理者通知を非同期に送信する。
// 送信はRunのゴルーチンで行い、1分あたりの送信数をレートリミッタで制限する。
type Dispatcher struct {
	mailer     Mailer
	adminEmail string
	limiter    *rate.Limiter
	queue      chan model.Notification
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// perMinuteが0以下の場合は送信数を制限しない。
func NewDispatcher(mailer Mailer, adminEmail string, perMinute int, collector metrics.MetricsCollector) *Dispatcher {
	if collector == nil {
		collector = metrics.Nop{}
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Dispatcher{
		mailer:     mailer,
		adminEmail: adminEmail,
		limiter:    rate.NewLimiter(limit, 1),
		queue:      make(chan model.Notification, queueSize),
		metrics:    collector,
		now:        time.Now,
	}
}

// Dispatch は通知を送信キューに積む。送信結果は待たない。
// 未知の種別はバリデーションエラーを返す。
func (d *Dispatcher) Dispatch(_ context.Context, n model.Notification) error {
	if !n.Type.Valid() {
		return model.NewInvalidNotificationTypeError(string(n.Type))
	}
	if d.adminEmail == "" {
		slog.Warn("notification dropped: ADMIN_EMAIL is not configured", slog.String("type", string(n.Type)))
		return nil
	}

	select {
	case d.queue <- n:
	default:
		d.metrics.RecordNotification(string(n.Type), metrics.ResultFailure)
		slog.Warn("notification dropped: queue is full",
			slog.String("type", string(n.Type)),
			slog.String("user_id", n.User.ID),
		)
	}
	return nil
}

// Run はctxがキャンセルされるまでキューの通知を送信する。
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if left := len(d.queue); left > 0 {
				slog.Warn("notification dispatcher stopped with pending notifications", slog.Int("pending", left))
			}
			return
		case n := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			d.send(ctx, n)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, n model.Notification) {
	msg, err := RenderNotification(d.adminEmail, n, d.now())
	if err == nil {
		err = d.mailer.Send(ctx, msg)
	}
	if err != nil {
		d.metrics.RecordNotification(string(n.Type), metrics.ResultFailure)
		slog.Error("failed to send notification",
			slog.String("type", string(n.Type)),
			slog.String("user_id", n.User.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	d.metrics.RecordNotification(string(n.Type), metrics.ResultSuccess)
	slog.Info("notification sent", slog.String("type", string(n.Type)), slog.String("user_id", n.User.ID))
}

// SendConfirmation はサインアップ確認メールを同期的に送信する。
func (d *Dispatcher) SendConfirmation(ctx context.Context, to, link string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("confirmation email: %w", err)
	}
	msg, err := RenderConfirmation(to, link)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, msg)
}
