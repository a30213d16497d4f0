// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthEvent(event, result string)
	RecordNotification(notificationType, result string)
	RecordFriendTransition(status string)
	RecordActivityEvent(activityType string)
	RecordAvatarUpload(result string)
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents        *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	friendTransitions *prometheus.CounterVec
	activityEvents    *prometheus.CounterVec
	avatarUploads     *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_auth_events_total",
			Help: "認証イベント(signup/signin/refresh/signout)の合計数",
		}, []string{"event", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_notifications_total",
			Help: "管理者通知の送信結果別の合計数",
		}, []string{"type", "result"}),
		friendTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_friend_transitions_total",
			Help: "フレンドリクエストの状態遷移の合計数",
		}, []string{"status"}),
		activityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_activity_events_total",
			Help: "イベントストリームで受信した操作ログの合計数",
		}, []string{"activity_type"}),
		avatarUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_avatar_uploads_total",
			Help: "アバター画像アップロードの結果別の合計数",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memoria_http_requests_total",
			Help: "HTTPリクエストのメソッド・ステータスコード別の合計数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memoria_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.notifications,
		c.friendTransitions,
		c.activityEvents,
		c.avatarUploads,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, result string) {
	c.authEvents.WithLabelValues(event, result).Inc()
}

// RecordNotification は通知の送信結果を記録する。
func (c *Collector) RecordNotification(notificationType, result string) {
	c.notifications.WithLabelValues(notificationType, result).Inc()
}

// RecordFriendTransition はフレンドリクエストの遷移先ステータスを記録する。
func (c *Collector) RecordFriendTransition(status string) {
	c.friendTransitions.WithLabelValues(status).Inc()
}

// RecordActivityEvent は受信した操作ログを記録する。
func (c *Collector) RecordActivityEvent(activityType string) {
	c.activityEvents.WithLabelValues(activityType).Inc()
}

// RecordAvatarUpload はアバターアップロードの結果を記録する。
func (c *Collector) RecordAvatarUpload(result string) {
	c.avatarUploads.WithLabelValues(result).Inc()
}

// RecordHTTPRequest はHTTPリクエストのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordAuthEvent(string, string)               {}
func (Nop) RecordNotification(string, string)            {}
func (Nop) RecordFriendTransition(string)                {}
func (Nop) RecordActivityEvent(string)                   {}
func (Nop) RecordAvatarUpload(string)                    {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
