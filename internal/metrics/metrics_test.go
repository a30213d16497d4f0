package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAuthEvent_IncrementsCounterWithLabels は認証イベントがevent/resultラベル別に数えられることを検証する。
func TestRecordAuthEvent_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("signin", ResultSuccess)
	c.RecordAuthEvent("signin", ResultSuccess)
	c.RecordAuthEvent("signin", ResultFailure)

	m := findMetric(t, reg, "memoria_auth_events_total", map[string]string{"event": "signin", "result": "success"})
	if m == nil {
		t.Fatal("memoria_auth_events_total{event=signin,result=success} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("success count = %v, want 2", v)
	}

	m = findMetric(t, reg, "memoria_auth_events_total", map[string]string{"event": "signin", "result": "failure"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("failure count = %v, want 1", m)
	}
}

// TestRecordNotification_IncrementsCounter は通知結果が種別ごとに数えられることを検証する。
func TestRecordNotification_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotification("signup", ResultSuccess)

	m := findMetric(t, reg, "memoria_notifications_total", map[string]string{"type": "signup", "result": "success"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("notifications_total = %v, want 1", m)
	}
}

// TestRecordFriendTransition_IncrementsCounter は遷移先ステータス別に数えられることを検証する。
func TestRecordFriendTransition_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFriendTransition("accepted")
	c.RecordFriendTransition("removed")
	c.RecordFriendTransition("accepted")

	m := findMetric(t, reg, "memoria_friend_transitions_total", map[string]string{"status": "accepted"})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Errorf("accepted transitions = %v, want 2", m)
	}
}

// TestRecordActivityEvent_IncrementsCounter は操作ログイベントが種別ごとに数えられることを検証する。
func TestRecordActivityEvent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordActivityEvent("signout")

	m := findMetric(t, reg, "memoria_activity_events_total", map[string]string{"activity_type": "signout"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("activity_events_total = %v, want 1", m)
	}
}

// TestRecordAvatarUpload_IncrementsCounter はアップロード結果が数えられることを検証する。
func TestRecordAvatarUpload_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAvatarUpload(ResultFailure)

	m := findMetric(t, reg, "memoria_avatar_uploads_total", map[string]string{"result": "failure"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("avatar_uploads_total = %v, want 1", m)
	}
}

// TestRecordHTTPRequest_RecordsStatusAndLatency はステータスコードとレイテンシが記録されることを検証する。
func TestRecordHTTPRequest_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, 200, 150*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, 409, 20*time.Millisecond)

	m := findMetric(t, reg, "memoria_http_requests_total", map[string]string{"method": "POST", "status_code": "409"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("http_requests_total{POST,409} = %v, want 1", m)
	}

	h := findMetric(t, reg, "memoria_http_request_duration_seconds", nil)
	if h == nil {
		t.Fatal("memoria_http_request_duration_seconds not found")
	}
	if got := h.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はハンドラーがテキスト形式で出力することを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthEvent("signup", ResultSuccess)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `memoria_auth_events_total{event="signup",result="success"} 1`) {
		t.Errorf("body does not contain auth event sample:\n%s", body)
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はインターフェース準拠を検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリへの登録が衝突しないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()

	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordFriendTransition("rejected")

	if m := findMetric(t, reg2, "memoria_friend_transitions_total", map[string]string{"status": "rejected"}); m != nil {
		t.Error("reg2 should not see reg1's samples")
	}
}
