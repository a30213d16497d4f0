package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/memoria/internal/model"
)

// Channel はuser_activityトリガーが通知するチャネル名。
const Channel = "user_activity"

// Event はpg_notifyで届く変更通知1件を表す。
type Event struct {
	Table     string `json:"table"`
	Operation string `json:"operation"`
	Record    Record `json:"record"`
}

// Record は通知に含まれるuser_activityの行。
type Record struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	ActivityType model.ActivityType `json:"activity_type"`
	Timestamp    time.Time          `json:"timestamp"`
	CreatedAt    time.Time          `json:"created_at"`
}

// Filter は購読するイベントの条件。空のフィールドは全件に一致する。
type Filter struct {
	Table        string
	ActivityType model.ActivityType
}

func (f Filter) match(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.ActivityType != "" && f.ActivityType != e.Record.ActivityType {
		return false
	}
	return true
}

// CancelFunc は購読を解除する。複数回呼び出しても安全。
type CancelFunc func()

// listener はpq.Listenerのうちストリームが使う操作。
type listener interface {
	Ping() error
	Close() error
}

type subscription struct {
	filter  Filter
	handler func(Event)
}

// Stream はPostgreSQLのLISTEN/NOTIFYを購読者へ配信する。
// ハンドラはRunを実行しているゴルーチン上で順に呼び出される。
type Stream struct {
	listener     listener
	notify       <-chan *pq.Notification
	pingInterval time.Duration

	mu     sync.Mutex
	subs   map[uint64]subscription
	nextID uint64
}

// NewStream はdatabaseURLに接続してChannelをLISTENするStreamを生成する。
func NewStream(databaseURL string) (*Stream, error) {
	l := pq.NewListener(databaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("activity listener event", slog.Int("event", int(ev)), slog.String("error", err.Error()))
		}
	})
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	return newStream(l, l.Notify), nil
}

func newStream(l listener, notify <-chan *pq.Notification) *Stream {
	return &Stream{
		listener:     l,
		notify:       notify,
		pingInterval: 90 * time.Second,
		subs:         make(map[uint64]subscription),
	}
}

// Subscribe はfilterに一致するイベントごとにhandlerを呼び出すよう登録する。
func (s *Stream) Subscribe(filter Filter, handler func(Event)) CancelFunc {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = subscription{filter: filter, handler: handler}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Run はctxがキャンセルされるか通知チャネルが閉じられるまでイベントを配信する。
func (s *Stream) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-s.notify:
			if !ok {
				return nil
			}
			if n == nil {
				// 再接続直後。切断中の通知は失われている
				slog.Info("activity listener reconnected")
				continue
			}
			s.dispatch(n.Extra)
		case <-ticker.C:
			if err := s.listener.Ping(); err != nil {
				slog.Warn("activity listener ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Stream) dispatch(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("invalid activity notification",
			slog.String("payload", payload),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	handlers := make([]func(Event), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.filter.match(ev) {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Close はリスナー接続を閉じる。
func (s *Stream) Close() error {
	return s.listener.Close()
}
