package session

import (
	"context"
	"log/slog"
	"sync"
)

// State はStoreの購読者に渡される状態。
type State struct {
	Session *Session
	Loading bool
	// Kind は状態を変化させたイベント種別。復元応答による変化はEventInitialSession。
	Kind EventKind
}

// User はセッションが存在する場合にユーザーを返す。
func (s State) User() *User {
	if s.Session == nil {
		return nil
	}
	u := s.Session.User
	return &u
}

// Store は「有効なセッションがあるか、誰なのか」の唯一の情報源。
// 1プロセスにつき1インスタンスを明示的に生成して受け渡す。
type Store struct {
	provider Provider

	// emitMu はapplyと購読者呼び出しを直列化する。
	emitMu sync.Mutex

	mu      sync.Mutex
	session *Session
	seq     uint64
	applied bool
	loading bool
	subs    map[int]func(State)
	nextSub int

	unlisten  func()
	closeOnce sync.Once
}

// NewStore はStoreを生成する。Startを呼ぶまでLoadingはtrue。
func NewStore(provider Provider) *Store {
	return &Store{
		provider: provider,
		loading:  true,
		subs:     make(map[int]func(State)),
	}
}

// Start はプロバイダのリスナーを登録した後にセッション復元を行う。
// リスナー経由と復元応答のどちらが先に届いても同じ最終状態になる。
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	s.unlisten = s.provider.OnChange(func(e Event) {
		s.apply(e.Kind, e.Snapshot)
	})
	s.mu.Unlock()

	snap, err := s.provider.RestoreSession(ctx)
	if err != nil {
		slog.Warn("failed to restore session", slog.String("error", err.Error()))
		s.finishLoading()
		return err
	}
	s.apply(EventInitialSession, snap)
	return nil
}

// apply はスナップショットを冪等に反映する。既に反映済みのSeq以下のものは無視する。
func (s *Store) apply(kind EventKind, snap Snapshot) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.applied && snap.Seq <= s.seq {
		s.mu.Unlock()
		return
	}
	s.applied = true
	s.seq = snap.Seq
	s.session = snap.Session
	s.loading = false
	state := State{Session: s.session, Loading: false, Kind: kind}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (s *Store) finishLoading() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = false
	state := State{Session: s.session, Loading: false, Kind: EventInitialSession}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// subscribers は登録順に購読者を返す。mu保持中に呼ぶ。
func (s *Store) subscribers() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

// CurrentSession はキャッシュしているセッションを返す。無い場合はnil。
func (s *Store) CurrentSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// CurrentUser はセッションから導出したユーザーを返す。無い場合はnil。
func (s *Store) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	u := s.session.User
	return &u
}

// Loading は初回のセッション解決が済んでいないかどうかを返す。
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Snapshot は現在の状態を返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Session: s.session, Loading: s.loading}
}

// Subscribe は状態変化の購読者を登録する。購読者はイベント発生元のgoroutineで呼ばれるため、
// 中でプロバイダを呼び出さず、処理はキューに積むこと。
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
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

// Close はプロバイダのリスナーを1度だけ解除する。
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unlisten := s.unlisten
		s.unlisten = nil
		s.mu.Unlock()
		if unlisten != nil {
			unlisten()
		}
	})
}
