package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hitoshi/memoria/internal/client/session"
)

// SessionFileName はセッションを永続化するファイル名。
const SessionFileName = "memoria-auth-storage.json"

// defaultRefreshMargin は有効期限の何分前にトークンを更新するか。
const defaultRefreshMargin = time.Minute

// Provider はプラットフォームの認証APIをsession.Providerとして提供する。
// セッションはファイルに永続化し、有効期限前にバックグラウンドで更新する。
type Provider struct {
	client *Client
	path   string
	now    func() time.Time
	margin time.Duration

	mu        sync.Mutex
	current   *session.Session
	seq       uint64
	listeners map[int]func(session.Event)
	nextID    int
	timer     *time.Timer
	closed    bool
}

// NewProvider はProviderを生成し、clientのトークン取得元として登録する。
// pathが空の場合はセッションを永続化しない。
func NewProvider(client *Client, path string) *Provider {
	p := &Provider{
		client:    client,
		path:      path,
		now:       time.Now,
		margin:    defaultRefreshMargin,
		listeners: make(map[int]func(session.Event)),
	}
	client.SetTokenSource(p.AccessToken)
	return p
}

// AccessToken は現在のアクセストークンを返す。無い場合は空文字。
func (p *Provider) AccessToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.AccessToken
}

// OnChange はsession.Providerを実装する。
func (p *Provider) OnChange(fn func(session.Event)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// RestoreSession は永続化されたセッションを読み込む。期限切れの場合はリフレッシュを試み、
// 失敗した場合はセッション無しとして扱う。
func (p *Provider) RestoreSession(ctx context.Context) (session.Snapshot, error) {
	stored, err := p.load()
	if err != nil {
		slog.Warn("discarding unreadable session file",
			slog.String("path", p.path),
			slog.String("error", err.Error()),
		)
		p.removeFile()
		stored = nil
	}

	if stored != nil && stored.Expired(p.now().Add(p.margin)) {
		refreshed, err := p.client.Refresh(ctx, stored.RefreshToken)
		if err != nil {
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				return session.Snapshot{}, fmt.Errorf("failed to refresh stored session: %w", err)
			}
			slog.Info("stored session is no longer valid", slog.String("error", err.Error()))
			p.removeFile()
			stored = nil
		} else {
			stored = toSession(refreshed)
		}
	}

	snap := p.set(stored)
	p.emit(session.EventInitialSession, snap)
	return snap, nil
}

// SignInWithPassword はsession.Providerを実装する。
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	resp, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s := toSession(resp)
	p.emit(session.EventSignedIn, p.set(s))
	return s, nil
}

// SignUp はsession.Providerを実装する。
func (p *Provider) SignUp(ctx context.Context, email, password string, opts session.SignUpOptions) (*session.SignUpResult, error) {
	resp, err := p.client.SignUp(ctx, email, password, opts.FullName, opts.RedirectURL)
	if err != nil {
		return nil, err
	}
	result := &session.SignUpResult{User: &session.User{ID: resp.User.ID, Email: resp.User.Email}}
	if resp.Session != nil {
		result.Session = toSession(resp.Session)
		p.emit(session.EventSignedIn, p.set(result.Session))
	}
	return result, nil
}

// SignOut はローカルのセッションを破棄してからプラットフォームのセッションを破棄する。
// プラットフォーム側の失敗はエラーとして返すが、ローカルの状態は破棄済みとなる。
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	p.emit(session.EventSignedOut, p.set(nil))
	if current == nil {
		return nil
	}
	return p.client.Logout(ctx, current.AccessToken)
}

// Close はバックグラウンドのトークン更新を停止する。
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// set は現在のセッションを置き換え、永続化と更新タイマーの再設定を行う。
func (p *Provider) set(s *session.Session) session.Snapshot {
	p.mu.Lock()
	p.current = s
	p.seq++
	snap := session.Snapshot{Session: s, Seq: p.seq}
	p.scheduleRefreshLocked()
	p.mu.Unlock()

	if s == nil {
		p.removeFile()
	} else if err := p.save(s); err != nil {
		slog.Warn("failed to persist session", slog.String("error", err.Error()))
	}
	return snap
}

func (p *Provider) emit(kind session.EventKind, snap session.Snapshot) {
	p.mu.Lock()
	fns := make([]func(session.Event), 0, len(p.listeners))
	for id := 0; id < p.nextID; id++ {
		if fn, ok := p.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	e := session.Event{Kind: kind, Snapshot: snap}
	for _, fn := range fns {
		fn(e)
	}
}

// scheduleRefreshLocked は有効期限の少し前に更新するタイマーを設定する。mu保持中に呼ぶ。
func (p *Provider) scheduleRefreshLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.closed || p.current == nil {
		return
	}
	wait := p.current.ExpiresAt.Sub(p.now()) - p.margin
	if wait < 0 {
		wait = 0
	}
	refreshToken := p.current.RefreshToken
	p.timer = time.AfterFunc(wait, func() { p.refresh(refreshToken) })
}

func (p *Provider) refresh(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	resp, err := p.client.Refresh(ctx, refreshToken)

	p.mu.Lock()
	stale := p.closed || p.current == nil || p.current.RefreshToken != refreshToken
	p.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			slog.Warn("session refresh rejected", slog.String("error", err.Error()))
			p.emit(session.EventSignedOut, p.set(nil))
			return
		}
		slog.Warn("session refresh failed", slog.String("error", err.Error()))
		return
	}
	p.emit(session.EventTokenRefreshed, p.set(toSession(resp)))
}

func (p *Provider) load() (*session.Session, error) {
	if p.path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s session.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	if s.AccessToken == "" || s.User.ID == "" {
		return nil, errors.New("session file is incomplete")
	}
	return &s, nil
}

func (p *Provider) save(s *session.Session) error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, p.path)
}

func (p *Provider) removeFile() {
	if p.path == "" {
		return
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove session file", slog.String("error", err.Error()))
	}
}

func toSession(t *TokenResponse) *session.Session {
	return &session.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Unix(t.ExpiresAt, 0),
		User:         session.User{ID: t.User.ID, Email: t.User.Email},
	}
}

var _ session.Provider = (*Provider)(nil)
