// Package session はクライアントプロセス内の認証セッションを保持する。
package session

import (
	"context"
	"time"
)

// User はセッションから導出されるユーザー識別情報。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session は認証プロバイダが発行したセッション。アプリケーションは読み取り専用で保持する。
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired は指定時刻時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Snapshot はプロバイダが把握しているセッション状態。
// Seqはプロバイダ内で単調増加し、受信順に関係なく新旧を判定するのに使う。
type Snapshot struct {
	Session *Session
	Seq     uint64
}

// EventKind はセッション遷移の種別。
type EventKind string

const (
	EventInitialSession EventKind = "initial_session"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// Event はプロバイダから通知されるセッション遷移。
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

// SignUpOptions はサインアップ時の追加情報。
type SignUpOptions struct {
	FullName    string
	RedirectURL string
}

// SignUpResult はサインアップ結果。メール確認が必要な場合Sessionはnil。
type SignUpResult struct {
	User    *User
	Session *Session
}

// Provider は外部認証プロバイダの契約。
type Provider interface {
	RestoreSession(ctx context.Context) (Snapshot, error)
	// OnChange はセッション遷移のリスナーを登録し、解除関数を返す。
	OnChange(fn func(Event)) (cancel func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*SignUpResult, error)
	SignOut(ctx context.Context) error
}
