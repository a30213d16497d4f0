// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証プロバイダが管理するアカウントを表す。
// PasswordHashはbcryptハッシュで、APIレスポンスには含めない。
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	FullName         string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Confirmed はメールアドレス確認済みかどうかを返す。
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Session はユーザーのログインセッションを表す。
// アクセストークン(JWT)はセッションIDをsidクレームとして保持する。
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RefreshedAt  time.Time
}

// EmailConfirmation はサインアップ時のメール確認トークンを表す。
type EmailConfirmation struct {
	Token      string
	UserID     string
	RedirectTo string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
