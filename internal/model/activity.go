package model

import "time"

// ActivityType はユーザー操作ログの種別を表す。
type ActivityType string

const (
	ActivitySignIn  ActivityType = "signin"
	ActivitySignOut ActivityType = "signout"
)

// Valid は既知の種別かどうかを返す。
func (t ActivityType) Valid() bool {
	switch t {
	case ActivitySignIn, ActivitySignOut:
		return true
	}
	return false
}

// UserActivity は追記専用の操作ログ1行を表す。
type UserActivity struct {
	ID           string
	UserID       string
	ActivityType ActivityType
	Timestamp    time.Time
	CreatedAt    time.Time
}
