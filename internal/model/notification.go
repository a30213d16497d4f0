package model

// NotificationType は管理者向け通知の種別を表す。
type NotificationType string

const (
	NotificationSignIn   NotificationType = "signin"
	NotificationSignUp   NotificationType = "signup"
	NotificationActivity NotificationType = "activity"
	NotificationSetup    NotificationType = "setup"
)

// Valid は既知の種別かどうかを返す。
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSignIn, NotificationSignUp, NotificationActivity, NotificationSetup:
		return true
	}
	return false
}

// NotificationUser は通知対象ユーザーの識別情報。
type NotificationUser struct {
	Email string
	ID    string
}

// Notification は管理者アドレスへ送られる通知1件を表す。
type Notification struct {
	Type    NotificationType
	User    NotificationUser
	Details string
}
