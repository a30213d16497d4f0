package api

import "time"

// User は認証プロバイダのユーザー。
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	UserMetadata     map[string]string `json:"user_metadata"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TokenResponse はセッション発行レスポンス。
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// SignUpResponse はサインアップのレスポンス。メール確認が必要な場合Sessionはnil。
type SignUpResponse struct {
	User    User           `json:"user"`
	Session *TokenResponse `json:"session"`
}

// Profile はprofilesテーブルの行。
type Profile struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"full_name"`
	Email              string    `json:"email"`
	Bio                string    `json:"bio"`
	AvatarURL          string    `json:"avatar_url"`
	Location           string    `json:"location"`
	EmailNotifications bool      `json:"email_notifications"`
	IsPrivate          bool      `json:"is_private"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewProfile はプロフィール作成の入力。
type NewProfile struct {
	ID        string `json:"id,omitempty"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Location  string `json:"location,omitempty"`
}

// ProfilePatch はプロフィールの部分更新。nilのフィールドは送信しない。
type ProfilePatch struct {
	FullName           *string `json:"full_name,omitempty"`
	Email              *string `json:"email,omitempty"`
	Bio                *string `json:"bio,omitempty"`
	AvatarURL          *string `json:"avatar_url,omitempty"`
	Location           *string `json:"location,omitempty"`
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	IsPrivate          *bool   `json:"is_private,omitempty"`
}

// Memory はmemoriesテーブルの行。Dateは"YYYY-MM-DD"。
type Memory struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Emotion     string    `json:"emotion"`
	Location    string    `json:"location"`
	IsPrivate   bool      `json:"is_private"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMemory は思い出作成の入力。
type NewMemory struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Emotion     string `json:"emotion,omitempty"`
	Location    string `json:"location,omitempty"`
	IsPrivate   bool   `json:"is_private"`
	ImageURL    string `json:"image_url,omitempty"`
}

// FriendRequest はfriend_requestsテーブルの行。一覧取得時は相手側のProfileを含む。
type FriendRequest struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Profile    *Profile  `json:"profile,omitempty"`
}

// フレンドリクエストの状態。
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusRemoved  = "removed"
)

// 一覧取得時の視点。
const (
	RoleSent     = "sent"
	RoleReceived = "received"
	RoleAny      = "any"
)

// Activity はuser_activityテーブルの行。
type Activity struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationUser は通知対象ユーザー。
type NotificationUser struct {
	Email string `json:"email"`
	ID    string `json:"id"`
}

// Notification は通知関数への入力。
type Notification struct {
	Type    string           `json:"type"`
	User    NotificationUser `json:"user"`
	Details string           `json:"details,omitempty"`
}
