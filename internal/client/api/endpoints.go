package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// --- 認証 ---

type signUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirect_to,omitempty"`
	Data       struct {
		FullName string `json:"full_name"`
	} `json:"data"`
}

// SignUp はユーザーを登録する。
func (c *Client) SignUp(ctx context.Context, email, password, fullName, redirectTo string) (*SignUpResponse, error) {
	req := signUpRequest{Email: email, Password: password, RedirectTo: redirectTo}
	req.Data.FullName = fullName

	var resp SignUpResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type tokenRequest struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SignInWithPassword はメールアドレスとパスワードでセッションを発行する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*TokenResponse, error) {
	var resp TokenResponse
	q := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, tokenRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh はリフレッシュトークンでセッションを更新する。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	q := url.Values{"grant_type": {"refresh_token"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, tokenRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout は指定アクセストークンのセッションを破棄する。
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.send(req, nil)
}

// GetUser は現在のユーザーを取得する。
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- プロフィール ---

// GetProfile はプロフィールを取得する。
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile はプロフィールを作成する。
func (c *Client) CreateProfile(ctx context.Context, in NewProfile) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPost, "/rest/v1/profiles", nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile はプロフィールを部分更新する。
func (c *Client) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/profiles/"+url.PathEscape(id), nil, patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchProfiles は名前またはメールアドレスの部分一致でプロフィールを検索する。呼び出し元は含まない。
func (c *Client) SearchProfiles(ctx context.Context, query string, limit int) ([]Profile, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var ps []Profile
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles", q, nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// --- 思い出 ---

// ListMemories は指定ユーザーの閲覧可能な思い出を返す。
func (c *Client) ListMemories(ctx context.Context, userID string) ([]Memory, error) {
	var q url.Values
	if userID != "" {
		q = url.Values{"user_id": {userID}}
	}
	var ms []Memory
	if err := c.do(ctx, http.MethodGet, "/rest/v1/memories", q, nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

// GetMemory は思い出を1件取得する。
func (c *Client) GetMemory(ctx context.Context, id string) (*Memory, error) {
	var m Memory
	if err := c.do(ctx, http.MethodGet, "/rest/v1/memories/"+url.PathEscape(id), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMemory は思い出を作成する。
func (c *Client) CreateMemory(ctx context.Context, in NewMemory) (*Memory, error) {
	var m Memory
	if err := c.do(ctx, http.MethodPost, "/rest/v1/memories", nil, in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMemory は思い出を削除する。
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/memories/"+url.PathEscape(id), nil, nil, nil)
}

type likeState struct {
	Liked bool `json:"liked"`
}

// Liked は思い出に「いいね」済みかどうかを返す。
func (c *Client) Liked(ctx context.Context, memoryID string) (bool, error) {
	var s likeState
	if err := c.do(ctx, http.MethodGet, likePath(memoryID), nil, nil, &s); err != nil {
		return false, err
	}
	return s.Liked, nil
}

// Like は「いいね」行を追加する。
func (c *Client) Like(ctx context.Context, memoryID string) error {
	return c.do(ctx, http.MethodPut, likePath(memoryID), nil, nil, nil)
}

// Unlike は「いいね」行を削除する。
func (c *Client) Unlike(ctx context.Context, memoryID string) error {
	return c.do(ctx, http.MethodDelete, likePath(memoryID), nil, nil, nil)
}

func likePath(memoryID string) string {
	return "/rest/v1/memories/" + url.PathEscape(memoryID) + "/like"
}

// LikedMemoryIDs は呼び出し元が「いいね」した思い出のID一覧を返す。
func (c *Client) LikedMemoryIDs(ctx context.Context) ([]string, error) {
	var resp struct {
		MemoryIDs []string `json:"memory_ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/memory_likes", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.MemoryIDs, nil
}

// --- フレンド ---

// ListFriendRequests は呼び出し元が端点となるエッジを返す。statusが空の場合は全状態。
func (c *Client) ListFriendRequests(ctx context.Context, role, status string) ([]FriendRequest, error) {
	q := url.Values{}
	if role != "" {
		q.Set("role", role)
	}
	if status != "" {
		q.Set("status", status)
	}
	var rs []FriendRequest
	if err := c.do(ctx, http.MethodGet, "/rest/v1/friend_requests", q, nil, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// SendFriendRequest はpendingのエッジを作成する。
func (c *Client) SendFriendRequest(ctx context.Context, receiverID string) (*FriendRequest, error) {
	var r FriendRequest
	body := struct {
		ReceiverID string `json:"receiver_id"`
	}{receiverID}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/friend_requests", nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateFriendRequest はエッジの状態を変更する。
func (c *Client) UpdateFriendRequest(ctx context.Context, id, status string) (*FriendRequest, error) {
	var r FriendRequest
	body := struct {
		Status string `json:"status"`
	}{status}
	if err := c.do(ctx, http.MethodPatch, "/rest/v1/friend_requests/"+url.PathEscape(id), nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteFriendRequest はpendingのエッジを削除する。
func (c *Client) DeleteFriendRequest(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/friend_requests/"+url.PathEscape(id), nil, nil, nil)
}

// --- 操作ログ・通知・ストレージ ---

// RecordActivity は操作ログを1行追記する。
func (c *Client) RecordActivity(ctx context.Context, userID, activityType string) error {
	body := struct {
		UserID       string `json:"user_id"`
		ActivityType string `json:"activity_type"`
	}{userID, activityType}
	return c.do(ctx, http.MethodPost, "/rest/v1/user_activity", nil, body, nil)
}

// SendNotification は管理者通知関数を呼び出す。
func (c *Client) SendNotification(ctx context.Context, n Notification) error {
	return c.do(ctx, http.MethodPost, "/functions/v1/send-notification", nil, n, nil)
}

// UploadAvatar はアバター画像をアップロードし、公開URLを返す。
func (c *Client) UploadAvatar(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/storage/v1/avatar", nil, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
