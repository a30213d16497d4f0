// Package friends はフレンド関係(friend_requestsのエッジ)の操作を提供する。
package friends

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/notice"
	"github.com/hitoshi/memoria/internal/client/session"
)

// SearchLimit はプロフィール検索で取得する最大件数。
const SearchLimit = 10

// API はManagerが必要とするプラットフォームAPI。*api.Clientが実装する。
type API interface {
	ListFriendRequests(ctx context.Context, role, status string) ([]api.FriendRequest, error)
	SearchProfiles(ctx context.Context, query string, limit int) ([]api.Profile, error)
	SendFriendRequest(ctx context.Context, receiverID string) (*api.FriendRequest, error)
	UpdateFriendRequest(ctx context.Context, id, status string) (*api.FriendRequest, error)
	DeleteFriendRequest(ctx context.Context, id string) error
}

// Identity は呼び出し元ユーザーの取得元。session.Storeが実装する。
type Identity interface {
	CurrentUser() *session.User
}

// Entry はエッジ1件と相手側のプロフィール。
type Entry struct {
	RequestID string
	Profile   api.Profile
}

// Snapshot は呼び出し元から見た3種類のエッジ一覧。
type Snapshot struct {
	Friends         []Entry
	PendingIncoming []Entry
	PendingOutgoing []Entry
}

// IDs はスナップショットに含まれる相手側ユーザーIDの集合を返す。
func (s Snapshot) IDs() map[string]bool {
	ids := make(map[string]bool, len(s.Friends)+len(s.PendingIncoming)+len(s.PendingOutgoing))
	for _, list := range [][]Entry{s.Friends, s.PendingIncoming, s.PendingOutgoing} {
		for _, e := range list {
			ids[e.Profile.ID] = true
		}
	}
	return ids
}

// Manager はフレンド関係の操作後に毎回スナップショット全体を取り直す。
type Manager struct {
	api      API
	identity Identity
	notices  notice.Sink

	mu     sync.Mutex
	snap   Snapshot
	loaded bool
}

// NewManager はManagerを生成する。
func NewManager(client API, identity Identity, notices notice.Sink) *Manager {
	if notices == nil {
		notices = notice.Discard
	}
	return &Manager{api: client, identity: identity, notices: notices}
}

// Snapshot は最後に取得したスナップショットを返す。
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Refresh はフレンド、受信中、送信中の一覧を取り直してスナップショットを置き換える。
func (m *Manager) Refresh(ctx context.Context) error {
	friends, err := m.list(ctx, api.RoleAny, api.StatusAccepted)
	if err != nil {
		return m.fail(err, "Failed to load friends")
	}
	incoming, err := m.list(ctx, api.RoleReceived, api.StatusPending)
	if err != nil {
		return m.fail(err, "Failed to load friends")
	}
	outgoing, err := m.list(ctx, api.RoleSent, api.StatusPending)
	if err != nil {
		return m.fail(err, "Failed to load friends")
	}

	m.mu.Lock()
	m.snap = Snapshot{Friends: friends, PendingIncoming: incoming, PendingOutgoing: outgoing}
	m.loaded = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) list(ctx context.Context, role, status string) ([]Entry, error) {
	reqs, err := m.api.ListFriendRequests(ctx, role, status)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(reqs))
	for _, r := range reqs {
		e := Entry{RequestID: r.ID}
		if r.Profile != nil {
			e.Profile = *r.Profile
		} else {
			e.Profile.ID = counterpart(r, m.selfID())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Search は名前またはメールアドレスでユーザーを検索し、
// 自分自身と既存のフレンド・受信中・送信中の相手を除いて返す。空の検索語ではネットワークを使わない。
// スナップショットが未取得の場合は先にRefreshする。
func (m *Manager) Search(ctx context.Context, query string) ([]api.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	m.mu.Lock()
	loaded := m.loaded
	m.mu.Unlock()
	if !loaded {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	found, err := m.api.SearchProfiles(ctx, query, SearchLimit)
	if err != nil {
		return nil, m.fail(err, "Failed to search users")
	}

	exclude := m.Snapshot().IDs()
	exclude[m.selfID()] = true

	results := make([]api.Profile, 0, len(found))
	for _, p := range found {
		if !exclude[p.ID] {
			results = append(results, p)
		}
	}
	if len(results) == 0 {
		m.notices.Notify(notice.Info("No results", "No new users found matching your search"))
	}
	return results, nil
}

// SendRequest は相手にフレンドリクエストを送る。
func (m *Manager) SendRequest(ctx context.Context, targetID string) error {
	if _, err := m.api.SendFriendRequest(ctx, targetID); err != nil {
		return m.fail(err, "Failed to send friend request")
	}
	m.notices.Notify(notice.Success("Request Sent", "Friend request sent successfully"))
	return m.Refresh(ctx)
}

// Respond は受信したリクエストを承認または拒否する。
func (m *Manager) Respond(ctx context.Context, requestID string, accept bool) error {
	status, action := api.StatusRejected, "reject"
	if accept {
		status, action = api.StatusAccepted, "accept"
	}
	if _, err := m.api.UpdateFriendRequest(ctx, requestID, status); err != nil {
		return m.fail(err, "Failed to "+action+" friend request")
	}
	if accept {
		m.notices.Notify(notice.Success("Request Accepted", "You are now friends with this user"))
	} else {
		m.notices.Notify(notice.Success("Request Rejected", "Friend request rejected"))
	}
	return m.Refresh(ctx)
}

// Remove はフレンドを解除する。エッジはremovedとして残る。
func (m *Manager) Remove(ctx context.Context, requestID string) error {
	if _, err := m.api.UpdateFriendRequest(ctx, requestID, api.StatusRemoved); err != nil {
		return m.fail(err, "Failed to remove friend")
	}
	m.notices.Notify(notice.Success("Friend Removed", "Friend has been removed from your list"))
	return m.Refresh(ctx)
}

// Cancel は送信中のリクエストを取り消す。
func (m *Manager) Cancel(ctx context.Context, requestID string) error {
	if err := m.api.DeleteFriendRequest(ctx, requestID); err != nil {
		return m.fail(err, "Failed to cancel friend request")
	}
	m.notices.Notify(notice.Success("Request Cancelled", "Friend request has been cancelled"))
	return m.Refresh(ctx)
}

func (m *Manager) fail(err error, fallback string) error {
	slog.Warn(strings.ToLower(fallback), slog.String("error", err.Error()))
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	m.notices.Notify(notice.Error("Error", msg))
	return err
}

func (m *Manager) selfID() string {
	if m.identity == nil {
		return ""
	}
	if u := m.identity.CurrentUser(); u != nil {
		return u.ID
	}
	return ""
}

func counterpart(r api.FriendRequest, self string) string {
	if r.SenderID == self {
		return r.ReceiverID
	}
	return r.SenderID
}
