package friends

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/notice"
	"github.com/hitoshi/memoria/internal/client/session"
)

type staticIdentity struct{ id string }

func (s staticIdentity) CurrentUser() *session.User {
	if s.id == "" {
		return nil
	}
	return &session.User{ID: s.id}
}

// edgeStore はfriend_requestsテーブルをメモリ上で再現するAPIのfake。
type edgeStore struct {
	self     string
	edges    []api.FriendRequest
	profiles map[string]api.Profile
	nextID   int

	listErr   error
	listCalls int
}

func newEdgeStore(self string, profiles ...api.Profile) *edgeStore {
	s := &edgeStore{self: self, profiles: make(map[string]api.Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *edgeStore) add(sender, receiver, status string) string {
	s.nextID++
	id := fmt.Sprintf("fr-%d", s.nextID)
	s.edges = append(s.edges, api.FriendRequest{ID: id, SenderID: sender, ReceiverID: receiver, Status: status})
	return id
}

func (s *edgeStore) ListFriendRequests(_ context.Context, role, status string) ([]api.FriendRequest, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []api.FriendRequest
	for _, e := range s.edges {
		if e.Status != status {
			continue
		}
		sent, received := e.SenderID == s.self, e.ReceiverID == s.self
		switch {
		case role == api.RoleSent && !sent, role == api.RoleReceived && !received, !sent && !received:
			continue
		}
		other := e.SenderID
		if sent {
			other = e.ReceiverID
		}
		if p, ok := s.profiles[other]; ok {
			e.Profile = &p
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *edgeStore) SearchProfiles(_ context.Context, query string, limit int) ([]api.Profile, error) {
	var out []api.Profile
	for _, p := range s.profiles {
		if p.FullName == query || p.Email == query {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *edgeStore) SendFriendRequest(_ context.Context, receiverID string) (*api.FriendRequest, error) {
	s.add(s.self, receiverID, api.StatusPending)
	r := s.edges[len(s.edges)-1]
	return &r, nil
}

func notFound(id string) error {
	return &api.Error{Status: 404, Message: "Friend request not found: " + id}
}

func (s *edgeStore) UpdateFriendRequest(_ context.Context, id, status string) (*api.FriendRequest, error) {
	for i := range s.edges {
		if s.edges[i].ID == id {
			s.edges[i].Status = status
			return &s.edges[i], nil
		}
	}
	return nil, notFound(id)
}

func (s *edgeStore) DeleteFriendRequest(_ context.Context, id string) error {
	for i := range s.edges {
		if s.edges[i].ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return notFound(id)
}

func entryIDs(entries []Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Profile.ID)
	}
	return ids
}

func sameIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Aliceの受信中リクエストを承認すると、AliceとBobの双方でフレンド一覧に現れる。
func TestManager_AcceptMakesBothSidesFriends(t *testing.T) {
	ctx := context.Background()
	alice := api.Profile{ID: "alice", FullName: "Alice", Email: "alice@example.com"}
	bob := api.Profile{ID: "bob", FullName: "Bob", Email: "bob@example.com"}

	store := newEdgeStore("bob", alice, bob)
	bobManager := NewManager(store, staticIdentity{"bob"}, nil)
	if err := bobManager.SendRequest(ctx, "alice"); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if got := entryIDs(bobManager.Snapshot().PendingOutgoing); !sameIDs(got, "alice") {
		t.Fatalf("bob outgoing = %v, want [alice]", got)
	}

	store.self = "alice"
	rec := &notice.Recorder{}
	aliceManager := NewManager(store, staticIdentity{"alice"}, rec)
	if err := aliceManager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	incoming := aliceManager.Snapshot().PendingIncoming
	if !sameIDs(entryIDs(incoming), "bob") {
		t.Fatalf("alice incoming = %v, want [bob]", entryIDs(incoming))
	}

	if err := aliceManager.Respond(ctx, incoming[0].RequestID, true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	snap := aliceManager.Snapshot()
	if !sameIDs(entryIDs(snap.Friends), "bob") || len(snap.PendingIncoming) != 0 {
		t.Errorf("alice snapshot = %+v, want bob as friend only", snap)
	}
	if n, _ := rec.Last(); n != notice.Success("Request Accepted", "You are now friends with this user") {
		t.Errorf("last notice = %+v", n)
	}

	store.self = "bob"
	if err := bobManager.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	snap = bobManager.Snapshot()
	if !sameIDs(entryIDs(snap.Friends), "alice") || len(snap.PendingOutgoing) != 0 {
		t.Errorf("bob snapshot = %+v, want alice as friend only", snap)
	}
}

func TestManager_RejectAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newEdgeStore("alice", api.Profile{ID: "bob"}, api.Profile{ID: "carol"})
	pending := store.add("bob", "alice", api.StatusPending)
	friendship := store.add("alice", "carol", api.StatusAccepted)

	rec := &notice.Recorder{}
	m := NewManager(store, staticIdentity{"alice"}, rec)

	if err := m.Respond(ctx, pending, false); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if n, _ := rec.Last(); n.Title != "Request Rejected" {
		t.Errorf("last notice = %+v, want Request Rejected", n)
	}

	if err := m.Remove(ctx, friendship); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Friends)+len(snap.PendingIncoming)+len(snap.PendingOutgoing) != 0 {
		t.Errorf("snapshot = %+v, want empty", snap)
	}
	// 解除したエッジはremovedとして残る
	if got := store.edges[1].Status; got != api.StatusRemoved {
		t.Errorf("edge status = %q, want removed", got)
	}
}

func TestManager_Search(t *testing.T) {
	ctx := context.Background()
	store := newEdgeStore("alice",
		api.Profile{ID: "alice", FullName: "Sam"},
		api.Profile{ID: "bob", FullName: "Sam"},
		api.Profile{ID: "carol", FullName: "Sam"},
		api.Profile{ID: "dave", FullName: "Sam"},
	)
	store.add("alice", "bob", api.StatusAccepted)
	store.add("carol", "alice", api.StatusPending)

	rec := &notice.Recorder{}
	m := NewManager(store, staticIdentity{"alice"}, rec)
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	got, err := m.Search(ctx, "  Sam ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "dave" {
		t.Errorf("Search() = %+v, want only dave", got)
	}

	got, err = m.Search(ctx, "Nobody")
	if err != nil || len(got) != 0 {
		t.Fatalf("Search() = %v, %v", got, err)
	}
	if n, _ := rec.Last(); n != notice.Info("No results", "No new users found matching your search") {
		t.Errorf("last notice = %+v", n)
	}
}

func TestManager_SearchLoadsSnapshotFirst(t *testing.T) {
	ctx := context.Background()
	store := newEdgeStore("alice",
		api.Profile{ID: "bob", FullName: "Sam"},
		api.Profile{ID: "carol", FullName: "Sam"},
		api.Profile{ID: "dave", FullName: "Sam"},
	)
	store.add("bob", "alice", api.StatusAccepted)
	store.add("alice", "carol", api.StatusPending)

	m := NewManager(store, staticIdentity{"alice"}, nil)
	got, err := m.Search(ctx, "Sam")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "dave" {
		t.Errorf("Search() = %+v, want only dave", got)
	}
	if store.listCalls != 3 {
		t.Errorf("listCalls = %d, want 3", store.listCalls)
	}

	// 取得済みなら再取得しない
	if _, err := m.Search(ctx, "Sam"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.listCalls != 3 {
		t.Errorf("listCalls after second search = %d, want 3", store.listCalls)
	}
}

func TestManager_SearchEmptyQueryMakesNoCall(t *testing.T) {
	m := NewManager(&failingAPI{t: t}, staticIdentity{"alice"}, nil)
	got, err := m.Search(context.Background(), "   ")
	if err != nil || got != nil {
		t.Errorf("Search() = %v, %v, want nil, nil", got, err)
	}
}

func TestManager_SendThenCancel(t *testing.T) {
	ctx := context.Background()
	store := newEdgeStore("alice", api.Profile{ID: "bob"})
	rec := &notice.Recorder{}
	m := NewManager(store, staticIdentity{"alice"}, rec)

	if err := m.SendRequest(ctx, "bob"); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	outgoing := m.Snapshot().PendingOutgoing
	if len(outgoing) != 1 {
		t.Fatalf("outgoing = %v, want one", outgoing)
	}

	if err := m.Cancel(ctx, outgoing[0].RequestID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(m.Snapshot().PendingOutgoing) != 0 || len(store.edges) != 0 {
		t.Errorf("request should be deleted, edges = %v", store.edges)
	}
	if n, _ := rec.Last(); n.Title != "Request Cancelled" {
		t.Errorf("last notice = %+v", n)
	}
}

func TestManager_RefreshFailureShowsError(t *testing.T) {
	store := newEdgeStore("alice")
	store.listErr = errors.New("connection refused")
	rec := &notice.Recorder{}
	m := NewManager(store, staticIdentity{"alice"}, rec)

	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil")
	}
	if store.listCalls != 1 {
		t.Errorf("list calls = %d, want stop after first failure", store.listCalls)
	}
	if n, _ := rec.Last(); n != notice.Error("Error", "connection refused") {
		t.Errorf("last notice = %+v", n)
	}
}

func TestManager_ListFallsBackToCounterpartID(t *testing.T) {
	store := newEdgeStore("alice")
	store.add("alice", "ghost", api.StatusAccepted)
	m := NewManager(store, staticIdentity{"alice"}, nil)

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := entryIDs(m.Snapshot().Friends); !sameIDs(got, "ghost") {
		t.Errorf("friends = %v, want [ghost]", got)
	}
}

// failingAPI は呼ばれたらテストを失敗させる。
type failingAPI struct{ t *testing.T }

func (f *failingAPI) ListFriendRequests(context.Context, string, string) ([]api.FriendRequest, error) {
	f.t.Error("unexpected ListFriendRequests call")
	return nil, nil
}

func (f *failingAPI) SearchProfiles(context.Context, string, int) ([]api.Profile, error) {
	f.t.Error("unexpected SearchProfiles call")
	return nil, nil
}

func (f *failingAPI) SendFriendRequest(context.Context, string) (*api.FriendRequest, error) {
	f.t.Error("unexpected SendFriendRequest call")
	return nil, nil
}

func (f *failingAPI) UpdateFriendRequest(context.Context, string, string) (*api.FriendRequest, error) {
	f.t.Error("unexpected UpdateFriendRequest call")
	return nil, nil
}

func (f *failingAPI) DeleteFriendRequest(context.Context, string) error {
	f.t.Error("unexpected DeleteFriendRequest call")
	return nil
}
