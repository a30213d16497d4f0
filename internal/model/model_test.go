package model

import "testing"

func TestFriendRequestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to FriendRequestStatus
		want     bool
	}{
		{FriendRequestPending, FriendRequestAccepted, true},
		{FriendRequestPending, FriendRequestRejected, true},
		{FriendRequestPending, FriendRequestRemoved, false},
		{FriendRequestAccepted, FriendRequestRemoved, true},
		{FriendRequestAccepted, FriendRequestRejected, false},
		{FriendRequestRejected, FriendRequestAccepted, false},
		{FriendRequestRemoved, FriendRequestAccepted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFriendRequestStatus_Active(t *testing.T) {
	for status, want := range map[FriendRequestStatus]bool{
		FriendRequestPending:  true,
		FriendRequestAccepted: true,
		FriendRequestRejected: false,
		FriendRequestRemoved:  false,
	} {
		if got := status.Active(); got != want {
			t.Errorf("%s.Active() = %v, want %v", status, got, want)
		}
	}
	if FriendRequestStatus("blocked").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestFriendRequest_Counterpart(t *testing.T) {
	r := &FriendRequest{SenderID: "a", ReceiverID: "b"}
	if got := r.Counterpart("a"); got != "b" {
		t.Errorf("Counterpart(a) = %q, want b", got)
	}
	if got := r.Counterpart("b"); got != "a" {
		t.Errorf("Counterpart(b) = %q, want a", got)
	}
	if r.Involves("c") {
		t.Error("Involves(c) = true")
	}
}

func TestProfile_IsComplete(t *testing.T) {
	tests := []struct {
		name string
		p    *Profile
		want bool
	}{
		{"nil", nil, false},
		{"empty", &Profile{}, false},
		{"name only", &Profile{FullName: "Alice"}, false},
		{"whitespace bio", &Profile{FullName: "Alice", Bio: "  "}, false},
		{"complete", &Profile{FullName: "Alice", Bio: "hi"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsComplete(); got != tt.want {
				t.Errorf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProfilePatch_Apply(t *testing.T) {
	name := "Alice"
	private := true
	patch := ProfilePatch{FullName: &name, IsPrivate: &private}
	if patch.IsEmpty() {
		t.Fatal("IsEmpty() = true")
	}

	p := &Profile{FullName: "Old", Bio: "keep"}
	patch.Apply(p)
	if p.FullName != "Alice" || p.Bio != "keep" || !p.IsPrivate {
		t.Errorf("after Apply = %+v", p)
	}
	if !(ProfilePatch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
}

func TestActivityType_Valid(t *testing.T) {
	for _, at := range []ActivityType{ActivitySignIn, ActivitySignOut} {
		if !at.Valid() {
			t.Errorf("%q should be valid", at)
		}
	}
	for _, at := range []ActivityType{"signup", "setup", ""} {
		if at.Valid() {
			t.Errorf("%q should be invalid", at)
		}
	}
}
