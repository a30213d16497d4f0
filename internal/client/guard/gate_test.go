package guard

import (
	"context"
	"errors"
	"testing"
)

type profileReaderFunc func(ctx context.Context, userID string) (*ProfileFields, error)

func (f profileReaderFunc) ProfileFields(ctx context.Context, userID string) (*ProfileFields, error) {
	return f(ctx, userID)
}

func TestGate_IsProfileComplete(t *testing.T) {
	tests := []struct {
		name    string
		profile *ProfileFields
		err     error
		want    bool
	}{
		{"name and bio", &ProfileFields{FullName: "Alice", Bio: "hi"}, nil, true},
		{"avatar is not required", &ProfileFields{FullName: "Alice", Bio: "hi", AvatarURL: ""}, nil, true},
		{"missing bio", &ProfileFields{FullName: "Alice"}, nil, false},
		{"missing name", &ProfileFields{Bio: "hi"}, nil, false},
		{"whitespace only", &ProfileFields{FullName: "  ", Bio: "\t\n"}, nil, false},
		{"no profile row", nil, nil, false},
		{"read error", nil, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			gate := NewGate(profileReaderFunc(func(_ context.Context, userID string) (*ProfileFields, error) {
				gotID = userID
				return tt.profile, tt.err
			}))

			if got := gate.IsProfileComplete(context.Background(), "u1"); got != tt.want {
				t.Errorf("IsProfileComplete() = %v, want %v", got, tt.want)
			}
			if gotID != "u1" {
				t.Errorf("reader called with %q, want u1", gotID)
			}
		})
	}
}
