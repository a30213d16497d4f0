package profiles

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/notice"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type mockAPI struct {
	getFn    func(ctx context.Context, id string) (*api.Profile, error)
	createFn func(ctx context.Context, in api.NewProfile) (*api.Profile, error)
	updateFn func(ctx context.Context, id string, patch api.ProfilePatch) (*api.Profile, error)
	uploadFn func(ctx context.Context, filename string, content io.Reader) (string, error)
}

func (m *mockAPI) GetProfile(ctx context.Context, id string) (*api.Profile, error) {
	return m.getFn(ctx, id)
}

func (m *mockAPI) CreateProfile(ctx context.Context, in api.NewProfile) (*api.Profile, error) {
	return m.createFn(ctx, in)
}

func (m *mockAPI) UpdateProfile(ctx context.Context, id string, patch api.ProfilePatch) (*api.Profile, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockAPI) UploadAvatar(ctx context.Context, filename string, content io.Reader) (string, error) {
	return m.uploadFn(ctx, filename, content)
}

func notFound(context.Context, string) (*api.Profile, error) {
	return nil, &api.Error{Status: 404, Code: "PROFILE_NOT_FOUND", Message: "Profile not found"}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestService_GetMissingProfile(t *testing.T) {
	s := NewService(&mockAPI{getFn: notFound}, nil)

	p, err := s.Get(context.Background(), "u1")
	if err != nil || p != nil {
		t.Errorf("Get() = %v, %v, want nil, nil", p, err)
	}
	fields, err := s.ProfileFields(context.Background(), "u1")
	if err != nil || fields != nil {
		t.Errorf("ProfileFields() = %v, %v, want nil, nil", fields, err)
	}
}

func TestService_GetOtherErrorsPropagate(t *testing.T) {
	want := &api.Error{Status: 500, Message: "boom"}
	s := NewService(&mockAPI{getFn: func(context.Context, string) (*api.Profile, error) { return nil, want }}, nil)

	if _, err := s.Get(context.Background(), "u1"); !errors.Is(err, want) {
		t.Errorf("Get() error = %v, want %v", err, want)
	}
}

func TestService_EnsureProfileCreatesMissing(t *testing.T) {
	var created api.NewProfile
	s := NewService(&mockAPI{
		getFn: notFound,
		createFn: func(_ context.Context, in api.NewProfile) (*api.Profile, error) {
			created = in
			return &api.Profile{ID: in.ID, Email: in.Email}, nil
		},
	}, nil)

	p, err := s.EnsureProfile(context.Background(), "u1", "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("EnsureProfile() error = %v", err)
	}
	if p.ID != "u1" || created.Email != "alice@example.com" || created.FullName != "Alice" {
		t.Errorf("created %+v, got %+v", created, p)
	}
}

func TestService_EnsureProfileKeepsExisting(t *testing.T) {
	s := NewService(&mockAPI{
		getFn: func(_ context.Context, id string) (*api.Profile, error) {
			return &api.Profile{ID: id, FullName: "Alice"}, nil
		},
		createFn: func(context.Context, api.NewProfile) (*api.Profile, error) {
			t.Error("CreateProfile should not be called")
			return nil, nil
		},
	}, nil)

	if p, err := s.EnsureProfile(context.Background(), "u1", "", ""); err != nil || p.FullName != "Alice" {
		t.Errorf("EnsureProfile() = %+v, %v", p, err)
	}
}

func TestService_UploadAvatar(t *testing.T) {
	var uploaded string
	var saved *string
	s := NewService(&mockAPI{
		uploadFn: func(_ context.Context, filename string, content io.Reader) (string, error) {
			uploaded = filename
			return "http://localhost:9000/avatars/u1/abc.png", nil
		},
		updateFn: func(_ context.Context, id string, patch api.ProfilePatch) (*api.Profile, error) {
			saved = patch.AvatarURL
			return &api.Profile{ID: id}, nil
		},
	}, nil)

	path := writeFile(t, "me.png", pngHeader)
	url, err := s.UploadAvatar(context.Background(), "u1", path)
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if uploaded != "me.png" {
		t.Errorf("uploaded filename = %q, want me.png", uploaded)
	}
	if saved == nil || *saved != url {
		t.Errorf("avatar_url = %v, want %q", saved, url)
	}
}

func TestService_UploadAvatarRejectsBeforeNetwork(t *testing.T) {
	big := make([]byte, MaxAvatarBytes+1)
	copy(big, pngHeader)

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"unsupported extension", "me.gif", []byte("GIF89a")},
		{"too large", "big.png", big},
		{"content mismatch", "fake.jpg", pngHeader},
		{"not an image", "notes.png", []byte("hello world")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notice.Recorder{}
			s := NewService(&mockAPI{
				uploadFn: func(context.Context, string, io.Reader) (string, error) {
					t.Error("UploadAvatar should not reach the API")
					return "", nil
				},
			}, rec)

			_, err := s.UploadAvatar(context.Background(), "u1", writeFile(t, tt.file, tt.data))
			if !errors.Is(err, ErrInvalidAvatar) {
				t.Errorf("UploadAvatar() error = %v, want ErrInvalidAvatar", err)
			}
			if n, ok := rec.Last(); !ok || n.Kind != notice.KindError {
				t.Errorf("notice = %+v, want an error notice", n)
			}
		})
	}
}

func TestService_UpdateNotices(t *testing.T) {
	rec := &notice.Recorder{}
	s := NewService(&mockAPI{
		updateFn: func(_ context.Context, id string, _ api.ProfilePatch) (*api.Profile, error) {
			return &api.Profile{ID: id}, nil
		},
	}, rec)

	if _, err := s.Update(context.Background(), "u1", api.ProfilePatch{}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if n, _ := rec.Last(); n != notice.Success("Profile updated", "Your profile has been updated successfully") {
		t.Errorf("notice = %+v", n)
	}
}
