package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClient_Timeout はタイムアウト設定とカスタムTransportが反映されることをテストする。
func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected a custom Transport")
	}
}

// TestNewSafeClient_BlocksLoopback はhttptestサーバー(127.0.0.1)への接続が拒否されることをテストする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"https://example.com",
		"https://images.example.com/beach.jpg",
		"http://cdn.example.org/photos/1.png",
	} {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) returned error: %v", u, err)
		}
	}
}

// TestValidateURL_Blocked は内部ネットワーク宛てのURLがErrBlockedになることをテストする。
func TestValidateURL_Blocked(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"http://10.0.0.1/photo.jpg",
		"http://172.16.0.1/photo.jpg",
		"http://192.168.1.100/photo.jpg",
		"http://127.0.0.1/photo.jpg",
		"http://localhost/photo.jpg",
		"http://LOCALHOST./photo.jpg",
		"http://169.254.169.254/latest/meta-data/",
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://0.0.0.0/photo.jpg",
		"http://[::1]/photo.jpg",
		"http://[fd00::1]/photo.jpg",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); !errors.Is(err, ErrBlocked) {
				t.Errorf("ValidateURL(%q) = %v, want ErrBlocked", u, err)
			}
		})
	}
}

// TestValidateURL_InvalidURL は書式やスキームが不正なURLがErrInvalidURLになることをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewURLGuard()

	for _, u := range []string{
		"",
		"not-a-url",
		"ftp://example.com/photo.jpg",
		"file:///etc/passwd",
		"javascript:alert(1)",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("ValidateURL(%q) = %v, want ErrInvalidURL", u, err)
			}
		})
	}
}

func TestURLGuard_Trusted(t *testing.T) {
	guard := NewURLGuard("http://localhost:9000/avatars/", "::not a url")

	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:9000/avatars/u1/me.png", true},
		{"http://LOCALHOST:9000/avatars/u1/me.png", true},
		{"http://localhost:9000/avatars", true},
		{"http://localhost:9000/avatarsx/me.png", false},
		{"https://localhost:9000/avatars/me.png", false},
		{"http://localhost:9001/avatars/me.png", false},
		{"ftp://localhost:9000/avatars/me.png", false},
	}
	for _, tt := range tests {
		if got := guard.Trusted(tt.url); got != tt.want {
			t.Errorf("Trusted(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}

	if NewURLGuard().Trusted("https://example.com/a.png") {
		t.Error("guard without trusted bases should trust nothing")
	}
}

func TestValidateURL_MappedIPv4(t *testing.T) {
	if err := NewURLGuard().ValidateURL("http://[::ffff:127.0.0.1]/x.png"); !errors.Is(err, ErrBlocked) {
		t.Errorf("ValidateURL() = %v, want ErrBlocked", err)
	}
}

var _ URLPolicy = (*URLGuard)(nil)
