package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client())
}

func TestClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Profile{ID: "u1", FullName: "Alice"})
	})
	c.SetTokenSource(func() string { return "tok-1" })

	p, err := c.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.FullName != "Alice" {
		t.Errorf("FullName = %q, want Alice", p.FullName)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want empty", h)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteMemory(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMemory() error = %v", err)
	}
}

func TestClient_DecodesErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"INVALID_CREDENTIALS","message":"Invalid login credentials","action":"Check your email and password and try again."}`)
	})

	_, err := c.SignInWithPassword(context.Background(), "a@example.com", "bad")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "INVALID_CREDENTIALS" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if err.Error() != "Invalid login credentials" {
		t.Errorf("Error() = %q, want provider message", err.Error())
	}
}

func TestClient_ErrorWithoutBodyUsesStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetMemory(context.Background(), "missing")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Not Found" {
		t.Errorf("error = %#v, want Not Found", err)
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := &Error{Status: http.StatusNotFound, Message: "Profile not found: u1"}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404", notFound, true},
		{"wrapped 404", fmt.Errorf("get profile: %w", notFound), true},
		{"401", &Error{Status: http.StatusUnauthorized}, false},
		{"plain error", errors.New("not found"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClient_RequestShapes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   string
		response   string
	}{
		{
			name: "password grant",
			call: func(c *Client) error {
				_, err := c.SignInWithPassword(context.Background(), "a@example.com", "pw")
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/auth/v1/token",
			wantQuery:  "grant_type=password",
			wantBody:   `"email":"a@example.com"`,
		},
		{
			name: "sign up metadata",
			call: func(c *Client) error {
				_, err := c.SignUp(context.Background(), "a@example.com", "pw", "Alice", "http://localhost/")
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/auth/v1/signup",
			wantBody:   `"data":{"full_name":"Alice"}`,
		},
		{
			name: "friend list filter",
			call: func(c *Client) error {
				_, err := c.ListFriendRequests(context.Background(), RoleReceived, StatusPending)
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/rest/v1/friend_requests",
			wantQuery:  "role=received&status=pending",
			response:   `[]`,
		},
		{
			name: "profile search",
			call: func(c *Client) error {
				_, err := c.SearchProfiles(context.Background(), "ali", 10)
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/rest/v1/profiles",
			wantQuery:  "limit=10&q=ali",
			response:   `[]`,
		},
		{
			name:       "like",
			call:       func(c *Client) error { return c.Like(context.Background(), "m1") },
			wantMethod: http.MethodPut,
			wantPath:   "/rest/v1/memories/m1/like",
		},
		{
			name: "update friend request",
			call: func(c *Client) error {
				_, err := c.UpdateFriendRequest(context.Background(), "fr1", StatusAccepted)
				return err
			},
			wantMethod: http.MethodPatch,
			wantPath:   "/rest/v1/friend_requests/fr1",
			wantBody:   `{"status":"accepted"}`,
		},
		{
			name: "activity",
			call: func(c *Client) error {
				return c.RecordActivity(context.Background(), "u1", "signin")
			},
			wantMethod: http.MethodPost,
			wantPath:   "/rest/v1/user_activity",
			wantBody:   `{"user_id":"u1","activity_type":"signin"}`,
		},
		{
			name: "notification",
			call: func(c *Client) error {
				return c.SendNotification(context.Background(), Notification{Type: "signin", User: NotificationUser{Email: "a@example.com", ID: "u1"}})
			},
			wantMethod: http.MethodPost,
			wantPath:   "/functions/v1/send-notification",
			wantBody:   `{"type":"signin","user":{"email":"a@example.com","id":"u1"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.wantMethod {
					t.Errorf("method = %s, want %s", r.Method, tt.wantMethod)
				}
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.wantPath)
				}
				if tt.wantQuery != "" && r.URL.RawQuery != tt.wantQuery {
					t.Errorf("query = %s, want %s", r.URL.RawQuery, tt.wantQuery)
				}
				body, _ := io.ReadAll(r.Body)
				if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
					t.Errorf("body = %s, want it to contain %s", body, tt.wantBody)
				}
				if tt.response != "" {
					io.WriteString(w, tt.response)
					return
				}
				io.WriteString(w, `{}`)
			})
			if err := tt.call(c); err != nil {
				t.Fatalf("call error = %v", err)
			}
		})
	}
}

func TestClient_UploadAvatar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/storage/v1/avatar" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if header.Filename != "me.png" || string(data) != "png-bytes" {
			t.Errorf("upload = %s %q", header.Filename, data)
		}
		io.WriteString(w, `{"url":"http://cdn.example.com/avatars/u1/x.png"}`)
	})

	got, err := c.UploadAvatar(context.Background(), "me.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if got != "http://cdn.example.com/avatars/u1/x.png" {
		t.Errorf("url = %q", got)
	}
}
