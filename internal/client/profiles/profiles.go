// Package profiles はプロフィールの読み書きとアバター画像のアップロードを提供する。
package profiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/guard"
	"github.com/hitoshi/memoria/internal/client/notice"
)

// MaxAvatarBytes はアップロードできるアバター画像の最大サイズ。
const MaxAvatarBytes = 5 * 1024 * 1024

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ErrInvalidAvatar はアップロード前の検証で拒否された画像を表す。
var ErrInvalidAvatar = errors.New("invalid avatar")

// API はServiceが必要とするプラットフォームAPI。*api.Clientが実装する。
type API interface {
	GetProfile(ctx context.Context, id string) (*api.Profile, error)
	CreateProfile(ctx context.Context, in api.NewProfile) (*api.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch api.ProfilePatch) (*api.Profile, error)
	UploadAvatar(ctx context.Context, filename string, content io.Reader) (string, error)
}

// Service はプロフィール操作。
type Service struct {
	api     API
	notices notice.Sink
}

// NewService はServiceを生成する。
func NewService(client API, notices notice.Sink) *Service {
	if notices == nil {
		notices = notice.Discard
	}
	return &Service{api: client, notices: notices}
}

// Get はプロフィールを返す。存在しない場合はnilとnilを返す。
func (s *Service) Get(ctx context.Context, userID string) (*api.Profile, error) {
	p, err := s.api.GetProfile(ctx, userID)
	if api.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ProfileFields はguard.ProfileReaderを実装する。
func (s *Service) ProfileFields(ctx context.Context, userID string) (*guard.ProfileFields, error) {
	p, err := s.Get(ctx, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return &guard.ProfileFields{FullName: p.FullName, Bio: p.Bio, AvatarURL: p.AvatarURL}, nil
}

// EnsureProfile はプロフィールを取得し、存在しなければ作成する。
func (s *Service) EnsureProfile(ctx context.Context, userID, email, fullName string) (*api.Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	slog.Info("creating missing profile", slog.String("user_id", userID))
	return s.api.CreateProfile(ctx, api.NewProfile{ID: userID, Email: email, FullName: fullName})
}

// Update はプロフィールを部分更新する。
func (s *Service) Update(ctx context.Context, userID string, patch api.ProfilePatch) (*api.Profile, error) {
	p, err := s.api.UpdateProfile(ctx, userID, patch)
	if err != nil {
		s.notices.Notify(notice.Error("Error", messageOr(err, "Failed to update profile")))
		return nil, err
	}
	s.notices.Notify(notice.Success("Profile updated", "Your profile has been updated successfully"))
	return p, nil
}

// UploadAvatar はローカルの画像ファイルを検証してアップロードし、
// 公開URLをプロフィールのavatar_urlに保存する。
func (s *Service) UploadAvatar(ctx context.Context, userID, path string) (string, error) {
	data, err := readAvatar(path)
	if err != nil {
		s.notices.Notify(notice.Error("Error", err.Error()))
		return "", err
	}

	url, err := s.api.UploadAvatar(ctx, filepath.Base(path), bytes.NewReader(data))
	if err != nil {
		s.notices.Notify(notice.Error("Error", messageOr(err, "Failed to upload image")))
		return "", err
	}

	if _, err := s.api.UpdateProfile(ctx, userID, api.ProfilePatch{AvatarURL: &url}); err != nil {
		s.notices.Notify(notice.Error("Error", messageOr(err, "Failed to update profile")))
		return "", err
	}
	s.notices.Notify(notice.Success("Avatar updated", "Your profile picture has been updated"))
	return url, nil
}

func readAvatar(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	want, ok := allowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidAvatar, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxAvatarBytes {
		return nil, fmt.Errorf("%w: file size must be less than 5MB", ErrInvalidAvatar)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if got := http.DetectContentType(data); got != want {
		return nil, fmt.Errorf("%w: file content is %s, expected %s", ErrInvalidAvatar, got, want)
	}
	return data, nil
}

func messageOr(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
