// Package profile はプロフィールのドメインロジックを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/repository"
	"github.com/hitoshi/memoria/internal/security"
)

const (
	// MaxSearchResults は検索結果の既定件数かつ上限。
	MaxSearchResults = 10

	maxNameLength     = 255
	maxBioLength      = 1000
	maxLocationLength = 255
)

// CreateInput はプロフィール作成の入力。
type CreateInput struct {
	ID        string
	FullName  string
	Email     string
	Bio       string
	AvatarURL string
	Location  string
}

// Service はプロフィールのサービス層。
type Service struct {
	repo      repository.ProfileRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProfileRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// Get は指定IDのプロフィールを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError(id)
	}
	return p, nil
}

// Create は呼び出し元自身のプロフィールを作成する。
// メール通知は有効、非公開設定は無効で作成される。
func (s *Service) Create(ctx context.Context, viewerID string, in CreateInput) (*model.Profile, error) {
	if in.ID == "" {
		in.ID = viewerID
	}
	if in.ID != viewerID {
		return nil, model.NewForbiddenError("You can only create your own profile")
	}

	now := s.now()
	p := &model.Profile{
		ID:                 in.ID,
		FullName:           s.sanitizer.PlainText(in.FullName),
		Email:              strings.TrimSpace(in.Email),
		Bio:                s.sanitizer.PlainText(in.Bio),
		AvatarURL:          strings.TrimSpace(in.AvatarURL),
		Location:           s.sanitizer.PlainText(in.Location),
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewProfileExistsError()
		}
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Update は所有者本人のプロフィールを部分更新する。
func (s *Service) Update(ctx context.Context, viewerID, id string, patch model.ProfilePatch) (*model.Profile, error) {
	if id != viewerID {
		return nil, model.NewForbiddenError("You can only update your own profile")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return p, nil
	}

	s.sanitizePatch(&patch)
	patch.Apply(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return p, nil
}

// Search は名前またはメールアドレスの部分一致でプロフィールを検索する。呼び出し元は含まない。
// 空のクエリは検索せずに空の結果を返す。
func (s *Service) Search(ctx context.Context, viewerID, query string, limit int) ([]*model.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Profile{}, nil
	}
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}

	profiles, err := s.repo.Search(ctx, viewerID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの検索に失敗しました: %w", err)
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}
	return profiles, nil
}

func (s *Service) sanitizePatch(patch *model.ProfilePatch) {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		c := s.sanitizer.PlainText(*v)
		return &c
	}
	patch.FullName = clean(patch.FullName)
	patch.Bio = clean(patch.Bio)
	patch.Location = clean(patch.Location)
	if patch.Email != nil {
		e := strings.TrimSpace(*patch.Email)
		patch.Email = &e
	}
	if patch.AvatarURL != nil {
		u := strings.TrimSpace(*patch.AvatarURL)
		patch.AvatarURL = &u
	}
}

func validate(p *model.Profile) error {
	switch {
	case utf8.RuneCountInString(p.FullName) > maxNameLength:
		return model.NewValidationError("full_name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	case utf8.RuneCountInString(p.Bio) > maxBioLength:
		return model.NewValidationError("bio", fmt.Sprintf("must be at most %d characters", maxBioLength))
	case utf8.RuneCountInString(p.Location) > maxLocationLength:
		return model.NewValidationError("location", fmt.Sprintf("must be at most %d characters", maxLocationLength))
	}
	return nil
}
