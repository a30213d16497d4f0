// Package memory は思い出と「いいね」のドメインロジックを提供する。
// 閲覧可否はリポジトリのクエリで判定し、変更は所有者のみに許可する。
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/memoria/internal/model"
	"github.com/hitoshi/memoria/internal/repository"
	"github.com/hitoshi/memoria/internal/security"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxLocationLength    = 255
)

// Service は思い出のサービス層。
type Service struct {
	memories  repository.MemoryRepository
	likes     repository.MemoryLikeRepository
	sanitizer security.TextSanitizer
	verifier  security.ImageVerifier // nilの場合は画像URLを検証しない
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	memories repository.MemoryRepository,
	likes repository.MemoryLikeRepository,
	sanitizer security.TextSanitizer,
	verifier security.ImageVerifier,
) *Service {
	return &Service{
		memories:  memories,
		likes:     likes,
		sanitizer: sanitizer,
		verifier:  verifier,
		now:       time.Now,
	}
}

// List はownerIDの思い出のうち閲覧者から見えるものを日付の降順で返す。
func (s *Service) List(ctx context.Context, viewerID, ownerID string) ([]*model.Memory, error) {
	list, err := s.memories.ListVisibleByUser(ctx, viewerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("思い出一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []*model.Memory{}
	}
	return list, nil
}

// Get は閲覧者から見える思い出を返す。見えない場合は存在しない場合と同じエラーを返す。
func (s *Service) Get(ctx context.Context, viewerID, id string) (*model.Memory, error) {
	m, err := s.memories.FindVisible(ctx, viewerID, id)
	if err != nil {
		return nil, fmt.Errorf("思い出の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewMemoryNotFoundError(id)
	}
	return m, nil
}

// Create は呼び出し元の思い出を作成する。
func (s *Service) Create(ctx context.Context, viewerID string, in model.NewMemory) (*model.Memory, error) {
	m := &model.Memory{
		ID:          uuid.New().String(),
		UserID:      viewerID,
		Title:       s.sanitizer.PlainText(in.Title),
		Description: s.sanitizer.RichText(in.Description),
		Date:        in.Date,
		Emotion:     in.Emotion,
		Location:    s.sanitizer.PlainText(in.Location),
		IsPrivate:   in.IsPrivate,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CreatedAt:   s.now(),
	}
	if err := s.validate(ctx, m, true); err != nil {
		return nil, err
	}

	if err := s.memories.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("思い出の作成に失敗しました: %w", err)
	}
	slog.Info("memory created", slog.String("memory_id", m.ID), slog.String("user_id", viewerID))
	return m, nil
}

// Update は所有者の思い出を部分更新する。
func (s *Service) Update(ctx context.Context, viewerID, id string, patch model.MemoryPatch) (*model.Memory, error) {
	m, err := s.owned(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}

	imageChanged := patch.ImageURL != nil && strings.TrimSpace(*patch.ImageURL) != m.ImageURL
	s.sanitizePatch(&patch)
	patch.Apply(m)
	if err := s.validate(ctx, m, imageChanged); err != nil {
		return nil, err
	}

	if err := s.memories.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("思い出の更新に失敗しました: %w", err)
	}
	return m, nil
}

// Delete は所有者の思い出を削除する。
func (s *Service) Delete(ctx context.Context, viewerID, id string) error {
	if _, err := s.owned(ctx, viewerID, id); err != nil {
		return err
	}
	deleted, err := s.memories.Delete(ctx, viewerID, id)
	if err != nil {
		return fmt.Errorf("思い出の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewMemoryNotFoundError(id)
	}
	slog.Info("memory deleted", slog.String("memory_id", id), slog.String("user_id", viewerID))
	return nil
}

// Liked は閲覧者が思い出に「いいね」しているかどうかを返す。
func (s *Service) Liked(ctx context.Context, viewerID, memoryID string) (bool, error) {
	if _, err := s.Get(ctx, viewerID, memoryID); err != nil {
		return false, err
	}
	liked, err := s.likes.Exists(ctx, viewerID, memoryID)
	if err != nil {
		return false, fmt.Errorf("いいねの確認に失敗しました: %w", err)
	}
	return liked, nil
}

// Like は思い出に「いいね」する。既に「いいね」済みの場合は何もしない。
func (s *Service) Like(ctx context.Context, viewerID, memoryID string) error {
	if _, err := s.Get(ctx, viewerID, memoryID); err != nil {
		return err
	}
	like := &model.MemoryLike{
		ID:        uuid.New().String(),
		UserID:    viewerID,
		MemoryID:  memoryID,
		CreatedAt: s.now(),
	}
	if err := s.likes.Insert(ctx, like); err != nil {
		return fmt.Errorf("いいねの追加に失敗しました: %w", err)
	}
	return nil
}

// Unlike は「いいね」を取り消す。「いいね」していない場合は何もしない。
func (s *Service) Unlike(ctx context.Context, viewerID, memoryID string) error {
	if err := s.likes.Delete(ctx, viewerID, memoryID); err != nil {
		return fmt.Errorf("いいねの削除に失敗しました: %w", err)
	}
	return nil
}

// LikedMemoryIDs は閲覧者が「いいね」した思い出のID一覧を返す。
func (s *Service) LikedMemoryIDs(ctx context.Context, viewerID string) ([]string, error) {
	ids, err := s.likes.ListMemoryIDsByUser(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("いいね一覧の取得に失敗しました: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// owned は閲覧者が所有者である思い出を返す。
// 見えない思い出はNotFound、見えるが他人の思い出はForbiddenとする。
func (s *Service) owned(ctx context.Context, viewerID, id string) (*model.Memory, error) {
	m, err := s.Get(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != viewerID {
		return nil, model.NewForbiddenError("Only the owner can change this memory")
	}
	return m, nil
}

func (s *Service) sanitizePatch(patch *model.MemoryPatch) {
	if patch.Title != nil {
		v := s.sanitizer.PlainText(*patch.Title)
		patch.Title = &v
	}
	if patch.Description != nil {
		v := s.sanitizer.RichText(*patch.Description)
		patch.Description = &v
	}
	if patch.Location != nil {
		v := s.sanitizer.PlainText(*patch.Location)
		patch.Location = &v
	}
	if patch.ImageURL != nil {
		v := strings.TrimSpace(*patch.ImageURL)
		patch.ImageURL = &v
	}
}

// validate は入力値を検証し、感情タグを正規化する。
// verifyImageがtrueで画像URLが設定されている場合は画像URLを検証する。
func (s *Service) validate(ctx context.Context, m *model.Memory, verifyImage bool) error {
	if m.Title == "" {
		return model.NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(m.Title) > maxTitleLength {
		return model.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if m.Date.IsZero() {
		return model.NewValidationError("date", "is required")
	}
	if utf8.RuneCountInString(m.Description) > maxDescriptionLength {
		return model.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	if utf8.RuneCountInString(m.Location) > maxLocationLength {
		return model.NewValidationError("location", fmt.Sprintf("must be at most %d characters", maxLocationLength))
	}

	emotion, ok := model.NormalizeEmotion(m.Emotion)
	if !ok {
		return model.NewValidationError("emotion", fmt.Sprintf("unknown emotion %q", m.Emotion))
	}
	m.Emotion = emotion

	if verifyImage && m.ImageURL != "" && s.verifier != nil {
		if err := s.verifier.VerifyImageURL(ctx, m.ImageURL); err != nil {
			return err
		}
	}
	return nil
}
