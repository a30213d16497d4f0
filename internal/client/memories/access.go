// Package memories は思い出と「いいね」の読み書きを提供する。
package memories

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/memoria/internal/client/api"
	"github.com/hitoshi/memoria/internal/client/notice"
	"github.com/hitoshi/memoria/internal/model"
)

// API はAccessが必要とするプラットフォームAPI。*api.Clientが実装する。
type API interface {
	ListMemories(ctx context.Context, userID string) ([]api.Memory, error)
	GetMemory(ctx context.Context, id string) (*api.Memory, error)
	CreateMemory(ctx context.Context, in api.NewMemory) (*api.Memory, error)
	DeleteMemory(ctx context.Context, id string) error
	Liked(ctx context.Context, memoryID string) (bool, error)
	Like(ctx context.Context, memoryID string) error
	Unlike(ctx context.Context, memoryID string) error
	LikedMemoryIDs(ctx context.Context) ([]string, error)
}

// ErrInvalidMemory はネットワーク呼び出し前の入力検証エラー。
var ErrInvalidMemory = errors.New("invalid memory")

// Access は思い出の読み書き。
type Access struct {
	api     API
	notices notice.Sink
}

// NewAccess はAccessを生成する。
func NewAccess(client API, notices notice.Sink) *Access {
	if notices == nil {
		notices = notice.Discard
	}
	return &Access{api: client, notices: notices}
}

// List は指定ユーザーの閲覧可能な思い出を返す。userIDが空の場合は自分の思い出。
func (a *Access) List(ctx context.Context, userID string) ([]api.Memory, error) {
	ms, err := a.api.ListMemories(ctx, userID)
	if err != nil {
		return nil, a.fail(err, "Failed to load memories")
	}
	return ms, nil
}

// Get は思い出を1件返す。
func (a *Access) Get(ctx context.Context, id string) (*api.Memory, error) {
	m, err := a.api.GetMemory(ctx, id)
	if err != nil {
		return nil, a.fail(err, "Failed to load memory")
	}
	return m, nil
}

// Create は入力を検証してから思い出を作成する。
func (a *Access) Create(ctx context.Context, in api.NewMemory) (*api.Memory, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, a.invalid("Please enter a title")
	}
	if in.Date == "" {
		return nil, a.invalid("Please choose a date")
	}
	if _, err := time.Parse(model.MemoryDateLayout, in.Date); err != nil {
		return nil, a.invalid("Date must be in YYYY-MM-DD format")
	}
	emotion, ok := model.NormalizeEmotion(in.Emotion)
	if !ok {
		return nil, a.invalid("Unknown emotion: " + in.Emotion)
	}
	in.Emotion = emotion

	m, err := a.api.CreateMemory(ctx, in)
	if err != nil {
		return nil, a.fail(err, "Failed to create memory")
	}
	a.notices.Notify(notice.Success("Memory created", "Your memory has been saved"))
	return m, nil
}

// Delete は自分の思い出を削除する。
func (a *Access) Delete(ctx context.Context, id string) error {
	if err := a.api.DeleteMemory(ctx, id); err != nil {
		return a.fail(err, "Failed to delete memory")
	}
	a.notices.Notify(notice.Success("Memory deleted", "Your memory has been deleted"))
	return nil
}

// ToggleLike は「いいね」の有無を読み、あれば削除、無ければ追加する。新しい状態を返す。
func (a *Access) ToggleLike(ctx context.Context, memoryID string) (bool, error) {
	liked, err := a.api.Liked(ctx, memoryID)
	if err != nil {
		return false, a.fail(err, "Failed to update like")
	}
	if liked {
		if err := a.api.Unlike(ctx, memoryID); err != nil {
			return true, a.fail(err, "Failed to update like")
		}
		return false, nil
	}
	if err := a.api.Like(ctx, memoryID); err != nil {
		return false, a.fail(err, "Failed to update like")
	}
	return true, nil
}

// LikedIDs は自分が「いいね」した思い出のID一覧を返す。
func (a *Access) LikedIDs(ctx context.Context) ([]string, error) {
	ids, err := a.api.LikedMemoryIDs(ctx)
	if err != nil {
		return nil, a.fail(err, "Failed to load likes")
	}
	return ids, nil
}

func (a *Access) invalid(message string) error {
	a.notices.Notify(notice.Error("Error", message))
	return ErrInvalidMemory
}

func (a *Access) fail(err error, fallback string) error {
	slog.Warn(strings.ToLower(fallback), slog.String("error", err.Error()))
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	a.notices.Notify(notice.Error("Error", msg))
	return err
}

// Stats はダッシュボードに表示する集計値。
type Stats struct {
	Total         int
	Locations     int
	Emotions      int
	TimelineYears int
}

// ComputeStats は思い出の件数と、場所・感情・年の異なり数を数える。空の値は数えない。
func ComputeStats(list []api.Memory) Stats {
	locations := map[string]bool{}
	emotions := map[string]bool{}
	years := map[string]bool{}
	for _, m := range list {
		if m.Location != "" {
			locations[m.Location] = true
		}
		if m.Emotion != "" {
			emotions[m.Emotion] = true
		}
		if len(m.Date) >= 4 {
			years[m.Date[:4]] = true
		}
	}
	return Stats{
		Total:         len(list),
		Locations:     len(locations),
		Emotions:      len(emotions),
		TimelineYears: len(years),
	}
}

// YearGroup はタイムライン表示の1年分。
type YearGroup struct {
	Year     string
	Memories []api.Memory
}

// GroupByYear は思い出を年ごとにまとめる。年は新しい順、年内は日付の新しい順。
func GroupByYear(list []api.Memory) []YearGroup {
	sorted := make([]api.Memory, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	var groups []YearGroup
	for _, m := range sorted {
		year := "unknown"
		if len(m.Date) >= 4 {
			year = m.Date[:4]
		}
		if n := len(groups); n > 0 && groups[n-1].Year == year {
			groups[n-1].Memories = append(groups[n-1].Memories, m)
			continue
		}
		groups = append(groups, YearGroup{Year: year, Memories: []api.Memory{m}})
	}
	return groups
}
