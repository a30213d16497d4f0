package model

import (
	"strings"
	"time"
)

// MemoryDateLayout は思い出の日付(DATE列)の文字列表現。
const MemoryDateLayout = "2006-01-02"

// Memory はユーザーが記録した日付付きの思い出を表す。
type Memory struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Date        time.Time
	Emotion     string
	Location    string
	IsPrivate   bool
	ImageURL    string
	CreatedAt   time.Time
}

// NewMemory は思い出の新規作成入力を表す。
type NewMemory struct {
	Title       string
	Description string
	Date        time.Time
	Emotion     string
	Location    string
	IsPrivate   bool
	ImageURL    string
}

// MemoryPatch は思い出の部分更新を表す。nilのフィールドは変更しない。
type MemoryPatch struct {
	Title       *string
	Description *string
	Date        *time.Time
	Emotion     *string
	Location    *string
	IsPrivate   *bool
	ImageURL    *string
}

// Apply はパッチの内容を思い出に反映する。
func (p MemoryPatch) Apply(m *Memory) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Date != nil {
		m.Date = *p.Date
	}
	if p.Emotion != nil {
		m.Emotion = *p.Emotion
	}
	if p.Location != nil {
		m.Location = *p.Location
	}
	if p.IsPrivate != nil {
		m.IsPrivate = *p.IsPrivate
	}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
	}
}

// MemoryLike は「いいね」の所属マーカーを表す。(user_id, memory_id)で一意。
type MemoryLike struct {
	ID        string
	UserID    string
	MemoryID  string
	CreatedAt time.Time
}

// Emotions は思い出に付けられる感情タグの一覧。小文字で保存する。
var Emotions = []string{
	"joy", "sadness", "fear", "disgust", "anger", "surprise", "trust",
	"anticipation", "love", "pride", "excitement", "gratitude", "nostalgia",
	"anxious", "peaceful",
}

// NormalizeEmotion は感情タグを小文字に正規化し、既知のタグかどうかを返す。
// 空文字は「タグなし」として有効とみなす。
func NormalizeEmotion(emotion string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(emotion))
	if e == "" {
		return "", true
	}
	for _, known := range Emotions {
		if e == known {
			return e, true
		}
	}
	return "", false
}
