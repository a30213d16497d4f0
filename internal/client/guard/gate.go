package guard

import (
	"context"
	"log/slog"
	"strings"
)

// ProfileFields はプロフィール完成度の判定に使う項目。
type ProfileFields struct {
	FullName  string
	Bio       string
	AvatarURL string
}

// ProfileReader はプロフィール完成度の判定に必要な読み取りインターフェース。
type ProfileReader interface {
	ProfileFields(ctx context.Context, userID string) (*ProfileFields, error)
}

// Gate はサインイン済みユーザーを保護ページの前に設定画面へ誘導すべきかを判定する。
type Gate struct {
	reader ProfileReader
}

// NewGate はGateを生成する。
func NewGate(reader ProfileReader) *Gate {
	return &Gate{reader: reader}
}

// IsProfileComplete はfull_nameとbioが共に空でない場合にtrueを返す。
// 読み取りエラーはログに記録して未完成として扱い、呼び出し元には返さない。
func (g *Gate) IsProfileComplete(ctx context.Context, userID string) bool {
	p, err := g.reader.ProfileFields(ctx, userID)
	if err != nil {
		slog.Warn("failed to read profile for completeness check",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.FullName) != "" && strings.TrimSpace(p.Bio) != ""
}
