// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はプロフィールや思い出のユーザー入力を保存前に無害化する。
// 名前・自己紹介・場所はタグを一切残さないプレーンテキストに、
// 思い出の説明文は許可リストのタグのみを残したHTMLに変換する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// PlainText は全てのタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 実体参照は元の文字に戻す(JSONで返すため再エスケープしない)。
	PlainText(raw string) string

	// RichText はbluemondayのUGCポリシーで許可されたタグのみを残したHTMLを返す。
	// リンクにはtarget="_blank"とrel="nofollow noreferrer noopener"が付与される。
	RichText(raw string) string
}

// textSanitizer はTextSanitizerの実装。ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	ugc := bluemonday.UGCPolicy()
	ugc.AllowRelativeURLs(false)
	ugc.AddTargetBlankToFullyQualifiedLinks(true)
	ugc.RequireNoReferrerOnLinks(true)

	return &textSanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    ugc,
	}
}

// PlainText はタグを除去したプレーンテキストを返す。
func (s *textSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// RichText は許可タグのみを残したHTMLを返す。
func (s *textSanitizer) RichText(raw string) string {
	return strings.TrimSpace(s.ugc.Sanitize(raw))
}
