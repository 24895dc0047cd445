// Package security はパスワードの照合と利用者入力のサニタイズを提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者が入力した表示用テキストからHTMLを取り除く。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 戻り値はHTMLエスケープされていないため、表示側でエスケープすること。
	Sanitize(s string) string
}

// textSanitizer はbluemondayのStrictPolicyを使用したTextSanitizerの実装。
// bluemonday.Policyはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyがエスケープした実体参照（&amp; や &#39; など）は元の文字に戻す。
func (s *textSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// NopSanitizer は入力をそのまま返すTextSanitizer。テスト用。
type NopSanitizer struct{}

// Sanitize は入力をそのまま返す。
func (NopSanitizer) Sanitize(s string) string { return s }
