// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は外部サイトからスクレイピングしたテキスト
// （動画タイトル、説明文、トランスクリプト）をサニタイズし、
// 生成ドキュメントへのマークアップ混入やXSSを防止する。
// bluemondayのStrictPolicyにより、すべてのHTMLタグを除去して
// プレーンテキストのみを通過させる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はスクレイピングしたテキストのサニタイズ機能の
// インターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLマークアップを除去し、
	// HTMLエンティティを復元したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの構築は1回のみ行い、以後のSanitize呼び出しで再利用する。
// bluemondayのPolicyは構築後の併用参照に対してスレッドセーフ。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLマークアップを除去する。
// bluemondayはタグ除去後のテキストをエンティティエスケープして返すため、
// 最後にアンエスケープしてプレーンテキストに戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
