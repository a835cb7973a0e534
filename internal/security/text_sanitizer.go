// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーが入力するタスクのタイトル・説明・カテゴリ等の
// フリーテキストをサニタイズし、格納型XSSからユーザーを保護する。
// bluemondayのStrictPolicyを使用して全てのHTMLタグを除去し、
// プレーンテキストのみを保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフリーテキストのサニタイズ機能のインターフェースを定義する。
// タスクおよびプロフィールの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去し、前後の空白を取り除いた
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可リストが空のポリシーで、全てのタグと属性を除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyの出力はHTMLエンティティでエスケープされるため、
// プレーンテキストとして保存できるようアンエスケープして返す。
func (s *textSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(input)))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
