// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeRevokedToken       = "REVOKED_TOKEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidPriority    = "INVALID_PRIORITY"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodePasswordMismatch   = "PASSWORD_MISMATCH"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは開示しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidTokenError は署名不正または期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewRevokedTokenError は失効済みリフレッシュトークンのエラーを生成する。
// ログアウト済み、または既にローテーションで使用済みのトークンが該当する。
func NewRevokedTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeRevokedToken,
		Message:  "このリフレッシュトークンは失効しています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 他ユーザー所有のタスクへのアクセスもこのエラーとして扱い、IDの存在を開示しない。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidStatusError は無効なステータス値のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには pending、in-progress、completed のいずれかを指定してください。",
	}
}

// NewInvalidPriorityError は無効な優先度値のエラーを生成する。
func NewInvalidPriorityError(priority string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriority,
		Message:  fmt.Sprintf("無効な優先度です: %s", priority),
		Category: "validation",
		Action:   "優先度には low、medium、high、urgent のいずれかを指定してください。",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewPasswordMismatchError は現在のパスワードの検証失敗エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "現在のパスワードが正しくありません。",
		Category: "auth",
		Action:   "現在のパスワードを確認して再度お試しください。",
	}
}
