package token

import "errors"

var (
	// ErrInvalidToken は署名不正または期限切れのトークンを示す。
	// 呼び出し側は再ログインを要求すること。
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrRevokedToken は署名・期限は有効だがダイジェストが失効リストに
	// 存在しないリフレッシュトークンを示す。ログアウト済みか、
	// ローテーションで既に使用済みのトークンが該当する。
	ErrRevokedToken = errors.New("refresh token has been revoked")

	// ErrUnknownUser はトークンが参照するユーザーが存在しないことを示す。
	ErrUnknownUser = errors.New("token references unknown user")
)
