// Package model はドメインモデルを定義する。
package model

import "time"

// RefreshTokenLimit はユーザーごとに保持するリフレッシュトークンダイジェストの上限数。
// 上限を超えた場合は古いものから破棄される。
const RefreshTokenLimit = 10

// User はサービス利用ユーザーを表す。
// PasswordHashとRefreshTokenDigestsはAPIレスポンスに含めてはならない。
type User struct {
	ID           string
	Name         string
	Email        string // 小文字に正規化して保存する
	PasswordHash string // bcryptハッシュ
	// RefreshTokenDigests は現在有効なリフレッシュトークンのHMAC-SHA256ダイジェスト列。
	// 挿入順を保持し、末尾が最新。ここに含まれないリフレッシュトークンは
	// 署名が有効でも失効済みとして扱う。
	RefreshTokenDigests []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
