// Package token はアクセス/リフレッシュトークンの発行・検証・ローテーション・失効を提供する。
//
// アクセストークンはステートレスな短命JWTで、署名と期限のみで検証される。
// リフレッシュトークンは長命JWTだが、シリアライズ文字列のHMAC-SHA256ダイジェストが
// ユーザーの失効リスト（最新10件）に存在する場合のみ有効となる。
// 平文トークンをサーバー側に保存せずに失効とローテーションを実現する。
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/afnan0304/Taskosit/internal/model"
)

// newTokenID はリフレッシュトークンのjtiクレーム用のランダムIDを生成する。
func newTokenID() string {
	return uuid.NewString()
}

// UserStore はトークンマネージャーが必要とするユーザー永続化インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserStore interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// UpdateRefreshTokenDigests はユーザーのダイジェスト列を丸ごと置き換える。
	UpdateRefreshTokenDigests(ctx context.Context, id string, digests []string) error
}

// Config はManagerの設定。
type Config struct {
	AccessSecret  []byte        // アクセストークンの署名シークレット
	RefreshSecret []byte        // リフレッシュトークンの署名シークレット
	HashSecret    []byte        // ダイジェスト算出用のHMACシークレット
	AccessTTL     time.Duration // アクセストークンの有効期間
	RefreshTTL    time.Duration // リフレッシュトークンの有効期間
}

// Pair は発行されたアクセストークンとリフレッシュトークンの組。
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// AccessClaims はアクセストークンのクレーム。
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// refreshClaims はリフレッシュトークンのクレーム。ユーザーIDのみを持つ。
type refreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Manager はトークンの発行・検証・ローテーション・失効を行う。
// ユーザーごとの失効リストはUserStore経由で読み取り・変更・書き込みされる。
type Manager struct {
	store UserStore
	cfg   Config
	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(store UserStore, cfg Config) *Manager {
	return &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// IssuePair はユーザーに対してアクセス/リフレッシュトークンの組を発行する。
// 副作用としてリフレッシュトークンのダイジェストをユーザーの失効リスト末尾に追加し、
// 上限（10件）を超えた分を先頭から破棄して永続化する。
func (m *Manager) IssuePair(ctx context.Context, user *model.User) (*Pair, error) {
	pair, digest, err := m.newPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	digests := append(slices.Clone(user.RefreshTokenDigests), digest)
	digests = trimDigests(digests)

	if err := m.store.UpdateRefreshTokenDigests(ctx, user.ID, digests); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token digest: %w", err)
	}
	user.RefreshTokenDigests = digests

	return pair, nil
}

// Rotate は提示されたリフレッシュトークンを検証し、新しいトークン組に交換する。
// 成功すると提示されたトークンは失効し、同じトークンでの再ローテーションは
// ErrRevokedTokenで失敗する（リフレッシュトークンは使い切り）。
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (*Pair, error) {
	// 1. 署名と期限の検証
	claims := &refreshClaims{}
	parsed, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		return m.cfg.RefreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	// 2. ユーザーの解決
	user, err := m.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	// 3. ダイジェストが失効リストに存在するか
	oldDigest := m.Digest(refreshToken)
	if !slices.Contains(user.RefreshTokenDigests, oldDigest) {
		return nil, ErrRevokedToken
	}

	// 4. 新しいトークン組の発行
	pair, newDigest, err := m.newPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	// 5. 旧ダイジェストを除去し、新ダイジェストを追加して永続化
	digests := make([]string, 0, len(user.RefreshTokenDigests))
	for _, d := range user.RefreshTokenDigests {
		if d != oldDigest {
			digests = append(digests, d)
		}
	}
	digests = trimDigests(append(digests, newDigest))

	if err := m.store.UpdateRefreshTokenDigests(ctx, user.ID, digests); err != nil {
		return nil, fmt.Errorf("failed to persist rotated digest: %w", err)
	}
	user.RefreshTokenDigests = digests

	return pair, nil
}

// Revoke は提示されたリフレッシュトークンを失効させる（ログアウト）。
// ベストエフォート: トークンが不正・期限切れ、またはユーザーが存在しない場合も
// ログアウト済みとみなしエラーを返さない。冪等であり、同一トークンで
// 繰り返し呼び出しても2回目以降は何も起きない。
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	claims := &refreshClaims{}
	parsed, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		return m.cfg.RefreshSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil
	}

	user, err := m.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil
	}

	digest := m.Digest(refreshToken)
	if !slices.Contains(user.RefreshTokenDigests, digest) {
		return nil
	}

	digests := make([]string, 0, len(user.RefreshTokenDigests))
	for _, d := range user.RefreshTokenDigests {
		if d != digest {
			digests = append(digests, d)
		}
	}

	if err := m.store.UpdateRefreshTokenDigests(ctx, user.ID, digests); err != nil {
		return fmt.Errorf("failed to persist revoked digest: %w", err)
	}
	user.RefreshTokenDigests = digests

	return nil
}

// VerifyAccess はアクセストークンの署名と期限を検証し、クレームを返す。
// ストアへのアクセスは行わない。
func (m *Manager) VerifyAccess(accessToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return m.cfg.AccessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Digest はリフレッシュトークンのHMAC-SHA256ダイジェスト（16進表記）を返す。
// 平文トークンを保存せずに失効リストの照合を可能にする。
func (m *Manager) Digest(refreshToken string) string {
	mac := hmac.New(sha256.New, m.cfg.HashSecret)
	mac.Write([]byte(refreshToken))
	return hex.EncodeToString(mac.Sum(nil))
}

// newPair はアクセス/リフレッシュトークンを署名し、リフレッシュトークンの
// ダイジェストとあわせて返す。
func (m *Manager) newPair(userID, email string) (*Pair, string, error) {
	now := m.now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.AccessTTL)),
		},
		UserID: userID,
		Email:  email,
	})
	accessToken, err := access.SignedString(m.cfg.AccessSecret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.RefreshTTL)),
			// 同一秒内の連続発行でも異なるトークンになるようランダムIDを付与する
			ID: newTokenID(),
		},
		UserID: userID,
	})
	refreshToken, err := refresh.SignedString(m.cfg.RefreshSecret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &Pair{AccessToken: accessToken, RefreshToken: refreshToken}, m.Digest(refreshToken), nil
}

// trimDigests は上限を超えた分を先頭（最古）から破棄し、最新10件を保持する。
// 追加してから切り詰める（append-then-trim）。
func trimDigests(digests []string) []string {
	if len(digests) > model.RefreshTokenLimit {
		digests = digests[len(digests)-model.RefreshTokenLimit:]
	}
	return digests
}
