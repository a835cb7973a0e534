package token

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/afnan0304/Taskosit/internal/model"
)

// --- モック ---

// memoryUserStore はテスト用のインメモリUserStore実装。
type memoryUserStore struct {
	users map[string]*model.User
	// updateErr が設定されている場合、UpdateRefreshTokenDigestsはこのエラーを返す。
	updateErr error
}

func newMemoryUserStore(users ...*model.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	// 呼び出し側の変更が直接ストアに反映されないようコピーを返す
	clone := *u
	clone.RefreshTokenDigests = slices.Clone(u.RefreshTokenDigests)
	return &clone, nil
}

func (s *memoryUserStore) UpdateRefreshTokenDigests(ctx context.Context, id string, digests []string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.RefreshTokenDigests = slices.Clone(digests)
	return nil
}

func (s *memoryUserStore) digests(id string) []string {
	return s.users[id].RefreshTokenDigests
}

// --- ヘルパー ---

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		HashSecret:    []byte("hash-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

func testUser() *model.User {
	return &model.User{
		ID:    "user-1",
		Name:  "テスト太郎",
		Email: "taro@example.com",
	}
}

// --- テスト ---

// TestManager_IssuePair_VerifyAccess は発行したアクセストークンが検証を通り、
// ユーザーIDとメールアドレスのクレームを含むことを検証する。
func TestManager_IssuePair_VerifyAccess(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty token pair")
	}

	claims, err := m.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess returned error: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.Email != "taro@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "taro@example.com")
	}
}

// TestManager_IssuePair_AppendsDigest は発行のたびにダイジェストが
// 失効リスト末尾に追加されることを検証する。
func TestManager_IssuePair_AppendsDigest(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	digests := store.digests("user-1")
	if len(digests) != 1 {
		t.Fatalf("digest count = %d, want 1", len(digests))
	}
	if digests[0] != m.Digest(pair.RefreshToken) {
		t.Error("stored digest does not match HMAC of issued refresh token")
	}
}

// TestManager_Rotate_SingleUse はローテーション成功後に同じトークンでの
// 再ローテーションがRevokedTokenで失敗することを検証する。
func TestManager_Rotate_SingleUse(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	if _, err := m.Rotate(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first Rotate returned error: %v", err)
	}

	_, err = m.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrRevokedToken) {
		t.Errorf("second Rotate error = %v, want ErrRevokedToken", err)
	}
}

// TestManager_Rotate_Chaining はローテーションで得たトークンが続けて
// ローテーション可能で、毎回新しいトークンが返ることを検証する。
func TestManager_Rotate_Chaining(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	pair2, err := m.Rotate(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate(t1) returned error: %v", err)
	}

	pair3, err := m.Rotate(context.Background(), pair2.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate(t2) returned error: %v", err)
	}
	if pair3.RefreshToken == pair2.RefreshToken {
		t.Error("expected a fresh refresh token after rotation")
	}

	// ローテーション後もリストは1件のまま
	if n := len(store.digests("user-1")); n != 1 {
		t.Errorf("digest count after chained rotations = %d, want 1", n)
	}
}

// TestManager_RevocationListCap は11回の発行で最新10件のみが残り、
// 最初に発行したトークンのダイジェストが破棄されることを検証する。
func TestManager_RevocationListCap(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	var firstDigest string
	for i := 0; i < 11; i++ {
		// IssuePairはストアの最新状態を前提とするため読み直す
		current, err := store.FindByID(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("FindByID returned error: %v", err)
		}
		pair, err := m.IssuePair(context.Background(), current)
		if err != nil {
			t.Fatalf("IssuePair #%d returned error: %v", i+1, err)
		}
		if i == 0 {
			firstDigest = m.Digest(pair.RefreshToken)
		}
	}

	digests := store.digests("user-1")
	if len(digests) != model.RefreshTokenLimit {
		t.Fatalf("digest count = %d, want %d", len(digests), model.RefreshTokenLimit)
	}
	if slices.Contains(digests, firstDigest) {
		t.Error("expected the oldest digest to be evicted")
	}
}

// TestManager_Revoke_ThenRotateFails は失効させたトークンでの
// ローテーションがRevokedTokenで失敗することを検証する。
func TestManager_Revoke_ThenRotateFails(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	if err := m.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	_, err = m.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrRevokedToken) {
		t.Errorf("Rotate after Revoke error = %v, want ErrRevokedToken", err)
	}
}

// TestManager_Revoke_Idempotent は同一トークンでのRevokeの繰り返しが
// いずれもエラーにならないことを検証する。
func TestManager_Revoke_Idempotent(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	if err := m.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first Revoke returned error: %v", err)
	}
	if err := m.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("second Revoke returned error: %v", err)
	}
}

// TestManager_Revoke_InvalidTokenIsNoError は不正なトークンのRevokeが
// ログアウト済み扱いでエラーにならないことを検証する。
func TestManager_Revoke_InvalidTokenIsNoError(t *testing.T) {
	store := newMemoryUserStore(testUser())
	m := NewManager(store, testConfig())

	if err := m.Revoke(context.Background(), "not-a-jwt"); err != nil {
		t.Errorf("Revoke with garbage token returned error: %v", err)
	}
}

// TestManager_VerifyAccess_WrongSecret は別シークレットで署名された
// アクセストークンがInvalidTokenで失敗することを検証する。
func TestManager_VerifyAccess_WrongSecret(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)

	other := testConfig()
	other.AccessSecret = []byte("a-different-secret")
	otherManager := NewManager(store, other)

	pair, err := otherManager.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	m := NewManager(store, testConfig())
	_, err = m.VerifyAccess(pair.AccessToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess error = %v, want ErrInvalidToken", err)
	}
}

// TestManager_VerifyAccess_Expired は期限切れアクセストークンが
// InvalidTokenで失敗することを検証する。
func TestManager_VerifyAccess_Expired(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	// 発行時刻を過去にずらして期限切れトークンを作る
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	m.now = time.Now
	_, err = m.VerifyAccess(pair.AccessToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyAccess error = %v, want ErrInvalidToken", err)
	}
}

// TestManager_Rotate_InvalidToken は署名不正トークンのローテーションが
// InvalidTokenで失敗することを検証する。
func TestManager_Rotate_InvalidToken(t *testing.T) {
	store := newMemoryUserStore(testUser())
	m := NewManager(store, testConfig())

	_, err := m.Rotate(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Rotate error = %v, want ErrInvalidToken", err)
	}
}

// TestManager_Rotate_UnknownUser は削除済みユーザーを参照するトークンの
// ローテーションがUnknownUserで失敗することを検証する。
func TestManager_Rotate_UnknownUser(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)
	m := NewManager(store, testConfig())

	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	delete(store.users, "user-1")

	_, err = m.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Rotate error = %v, want ErrUnknownUser", err)
	}
}

// TestManager_Rotate_ExpiredRefreshToken は期限切れリフレッシュトークンの
// ローテーションがInvalidTokenで失敗することを検証する。
func TestManager_Rotate_ExpiredRefreshToken(t *testing.T) {
	user := testUser()
	store := newMemoryUserStore(user)

	cfg := testConfig()
	cfg.RefreshTTL = time.Minute
	m := NewManager(store, cfg)

	m.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	pair, err := m.IssuePair(context.Background(), user)
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	m.now = time.Now
	_, err = m.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Rotate error = %v, want ErrInvalidToken", err)
	}
}

// TestManager_Digest_Deterministic は同一トークンから常に同一ダイジェストが
// 得られることを検証する（失効リスト照合の再現性）。
func TestManager_Digest_Deterministic(t *testing.T) {
	m := NewManager(newMemoryUserStore(), testConfig())

	d1 := m.Digest("some-token")
	d2 := m.Digest("some-token")
	if d1 != d2 {
		t.Errorf("digest is not deterministic: %q != %q", d1, d2)
	}
	if len(d1) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(d1))
	}
}
