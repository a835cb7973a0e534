package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/afnan0304/Taskosit/internal/model"
)

// --- モック ---

type mockUserService struct {
	getProfileFn     func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFn  func(ctx context.Context, userID, name, email string) (*model.User, error)
	changePasswordFn func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, name, email)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return errors.New("not implemented")
}

// --- テスト ---

// TestMe_Success はプロフィール取得でパスワードハッシュが露出しないことを検証する。
func TestMe_Success(t *testing.T) {
	service := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return &model.User{
				ID:           "user-1",
				Name:         "太郎",
				Email:        "taro@example.com",
				PasswordHash: "$2a$10$secret",
				CreatedAt:    time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	handler := SetupUserRoutes(service)

	req := authedRequest(t, http.MethodGet, "/api/user/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if raw["id"] != "user-1" || raw["email"] != "taro@example.com" {
		t.Errorf("unexpected response: %v", raw)
	}
	for _, forbidden := range []string{"passwordHash", "password_hash", "refreshTokenDigests"} {
		if _, ok := raw[forbidden]; ok {
			t.Errorf("response must not contain %q", forbidden)
		}
	}
}

// TestMe_Unauthorized はユーザーIDなしで401が返ることを検証する。
func TestMe_Unauthorized(t *testing.T) {
	handler := SetupUserRoutes(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestUpdateMe_Success はプロフィール更新が委譲され、更新後の値が返ることを検証する。
func TestUpdateMe_Success(t *testing.T) {
	service := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID, name, email string) (*model.User, error) {
			if name != "次郎" || email != "jiro@example.com" {
				t.Errorf("unexpected arguments: name=%q email=%q", name, email)
			}
			return &model.User{ID: userID, Name: name, Email: email}, nil
		},
	}
	handler := SetupUserRoutes(service)

	req := authedRequest(t, http.MethodPut, "/api/user/me", map[string]string{
		"name":  "次郎",
		"email": "jiro@example.com",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body userResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Name != "次郎" || body.Email != "jiro@example.com" {
		t.Errorf("unexpected response: %+v", body)
	}
}

// TestUpdateMe_EmailTaken はメールアドレス重複時に409が返ることを検証する。
func TestUpdateMe_EmailTaken(t *testing.T) {
	service := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID, name, email string) (*model.User, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	handler := SetupUserRoutes(service)

	req := authedRequest(t, http.MethodPut, "/api/user/me", map[string]string{
		"name":  "次郎",
		"email": "taken@example.com",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
	if body := decodeErrorBody(t, w); body.Code != "EMAIL_TAKEN" {
		t.Errorf("code = %q, want EMAIL_TAKEN", body.Code)
	}
}

// TestChangePassword_Success はパスワード変更成功時に200が返ることを検証する。
func TestChangePassword_Success(t *testing.T) {
	service := &mockUserService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			if currentPassword != "old-pass" || newPassword != "new-pass" {
				t.Errorf("unexpected arguments: current=%q new=%q", currentPassword, newPassword)
			}
			return nil
		},
	}
	handler := SetupUserRoutes(service)

	req := authedRequest(t, http.MethodPut, "/api/user/me/password", map[string]string{
		"currentPassword": "old-pass",
		"newPassword":     "new-pass",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestChangePassword_Mismatch は現在のパスワード不一致で401が返ることを検証する。
func TestChangePassword_Mismatch(t *testing.T) {
	service := &mockUserService{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return model.NewPasswordMismatchError()
		},
	}
	handler := SetupUserRoutes(service)

	req := authedRequest(t, http.MethodPut, "/api/user/me/password", map[string]string{
		"currentPassword": "wrong",
		"newPassword":     "new-pass",
	})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
	if body := decodeErrorBody(t, w); body.Code != "PASSWORD_MISMATCH" {
		t.Errorf("code = %q, want PASSWORD_MISMATCH", body.Code)
	}
}
