package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/afnan0304/Taskosit/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetProfile は現在のユーザーのプロフィールを取得する。
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	// UpdateProfile は名前とメールアドレスを更新する。パスワードは変更できない。
	UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error)
	// ChangePassword は現在のパスワードを検証し、新しいパスワードに変更する。
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// passwordフィールドが送られても無視される。
type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// changePasswordRequest はパスワード変更リクエストのボディ。
type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Me は現在のユーザーのプロフィールを取得する。
// GET /api/user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// UpdateMe は現在のユーザーの名前とメールアドレスを更新する。
// PUT /api/user/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// ChangePassword は現在のユーザーのパスワードを変更する。
// PUT /api/user/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "パスワードを変更しました。"})
}

// SetupUserRoutes はプロフィール管理関連のルーティングを設定したchi.Routerを返す。
func SetupUserRoutes(service UserServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(service)

	r.Route("/api/user", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Put("/me", h.UpdateMe)
		r.Put("/me/password", h.ChangePassword)
	})

	return r
}
