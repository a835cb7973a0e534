package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/afnan0304/Taskosit/internal/auth"
	"github.com/afnan0304/Taskosit/internal/model"
	"github.com/afnan0304/Taskosit/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、トークン組を発行する。
	Register(ctx context.Context, name, email, password string) (*auth.Result, error)
	// Login はメールアドレスとパスワードを検証し、トークン組を発行する。
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	// Refresh はリフレッシュトークンを新しいトークン組に交換する（使い切り）。
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	// Logout はリフレッシュトークンを失効させる（冪等）。
	Logout(ctx context.Context, refreshToken string) error
}

// AuthMetrics は認証ハンドラーが記録するメトリクスのインターフェース。
type AuthMetrics interface {
	RecordAuthAttempt(operation string, success bool)
	RecordTokensIssued()
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest はトークンリフレッシュおよびログアウトリクエストのボディ。
type refreshRequest struct {
	Token string `json:"token"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュとトークンダイジェストは決して含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// authResponse は登録・ログイン成功時のAPIレスポンス。
type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// tokenPairResponse はトークンリフレッシュ成功時のAPIレスポンス。
type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.recordAuthAttempt("register", false)
		handleServiceError(w, err)
		return
	}

	h.recordAuthAttempt("register", true)
	h.recordTokensIssued()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAuthResponse(result))
}

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordAuthAttempt("login", false)
		handleServiceError(w, err)
		return
	}

	h.recordAuthAttempt("login", true)
	h.recordTokensIssued()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAuthResponse(result))
}

// RefreshToken はリフレッシュトークンを新しいトークン組に交換する。
// 提示されたトークンは使い切りで、再利用するとREVOKED_TOKENになる。
// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リフレッシュトークンは必須です"))
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.Token)
	if err != nil {
		h.recordAuthAttempt("refresh", false)
		handleServiceError(w, err)
		return
	}

	h.recordAuthAttempt("refresh", true)
	h.recordTokensIssued()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout はリフレッシュトークンを失効させる。
// トークンが不正・期限切れ・失効済みでも200を返す（冪等）。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リフレッシュトークンは必須です"))
		return
	}

	if err := h.service.Logout(r.Context(), req.Token); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "ログアウトしました。"})
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, metrics AuthMetrics) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, metrics)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/logout", h.Logout)
	})

	return r
}

// --- ヘルパー関数 ---

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// toAuthResponse は認証結果からAPIレスポンスに変換する。
func toAuthResponse(result *auth.Result) authResponse {
	return authResponse{
		User:         toUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}
}

func (h *AuthHandler) recordAuthAttempt(operation string, success bool) {
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(operation, success)
	}
}

func (h *AuthHandler) recordTokensIssued() {
	if h.metrics != nil {
		h.metrics.RecordTokensIssued()
	}
}
