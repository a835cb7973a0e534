// Package auth はユーザー登録、ログイン、トークンリフレッシュ、ログアウトを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/afnan0304/Taskosit/internal/model"
	"github.com/afnan0304/Taskosit/internal/repository"
	"github.com/afnan0304/Taskosit/internal/security"
	"github.com/afnan0304/Taskosit/internal/token"
)

// passwordMinLength はパスワードの最小文字数。
const passwordMinLength = 6

// passwordHashCost はbcryptのコストパラメータ。
const passwordHashCost = bcrypt.DefaultCost

// TokenIssuer は認証サービスが必要とするトークン操作のインターフェース。
// token.Managerの部分集合として定義する。
type TokenIssuer interface {
	// IssuePair はユーザーに新しいトークン組を発行する。
	IssuePair(ctx context.Context, user *model.User) (*token.Pair, error)
	// Rotate はリフレッシュトークンを新しいトークン組に交換する。
	Rotate(ctx context.Context, refreshToken string) (*token.Pair, error)
	// Revoke はリフレッシュトークンを失効させる。
	Revoke(ctx context.Context, refreshToken string) error
}

// Result は認証操作の結果。ユーザー情報とトークン組を含む。
type Result struct {
	User   *model.User
	Tokens *token.Pair
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokens    TokenIssuer
	sanitizer security.TextSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokens TokenIssuer,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		userRepo:  userRepo,
		tokens:    tokens,
		sanitizer: sanitizer,
	}
}

// Register は新規ユーザーを登録し、トークン組を発行する。
// メールアドレスは小文字に正規化され、重複している場合はEMAIL_TAKENエラーを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (*Result, error) {
	name = s.sanitizer.Sanitize(name)
	email = normalizeEmail(email)

	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	// メールアドレスの重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                  uuid.New().String(),
		Name:                name,
		Email:               email,
		PasswordHash:        string(hash),
		RefreshTokenDigests: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &Result{User: user, Tokens: pair}, nil
}

// Login はメールアドレスとパスワードを検証し、トークン組を発行する。
// 認証失敗時はメールアドレスとパスワードのどちらが誤っているかを開示しない。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = normalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.tokens.IssuePair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &Result{User: user, Tokens: pair}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいトークン組に交換する。
// 提示されたトークンは使い切りで、成功後に再利用するとREVOKED_TOKENエラーになる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	pair, err := s.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken):
			return nil, model.NewInvalidTokenError()
		case errors.Is(err, token.ErrRevokedToken):
			return nil, model.NewRevokedTokenError()
		case errors.Is(err, token.ErrUnknownUser):
			return nil, model.NewUserNotFoundError()
		default:
			return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
	}
	return pair, nil
}

// Logout はリフレッシュトークンを失効させる。
// トークンが不正・期限切れ・失効済みの場合もログアウト済みとみなし成功を返す（冪等）。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// normalizeEmail はメールアドレスを小文字に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration は登録入力を検証する。
func validateRegistration(name, email, password string) error {
	if name == "" {
		return model.NewValidationError("名前は必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(password) < passwordMinLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください", passwordMinLength))
	}
	return nil
}
