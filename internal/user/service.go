// Package user はプロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/afnan0304/Taskosit/internal/model"
	"github.com/afnan0304/Taskosit/internal/repository"
	"github.com/afnan0304/Taskosit/internal/security"
)

// passwordMinLength は新しいパスワードの最小文字数。
const passwordMinLength = 6

// Service はプロフィール管理のサービス層。
// プロフィールの取得・更新とパスワード変更を提供する。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
	}
}

// GetProfile は現在のユーザーのプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はユーザーの名前とメールアドレスを更新する。
// メールアドレスは小文字に正規化され、他ユーザーが使用中の場合は
// EMAIL_TAKENエラーを返す。パスワードはこの操作では変更できない。
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	name = s.sanitizer.Sanitize(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, model.NewValidationError("名前は必須です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	// メールアドレス変更時は他ユーザーとの重複をチェック
	if email != user.Email {
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if existing != nil && existing.ID != userID {
			return nil, model.NewEmailTakenError()
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, name, email); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.Name = name
	user.Email = email

	slog.Info("user profile updated", slog.String("user_id", userID))

	return user, nil
}

// ChangePassword は現在のパスワードを検証し、新しいパスワードに変更する。
// 現在のパスワードが一致しない場合はPASSWORD_MISMATCHエラーを返す。
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return model.NewPasswordMismatchError()
	}

	if len(newPassword) < passwordMinLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください", passwordMinLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}

	slog.Info("user password changed", slog.String("user_id", userID))

	return nil
}
