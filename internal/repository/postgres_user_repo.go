package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/afnan0304/Taskosit/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findBy(ctx, `WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
// 呼び出し側でメールアドレスを小文字に正規化しておくこと。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(ctx, `WHERE email = $1`, email)
}

func (r *PostgresUserRepo) findBy(ctx context.Context, where string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, refresh_token_digests, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		pq.Array(&user.RefreshTokenDigests), &user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, refresh_token_digests, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		pq.Array(user.RefreshTokenDigests), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はユーザーの名前とメールアドレスを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id, name, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, updated_at = $4 WHERE id = $1`,
		id, name, email, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return checkAffected(result, id)
}

// UpdatePasswordHash はユーザーのパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return checkAffected(result, id)
}

// UpdateRefreshTokenDigests はユーザーのリフレッシュトークンダイジェスト列を置き換える。
func (r *PostgresUserRepo) UpdateRefreshTokenDigests(ctx context.Context, id string, digests []string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET refresh_token_digests = $2, updated_at = $3 WHERE id = $1`,
		id, pq.Array(digests), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update refresh token digests: %w", err)
	}
	return checkAffected(result, id)
}

// checkAffected は更新対象行が存在したことを確認する。
func checkAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
