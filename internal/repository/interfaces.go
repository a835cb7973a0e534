// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/afnan0304/Taskosit/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はユーザーの名前とメールアドレスを更新する。
	UpdateProfile(ctx context.Context, id, name, email string) error

	// UpdatePasswordHash はユーザーのパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// UpdateRefreshTokenDigests はユーザーのリフレッシュトークンダイジェスト列を
	// 丸ごと置き換える。読み取り・変更・書き込みの最終書き込み勝ちで運用する。
	UpdateRefreshTokenDigests(ctx context.Context, id string, digests []string) error
}

// TaskFilter はタスク一覧取得の絞り込み条件。
// ゼロ値のフィールドは条件に含めない。
type TaskFilter struct {
	UserID   string
	Status   model.TaskStatus
	Category string
	Priority model.TaskPriority
	Search   string // titleまたはdescriptionの部分一致（大文字小文字を区別しない）
	Archived *bool  // nilの場合はアーカイブ状態で絞り込まない
	DueFrom  *time.Time
	DueTo    *time.Time
	Sort     model.TaskSort
	Offset   int
	Limit    int
}

// StatusCounts はステータスごとのタスク件数。
type StatusCounts struct {
	Pending    int
	InProgress int
	Completed  int
}

// PriorityCounts は優先度ごとのタスク件数。
type PriorityCounts struct {
	Low    int
	Medium int
	High   int
	Urgent int
}

// CategoryStat はカテゴリごとの件数と完了数。
type CategoryStat struct {
	Category  string
	Total     int
	Completed int
}

// DailyTrend は日ごとの作成数と完了数。
type DailyTrend struct {
	Date      time.Time // その日の0時（UTC）
	Created   int
	Completed int
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// List はフィルタ条件に合致するタスクを取得する。
	List(ctx context.Context, filter TaskFilter) ([]*model.Task, error)

	// Count はフィルタ条件に合致するタスクの総数を返す。
	// Sort、Offset、Limitは無視される。
	Count(ctx context.Context, filter TaskFilter) (int, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクを上書き更新する。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error

	// BulkUpdateStatus は指定ユーザーが所有するタスクのうちidsに含まれるものの
	// ステータスを一括更新し、更新件数を返す。他ユーザーのタスクは対象外。
	BulkUpdateStatus(ctx context.Context, userID string, ids []string, status model.TaskStatus) (int, error)

	// BulkDelete は指定ユーザーが所有するタスクのうちidsに含まれるものを
	// 一括削除し、削除件数を返す。他ユーザーのタスクは対象外。
	BulkDelete(ctx context.Context, userID string, ids []string) (int, error)

	// CountsByStatus は未アーカイブタスクのステータス別件数を返す。
	CountsByStatus(ctx context.Context, userID string) (StatusCounts, error)

	// CountOverdue は期限超過かつ未完了・未アーカイブのタスク件数を返す。
	CountOverdue(ctx context.Context, userID string, now time.Time) (int, error)

	// CountArchived はアーカイブ済みタスクの件数を返す。
	CountArchived(ctx context.Context, userID string) (int, error)

	// CountsByPriority はsince以降に作成されたタスクの優先度別件数を返す。
	CountsByPriority(ctx context.Context, userID string, since time.Time) (PriorityCounts, error)

	// CategoryStats はsince以降に作成されたタスクのカテゴリ別集計を返す。
	// カテゴリ未設定のタスクは空文字列のカテゴリとして集計される。
	CategoryStats(ctx context.Context, userID string, since time.Time) ([]CategoryStat, error)

	// DailyTrends はsince以降の日別の作成数・完了数を返す。
	// 作成数はcreated_at、完了数は完了ステータスのタスクのupdated_atで日付を判定する。
	DailyTrends(ctx context.Context, userID string, since time.Time) ([]DailyTrend, error)
}
