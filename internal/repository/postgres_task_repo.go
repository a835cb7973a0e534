package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/afnan0304/Taskosit/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, user_id, title, description, category, priority, status, due_date, archived, created_at, updated_at`

// scanTask は1行をmodel.Taskに読み込む。
func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	task := &model.Task{}
	var dueDate sql.NullTime
	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &task.Category,
		&task.Priority, &task.Status, &dueDate, &task.Archived,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	return task, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// buildWhere はTaskFilterからWHERE句と引数列を構築する。
func buildWhere(filter TaskFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{filter.UserID}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Priority != "" {
		add("priority = ?", string(filter.Priority))
	}
	if filter.Search != "" {
		// 2箇所の?は同一引数を参照する
		add("(title ILIKE ? OR description ILIKE ?)", "%"+escapeLike(filter.Search)+"%")
	}
	if filter.Archived != nil {
		add("archived = ?", *filter.Archived)
	}
	if filter.DueFrom != nil {
		add("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		add("due_date <= ?", *filter.DueTo)
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// orderBy はソート種別からORDER BY句を返す。
func orderBy(sort model.TaskSort) string {
	switch sort {
	case model.TaskSortCreated:
		return "ORDER BY created_at DESC"
	case model.TaskSortCreatedAsc:
		return "ORDER BY created_at ASC"
	case model.TaskSortDue:
		return "ORDER BY due_date ASC NULLS LAST"
	case model.TaskSortDueDesc:
		return "ORDER BY due_date DESC NULLS LAST"
	case model.TaskSortStatus:
		return "ORDER BY status ASC, created_at DESC"
	default:
		return "ORDER BY due_date ASC NULLS LAST, created_at DESC"
	}
}

// List はフィルタ条件に合致するタスクを取得する。
func (r *PostgresTaskRepo) List(ctx context.Context, filter TaskFilter) ([]*model.Task, error) {
	where, args := buildWhere(filter)

	query := fmt.Sprintf(`SELECT %s FROM tasks %s %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, orderBy(filter.Sort), len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Count はフィルタ条件に合致するタスクの総数を返す。
func (r *PostgresTaskRepo) Count(ctx context.Context, filter TaskFilter) (int, error) {
	where, args := buildWhere(filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks `+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	var dueDate any
	if task.DueDate != nil {
		dueDate = *task.DueDate
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, category, priority, status, due_date, archived, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.UserID, task.Title, task.Description, task.Category,
		string(task.Priority), string(task.Status), dueDate, task.Archived,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update はタスクを上書き更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	var dueDate any
	if task.DueDate != nil {
		dueDate = *task.DueDate
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $2, description = $3, category = $4, priority = $5,
		     status = $6, due_date = $7, archived = $8, updated_at = $9
		 WHERE id = $1`,
		task.ID, task.Title, task.Description, task.Category,
		string(task.Priority), string(task.Status), dueDate, task.Archived,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}
	return nil
}

// Delete は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// BulkUpdateStatus は所有タスクのステータスを一括更新し、更新件数を返す。
func (r *PostgresTaskRepo) BulkUpdateStatus(ctx context.Context, userID string, ids []string, status model.TaskStatus) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3, updated_at = $4
		 WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids), string(status), time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// BulkDelete は所有タスクを一括削除し、削除件数を返す。
func (r *PostgresTaskRepo) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete tasks: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// CountsByStatus は未アーカイブタスクのステータス別件数を返す。
func (r *PostgresTaskRepo) CountsByStatus(ctx context.Context, userID string) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks
		 WHERE user_id = $1 AND NOT archived
		 GROUP BY status`,
		userID,
	)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, fmt.Errorf("failed to scan status count: %w", err)
		}
		switch model.TaskStatus(status) {
		case model.TaskStatusPending:
			counts.Pending = count
		case model.TaskStatusInProgress:
			counts.InProgress = count
		case model.TaskStatusCompleted:
			counts.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

// CountOverdue は期限超過かつ未完了・未アーカイブのタスク件数を返す。
func (r *PostgresTaskRepo) CountOverdue(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks
		 WHERE user_id = $1 AND NOT archived
		   AND due_date IS NOT NULL AND due_date < $2
		   AND status <> $3`,
		userID, now, string(model.TaskStatusCompleted),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return count, nil
}

// CountArchived はアーカイブ済みタスクの件数を返す。
func (r *PostgresTaskRepo) CountArchived(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND archived`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count archived tasks: %w", err)
	}
	return count, nil
}

// CountsByPriority はsince以降に作成されたタスクの優先度別件数を返す。
func (r *PostgresTaskRepo) CountsByPriority(ctx context.Context, userID string, since time.Time) (PriorityCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tasks
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY priority`,
		userID, since,
	)
	if err != nil {
		return PriorityCounts{}, fmt.Errorf("failed to count tasks by priority: %w", err)
	}
	defer rows.Close()

	var counts PriorityCounts
	for rows.Next() {
		var priority string
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return PriorityCounts{}, fmt.Errorf("failed to scan priority count: %w", err)
		}
		switch model.TaskPriority(priority) {
		case model.TaskPriorityLow:
			counts.Low = count
		case model.TaskPriorityMedium:
			counts.Medium = count
		case model.TaskPriorityHigh:
			counts.High = count
		case model.TaskPriorityUrgent:
			counts.Urgent = count
		}
	}
	if err := rows.Err(); err != nil {
		return PriorityCounts{}, fmt.Errorf("failed to iterate priority counts: %w", err)
	}
	return counts, nil
}

// CategoryStats はsince以降に作成されたタスクのカテゴリ別集計を返す。
func (r *PostgresTaskRepo) CategoryStats(ctx context.Context, userID string, since time.Time) ([]CategoryStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status = $3)
		 FROM tasks
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY category
		 ORDER BY category`,
		userID, since, string(model.TaskStatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category stats: %w", err)
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.Category, &s.Total, &s.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan category stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category stats: %w", err)
	}
	return stats, nil
}

// DailyTrends はsince以降の日別の作成数・完了数を返す。
// 作成日と完了日（完了ステータスのupdated_at）をUNIONで突き合わせて1クエリで集計する。
func (r *PostgresTaskRepo) DailyTrends(ctx context.Context, userID string, since time.Time) ([]DailyTrend, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT day, SUM(created), SUM(completed) FROM (
		     SELECT date_trunc('day', created_at) AS day, COUNT(*) AS created, 0 AS completed
		     FROM tasks
		     WHERE user_id = $1 AND created_at >= $2
		     GROUP BY 1
		   UNION ALL
		     SELECT date_trunc('day', updated_at) AS day, 0 AS created, COUNT(*) AS completed
		     FROM tasks
		     WHERE user_id = $1 AND status = $3 AND updated_at >= $2
		     GROUP BY 1
		 ) AS t
		 GROUP BY day
		 ORDER BY day`,
		userID, since, string(model.TaskStatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily trends: %w", err)
	}
	defer rows.Close()

	var trends []DailyTrend
	for rows.Next() {
		var t DailyTrend
		if err := rows.Scan(&t.Date, &t.Created, &t.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan daily trend: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily trends: %w", err)
	}
	return trends, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
