// Package task はタスク管理のドメインロジックを提供する。
//
// 一覧取得・検索・作成・更新・アーカイブ・一括操作・統計・分析を扱う。
// 全ての操作は呼び出しユーザーが所有するタスクのみを対象とし、
// 他ユーザーのタスクへのアクセスはTASK_NOT_FOUNDとして扱う
// （タスクIDの存在を開示しない）。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/afnan0304/Taskosit/internal/model"
	"github.com/afnan0304/Taskosit/internal/repository"
	"github.com/afnan0304/Taskosit/internal/security"
)

const (
	// defaultPageSize は1ページあたりのタスク件数のデフォルト値。
	defaultPageSize = 20
	// maxPageSize は1ページあたりのタスク件数の上限。
	maxPageSize = 100

	// defaultAnalyticsPeriod は分析対象期間（日数）のデフォルト値。
	defaultAnalyticsPeriod = 30
	// minAnalyticsPeriod / maxAnalyticsPeriod は分析対象期間の範囲。
	minAnalyticsPeriod = 7
	maxAnalyticsPeriod = 365
)

// validSorts は有効なソート種別のセット。
var validSorts = map[model.TaskSort]bool{
	model.TaskSortDefault:    true,
	model.TaskSortCreated:    true,
	model.TaskSortCreatedAsc: true,
	model.TaskSortDue:        true,
	model.TaskSortDueDesc:    true,
	model.TaskSortStatus:     true,
}

// Service はタスク管理のサービス層。
type Service struct {
	taskRepo  repository.TaskRepository
	sanitizer security.TextSanitizerService
	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository, sanitizer security.TextSanitizerService) *Service {
	return &Service{
		taskRepo:  taskRepo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListParams はタスク一覧取得のパラメータ。
type ListParams struct {
	Status   string
	Category string
	Priority string
	Search   string
	Archived *bool // nilの場合はアーカイブ済みを除外する
	DueFrom  *time.Time
	DueTo    *time.Time
	Sort     string
	Page     int
	Limit    int
}

// ListResult はタスク一覧のページネーション付き結果。
type ListResult struct {
	Tasks []*model.Task
	Total int
	Page  int
	Pages int
}

// List はタスク一覧をフィルタ・ページネーション付きで返す。
// アーカイブ指定がない場合はアーカイブ済みタスクを除外する。
// limitのデフォルトは20、上限は100。
func (s *Service) List(ctx context.Context, userID string, params ListParams) (*ListResult, error) {
	filter, err := s.buildFilter(userID, params)
	if err != nil {
		return nil, err
	}

	total, err := s.taskRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	page := filter.Offset/filter.Limit + 1
	pages := (total + filter.Limit - 1) / filter.Limit
	if pages == 0 {
		pages = 1
	}

	return &ListResult{
		Tasks: tasks,
		Total: total,
		Page:  page,
		Pages: pages,
	}, nil
}

// buildFilter はListParamsを検証し、リポジトリ層のフィルタに変換する。
func (s *Service) buildFilter(userID string, params ListParams) (repository.TaskFilter, error) {
	var filter repository.TaskFilter

	if params.Status != "" {
		if !model.ValidStatus(model.TaskStatus(params.Status)) {
			return filter, model.NewInvalidStatusError(params.Status)
		}
		filter.Status = model.TaskStatus(params.Status)
	}
	if params.Priority != "" {
		if !model.ValidPriority(model.TaskPriority(params.Priority)) {
			return filter, model.NewInvalidPriorityError(params.Priority)
		}
		filter.Priority = model.TaskPriority(params.Priority)
	}
	sort := model.TaskSort(params.Sort)
	if !validSorts[sort] {
		return filter, model.NewValidationError(fmt.Sprintf("無効なソート種別です: %s", params.Sort))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}

	archived := params.Archived
	if archived == nil {
		// デフォルトはアーカイブ済みを除外
		f := false
		archived = &f
	}

	filter.UserID = userID
	filter.Category = params.Category
	filter.Search = params.Search
	filter.Archived = archived
	filter.DueFrom = params.DueFrom
	filter.DueTo = params.DueTo
	filter.Sort = sort
	filter.Offset = (page - 1) * limit
	filter.Limit = limit

	return filter, nil
}

// CreateParams はタスク作成のパラメータ。
type CreateParams struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Status      string
	DueDate     *time.Time
}

// Create はタスクを作成する。タイトルは必須で、タイトル・説明・カテゴリは
// サニタイズされる。優先度のデフォルトはmedium、ステータスのデフォルトはpending。
func (s *Service) Create(ctx context.Context, userID string, params CreateParams) (*model.Task, error) {
	title := s.sanitizer.Sanitize(params.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}

	priority := model.TaskPriority(params.Priority)
	if params.Priority == "" {
		priority = model.TaskPriorityMedium
	} else if !model.ValidPriority(priority) {
		return nil, model.NewInvalidPriorityError(params.Priority)
	}

	status := model.TaskStatus(params.Status)
	if params.Status == "" {
		status = model.TaskStatusPending
	} else if !model.ValidStatus(status) {
		return nil, model.NewInvalidStatusError(params.Status)
	}

	now := s.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: s.sanitizer.Sanitize(params.Description),
		Category:    s.sanitizer.Sanitize(params.Category),
		Priority:    priority,
		Status:      status,
		DueDate:     params.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", userID),
	)

	return task, nil
}

// Get は指定IDのタスクを取得する。所有者でない場合はTASK_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.findOwned(ctx, userID, taskID)
}

// Update はタスクを全体更新する。アーカイブ状態はこの操作では変更されない。
func (s *Service) Update(ctx context.Context, userID, taskID string, params CreateParams) (*model.Task, error) {
	task, err := s.findOwned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	title := s.sanitizer.Sanitize(params.Title)
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}

	priority := model.TaskPriority(params.Priority)
	if params.Priority == "" {
		priority = task.Priority
	} else if !model.ValidPriority(priority) {
		return nil, model.NewInvalidPriorityError(params.Priority)
	}

	status := model.TaskStatus(params.Status)
	if params.Status == "" {
		status = task.Status
	} else if !model.ValidStatus(status) {
		return nil, model.NewInvalidStatusError(params.Status)
	}

	task.Title = title
	task.Description = s.sanitizer.Sanitize(params.Description)
	task.Category = s.sanitizer.Sanitize(params.Category)
	task.Priority = priority
	task.Status = status
	task.DueDate = params.DueDate
	task.UpdatedAt = s.now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// UpdateStatus はタスクのステータスのみを更新する。
func (s *Service) UpdateStatus(ctx context.Context, userID, taskID, status string) (*model.Task, error) {
	if !model.ValidStatus(model.TaskStatus(status)) {
		return nil, model.NewInvalidStatusError(status)
	}

	task, err := s.findOwned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task.Status = model.TaskStatus(status)
	task.UpdatedAt = s.now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	return task, nil
}

// SetArchived はタスクのアーカイブ状態を変更する。冪等であり、
// 既に目的の状態の場合もエラーにならない。
func (s *Service) SetArchived(ctx context.Context, userID, taskID string, archived bool) (*model.Task, error) {
	task, err := s.findOwned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if task.Archived == archived {
		return task, nil
	}

	task.Archived = archived
	task.UpdatedAt = s.now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update archive state: %w", err)
	}

	return task, nil
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	task, err := s.findOwned(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	slog.Info("task deleted",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)

	return nil
}

// BulkUpdateStatus は複数タスクのステータスを一括更新し、更新件数を返す。
// 呼び出しユーザーが所有するタスクのみが対象となる。
func (s *Service) BulkUpdateStatus(ctx context.Context, userID string, ids []string, status string) (int, error) {
	if len(ids) == 0 {
		return 0, model.NewValidationError("タスクIDを1件以上指定してください")
	}
	if !model.ValidStatus(model.TaskStatus(status)) {
		return 0, model.NewInvalidStatusError(status)
	}

	updated, err := s.taskRepo.BulkUpdateStatus(ctx, userID, ids, model.TaskStatus(status))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update status: %w", err)
	}

	slog.Info("tasks bulk updated",
		slog.String("user_id", userID),
		slog.Int("requested", len(ids)),
		slog.Int("updated", updated),
	)

	return updated, nil
}

// BulkDelete は複数タスクを一括削除し、削除件数を返す。
// 呼び出しユーザーが所有するタスクのみが対象となる。
func (s *Service) BulkDelete(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, model.NewValidationError("タスクIDを1件以上指定してください")
	}

	deleted, err := s.taskRepo.BulkDelete(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete tasks: %w", err)
	}

	slog.Info("tasks bulk deleted",
		slog.String("user_id", userID),
		slog.Int("requested", len(ids)),
		slog.Int("deleted", deleted),
	)

	return deleted, nil
}

// Stats はユーザーのタスク統計。件数は未アーカイブタスクが対象
// （Archivedを除く）。CompletionRateはパーセント値（四捨五入）。
type Stats struct {
	Total          int
	Pending        int
	InProgress     int
	Completed      int
	Overdue        int
	Archived       int
	CompletionRate int
}

// GetStats はユーザーのタスク統計を返す。
// 期限超過は期限が現在時刻より前かつ未完了・未アーカイブのタスク。
func (s *Service) GetStats(ctx context.Context, userID string) (*Stats, error) {
	counts, err := s.taskRepo.CountsByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	overdue, err := s.taskRepo.CountOverdue(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	archived, err := s.taskRepo.CountArchived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count archived tasks: %w", err)
	}

	total := counts.Pending + counts.InProgress + counts.Completed

	return &Stats{
		Total:          total,
		Pending:        counts.Pending,
		InProgress:     counts.InProgress,
		Completed:      counts.Completed,
		Overdue:        overdue,
		Archived:       archived,
		CompletionRate: completionRate(counts.Completed, total),
	}, nil
}

// Summary は分析対象期間内のタスクの集計。
type Summary struct {
	Total          int
	Completed      int
	CompletionRate int
}

// Analytics はユーザーのタスク分析結果。
type Analytics struct {
	Period     int
	Summary    Summary
	Priority   repository.PriorityCounts
	Categories []repository.CategoryStat
	Trends     []repository.DailyTrend
}

// GetAnalytics は直近period日間のタスク分析を返す。
// periodは7〜365の範囲で、0の場合はデフォルトの30日となる。
func (s *Service) GetAnalytics(ctx context.Context, userID string, period int) (*Analytics, error) {
	if period == 0 {
		period = defaultAnalyticsPeriod
	}
	if period < minAnalyticsPeriod || period > maxAnalyticsPeriod {
		return nil, model.NewValidationError(
			fmt.Sprintf("期間は%d〜%d日の範囲で指定してください", minAnalyticsPeriod, maxAnalyticsPeriod))
	}

	since := s.now().AddDate(0, 0, -period)

	priority, err := s.taskRepo.CountsByPriority(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by priority: %w", err)
	}

	categories, err := s.taskRepo.CategoryStats(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category stats: %w", err)
	}

	trends, err := s.taskRepo.DailyTrends(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily trends: %w", err)
	}

	// 期間内のサマリーはカテゴリ別集計から合算する
	var total, completed int
	for _, c := range categories {
		total += c.Total
		completed += c.Completed
	}

	return &Analytics{
		Period: period,
		Summary: Summary{
			Total:          total,
			Completed:      completed,
			CompletionRate: completionRate(completed, total),
		},
		Priority:   priority,
		Categories: categories,
		Trends:     trends,
	}, nil
}

// findOwned は指定IDのタスクを取得し、所有権を検証する。
// 存在しない、または他ユーザー所有の場合はTASK_NOT_FOUNDを返す。
func (s *Service) findOwned(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil || task.UserID != userID {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

// completionRate は完了率をパーセント（四捨五入）で返す。totalが0の場合は0。
func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
