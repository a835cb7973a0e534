package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/afnan0304/Taskosit/internal/model"
	"github.com/afnan0304/Taskosit/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// List はタスク一覧をフィルタ・ページネーション付きで返す。
	List(ctx context.Context, userID string, params task.ListParams) (*task.ListResult, error)
	// Create はタスクを作成する。
	Create(ctx context.Context, userID string, params task.CreateParams) (*model.Task, error)
	// Get は指定IDのタスクを取得する。
	Get(ctx context.Context, userID, taskID string) (*model.Task, error)
	// Update はタスクを全体更新する。
	Update(ctx context.Context, userID, taskID string, params task.CreateParams) (*model.Task, error)
	// UpdateStatus はタスクのステータスのみを更新する。
	UpdateStatus(ctx context.Context, userID, taskID, status string) (*model.Task, error)
	// SetArchived はタスクのアーカイブ状態を変更する（冪等）。
	SetArchived(ctx context.Context, userID, taskID string, archived bool) (*model.Task, error)
	// Delete はタスクを削除する。
	Delete(ctx context.Context, userID, taskID string) error
	// BulkUpdateStatus は複数タスクのステータスを一括更新し、更新件数を返す。
	BulkUpdateStatus(ctx context.Context, userID string, ids []string, status string) (int, error)
	// BulkDelete は複数タスクを一括削除し、削除件数を返す。
	BulkDelete(ctx context.Context, userID string, ids []string) (int, error)
	// GetStats はユーザーのタスク統計を返す。
	GetStats(ctx context.Context, userID string) (*task.Stats, error)
	// GetAnalytics は直近period日間のタスク分析を返す。
	GetAnalytics(ctx context.Context, userID string, period int) (*task.Analytics, error)
}

// TaskMetrics はタスクハンドラーが記録するメトリクスのインターフェース。
type TaskMetrics interface {
	RecordTaskCreated()
	RecordTasksDeleted(count int)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	metrics TaskMetrics
}

// NewTaskHandler はTaskHandlerを生成する。metricsはnilでもよい。
func NewTaskHandler(service TaskServiceInterface, metrics TaskMetrics) *TaskHandler {
	return &TaskHandler{
		service: service,
		metrics: metrics,
	}
}

// taskRequest はタスク作成・更新リクエストのボディ。
type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
}

// statusRequest はステータス更新リクエストのボディ。
type statusRequest struct {
	Status string `json:"status"`
}

// bulkStatusRequest はステータス一括更新リクエストのボディ。
type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

// bulkDeleteRequest は一括削除リクエストのボディ。
type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// taskListResponse はタスク一覧のページネーション付きAPIレスポンス。
type taskListResponse struct {
	Tasks []taskResponse `json:"tasks"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// statsResponse はタスク統計のAPIレスポンス。
type statsResponse struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	InProgress     int `json:"inProgress"`
	Completed      int `json:"completed"`
	Overdue        int `json:"overdue"`
	Archived       int `json:"archived"`
	CompletionRate int `json:"completionRate"`
}

// analyticsSummaryResponse は分析対象期間内の集計のAPIレスポンス。
type analyticsSummaryResponse struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	CompletionRate int `json:"completionRate"`
}

// priorityCountsResponse は優先度別件数のAPIレスポンス。
type priorityCountsResponse struct {
	Urgent int `json:"urgent"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// categoryStatResponse はカテゴリ別集計のAPIレスポンス。
type categoryStatResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// dailyTrendResponse は日別の作成数・完了数のAPIレスポンス。
type dailyTrendResponse struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// analyticsResponse はタスク分析のAPIレスポンス。
type analyticsResponse struct {
	Period     int                             `json:"period"`
	Summary    analyticsSummaryResponse        `json:"summary"`
	Priority   priorityCountsResponse          `json:"priority"`
	Categories map[string]categoryStatResponse `json:"categories"`
	Trends     []dailyTrendResponse            `json:"trends"`
}

// ListTasks はタスク一覧を取得する。アーカイブ済みは含まれない。
// GET /api/task
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	params, err := parseListParams(r, false)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskListResponse(result))
}

// FilterTasks は拡張フィルタ付きでタスク一覧を取得する。
// 優先度・アーカイブ状態・期限範囲による絞り込みが追加で使える。
// GET /api/task/filter
func (h *TaskHandler) FilterTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	params, err := parseListParams(r, true)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskListResponse(result))
}

// CreateTask はタスクを作成する。
// POST /api/task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), userID, task.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTaskCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(created))
}

// GetTask は指定IDのタスクを取得する。
// GET /api/task/:id
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(found))
}

// UpdateTask はタスクを全体更新する。アーカイブ状態は変更されない。
// PUT /api/task/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), task.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(updated))
}

// UpdateTaskStatus はタスクのステータスのみを更新する。
// PATCH /api/task/:id/status
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(updated))
}

// ArchiveTask はタスクをアーカイブする（冪等）。
// PATCH /api/task/:id/archive
func (h *TaskHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// UnarchiveTask はタスクのアーカイブを解除する（冪等）。
// PATCH /api/task/:id/unarchive
func (h *TaskHandler) UnarchiveTask(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *TaskHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	updated, err := h.service.SetArchived(r.Context(), userID, chi.URLParam(r, "id"), archived)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(updated))
}

// DeleteTask はタスクを削除する。
// DELETE /api/task/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTasksDeleted(1)
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdateStatus は複数タスクのステータスを一括更新する。
// 呼び出しユーザーが所有するタスクのみが対象となる。
// POST /api/task/bulk/status
func (h *TaskHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.BulkUpdateStatus(r.Context(), userID, req.IDs, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"updated": updated})
}

// BulkDelete は複数タスクを一括削除する。
// 呼び出しユーザーが所有するタスクのみが対象となる。
// POST /api/task/bulk/delete
func (h *TaskHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), userID, req.IDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil && deleted > 0 {
		h.metrics.RecordTasksDeleted(deleted)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"deleted": deleted})
}

// GetStats はユーザーのタスク統計を取得する。
// GET /api/task/stats
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Total:          stats.Total,
		Pending:        stats.Pending,
		InProgress:     stats.InProgress,
		Completed:      stats.Completed,
		Overdue:        stats.Overdue,
		Archived:       stats.Archived,
		CompletionRate: stats.CompletionRate,
	})
}

// GetAnalytics は直近period日間のタスク分析を取得する。
// GET /api/task/analytics?period=30
func (h *TaskHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDOrUnauthorized(w, r)
	if !ok {
		return
	}

	period := 0
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("期間は整数で指定してください"))
			return
		}
		period = parsed
	}

	analytics, err := h.service.GetAnalytics(r.Context(), userID, period)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAnalyticsResponse(analytics))
}

// SetupTaskRoutes はタスク管理関連のルーティングを設定したchi.Routerを返す。
func SetupTaskRoutes(service TaskServiceInterface, metrics TaskMetrics) http.Handler {
	r := chi.NewRouter()
	h := NewTaskHandler(service, metrics)

	r.Route("/api/task", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Get("/filter", h.FilterTasks)
		r.Get("/stats", h.GetStats)
		r.Get("/analytics", h.GetAnalytics)

		r.Post("/bulk/status", h.BulkUpdateStatus)
		r.Post("/bulk/delete", h.BulkDelete)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Put("/", h.UpdateTask)
			r.Delete("/", h.DeleteTask)
			r.Patch("/status", h.UpdateTaskStatus)
			r.Patch("/archive", h.ArchiveTask)
			r.Patch("/unarchive", h.UnarchiveTask)
		})
	})

	return r
}

// --- ヘルパー関数 ---

// parseListParams はクエリ文字列から一覧取得パラメータを組み立てる。
// extendedがtrueの場合（/filter）は優先度・アーカイブ状態・期限範囲も受け付ける。
func parseListParams(r *http.Request, extended bool) (task.ListParams, error) {
	q := r.URL.Query()

	params := task.ListParams{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}

	page, err := parseIntQuery(q.Get("page"), "page")
	if err != nil {
		return params, err
	}
	params.Page = page

	limit, err := parseIntQuery(q.Get("limit"), "limit")
	if err != nil {
		return params, err
	}
	params.Limit = limit

	if !extended {
		return params, nil
	}

	params.Priority = q.Get("priority")

	if raw := q.Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			return params, model.NewValidationError("archivedにはtrueまたはfalseを指定してください")
		}
		params.Archived = &archived
	}

	if raw := q.Get("due_from"); raw != "" {
		t, err := parseDateQuery(raw)
		if err != nil {
			return params, model.NewValidationError("due_fromの日付形式が正しくありません")
		}
		params.DueFrom = &t
	}
	if raw := q.Get("due_to"); raw != "" {
		t, err := parseDateQuery(raw)
		if err != nil {
			return params, model.NewValidationError("due_toの日付形式が正しくありません")
		}
		params.DueTo = &t
	}

	return params, nil
}

// parseIntQuery は整数クエリパラメータを解析する。空文字列は0を返す。
func parseIntQuery(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name + "は整数で指定してください")
	}
	return v, nil
}

// parseDateQuery はRFC3339または日付のみ（2006-01-02）の形式を受け付ける。
func parseDateQuery(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		DueDate:     t.DueDate,
		Archived:    t.Archived,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// toTaskListResponse は一覧結果からAPIレスポンスに変換する。
func toTaskListResponse(result *task.ListResult) taskListResponse {
	tasks := make([]taskResponse, 0, len(result.Tasks))
	for _, t := range result.Tasks {
		tasks = append(tasks, toTaskResponse(t))
	}
	return taskListResponse{
		Tasks: tasks,
		Total: result.Total,
		Page:  result.Page,
		Pages: result.Pages,
	}
}

// toAnalyticsResponse は分析結果からAPIレスポンスに変換する。
// カテゴリ未設定のタスクは"uncategorized"として集計される。
func toAnalyticsResponse(a *task.Analytics) analyticsResponse {
	categories := make(map[string]categoryStatResponse, len(a.Categories))
	for _, c := range a.Categories {
		name := c.Category
		if name == "" {
			name = "uncategorized"
		}
		categories[name] = categoryStatResponse{
			Total:     c.Total,
			Completed: c.Completed,
		}
	}

	trends := make([]dailyTrendResponse, 0, len(a.Trends))
	for _, tr := range a.Trends {
		trends = append(trends, dailyTrendResponse{
			Date:      tr.Date.Format("2006-01-02"),
			Created:   tr.Created,
			Completed: tr.Completed,
		})
	}

	return analyticsResponse{
		Period: a.Period,
		Summary: analyticsSummaryResponse{
			Total:          a.Summary.Total,
			Completed:      a.Summary.Completed,
			CompletionRate: a.Summary.CompletionRate,
		},
		Priority: priorityCountsResponse{
			Urgent: a.Priority.Urgent,
			High:   a.Priority.High,
			Medium: a.Priority.Medium,
			Low:    a.Priority.Low,
		},
		Categories: categories,
		Trends:     trends,
	}
}
