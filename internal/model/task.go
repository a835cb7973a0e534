// Package model はドメインモデルを定義する。
package model

import "time"

// Task はユーザーが所有するタスクを表す。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Category    string
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
	Archived    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	// TaskStatusPending は未着手のタスク状態。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress は進行中のタスク状態。
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusCompleted は完了したタスク状態。
	TaskStatusCompleted TaskStatus = "completed"
)

// ValidStatus はstatusが定義済みの値かどうかを返す。
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	// TaskPriorityLow は低優先度。
	TaskPriorityLow TaskPriority = "low"
	// TaskPriorityMedium は中優先度（デフォルト）。
	TaskPriorityMedium TaskPriority = "medium"
	// TaskPriorityHigh は高優先度。
	TaskPriorityHigh TaskPriority = "high"
	// TaskPriorityUrgent は緊急。
	TaskPriorityUrgent TaskPriority = "urgent"
)

// ValidPriority はpriorityが定義済みの値かどうかを返す。
func ValidPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// TaskSort はタスク一覧のソート種別を表す。
type TaskSort string

const (
	// TaskSortCreated は作成日時の降順。
	TaskSortCreated TaskSort = "created"
	// TaskSortCreatedAsc は作成日時の昇順。
	TaskSortCreatedAsc TaskSort = "created:asc"
	// TaskSortDue は期限の昇順（期限なしは末尾）。
	TaskSortDue TaskSort = "due"
	// TaskSortDueDesc は期限の降順。
	TaskSortDueDesc TaskSort = "due:desc"
	// TaskSortStatus はステータスの辞書順。
	TaskSortStatus TaskSort = "status"
	// TaskSortDefault は指定なしの場合のソート（期限昇順、次に作成日時降順）。
	TaskSortDefault TaskSort = ""
)
