package repository

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/afnan0304/Taskosit/internal/model"
)

func TestPostgresTaskRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時にインターフェースを満たすことを確認
	var _ TaskRepository = (*PostgresTaskRepo)(nil)
}

func TestNewPostgresTaskRepo(t *testing.T) {
	db := &sql.DB{}
	repo := NewPostgresTaskRepo(db)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestBuildWhere_UserIDOnly(t *testing.T) {
	where, args := buildWhere(TaskFilter{UserID: "user-1"})

	if where != "WHERE user_id = $1" {
		t.Errorf("where = %q, want %q", where, "WHERE user_id = $1")
	}
	if len(args) != 1 || args[0] != "user-1" {
		t.Errorf("args = %v, want [user-1]", args)
	}
}

func TestBuildWhere_AllFilters(t *testing.T) {
	archived := true
	dueFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dueTo := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	where, args := buildWhere(TaskFilter{
		UserID:   "user-1",
		Status:   model.TaskStatusPending,
		Category: "仕事",
		Priority: model.TaskPriorityHigh,
		Search:   "買い物",
		Archived: &archived,
		DueFrom:  &dueFrom,
		DueTo:    &dueTo,
	})

	// プレースホルダが条件の追加順に採番されること
	wantConds := []string{
		"user_id = $1",
		"status = $2",
		"category = $3",
		"priority = $4",
		"(title ILIKE $5 OR description ILIKE $5)",
		"archived = $6",
		"due_date >= $7",
		"due_date <= $8",
	}
	for _, cond := range wantConds {
		if !strings.Contains(where, cond) {
			t.Errorf("where句に %q が含まれていません: %s", cond, where)
		}
	}

	wantArgs := []any{"user-1", "pending", "仕事", "high", "%買い物%", true, dueFrom, dueTo}
	if len(args) != len(wantArgs) {
		t.Fatalf("len(args) = %d, want %d", len(args), len(wantArgs))
	}
	for i, want := range wantArgs {
		if args[i] != want {
			t.Errorf("args[%d] = %v, want %v", i, args[i], want)
		}
	}
}

func TestBuildWhere_SearchEscapesLikeMetacharacters(t *testing.T) {
	_, args := buildWhere(TaskFilter{UserID: "user-1", Search: "50%_off"})

	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[1] != `%50\%\_off%` {
		t.Errorf("search arg = %q, want %q", args[1], `%50\%\_off%`)
	}
}

func TestBuildWhere_ArchivedFalseIsIncluded(t *testing.T) {
	// Archivedがfalseを指すポインタの場合も条件に含めること（nilとの区別）
	archived := false
	where, args := buildWhere(TaskFilter{UserID: "user-1", Archived: &archived})

	if !strings.Contains(where, "archived = $2") {
		t.Errorf("where句に archived 条件が含まれていません: %s", where)
	}
	if len(args) != 2 || args[1] != false {
		t.Errorf("args = %v, want [user-1 false]", args)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`\%_`, `\\\%\_`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		sort model.TaskSort
		want string
	}{
		{model.TaskSortCreated, "ORDER BY created_at DESC"},
		{model.TaskSortCreatedAsc, "ORDER BY created_at ASC"},
		{model.TaskSortDue, "ORDER BY due_date ASC NULLS LAST"},
		{model.TaskSortDueDesc, "ORDER BY due_date DESC NULLS LAST"},
		{model.TaskSortStatus, "ORDER BY status ASC, created_at DESC"},
		{model.TaskSortDefault, "ORDER BY due_date ASC NULLS LAST, created_at DESC"},
		{model.TaskSort("unknown"), "ORDER BY due_date ASC NULLS LAST, created_at DESC"},
	}

	for _, tt := range tests {
		if got := orderBy(tt.sort); got != tt.want {
			t.Errorf("orderBy(%q) = %q, want %q", tt.sort, got, tt.want)
		}
	}
}
