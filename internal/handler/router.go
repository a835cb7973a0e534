package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/afnan0304/Taskosit/internal/metrics"
	"github.com/afnan0304/Taskosit/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス（nilの場合は収集しない）
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// サービス
	AuthService AuthServiceInterface
	TaskService TaskServiceInterface
	UserService UserServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Metrics
//
// 認証ルート（/api/auth/*）はIP単位のレート制限のみを適用し、
// Bearerトークン認証のルートはAuth → RateLimit(General)を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	var authMetrics AuthMetrics
	var taskMetrics TaskMetrics
	if deps.Metrics != nil {
		authMetrics = deps.Metrics
		taskMetrics = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, authMetrics)
	taskHandler := NewTaskHandler(deps.TaskService, taskMetrics)
	userHandler := NewUserHandler(deps.UserService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Check)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// 認証ルート（IP単位のレート制限）
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.RefreshToken)
		r.Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タスク管理
		r.Route("/api/task", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Get("/filter", taskHandler.FilterTasks)
			r.Get("/stats", taskHandler.GetStats)
			r.Get("/analytics", taskHandler.GetAnalytics)

			r.Post("/bulk/status", taskHandler.BulkUpdateStatus)
			r.Post("/bulk/delete", taskHandler.BulkDelete)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Put("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
				r.Patch("/status", taskHandler.UpdateTaskStatus)
				r.Patch("/archive", taskHandler.ArchiveTask)
				r.Patch("/unarchive", taskHandler.UnarchiveTask)
			})
		})

		// プロフィール管理
		r.Route("/api/user", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)
			r.Put("/me/password", userHandler.ChangePassword)
		})
	})

	return r
}
