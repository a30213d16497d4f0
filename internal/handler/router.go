package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.TokenAuthenticator
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string

	// ヘルスチェック
	DB Pinger

	AuthService    AuthServiceInterface
	BaseURL        string
	ProfileService ProfileServiceInterface
	MemoryService  MemoryServiceInterface
	FriendService  FriendshipServiceInterface
	Activity       ActivityRecorderInterface
	AvatarStore    AvatarStoreInterface
	Notifications  NotificationDispatcherInterface

	// MetricsHandler がnilでなければ/metricsに公開する。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → Metrics → SecurityHeaders → CORS → (Session)
//
// /health、/metrics と公開認証ルートはSessionミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.BaseURL)
	profileHandler := NewProfileHandler(deps.ProfileService)
	memoryHandler := NewMemoryHandler(deps.MemoryService)
	friendHandler := NewFriendHandler(deps.FriendService)
	activityHandler := NewActivityHandler(deps.Activity)
	storageHandler := NewStorageHandler(deps.AvatarStore)
	notificationHandler := NewNotificationHandler(deps.Notifications)

	// --- 認証不要のルート ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB).Check)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/token", authHandler.Token)
		r.Get("/confirm", authHandler.Confirm)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
			r.Get("/user", authHandler.User)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))

		r.Route("/rest/v1", func(r chi.Router) {
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", profileHandler.Search)
				r.Post("/", profileHandler.Create)
				r.Get("/{id}", profileHandler.Get)
				r.Patch("/{id}", profileHandler.Update)
			})

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", memoryHandler.List)
				r.Post("/", memoryHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", memoryHandler.Get)
					r.Patch("/", memoryHandler.Update)
					r.Delete("/", memoryHandler.Delete)

					r.Get("/like", memoryHandler.Liked)
					r.Put("/like", memoryHandler.Like)
					r.Delete("/like", memoryHandler.Unlike)
				})
			})
			r.Get("/memory_likes", memoryHandler.LikedIDs)

			r.Route("/friend_requests", func(r chi.Router) {
				r.Get("/", friendHandler.List)
				r.Post("/", friendHandler.Send)
				r.Patch("/{id}", friendHandler.Update)
				r.Delete("/{id}", friendHandler.Cancel)
			})

			r.Post("/user_activity", activityHandler.Record)
		})

		r.Put("/storage/v1/avatar", storageHandler.UploadAvatar)
		r.Post("/functions/v1/send-notification", notificationHandler.Send)
	})

	return r
}
