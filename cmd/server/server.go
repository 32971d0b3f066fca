package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/act-prep/backend/internal/auth"
	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/chat"
	"github.com/act-prep/backend/internal/config"
	"github.com/act-prep/backend/internal/dashboard"
	"github.com/act-prep/backend/internal/database"
	"github.com/act-prep/backend/internal/generator"
	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/middleware"
	"github.com/act-prep/backend/internal/practice"
	"github.com/act-prep/backend/internal/progress"
	"github.com/act-prep/backend/internal/questions"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// app holds everything the serve command runs.
type app struct {
	handler  http.Handler
	sessions *practice.Manager
}

func newLLMProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.New(ctx, llm.Config{
		Provider:  cfg.LLMProvider,
		OpenAI:    llm.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel},
		Anthropic: llm.AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel},
		Gemini:    llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel},
	})
	if err != nil {
		return nil, err
	}
	// the mock answers generation prompts with placeholder sets
	if m, ok := provider.(*llm.Mock); ok {
		m.Reply = generator.MockReply
	}
	return provider, nil
}

func newApp(cfg *config.Config, db *database.DB, cat *catalog.Store, provider llm.Provider) *app {
	secret := []byte(cfg.JWTSecret)

	// Stores
	userStore := auth.NewStore(db)
	progressStore := progress.NewStore(db)
	questionStore := questions.NewStore(db)

	// Services
	questionService := questions.NewService(questionStore, cat)
	sessions := practice.NewManager(progressStore, questionStore, cat, cfg.SessionIdleTimeout)
	chatService := chat.NewService(provider, questionStore)
	dashboardService := dashboard.NewService(userStore, progressStore)

	var verifier *generator.Verifier
	if cfg.GeneratorVerify {
		if _, isMock := provider.(*llm.Mock); isMock {
			log.Println("[server] WARN: verification disabled with the mock provider")
		} else {
			verifier = generator.NewVerifier(provider)
		}
	}
	gen := generator.NewGenerator(provider, verifier, cfg.GeneratorWorkers)

	// Handlers
	authHandler := auth.NewHandler(userStore, secret)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(secret))
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	questionHandler := questions.NewHandler(questionService)
	questionHandler.RegisterRoutes(protected)
	practice.NewHandler(sessions).RegisterRoutes(protected)
	progress.NewHandler(progressStore).RegisterRoutes(protected)
	chat.NewHandler(chatService).RegisterRoutes(protected)
	dashboard.NewHandler(dashboardService).RegisterRoutes(protected)

	// Admin routes
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(cfg.AdminUserIDs))
	questionHandler.RegisterAdminRoutes(admin)
	generator.NewHandler(gen).RegisterAdminRoutes(admin)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"sessions":%d}`, status, sessions.Len())
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return &app{
		handler:  middleware.Logging(c.Handler(r)),
		sessions: sessions,
	}
}
