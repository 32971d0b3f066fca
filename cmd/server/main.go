package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/act-prep/backend/internal/auth"
	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/config"
	"github.com/act-prep/backend/internal/database"
	"github.com/act-prep/backend/internal/notify"
	"github.com/act-prep/backend/internal/progress"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "act-server",
	Short: "ACT practice backend",
	Long:  "HTTP API for ACT practice sessions, tests, review, dashboards and question generation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(config.Load())
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer db.Close()
		return database.Migrate(db)
	},
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Email users who are behind on today's questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return remind(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func serve(ctx context.Context) error {
	cfg := config.Load()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	provider, err := newLLMProvider(ctx, cfg)
	if err != nil {
		return err
	}

	a := newApp(cfg, db, cat, provider)

	evictCtx, stopEviction := context.WithCancel(context.Background())
	evicted := make(chan struct{})
	go func() {
		a.sessions.RunEviction(evictCtx, time.Minute)
		close(evicted)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		stopEviction()
		<-evicted
		return fmt.Errorf("listen: %w", err)
	}

	log.Printf("[server] starting on :%s", cfg.Port)
	err = runServer(ctx, server, ln, cfg.ShutdownTimeout)

	stopEviction()
	<-evicted
	return err
}

// runServer serves on ln until ctx is cancelled, then drains in-flight
// requests for up to timeout. It returns only after the drain has finished.
func runServer(ctx context.Context, server *http.Server, ln net.Listener, timeout time.Duration) error {
	served := make(chan struct{})
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Println("[server] shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] forced shutdown: %v", err)
		}
	}()

	err := server.Serve(ln)
	close(served)
	<-shutdownDone

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func remind(ctx context.Context) error {
	cfg := config.Load()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mailer, err := notify.NewMailer(ctx, cfg.AWSRegion, cfg.SESFromEmail)
	if err != nil {
		return err
	}

	reminder := notify.NewReminder(auth.NewStore(db), progress.NewStore(db), mailer, cfg.AppBaseURL)
	_, err = reminder.Run(ctx, time.Now())
	return err
}
