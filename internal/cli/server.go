package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	"quiz-battle-service/internal/infra/postgres"
	redisinfra "quiz-battle-service/internal/infra/redis"
	"quiz-battle-service/internal/question"
	transport "quiz-battle-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	questionTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var sessions app.SessionRepository
	var users app.UserRepository
	var questionStore question.Store
	if pool != nil {
		sessions = postgres.NewSessionRepository(pool)
		users = postgres.NewUserRepository(pool)
		questionStore = postgres.NewQuestionStore(pool)
	} else {
		memUsers := memory.NewUserRepository()
		sessions = memory.NewSessionRepository().WithUsers(memUsers)
		users = memUsers
		questionStore = memory.NewQuestionStore(sampleQuestions())
	}

	if redisClient != nil {
		questionStore = redisinfra.NewQuestionCache(redisClient, questionStore, questionTTL)
	}

	hub := transport.NewHub()
	coordinator := app.NewCoordinator(
		sessions,
		users,
		question.NewProvider(questionStore),
		app.NewRegistry(),
		hub,
		app.Config{
			TimeLimit:         config.Duration(cfg.Game.TimeLimit, 5*time.Minute),
			AdvanceDelay:      config.Duration(cfg.Game.AdvanceDelay, 2*time.Second),
			QuestionsPerMatch: cfg.Game.QuestionsPerMatch,
			Topic:             cfg.Game.Topic,
		},
	)
	if redisClient != nil {
		coordinator = coordinator.WithPresence(redisinfra.NewPresence(redisClient))
	}

	wsHandler := transport.NewWSHandler(coordinator, hub)
	sessionHandler := transport.NewSessionHandler(coordinator)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/sessions", sessionHandler.CreateSession)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz battle service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the in-memory store for running without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q-goroutine",
			Prompt: "Which keyword starts a new goroutine?",
			Topic:  "go",
			Options: []domain.Option{
				{Text: "async"},
				{Text: "go", Correct: true},
				{Text: "spawn"},
				{Text: "thread"},
			},
		},
		{
			ID:     "q-slice-len",
			Prompt: "What does len(s) return for a nil slice s?",
			Topic:  "go",
			Options: []domain.Option{
				{Text: "panic"},
				{Text: "0", Correct: true},
				{Text: "-1"},
				{Text: "undefined"},
			},
		},
		{
			ID:     "q-channel",
			Prompt: "What happens when you send on a nil channel?",
			Topic:  "go",
			Options: []domain.Option{
				{Text: "it blocks forever", Correct: true},
				{Text: "it panics"},
				{Text: "it returns an error"},
				{Text: "the value is dropped"},
			},
		},
		{
			ID:     "q-defer",
			Prompt: "In what order do deferred calls run?",
			Topic:  "go",
			Options: []domain.Option{
				{Text: "first in, first out"},
				{Text: "last in, first out", Correct: true},
				{Text: "random order"},
				{Text: "alphabetical order"},
			},
		},
		{
			ID:     "q-map-read",
			Prompt: "What does reading a missing key from a map return?",
			Topic:  "go",
			Options: []domain.Option{
				{Text: "the zero value", Correct: true},
				{Text: "nil always"},
				{Text: "a panic"},
				{Text: "an error"},
			},
		},
	}
}
