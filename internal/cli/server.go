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
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/auth"
	"school-quiz-service/internal/config"
	"school-quiz-service/internal/infra/memory"
	"school-quiz-service/internal/infra/postgres"
	rediscache "school-quiz-service/internal/infra/redis"
	"school-quiz-service/internal/leaderboard"
	transport "school-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	poolTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		questionRepo  app.QuestionRepository
		ledger        app.Ledger
		accounts      auth.Accounts
		users         transport.Users
		questionAdmin transport.QuestionAdmin
		stats         transport.Stats
		pools         transport.PoolInvalidator
		standings     leaderboard.Standings
	)

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := postgres.NewStore(pool)
		ledger = store
		accounts = store
		users = store
		questionAdmin = store
		stats = store
		standings = store
		if redisClient != nil {
			cache := rediscache.NewQuestionCache(redisClient, store, poolTTL)
			questionRepo = cache
			pools = cache
		} else {
			cache := memory.NewQuestionCache(store, poolTTL)
			questionRepo = cache
			pools = cache
		}
	} else {
		log.Println("postgres not configured, running with in-memory stores")
		userStore := memory.NewUserStore()
		questionStore := memory.NewQuestionStore()
		seedStore(ctx, questionStore)

		ledger = userStore
		accounts = userStore
		users = userStore
		questionAdmin = questionStore
		stats = memory.Stats{Users: userStore, Questions: questionStore}
		standings = userStore
		cache := memory.NewQuestionCache(questionStore, poolTTL)
		questionRepo = cache
		pools = cache
	}

	quizCfg := app.DefaultConfig()
	if cfg.Quiz.QuestionsPerAttempt > 0 {
		quizCfg.QuestionsPerAttempt = cfg.Quiz.QuestionsPerAttempt
	}
	if cfg.Quiz.TimeLimit > 0 {
		quizCfg.TimeLimit = cfg.Quiz.TimeLimit
	}

	authSvc := auth.NewService(accounts, auth.Config{
		Secret:        cfg.Auth.Secret,
		TokenTTL:      config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour),
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	quizSvc := app.NewQuizService(questionRepo, ledger, quizCfg)
	feed := leaderboard.NewFeed(standings, 20)
	srv := transport.NewServer(authSvc, quizSvc, users, questionAdmin, stats, pools, feed)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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
