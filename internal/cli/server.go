package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizcode-service/internal/app"
	"quizcode-service/internal/config"
	"quizcode-service/internal/domain"
	"quizcode-service/internal/infra/memory"
	pginfra "quizcode-service/internal/infra/postgres"
	redisinfra "quizcode-service/internal/infra/redis"
	transport "quizcode-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var catalog app.Catalog
	var attempts app.AttemptStore
	if pool != nil {
		catalog = pginfra.NewCatalog(pool)
		attempts = pginfra.NewAttemptStore(pool)
	} else {
		catalog = seedDemoCatalog(ctx)
		attempts = memory.NewAttemptStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		catalog = redisinfra.NewCachedCatalog(redisClient, catalog, quizTTL)
	} else {
		catalog = memory.NewCachedCatalog(catalog, quizTTL)
	}

	var cache app.RankingCache
	if redisClient != nil {
		rankingTTL := config.TTLDuration(cfg.Ranking.TTL, 10*time.Minute)
		cache = redisinfra.NewRankingCache(redisClient, rankingTTL)
	} else {
		cache = memory.NewRankingCache()
	}

	wsHandler := transport.NewWSHandler(catalog, attempts, cache)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizcode service on :%s", finalPort)
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

// seedDemoCatalog provides a minimal quiz set for running without Postgres.
func seedDemoCatalog(ctx context.Context) *memory.StaticCatalog {
	catalog := memory.NewStaticCatalog()
	_, err := catalog.AddQuiz(ctx, domain.Quiz{
		ID:          "quiz-1",
		Title:       "General knowledge",
		Description: "A short warm-up quiz",
		Code:        "4321",
		Questions: []domain.Question{
			{
				Text:          "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectOption: "4",
			},
			{
				Text:          "Which planet is known as the red planet?",
				Options:       []string{"Venus", "Jupiter", "Mars"},
				CorrectOption: "Mars",
			},
		},
	})
	if err != nil {
		log.Printf("seed demo quiz: %v", err)
	}
	return catalog
}
