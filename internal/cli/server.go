package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/config"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/engine"
	"edu-quiz-engine/internal/infra/memory"
	pgloader "edu-quiz-engine/internal/infra/postgres"
	redisinfra "edu-quiz-engine/internal/infra/redis"
	"edu-quiz-engine/internal/selector"
	transport "edu-quiz-engine/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine server",
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
	sessionTTL := config.Duration(cfg.Redis.SessionTTL, 24*time.Hour)
	bankTTL := config.Duration(cfg.Quiz.BankTTL, 10*time.Minute)
	feedbackDelay := config.Duration(cfg.Quiz.FeedbackDelay, 1200*time.Millisecond)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleCourses())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	var bank app.QuestionBank
	var sessions engine.SessionStore
	var progress engine.ProgressStore
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, bankTTL)
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
		progress = redisinfra.NewProgressStore(redisClient)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
		sessions = memory.NewSessionStore()
		progress = memory.NewProgressStore()
	}

	service := app.NewQuizService(bank, sessions, progress, selector.New(), feedbackDelay)
	wsHandler := transport.NewWSHandler(service)

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
		log.Printf("starting quiz engine on :%s", finalPort)
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

// sampleCourses provides a minimal bank for running without Postgres.
func sampleCourses() map[string][]domain.Question {
	return map[string][]domain.Question{
		"GO101": {
			{
				Week:        1,
				Text:        "Which keyword declares a new variable with inference?",
				Options:     []string{"A) var", "B) :=", "C) let", "D) def"},
				Answer:      []string{"B"},
				ContentType: domain.ContentMultipleChoice,
			},
			{
				Week:        1,
				Text:        "Which builtin appends to a slice?",
				Options:     []string{"A) push", "B) add", "C) append", "D) insert"},
				Answer:      []string{"C"},
				ContentType: domain.ContentMultipleChoice,
			},
			{
				Week:        2,
				Text:        "Which types can be map keys?",
				Options:     []string{"A) comparable types", "B) slices", "C) maps", "D) functions"},
				Answer:      []string{"A"},
				ContentType: domain.ContentMultipleChoice,
			},
		},
	}
}
