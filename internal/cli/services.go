package cli

import (
	"context"
	"fmt"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/config"
	"certexam-service/internal/domain"
	"certexam-service/internal/infra/memory"
	pgstore "certexam-service/internal/infra/postgres"
	redisinfra "certexam-service/internal/infra/redis"
	"certexam-service/internal/infra/sqlite"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// services holds the wired dependencies of a running server.
type services struct {
	Engines app.EngineRegistry
	closers []func()
}

func (r *services) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, log zerolog.Logger) (*services, error) {
	settings, err := engineSettings(cfg)
	if err != nil {
		return nil, err
	}

	rt := &services{}
	questions, sessions, err := openStore(ctx, cfg, log, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	// The file-backed bank is already in memory; only database loaders get a cache.
	if cfg.Store.Driver != config.DriverMemory {
		questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
		if redisClient != nil {
			questions = redisinfra.NewQuestionCache(redisClient, questions, questionTTL)
		} else {
			questions = memory.NewQuestionCache(questions, questionTTL)
		}
	}

	factory := func(clientID string) *app.Engine {
		return app.NewEngine(questions, sessions,
			app.WithSettings(settings),
			app.WithLogger(log.With().Str("client_id", clientID).Logger()),
		)
	}

	if redisClient != nil {
		rt.Engines = redisinfra.NewEngineRegistry(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour), factory)
	} else {
		rt.Engines = memory.NewEngineRegistry(factory)
	}
	return rt, nil
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger, rt *services) (app.QuestionRepository, app.SessionStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		bank, err := memory.LoadQuestionBank(questionsFile(cfg))
		if err != nil {
			return nil, nil, err
		}
		log.Info().Int("questions", len(bank.All())).Msg("question bank loaded")
		return bank, memory.NewSessionStore(), nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		if cfg.Questions.File != "" {
			questions, err := memory.ReadQuestionFile(cfg.Questions.File)
			if err != nil {
				return nil, nil, err
			}
			if err := store.ImportQuestions(ctx, questions); err != nil {
				return nil, nil, fmt.Errorf("import questions: %w", err)
			}
			log.Info().Int("questions", len(questions)).Msg("question bank imported into sqlite")
		}
		return store, store, nil

	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		return pgstore.NewQuestionLoader(pool), pgstore.NewSessionStore(pool), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func engineSettings(cfg config.Config) (app.Settings, error) {
	limit := config.TTLDuration(cfg.Exam.TimeLimit, domain.DefaultTimeLimitSecs*time.Second)
	settings := app.Settings{
		TimeLimitSecs: int(limit / time.Second),
		PassScore:     cfg.Exam.PassScore,
	}
	for _, q := range cfg.Exam.Quota {
		settings.Quota = append(settings.Quota, app.ChapterQuota{Chapter: q.Chapter, Count: q.Count})
	}
	if err := settings.Validate(); err != nil {
		return app.Settings{}, fmt.Errorf("exam config: %w", err)
	}
	return settings, nil
}

func questionsFile(cfg config.Config) string {
	if cfg.Questions.File != "" {
		return cfg.Questions.File
	}
	return "config/questions.yaml"
}
