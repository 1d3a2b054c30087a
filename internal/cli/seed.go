package cli

import (
	"context"

	"certexam-service/internal/config"
	"certexam-service/internal/domain"
	"certexam-service/internal/infra/memory"
	redisinfra "certexam-service/internal/infra/redis"
	"certexam-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// questionRow maps domain.Question onto the questions table.
type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID              int               `bun:"id,pk"`
	Chapter         int               `bun:"chapter"`
	ChapterTitle    string            `bun:"chapter_title"`
	SyllabusSection string            `bun:"syllabus_section"`
	Topic           string            `bun:"topic"`
	Bloom           string            `bun:"bloom"`
	Question        string            `bun:"question"`
	Options         map[string]string `bun:"options,type:jsonb"`
	Answer          string            `bun:"answer"`
	Explanation     string            `bun:"explanation"`
	ExamSet         *string           `bun:"exam_set"`
	ExamPosition    *int              `bun:"exam_position"`
}

// NewSeedCmd imports a question bank file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a question bank file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank file (defaults to questions.file from config)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if file == "" {
		file = questionsFile(cfg)
	}

	questions, err := memory.ReadQuestionFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := upsertQuestions(ctx, db, questions)
	if err != nil {
		return err
	}
	log.Info().Str("file", file).Int64("rows", n).Msg("question bank seeded")

	if err := invalidateQuestionCache(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("failed to clear cached question lists")
	}
	return nil
}

// invalidateQuestionCache clears the shared Redis question lists so running
// servers pick up the seeded bank.
func invalidateQuestionCache(ctx context.Context, cfg config.Config) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	return redisinfra.NewQuestionCache(client, nil, 0).Invalidate(ctx)
}

func upsertQuestions(ctx context.Context, db bun.IDB, questions []domain.Question) (int64, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		rows[i] = questionRow{
			ID:              q.ID,
			Chapter:         q.Chapter,
			ChapterTitle:    q.ChapterTitle,
			SyllabusSection: q.SyllabusSection,
			Topic:           q.Topic,
			Bloom:           q.Bloom,
			Question:        q.Text,
			Options:         q.Options,
			Answer:          q.Answer,
			Explanation:     q.Explanation,
			ExamSet:         q.ExamSet,
			ExamPosition:    q.ExamPosition,
		}
	}

	res, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("chapter = EXCLUDED.chapter").
		Set("chapter_title = EXCLUDED.chapter_title").
		Set("syllabus_section = EXCLUDED.syllabus_section").
		Set("topic = EXCLUDED.topic").
		Set("bloom = EXCLUDED.bloom").
		Set("question = EXCLUDED.question").
		Set("options = EXCLUDED.options").
		Set("answer = EXCLUDED.answer").
		Set("explanation = EXCLUDED.explanation").
		Set("exam_set = EXCLUDED.exam_set").
		Set("exam_position = EXCLUDED.exam_position").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
