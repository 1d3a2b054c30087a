package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"certexam-service/internal/app"
	"certexam-service/internal/domain"
	pgstore "certexam-service/internal/infra/postgres"
	pgmigrations "certexam-service/internal/infra/postgres/migrations"
	infraredis "certexam-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestOfficialExamEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	questions := infraredis.NewQuestionCache(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	sessions := pgstore.NewSessionStore(pool)
	registry := infraredis.NewEngineRegistry(redisClient, 5*time.Minute, func(string) *app.Engine {
		return app.NewEngine(questions, sessions, app.WithSettings(app.Settings{PassScore: 2}))
	})

	engine := registry.GetOrCreate("candidate-1")
	if err := engine.StartExam(ctx, domain.OfficialMode("A")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if engine.TotalQuestions() != 3 {
		t.Fatalf("expected 3 official questions, got %d", engine.TotalQuestions())
	}

	// position 1: single-select B, position 2: multi-select A,C, position 3 left unanswered
	if err := engine.SelectAnswer(ctx, "B"); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	_ = engine.Next()
	for _, key := range []string{"C", "A"} {
		if err := engine.SelectAnswer(ctx, key); err != nil {
			t.Fatalf("answer 2 key %s: %v", key, err)
		}
	}

	res, err := engine.SubmitExam(ctx, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 2 || res.Total != 3 || !res.Passed || res.Pct != 67 {
		t.Fatalf("unexpected result %+v", res)
	}

	stored, err := sessions.GetSession(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.Status != domain.SessionStatusCompleted || stored.Score == nil || *stored.Score != 2 {
		t.Fatalf("unexpected stored session %+v", stored)
	}

	answers, err := sessions.Answers(ctx, res.Session.ID)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 3 {
		t.Fatalf("expected 3 answer rows, got %d", len(answers))
	}
	if answers[1].SelectedAnswer == nil || *answers[1].SelectedAnswer != "A,C" || !*answers[1].IsCorrect {
		t.Fatalf("expected canonical multi-select answer stored, got %+v", answers[1])
	}
	if answers[2].SelectedAnswer != nil || *answers[2].IsCorrect || answers[2].AnsweredAt != nil {
		t.Fatalf("expected unanswered row scored incorrect, got %+v", answers[2])
	}

	registry.Delete("candidate-1")
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			t.Fatalf("marshal options: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO questions (id, chapter, chapter_title, question, options, answer, exam_set, exam_position)
			 VALUES (?, ?, ?, ?, ?::jsonb, ?, ?, ?)`,
			q.ID, q.Chapter, q.ChapterTitle, q.Text, string(options), q.Answer, q.ExamSet, q.ExamPosition); err != nil {
			t.Fatalf("insert question %d: %v", q.ID, err)
		}
	}
}

func sampleQuestions() []domain.Question {
	options := map[string]string{"A": "alpha", "B": "bravo", "C": "charlie", "D": "delta"}
	set := "A"
	one, two, three := 1, 2, 3
	return []domain.Question{
		{ID: 11, Chapter: 1, ChapterTitle: "Fundamentals", Text: "Pick B", Options: options, Answer: "B", ExamSet: &set, ExamPosition: &one},
		{ID: 12, Chapter: 4, ChapterTitle: "Techniques", Text: "Pick A and C", Options: options, Answer: "A,C", ExamSet: &set, ExamPosition: &two},
		{ID: 13, Chapter: 5, ChapterTitle: "Management", Text: "Pick D", Options: options, Answer: "D", ExamSet: &set, ExamPosition: &three},
		{ID: 14, Chapter: 1, ChapterTitle: "Fundamentals", Text: "Pool question", Options: options, Answer: "A"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
