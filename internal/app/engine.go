package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"certexam-service/internal/domain"
	"github.com/rs/zerolog"
)

// Settings configures the exam rules an engine applies.
type Settings struct {
	TimeLimitSecs int
	PassScore     int
	Quota         []ChapterQuota
	TickInterval  time.Duration
}

// DefaultSettings returns the certification defaults: 3600 s, pass at 26, 1 s ticks.
func DefaultSettings() Settings {
	return Settings{
		TimeLimitSecs: domain.DefaultTimeLimitSecs,
		PassScore:     domain.DefaultPassScore,
		Quota:         DefaultQuota,
		TickInterval:  time.Second,
	}
}

// Validate rejects negative limits and malformed quotas. Zero values mean
// "use the default" and pass.
func (s Settings) Validate() error {
	if s.TimeLimitSecs < 0 {
		return fmt.Errorf("exam time limit must not be negative, got %ds", s.TimeLimitSecs)
	}
	if s.PassScore < 0 {
		return fmt.Errorf("pass score must not be negative, got %d", s.PassScore)
	}
	if s.TickInterval < 0 {
		return fmt.Errorf("tick interval must not be negative, got %s", s.TickInterval)
	}
	return ValidateQuota(s.Quota)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSettings overrides exam rules; zero fields keep their defaults. An
// invalid quota is kept and makes random StartExam calls fail.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		if s.TimeLimitSecs > 0 {
			e.settings.TimeLimitSecs = s.TimeLimitSecs
		}
		if s.PassScore > 0 {
			e.settings.PassScore = s.PassScore
		}
		if len(s.Quota) > 0 {
			e.settings.Quota = s.Quota
		}
		if s.TickInterval > 0 {
			e.settings.TickInterval = s.TickInterval
		}
	}
}

// WithClock allows deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand injects the random source used for question selection.
func WithRand(rnd *rand.Rand) Option {
	return func(e *Engine) { e.rnd = rnd }
}

// WithTicker replaces the wall-clock ticker driving the countdown.
func WithTicker(f TickerFunc) Option {
	return func(e *Engine) { e.newTicker = f }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine runs one exam at a time for a single client. All operations and the
// timer tick are serialized by one mutex.
type Engine struct {
	questions QuestionRepository
	store     SessionStore
	selector  *Selector
	settings  Settings
	now       func() time.Time
	rnd       *rand.Rand
	newTicker TickerFunc
	log       zerolog.Logger

	mu          sync.Mutex
	state       domain.EngineState
	mode        domain.ExamMode
	session     *domain.ExamSession
	active      []domain.ActiveQuestion
	current     int
	remaining   int
	result      *domain.ExamResult
	lastErr     string
	timer       *timerHandle
	timerGen    uint64
	subscribers map[chan Snapshot]struct{}
}

type timerHandle struct {
	ticker Ticker
	done   chan struct{}
}

// NewEngine builds an idle engine.
func NewEngine(questions QuestionRepository, store SessionStore, opts ...Option) *Engine {
	e := &Engine{
		questions:   questions,
		store:       store,
		settings:    DefaultSettings(),
		now:         time.Now,
		newTicker:   NewRealTicker,
		log:         zerolog.Nop(),
		state:       domain.StateIdle,
		mode:        domain.RandomMode(),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(e.now().UnixNano()))
	}
	e.remaining = e.settings.TimeLimitSecs
	e.selector = NewSelector(questions, e.settings.Quota)
	e.log = e.log.With().Str("component", "exam_engine").Logger()
	if err := ValidateQuota(e.settings.Quota); err != nil {
		e.log.Warn().Err(err).Msg("random exams will fail to start")
	}
	return e
}

// StartExam selects questions, persists a new session and starts the countdown.
// Any exam already held in memory is discarded first. On failure the engine
// stays idle.
func (e *Engine) StartExam(ctx context.Context, mode domain.ExamMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearLocked()
	e.mode = mode
	if err := e.startLocked(ctx, mode); err != nil {
		e.clearLocked()
		e.recordLocked(err)
		e.log.Error().Err(err).Str("mode", mode.String()).Msg("failed to start exam")
		e.broadcastLocked()
		return err
	}
	e.log.Info().
		Str("session_id", e.session.ID).
		Str("mode", mode.String()).
		Int("questions", len(e.active)).
		Msg("exam started")
	e.broadcastLocked()
	return nil
}

func (e *Engine) startLocked(ctx context.Context, mode domain.ExamMode) error {
	selected, err := e.selector.Select(ctx, mode, e.rnd)
	if err != nil {
		return err
	}

	sess, err := e.store.CreateSession(ctx, domain.ExamSession{
		StartedAt:      e.now(),
		TotalQuestions: len(selected),
		TimeLimitSecs:  e.settings.TimeLimitSecs,
		PassScore:      e.settings.PassScore,
		Status:         domain.SessionStatusInProgress,
	})
	if err != nil {
		return &domain.PersistenceError{Op: "create session", Err: err}
	}

	links := make([]domain.SessionQuestion, len(selected))
	ids := make([]int, len(selected))
	for i, q := range selected {
		links[i] = domain.SessionQuestion{SessionID: sess.ID, QuestionID: q.ID, Position: q.Position}
		ids[i] = q.ID
	}
	if err := e.store.LinkQuestions(ctx, sess.ID, links); err != nil {
		return &domain.PersistenceError{Op: "link questions", Err: err}
	}
	if err := e.store.InitAnswers(ctx, sess.ID, ids); err != nil {
		return &domain.PersistenceError{Op: "init answers", Err: err}
	}

	e.session = &sess
	e.active = selected
	e.current = 0
	e.remaining = e.settings.TimeLimitSecs
	e.state = domain.StateInProgress
	e.startTimerLocked()
	return nil
}

// GoTo moves to question i. Out-of-range indexes are ignored.
func (e *Engine) GoTo(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goToLocked("goto", i)
}

func (e *Engine) Next() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goToLocked("next", e.current+1)
}

func (e *Engine) Prev() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goToLocked("prev", e.current-1)
}

func (e *Engine) goToLocked(op string, i int) error {
	if e.state != domain.StateInProgress {
		return e.invalidLocked(op)
	}
	if i < 0 || i >= len(e.active) {
		return nil
	}
	e.current = i
	e.broadcastLocked()
	return nil
}

// SelectAnswer applies key to the current question and mirrors it to the store.
// Multi-select questions toggle key; single-select questions replace the
// selection. A store failure is returned but the in-memory selection stands.
func (e *Engine) SelectAnswer(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StateInProgress {
		return e.invalidLocked("select answer")
	}
	q := &e.active[e.current]
	if !q.HasOption(key) {
		err := fmt.Errorf("%w: %q for question %d", domain.ErrUnknownOption, key, q.ID)
		e.recordLocked(err)
		return err
	}

	if q.MultiSelect() {
		q.SelectedAnswer = domain.ToggleKey(q.SelectedAnswer, key)
	} else {
		k := key
		q.SelectedAnswer = &k
	}
	e.broadcastLocked()

	if err := e.store.UpdateAnswer(ctx, e.session.ID, q.ID, q.SelectedAnswer, e.now()); err != nil {
		perr := &domain.PersistenceError{Op: "update answer", Err: err}
		e.recordLocked(perr)
		e.log.Warn().Err(err).
			Str("session_id", e.session.ID).
			Int("question_id", q.ID).
			Msg("answer not persisted")
		e.broadcastLocked()
		return perr
	}
	return nil
}

// ToggleFlag flips the review marker of the current question. Flags are not persisted.
func (e *Engine) ToggleFlag() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != domain.StateInProgress {
		return e.invalidLocked("toggle flag")
	}
	q := &e.active[e.current]
	q.Flagged = !q.Flagged
	e.broadcastLocked()
	return nil
}

// SubmitExam scores the exam, persists the final answers and closes the session.
// Once a result exists further calls return it unchanged. If persistence fails
// the engine stays submitted without a result and the call may be retried.
func (e *Engine) SubmitExam(ctx context.Context, timedOut bool) (domain.ExamResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitLocked(ctx, timedOut)
}

func (e *Engine) submitLocked(ctx context.Context, timedOut bool) (domain.ExamResult, error) {
	switch {
	case e.state == domain.StateIdle:
		return domain.ExamResult{}, e.invalidLocked("submit")
	case e.state == domain.StateSubmitted && e.result != nil:
		return *e.result, nil
	}

	e.stopTimerLocked()
	e.state = domain.StateSubmitted

	sessionID := e.session.ID
	completedAt := e.now()
	answers, correct := finalAnswers(sessionID, e.active, completedAt)

	if err := e.store.BulkUpsertAnswers(ctx, sessionID, answers); err != nil {
		return e.submitFailedLocked(&domain.PersistenceError{Op: "upsert answers", Err: err})
	}
	// Timeout and manual submission share the completed status.
	updated, err := e.store.FinalizeSession(ctx, sessionID, domain.SessionStatusCompleted, correct, completedAt)
	if err != nil {
		return e.submitFailedLocked(&domain.PersistenceError{Op: "finalize session", Err: err})
	}
	if updated.ID == "" {
		updated = *e.session
		updated.Status = domain.SessionStatusCompleted
		updated.Score = &correct
		updated.CompletedAt = &completedAt
	}
	e.session = &updated

	result := BuildResult(updated, e.active, completedAt)
	e.result = &result
	e.lastErr = ""

	e.log.Info().
		Str("session_id", sessionID).
		Bool("timed_out", timedOut).
		Int("score", result.Score).
		Int("total", result.Total).
		Bool("passed", result.Passed).
		Msg("exam submitted")
	e.broadcastLocked()
	return result, nil
}

func (e *Engine) submitFailedLocked(err error) (domain.ExamResult, error) {
	e.recordLocked(err)
	e.log.Error().Err(err).Str("session_id", e.session.ID).Msg("exam submission failed")
	e.broadcastLocked()
	return domain.ExamResult{}, err
}

// Reset stops the timer and returns the engine to idle with default mode.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
	e.mode = domain.RandomMode()
	e.broadcastLocked()
}

func (e *Engine) clearLocked() {
	e.stopTimerLocked()
	e.state = domain.StateIdle
	e.session = nil
	e.active = nil
	e.current = 0
	e.result = nil
	e.lastErr = ""
	e.remaining = e.settings.TimeLimitSecs
}

func (e *Engine) invalidLocked(op string) error {
	err := &domain.InvalidStateError{Op: op, State: e.state}
	e.recordLocked(err)
	return err
}

func (e *Engine) recordLocked(err error) {
	e.lastErr = err.Error()
}

func (e *Engine) startTimerLocked() {
	e.stopTimerLocked()
	e.timerGen++
	handle := &timerHandle{
		ticker: e.newTicker(e.settings.TickInterval),
		done:   make(chan struct{}),
	}
	e.timer = handle
	go e.runTimer(e.timerGen, handle)
}

// stopTimerLocked never waits for the timer goroutine, which may itself be
// blocked on e.mu.
func (e *Engine) stopTimerLocked() {
	if e.timer == nil {
		return
	}
	e.timer.ticker.Stop()
	close(e.timer.done)
	e.timer = nil
}

func (e *Engine) runTimer(gen uint64, h *timerHandle) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.C():
			e.tick(gen)
		}
	}
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen || e.state != domain.StateInProgress {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.broadcastLocked()
		return
	}
	e.remaining = 0
	e.log.Info().Str("session_id", e.session.ID).Msg("time limit reached, submitting exam")
	_, _ = e.submitLocked(context.Background(), true)
}
