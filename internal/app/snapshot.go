package app

import "certexam-service/internal/domain"

// QuestionView is the current question as shown to the candidate. The answer
// key and explanation are withheld until the exam is submitted.
type QuestionView struct {
	ID             int               `json:"id"`
	Position       int               `json:"position"`
	Chapter        int               `json:"chapter"`
	ChapterTitle   string            `json:"chapter_title"`
	Topic          string            `json:"topic"`
	Bloom          string            `json:"bloom"`
	Text           string            `json:"question"`
	Options        map[string]string `json:"options"`
	MultiSelect    bool              `json:"multi_select"`
	SelectedAnswer *string           `json:"selected_answer"`
	Flagged        bool              `json:"flagged"`
}

// NavItem is one cell of the question navigator.
type NavItem struct {
	Position int  `json:"position"`
	Answered bool `json:"answered"`
	Flagged  bool `json:"flagged"`
}

// Snapshot is a consistent view of an engine at one instant.
type Snapshot struct {
	State         domain.EngineState `json:"state"`
	Mode          domain.ExamMode    `json:"mode"`
	SessionID     string             `json:"session_id,omitempty"`
	CurrentIndex  int                `json:"current_index"`
	Total         int                `json:"total"`
	Answered      int                `json:"answered"`
	Flagged       int                `json:"flagged"`
	ProgressPct   int                `json:"progress_pct"`
	RemainingSecs int                `json:"remaining_secs"`
	Question      *QuestionView      `json:"current,omitempty"`
	Navigator     []NavItem          `json:"navigator,omitempty"`
	Result        *domain.ExamResult `json:"result,omitempty"`
	Error         string             `json:"error,omitempty"`
}

func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Mode() domain.ExamMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Session returns the persisted session record, or false when idle.
func (e *Engine) Session() (domain.ExamSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.ExamSession{}, false
	}
	return *e.session, true
}

// Questions returns a copy of the active question list.
func (e *Engine) Questions() []domain.ActiveQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ActiveQuestion, len(e.active))
	copy(out, e.active)
	return out
}

func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Current returns the question under the cursor, or false when no exam is loaded.
func (e *Engine) Current() (QuestionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current >= len(e.active) {
		return QuestionView{}, false
	}
	return viewOf(e.active[e.current]), true
}

func (e *Engine) TotalQuestions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Engine) AnsweredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.answeredLocked()
}

func (e *Engine) FlaggedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flaggedLocked()
}

// ProgressPct is the answered share of all questions, rounded, 0 when idle.
func (e *Engine) ProgressPct() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return percent(e.answeredLocked(), len(e.active))
}

func (e *Engine) RemainingSecs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

// Result returns the scored result once submission has succeeded.
func (e *Engine) Result() (domain.ExamResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return domain.ExamResult{}, false
	}
	return *e.result, true
}

// LastError is the message of the most recent failure, empty after a clean start or submit.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change
// and timer tick. The caller must invoke cancel to avoid leaks.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	// The channel is empty, so this send cannot block while holding the lock.
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcastLocked() {
	if len(e.subscribers) == 0 {
		return
	}
	snap := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: replace its oldest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         e.state,
		Mode:          e.mode,
		CurrentIndex:  e.current,
		Total:         len(e.active),
		Answered:      e.answeredLocked(),
		Flagged:       e.flaggedLocked(),
		RemainingSecs: e.remaining,
		Error:         e.lastErr,
	}
	snap.ProgressPct = percent(snap.Answered, snap.Total)
	if e.session != nil {
		snap.SessionID = e.session.ID
	}
	if e.current < len(e.active) {
		v := viewOf(e.active[e.current])
		snap.Question = &v
	}
	if len(e.active) > 0 {
		snap.Navigator = make([]NavItem, len(e.active))
		for i, q := range e.active {
			snap.Navigator[i] = NavItem{Position: q.Position, Answered: q.Answered(), Flagged: q.Flagged}
		}
	}
	if e.result != nil {
		r := *e.result
		snap.Result = &r
	}
	return snap
}

func (e *Engine) answeredLocked() int {
	n := 0
	for _, q := range e.active {
		if q.Answered() {
			n++
		}
	}
	return n
}

func (e *Engine) flaggedLocked() int {
	n := 0
	for _, q := range e.active {
		if q.Flagged {
			n++
		}
	}
	return n
}

func viewOf(q domain.ActiveQuestion) QuestionView {
	opts := make(map[string]string, len(q.Options))
	for k, v := range q.Options {
		opts[k] = v
	}
	var sel *string
	if q.SelectedAnswer != nil {
		s := *q.SelectedAnswer
		sel = &s
	}
	return QuestionView{
		ID:             q.ID,
		Position:       q.Position,
		Chapter:        q.Chapter,
		ChapterTitle:   q.ChapterTitle,
		Topic:          q.Topic,
		Bloom:          q.Bloom,
		Text:           q.Text,
		Options:        opts,
		MultiSelect:    q.MultiSelect(),
		SelectedAnswer: sel,
		Flagged:        q.Flagged,
	}
}
