package app

import (
	"math"
	"sort"
	"time"

	"certexam-service/internal/domain"
)

// IsCorrect compares the selection with the answer key as sets of option keys.
// There is no partial credit.
func IsCorrect(q domain.ActiveQuestion) bool {
	if !q.Answered() {
		return false
	}
	return domain.CanonicalAnswer(*q.SelectedAnswer) == domain.CanonicalAnswer(q.Answer)
}

// ChapterBreakdown groups questions by chapter, sorted by chapter number.
func ChapterBreakdown(questions []domain.ActiveQuestion) []domain.ChapterResult {
	byChapter := make(map[int]*domain.ChapterResult)
	for _, q := range questions {
		cr, ok := byChapter[q.Chapter]
		if !ok {
			cr = &domain.ChapterResult{Chapter: q.Chapter, ChapterTitle: q.ChapterTitle}
			byChapter[q.Chapter] = cr
		}
		cr.Total++
		if IsCorrect(q) {
			cr.Correct++
		}
	}

	results := make([]domain.ChapterResult, 0, len(byChapter))
	for _, cr := range byChapter {
		cr.Pct = percent(cr.Correct, cr.Total)
		results = append(results, *cr)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Chapter < results[j].Chapter })
	return results
}

// BuildResult assembles the result of a submitted exam.
func BuildResult(session domain.ExamSession, questions []domain.ActiveQuestion, completedAt time.Time) domain.ExamResult {
	snapshot := make([]domain.ActiveQuestion, len(questions))
	copy(snapshot, questions)

	score := 0
	for _, q := range snapshot {
		if IsCorrect(q) {
			score++
		}
	}

	taken := int(math.Floor(completedAt.Sub(session.StartedAt).Seconds()))
	if taken < 0 {
		taken = 0
	}

	return domain.ExamResult{
		Session:        session,
		Score:          score,
		Total:          len(snapshot),
		Passed:         score >= session.PassScore,
		Pct:            percent(score, len(snapshot)),
		TimeTakenSecs:  taken,
		ChapterResults: ChapterBreakdown(snapshot),
		Questions:      snapshot,
	}
}

// finalAnswers scores every question into the rows written at submission.
func finalAnswers(sessionID string, questions []domain.ActiveQuestion, at time.Time) ([]domain.ExamAnswer, int) {
	rows := make([]domain.ExamAnswer, len(questions))
	correct := 0
	for i, q := range questions {
		ok := IsCorrect(q)
		if ok {
			correct++
		}
		row := domain.ExamAnswer{
			SessionID:      sessionID,
			QuestionID:     q.ID,
			SelectedAnswer: q.SelectedAnswer,
			IsCorrect:      &ok,
		}
		if q.Answered() {
			answeredAt := at
			row.AnsweredAt = &answeredAt
		}
		rows[i] = row
	}
	return rows, correct
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
