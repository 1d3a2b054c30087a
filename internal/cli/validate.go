package cli

import (
	"fmt"
	"sort"

	"certexam-service/internal/config"
	"certexam-service/internal/domain"
	"certexam-service/internal/infra/memory"
	"github.com/spf13/cobra"
)

// NewValidateCmd checks a question bank file without touching any store.
func NewValidateCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a question bank file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				file = questionsFile(cfg)
			}
			questions, err := memory.ReadQuestionFile(file)
			if err != nil {
				return err
			}
			for _, line := range summarize(questions) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank file (defaults to questions.file from config)")
	return cmd
}

// summarize reports pool sizes per chapter and official set.
func summarize(questions []domain.Question) []string {
	chapters := make(map[int]int)
	sets := make(map[string]int)
	for _, q := range questions {
		if q.ExamSet != nil {
			sets[*q.ExamSet]++
			continue
		}
		chapters[q.Chapter]++
	}

	lines := []string{fmt.Sprintf("%d questions OK", len(questions))}
	keys := make([]int, 0, len(chapters))
	for ch := range chapters {
		keys = append(keys, ch)
	}
	sort.Ints(keys)
	for _, ch := range keys {
		lines = append(lines, fmt.Sprintf("chapter %d: %d random-pool questions", ch, chapters[ch]))
	}
	for _, set := range domain.OfficialSets {
		if n := sets[set]; n > 0 {
			lines = append(lines, fmt.Sprintf("official set %s: %d questions", set, n))
		}
	}
	return lines
}
