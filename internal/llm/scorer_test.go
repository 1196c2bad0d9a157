package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
)

type fakeCompleter struct {
	text string
	err  error
	// prompt captures the last prompt for assertions.
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (*CompletionResult, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResult{Text: f.text, Model: "test-model"}, nil
}

func (f *fakeCompleter) Model() string { return "test-model" }

func makeCandidates(n int) []domain.CandidatePaper {
	candidates := make([]domain.CandidatePaper, n)
	for i := range candidates {
		candidates[i] = domain.CandidatePaper{
			Title:    fmt.Sprintf("Candidate %d", i),
			Authors:  "Ana Lee",
			Abstract: "About things.",
			ArxivID:  fmt.Sprintf("2401.%05d", i),
		}
	}
	return candidates
}

func TestParseScores(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []parsedScore
	}{
		{
			name: "well formed lines",
			text: "0|8|Strong overlap\n2|6|Adjacent topic",
			n:    5,
			want: []parsedScore{
				{Index: 0, Score: 8, Explanation: "Strong overlap"},
				{Index: 2, Score: 6, Explanation: "Adjacent topic"},
			},
		},
		{
			name: "bracketed index and padding",
			text: "  [1] | 7.5 |  Uses same benchmark  ",
			n:    3,
			want: []parsedScore{{Index: 1, Score: 7.5, Explanation: "Uses same benchmark"}},
		},
		{
			name: "pipes inside explanation survive",
			text: "0|9|Covers A|B tradeoffs",
			n:    1,
			want: []parsedScore{{Index: 0, Score: 9, Explanation: "Covers A|B tradeoffs"}},
		},
		{
			name: "first occurrence of an index wins",
			text: "0|8|first\n0|3|second",
			n:    2,
			want: []parsedScore{{Index: 0, Score: 8, Explanation: "first"}},
		},
		{
			name: "skips malformed and out of range lines",
			text: strings.Join([]string{
				"Here are the scores:", // no pipe
				"x|8|bad index",
				"1|high|bad score",
				"9|8|out of range",
				"-1|8|negative",
				"1|8",
				"1|8|kept",
			}, "\n"),
			n:    3,
			want: []parsedScore{{Index: 1, Score: 8, Explanation: "kept"}},
		},
		{
			name: "empty response",
			text: "",
			n:    3,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseScores(tt.text, tt.n))
		})
	}
}

func TestScore(t *testing.T) {
	library := []*domain.Paper{{Title: "Saved Paper"}}

	t.Run("sorts by score descending and caps output", func(t *testing.T) {
		candidates := makeCandidates(25)
		var lines []string
		for i := 0; i < 25; i++ {
			lines = append(lines, fmt.Sprintf("%d|%d|reason", i, i%10+1))
		}
		fake := &fakeCompleter{text: strings.Join(lines, "\n")}
		scorer := &ClaudeScorer{client: fake, logger: zerolog.Nop(), metrics: observability.NewMetrics("scorer_sort")}

		scored := scorer.Score(context.Background(), library, candidates)

		require.Len(t, scored, maxScoredPapers)
		for i := 1; i < len(scored); i++ {
			assert.GreaterOrEqual(t, scored[i-1].Score, scored[i].Score)
		}
		assert.Equal(t, 10.0, scored[0].Score)
	})

	t.Run("falls back on api error in input order", func(t *testing.T) {
		candidates := makeCandidates(25)
		fake := &fakeCompleter{err: errors.New("boom")}
		scorer := &ClaudeScorer{client: fake, logger: zerolog.Nop(), metrics: observability.NewMetrics("scorer_err")}

		scored := scorer.Score(context.Background(), library, candidates)

		require.Len(t, scored, maxScoredPapers)
		for i, p := range scored {
			assert.Equal(t, candidates[i].Title, p.Title)
			assert.Equal(t, neutralScore, p.Score)
			assert.Equal(t, explanationUnavailable, p.Explanation)
		}
	})

	t.Run("falls back without api key", func(t *testing.T) {
		scorer := NewClaudeScorer(AnthropicConfig{}, zerolog.Nop(), observability.NewMetrics("scorer_nokey"))
		scored := scorer.Score(context.Background(), library, makeCandidates(3))

		require.Len(t, scored, 3)
		assert.Equal(t, explanationNoKey, scored[0].Explanation)
		assert.Equal(t, neutralScore, scored[0].Score)
	})

	t.Run("returns nil for no candidates", func(t *testing.T) {
		scorer := NewClaudeScorer(AnthropicConfig{}, zerolog.Nop(), observability.NewMetrics("scorer_none"))
		assert.Nil(t, scorer.Score(context.Background(), library, nil))
	})
}

func TestBuildScoringPrompt(t *testing.T) {
	library := make([]*domain.Paper, 60)
	for i := range library {
		library[i] = &domain.Paper{Title: fmt.Sprintf("Library %d", i)}
	}
	candidates := makeCandidates(45)
	candidates[0].Abstract = strings.Repeat("a", 600)
	candidates[1].Authors = ""

	prompt := buildScoringPrompt(library, candidates)

	assert.Contains(t, prompt, "- Library 49")
	assert.NotContains(t, prompt, "Library 50")
	assert.Contains(t, prompt, "[39] Candidate 39")
	assert.NotContains(t, prompt, "[40]")
	assert.Contains(t, prompt, "Authors: Unknown")
	assert.Contains(t, prompt, "INDEX|SCORE|EXPLANATION")
	assert.NotContains(t, prompt, strings.Repeat("a", 501))
	assert.Contains(t, prompt, strings.Repeat("a", 500))
}
