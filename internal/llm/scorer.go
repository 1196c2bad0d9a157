package llm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
)

const (
	// maxLibraryTitles caps the library summary to avoid token overflow.
	maxLibraryTitles = 50
	// maxPromptCandidates caps how many candidates are sent for scoring.
	maxPromptCandidates = 40
	// abstractPreviewLen is how many characters of each abstract are sent.
	abstractPreviewLen = 500
	// maxScoredPapers caps how many scored papers a call returns.
	maxScoredPapers = 20

	// neutralScore is assigned when real scoring is unavailable.
	neutralScore = 5.0

	explanationNoKey       = "Claude scoring unavailable (no API key)"
	explanationUnavailable = "Scoring unavailable"
)

// Scorer ranks candidate papers by relevance to the user's library.
type Scorer interface {
	// Score assigns a relevance score and explanation to each candidate.
	// It never fails: when scoring is unavailable the candidates come back
	// in input order with a neutral score.
	Score(ctx context.Context, library []*domain.Paper, candidates []domain.CandidatePaper) []domain.CandidatePaper
}

// completer is the slice of AnthropicClient the scorer needs.
type completer interface {
	Complete(ctx context.Context, prompt string) (*CompletionResult, error)
	Model() string
}

// ClaudeScorer scores papers with a single pipe-delimited completion.
// A nil client (no API key configured) degrades to neutral scores.
type ClaudeScorer struct {
	client  completer
	logger  zerolog.Logger
	metrics *observability.Metrics
}

var _ Scorer = (*ClaudeScorer)(nil)

// NewClaudeScorer creates a scorer backed by the Anthropic API. When
// cfg.APIKey is empty the scorer works without network access and marks
// every candidate with a neutral score.
func NewClaudeScorer(cfg AnthropicConfig, logger zerolog.Logger, metrics *observability.Metrics) *ClaudeScorer {
	s := &ClaudeScorer{
		logger:  logger.With().Str("component", "scorer").Logger(),
		metrics: metrics,
	}
	if cfg.APIKey != "" {
		s.client = NewAnthropicClient(cfg, metrics)
	}
	return s
}

// Score implements Scorer.
func (s *ClaudeScorer) Score(ctx context.Context, library []*domain.Paper, candidates []domain.CandidatePaper) []domain.CandidatePaper {
	if len(candidates) == 0 {
		return nil
	}
	if s.client == nil {
		s.metrics.RecordLLMFallback()
		return neutralScores(candidates, explanationNoKey)
	}

	prompt := buildScoringPrompt(library, candidates)
	result, err := s.client.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scoring failed, falling back to neutral scores")
		s.metrics.RecordLLMFallback()
		return neutralScores(candidates, explanationUnavailable)
	}

	scored := applyScores(candidates, parseScores(result.Text, len(candidates)))
	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("scored", len(scored)).
		Str("model", result.Model).
		Msg("scored candidates")
	return scored
}

// buildScoringPrompt renders the library summary and numbered candidate
// list into the scoring prompt.
func buildScoringPrompt(library []*domain.Paper, candidates []domain.CandidatePaper) string {
	titles := make([]string, 0, maxLibraryTitles)
	for i, p := range library {
		if i >= maxLibraryTitles {
			break
		}
		titles = append(titles, "- "+p.Title)
	}

	blocks := make([]string, 0, maxPromptCandidates)
	for i, c := range candidates {
		if i >= maxPromptCandidates {
			break
		}
		authors := c.Authors
		if authors == "" {
			authors = "Unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nAuthors: %s\nAbstract: %s",
			i, c.Title, authors, truncate(c.Abstract, abstractPreviewLen)))
	}

	return fmt.Sprintf(`You are helping a machine learning researcher find relevant papers.

The researcher's library contains these papers:
%s

Score these candidate papers for relevance (1-10, where 10 = extremely relevant):

%s

For each paper, respond with exactly one line in this format:
INDEX|SCORE|EXPLANATION

Where INDEX is the number in brackets, SCORE is 1-10, and EXPLANATION is a brief reason.
Only include papers scoring 5 or above. Example:
0|8|Directly addresses quantization methods for transformers
3|7|Related work on model compression

Start your response with the first scored paper (no preamble):`,
		strings.Join(titles, "\n"), strings.Join(blocks, "\n\n"))
}

// parsedScore is one line of the model's pipe-delimited response.
type parsedScore struct {
	Index       int
	Score       float64
	Explanation string
}

// parseScores extracts INDEX|SCORE|EXPLANATION lines from the response.
// Lines that are malformed, out of range, or repeat an index are skipped;
// the first occurrence of an index wins.
func parseScores(text string, numCandidates int) []parsedScore {
	var scores []parsedScore
	seen := make(map[int]bool)

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 3 {
			continue
		}
		idx, err := strconv.Atoi(strings.Trim(strings.TrimSpace(parts[0]), "[]"))
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		if idx < 0 || idx >= numCandidates || seen[idx] {
			continue
		}
		seen[idx] = true
		scores = append(scores, parsedScore{
			Index:       idx,
			Score:       score,
			Explanation: strings.TrimSpace(parts[2]),
		})
	}
	return scores
}

// applyScores copies the scored candidates, sorts them by score descending
// and caps the result.
func applyScores(candidates []domain.CandidatePaper, scores []parsedScore) []domain.CandidatePaper {
	result := make([]domain.CandidatePaper, 0, len(scores))
	for _, s := range scores {
		paper := candidates[s.Index]
		paper.Score = s.Score
		paper.Explanation = s.Explanation
		result = append(result, paper)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if len(result) > maxScoredPapers {
		result = result[:maxScoredPapers]
	}
	return result
}

// neutralScores marks candidates with a neutral score in input order.
func neutralScores(candidates []domain.CandidatePaper, explanation string) []domain.CandidatePaper {
	n := len(candidates)
	if n > maxScoredPapers {
		n = maxScoredPapers
	}
	result := make([]domain.CandidatePaper, n)
	for i := 0; i < n; i++ {
		result[i] = candidates[i]
		result[i].Score = neutralScore
		result[i].Explanation = explanation
	}
	return result
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
