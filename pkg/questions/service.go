package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"draftforge/internal/util"
	"draftforge/pkg/domain"
)

// ErrInsufficientInput is returned when the summary is too short to ask
// meaningful questions about.
var ErrInsufficientInput = errors.New("summary too short to generate clarifying questions")

const (
	// MinimumWords is the smallest summary worth questioning.
	MinimumWords = 10

	minQuestions = 3
	maxQuestions = 5
)

// Completer runs a questions-operation completion through the generation
// pipeline, inheriting its rate limiting, caching, and resilience. The
// orchestrator implements this.
type Completer interface {
	CompleteQuestions(ctx context.Context, subjectID, userID string, payload domain.ContextPayload) (string, error)
}

// fallbacks by information-gap priority: genre, audience, structure, depth.
var fallbacks = []string{
	"What genre or category best describes your book?",
	"Who is the intended audience, and how familiar are they with the topic?",
	"How should the book be structured: how many chapters or parts do you imagine?",
	"How deep should the book go: a broad overview or detailed treatment of each topic?",
}

// Service produces clarifying questions when a readiness assessment falls
// short. Question phrasing is delegated upstream; this service validates
// input, parses the response, and guarantees the 3-5 question contract.
type Service struct {
	completer Completer
}

// NewService wires the question generator to the pipeline.
func NewService(completer Completer) (*Service, error) {
	if completer == nil {
		return nil, errors.New("questions completer is required")
	}
	return &Service{completer: completer}, nil
}

// Generate returns 3-5 targeted questions for the subject. Questions get
// fresh ids on every call, so a regeneration after a summary edit never
// collides with answers to the old set.
func (s *Service) Generate(ctx context.Context, subjectID, userID string, assessment domain.ReadinessAssessment, payload domain.ContextPayload) ([]domain.ClarifyingQuestion, error) {
	if len(strings.Fields(payload.Summary)) < MinimumWords {
		return nil, ErrInsufficientInput
	}

	text, err := s.completer.CompleteQuestions(ctx, subjectID, userID, payload)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	parsed := parseQuestions(text)
	if len(parsed) < 4 {
		parsed = fillFromFallbacks(parsed, assessment)
	}
	if len(parsed) > maxQuestions {
		parsed = parsed[:maxQuestions]
	}

	out := make([]domain.ClarifyingQuestion, 0, len(parsed))
	for i, q := range parsed {
		out = append(out, domain.ClarifyingQuestion{
			ID:    util.NewID(),
			Text:  q,
			Order: i + 1,
		})
	}
	return out, nil
}

// parseQuestions extracts question lines from the generated text, stripping
// list markers and numbering.
func parseQuestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) \t")
		if line == "" || !strings.HasSuffix(line, "?") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// fillFromFallbacks tops up a short question set from the priority ladder
// (genre, audience, structure, depth), skipping near-duplicates.
func fillFromFallbacks(parsed []string, assessment domain.ReadinessAssessment) []string {
	for _, fb := range fallbacks {
		if len(parsed) >= 4 {
			break
		}
		if containsSimilar(parsed, fb) {
			continue
		}
		parsed = append(parsed, fb)
	}
	if len(parsed) < minQuestions {
		// Should not happen given four fallbacks, but keep the contract.
		parsed = append(parsed, fallbacks[:minQuestions-len(parsed)]...)
	}
	return parsed
}

func containsSimilar(questions []string, candidate string) bool {
	keyword := firstKeyword(candidate)
	for _, q := range questions {
		if strings.Contains(strings.ToLower(q), keyword) {
			return true
		}
	}
	return false
}

func firstKeyword(question string) string {
	switch {
	case strings.Contains(question, "genre"):
		return "genre"
	case strings.Contains(question, "audience"):
		return "audience"
	case strings.Contains(question, "structured"):
		return "chapter"
	default:
		return "deep"
	}
}
