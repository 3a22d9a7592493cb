package readiness

import (
	"strings"
	"unicode/utf8"

	"draftforge/pkg/domain"
)

const (
	// MinimumWords is the word count below which a summary is not ready for
	// structured generation.
	MinimumWords = 100
	// ConfidenceThreshold is the score below which improvement suggestions
	// are attached.
	ConfidenceThreshold = 0.6

	maxSuggestions = 5
)

var genreCues = []string{
	"fantasy", "mystery", "thriller", "romance", "memoir", "biography",
	"history", "historical", "science fiction", "sci-fi", "self-help",
	"non-fiction", "nonfiction", "novel", "poetry", "horror", "adventure",
	"guide", "textbook", "cookbook",
}

var audienceCues = []string{
	"children", "kids", "young adult", "teen", "adult", "beginner",
	"beginners", "professional", "professionals", "expert", "students",
	"readers", "audience", "practitioners",
}

var structureCues = []string{
	"chapter", "chapters", "part", "section", "sections", "act",
	"introduction", "conclusion", "arc", "timeline", "outline",
}

// Assess scores whether the text carries enough information for structured
// generation. Pure and synchronous: no I/O, no rate limiting, no caching.
// It never fails; empty input scores 0.0 with a suggestion to add content.
func Assess(text string) domain.ReadinessAssessment {
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(trimmed)
	assessment := domain.ReadinessAssessment{
		WordCount:      len(words),
		CharacterCount: utf8.RuneCountInString(trimmed),
	}
	if len(words) == 0 {
		assessment.Suggestions = []string{"Add a summary describing what your book is about."}
		return assessment
	}

	lower := strings.ToLower(trimmed)
	lengthScore := float64(len(words)) / float64(MinimumWords)
	if lengthScore > 1 {
		lengthScore = 1
	}
	densityScore := topicDensity(words)
	genreHit := containsAny(lower, genreCues)
	audienceHit := containsAny(lower, audienceCues)
	structureHit := containsAny(lower, structureCues)
	cueScore := 0.0
	if genreHit {
		cueScore += 0.4
	}
	if audienceHit {
		cueScore += 0.3
	}
	if structureHit {
		cueScore += 0.3
	}

	assessment.ConfidenceScore = round2(0.5*lengthScore + 0.2*densityScore + 0.3*cueScore)
	assessment.MeetsMinimum = len(words) >= MinimumWords

	// Below-minimum texts always get suggestions, even when cue-rich
	// wording pushes the confidence score past the threshold.
	if assessment.ConfidenceScore < ConfidenceThreshold || !assessment.MeetsMinimum {
		assessment.Suggestions = buildSuggestions(len(words), genreHit, audienceHit, structureHit, densityScore)
	}
	return assessment
}

// topicDensity approximates topic-signal density as the ratio of distinct
// content words to total words. Heavily repeated filler lowers the score.
func topicDensity(words []string) float64 {
	distinct := make(map[string]struct{}, len(words))
	content := 0
	for _, w := range words {
		w = strings.Trim(strings.ToLower(w), ".,!?;:\"'()")
		if len(w) < 4 {
			continue
		}
		content++
		distinct[w] = struct{}{}
	}
	if content == 0 {
		return 0
	}
	return float64(len(distinct)) / float64(content)
}

// buildSuggestions returns 1 to 5 concrete hints, most impactful first.
func buildSuggestions(wordCount int, genreHit, audienceHit, structureHit bool, density float64) []string {
	var out []string
	if wordCount < MinimumWords {
		out = append(out, "Expand your summary to at least 100 words so the structure of the book becomes clear.")
	}
	if !genreHit {
		out = append(out, "Mention the genre or category, for example mystery, memoir, or self-help.")
	}
	if !audienceHit {
		out = append(out, "Describe who the book is for, such as beginners, professionals, or young adults.")
	}
	if !structureHit {
		out = append(out, "Sketch the intended structure: how many chapters or parts, and what each covers.")
	}
	if density < 0.5 {
		out = append(out, "Replace repeated phrasing with specifics about plot, themes, or key topics.")
	}
	if len(out) == 0 {
		out = append(out, "Add more detail about the book's central idea and how it develops.")
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
