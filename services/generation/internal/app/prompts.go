package app

import (
	"fmt"
	"sort"
	"strings"

	"draftforge/pkg/domain"
)

func systemPrompt(op domain.Operation) string {
	switch op {
	case domain.OpTOC:
		return "You are a professional book editor. Produce a complete table of contents " +
			"as a numbered list of chapter titles, one per line, with no commentary."
	case domain.OpChapterQuestions:
		return "You are a developmental editor. Ask focused questions that surface the " +
			"material a chapter needs, one question per line."
	case domain.OpDraft:
		return "You are a professional ghostwriter. Write polished long-form prose in " +
			"the requested genre and register. Output the draft only."
	case domain.OpQuestions:
		return "You are a book coach. Ask short clarifying questions about the book " +
			"concept, one per line, each ending with a question mark."
	default:
		return "You are a professional book editor."
	}
}

// buildPrompt renders the user prompt for an operation from the subject
// context. Answers are sorted so identical payloads render identically.
func buildPrompt(op domain.Operation, p domain.ContextPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Book summary:\n%s\n", strings.TrimSpace(p.Summary))
	if p.Genre != "" {
		fmt.Fprintf(&b, "\nGenre: %s\n", p.Genre)
	}
	if p.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", p.TargetAudience)
	}
	if len(p.Answers) > 0 {
		b.WriteString("\nAuthor clarifications:\n")
		keys := make([]string, 0, len(p.Answers))
		for k := range p.Answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s\n", p.Answers[k])
		}
	}

	switch op {
	case domain.OpTOC:
		b.WriteString("\nGenerate the table of contents for this book.\n")
	case domain.OpChapterQuestions:
		title := p.ChapterTitle
		if title == "" {
			title = "the next chapter"
		}
		fmt.Fprintf(&b, "\nGenerate 3 to 5 questions whose answers would let a writer draft %q.\n", title)
	case domain.OpDraft:
		if p.ChapterTitle != "" {
			fmt.Fprintf(&b, "\nWrite the chapter %q.\n", p.ChapterTitle)
		} else {
			b.WriteString("\nWrite the opening draft for this book.\n")
		}
		if p.WordTarget > 0 {
			fmt.Fprintf(&b, "Aim for roughly %d words.\n", p.WordTarget)
		}
	case domain.OpQuestions:
		b.WriteString("\nGenerate 3 to 5 clarifying questions about this book concept.\n")
	}
	return b.String()
}
