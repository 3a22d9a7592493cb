package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	hashSummaryPrefix = 512
	hashWordBucket    = 50
)

// ContextHash returns a stable digest over the payload fields that determine
// output equivalence for the given operation. Two requests with equal hashes
// are interchangeable for caching and batch grouping; the hash deliberately
// ignores incidental differences (trailing whitespace, word-count jitter
// below the bucket size). Hash-only equivalence is accepted; there is no
// secondary equality check.
func (p ContextPayload) ContextHash(op Operation) string {
	summary := normalizeText(p.Summary)
	if len(summary) > hashSummaryPrefix {
		summary = summary[:hashSummaryPrefix]
	}
	words := len(strings.Fields(p.Summary))
	bucket := (words + hashWordBucket/2) / hashWordBucket * hashWordBucket

	var b strings.Builder
	b.WriteString(string(op))
	b.WriteByte('\n')
	b.WriteString(summary)
	b.WriteByte('\n')
	b.WriteString(normalizeText(p.Genre))
	b.WriteByte('\n')
	b.WriteString(normalizeText(p.TargetAudience))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%d\n%d\n", p.WordTarget, bucket)
	b.WriteString(normalizeText(p.ChapterTitle))
	b.WriteByte('\n')
	for _, k := range sortedKeys(p.Answers) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(normalizeText(p.Answers[k]))
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
