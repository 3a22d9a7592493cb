package store

import (
	"testing"

	"draftforge/pkg/domain"
)

func TestMemoryStoreSubjectRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	if _, ok, _ := s.GetSubject("book-1"); ok {
		t.Fatalf("unknown subject should not be found")
	}
	subject := domain.Subject{
		ID:    "book-1",
		Phase: domain.PhaseQuestionsPending,
		Questions: []domain.ClarifyingQuestion{
			{ID: "q1", Text: "What genre is the book?", Order: 1},
		},
	}
	if err := s.SaveSubject(subject); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.GetSubject("book-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Phase != domain.PhaseQuestionsPending || len(got.Questions) != 1 {
		t.Fatalf("subject = %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("save should stamp updatedAt")
	}
}

func TestMemoryStoreVersionHistory(t *testing.T) {
	s := NewMemoryStore()
	for v := 1; v <= 3; v++ {
		err := s.AppendVersion(domain.ArtifactVersion{
			SubjectID: "book-1",
			Version:   v,
			Operation: domain.OpDraft,
			Body:      "draft body",
		})
		if err != nil {
			t.Fatalf("append v%d: %v", v, err)
		}
	}
	if err := s.AppendVersion(domain.ArtifactVersion{SubjectID: "book-1", Version: 2}); err == nil {
		t.Fatalf("duplicate version must be rejected")
	}
	versions, err := s.ListVersions("book-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %d, want 3", len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Fatalf("versions out of order: %+v", versions)
		}
	}
}
