package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"draftforge/internal/ratelimit"
	"draftforge/pkg/ai"
	"draftforge/pkg/cache"
	"draftforge/pkg/domain"
	"draftforge/pkg/storage"
	"draftforge/pkg/store"
)

type fakeLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (l *fakeLimiter) Check(ctx context.Context, userID string, op domain.Operation) (ratelimit.Decision, error) {
	l.calls++
	return l.decision, l.err
}

func allowAll() *fakeLimiter {
	return &fakeLimiter{decision: ratelimit.Decision{Allowed: true}}
}

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (c *fakeCompleter) Complete(ctx context.Context, prompt string, params ai.CompletionParams) (string, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "generated text", nil
}

type fakeSubjects struct {
	contexts map[string]domain.SubjectContext
}

func (f *fakeSubjects) GetSubjectContext(ctx context.Context, subjectID string) (domain.SubjectContext, error) {
	sctx, ok := f.contexts[subjectID]
	if !ok {
		return domain.SubjectContext{}, errors.New("no such subject")
	}
	return sctx, nil
}

const richSummary = "This book explores the craft of sourdough baking for complete beginners, " +
	"covering starter cultivation, hydration ratios, proofing schedules, and oven technique. " +
	"Each chapter walks the reader through one core skill with step by step instructions, " +
	"illustrated troubleshooting sections, and recipes that build on previous chapters. " +
	"The intended audience is home bakers with no prior bread experience who want reliable " +
	"results within their first month. The structure follows the lifecycle of a loaf, from " +
	"flour selection through fermentation to scoring and the final bake. Sidebar essays cover " +
	"the history and microbiology of natural leavening for curious readers who want depth " +
	"beyond the practical core, plus a glossary, sourcing appendix, and seasonal variations " +
	"for ambient temperature swings across the year."

func newTestApp(t *testing.T, limiter Limiter, completer Completer) (*App, *store.MemoryStore, *fakeSubjects) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cacheStore, err := cache.NewRedisStore(client, "test:cache")
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	st := store.NewMemoryStore()
	subjects := &fakeSubjects{contexts: map[string]domain.SubjectContext{
		"book-1": {SummaryText: richSummary, Genre: "cookbook", TargetAudience: "beginner home bakers"},
		"book-2": {SummaryText: "A short book about dogs and the people who walk them, nothing more specific yet."},
	}}

	a, err := New(Config{
		Redis:    client,
		Store:    st,
		Archive:  storage.NewMemoryStore(),
		Cache:    cacheStore,
		Limiter:  limiter,
		Client:   completer,
		Subjects: subjects,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, st, subjects
}

func TestRequestGenerationEnqueuesAndMovesPhase(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	ticket, err := a.RequestGeneration(ctx, "book-1", "user-1", domain.OpTOC, GenerationParams{})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	if ticket.FromCache {
		t.Fatalf("expected a queued job, got cache hit")
	}
	if ticket.JobID == "" {
		t.Fatalf("expected a job id")
	}
	subject, ok, _ := st.GetSubject("book-1")
	if !ok {
		t.Fatalf("subject not persisted")
	}
	if subject.Phase != domain.PhaseGenerating {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseGenerating)
	}
	if subject.ActiveJobID != ticket.JobID {
		t.Fatalf("active job = %q, want %q", subject.ActiveJobID, ticket.JobID)
	}
}

func TestRequestGenerationNotReadySubject(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	_, err := a.RequestGeneration(ctx, "book-2", "user-1", domain.OpDraft, GenerationParams{})
	if !errors.Is(err, ErrSubjectNotReady) {
		t.Fatalf("err = %v, want ErrSubjectNotReady", err)
	}
	subject, ok, _ := st.GetSubject("book-2")
	if !ok || subject.Phase != domain.PhaseNotReady {
		t.Fatalf("expected persisted NOT_READY subject, got %+v ok=%v", subject, ok)
	}
}

func TestRequestGenerationRateLimited(t *testing.T) {
	limiter := &fakeLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfterSeconds: 42}}
	a, _, _ := newTestApp(t, limiter, &fakeCompleter{})

	_, err := a.RequestGeneration(context.Background(), "book-1", "user-1", domain.OpTOC, GenerationParams{})
	retryAfter, ok := IsRateLimited(err)
	if !ok {
		t.Fatalf("err = %v, want rate limit error", err)
	}
	if retryAfter != 42 {
		t.Fatalf("retryAfter = %d, want 42", retryAfter)
	}
}

func TestRequestGenerationInvalidOperation(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	if _, err := a.RequestGeneration(context.Background(), "book-1", "user-1", domain.OpReadiness, GenerationParams{}); err == nil {
		t.Fatalf("expected error for non-generation operation")
	}
}

func TestRequestGenerationCacheHit(t *testing.T) {
	a, st, subjects := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	sctx := subjects.contexts["book-1"]
	payload := payloadFromContext(sctx, nil)
	hash := payload.ContextHash(domain.OpTOC)
	if err := a.cache.Put(ctx, domain.OpTOC, hash, "book-1", "1. Starters\n2. Doughs"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	ticket, err := a.RequestGeneration(ctx, "book-1", "user-1", domain.OpTOC, GenerationParams{})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	if !ticket.FromCache {
		t.Fatalf("expected cache hit")
	}
	if ticket.Result != "1. Starters\n2. Doughs" {
		t.Fatalf("result = %q", ticket.Result)
	}
	subject, _, _ := st.GetSubject("book-1")
	if subject.Phase != domain.PhaseGenerated {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseGenerated)
	}
	if subject.CurrentArtifact != ticket.Result {
		t.Fatalf("artifact not installed")
	}
}

func TestRequestGenerationBypassCacheSkipsLookup(t *testing.T) {
	a, _, subjects := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	sctx := subjects.contexts["book-1"]
	payload := payloadFromContext(sctx, nil)
	payload.BypassCache = true
	hash := payload.ContextHash(domain.OpTOC)
	if err := a.cache.Put(ctx, domain.OpTOC, hash, "book-1", "cached toc"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	ticket, err := a.RequestGeneration(ctx, "book-1", "user-1", domain.OpTOC, GenerationParams{BypassCache: true})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	if ticket.FromCache {
		t.Fatalf("bypass must not serve from cache")
	}
}

func TestRequestQuestionsMovesToPending(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"What genre is the book?\nWho is the audience?\nHow is it structured?\nHow deep should it go?",
	}}
	a, st, _ := newTestApp(t, allowAll(), completer)

	qs, err := a.RequestQuestions(context.Background(), "book-2", "user-1")
	if err != nil {
		t.Fatalf("RequestQuestions: %v", err)
	}
	if len(qs) < 3 || len(qs) > 5 {
		t.Fatalf("got %d questions, want 3-5", len(qs))
	}
	subject, ok, _ := st.GetSubject("book-2")
	if !ok {
		t.Fatalf("subject not persisted")
	}
	if subject.Phase != domain.PhaseQuestionsPending {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseQuestionsPending)
	}
	if len(subject.Questions) != len(qs) {
		t.Fatalf("stored %d questions, returned %d", len(subject.Questions), len(qs))
	}
}

func TestSubmitAnswersReadiesSubject(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"What genre is the book?\nWho is the audience?\nHow is it structured?\nHow deep should it go?",
	}}
	a, st, _ := newTestApp(t, allowAll(), completer)
	ctx := context.Background()

	qs, err := a.RequestQuestions(ctx, "book-2", "user-1")
	if err != nil {
		t.Fatalf("RequestQuestions: %v", err)
	}

	// Partial answers keep the subject pending.
	first := []domain.QuestionResponse{{QuestionID: qs[0].ID, AnswerText: "Cookbook"}}
	if err := a.SubmitAnswers(ctx, "book-2", first); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	subject, _, _ := st.GetSubject("book-2")
	if subject.Phase != domain.PhaseQuestionsPending {
		t.Fatalf("phase after partial answers = %s", subject.Phase)
	}

	rest := make([]domain.QuestionResponse, 0, len(qs)-1)
	for _, q := range qs[1:] {
		rest = append(rest, domain.QuestionResponse{QuestionID: q.ID, AnswerText: "Answered"})
	}
	if err := a.SubmitAnswers(ctx, "book-2", rest); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	subject, _, _ = st.GetSubject("book-2")
	if subject.Phase != domain.PhaseReady {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseReady)
	}
	if len(subject.Answers) != len(qs) {
		t.Fatalf("stored %d answers, want %d", len(subject.Answers), len(qs))
	}
}

func TestSubmitAnswersUnknownSubject(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	err := a.SubmitAnswers(context.Background(), "ghost", []domain.QuestionResponse{{QuestionID: "q", AnswerText: "a"}})
	if !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("err = %v, want ErrUnknownSubject", err)
	}
}

func TestPublishSuccessInstallsArtifactAndArchivesPrior(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	if err := st.SaveSubject(domain.Subject{
		ID:              "book-1",
		Phase:           domain.PhaseGenerating,
		ActiveJobID:     "job-1",
		CurrentArtifact: "old toc",
		CurrentOp:       domain.OpTOC,
	}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	job := domain.GenerationJob{
		ID:        "job-1",
		Operation: domain.OpTOC,
		SubjectID: "book-1",
		State:     domain.JobSucceeded,
		Result:    "new toc",
	}
	if err := a.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	subject, _, _ := st.GetSubject("book-1")
	if subject.Phase != domain.PhaseGenerated {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseGenerated)
	}
	if subject.CurrentArtifact != "new toc" {
		t.Fatalf("artifact = %q", subject.CurrentArtifact)
	}
	if subject.ActiveJobID != "" {
		t.Fatalf("active job not cleared")
	}
	versions, err := st.ListVersions("book-1")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 || versions[0].Body != "old toc" {
		t.Fatalf("prior artifact not archived: %+v", versions)
	}
}

func TestPublishSuccessIgnoresSupersededJob(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})

	if err := st.SaveSubject(domain.Subject{
		ID:          "book-1",
		Phase:       domain.PhaseGenerating,
		ActiveJobID: "job-2",
	}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	job := domain.GenerationJob{ID: "job-1", Operation: domain.OpTOC, SubjectID: "book-1", State: domain.JobSucceeded, Result: "stale"}
	if err := a.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	subject, _, _ := st.GetSubject("book-1")
	if subject.Phase != domain.PhaseGenerating || subject.CurrentArtifact != "" {
		t.Fatalf("superseded job must not move the subject: %+v", subject)
	}
}

func TestPublishFailureReturnsSubjectToReady(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})

	if err := st.SaveSubject(domain.Subject{
		ID:          "book-1",
		Phase:       domain.PhaseGenerating,
		ActiveJobID: "job-1",
	}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	job := domain.GenerationJob{ID: "job-1", Operation: domain.OpDraft, SubjectID: "book-1", State: domain.JobFailed, ErrorCode: "throttled"}
	if err := a.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	subject, _, _ := st.GetSubject("book-1")
	if subject.Phase != domain.PhaseReady {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseReady)
	}
	if subject.ActiveJobID != "" {
		t.Fatalf("active job not cleared")
	}
}

func TestPublishFiresCallbackOnce(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})

	if err := st.SaveSubject(domain.Subject{ID: "book-1", Phase: domain.PhaseGenerating, ActiveJobID: "job-1"}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	var got []domain.GenerationJob
	a.OnJobDone("job-1", func(job domain.GenerationJob) { got = append(got, job) })

	job := domain.GenerationJob{ID: "job-1", SubjectID: "book-1", Operation: domain.OpTOC, State: domain.JobSucceeded, Result: "toc"}
	if err := a.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := a.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish again: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(got))
	}
	if got[0].Result != "toc" {
		t.Fatalf("callback job result = %q", got[0].Result)
	}
}

func TestHandleJobCompletesAndCaches(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"chapter draft body"}}
	a, _, _ := newTestApp(t, allowAll(), completer)
	ctx := context.Background()

	payload := domain.ContextPayload{Summary: richSummary, Genre: "cookbook", ChapterTitle: "Starters"}
	job := domain.GenerationJob{
		ID:          "job-1",
		Operation:   domain.OpChapterQuestions,
		SubjectID:   "book-1",
		ContextHash: payload.ContextHash(domain.OpChapterQuestions),
		Payload:     payload,
	}
	var reported []int
	result, err := a.HandleJob(ctx, job, func(p int) { reported = append(reported, p) })
	if err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if result != "chapter draft body" {
		t.Fatalf("result = %q", result)
	}
	if len(reported) != 2 || reported[0] != 30 || reported[1] != 80 {
		t.Fatalf("progress reports = %v", reported)
	}
	if !strings.Contains(completer.prompts[0], "Starters") {
		t.Fatalf("prompt missing chapter title: %q", completer.prompts[0])
	}

	entry, hit, err := a.cache.Get(ctx, domain.OpChapterQuestions, job.ContextHash)
	if err != nil || !hit {
		t.Fatalf("expected cached result, hit=%v err=%v", hit, err)
	}
	if entry.Value != result {
		t.Fatalf("cached %q", entry.Value)
	}
}

func TestHandleJobUpstreamErrorPropagates(t *testing.T) {
	completer := &fakeCompleter{errs: []error{ai.NewTransientError("throttled", "429")}}
	a, _, _ := newTestApp(t, allowAll(), completer)

	job := domain.GenerationJob{ID: "job-1", Operation: domain.OpDraft, SubjectID: "book-1"}
	_, err := a.HandleJob(context.Background(), job, func(int) {})
	if !ai.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestRecordEditArchivesAndIncrements(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	if err := st.SaveSubject(domain.Subject{
		ID:              "book-1",
		Phase:           domain.PhaseGenerated,
		CurrentArtifact: "draft v1",
		CurrentOp:       domain.OpDraft,
	}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	subject, err := a.RecordEdit(ctx, "book-1", "draft v1, edited")
	if err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}
	if subject.Phase != domain.PhaseEdited {
		t.Fatalf("phase = %s, want %s", subject.Phase, domain.PhaseEdited)
	}
	if subject.Version != 1 {
		t.Fatalf("version = %d, want 1", subject.Version)
	}
	if subject.CurrentArtifact != "draft v1, edited" {
		t.Fatalf("artifact = %q", subject.CurrentArtifact)
	}

	// Edits compound: EDITED -> EDITED is a legal move.
	subject, err = a.RecordEdit(ctx, "book-1", "draft v1, edited twice")
	if err != nil {
		t.Fatalf("second RecordEdit: %v", err)
	}
	if subject.Version != 2 {
		t.Fatalf("version = %d, want 2", subject.Version)
	}

	versions, err := a.Versions(ctx, "book-1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].Body != "draft v1" || versions[1].Body != "draft v1, edited" {
		t.Fatalf("version bodies = %q, %q", versions[0].Body, versions[1].Body)
	}
}

func TestRecordEditLargeBodyGoesToArchive(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	big := strings.Repeat("Long draft paragraph. ", 300)
	if err := st.SaveSubject(domain.Subject{
		ID:              "book-1",
		Phase:           domain.PhaseGenerated,
		CurrentArtifact: big,
		CurrentOp:       domain.OpDraft,
	}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	if _, err := a.RecordEdit(ctx, "book-1", "trimmed"); err != nil {
		t.Fatalf("RecordEdit: %v", err)
	}
	versions, _ := st.ListVersions("book-1")
	if len(versions) != 1 {
		t.Fatalf("got %d versions", len(versions))
	}
	if versions[0].Body != "" || versions[0].ArchiveKey == "" {
		t.Fatalf("large body should archive out of line: %+v", versions[0])
	}
	body, err := a.archive.Get(ctx, versions[0].ArchiveKey)
	if err != nil {
		t.Fatalf("archive get: %v", err)
	}
	if body != big {
		t.Fatalf("archived body mismatch")
	}
}

func TestRecordEditRejectsWrongPhase(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	if err := st.SaveSubject(domain.Subject{ID: "book-1", Phase: domain.PhaseNotReady}); err != nil {
		t.Fatalf("seed subject: %v", err)
	}
	if _, err := a.RecordEdit(context.Background(), "book-1", "body"); err == nil {
		t.Fatalf("expected phase error")
	}
}

func TestJobStatusAvailableImmediatelyAfterSubmit(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	ticket, err := a.RequestGeneration(ctx, "book-1", "user-1", domain.OpTOC, GenerationParams{})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	// The batcher has not drained; the handle must still poll as queued.
	job, err := a.JobStatus(ctx, ticket.JobID)
	if err != nil {
		t.Fatalf("JobStatus right after submit: %v", err)
	}
	if job.State != domain.JobQueued {
		t.Fatalf("state = %s, want %s", job.State, domain.JobQueued)
	}
	if job.SubjectID != "book-1" || job.Operation != domain.OpTOC {
		t.Fatalf("job = %+v", job)
	}
}

func TestCancelQueuedJobBeforeDispatch(t *testing.T) {
	a, st, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	ticket, err := a.RequestGeneration(ctx, "book-1", "user-1", domain.OpTOC, GenerationParams{})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	// The batcher has not drained, so the cancel lands pre-dispatch.
	if err := a.CancelJob(ctx, ticket.JobID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	job, err := a.JobStatus(ctx, ticket.JobID)
	if err != nil {
		t.Fatalf("JobStatus after cancel: %v", err)
	}
	if job.State != domain.JobFailed || job.ErrorCode != "canceled" {
		t.Fatalf("cancelled handle must go terminal, got %+v", job)
	}
	subject, _, _ := st.GetSubject("book-1")
	if subject.Phase != domain.PhaseReady {
		t.Fatalf("phase = %s, want %s after pre-dispatch cancel", subject.Phase, domain.PhaseReady)
	}
	if subject.ActiveJobID != "" {
		t.Fatalf("active job not cleared after cancel")
	}
}

func TestJobStatusUnknownJob(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	_, err := a.JobStatus(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestInvalidateCacheDropsSubjectEntries(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	ctx := context.Background()

	if err := a.cache.Put(ctx, domain.OpTOC, "aaaa", "book-1", "toc"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := a.InvalidateCache(ctx, "book-1"); err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}
	if _, hit, _ := a.cache.Get(ctx, domain.OpTOC, "aaaa"); hit {
		t.Fatalf("entry survived invalidation")
	}
}

func TestLimiterOutageFailsClosed(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	a, _, _ := newTestApp(t, limiter, &fakeCompleter{})
	if _, err := a.RequestGeneration(context.Background(), "book-1", "user-1", domain.OpTOC, GenerationParams{}); err == nil {
		t.Fatalf("expected error when limiter is unavailable")
	}
}

func TestAssessReadinessDelegates(t *testing.T) {
	a, _, _ := newTestApp(t, allowAll(), &fakeCompleter{})
	assessment := a.AssessReadiness(richSummary)
	if !assessment.MeetsMinimum {
		t.Fatalf("rich summary should meet the minimum: %+v", assessment)
	}
	short := a.AssessReadiness("Book about dogs")
	if short.MeetsMinimum {
		t.Fatalf("short summary must not meet the minimum")
	}
	if assessment.WordCount == 0 {
		t.Fatalf("word count not populated: %+v", assessment)
	}
}
