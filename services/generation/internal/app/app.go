package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"draftforge/internal/ratelimit"
	"draftforge/internal/retry"
	"draftforge/pkg/ai"
	"draftforge/pkg/batch"
	"draftforge/pkg/cache"
	"draftforge/pkg/domain"
	"draftforge/pkg/jobs"
	"draftforge/pkg/questions"
	"draftforge/pkg/readiness"
	"draftforge/pkg/storage"
	"draftforge/pkg/store"
)

// Bodies above this size move to the object archive instead of living
// inline in a version row.
const inlineBodyLimit = 4096

// Limiter gates operations per user. FixedWindowLimiter implements this.
type Limiter interface {
	Check(ctx context.Context, userID string, op domain.Operation) (ratelimit.Decision, error)
}

// Completer is the resilient upstream client surface the app needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, params ai.CompletionParams) (string, error)
}

// ContextProvider is the book/chapter CRUD collaborator. Read-only: this
// subsystem never writes back; generated artifacts go to the caller.
type ContextProvider interface {
	GetSubjectContext(ctx context.Context, subjectID string) (domain.SubjectContext, error)
}

// Config holds runtime configuration for the generation service core.
type Config struct {
	Redis    *redis.Client
	Stream   string
	Store    store.Store
	Archive  storage.ObjectStore
	Cache    cache.Store
	Limiter  Limiter
	Client   Completer
	Subjects ContextProvider
	// Events optionally receives terminal job notifications after the app
	// has applied them to subject state.
	Events       jobs.Publisher
	Workers      int
	BatchSize    int
	BatchTimeout time.Duration
	RetryPolicy  *retry.Policy
	JobSleep     func(ctx context.Context, d time.Duration) error
}

// GenerationParams tunes one generation request.
type GenerationParams struct {
	WordTarget   int
	ChapterTitle string
	Priority     domain.Priority
	// BypassCache forces fresh output for identical input; set when the
	// user explicitly asks for a different result.
	BypassCache bool
}

// Ticket is the synchronous answer to a generation request: either a job to
// poll or an artifact served straight from cache.
type Ticket struct {
	JobID     string
	FromCache bool
	Result    string
}

// App orchestrates the generation pipeline: readiness, clarifying
// questions, rate limiting, caching, batching and the worker pool.
type App struct {
	store    store.Store
	archive  storage.ObjectStore
	cache    cache.Store
	limiter  Limiter
	client   Completer
	subjects ContextProvider
	events   jobs.Publisher
	qsvc     *questions.Service
	batcher  *batch.Batcher
	queue    *jobs.Queue
	workers  int

	mu        sync.Mutex
	callbacks map[string][]func(domain.GenerationJob)
}

// New wires the pipeline. The job queue and batcher are owned by the app;
// callers provide the shared stores and the upstream client.
func New(cfg Config) (*App, error) {
	if cfg.Redis == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Store == nil || cfg.Cache == nil || cfg.Limiter == nil || cfg.Client == nil || cfg.Subjects == nil {
		return nil, errors.New("store, cache, limiter, client and subject provider are required")
	}
	archive := cfg.Archive
	if archive == nil {
		archive = storage.NewMemoryStore()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 10
	}

	a := &App{
		store:     cfg.Store,
		archive:   archive,
		cache:     cfg.Cache,
		limiter:   cfg.Limiter,
		client:    cfg.Client,
		subjects:  cfg.Subjects,
		events:    cfg.Events,
		workers:   workers,
		callbacks: make(map[string][]func(domain.GenerationJob)),
	}

	qsvc, err := questions.NewService(a)
	if err != nil {
		return nil, err
	}
	a.qsvc = qsvc

	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "draftforge:generation"
	}
	queue, err := jobs.New(jobs.Config{
		Client:    cfg.Redis,
		Stream:    stream,
		Policy:    cfg.RetryPolicy,
		Publisher: a,
		Sleep:     cfg.JobSleep,
	})
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}
	a.queue = queue

	var batchOpts []batch.Option
	if cfg.BatchSize > 0 {
		batchOpts = append(batchOpts, batch.WithBatchSize(cfg.BatchSize))
	}
	if cfg.BatchTimeout > 0 {
		batchOpts = append(batchOpts, batch.WithBatchTimeout(cfg.BatchTimeout))
	}
	batcher, err := batch.New(queue, batchOpts...)
	if err != nil {
		return nil, fmt.Errorf("init batcher: %w", err)
	}
	a.batcher = batcher
	return a, nil
}

// Start runs the batcher drain loop and the worker pool until ctx is
// cancelled. The returned group completes once in-flight jobs drain.
func (a *App) Start(ctx context.Context) *errgroup.Group {
	a.batcher.Start(ctx)
	return a.queue.Start(ctx, a.workers, a.HandleJob)
}

// AssessReadiness scores raw summary text. Deliberately ungated: it is the
// cheapest operation in the pipeline and its output feeds the limiter and
// cache decisions downstream, so it is neither rate-limited nor cached.
func (a *App) AssessReadiness(text string) domain.ReadinessAssessment {
	return readiness.Assess(text)
}

// RequestQuestions generates 3-5 clarifying questions for the subject and
// moves a not-ready subject into the questions-pending phase.
func (a *App) RequestQuestions(ctx context.Context, subjectID, userID string) ([]domain.ClarifyingQuestion, error) {
	sctx, err := a.subjects.GetSubjectContext(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject context: %w", err)
	}
	assessment := readiness.Assess(sctx.SummaryText)
	payload := payloadFromContext(sctx, nil)

	qs, err := a.qsvc.Generate(ctx, subjectID, userID, assessment, payload)
	if err != nil {
		return nil, err
	}

	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		subject = domain.Subject{ID: subjectID, Phase: domain.PhaseNotReady}
	}
	if !assessment.MeetsMinimum && subject.Phase == domain.PhaseNotReady {
		subject.Phase = domain.PhaseQuestionsPending
	}
	subject.Questions = qs
	subject.Answers = nil
	subject.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSubject(subject); err != nil {
		return nil, err
	}
	return qs, nil
}

// CompleteQuestions implements questions.Completer: a synchronous
// questions-operation completion gated by the limiter and cache.
func (a *App) CompleteQuestions(ctx context.Context, subjectID, userID string, payload domain.ContextPayload) (string, error) {
	return a.completeGated(ctx, domain.OpQuestions, subjectID, userID, payload)
}

// SubmitAnswers records question responses; once every pending question is
// answered the subject becomes ready for generation.
func (a *App) SubmitAnswers(ctx context.Context, subjectID string, responses []domain.QuestionResponse) error {
	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSubject
	}
	now := time.Now().UTC()
	for _, r := range responses {
		if strings.TrimSpace(r.AnswerText) == "" {
			continue
		}
		if r.AnsweredAt.IsZero() {
			r.AnsweredAt = now
		}
		subject.Answers = upsertAnswer(subject.Answers, r)
	}
	if allAnswered(subject) && domain.CanTransition(subject.Phase, domain.PhaseReady) {
		subject.Phase = domain.PhaseReady
	}
	subject.UpdatedAt = now
	return a.store.SaveSubject(subject)
}

// RequestGeneration gates, caches, and enqueues a structured generation.
// The call never blocks on the upstream: it returns a job to poll, or the
// artifact itself when an equivalent result is cached.
func (a *App) RequestGeneration(ctx context.Context, subjectID, userID string, op domain.Operation, params GenerationParams) (Ticket, error) {
	switch op {
	case domain.OpTOC, domain.OpChapterQuestions, domain.OpDraft:
	default:
		return Ticket{}, fmt.Errorf("operation %q is not a generation operation", op)
	}

	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return Ticket{}, err
	}
	sctx, err := a.subjects.GetSubjectContext(ctx, subjectID)
	if err != nil {
		return Ticket{}, fmt.Errorf("load subject context: %w", err)
	}
	if !ok {
		// First contact with this subject: readiness decides the phase.
		assessment := readiness.Assess(sctx.SummaryText)
		subject = domain.Subject{ID: subjectID, Phase: domain.PhaseNotReady}
		if assessment.MeetsMinimum {
			subject.Phase = domain.PhaseReady
		}
		if err := a.store.SaveSubject(subject); err != nil {
			return Ticket{}, err
		}
	}
	if subject.Phase == domain.PhaseNotReady || subject.Phase == domain.PhaseQuestionsPending {
		return Ticket{}, ErrSubjectNotReady
	}

	decision, err := a.limiter.Check(ctx, userID, op)
	if err != nil {
		return Ticket{}, fmt.Errorf("rate limit unavailable: %w", err)
	}
	if !decision.Allowed {
		return Ticket{}, &RateLimitError{Operation: op, RetryAfterSeconds: decision.RetryAfterSeconds}
	}

	payload := payloadFromContext(sctx, subject.Answers)
	payload.WordTarget = params.WordTarget
	payload.ChapterTitle = params.ChapterTitle
	payload.BypassCache = params.BypassCache

	if !params.BypassCache {
		hash := payload.ContextHash(op)
		if entry, hit, err := a.cache.Get(ctx, op, hash); err == nil && hit {
			// Cache hit short-circuits straight to GENERATED.
			if err := a.adoptArtifact(&subject, op, entry.Value); err != nil {
				return Ticket{}, err
			}
			return Ticket{FromCache: true, Result: entry.Value}, nil
		}
	}

	priority := params.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	jobID, err := a.batcher.Submit(ctx, domain.GenerationRequest{
		Operation:   op,
		SubjectID:   subjectID,
		UserID:      userID,
		Payload:     payload,
		Priority:    priority,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return Ticket{}, err
	}

	subject.Phase = domain.PhaseGenerating
	subject.ActiveJobID = jobID
	subject.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSubject(subject); err != nil {
		return Ticket{}, err
	}
	return Ticket{JobID: jobID}, nil
}

// JobStatus returns the job's state, progress and result or error.
func (a *App) JobStatus(ctx context.Context, jobID string) (domain.GenerationJob, error) {
	job, ok, err := a.queue.Status(ctx, jobID)
	if err != nil {
		return domain.GenerationJob{}, err
	}
	if !ok {
		return domain.GenerationJob{}, ErrJobNotFound
	}
	return job, nil
}

// CancelJob cancels a queued job, or best-effort flags a running one so its
// result is discarded. Jobs caught before dispatch go terminal immediately,
// which also releases their subject via the usual failure path.
func (a *App) CancelJob(ctx context.Context, jobID string) error {
	if a.batcher.Cancel(jobID) {
		return a.queue.Abort(ctx, jobID, "canceled", "generation was cancelled before it started")
	}
	return a.queue.Cancel(ctx, jobID)
}

// InvalidateCache removes every cached artifact derived from the subject.
// The CRUD collaborator calls this when the underlying content changes
// materially, for example after a summary edit.
func (a *App) InvalidateCache(ctx context.Context, subjectID string) error {
	return a.cache.Invalidate(ctx, subjectID)
}

// RecordEdit applies a user edit to the current artifact: the prior version
// is preserved for audit and undo, and the version counter increments.
func (a *App) RecordEdit(ctx context.Context, subjectID, newBody string) (domain.Subject, error) {
	subject, ok, err := a.store.GetSubject(subjectID)
	if err != nil {
		return domain.Subject{}, err
	}
	if !ok {
		return domain.Subject{}, ErrUnknownSubject
	}
	if !domain.CanTransition(subject.Phase, domain.PhaseEdited) {
		return domain.Subject{}, fmt.Errorf("cannot edit subject in phase %s", subject.Phase)
	}
	if err := a.archiveCurrent(ctx, &subject); err != nil {
		return domain.Subject{}, err
	}
	subject.CurrentArtifact = newBody
	subject.Phase = domain.PhaseEdited
	subject.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSubject(subject); err != nil {
		return domain.Subject{}, err
	}
	return subject, nil
}

// Versions returns the subject's preserved artifact history, oldest first.
func (a *App) Versions(ctx context.Context, subjectID string) ([]domain.ArtifactVersion, error) {
	return a.store.ListVersions(subjectID)
}

// OnJobDone registers a completion callback for callers preferring push over
// polling. The callback fires once, after subject state has been updated.
func (a *App) OnJobDone(jobID string, fn func(domain.GenerationJob)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	a.callbacks[jobID] = append(a.callbacks[jobID], fn)
	a.mu.Unlock()
}

// HandleJob executes one job's upstream work: prompt, completion, cache
// write. The worker pool owns all job state transitions.
func (a *App) HandleJob(ctx context.Context, job domain.GenerationJob, report func(int)) (string, error) {
	prompt := buildPrompt(job.Operation, job.Payload)
	report(jobs.ProgressPrepared)

	text, err := a.client.Complete(ctx, prompt, ai.CompletionParams{
		Operation:    job.Operation,
		SystemPrompt: systemPrompt(job.Operation),
	})
	if err != nil {
		return "", err
	}
	report(jobs.ProgressResponded)

	if !job.Payload.BypassCache {
		if err := a.cache.Put(ctx, job.Operation, job.ContextHash, job.SubjectID, text); err != nil {
			slog.Warn("cache write failed", "jobId", job.ID, "err", err)
		}
	}
	return text, nil
}

// Publish implements jobs.Publisher: terminal jobs drive the subject phase
// machine, then fan out to callbacks and the optional external publisher.
func (a *App) Publish(ctx context.Context, job domain.GenerationJob) error {
	switch job.State {
	case domain.JobSucceeded:
		a.applySuccess(ctx, job)
	case domain.JobFailed:
		a.applyFailure(ctx, job)
	}

	a.mu.Lock()
	fns := a.callbacks[job.ID]
	delete(a.callbacks, job.ID)
	a.mu.Unlock()
	for _, fn := range fns {
		fn(job)
	}

	if a.events != nil {
		return a.events.Publish(ctx, job)
	}
	return nil
}

func (a *App) applySuccess(ctx context.Context, job domain.GenerationJob) {
	subject, ok, err := a.store.GetSubject(job.SubjectID)
	if err != nil || !ok {
		return
	}
	if subject.ActiveJobID != job.ID {
		// A newer request superseded this job; its result stays pollable
		// but does not move the subject.
		return
	}
	if err := a.adoptArtifact(&subject, job.Operation, job.Result); err != nil {
		slog.Error("apply generation result", "jobId", job.ID, "err", err)
	}
}

func (a *App) applyFailure(ctx context.Context, job domain.GenerationJob) {
	subject, ok, err := a.store.GetSubject(job.SubjectID)
	if err != nil || !ok || subject.ActiveJobID != job.ID {
		return
	}
	// Retries exhausted: back to ready so the user can retry manually.
	if domain.CanTransition(subject.Phase, domain.PhaseReady) {
		subject.Phase = domain.PhaseReady
	}
	subject.ActiveJobID = ""
	subject.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveSubject(subject); err != nil {
		slog.Error("apply generation failure", "jobId", job.ID, "err", err)
	}
}

// adoptArtifact installs a new artifact on the subject, archiving whatever
// it replaces, and moves the subject to GENERATED.
func (a *App) adoptArtifact(subject *domain.Subject, op domain.Operation, body string) error {
	if err := a.archiveCurrent(context.Background(), subject); err != nil {
		return err
	}
	subject.CurrentArtifact = body
	subject.CurrentOp = op
	subject.Phase = domain.PhaseGenerated
	subject.ActiveJobID = ""
	subject.UpdatedAt = time.Now().UTC()
	return a.store.SaveSubject(*subject)
}

// archiveCurrent preserves the subject's current artifact as the next
// version. Large bodies go to the object archive.
func (a *App) archiveCurrent(ctx context.Context, subject *domain.Subject) error {
	if subject.CurrentArtifact == "" {
		return nil
	}
	version := domain.ArtifactVersion{
		SubjectID: subject.ID,
		Version:   subject.Version + 1,
		Operation: subject.CurrentOp,
		CreatedAt: time.Now().UTC(),
	}
	if len(subject.CurrentArtifact) > inlineBodyLimit {
		key := fmt.Sprintf("subjects/%s/v%d.txt", subject.ID, version.Version)
		if err := a.archive.Put(ctx, key, subject.CurrentArtifact); err != nil {
			return fmt.Errorf("archive version body: %w", err)
		}
		version.ArchiveKey = key
	} else {
		version.Body = subject.CurrentArtifact
	}
	if err := a.store.AppendVersion(version); err != nil {
		return err
	}
	subject.Version = version.Version
	return nil
}

// completeGated is the synchronous path through limiter, cache, and the
// resilient client, shared by operations that answer inline.
func (a *App) completeGated(ctx context.Context, op domain.Operation, subjectID, userID string, payload domain.ContextPayload) (string, error) {
	decision, err := a.limiter.Check(ctx, userID, op)
	if err != nil {
		return "", fmt.Errorf("rate limit unavailable: %w", err)
	}
	if !decision.Allowed {
		return "", &RateLimitError{Operation: op, RetryAfterSeconds: decision.RetryAfterSeconds}
	}
	hash := payload.ContextHash(op)
	if !payload.BypassCache {
		if entry, hit, err := a.cache.Get(ctx, op, hash); err == nil && hit {
			return entry.Value, nil
		}
	}
	text, err := a.client.Complete(ctx, buildPrompt(op, payload), ai.CompletionParams{
		Operation:    op,
		SystemPrompt: systemPrompt(op),
	})
	if err != nil {
		return "", err
	}
	if err := a.cache.Put(ctx, op, hash, subjectID, text); err != nil {
		slog.Warn("cache write failed", "operation", op, "err", err)
	}
	return text, nil
}

func payloadFromContext(sctx domain.SubjectContext, answers []domain.QuestionResponse) domain.ContextPayload {
	merged := make(map[string]string, len(sctx.PriorAnswers)+len(answers))
	for k, v := range sctx.PriorAnswers {
		merged[k] = v
	}
	for _, r := range answers {
		merged[r.QuestionID] = r.AnswerText
	}
	if len(merged) == 0 {
		merged = nil
	}
	return domain.ContextPayload{
		Summary:        sctx.SummaryText,
		Genre:          sctx.Genre,
		TargetAudience: sctx.TargetAudience,
		Answers:        merged,
	}
}

func upsertAnswer(answers []domain.QuestionResponse, r domain.QuestionResponse) []domain.QuestionResponse {
	for i, existing := range answers {
		if existing.QuestionID == r.QuestionID {
			answers[i] = r
			return answers
		}
	}
	return append(answers, r)
}

func allAnswered(subject domain.Subject) bool {
	if len(subject.Questions) == 0 {
		return false
	}
	answered := make(map[string]bool, len(subject.Answers))
	for _, a := range subject.Answers {
		answered[a.QuestionID] = true
	}
	for _, q := range subject.Questions {
		if !answered[q.ID] {
			return false
		}
	}
	return true
}
