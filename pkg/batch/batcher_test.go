package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"draftforge/pkg/domain"
)

type captureSink struct {
	mu          sync.Mutex
	jobs        []domain.GenerationJob
	registered  []domain.GenerationJob
	registerErr error
}

func (s *captureSink) Register(ctx context.Context, job domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registerErr != nil {
		return s.registerErr
	}
	s.registered = append(s.registered, job)
	return nil
}

func (s *captureSink) Enqueue(ctx context.Context, job domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *captureSink) snapshot() []domain.GenerationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GenerationJob(nil), s.jobs...)
}

func (s *captureSink) snapshotRegistered() []domain.GenerationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GenerationJob(nil), s.registered...)
}

func waitForJobs(t *testing.T, sink *captureSink, n int) []domain.GenerationJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if jobs := sink.snapshot(); len(jobs) >= n {
			return jobs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d jobs, have %d", n, len(sink.snapshot()))
	return nil
}

func request(op domain.Operation, user, summary string) domain.GenerationRequest {
	return domain.GenerationRequest{
		Operation: op,
		SubjectID: "book-1",
		UserID:    user,
		Payload:   domain.ContextPayload{Summary: summary, Genre: "mystery"},
		Priority:  domain.PriorityNormal,
	}
}

func TestSubmitGroupsEquivalentRequests(t *testing.T) {
	sink := &captureSink{}
	b, err := New(sink, WithBatchTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	id1, err := b.Submit(ctx, request(domain.OpTOC, "u1", "A lighthouse mystery"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id2, err := b.Submit(ctx, request(domain.OpTOC, "u2", "A lighthouse mystery"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("equivalent requests in one cycle should share a job, got %s and %s", id1, id2)
	}
	jobs := waitForJobs(t, sink, 1)
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].ID != id1 || jobs[0].State != domain.JobQueued {
		t.Fatalf("job = %+v", jobs[0])
	}
}

func TestSubmitDoesNotGroupAcrossSubjects(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	first := request(domain.OpTOC, "u1", "A lighthouse mystery")
	second := request(domain.OpTOC, "u2", "A lighthouse mystery")
	second.SubjectID = "book-3"

	id1, _ := b.Submit(ctx, first)
	id2, _ := b.Submit(ctx, second)
	if id1 == id2 {
		t.Fatalf("identical context for different subjects must not share a job")
	}
	jobs := waitForJobs(t, sink, 2)
	subjects := map[string]string{}
	for _, job := range jobs {
		subjects[job.ID] = job.SubjectID
	}
	if subjects[id1] != "book-1" || subjects[id2] != "book-3" {
		t.Fatalf("each job must carry its own subject, got %v", subjects)
	}
}

func TestSubmitRegistersJobBeforeDrain(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(time.Hour))
	ctx := context.Background()

	id, err := b.Submit(ctx, request(domain.OpTOC, "u1", "A lighthouse mystery"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	registered := sink.snapshotRegistered()
	if len(registered) != 1 {
		t.Fatalf("registered = %d, want 1", len(registered))
	}
	if registered[0].ID != id || registered[0].State != domain.JobQueued {
		t.Fatalf("registered job = %+v", registered[0])
	}
	// Joining an existing group must not register a second record.
	id2, _ := b.Submit(ctx, request(domain.OpTOC, "u2", "A lighthouse mystery"))
	if id2 != id {
		t.Fatalf("expected the second request to join the group")
	}
	if len(sink.snapshotRegistered()) != 1 {
		t.Fatalf("joining a group must reuse the registered job")
	}
}

func TestSubmitFailsWhenRegistrationFails(t *testing.T) {
	sink := &captureSink{registerErr: errors.New("status store down")}
	b, _ := New(sink, WithBatchTimeout(time.Hour))

	if _, err := b.Submit(context.Background(), request(domain.OpTOC, "u1", "A lighthouse mystery")); err == nil {
		t.Fatalf("expected submit to surface the registration failure")
	}
	// The failed group must not linger; a later submit starts clean.
	sink.mu.Lock()
	sink.registerErr = nil
	sink.mu.Unlock()
	id, err := b.Submit(context.Background(), request(domain.OpTOC, "u1", "A lighthouse mystery"))
	if err != nil || id == "" {
		t.Fatalf("submit after recovery: id=%q err=%v", id, err)
	}
}

func TestSubmitSeparatesDissimilarRequests(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	id1, _ := b.Submit(ctx, request(domain.OpTOC, "u1", "A lighthouse mystery"))
	id2, _ := b.Submit(ctx, request(domain.OpDraft, "u1", "A lighthouse mystery"))
	if id1 == id2 {
		t.Fatalf("different operations must not share a job")
	}
	jobs := waitForJobs(t, sink, 2)
	if jobs[0].BatchID != jobs[1].BatchID {
		t.Fatalf("one drain cycle should share a batch id")
	}
}

func TestBatchSizeTriggersEarlyDrain(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchSize(2), WithBatchTimeout(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	_, _ = b.Submit(ctx, request(domain.OpTOC, "u1", "First summary"))
	_, _ = b.Submit(ctx, request(domain.OpDraft, "u1", "Second summary"))
	waitForJobs(t, sink, 2)
}

func TestMalformedRequestTravelsAlone(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	id1, err := b.Submit(ctx, request(domain.OpTOC, "u1", "   "))
	if err != nil {
		t.Fatalf("malformed context must not fail submit: %v", err)
	}
	id2, _ := b.Submit(ctx, request(domain.OpTOC, "u1", "   "))
	if id1 == id2 {
		t.Fatalf("malformed requests must not group")
	}
	waitForJobs(t, sink, 2)
}

func TestHighPriorityDispatchesFirst(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = b.Submit(ctx, request(domain.OpTOC, "u1", "Normal priority work"))
	high := request(domain.OpDraft, "u2", "High priority work")
	high.Priority = domain.PriorityHigh
	highID, _ := b.Submit(ctx, high)
	b.Start(ctx)

	jobs := waitForJobs(t, sink, 2)
	if jobs[0].ID != highID {
		t.Fatalf("high priority job should dispatch first")
	}
}

func TestCancelBeforeDispatch(t *testing.T) {
	sink := &captureSink{}
	b, _ := New(sink, WithBatchTimeout(30*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, _ := b.Submit(ctx, request(domain.OpTOC, "u1", "Cancel me"))
	if !b.Cancel(id) {
		t.Fatalf("cancel before dispatch should succeed")
	}
	b.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	if len(sink.snapshot()) != 0 {
		t.Fatalf("cancelled job must not be dispatched")
	}
	if b.Cancel(id) {
		t.Fatalf("second cancel should report the job gone")
	}
}
