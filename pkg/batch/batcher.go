package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"draftforge/internal/util"
	"draftforge/pkg/domain"
)

const (
	// DefaultBatchSize triggers an early drain once this many requests are
	// pending.
	DefaultBatchSize = 5
	// DefaultBatchTimeout bounds how long a lone request waits for company.
	DefaultBatchTimeout = 2 * time.Second

	sizeBucketWords = 200
)

// Sink receives the jobs a drain cycle produces. The worker pool implements
// this. Register is called when a group forms so the job handle returned by
// Submit is pollable before the group drains.
type Sink interface {
	Register(ctx context.Context, job domain.GenerationJob) error
	Enqueue(ctx context.Context, job domain.GenerationJob) error
}

// group collects requests that are similar enough to share one upstream
// call. The job id is allocated when the group forms so every submitter in
// the group polls the same job.
type group struct {
	jobID    string
	key      string
	first    time.Time
	priority domain.Priority
	requests []domain.GenerationRequest
}

// Batcher collects concurrent generation requests and drains them every
// batch timeout, or as soon as the batch fills, whichever comes first.
// Requests sharing a similarity key within one cycle become a single job.
type Batcher struct {
	sink    Sink
	size    int
	timeout time.Duration

	mu      sync.Mutex
	groups  map[string]*group
	pending int

	kick chan struct{}
}

// Option overrides a Batcher default.
type Option func(*Batcher)

// WithBatchSize sets the early-drain threshold.
func WithBatchSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithBatchTimeout sets the drain interval.
func WithBatchTimeout(d time.Duration) Option {
	return func(b *Batcher) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// New builds a Batcher that forwards drained jobs to sink.
func New(sink Sink, opts ...Option) (*Batcher, error) {
	if sink == nil {
		return nil, errors.New("batcher sink is required")
	}
	b := &Batcher{
		sink:    sink,
		size:    DefaultBatchSize,
		timeout: DefaultBatchTimeout,
		groups:  make(map[string]*group),
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Submit queues the request for the next drain cycle and returns the id of
// the job that will carry it. Requests the grouping rejects as malformed are
// still accepted; they just travel alone.
func (b *Batcher) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if !req.Operation.Valid() {
		return "", fmt.Errorf("unknown operation %q", req.Operation)
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}

	key, err := similarityKey(req)
	if err != nil {
		// Malformed context: isolate the request in its own single-use
		// group instead of blocking the rest of the batch.
		key = "solo:" + util.NewID()
	}

	b.mu.Lock()
	g, ok := b.groups[key]
	if !ok {
		g = &group{
			jobID:    util.NewID(),
			key:      key,
			first:    time.Now().UTC(),
			priority: req.Priority,
		}
		// Register under the lock so a returned handle always has a status
		// record, and a failed registration never leaks a half-formed group.
		if err := b.sink.Register(ctx, provisionalJob(g.jobID, req)); err != nil {
			b.mu.Unlock()
			return "", fmt.Errorf("register job: %w", err)
		}
		b.groups[key] = g
	}
	if req.Priority == domain.PriorityHigh {
		g.priority = domain.PriorityHigh
	}
	g.requests = append(g.requests, req)
	b.pending++
	full := b.pending >= b.size
	jobID := g.jobID
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return jobID, nil
}

// Cancel removes a job from the pending queue if it has not been dispatched
// yet. Returns false once the job has left the batcher.
func (b *Batcher) Cancel(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, g := range b.groups {
		if g.jobID == jobID {
			b.pending -= len(g.requests)
			delete(b.groups, key)
			return true
		}
	}
	return false
}

// Start runs the drain loop until ctx is cancelled. A final drain on
// shutdown hands any pending work to the sink.
func (b *Batcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(b.timeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				b.drain(context.WithoutCancel(ctx))
				return
			case <-b.kick:
				b.drain(ctx)
			case <-ticker.C:
				b.drain(ctx)
			}
		}
	}()
}

// drain turns every pending group into exactly one job and forwards it.
// High-priority groups dispatch first, then oldest first.
func (b *Batcher) drain(ctx context.Context) {
	b.mu.Lock()
	if len(b.groups) == 0 {
		b.mu.Unlock()
		return
	}
	groups := make([]*group, 0, len(b.groups))
	for _, g := range b.groups {
		groups = append(groups, g)
	}
	b.groups = make(map[string]*group)
	b.pending = 0
	b.mu.Unlock()

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].priority != groups[j].priority {
			return groups[i].priority == domain.PriorityHigh
		}
		return groups[i].first.Before(groups[j].first)
	})

	batchID := util.NewID()
	for _, g := range groups {
		job := provisionalJob(g.jobID, g.requests[0])
		job.BatchID = batchID
		if err := b.sink.Enqueue(ctx, job); err != nil {
			slog.Error("batcher enqueue failed", "jobId", job.ID, "operation", job.Operation, "err", err)
		}
	}
}

// provisionalJob is the job a group's lead request produces. Grouping only
// merges requests for the same subject with an identical context hash, so
// the lead request stands in for the whole group.
func provisionalJob(jobID string, req domain.GenerationRequest) domain.GenerationJob {
	return domain.GenerationJob{
		ID:          jobID,
		Operation:   req.Operation,
		SubjectID:   req.SubjectID,
		UserID:      req.UserID,
		ContextHash: req.Payload.ContextHash(req.Operation),
		Payload:     req.Payload,
		State:       domain.JobQueued,
		CreatedAt:   time.Now().UTC(),
	}
}

// similarityKey groups requests that can share an upstream call: same
// subject, same operation, same genre, comparable size. The subject is part
// of the key because a drained group becomes exactly one job, and that job's
// terminal transition moves exactly one subject; merging subjects would
// strand all but the lead in GENERATING. An empty summary cannot be grouped
// meaningfully and is reported as malformed.
func similarityKey(req domain.GenerationRequest) (string, error) {
	summary := strings.TrimSpace(req.Payload.Summary)
	if summary == "" {
		return "", errors.New("empty context payload")
	}
	bucket := len(strings.Fields(summary)) / sizeBucketWords
	genre := strings.ToLower(strings.TrimSpace(req.Payload.Genre))
	hash := req.Payload.ContextHash(req.Operation)
	return fmt.Sprintf("%s|%s|%s|%d|%s", req.SubjectID, req.Operation, genre, bucket, hash), nil
}
