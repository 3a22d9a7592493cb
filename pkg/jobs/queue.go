package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"draftforge/internal/retry"
	"draftforge/internal/util"
	"draftforge/pkg/ai"
	"draftforge/pkg/domain"
)

// Progress checkpoints the pool reports while a job runs.
const (
	ProgressStarted   = 10
	ProgressPrepared  = 30
	ProgressResponded = 80
	ProgressDone      = 100
)

// Handler executes one job's upstream work. It reports intermediate progress
// through report and returns the generated artifact. The pool owns all state
// transitions; handlers only compute.
type Handler func(ctx context.Context, job domain.GenerationJob, report func(percent int)) (string, error)

// Publisher receives terminal job events for callers that prefer push
// notification over polling.
type Publisher interface {
	Publish(ctx context.Context, job domain.GenerationJob) error
}

// Queue is a Redis-stream backed generation worker pool. Jobs enter via
// Enqueue, workers consume through a consumer group, and job state lives in
// Redis hashes pollable from any process instance. Transient failures are
// rescheduled with exponential backoff; permanent ones fail after a single
// attempt.
type Queue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	policy       retry.Policy
	block        time.Duration
	claimIdle    time.Duration
	maxLen       int64
	readCount    int64
	publisher    Publisher
	sleep        func(ctx context.Context, d time.Duration) error
	once         sync.Once
}

// Config for the queue. Zero values fall back to defaults.
type Config struct {
	Client       *redis.Client
	Stream       string
	Group        string
	Consumer     string
	JobTTL       time.Duration
	Policy       *retry.Policy
	Block        time.Duration
	ClaimIdle    time.Duration
	MaxLen       int64
	ReadCount    int64
	Publisher    Publisher
	// Sleep is the backoff sleeper; tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New builds the queue.
func New(cfg Config) (*Queue, error) {
	if cfg.Client == nil {
		return nil, errors.New("jobs redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("jobs stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "generation"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	policy := retry.WorkerPolicy(ai.IsTransient)
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 2 * time.Minute
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Queue{
		client:       cfg.Client,
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		policy:       policy,
		block:        block,
		claimIdle:    claimIdle,
		maxLen:       maxLen,
		readCount:    readCount,
		publisher:    cfg.Publisher,
		sleep:        sleep,
	}, nil
}

// Register writes a QUEUED status record without dispatching anything, so a
// job handle is pollable the moment it is issued, even while the job still
// sits in a pre-dispatch buffer.
func (q *Queue) Register(ctx context.Context, job domain.GenerationJob) error {
	if job.ID == "" {
		return errors.New("job id required")
	}
	if job.State == "" {
		job.State = domain.JobQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return q.writeStatus(ctx, job)
}

// Enqueue records the job's status hash and adds it to the stream.
func (q *Queue) Enqueue(ctx context.Context, job domain.GenerationJob) error {
	if err := q.Register(ctx, job); err != nil {
		return err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job_id": job.ID},
	}).Err()
}

// Status returns the job's current state, progress and result or error.
func (q *Queue) Status(ctx context.Context, jobID string) (domain.GenerationJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.GenerationJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return domain.GenerationJob{}, false, err
	}
	if len(data) == 0 {
		return domain.GenerationJob{}, false, nil
	}
	job, err := decodeJob(jobID, data)
	if err != nil {
		return domain.GenerationJob{}, false, err
	}
	return job, true, nil
}

// Cancel requests cancellation. Before a worker picks the job up this drops
// it entirely; once running, the flag makes the worker discard the result
// instead of persisting it. The in-flight upstream call is not aborted.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return errors.New("job id required")
	}
	return q.client.Set(ctx, q.cancelKey(jobID), "1", q.jobTTL).Err()
}

// Abort finalizes a job that was cancelled before it could be dispatched:
// the status record goes terminal and subscribers are notified. Jobs already
// terminal are left untouched.
func (q *Queue) Abort(ctx context.Context, jobID, code, message string) error {
	job, ok, err := q.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("unknown job")
	}
	if job.State.Terminal() {
		return nil
	}
	q.finishFailed(ctx, job, code, message)
	return nil
}

// Start launches n consumers that run handler for each dequeued job. The
// returned errgroup completes once ctx is cancelled and in-flight jobs have
// drained.
func (q *Queue) Start(ctx context.Context, n int, handler Handler) *errgroup.Group {
	if n <= 0 {
		n = 1
	}
	q.ensureGroup(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		g.Go(func() error {
			q.consumeLoop(ctx, consumer, handler)
			return nil
		})
	}
	return g
}

func (q *Queue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		// From "0" so jobs enqueued before the first consumer are still seen.
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("jobs group create failed, will surface on consume", "err", err)
		}
	})
}

func (q *Queue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *Queue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *Queue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	if jobID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, ok, err := q.Status(ctx, jobID)
	if err != nil || !ok {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if q.cancelled(ctx, jobID) {
		q.finishFailed(ctx, job, "canceled", "generation was cancelled before it started")
		q.ackAndDel(ctx, msg.ID)
		return
	}

	job.State = domain.JobRunning
	job.AttemptCount++
	job.ProgressPercent = maxInt(job.ProgressPercent, ProgressStarted)
	if err := q.writeStatus(ctx, job); err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}

	report := func(percent int) {
		job.ProgressPercent = maxInt(job.ProgressPercent, percent)
		_ = q.writeStatus(ctx, job)
	}

	result, runErr := handler(ctx, job, report)
	if runErr == nil {
		if q.cancelled(ctx, jobID) {
			// Best-effort cancellation: the upstream call completed but the
			// result is discarded, not persisted.
			q.finishFailed(ctx, job, "canceled", "generation was cancelled; result discarded")
			q.ackAndDel(ctx, msg.ID)
			return
		}
		job.State = domain.JobSucceeded
		job.Result = result
		job.ProgressPercent = ProgressDone
		job.ErrorCode = ""
		job.ErrorMessage = ""
		job.CompletedAt = time.Now().UTC()
		_ = q.writeStatus(ctx, job)
		q.publish(ctx, job)
		q.ackAndDel(ctx, msg.ID)
		return
	}

	if q.policy.ShouldRetry(job.AttemptCount, runErr) {
		job.State = domain.JobRetrying
		job.ErrorCode = ai.ErrorCode(runErr)
		job.ErrorMessage = runErr.Error()
		_ = q.writeStatus(ctx, job)
		slog.Info("job retrying", "jobId", job.ID, "attempt", job.AttemptCount, "code", job.ErrorCode)
		if err := q.sleep(ctx, q.policy.Delay(job.AttemptCount)); err != nil {
			// Shutting down mid-backoff: leave the message pending so
			// another consumer claims it after the idle threshold.
			return
		}
		_ = q.requeueAndAck(ctx, msg.ID, jobID)
		return
	}

	q.finishFailed(ctx, job, ai.ErrorCode(runErr), runErr.Error())
	q.ackAndDel(ctx, msg.ID)
}

func (q *Queue) finishFailed(ctx context.Context, job domain.GenerationJob, code, message string) {
	job.State = domain.JobFailed
	job.ErrorCode = code
	job.ErrorMessage = message
	job.CompletedAt = time.Now().UTC()
	_ = q.writeStatus(ctx, job)
	q.publish(ctx, job)
	slog.Warn("job failed", "jobId", job.ID, "code", code, "attempts", job.AttemptCount)
}

func (q *Queue) publish(ctx context.Context, job domain.GenerationJob) {
	if q.publisher == nil {
		return
	}
	if err := q.publisher.Publish(ctx, job); err != nil {
		slog.Warn("job event publish failed", "jobId", job.ID, "err", err)
	}
}

func (q *Queue) cancelled(ctx context.Context, jobID string) bool {
	n, err := q.client.Exists(ctx, q.cancelKey(jobID)).Result()
	return err == nil && n > 0
}

func (q *Queue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *Queue) requeueAndAck(ctx context.Context, msgID, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job_id": jobID},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *Queue) writeStatus(ctx context.Context, job domain.GenerationJob) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"batchId":     job.BatchID,
		"operation":   string(job.Operation),
		"subjectId":   job.SubjectID,
		"userId":      job.UserID,
		"contextHash": job.ContextHash,
		"payload":     string(payload),
		"state":       string(job.State),
		"attempts":    strconv.Itoa(job.AttemptCount),
		"progress":    strconv.Itoa(job.ProgressPercent),
		"result":      job.Result,
		"errorCode":   job.ErrorCode,
		"errorMsg":    job.ErrorMessage,
		"createdAt":   job.CreatedAt.Format(time.RFC3339Nano),
	}
	if !job.CompletedAt.IsZero() {
		fields["completedAt"] = job.CompletedAt.Format(time.RFC3339Nano)
	}
	key := q.jobKey(job.ID)
	if err := q.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("write job status: %w", err)
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *Queue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func (q *Queue) cancelKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s:cancel", q.stream, jobID)
}

func decodeJob(jobID string, data map[string]string) (domain.GenerationJob, error) {
	job := domain.GenerationJob{ID: jobID}
	job.BatchID = data["batchId"]
	job.Operation = domain.Operation(data["operation"])
	job.SubjectID = data["subjectId"]
	job.UserID = data["userId"]
	job.ContextHash = data["contextHash"]
	if raw := data["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Payload); err != nil {
			return job, fmt.Errorf("decode job payload: %w", err)
		}
	}
	job.State = domain.JobState(data["state"])
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.AttemptCount = n
		}
	}
	if v := data["progress"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.ProgressPercent = n
		}
	}
	job.Result = data["result"]
	job.ErrorCode = data["errorCode"]
	job.ErrorMessage = data["errorMsg"]
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["completedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CompletedAt = t
		}
	}
	return job, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
