package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"draftforge/pkg/domain"
)

// Entry is a cached generation artifact.
type Entry struct {
	Operation   domain.Operation `json:"operation"`
	ContextHash string           `json:"contextHash"`
	SubjectID   string           `json:"subjectId"`
	Value       string           `json:"value"`
	CachedAt    time.Time        `json:"cachedAt"`
	TTLSeconds  int              `json:"ttlSeconds"`
}

// Store caches generated artifacts keyed by (operation, context hash) with
// per-operation TTLs and subject-scoped invalidation.
type Store interface {
	Get(ctx context.Context, op domain.Operation, contextHash string) (Entry, bool, error)
	Put(ctx context.Context, op domain.Operation, contextHash, subjectID, value string) error
	Invalidate(ctx context.Context, subjectID string) error
}

// TTLFor returns the cache lifetime for an operation. Zero means the
// operation is never cached: readiness is too cheap to bother, and drafts
// are expected to vary between generations, so serving a stale draft would
// silently repeat creative content.
func TTLFor(op domain.Operation) time.Duration {
	switch op {
	case domain.OpTOC:
		return 24 * time.Hour
	case domain.OpChapterQuestions, domain.OpQuestions:
		return time.Hour
	default:
		return 0
	}
}

// RedisStore implements Store on Redis. Entries expire via Redis TTL, so
// stale values are evicted lazily on read. A per-subject set indexes every
// key derived from that subject, which makes Invalidate a set sweep.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Store with the given key prefix.
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("cache redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "draftforge:cache"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Get returns the cached entry, or found=false on miss or expiry.
func (s *RedisStore) Get(ctx context.Context, op domain.Operation, contextHash string) (Entry, bool, error) {
	if TTLFor(op) == 0 {
		return Entry{}, false, nil
	}
	raw, err := s.client.Get(ctx, s.entryKey(op, contextHash)).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("cache decode: %w", err)
	}
	return entry, true, nil
}

// Put stores the value under (op, contextHash) with the operation's TTL and
// records the key in the subject index. It is a no-op for never-cached
// operations. Concurrent writers within the same millisecond resolve to a
// single winner via a short-lived guard key; values for equal hashes are
// equivalent, so the loser's value is simply dropped.
func (s *RedisStore) Put(ctx context.Context, op domain.Operation, contextHash, subjectID, value string) error {
	ttl := TTLFor(op)
	if ttl == 0 {
		return nil
	}
	key := s.entryKey(op, contextHash)
	now := time.Now().UTC()
	guard := fmt.Sprintf("%s:w:%d", key, now.UnixMilli())
	won, err := s.client.SetNX(ctx, guard, "1", 5*time.Second).Result()
	if err != nil {
		return fmt.Errorf("cache write guard: %w", err)
	}
	if !won {
		return nil
	}

	entry := Entry{
		Operation:   op,
		ContextHash: contextHash,
		SubjectID:   subjectID,
		Value:       value,
		CachedAt:    now,
		TTLSeconds:  int(ttl / time.Second),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, ttl)
	if subjectID != "" {
		subjectKey := s.subjectKey(subjectID)
		pipe.SAdd(ctx, subjectKey, key)
		pipe.Expire(ctx, subjectKey, ttl+time.Hour)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate removes every cached entry derived from the subject. Called by
// the CRUD collaborator when the underlying content changes materially.
func (s *RedisStore) Invalidate(ctx context.Context, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return errors.New("subject id required")
	}
	subjectKey := s.subjectKey(subjectID)
	keys, err := s.client.SMembers(ctx, subjectKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	keys = append(keys, subjectKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (s *RedisStore) entryKey(op domain.Operation, contextHash string) string {
	return fmt.Sprintf("%s:entry:%s:%s", s.prefix, op, contextHash)
}

func (s *RedisStore) subjectKey(subjectID string) string {
	return fmt.Sprintf("%s:subject:%s", s.prefix, subjectID)
}
