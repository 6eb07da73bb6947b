package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	commonredis "github.com/docuflow/engine/common/redis"
	"github.com/docuflow/engine/engine/workflow"
)

// Checkpoint is a saved state snapshot of a paused graph execution, keyed by
// thread id
type Checkpoint struct {
	ID         string                 `json:"id"`
	GraphID    string                 `json:"graph_id"`
	State      map[string]interface{} `json:"state"`
	PausedNode string                 `json:"paused_node"`
	Iterations int                    `json:"iterations"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// CheckpointStore persists checkpoints for human-in-the-loop pauses. The
// in-memory implementation is authoritative; the Redis implementation is a
// write-through persistence adapter.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, id string) (*Checkpoint, error)
	Delete(ctx context.Context, id string) error
}

// MemoryCheckpointStore keeps checkpoints in memory with a TTL grace period.
// Close stops the expiry sweeper.
type MemoryCheckpointStore struct {
	data     map[string]*memoryCheckpoint
	ttl      time.Duration
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

type memoryCheckpoint struct {
	cp        *Checkpoint
	expiresAt time.Time
}

// NewMemoryCheckpointStore creates an in-memory store. A ttl of 0 disables
// expiry.
func NewMemoryCheckpointStore(ttl time.Duration) *MemoryCheckpointStore {
	s := &MemoryCheckpointStore{
		data: make(map[string]*memoryCheckpoint),
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	if ttl > 0 {
		go s.cleanup()
	}

	return s
}

// Close stops the expiry sweeper. Idempotent; the store stays usable for
// reads and writes afterwards.
func (s *MemoryCheckpointStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Save stores a checkpoint
func (s *MemoryCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryCheckpoint{cp: cp}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}
	s.data[cp.ID] = entry
	return nil
}

// Load retrieves a checkpoint by id
func (s *MemoryCheckpointStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[id]
	if !exists {
		return nil, &workflow.NotFoundError{Kind: "checkpoint", ID: id}
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, &workflow.NotFoundError{Kind: "checkpoint", ID: id}
	}
	return entry.cp, nil
}

// Delete removes a checkpoint
func (s *MemoryCheckpointStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

// cleanup removes expired entries periodically until Close
func (s *MemoryCheckpointStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for id, entry := range s.data {
				if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
					delete(s.data, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisCheckpointStore persists checkpoints in Redis with a TTL covering the
// job's lifetime plus a grace period
type RedisCheckpointStore struct {
	client *commonredis.Client
	ttl    time.Duration
}

// NewRedisCheckpointStore creates a Redis-backed checkpoint store
func NewRedisCheckpointStore(client *commonredis.Client, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{
		client: client,
		ttl:    ttl,
	}
}

func checkpointKey(id string) string {
	return "engine:checkpoint:" + id
}

// Save stores a checkpoint as JSON
func (s *RedisCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return s.client.SetWithExpiry(ctx, checkpointKey(cp.ID), string(payload), s.ttl)
}

// Load retrieves a checkpoint by id
func (s *RedisCheckpointStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	payload, exists, err := s.client.Get(ctx, checkpointKey(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &workflow.NotFoundError{Kind: "checkpoint", ID: id}
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// Delete removes a checkpoint
func (s *RedisCheckpointStore) Delete(ctx context.Context, id string) error {
	return s.client.Delete(ctx, checkpointKey(id))
}
