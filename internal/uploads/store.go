package uploads

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound means no delivery has arrived for the identifier yet. It is
// distinct from a batch with an empty file list, which would mean a
// delivery happened with zero files.
var ErrNotFound = errors.New("uploads: no batch for identifier")

// FileRecord is one delivered media file.
type FileRecord struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	Location     string `json:"location"`
	PublicURL    string `json:"publicUrl"`
	SourceURL    string `json:"sourceUrl,omitempty"` // provenance for remote fetches
	Size         int64  `json:"size"`
}

// Batch is the unit of correlation: the files one provider delivery
// produced, indexed by whichever identifiers the delivery carried.
type Batch struct {
	SessionID  string       `json:"sid,omitempty"`
	ResourceID string       `json:"resourceId,omitempty"`
	Files      []FileRecord `json:"files"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

// Store correlates provider-pushed deliveries with the sessions that
// requested them. Last-write-wins on re-delivery; no merging.
type Store interface {
	Put(ctx context.Context, batch Batch) error
	GetBySessionID(ctx context.Context, sid string) (*Batch, error)
	GetByResourceID(ctx context.Context, resourceID string) (*Batch, error)
	Remove(ctx context.Context, sid string) error
}

type memoryEntry struct {
	batch     Batch
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-process Store with TTL-based eviction
// so unclaimed batches do not accumulate forever.
type MemoryStore struct {
	mu         sync.RWMutex
	bySession  map[string]memoryEntry
	byResource map[string]memoryEntry
	ttl        time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryStore creates a memory store. ttl <= 0 disables eviction.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		bySession:  make(map[string]memoryEntry),
		byResource: make(map[string]memoryEntry),
		ttl:        ttl,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

// Put overwrites any earlier batch stored under the same identifiers.
func (s *MemoryStore) Put(_ context.Context, batch Batch) error {
	entry := memoryEntry{batch: batch}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if batch.SessionID != "" {
		s.bySession[batch.SessionID] = entry
	}
	if batch.ResourceID != "" {
		s.byResource[batch.ResourceID] = entry
	}
	return nil
}

// GetBySessionID returns the most recent batch for the sid or ErrNotFound.
func (s *MemoryStore) GetBySessionID(_ context.Context, sid string) (*Batch, error) {
	s.mu.RLock()
	entry, ok := s.bySession[sid]
	s.mu.RUnlock()
	if !ok || entry.expired() {
		return nil, ErrNotFound
	}
	b := entry.batch
	return &b, nil
}

// GetByResourceID returns the most recent batch for the resource ID or ErrNotFound.
func (s *MemoryStore) GetByResourceID(_ context.Context, resourceID string) (*Batch, error) {
	s.mu.RLock()
	entry, ok := s.byResource[resourceID]
	s.mu.RUnlock()
	if !ok || entry.expired() {
		return nil, ErrNotFound
	}
	b := entry.batch
	return &b, nil
}

// Remove evicts the batch stored under sid, including its resource index entry.
func (s *MemoryStore) Remove(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.bySession[sid]; ok {
		delete(s.bySession, sid)
		if rid := entry.batch.ResourceID; rid != "" {
			delete(s.byResource, rid)
		}
	}
	return nil
}

// Close stops the eviction sweeper.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (e memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (s *MemoryStore) sweep() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, entry := range s.bySession {
		if entry.expired() {
			delete(s.bySession, sid)
		}
	}
	for rid, entry := range s.byResource {
		if entry.expired() {
			delete(s.byResource, rid)
		}
	}
}
