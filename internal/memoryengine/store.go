package memoryengine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentrt/runtime/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultCacheSize is the default number of recent chunks kept warm.
const DefaultCacheSize = 512

// ChunkStore is the content-addressed in-memory chunk collection. One
// store-wide read/write mutex guards it: writes take the exclusive lock,
// reads the shared lock.
type ChunkStore struct {
	mu        sync.RWMutex
	chunks    map[string]*models.MemoryChunk
	docOrder  map[string][]string // docID -> ordered chunk keys
	cache     *recencyCache
}

// StoreOption configures a ChunkStore.
type StoreOption func(*ChunkStore)

// WithCacheSize overrides the default recency-cache size.
func WithCacheSize(n int) StoreOption {
	return func(s *ChunkStore) { s.cache = newRecencyCache(n) }
}

// NewChunkStore builds an empty chunk store with a warm recency cache.
func NewChunkStore(opts ...StoreOption) *ChunkStore {
	s := &ChunkStore{
		chunks:   make(map[string]*models.MemoryChunk),
		docOrder: make(map[string][]string),
		cache:    newRecencyCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a chunk as given (the caller sets its fingerprint), stamping
// CreatedAt if unset, and warms the cache. Writes go through both the store and the cache together.
func (s *ChunkStore) Put(c *models.MemoryChunk) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.chunks[c.Key] = c
	s.docOrder[c.DocID] = append(s.docOrder[c.DocID], c.Key)
	s.mu.Unlock()
	s.cache.put(c)
}

// Get returns a chunk by key, serving from the recency cache when present.
func (s *ChunkStore) Get(key string) (*models.MemoryChunk, bool) {
	if c, ok := s.cache.get(key); ok {
		return c, true
	}
	s.mu.RLock()
	c, ok := s.chunks[key]
	s.mu.RUnlock()
	if ok {
		s.cache.put(c)
	}
	return c, ok
}

// All returns a snapshot of every stored chunk, oldest first (ordered by
// CreatedAt, then document ID, then chunk index).
func (s *ChunkStore) All() []*models.MemoryChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MemoryChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.DocID != b.DocID {
			return a.DocID < b.DocID
		}
		return a.Index < b.Index
	})
	return out
}

// ClearDocument removes every chunk belonging to docID from both the store
// and the cache.
func (s *ChunkStore) ClearDocument(docID string) {
	s.mu.Lock()
	keys := s.docOrder[docID]
	delete(s.docOrder, docID)
	for _, k := range keys {
		delete(s.chunks, k)
	}
	s.mu.Unlock()
	for _, k := range keys {
		s.cache.delete(k)
	}
}

// Verify recomputes key's fingerprint from its stored text and checks it
// against the stored fingerprint (invariant I-M1).
func (s *ChunkStore) Verify(key string) error {
	c, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("chunk not found: %s", key)
	}
	if Fingerprint(c.Text) != c.Fingerprint {
		return &IntegrityError{Key: key}
	}
	return nil
}

// VerifyAllResult summarizes a full-store integrity sweep.
type VerifyAllResult struct {
	Total   int
	Valid   int
	Invalid int
	Errors  []IntegrityError
}

// VerifyAll verifies every stored chunk. A bad chunk does not abort the
// sweep or corrupt retrieval — it is reported and excluded from results.
func (s *ChunkStore) VerifyAll() VerifyAllResult {
	all := s.All()
	res := VerifyAllResult{Total: len(all)}
	for _, c := range all {
		if Fingerprint(c.Text) == c.Fingerprint {
			res.Valid++
			continue
		}
		res.Invalid++
		res.Errors = append(res.Errors, IntegrityError{Key: c.Key})
	}
	if res.Invalid > 0 {
		log.Warn().Int("invalid", res.Invalid).Int("total", res.Total).Msg("memory integrity check found corrupt chunks")
	}
	return res
}

// IntegrityError reports a chunk whose stored fingerprint no longer
// matches its stored text.
type IntegrityError struct {
	Key string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("memory integrity error: chunk %s fingerprint mismatch", e.Key)
}

// ── recency cache ───────────────────────────────────────────

// recencyCache is a simple LRU keyed by chunk key. It serves Get lookups
// only; retrieval always scans the full store. The ChunkStore remains the
// source of truth.
type recencyCache struct {
	mu       sync.Mutex
	size     int
	order    []string
	entries  map[string]*models.MemoryChunk
}

func newRecencyCache(size int) *recencyCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &recencyCache{size: size, entries: make(map[string]*models.MemoryChunk)}
}

func (c *recencyCache) get(key string) (*models.MemoryChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.touch(key)
	}
	return v, ok
}

func (c *recencyCache) put(chunk *models.MemoryChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[chunk.Key]; !exists {
		c.order = append(c.order, chunk.Key)
	} else {
		c.touch(chunk.Key)
	}
	c.entries[chunk.Key] = chunk
	c.evictIfNeeded()
}

func (c *recencyCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// touch moves key to the most-recently-used position. Caller holds mu.
func (c *recencyCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// evictIfNeeded drops the least-recently-used entry past capacity. Caller holds mu.
func (c *recencyCache) evictIfNeeded() {
	for len(c.order) > c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// warm pre-loads the cache with the most recently created chunks from a
// cold-start store scan.
func (s *ChunkStore) warm(n int) {
	all := s.All()
	// newest last, insertion order approximates recency well enough for a
	// cold-start warm-up since chunks are immutable and append-only.
	start := 0
	if len(all) > n {
		start = len(all) - n
	}
	for _, c := range all[start:] {
		s.cache.put(c)
	}
}
