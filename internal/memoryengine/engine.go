package memoryengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentrt/runtime/internal/models"
	"golang.org/x/sync/singleflight"
)

const (
	contextSeparator = "\n\n---\n\n"
	contextOpenTag   = "--- MEMORY CONTEXT ---"
	contextCloseTag  = "--- END MEMORY CONTEXT ---"
)

// Engine is the Memory Engine: chunking, content-addressed storage,
// keyword-weighted retrieval, context assembly, and integrity
// verification, plus conversation-turn recording. It satisfies
// taskrouter.MemoryEngine.
type Engine struct {
	Store      *ChunkStore
	Turns      *TurnStore
	ChunkerCfg ChunkerConfig
	TopK       int
	MinScore   float64

	warmUp singleflight.Group
}

// NewEngine builds a Memory Engine with the spec's documented defaults.
func NewEngine() *Engine {
	return &Engine{
		Store:      NewChunkStore(),
		Turns:      NewTurnStore(),
		ChunkerCfg: DefaultChunkerConfig(),
		TopK:       DefaultTopK,
		MinScore:   DefaultMinScore,
	}
}

// StoreDocument chunks text, fingerprints each chunk, and persists it. The
// returned chunks are in document order.
func (e *Engine) StoreDocument(docID string, text string, metadata map[string]string) []*models.MemoryChunk {
	raws := ChunkText(text, e.ChunkerCfg)
	out := make([]*models.MemoryChunk, 0, len(raws))
	for _, rc := range raws {
		md := make(map[string]string, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
		chunk := &models.MemoryChunk{
			Key:         fmt.Sprintf("%s_chunk_%d", docID, rc.Index),
			DocID:       docID,
			Index:       rc.Index,
			Text:        rc.Text,
			Fingerprint: Fingerprint(rc.Text),
			Metadata:    md,
		}
		e.Store.Put(chunk)
		out = append(out, chunk)
	}
	return out
}

// ClearDocument removes all chunks for a document.
func (e *Engine) ClearDocument(docID string) {
	e.Store.ClearDocument(docID)
}

// Retrieve returns the top-K chunk texts for a query using the TF-IDF-like
// primary path. Chunks whose stored fingerprint no longer matches their
// text are left out. Falls back to the set-overlap path when the corpus is
// too small to make IDF meaningful (fewer than 2 chunks) or when the
// TF-IDF path returns nothing.
func (e *Engine) Retrieve(query string, k int) []*models.MemoryChunk {
	all := e.Store.All()
	valid := make([]*models.MemoryChunk, 0, len(all))
	for _, c := range all {
		if Fingerprint(c.Text) == c.Fingerprint {
			valid = append(valid, c)
		}
	}
	if len(valid) >= 2 {
		if out := Retrieve(query, valid, k, e.MinScore); len(out) > 0 {
			return out
		}
	}
	return RetrieveFallback(query, valid, k)
}

// AssembleContext retrieves relevant chunks and wraps them with the fixed
// delimiter markers, appending the original message. If no chunks match,
// the message is returned unchanged. Satisfies taskrouter.MemoryEngine.
func (e *Engine) AssembleContext(_ context.Context, _ string, query string) (string, error) {
	chunks := e.Retrieve(query, e.TopK)
	if len(chunks) == 0 {
		return query, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var sb strings.Builder
	sb.WriteString(contextOpenTag)
	sb.WriteString("\n")
	sb.WriteString(strings.Join(texts, contextSeparator))
	sb.WriteString("\n")
	sb.WriteString(contextCloseTag)
	sb.WriteString("\n\nCurrent request: ")
	sb.WriteString(query)
	return sb.String(), nil
}

// RecordTurn persists one conversation turn. Satisfies taskrouter.MemoryEngine.
func (e *Engine) RecordTurn(_ context.Context, channel, userID, role, content string) error {
	e.Turns.Append(channel, userID, role, content)
	return nil
}

// WarmUp runs a full integrity verification over the current corpus on
// cold start. Concurrent callers (e.g. several goroutines racing to serve
// the first request after startup) collapse into a single VerifyAll pass
// via singleflight rather than each re-hashing every chunk.
func (e *Engine) WarmUp(_ context.Context) (VerifyAllResult, error) {
	v, err, _ := e.warmUp.Do("verify-all", func() (any, error) {
		return e.Store.VerifyAll(), nil
	})
	if err != nil {
		return VerifyAllResult{}, err
	}
	return v.(VerifyAllResult), nil
}

// Verify checks one chunk's integrity.
func (e *Engine) Verify(key string) error {
	return e.Store.Verify(key)
}

// VerifyAll checks every stored chunk's integrity.
func (e *Engine) VerifyAll() VerifyAllResult {
	return e.Store.VerifyAll()
}
