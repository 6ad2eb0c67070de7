package configstore

import (
	"context"
	"sync"
	"time"

	"github.com/agentrt/runtime/internal/models"
)

// MemoryStore implements Store with in-memory maps. Used as the default
// store and in tests; no data survives a process restart.
type MemoryStore struct {
	mu sync.RWMutex

	workspaces map[string]*models.Workspace // key: id

	catalog map[string][]models.ModelInfo // key: provider

	weights map[string][]byte // key: model ID

	chunks   map[string]*models.MemoryChunk // key: chunk key
	docOrder map[string][]string            // key: docID -> chunk keys in order

	turns map[string][]models.ConversationTurn // key: channel|user

	credentials map[string]models.EncryptedEnvelope // key: workspace|provider

	auditEvents []models.AuditEvent // append-only log
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces:  make(map[string]*models.Workspace),
		catalog:     make(map[string][]models.ModelInfo),
		weights:     make(map[string][]byte),
		chunks:      make(map[string]*models.MemoryChunk),
		docOrder:    make(map[string][]string),
		turns:       make(map[string][]models.ConversationTurn),
		credentials: make(map[string]models.EncryptedEnvelope),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

// ── Workspace Store ─────────────────────────────────────────

func (m *MemoryStore) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		out = append(out, *ws)
	}
	return out, nil
}

func (m *MemoryStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, &NotFoundError{Entity: "workspace", Key: id}
	}
	cp := *ws
	return &cp, nil
}

func (m *MemoryStore) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	cp := *ws
	m.workspaces[ws.ID] = &cp
	return nil
}

// ── Model Catalog Store ─────────────────────────────────────

func (m *MemoryStore) ListModels(ctx context.Context, provider string) ([]models.ModelInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ModelInfo, len(m.catalog[provider]))
	copy(out, m.catalog[provider])
	return out, nil
}

func (m *MemoryStore) PutModels(ctx context.Context, provider string, list []models.ModelInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]models.ModelInfo, len(list))
	copy(cp, list)
	m.catalog[provider] = cp
	return nil
}

// ── Model Weight Store ───────────────────────────────────────

func (m *MemoryStore) GetWeights(ctx context.Context, modelID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.weights[modelID]
	if !ok {
		return nil, &NotFoundError{Entity: "model weights", Key: modelID}
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *MemoryStore) PutWeights(ctx context.Context, modelID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.weights[modelID] = cp
	return nil
}

func (m *MemoryStore) DeleteWeights(ctx context.Context, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.weights, modelID)
	return nil
}

// ── Memory Chunk Store ───────────────────────────────────────

func (m *MemoryStore) PutChunk(ctx context.Context, chunk *models.MemoryChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chunks[chunk.Key]; !exists {
		m.docOrder[chunk.DocID] = append(m.docOrder[chunk.DocID], chunk.Key)
	}
	cp := *chunk
	m.chunks[chunk.Key] = &cp
	return nil
}

func (m *MemoryStore) ListChunks(ctx context.Context, docID string) ([]models.MemoryChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.docOrder[docID]
	out := make([]models.MemoryChunk, 0, len(keys))
	for _, k := range keys {
		if c, ok := m.chunks[k]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemoryStore) AllChunks(ctx context.Context) ([]models.MemoryChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MemoryChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.docOrder[docID] {
		delete(m.chunks, k)
	}
	delete(m.docOrder, docID)
	return nil
}

// ── Session Message Store ───────────────────────────────────

func (m *MemoryStore) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := turn.Channel + "|" + turn.UserID
	m.turns[key] = append(m.turns[key], turn)
	return nil
}

func (m *MemoryStore) ListTurns(ctx context.Context, channel, userID string) ([]models.ConversationTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := m.turns[channel+"|"+userID]
	out := make([]models.ConversationTurn, len(existing))
	copy(out, existing)
	return out, nil
}

// ── Credential Store ─────────────────────────────────────────

func (m *MemoryStore) PutCredential(ctx context.Context, workspace, provider string, env models.EncryptedEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[workspace+"|"+provider] = env
	return nil
}

func (m *MemoryStore) GetCredential(ctx context.Context, workspace, provider string) (models.EncryptedEnvelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.credentials[workspace+"|"+provider]
	if !ok {
		return models.EncryptedEnvelope{}, &NotFoundError{Entity: "credential", Key: workspace + "/" + provider}
	}
	return env, nil
}

func (m *MemoryStore) DeleteCredential(ctx context.Context, workspace, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credentials, workspace+"|"+provider)
	return nil
}

// ── Audit Store ──────────────────────────────────────────────

func (m *MemoryStore) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.auditEvents = append(m.auditEvents, *event)
	return nil
}

func (m *MemoryStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []models.AuditEvent
	for i := len(m.auditEvents) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.auditEvents[i]
		if filter.Workspace != "" && e.Workspace != filter.Workspace {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
