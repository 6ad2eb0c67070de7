// Package configstore persists the runtime's durable state: workspaces,
// the model catalog, local-model weight blobs, memory chunks, session
// messages, encrypted credential envelopes, and the audit log. The default
// implementation is in-memory; an optional PostgreSQL-backed
// implementation is available for production deployments.
package configstore

import (
	"context"
	"time"

	"github.com/agentrt/runtime/internal/models"
)

// Store is the composed storage interface every collection the runtime
// persists depends on. Handler and engine code depends on this interface,
// not on a concrete implementation, so swapping MemoryStore for
// PostgresStore requires no other change.
type Store interface {
	WorkspaceStore
	ModelCatalogStore
	ModelWeightStore
	MemoryChunkStore
	SessionMessageStore
	CredentialStore
	AuditStore

	Ping(ctx context.Context) error
	Close() error
}

// WorkspaceStore manages Workspace records (the teacher's tenant concept,
// renamed for this domain).
type WorkspaceStore interface {
	ListWorkspaces(ctx context.Context) ([]models.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*models.Workspace, error)
	CreateWorkspace(ctx context.Context, ws *models.Workspace) error
}

// ModelCatalogStore persists the catalog of models known to the runtime,
// across all registered providers.
type ModelCatalogStore interface {
	ListModels(ctx context.Context, provider string) ([]models.ModelInfo, error)
	PutModels(ctx context.Context, provider string, models []models.ModelInfo) error
}

// ModelWeightStore persists local-model weight blobs, addressed by model
// ID, for the LOCAL route's executor to load.
type ModelWeightStore interface {
	GetWeights(ctx context.Context, modelID string) ([]byte, error)
	PutWeights(ctx context.Context, modelID string, blob []byte) error
	DeleteWeights(ctx context.Context, modelID string) error
}

// MemoryChunkStore persists MemoryChunk records. memoryengine.Engine does
// not use it: its ChunkStore keeps chunks in process memory only.
type MemoryChunkStore interface {
	PutChunk(ctx context.Context, chunk *models.MemoryChunk) error
	ListChunks(ctx context.Context, docID string) ([]models.MemoryChunk, error)
	AllChunks(ctx context.Context) ([]models.MemoryChunk, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// SessionMessageStore persists ConversationTurn records. memoryengine.Engine
// does not use it: its TurnStore keeps turns in process memory only.
type SessionMessageStore interface {
	AppendTurn(ctx context.Context, turn models.ConversationTurn) error
	ListTurns(ctx context.Context, channel, userID string) ([]models.ConversationTurn, error)
}

// CredentialStore persists encrypted credential envelopes, one per
// (workspace, provider) pair. Plaintext credentials never reach this layer.
type CredentialStore interface {
	PutCredential(ctx context.Context, workspace, provider string, env models.EncryptedEnvelope) error
	GetCredential(ctx context.Context, workspace, provider string) (models.EncryptedEnvelope, error)
	DeleteCredential(ctx context.Context, workspace, provider string) error
}

// AuditFilter narrows a ListAuditEvents query.
type AuditFilter struct {
	Workspace string
	Action    string
	Since     *time.Time
	Limit     int
}

// AuditStore persists AuditEvent records — one entry per privileged or
// state-changing operation (credential rotation, workspace creation,
// config change).
type AuditStore interface {
	CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error)
}
