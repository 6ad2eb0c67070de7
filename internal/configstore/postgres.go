package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentrt/runtime/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store against PostgreSQL via pgx. Intended for
// production deployments where the config store must survive restarts and
// be shared across replicas; MemoryStore remains the default for local
// development and tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the runtime's
// tables exist.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("configstore.NewPostgresStore: parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configstore.NewPostgresStore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("configstore.NewPostgresStore: ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS model_catalog (
			provider TEXT NOT NULL,
			model_id TEXT NOT NULL,
			PRIMARY KEY (provider, model_id)
		)`,
		`CREATE TABLE IF NOT EXISTS model_weights (
			model_id TEXT PRIMARY KEY,
			blob BYTEA NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_chunks (
			key TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			idx INT NOT NULL,
			text TEXT NOT NULL,
			fingerprint BYTEA NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS memory_chunks_doc_id_idx ON memory_chunks (doc_id, idx)`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			key TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversation_turns_conv_idx ON conversation_turns (channel, user_id, ts)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			workspace TEXT NOT NULL,
			provider TEXT NOT NULL,
			ciphertext BYTEA NOT NULL,
			salt BYTEA NOT NULL,
			iv BYTEA NOT NULL,
			PRIMARY KEY (workspace, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			workspace TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS audit_events_ws_idx ON audit_events (workspace, ts DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("configstore.ensureSchema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *PostgresStore) Close() error                   { s.pool.Close(); return nil }

// ── Workspace Store ─────────────────────────────────────────

func (s *PostgresStore) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("configstore.ListWorkspaces: %w", err)
	}
	defer rows.Close()

	var out []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("configstore.ListWorkspaces: scan: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM workspaces WHERE id = $1`, id).
		Scan(&ws.ID, &ws.Name, &ws.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &NotFoundError{Entity: "workspace", Key: id}
		}
		return nil, fmt.Errorf("configstore.GetWorkspace: %w", err)
	}
	return &ws, nil
}

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workspaces (id, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		ws.ID, ws.Name, ws.CreatedAt)
	if err != nil {
		return fmt.Errorf("configstore.CreateWorkspace: %w", err)
	}
	return nil
}

// ── Model Catalog Store ─────────────────────────────────────

func (s *PostgresStore) ListModels(ctx context.Context, provider string) ([]models.ModelInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT provider, model_id FROM model_catalog WHERE provider = $1`, provider)
	if err != nil {
		return nil, fmt.Errorf("configstore.ListModels: %w", err)
	}
	defer rows.Close()

	var out []models.ModelInfo
	for rows.Next() {
		var mi models.ModelInfo
		if err := rows.Scan(&mi.Provider, &mi.ID); err != nil {
			return nil, fmt.Errorf("configstore.ListModels: scan: %w", err)
		}
		out = append(out, mi)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutModels(ctx context.Context, provider string, list []models.ModelInfo) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("configstore.PutModels: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM model_catalog WHERE provider = $1`, provider); err != nil {
		return fmt.Errorf("configstore.PutModels: delete: %w", err)
	}
	for _, m := range list {
		if _, err := tx.Exec(ctx, `INSERT INTO model_catalog (provider, model_id) VALUES ($1, $2)`, provider, m.ID); err != nil {
			return fmt.Errorf("configstore.PutModels: insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ── Model Weight Store ───────────────────────────────────────

func (s *PostgresStore) GetWeights(ctx context.Context, modelID string) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT blob FROM model_weights WHERE model_id = $1`, modelID).Scan(&blob)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &NotFoundError{Entity: "model weights", Key: modelID}
		}
		return nil, fmt.Errorf("configstore.GetWeights: %w", err)
	}
	return blob, nil
}

func (s *PostgresStore) PutWeights(ctx context.Context, modelID string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO model_weights (model_id, blob) VALUES ($1, $2)
		ON CONFLICT (model_id) DO UPDATE SET blob = EXCLUDED.blob`,
		modelID, blob)
	if err != nil {
		return fmt.Errorf("configstore.PutWeights: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteWeights(ctx context.Context, modelID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM model_weights WHERE model_id = $1`, modelID)
	if err != nil {
		return fmt.Errorf("configstore.DeleteWeights: %w", err)
	}
	return nil
}

// ── Memory Chunk Store ───────────────────────────────────────

func (s *PostgresStore) PutChunk(ctx context.Context, chunk *models.MemoryChunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	md, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("configstore.PutChunk: marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO memory_chunks (key, doc_id, idx, text, fingerprint, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET text = EXCLUDED.text, fingerprint = EXCLUDED.fingerprint, metadata = EXCLUDED.metadata`,
		chunk.Key, chunk.DocID, chunk.Index, chunk.Text, chunk.Fingerprint[:], md, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("configstore.PutChunk: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanChunks(rows pgx.Rows) ([]models.MemoryChunk, error) {
	var out []models.MemoryChunk
	for rows.Next() {
		var c models.MemoryChunk
		var fp []byte
		var md []byte
		if err := rows.Scan(&c.Key, &c.DocID, &c.Index, &c.Text, &fp, &md, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("configstore: scan chunk: %w", err)
		}
		copy(c.Fingerprint[:], fp)
		if len(md) > 0 {
			if err := json.Unmarshal(md, &c.Metadata); err != nil {
				return nil, fmt.Errorf("configstore: unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListChunks(ctx context.Context, docID string) ([]models.MemoryChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, doc_id, idx, text, fingerprint, metadata, created_at
		FROM memory_chunks WHERE doc_id = $1 ORDER BY idx`, docID)
	if err != nil {
		return nil, fmt.Errorf("configstore.ListChunks: %w", err)
	}
	defer rows.Close()
	return s.scanChunks(rows)
}

func (s *PostgresStore) AllChunks(ctx context.Context) ([]models.MemoryChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, doc_id, idx, text, fingerprint, metadata, created_at FROM memory_chunks`)
	if err != nil {
		return nil, fmt.Errorf("configstore.AllChunks: %w", err)
	}
	defer rows.Close()
	return s.scanChunks(rows)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memory_chunks WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("configstore.DeleteDocument: %w", err)
	}
	return nil
}

// ── Session Message Store ───────────────────────────────────

func (s *PostgresStore) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_turns (key, channel, user_id, role, content, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`,
		turn.Key, turn.Channel, turn.UserID, turn.Role, turn.Content, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("configstore.AppendTurn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, channel, userID string) ([]models.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, channel, user_id, role, content, ts
		FROM conversation_turns WHERE channel = $1 AND user_id = $2 ORDER BY ts`, channel, userID)
	if err != nil {
		return nil, fmt.Errorf("configstore.ListTurns: %w", err)
	}
	defer rows.Close()

	var out []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.Key, &t.Channel, &t.UserID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("configstore.ListTurns: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ── Credential Store ─────────────────────────────────────────

func (s *PostgresStore) PutCredential(ctx context.Context, workspace, provider string, env models.EncryptedEnvelope) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (workspace, provider, ciphertext, salt, iv)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workspace, provider) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, salt = EXCLUDED.salt, iv = EXCLUDED.iv`,
		workspace, provider, env.Ciphertext, env.Salt[:], env.IV[:])
	if err != nil {
		return fmt.Errorf("configstore.PutCredential: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredential(ctx context.Context, workspace, provider string) (models.EncryptedEnvelope, error) {
	var env models.EncryptedEnvelope
	var salt, iv []byte
	err := s.pool.QueryRow(ctx, `
		SELECT ciphertext, salt, iv FROM credentials WHERE workspace = $1 AND provider = $2`,
		workspace, provider).Scan(&env.Ciphertext, &salt, &iv)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.EncryptedEnvelope{}, &NotFoundError{Entity: "credential", Key: workspace + "/" + provider}
		}
		return models.EncryptedEnvelope{}, fmt.Errorf("configstore.GetCredential: %w", err)
	}
	copy(env.Salt[:], salt)
	copy(env.IV[:], iv)
	env.Encrypted = true
	return env, nil
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, workspace, provider string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM credentials WHERE workspace = $1 AND provider = $2`, workspace, provider)
	if err != nil {
		return fmt.Errorf("configstore.DeleteCredential: %w", err)
	}
	return nil
}

// ── Audit Store ──────────────────────────────────────────────

func (s *PostgresStore) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, workspace, action, detail, ts) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Workspace, event.Action, event.Detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("configstore.CreateAuditEvent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, workspace, action, detail, ts FROM audit_events WHERE 1=1`
	args := []any{}
	argN := 0
	next := func() int { argN++; return argN }

	if filter.Workspace != "" {
		query += fmt.Sprintf(" AND workspace = $%d", next())
		args = append(args, filter.Workspace)
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", next())
		args = append(args, filter.Action)
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", next())
		args = append(args, *filter.Since)
	}
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", next())
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("configstore.ListAuditEvents: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		if err := rows.Scan(&e.ID, &e.Workspace, &e.Action, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("configstore.ListAuditEvents: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
