// Package server provides the public entry point for composing the agent
// runtime: Task Router, Memory Engine, Provider Abstraction, Config Store,
// and Channel Gateway wired together behind one HTTP handler.
//
// Usage:
//
//	srv, err := server.New(ctx, config.Load(), nil)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Config.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/configstore"
	"github.com/agentrt/runtime/internal/credentials"
	"github.com/agentrt/runtime/internal/gateway"
	"github.com/agentrt/runtime/internal/memoryengine"
	"github.com/agentrt/runtime/internal/models"
	"github.com/agentrt/runtime/internal/providers"
	"github.com/agentrt/runtime/internal/taskrouter"
	"github.com/agentrt/runtime/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// defaultWorkspace is the bootstrap workspace credentials are sealed under
// until per-workspace provisioning (not yet built) assigns its own.
const defaultWorkspace = "default"

// Server holds the initialized agent runtime.
type Server struct {
	Config *config.Config

	// Handler is the HTTP handler with all routes and middleware — health,
	// version, routing status, and webhook ingestion.
	Handler http.Handler

	// Store is the durable config store (in-memory by default, or
	// PostgreSQL-backed at DATABASE_URL when AGENTRT_USE_POSTGRES is set).
	Store configstore.Store

	// Router is the Task Router: priority scheduling, complexity scoring,
	// LOCAL/CLOUD routing.
	Router *taskrouter.Router

	// Memory is the Memory Engine: chunking, content-addressed storage,
	// keyword-weighted retrieval.
	Memory *memoryengine.Engine

	// Providers is the Provider Abstraction's driver registry.
	Providers *providers.Registry

	// Dispatcher fans Router events out to the Gateway's webhook and bot
	// request handlers.
	Dispatcher *gateway.Dispatcher

	shutdownTelemetry func(context.Context) error
}

// bootstrapCredential seals the environment-sourced provider API key into
// the config store's CredentialStore under defaultWorkspace, then reads it
// straight back out through the same seal/open path the rest of the
// runtime will use once per-workspace credential provisioning exists. The
// plaintext from cfg is used only as the seed; every subsequent lookup goes
// through the encrypted envelope.
func bootstrapCredential(ctx context.Context, store configstore.Store, pc config.ProviderConfig) (string, error) {
	bundle := models.CredentialBundle{pc.Name: pc.APIKey}
	env, err := credentials.Seal(bundle, pc.CredentialPassphrase)
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	if err := store.PutCredential(ctx, defaultWorkspace, pc.Name, env); err != nil {
		return "", fmt.Errorf("persist: %w", err)
	}

	stored, err := store.GetCredential(ctx, defaultWorkspace, pc.Name)
	if err != nil {
		return "", fmt.Errorf("read back: %w", err)
	}
	opened, err := credentials.Open(stored, pc.CredentialPassphrase)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return opened[pc.Name], nil
}

// routerSubmitter adapts taskrouter.Router's Submit to gateway.TaskSubmitter
// — the two packages define independent Ack types so neither imports the
// other's internals.
type routerSubmitter struct{ r *taskrouter.Router }

func (s routerSubmitter) Submit(task *models.Task) (gateway.Ack, error) {
	ack, err := s.r.Submit(task)
	return gateway.Ack{ID: ack.ID, QueuedPosition: ack.QueuedPosition}, err
}

// bridgeEvents copies Router events onto a gateway.Event channel the
// Dispatcher can fan out, translating the router's typed EventKind into the
// gateway's plain string Kind.
func bridgeEvents(src <-chan taskrouter.Event) <-chan gateway.Event {
	out := make(chan gateway.Event)
	go func() {
		defer close(out)
		for ev := range src {
			out <- gateway.Event{
				Kind:     string(ev.Kind),
				ID:       ev.ID,
				Response: ev.Response,
				Reason:   ev.Reason,
				ErrorMsg: ev.ErrorMsg,
			}
		}
	}()
	return out
}

// New builds a fully wired Server: config store, memory engine, provider
// registry, task router, and gateway HTTP handler. local may be nil if no
// on-disk inference engine is configured for this deployment — the Router
// then sends tasks to CLOUD, except privacy-flagged tasks, which still
// route LOCAL and fail with ErrNoExecutorAvailable.
func New(ctx context.Context, cfg *config.Config, local taskrouter.LocalExecutor) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var store configstore.Store
	if cfg.Database.UsePostgres {
		pg, err := configstore.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres config store: %w", err)
		}
		store = pg
	} else {
		store = configstore.NewMemoryStore()
	}

	memEngine := memoryengine.NewEngine()
	memEngine.TopK = cfg.Memory.TopK
	if cfg.Memory.ChunkSize > 0 {
		memEngine.ChunkerCfg.TargetWords = cfg.Memory.ChunkSize
	}

	registry := providers.NewRegistry()

	var cloud taskrouter.CloudExecutor
	if cfg.Provider.APIKey != "" {
		apiKey, err := bootstrapCredential(ctx, store, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("seal provider credential: %w", err)
		}
		cloud = &providers.CloudAdapter{
			Registry: registry,
			Provider: cfg.Provider.Name,
			Model:    cfg.Provider.Model,
			Cred:     providers.Credential{APIKey: apiKey, Endpoint: cfg.Provider.Endpoint},
		}
	}

	router := taskrouter.NewRouter(memEngine, local, cloud, cfg.Routing.ToRouterConfig())
	router.WithMaxDepth(cfg.Queue.MaxDepth)
	localModelID := ""
	if local != nil {
		localModelID = cfg.Local.ModelID
	}
	router.SetExecutorStatus(local != nil, localModelID, cloud != nil)

	dispatcher := gateway.NewDispatcher(bridgeEvents(router.Events()))

	handler := gateway.NewRouter(cfg.Version, routerSubmitter{r: router}, router, dispatcher)

	log.Info().
		Str("routing_mode", cfg.Routing.Mode).
		Int("queue_max_depth", cfg.Queue.MaxDepth).
		Msg("agent runtime initialized")

	return &Server{
		Config:            cfg,
		Handler:           handler,
		Store:             store,
		Router:            router,
		Memory:            memEngine,
		Providers:         registry,
		Dispatcher:        dispatcher,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// Shutdown releases resources held by the server (telemetry exporter,
// config store connection).
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Store.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing config store")
	}
	if s.shutdownTelemetry != nil {
		return s.shutdownTelemetry(ctx)
	}
	return nil
}
