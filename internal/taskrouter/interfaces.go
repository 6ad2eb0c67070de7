package taskrouter

import "context"

// MemoryEngine is the Router's one-directional collaborator: the Router
// calls into Memory to assemble context and to persist turns. Memory never
// calls back into the Router.
type MemoryEngine interface {
	AssembleContext(ctx context.Context, channel, query string) (string, error)
	RecordTurn(ctx context.Context, channel, userID, role, content string) error
}

// TokenSink receives streamed tokens as they are produced.
type TokenSink func(token string)

// LocalExecutor is the external on-disk inference engine contract: load one
// model, stream tokens for a prompt, stop promptly on context cancellation.
type LocalExecutor interface {
	Infer(ctx context.Context, prompt string, onToken TokenSink) error
}

// CloudExecutor is the Provider Abstraction's streaming chat contract as
// seen by the Router.
type CloudExecutor interface {
	ChatStream(ctx context.Context, prompt string, onToken TokenSink) error
}
