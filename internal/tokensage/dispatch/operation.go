// Package dispatch routes a resolved intent to its bound operation and
// executes it with bounded retries, linear backoff, and typed failure
// classification. Operations are opaque to the dispatcher: it only needs
// their declared name and whether Validate/Execute fail.
package dispatch

import (
	"context"

	"github.com/avelnar/tokensage/internal/tokensage/params"
)

// Content is the payload of a dispatch message: the raw query text plus the
// built parameters.
type Content struct {
	Text   string            `json:"text"`
	Params params.Parameters `json:"params"`
}

// Message is the envelope handed to an operation.
type Message struct {
	Content Content `json:"content"`
}

// Operation is one bound backend operation. The runtime handle is the opaque
// capability supplied by the host; the dispatcher passes it through without
// inspecting it.
type Operation interface {
	// Name is the operation's routing key.
	Name() string
	// Validate checks preconditions (typically credentials) without side
	// effects. Returning false or an error aborts the dispatch before the
	// first execution attempt.
	Validate(ctx context.Context, runtime any, msg *Message) (bool, error)
	// Execute performs the operation and returns its raw result payload.
	Execute(ctx context.Context, runtime any, msg *Message) (any, error)
}

// Registry binds intents to operations. Bindings are established at startup
// and read-only afterwards.
type Registry struct {
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Bind routes intent to op. Later bindings for the same intent replace
// earlier ones.
func (r *Registry) Bind(intent string, op Operation) {
	r.ops[intent] = op
}

// Lookup returns the operation bound to intent.
func (r *Registry) Lookup(intent string) (Operation, bool) {
	op, ok := r.ops[intent]
	return op, ok
}

// Intents returns the bound intent names in no particular order; used for
// diagnostics and the help surface.
func (r *Registry) Intents() []string {
	out := make([]string, 0, len(r.ops))
	for k := range r.ops {
		out = append(out, k)
	}
	return out
}
