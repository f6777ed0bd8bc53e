package domain

import "context"

// NodeExecutionContext is the read-only bundle passed into an executor's
// Validate and Execute. Outputs maps prior nodes' output variables to
// their results; the driver appends by copy, so executors may read it
// without synchronization.
type NodeExecutionContext struct {
	RunID      string
	PlaybookID string
	TenantID   string
	Node       *PlaybookNode
	Action     *AnalysisAction
	ActionKind ActionKind
	Scopes     *ResolvedScopes
	Document   *DocumentContext
	Outputs    map[string]NodeOutput
}

type identityKey struct{}

// WithRequestIdentity attaches the caller's request-scoped credential
// (typically a bearer token) to the context.
func WithRequestIdentity(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, identityKey{}, token)
}

// RequestIdentityFrom returns the caller's request-scoped credential.
// Executors that act as the caller (e.g. send_email) fail when absent.
func RequestIdentityFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(identityKey{}).(string)
	return token, ok && token != ""
}
