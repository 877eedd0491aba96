package action

import "context"

// RequestContext carries the authenticated identity for a processing batch.
type RequestContext struct {
	UserID    string
	TraceID   string
	SessionID string
	Platform  string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Authorized bool
	Reason     string
}

// Authorizer decides whether a validated action is permitted for the
// requesting user. Checks may hit storage, so they take a context.
type Authorizer interface {
	Authorize(ctx context.Context, typ string, params map[string]any, rc RequestContext) Decision
}

// AllowAll authorizes every action unconditionally.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, map[string]any, RequestContext) Decision {
	return Decision{Authorized: true}
}
