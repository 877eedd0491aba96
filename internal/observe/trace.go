// Package observe carries the request-lifecycle observability model: trace
// contexts, debug envelopes, discrete events, and delivery to the telemetry
// backend.
package observe

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Trace propagation headers accepted from clients. All optional.
const (
	HeaderTraceID    = "x-trace-id"
	HeaderSessionID  = "x-session-id"
	HeaderEntryPoint = "x-entry-point"
	HeaderAppVersion = "x-app-version"
	HeaderPlatform   = "x-platform"
)

const unknown = "unknown"

// TraceContext ties all logs and events for one request together. Immutable
// once created; not persisted beyond the request's logging output.
type TraceContext struct {
	TraceID    string    `json:"traceId"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	EntryPoint string    `json:"entryPoint"`
	RequestID  string    `json:"requestId"`
	AppVersion string    `json:"appVersion"`
	Platform   string    `json:"platform"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ExtractTraceContext derives the tracing identity from inbound request
// headers. The request id and timestamp are always generated server-side:
// an untrusted client must not be able to inject or collide request ids.
func ExtractTraceContext(r *http.Request, userID string) TraceContext {
	return TraceContext{
		TraceID:    headerOr(r, HeaderTraceID, uuid.New().String()),
		SessionID:  headerOr(r, HeaderSessionID, unknown),
		UserID:     userID,
		EntryPoint: headerOr(r, HeaderEntryPoint, unknown),
		RequestID:  uuid.New().String(),
		AppVersion: headerOr(r, HeaderAppVersion, unknown),
		Platform:   headerOr(r, HeaderPlatform, unknown),
		ReceivedAt: time.Now().UTC(),
	}
}

// InternalTraceContext builds a context for background invocations with no
// inbound request.
func InternalTraceContext(userID string) TraceContext {
	return TraceContext{
		TraceID:    uuid.New().String(),
		SessionID:  "internal",
		UserID:     userID,
		EntryPoint: "internal",
		RequestID:  uuid.New().String(),
		AppVersion: unknown,
		Platform:   "server",
		ReceivedAt: time.Now().UTC(),
	}
}

func headerOr(r *http.Request, key, fallback string) string {
	if v := r.Header.Get(key); v != "" {
		return v
	}
	return fallback
}
