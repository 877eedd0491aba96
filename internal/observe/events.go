package observe

import "time"

// EventKind enumerates the discrete timeline events.
type EventKind string

const (
	EventRequestReceived   EventKind = "request_received"
	EventContextBuilt      EventKind = "context_built"
	EventPromptAssembled   EventKind = "prompt_assembled"
	EventModelCalled       EventKind = "model_called"
	EventActionsExtracted  EventKind = "actions_extracted"
	EventResponseDelivered EventKind = "response_delivered"
	EventError             EventKind = "error"
)

// Event is one discrete timeline record, independently emittable without an
// envelope. Constructors below are called on hot paths and do no validation.
type Event struct {
	Kind       EventKind `json:"event"`
	TraceID    string    `json:"traceId"`
	RequestID  string    `json:"requestId"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs,omitempty"`

	EntryPoint string `json:"entryPoint,omitempty"`
	Platform   string `json:"platform,omitempty"`

	MemoriesIncluded int `json:"memoriesIncluded,omitempty"`

	MessageCount int `json:"messageCount,omitempty"`
	ToolCount    int `json:"toolCount,omitempty"`

	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`

	ExtractedCount int `json:"extractedCount,omitempty"`
	ValidatedCount int `json:"validatedCount,omitempty"`
	DroppedCount   int `json:"droppedCount,omitempty"`

	ContentLength int `json:"contentLength,omitempty"`
	ActionCount   int `json:"actionCount,omitempty"`

	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
}

func newEvent(kind EventKind, tc TraceContext) Event {
	return Event{
		Kind:      kind,
		TraceID:   tc.TraceID,
		RequestID: tc.RequestID,
		Timestamp: time.Now().UTC(),
	}
}

// RequestReceived marks request entry.
func RequestReceived(tc TraceContext) Event {
	e := newEvent(EventRequestReceived, tc)
	e.EntryPoint = tc.EntryPoint
	e.Platform = tc.Platform
	return e
}

// ContextBuilt marks context assembly completion.
func ContextBuilt(tc TraceContext, memoriesIncluded int, durationMs int64) Event {
	e := newEvent(EventContextBuilt, tc)
	e.MemoriesIncluded = memoriesIncluded
	e.DurationMs = durationMs
	return e
}

// PromptAssembled marks prompt construction completion.
func PromptAssembled(tc TraceContext, messageCount, toolCount int) Event {
	e := newEvent(EventPromptAssembled, tc)
	e.MessageCount = messageCount
	e.ToolCount = toolCount
	return e
}

// ModelCalled records the provider round trip.
func ModelCalled(tc TraceContext, model string, durationMs int64, inputTokens, outputTokens int, finishReason string) Event {
	e := newEvent(EventModelCalled, tc)
	e.Model = model
	e.DurationMs = durationMs
	e.InputTokens = inputTokens
	e.OutputTokens = outputTokens
	e.FinishReason = finishReason
	return e
}

// ActionsExtracted records post-processing counts.
func ActionsExtracted(tc TraceContext, extracted, validated, dropped int, durationMs int64) Event {
	e := newEvent(EventActionsExtracted, tc)
	e.ExtractedCount = extracted
	e.ValidatedCount = validated
	e.DroppedCount = dropped
	e.DurationMs = durationMs
	return e
}

// ResponseDelivered marks the response leaving the service.
func ResponseDelivered(tc TraceContext, contentLength, actionCount int, totalMs int64) Event {
	e := newEvent(EventResponseDelivered, tc)
	e.ContentLength = contentLength
	e.ActionCount = actionCount
	e.DurationMs = totalMs
	return e
}

// ErrorEvent records a failure at a named stage.
func ErrorEvent(tc TraceContext, stage string, err error) Event {
	e := newEvent(EventError, tc)
	e.Stage = stage
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
