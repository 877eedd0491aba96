package observe

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Envelope is the complete structured record of one AI request's lifecycle,
// used for debugging and incident replay.
type Envelope struct {
	TraceID    string    `json:"traceId"`
	RequestID  string    `json:"requestId"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	EntryPoint string    `json:"entryPoint"`
	Platform   string    `json:"platform"`
	AppVersion string    `json:"appVersion"`
	ReceivedAt time.Time `json:"receivedAt"`

	Intent         IntentInfo         `json:"intent"`
	Context        ContextReport      `json:"context"`
	Prompt         PromptArtifacts    `json:"prompt"`
	ModelCall      ModelCallInfo      `json:"modelCall"`
	PostProcessing PostProcessingInfo `json:"postProcessing"`
	Response       ResponseInfo       `json:"response"`
	Replay         ReplayData         `json:"replay"`

	TotalMs int64 `json:"totalMs"`
}

// IntentInfo snapshots the request input.
type IntentInfo struct {
	UserMessage    string `json:"userMessage"`
	VerseReference string `json:"verseReference,omitempty"`
}

// ContextReport describes how the prompt context was assembled.
type ContextReport struct {
	MemoriesRetrieved    int              `json:"memoriesRetrieved"`
	MemoriesIncluded     int              `json:"memoriesIncluded"`
	Memories             []MemoryDetail   `json:"memories"`
	IntentClassification string           `json:"intentClassification,omitempty"`
	UsageMode            string           `json:"usageMode,omitempty"`
	TokenBudget          TokenBudget      `json:"tokenBudget"`
	Compaction           *CompactionStats `json:"compaction,omitempty"`
}

// MemoryDetail records one memory's inclusion decision.
type MemoryDetail struct {
	ID       string `json:"id"`
	Included bool   `json:"included"`
	Reason   string `json:"reason,omitempty"`
}

// TokenBudget breaks down estimated prompt token usage.
type TokenBudget struct {
	SystemPromptTokens int `json:"systemPromptTokens"`
	MessageTokens      int `json:"messageTokens"`
	Budget             int `json:"budget,omitempty"`
}

// CompactionStats describes conversation compaction, when it ran.
type CompactionStats struct {
	MessagesBefore int `json:"messagesBefore"`
	MessagesAfter  int `json:"messagesAfter"`
	TokensSaved    int `json:"tokensSaved"`
}

// PromptArtifacts captures what was sent without storing the full prompt.
type PromptArtifacts struct {
	SystemPromptHash  string   `json:"systemPromptHash"`
	SystemPromptChars int      `json:"systemPromptChars"`
	MessageCount      int      `json:"messageCount"`
	EnabledTools      []string `json:"enabledTools"`
}

// ModelCallInfo records the provider call.
type ModelCallInfo struct {
	Model         string   `json:"model"`
	Temperature   float32  `json:"temperature"`
	MaxTokens     int      `json:"maxTokens"`
	LatencyMs     int64    `json:"latencyMs"`
	InputTokens   int      `json:"inputTokens"`
	OutputTokens  int      `json:"outputTokens"`
	FinishReason  string   `json:"finishReason,omitempty"`
	ToolCallCount int      `json:"toolCallCount"`
	ToolCallNames []string `json:"toolCallNames"`
}

// ExtractedAction flags one candidate's validation outcome.
type ExtractedAction struct {
	Type       string `json:"type"`
	Valid      bool   `json:"valid"`
	DropReason string `json:"dropReason,omitempty"`
}

// PostProcessingInfo summarizes action extraction and validation.
type PostProcessingInfo struct {
	Extracted      []ExtractedAction `json:"extracted"`
	ValidatedCount int               `json:"validatedCount"`
	DroppedCount   int               `json:"droppedCount"`
}

// ResponseInfo shapes the final response summary.
type ResponseInfo struct {
	ContentLength int    `json:"contentLength"`
	Preview       string `json:"preview,omitempty"`
	ActionCount   int    `json:"actionCount"`
	Category      string `json:"category,omitempty"`
}

// ReplayData stores the exact inputs needed to reissue the model call. It is
// never approximated or truncated; that is the contract that makes the
// envelope useful for incident replay.
type ReplayData struct {
	Messages    any         `json:"messages"`
	Tools       any         `json:"tools"`
	ModelParams ModelParams `json:"modelParams"`
}

// ModelParams are the provider parameters for replay.
type ModelParams struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float32 `json:"temperature"`
}

// PromptMessage is the minimal message view used for prompt accounting.
type PromptMessage struct {
	Role    string
	Content string
}

// previewLen bounds the response preview stored in the envelope.
const previewLen = 120

// EnvelopeBuilder accumulates an Envelope across one request. Sections may
// be set in any order; Build never fails and defaults every unset field,
// because an envelope is shipped even on partial and error paths.
type EnvelopeBuilder struct {
	env     Envelope
	started time.Time
}

// NewEnvelopeBuilder starts an envelope from a trace context.
func NewEnvelopeBuilder(tc TraceContext) *EnvelopeBuilder {
	return &EnvelopeBuilder{
		env: Envelope{
			TraceID:    tc.TraceID,
			RequestID:  tc.RequestID,
			SessionID:  tc.SessionID,
			UserID:     tc.UserID,
			EntryPoint: tc.EntryPoint,
			Platform:   tc.Platform,
			AppVersion: tc.AppVersion,
			ReceivedAt: tc.ReceivedAt,
		},
		started: time.Now(),
	}
}

// SetIntent records the request input snapshot.
func (b *EnvelopeBuilder) SetIntent(userMessage, verseReference string) *EnvelopeBuilder {
	b.env.Intent = IntentInfo{UserMessage: userMessage, VerseReference: verseReference}
	return b
}

// SetContextReport records context-assembly statistics.
func (b *EnvelopeBuilder) SetContextReport(report ContextReport) *EnvelopeBuilder {
	b.env.Context = report
	return b
}

// SetPromptArtifacts hashes the system prompt (so logs can be deduplicated
// without storing the full text) and backfills token-count estimates into
// the context report. The estimate is chars/4: a deliberate cheap proxy,
// good enough for observability dashboards and never used for billing or
// truncation decisions.
func (b *EnvelopeBuilder) SetPromptArtifacts(systemPrompt string, messages []PromptMessage, tools []string) *EnvelopeBuilder {
	b.env.Prompt = PromptArtifacts{
		SystemPromptHash:  hashPrompt(systemPrompt),
		SystemPromptChars: len(systemPrompt),
		MessageCount:      len(messages),
		EnabledTools:      tools,
	}

	messageChars := 0
	for _, m := range messages {
		messageChars += len(m.Content)
	}
	b.env.Context.TokenBudget.SystemPromptTokens = approxTokens(systemPrompt)
	b.env.Context.TokenBudget.MessageTokens = messageChars / 4
	return b
}

// SetModelCall records the provider call outcome.
func (b *EnvelopeBuilder) SetModelCall(info ModelCallInfo) *EnvelopeBuilder {
	b.env.ModelCall = info
	return b
}

// SetPostProcessing records extraction and validation outcomes.
func (b *EnvelopeBuilder) SetPostProcessing(extracted []ExtractedAction, validated, dropped int) *EnvelopeBuilder {
	b.env.PostProcessing = PostProcessingInfo{
		Extracted:      extracted,
		ValidatedCount: validated,
		DroppedCount:   dropped,
	}
	return b
}

// SetResponse records the final response shape.
func (b *EnvelopeBuilder) SetResponse(content string, actionCount int, category string) *EnvelopeBuilder {
	preview := content
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	b.env.Response = ResponseInfo{
		ContentLength: len(content),
		Preview:       preview,
		ActionCount:   actionCount,
		Category:      category,
	}
	return b
}

// SetReplayData stores the exact message list, tool schemas, and model
// parameters needed to reissue the call.
func (b *EnvelopeBuilder) SetReplayData(messages, tools any, params ModelParams) *EnvelopeBuilder {
	b.env.Replay = ReplayData{
		Messages:    messages,
		Tools:       tools,
		ModelParams: params,
	}
	return b
}

// ElapsedMs reports wall-clock time since builder construction, for
// total-latency reporting independent of the model-call latency field.
func (b *EnvelopeBuilder) ElapsedMs() int64 {
	return time.Since(b.started).Milliseconds()
}

// Build finalizes the envelope. Every unset field gets a safe default; this
// can never fail, since telemetry must not block the response path.
func (b *EnvelopeBuilder) Build() Envelope {
	env := b.env
	env.TotalMs = b.ElapsedMs()

	if env.Context.Memories == nil {
		env.Context.Memories = []MemoryDetail{}
	}
	if env.Prompt.EnabledTools == nil {
		env.Prompt.EnabledTools = []string{}
	}
	if env.ModelCall.ToolCallNames == nil {
		env.ModelCall.ToolCallNames = []string{}
	}
	if env.PostProcessing.Extracted == nil {
		env.PostProcessing.Extracted = []ExtractedAction{}
	}
	if env.Replay.Messages == nil {
		env.Replay.Messages = []any{}
	}
	if env.Replay.Tools == nil {
		env.Replay.Tools = []any{}
	}
	return env
}

func hashPrompt(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func approxTokens(s string) int {
	return len(s) / 4
}
