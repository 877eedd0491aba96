// Package companion implements the devotional chat service: prompt assembly,
// the model call, action post-processing, and the observability records that
// describe each request.
package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
	"github.com/psalmlabs/selah/internal/observe"
	"github.com/psalmlabs/selah/internal/storage"
	"github.com/psalmlabs/selah/internal/tokens"
	"github.com/psalmlabs/selah/internal/toolcall"
)

// historyTokenBudget caps how much conversation history enters the prompt.
const historyTokenBudget = 2000

// ModelClient is the provider surface the service needs.
type ModelClient interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// ModelConfig carries the provider parameters for each call.
type ModelConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// ChatMessage is one turn of prior conversation supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message        string        `json:"message"`
	VerseReference string        `json:"verseReference,omitempty"`
	History        []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is what the client renders: the companion's reply and the
// validated action suggestions.
type ChatResponse struct {
	Message string             `json:"message"`
	Actions []action.Validated `json:"actions"`
	TraceID string             `json:"traceId"`
}

// Service orchestrates one chat turn end to end.
type Service struct {
	model     ModelClient
	modelCfg  ModelConfig
	catalog   *action.Catalog
	processor *action.Processor
	estimator *tokens.Estimator
	store     storage.Store
	observer  *observe.Logger
	batcher   *observe.EventBatcher
	logger    *slog.Logger
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithStore enables envelope archiving.
func WithStore(s storage.Store) ServiceOption {
	return func(svc *Service) { svc.store = s }
}

// WithBatcher routes timeline events through a batcher instead of
// one-per-request delivery.
func WithBatcher(b *observe.EventBatcher) ServiceOption {
	return func(svc *Service) { svc.batcher = b }
}

// WithLogger sets the local logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// NewService wires the chat service.
func NewService(model ModelClient, modelCfg ModelConfig, catalog *action.Catalog, processor *action.Processor, observer *observe.Logger, opts ...ServiceOption) *Service {
	svc := &Service{
		model:     model,
		modelCfg:  modelCfg,
		catalog:   catalog,
		processor: processor,
		estimator: tokens.NewEstimator(),
		observer:  observer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Chat runs one turn: build the prompt, call the model, validate suggested
// actions, and ship the observability records. The envelope is built and
// delivered on error paths too.
func (s *Service) Chat(ctx context.Context, tc observe.TraceContext, req ChatRequest) (*ChatResponse, error) {
	builder := observe.NewEnvelopeBuilder(tc)
	builder.SetIntent(req.Message, req.VerseReference)
	s.emit(observe.RequestReceived(tc))

	// Context assembly: trim history to budget, oldest first.
	contextStart := time.Now()
	history, compaction := s.compactHistory(req.History)
	report := observe.ContextReport{
		UsageMode:  usageMode(req),
		Compaction: compaction,
	}
	builder.SetContextReport(report)
	s.emit(observe.ContextBuilt(tc, len(history), time.Since(contextStart).Milliseconds()))

	// Prompt assembly.
	systemPrompt := buildSystemPrompt(req.VerseReference)
	messages := make([]anthropic.Message, 0, len(history)+1)
	promptMsgs := make([]observe.PromptMessage, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, anthropic.Message{Role: h.Role, Content: anthropic.Text(h.Content)})
		promptMsgs = append(promptMsgs, observe.PromptMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, anthropic.Message{Role: "user", Content: anthropic.Text(req.Message)})
	promptMsgs = append(promptMsgs, observe.PromptMessage{Role: "user", Content: req.Message})

	tool := toolcall.SuggestActionsTool(s.catalog)
	builder.SetPromptArtifacts(systemPrompt, promptMsgs, []string{tool.Name})
	s.emit(observe.PromptAssembled(tc, len(messages), 1))

	temperature := s.modelCfg.Temperature
	modelReq := &anthropic.MessagesRequest{
		Model:       s.modelCfg.Model,
		Messages:    messages,
		MaxTokens:   s.modelCfg.MaxTokens,
		System:      systemPrompt,
		Temperature: &temperature,
		Tools:       []anthropic.Tool{tool},
		Metadata:    &anthropic.Metadata{UserID: tc.UserID},
	}
	builder.SetReplayData(messages, modelReq.Tools, observe.ModelParams{
		Model:       s.modelCfg.Model,
		MaxTokens:   s.modelCfg.MaxTokens,
		Temperature: s.modelCfg.Temperature,
	})

	// Model call.
	callStart := time.Now()
	resp, err := s.model.CreateMessage(ctx, modelReq)
	latency := time.Since(callStart).Milliseconds()
	if err != nil {
		s.observer.LogError(tc, "model_call", err)
		builder.SetModelCall(observe.ModelCallInfo{
			Model:       s.modelCfg.Model,
			Temperature: s.modelCfg.Temperature,
			MaxTokens:   s.modelCfg.MaxTokens,
			LatencyMs:   latency,
		})
		s.finish(ctx, tc, builder)
		return nil, fmt.Errorf("model call: %w", err)
	}

	toolNames := toolCallNames(resp.Content)
	builder.SetModelCall(observe.ModelCallInfo{
		Model:         resp.Model,
		Temperature:   s.modelCfg.Temperature,
		MaxTokens:     s.modelCfg.MaxTokens,
		LatencyMs:     latency,
		InputTokens:   resp.Usage.InputTokens,
		OutputTokens:  resp.Usage.OutputTokens,
		FinishReason:  resp.StopReason,
		ToolCallCount: len(toolNames),
		ToolCallNames: toolNames,
	})
	s.emit(observe.ModelCalled(tc, resp.Model, latency, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.StopReason))

	// Post-processing.
	extractStart := time.Now()
	raws := toolcall.ExtractActions(resp.Content, s.logger)
	result := s.processor.Process(ctx, raws, action.RequestContext{
		UserID:    tc.UserID,
		TraceID:   tc.TraceID,
		SessionID: tc.SessionID,
		Platform:  tc.Platform,
	})
	builder.SetPostProcessing(extractionOutcomes(result), len(result.Actions), len(result.Dropped))
	s.emit(observe.ActionsExtracted(tc, len(raws), len(result.Actions), len(result.Dropped), time.Since(extractStart).Milliseconds()))

	// Response.
	content := responseText(resp.Content)
	builder.SetResponse(content, len(result.Actions), categorize(content, result.Actions))
	s.emit(observe.ResponseDelivered(tc, len(content), len(result.Actions), builder.ElapsedMs()))

	s.finish(ctx, tc, builder)

	return &ChatResponse{
		Message: content,
		Actions: result.Actions,
		TraceID: tc.TraceID,
	}, nil
}

// finish builds the envelope, archives it, and ships it. Persistence failures
// are logged and swallowed: the envelope must never fail the request.
func (s *Service) finish(ctx context.Context, tc observe.TraceContext, builder *observe.EnvelopeBuilder) {
	env := builder.Build()
	if s.store != nil {
		payload, err := json.Marshal(env)
		if err == nil {
			err = s.store.SaveEnvelope(ctx, &storage.EnvelopeRecord{
				TraceID:   env.TraceID,
				RequestID: env.RequestID,
				UserID:    env.UserID,
				Payload:   payload,
			})
		}
		if err != nil {
			s.logger.Warn("envelope archive failed",
				slog.String("trace_id", env.TraceID),
				slog.String("error", err.Error()))
		}
	}
	s.observer.LogEnvelope(env)
}

func (s *Service) emit(e observe.Event) {
	if s.batcher != nil {
		s.batcher.Add(e)
		return
	}
	s.observer.LogEvent(e)
}

// compactHistory drops the oldest turns until the remainder fits the history
// token budget. Returns compaction stats when anything was dropped.
func (s *Service) compactHistory(history []ChatMessage) ([]ChatMessage, *observe.CompactionStats) {
	total := 0
	counts := make([]int, len(history))
	for i, h := range history {
		counts[i] = s.estimator.CountMessage(h.Role, h.Content)
		total += counts[i]
	}
	if total <= historyTokenBudget {
		return history, nil
	}

	kept := history
	saved := 0
	for len(kept) > 0 && total > historyTokenBudget {
		total -= counts[len(history)-len(kept)]
		saved += counts[len(history)-len(kept)]
		kept = kept[1:]
	}
	return kept, &observe.CompactionStats{
		MessagesBefore: len(history),
		MessagesAfter:  len(kept),
		TokensSaved:    saved,
	}
}

const systemPromptBase = `You are Selah, a gentle devotional companion. You help people reflect on scripture, pray, and find encouragement. Keep responses warm and concise.

When a scripture passage or a prayer would serve the person, call the suggest_actions tool with up to 3 suggestions. Never invent scripture references.`

func buildSystemPrompt(verseReference string) string {
	if verseReference == "" {
		return systemPromptBase
	}
	return systemPromptBase + "\n\nThe person is currently reading " + verseReference + "."
}

func usageMode(req ChatRequest) string {
	if req.VerseReference != "" {
		return "verse_reflection"
	}
	return "conversational"
}

func responseText(blocks []anthropic.ResponseContent) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

func toolCallNames(blocks []anthropic.ResponseContent) []string {
	names := []string{}
	for _, b := range blocks {
		if b.Type == "tool_use" {
			names = append(names, b.Name)
		}
	}
	return names
}

func extractionOutcomes(result action.Result) []observe.ExtractedAction {
	outcomes := make([]observe.ExtractedAction, 0, len(result.Actions)+len(result.Dropped))
	for _, a := range result.Actions {
		outcomes = append(outcomes, observe.ExtractedAction{Type: a.Type, Valid: true})
	}
	for _, d := range result.Dropped {
		outcomes = append(outcomes, observe.ExtractedAction{Type: d.Type, Valid: false, DropReason: d.Reason})
	}
	return outcomes
}

// categorize picks a coarse response category for dashboards.
func categorize(content string, actions []action.Validated) string {
	for _, a := range actions {
		switch a.Type {
		case action.TypeCreatePrayerDraft:
			return "prayer"
		case action.TypeNavigateToReference:
			return "scripture"
		}
	}
	if strings.Contains(strings.ToLower(content), "pray") {
		return "prayer"
	}
	return "encouragement"
}
