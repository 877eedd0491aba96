package companion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
	"github.com/psalmlabs/selah/internal/observe"
	"github.com/psalmlabs/selah/internal/storage/sqlite"
)

type fakeModel struct {
	resp    *anthropic.MessagesResponse
	err     error
	lastReq *anthropic.MessagesRequest
}

func (f *fakeModel) CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func suggestionResponse() *anthropic.MessagesResponse {
	return &anthropic.MessagesResponse{
		ID:    "msg_1",
		Model: "claude-sonnet-4-20250514",
		Content: []anthropic.ResponseContent{
			{Type: "text", Text: "John 3:16 speaks of a love that holds you."},
			{Type: "tool_use", Name: "suggest_actions", Input: map[string]any{
				"actions": []any{
					map[string]any{
						"type":   action.TypeNavigateToReference,
						"params": map[string]any{"reference": "John 3:16"},
					},
				},
			}},
		},
		StopReason: "tool_use",
		Usage:      anthropic.MessagesUsage{InputTokens: 1200, OutputTokens: 180},
	}
}

func newTestService(t *testing.T, model ModelClient, opts ...ServiceOption) *Service {
	t.Helper()
	catalog, err := action.NewCatalog(nil)
	require.NoError(t, err)
	processor := action.NewProcessor(catalog)
	observer := observe.NewLogger(observe.LoggerOptions{})
	cfg := ModelConfig{Model: "claude-sonnet-4-20250514", MaxTokens: 1024, Temperature: 0.7}
	return NewService(model, cfg, catalog, processor, observer, opts...)
}

func TestServiceChat(t *testing.T) {
	model := &fakeModel{resp: suggestionResponse()}
	svc := newTestService(t, model)

	tc := observe.InternalTraceContext("user-1")
	resp, err := svc.Chat(context.Background(), tc, ChatRequest{Message: "What does John 3:16 mean?"})
	require.NoError(t, err)

	assert.Contains(t, resp.Message, "love that holds you")
	assert.Equal(t, tc.TraceID, resp.TraceID)

	require.Len(t, resp.Actions, 1)
	act := resp.Actions[0]
	assert.Equal(t, action.TypeNavigateToReference, act.Type)
	assert.True(t, strings.HasPrefix(act.ID, "act_"))
	require.NotNil(t, act.Resolved)
	assert.Equal(t, "John", act.Resolved["book"])

	// Request shape sent to the provider.
	require.NotNil(t, model.lastReq)
	assert.Equal(t, "claude-sonnet-4-20250514", model.lastReq.Model)
	require.Len(t, model.lastReq.Tools, 1)
	assert.Equal(t, "suggest_actions", model.lastReq.Tools[0].Name)
	assert.NotEmpty(t, model.lastReq.System)
	assert.Equal(t, "user-1", model.lastReq.Metadata.UserID)
}

func TestServiceChatVersePromptContext(t *testing.T) {
	model := &fakeModel{resp: suggestionResponse()}
	svc := newTestService(t, model)

	_, err := svc.Chat(context.Background(), observe.InternalTraceContext("user-1"), ChatRequest{
		Message:        "Why this verse?",
		VerseReference: "Psalm 46:10",
	})
	require.NoError(t, err)

	assert.Contains(t, model.lastReq.System, "Psalm 46:10")
}

func TestServiceChatArchivesEnvelope(t *testing.T) {
	store, err := sqlite.New("file:companion1?mode=memory&cache=shared")
	require.NoError(t, err)
	defer store.Close()

	model := &fakeModel{resp: suggestionResponse()}
	svc := newTestService(t, model, WithStore(store))

	tc := observe.InternalTraceContext("user-1")
	_, err = svc.Chat(context.Background(), tc, ChatRequest{
		Message: "Help me find peace",
		History: []ChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "Peace be with you."}},
	})
	require.NoError(t, err)

	rec, err := store.GetEnvelope(context.Background(), tc.TraceID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.UserID)

	var env observe.Envelope
	require.NoError(t, json.Unmarshal(rec.Payload, &env))
	assert.Equal(t, tc.TraceID, env.TraceID)
	assert.Equal(t, "Help me find peace", env.Intent.UserMessage)
	assert.Equal(t, 1, env.PostProcessing.ValidatedCount)
	assert.Equal(t, 1200, env.ModelCall.InputTokens)
	assert.Equal(t, "tool_use", env.ModelCall.FinishReason)
	assert.Len(t, env.Prompt.EnabledTools, 1)
	assert.NotEmpty(t, env.Prompt.SystemPromptHash)
	// History plus the new user turn.
	assert.Equal(t, 3, env.Prompt.MessageCount)
	assert.Equal(t, "scripture", env.Response.Category)
}

func TestServiceChatModelFailure(t *testing.T) {
	store, err := sqlite.New("file:companion2?mode=memory&cache=shared")
	require.NoError(t, err)
	defer store.Close()

	model := &fakeModel{err: errors.New("upstream timeout")}
	svc := newTestService(t, model, WithStore(store))

	tc := observe.InternalTraceContext("user-1")
	_, err = svc.Chat(context.Background(), tc, ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model call")

	// Envelope is archived even when the call fails.
	rec, err := store.GetEnvelope(context.Background(), tc.TraceID)
	require.NoError(t, err)

	var env observe.Envelope
	require.NoError(t, json.Unmarshal(rec.Payload, &env))
	assert.Equal(t, "hello", env.Intent.UserMessage)
	assert.Zero(t, env.ModelCall.InputTokens)
}

func TestCompactHistory(t *testing.T) {
	svc := newTestService(t, &fakeModel{resp: suggestionResponse()})

	t.Run("short history untouched", func(t *testing.T) {
		history := []ChatMessage{{Role: "user", Content: "hi"}}
		kept, stats := svc.compactHistory(history)
		assert.Equal(t, history, kept)
		assert.Nil(t, stats)
	})

	t.Run("long history trimmed oldest first", func(t *testing.T) {
		long := strings.Repeat("word ", 900)
		history := []ChatMessage{
			{Role: "user", Content: long},
			{Role: "assistant", Content: long},
			{Role: "user", Content: long},
			{Role: "assistant", Content: "recent reply"},
		}
		kept, stats := svc.compactHistory(history)
		require.NotNil(t, stats)
		assert.Equal(t, 4, stats.MessagesBefore)
		assert.Equal(t, len(kept), stats.MessagesAfter)
		assert.Greater(t, stats.TokensSaved, 0)
		assert.Less(t, len(kept), len(history))
		// The newest turn survives.
		assert.Equal(t, "recent reply", kept[len(kept)-1].Content)
	})
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "prayer", categorize("", []action.Validated{{Type: action.TypeCreatePrayerDraft}}))
	assert.Equal(t, "scripture", categorize("", []action.Validated{{Type: action.TypeNavigateToReference}}))
	assert.Equal(t, "prayer", categorize("Let us pray together.", nil))
	assert.Equal(t, "encouragement", categorize("You are not alone.", nil))
}

func TestUsageMode(t *testing.T) {
	assert.Equal(t, "conversational", usageMode(ChatRequest{Message: "hi"}))
	assert.Equal(t, "verse_reflection", usageMode(ChatRequest{Message: "hi", VerseReference: "John 1:1"}))
}
