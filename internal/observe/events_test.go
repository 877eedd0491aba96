package observe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventConstructors(t *testing.T) {
	tc := testTraceContext()

	t.Run("request received", func(t *testing.T) {
		e := RequestReceived(tc)
		assert.Equal(t, EventRequestReceived, e.Kind)
		assert.Equal(t, tc.TraceID, e.TraceID)
		assert.Equal(t, tc.RequestID, e.RequestID)
		assert.Equal(t, tc.EntryPoint, e.EntryPoint)
		assert.Equal(t, tc.Platform, e.Platform)
		assert.False(t, e.Timestamp.IsZero())
	})

	t.Run("context built", func(t *testing.T) {
		e := ContextBuilt(tc, 4, 35)
		assert.Equal(t, EventContextBuilt, e.Kind)
		assert.Equal(t, 4, e.MemoriesIncluded)
		assert.Equal(t, int64(35), e.DurationMs)
	})

	t.Run("prompt assembled", func(t *testing.T) {
		e := PromptAssembled(tc, 6, 1)
		assert.Equal(t, EventPromptAssembled, e.Kind)
		assert.Equal(t, 6, e.MessageCount)
		assert.Equal(t, 1, e.ToolCount)
	})

	t.Run("model called", func(t *testing.T) {
		e := ModelCalled(tc, "claude-sonnet-4-20250514", 900, 1500, 220, "tool_use")
		assert.Equal(t, EventModelCalled, e.Kind)
		assert.Equal(t, "claude-sonnet-4-20250514", e.Model)
		assert.Equal(t, int64(900), e.DurationMs)
		assert.Equal(t, 1500, e.InputTokens)
		assert.Equal(t, 220, e.OutputTokens)
		assert.Equal(t, "tool_use", e.FinishReason)
	})

	t.Run("actions extracted", func(t *testing.T) {
		e := ActionsExtracted(tc, 3, 2, 1, 12)
		assert.Equal(t, EventActionsExtracted, e.Kind)
		assert.Equal(t, 3, e.ExtractedCount)
		assert.Equal(t, 2, e.ValidatedCount)
		assert.Equal(t, 1, e.DroppedCount)
	})

	t.Run("response delivered", func(t *testing.T) {
		e := ResponseDelivered(tc, 480, 2, 1400)
		assert.Equal(t, EventResponseDelivered, e.Kind)
		assert.Equal(t, 480, e.ContentLength)
		assert.Equal(t, 2, e.ActionCount)
		assert.Equal(t, int64(1400), e.DurationMs)
	})

	t.Run("error", func(t *testing.T) {
		e := ErrorEvent(tc, "model_call", errors.New("upstream timeout"))
		assert.Equal(t, EventError, e.Kind)
		assert.Equal(t, "model_call", e.Stage)
		assert.Equal(t, "upstream timeout", e.Error)
	})

	t.Run("nil error", func(t *testing.T) {
		e := ErrorEvent(tc, "model_call", nil)
		assert.Empty(t, e.Error)
	})
}
