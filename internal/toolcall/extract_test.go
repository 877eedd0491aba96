package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
)

func toolUse(input any) anthropic.ResponseContent {
	return anthropic.ResponseContent{Type: "tool_use", Name: ToolName, Input: input}
}

func TestExtractActions(t *testing.T) {
	t.Run("wrapped payload", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(map[string]any{
				"actions": []any{
					map[string]any{
						"type":       action.TypeNavigateToReference,
						"params":     map[string]any{"reference": "John 3:16"},
						"confidence": 0.9,
					},
				},
			}),
		}, nil)

		require.Len(t, raws, 1)
		assert.Equal(t, action.TypeNavigateToReference, raws[0].Type)
		assert.Equal(t, "John 3:16", raws[0].Params["reference"])
		require.NotNil(t, raws[0].Confidence)
		assert.Equal(t, 0.9, *raws[0].Confidence)
	})

	t.Run("multiple tool calls aggregate in order", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(map[string]any{
				"actions": []any{
					map[string]any{"type": "A", "params": map[string]any{"n": 1}},
					map[string]any{"type": "B", "params": map[string]any{"n": 2}},
				},
			}),
			anthropic.ResponseContent{Type: "text", Text: "in between"},
			toolUse(map[string]any{
				"actions": []any{
					map[string]any{"type": "C", "params": map[string]any{"n": 3}},
				},
			}),
		}, nil)

		require.Len(t, raws, 3)
		assert.Equal(t, "A", raws[0].Type)
		assert.Equal(t, "B", raws[1].Type)
		assert.Equal(t, "C", raws[2].Type)
	})

	t.Run("malformed JSON skipped without aborting others", func(t *testing.T) {
		var raws []action.Raw
		assert.NotPanics(t, func() {
			raws = ExtractActions([]anthropic.ResponseContent{
				toolUse(`{"actions": [{"type": "X", `),
				toolUse(map[string]any{
					"actions": []any{
						map[string]any{"type": action.TypeCreatePrayerDraft, "params": map[string]any{"title": "t", "body": "b"}},
					},
				}),
			}, nil)
		})

		require.Len(t, raws, 1)
		assert.Equal(t, action.TypeCreatePrayerDraft, raws[0].Type)
	})

	t.Run("bare reference infers navigation", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(map[string]any{"reference": "Psalm 23", "reason": "comfort"}),
		}, nil)

		require.Len(t, raws, 1)
		assert.Equal(t, action.TypeNavigateToReference, raws[0].Type)
		assert.Equal(t, "Psalm 23", raws[0].Params["reference"])
	})

	t.Run("bare body infers prayer draft", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(map[string]any{"title": "For rest", "body": "Lord, grant rest."}),
		}, nil)

		require.Len(t, raws, 1)
		assert.Equal(t, action.TypeCreatePrayerDraft, raws[0].Type)
	})

	t.Run("argument string payload parsed", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(`{"actions":[{"type":"NAVIGATE_TO_REFERENCE","params":{"reference":"John 1:1"}}]}`),
		}, nil)

		require.Len(t, raws, 1)
		assert.Equal(t, "John 1:1", raws[0].Params["reference"])
	})

	t.Run("other tools and text blocks ignored", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			{Type: "text", Text: "peace be with you"},
			{Type: "tool_use", Name: "some_other_tool", Input: map[string]any{"x": 1}},
		}, nil)

		assert.Empty(t, raws)
	})

	t.Run("unrecognized bare payload skipped", func(t *testing.T) {
		raws := ExtractActions([]anthropic.ResponseContent{
			toolUse(map[string]any{"unrelated": true}),
		}, nil)

		assert.Empty(t, raws)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ExtractActions(nil, nil))
	})
}

func TestSuggestActionsTool(t *testing.T) {
	catalog, err := action.NewCatalog(nil)
	require.NoError(t, err)

	tool := SuggestActionsTool(catalog)
	assert.Equal(t, ToolName, tool.Name)

	schema, ok := tool.InputSchema.(map[string]any)
	require.True(t, ok)

	actions := schema["properties"].(map[string]any)["actions"].(map[string]any)
	assert.Equal(t, MaxSuggestions, actions["maxItems"])

	enum := actions["items"].(map[string]any)["properties"].(map[string]any)["type"].(map[string]any)["enum"]
	assert.ElementsMatch(t, []string{action.TypeNavigateToReference, action.TypeCreatePrayerDraft}, enum)
}
