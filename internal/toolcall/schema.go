// Package toolcall bridges the action catalog and the model provider's
// tool-calling surface: it projects the catalog into a tool schema and
// extracts raw candidate actions back out of tool-call payloads.
package toolcall

import (
	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
)

// ToolName is the single tool exposed to the model.
const ToolName = "suggest_actions"

// MaxSuggestions caps the actions array in the tool schema. The processor
// enforces its own cap independently; this just tells the model the limit
// up front.
const MaxSuggestions = 3

// SuggestActionsTool projects the catalog into the Anthropic tool format.
func SuggestActionsTool(catalog *action.Catalog) anthropic.Tool {
	return anthropic.Tool{
		Name:        ToolName,
		Description: "Suggest up to three actions the app can offer the user alongside your reply.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"actions"},
			"properties": map[string]any{
				"actions": map[string]any{
					"type":     "array",
					"maxItems": MaxSuggestions,
					"items": map[string]any{
						"type":     "object",
						"required": []string{"type", "params"},
						"properties": map[string]any{
							"type": map[string]any{
								"type": "string",
								"enum": catalog.Types(),
							},
							"params": map[string]any{
								"type": "object",
							},
							"confidence": map[string]any{
								"type":    "number",
								"minimum": 0,
								"maximum": 1,
							},
						},
					},
				},
			},
		},
	}
}
