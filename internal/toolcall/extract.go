package toolcall

import (
	"encoding/json"
	"log/slog"

	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
)

// wireAction mirrors one item of the suggest_actions payload.
type wireAction struct {
	Type       string         `json:"type"`
	Params     map[string]any `json:"params"`
	Confidence *float64       `json:"confidence"`
}

// wireEnvelope mirrors the expected {actions: [...]} wrapper.
type wireEnvelope struct {
	Actions []wireAction `json:"actions"`
}

// ExtractActions collects raw candidate actions from every suggest_actions
// tool call in the response, concatenated in call order. Extraction is
// maximum-effort: model output is unreliable by nature, so a malformed call
// is skipped (with a warning) without aborting the others, and a payload
// missing the {actions: [...]} wrapper is recovered heuristically. All
// correctness enforcement is deferred to the action processor.
func ExtractActions(blocks []anthropic.ResponseContent, logger *slog.Logger) []action.Raw {
	if logger == nil {
		logger = slog.Default()
	}

	var raws []action.Raw
	for _, block := range blocks {
		if block.Type != "tool_use" || block.Name != ToolName {
			continue
		}

		data, err := payloadBytes(block.Input)
		if err != nil {
			logger.Warn("skipping unserializable tool call", slog.String("tool", block.Name))
			continue
		}

		var envelope wireEnvelope
		if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Actions) > 0 {
			for _, wa := range envelope.Actions {
				raws = append(raws, action.Raw{
					Type:       wa.Type,
					Params:     wa.Params,
					Confidence: wa.Confidence,
				})
			}
			continue
		}

		if raw, ok := inferBareAction(data); ok {
			raws = append(raws, raw)
			continue
		}

		logger.Warn("skipping malformed tool call payload",
			slog.String("tool", block.Name),
			slog.Int("bytes", len(data)))
	}
	return raws
}

// payloadBytes normalizes a tool-call input to JSON bytes. Providers usually
// hand over a decoded object, but argument strings show up too and may carry
// JSON that does not parse.
func payloadBytes(input any) ([]byte, error) {
	switch v := input.(type) {
	case string:
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// inferBareAction recovers a payload where the model emitted one action's
// parameters directly at the top level instead of the actions wrapper.
// A "reference" field implies a navigation action; a "body" field implies a
// prayer draft. This is a best-effort guess at model intent with no formal
// guarantee of correctness.
// TODO: review whether this fallback masks a prompting bug rather than a
// model quirk.
func inferBareAction(data []byte) (action.Raw, bool) {
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil || len(params) == 0 {
		return action.Raw{}, false
	}

	if _, ok := params["reference"]; ok {
		return action.Raw{Type: action.TypeNavigateToReference, Params: params}, true
	}
	if _, ok := params["body"]; ok {
		return action.Raw{Type: action.TypeCreatePrayerDraft, Params: params}, true
	}
	return action.Raw{}, false
}
