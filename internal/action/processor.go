package action

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultMaxActions bounds how many interactive affordances one response may
// carry.
const DefaultMaxActions = 3

// defaultResolveTimeout bounds a single resolver invocation so a stuck
// resolver cannot hang the request.
const defaultResolveTimeout = 5 * time.Second

// Raw is an unverified candidate action as reported by the model.
type Raw struct {
	Type       string         `json:"type"`
	Params     map[string]any `json:"params"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// Validated is an action that passed schema, resolution, and authorization.
// It can only be produced by the processor.
type Validated struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Version    int            `json:"version"`
	Params     map[string]any `json:"params"`
	Resolved   map[string]any `json:"resolved,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Priority   Priority       `json:"priority"`
	Icon       string         `json:"icon"`
	Color      string         `json:"color"`
}

// Dropped records why a candidate was discarded. Diagnostic only; never
// exposed to the end user.
type Dropped struct {
	Type   string         `json:"type"`
	Reason string         `json:"reason"`
	Params map[string]any `json:"params,omitempty"`
}

// Result is the outcome of processing one batch.
type Result struct {
	Actions []Validated `json:"actions"`
	Dropped []Dropped   `json:"dropped"`
}

// Processor validates, resolves, authorizes, orders, and caps candidate
// actions. Safe for concurrent use; it holds no per-request state.
type Processor struct {
	catalog        *Catalog
	auth           Authorizer
	logger         *slog.Logger
	maxActions     int
	resolveTimeout time.Duration
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithMaxActions overrides the action cap.
func WithMaxActions(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxActions = n
		}
	}
}

// WithAuthorizer installs a per-type, per-user authorization rule.
func WithAuthorizer(a Authorizer) ProcessorOption {
	return func(p *Processor) {
		if a != nil {
			p.auth = a
		}
	}
}

// WithLogger sets the logger used for resolution warnings.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithResolveTimeout bounds each resolver invocation.
func WithResolveTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.resolveTimeout = d
		}
	}
}

// NewProcessor creates a processor over the given catalog. By default every
// action is authorized and at most DefaultMaxActions are returned.
func NewProcessor(catalog *Catalog, opts ...ProcessorOption) *Processor {
	p := &Processor{
		catalog:        catalog,
		auth:           AllowAll{},
		logger:         slog.Default(),
		maxActions:     DefaultMaxActions,
		resolveTimeout: defaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the per-candidate pipeline over the batch, then applies the
// batch policy: stable sort by priority, cap at the action limit. One
// candidate's failure never aborts the batch, and Process itself never
// returns an error.
func (p *Processor) Process(ctx context.Context, raws []Raw, rc RequestContext) Result {
	result := Result{
		Actions: []Validated{},
		Dropped: []Dropped{},
	}

	for _, raw := range raws {
		validated, dropped := p.processOne(ctx, raw, rc)
		if dropped != nil {
			result.Dropped = append(result.Dropped, *dropped)
			continue
		}
		result.Actions = append(result.Actions, *validated)
	}

	// Stable sort keeps input order within a priority class.
	sort.SliceStable(result.Actions, func(i, j int) bool {
		return priorityRank[result.Actions[i].Priority] < priorityRank[result.Actions[j].Priority]
	})

	if len(result.Actions) > p.maxActions {
		for _, evicted := range result.Actions[p.maxActions:] {
			result.Dropped = append(result.Dropped, Dropped{
				Type:   evicted.Type,
				Reason: fmt.Sprintf("Exceeded max action limit (%d)", p.maxActions),
				Params: evicted.Params,
			})
		}
		result.Actions = result.Actions[:p.maxActions]
	}

	return result
}

// processOne runs the pipeline for a single candidate. Exactly one of the
// return values is non-nil. Panics are converted into a dropped entry.
func (p *Processor) processOne(ctx context.Context, raw Raw, rc RequestContext) (validated *Validated, dropped *Dropped) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("action processing panic",
				slog.String("type", raw.Type),
				slog.Any("panic", r))
			validated = nil
			dropped = &Dropped{
				Type:   raw.Type,
				Reason: "Internal processing error",
				Params: raw.Params,
			}
		}
	}()

	def := p.catalog.Definition(raw.Type)
	if def == nil {
		return nil, &Dropped{
			Type:   raw.Type,
			Reason: fmt.Sprintf("Unknown action type: %s", raw.Type),
			Params: raw.Params,
		}
	}

	params := raw.Params
	if params == nil {
		params = map[string]any{}
	}

	if err := def.Schema.Validate(params); err != nil {
		return nil, &Dropped{
			Type:   raw.Type,
			Reason: fmt.Sprintf("Invalid parameters: %v", err),
			Params: raw.Params,
		}
	}

	sanitized := params
	if def.Sanitize != nil {
		sanitized = def.Sanitize(params)
	}

	var resolved map[string]any
	if def.Resolve != nil {
		enriched, err := p.resolve(ctx, def, sanitized)
		if err != nil {
			// Non-fatal: the action is still usable in its unresolved shape.
			p.logger.Warn("action resolution failed",
				slog.String("type", raw.Type),
				slog.String("error", err.Error()))
		} else {
			resolved = enriched
		}
	}

	decision := p.auth.Authorize(ctx, raw.Type, sanitized, rc)
	if !decision.Authorized {
		reason := decision.Reason
		if reason == "" {
			reason = "Unauthorized"
		}
		return nil, &Dropped{
			Type:   raw.Type,
			Reason: reason,
			Params: raw.Params,
		}
	}

	return &Validated{
		ID:         GenerateID(raw.Type, sanitized, def),
		Type:       raw.Type,
		Version:    def.Version,
		Params:     sanitized,
		Resolved:   resolved,
		Confidence: raw.Confidence,
		Priority:   def.Priority,
		Icon:       def.Icon,
		Color:      def.Color,
	}, nil
}

// resolve invokes the catalog resolver with a bounded context. A panicking
// resolver is treated like a resolution error: the action proceeds
// unresolved.
func (p *Processor) resolve(ctx context.Context, def *Definition, params map[string]any) (resolved map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			resolved = nil
			err = fmt.Errorf("resolver panic: %v", r)
		}
	}()

	resolveCtx, cancel := context.WithTimeout(ctx, p.resolveTimeout)
	defer cancel()
	return def.Resolve(resolveCtx, params)
}

// MaxActions reports the configured action cap.
func (p *Processor) MaxActions() int {
	return p.maxActions
}
