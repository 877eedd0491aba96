// Package action implements the suggestion pipeline: a typed catalog of
// permitted action types, and the processor that turns untrusted model
// output into a bounded list of validated, authorized actions.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/psalmlabs/selah/internal/cache"
	"github.com/psalmlabs/selah/internal/scripture"
)

// Known action types.
const (
	TypeNavigateToReference = "NAVIGATE_TO_REFERENCE"
	TypeCreatePrayerDraft   = "CREATE_PRAYER_DRAFT"
)

// Priority orders actions in the final list: primary < secondary < inline.
type Priority string

const (
	PriorityPrimary   Priority = "primary"
	PrioritySecondary Priority = "secondary"
	PriorityInline    Priority = "inline"
)

var priorityRank = map[Priority]int{
	PriorityPrimary:   0,
	PrioritySecondary: 1,
	PriorityInline:    2,
}

// Definition is one catalog entry. Defined once at startup, never mutated.
type Definition struct {
	Type    string
	Version int

	// Schema validates the raw parameter bag.
	Schema *jsonschema.Schema

	// Sanitize maps schema-valid params to a clean bag: unknown fields
	// stripped, defaults applied.
	Sanitize func(params map[string]any) map[string]any

	// Resolve optionally enriches validated params into renderable form.
	// Nil means no resolution step. Errors are non-fatal to the action.
	Resolve func(ctx context.Context, params map[string]any) (map[string]any, error)

	// IdentityKey extracts the discriminating field used for the stable id.
	// Nil falls back to the serialized parameter bag.
	IdentityKey func(params map[string]any) string

	Icon     string
	Color    string
	Priority Priority
}

// Catalog is the static registry of action definitions.
type Catalog struct {
	defs  map[string]*Definition
	order []string
}

const navigateSchemaJSON = `{
	"type": "object",
	"required": ["reference"],
	"properties": {
		"reference": {"type": "string", "minLength": 1},
		"reason": {"type": "string"},
		"translation": {"type": "string"}
	}
}`

const prayerDraftSchemaJSON = `{
	"type": "object",
	"required": ["title", "body"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"body": {"type": "string", "minLength": 1},
		"visibility": {"type": "string", "enum": ["private", "friends", "public"]}
	}
}`

// resolvedRefTTL bounds how long a parsed reference stays cached.
const resolvedRefTTL = 24 * time.Hour

// NewCatalog builds the catalog with the built-in action types. The cache, if
// non-nil, memoizes resolved scripture references.
func NewCatalog(refCache cache.Cache) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition)}

	navigateSchema, err := compileSchema(navigateSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", TypeNavigateToReference, err)
	}
	draftSchema, err := compileSchema(prayerDraftSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", TypeCreatePrayerDraft, err)
	}

	c.register(&Definition{
		Type:     TypeNavigateToReference,
		Version:  1,
		Schema:   navigateSchema,
		Sanitize: sanitizeNavigate,
		Resolve:  newReferenceResolver(refCache),
		IdentityKey: func(params map[string]any) string {
			s, _ := params["reference"].(string)
			return s
		},
		Icon:     "book-open",
		Color:    "indigo",
		Priority: PriorityPrimary,
	})

	c.register(&Definition{
		Type:     TypeCreatePrayerDraft,
		Version:  1,
		Schema:   draftSchema,
		Sanitize: sanitizePrayerDraft,
		IdentityKey: func(params map[string]any) string {
			s, _ := params["body"].(string)
			return truncate(s, identityKeyLen)
		},
		Icon:     "hands-praying",
		Color:    "amber",
		Priority: PrioritySecondary,
	})

	return c, nil
}

func (c *Catalog) register(def *Definition) {
	c.defs[def.Type] = def
	c.order = append(c.order, def.Type)
}

// IsValidActionType reports whether the type name is registered.
func (c *Catalog) IsValidActionType(name string) bool {
	_, ok := c.defs[name]
	return ok
}

// Definition returns the catalog entry for a type, or nil when unknown.
func (c *Catalog) Definition(name string) *Definition {
	return c.defs[name]
}

// Schema returns the compiled parameter schema for a type, or nil when unknown.
func (c *Catalog) Schema(name string) *jsonschema.Schema {
	if def, ok := c.defs[name]; ok {
		return def.Schema
	}
	return nil
}

// Types returns the registered type names in registration order.
func (c *Catalog) Types() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func compileSchema(schemaJSON string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func sanitizeNavigate(params map[string]any) map[string]any {
	out := map[string]any{}
	if s, ok := params["reference"].(string); ok {
		out["reference"] = s
	}
	if s, ok := params["reason"].(string); ok && s != "" {
		out["reason"] = s
	}
	if s, ok := params["translation"].(string); ok && s != "" {
		out["translation"] = s
	}
	return out
}

func sanitizePrayerDraft(params map[string]any) map[string]any {
	out := map[string]any{}
	if s, ok := params["title"].(string); ok {
		out["title"] = s
	}
	if s, ok := params["body"].(string); ok {
		out["body"] = s
	}
	visibility := "private"
	if s, ok := params["visibility"].(string); ok && s != "" {
		visibility = s
	}
	out["visibility"] = visibility
	return out
}

// newReferenceResolver parses the free-text reference into structured form,
// consulting the cache first when one is configured.
func newReferenceResolver(refCache cache.Cache) func(ctx context.Context, params map[string]any) (map[string]any, error) {
	return func(ctx context.Context, params map[string]any) (map[string]any, error) {
		raw, _ := params["reference"].(string)
		translation, _ := params["translation"].(string)

		cacheKey := "scripture:ref:" + strings.ToLower(raw) + ":" + strings.ToLower(translation)
		if refCache != nil {
			if data, err := refCache.Get(ctx, cacheKey); err == nil {
				var resolved map[string]any
				if err := json.Unmarshal(data, &resolved); err == nil {
					return resolved, nil
				}
			}
		}

		ref, err := scripture.Parse(raw, translation)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(ref)
		if err != nil {
			return nil, err
		}
		var resolved map[string]any
		if err := json.Unmarshal(data, &resolved); err != nil {
			return nil, err
		}

		if refCache != nil {
			// Best effort; a cache write failure never blocks resolution.
			_ = refCache.Set(ctx, cacheKey, data, resolvedRefTTL)
		}
		return resolved, nil
	}
}
