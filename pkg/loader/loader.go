// Package loader walks a nested JSON(C) description document, merging
// defaults down each packet level, attaching storylets to a Deck, and
// initializing Context variables (§4.8).
package loader

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/corvidfield/storylet-engine/pkg/deck"
	"github.com/corvidfield/storylet-engine/pkg/exprlang"
	"github.com/corvidfield/storylet-engine/pkg/storylet"
)

var packetKeys = []string{"context", "defaults", "storylets"}

// Loader compiles a description document into a Deck. A Loader
// instance holds no state between Load calls, so it may be reused.
type Loader struct {
	parser *exprlang.Parser
}

// New returns a Loader.
func New() *Loader {
	return &Loader{parser: exprlang.NewParser()}
}

// Load parses a JSONC document and returns a freshly built Deck. Deck
// construction options (seed, specificity, chunk size, logger) are
// forwarded to deck.New.
func (l *Loader) Load(data []byte, opts ...deck.Option) (*deck.Deck, error) {
	stripped := StripComments(data)

	var root any
	if err := json.Unmarshal(stripped, &root); err != nil {
		return nil, fmt.Errorf("loader: invalid JSON: %w", err)
	}

	d := deck.New(opts...)

	switch node := root.(type) {
	case []any:
		// Convenience shape (SPEC_FULL.md supplement): a bare list of
		// storylets at the document root, with no wrapping packet.
		if err := l.walkStoryletsList(node, nil, d); err != nil {
			return nil, err
		}
	case map[string]any:
		if err := l.walkPacket(node, nil, d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: document root must be an object or an array", ErrMalformedNode)
	}

	return d, nil
}

// walkPacket processes one packet level: context Inits, defaults
// merge, and the storylets list (which may itself hold nested
// packets or leaf storylet descriptions).
func (l *Loader) walkPacket(node map[string]any, defaults map[string]any, d *deck.Deck) error {
	if rawCtx, ok := node["context"]; ok {
		ctxMap, ok := rawCtx.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: 'context' must be an object", ErrMalformedField)
		}
		// Keys are initialised in sorted order, so an expression RHS
		// sees the same set of already-initialised keys on every load.
		keys := make([]string, 0, len(ctxMap))
		for key := range ctxMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			v, err := l.valueFromRaw(ctxMap[key])
			if err != nil {
				return fmt.Errorf("loader: context key %q: %w", key, err)
			}
			if err := d.Context().InitExpr(key, v, l.parser); err != nil {
				return fmt.Errorf("loader: context key %q: %w", key, err)
			}
		}
	}

	merged := mergeDefaults(defaults, node["defaults"])

	if rawStorylets, ok := node["storylets"]; ok {
		list, ok := rawStorylets.([]any)
		if !ok {
			return fmt.Errorf("%w: 'storylets' must be an array", ErrMalformedField)
		}
		if err := l.walkStoryletsList(list, merged, d); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) walkStoryletsList(list []any, defaults map[string]any, d *deck.Deck) error {
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: storylets entry must be an object", ErrMalformedNode)
		}
		if isPacket(m) {
			if err := l.walkPacket(m, defaults, d); err != nil {
				return err
			}
			continue
		}
		s, err := l.buildStorylet(m, defaults)
		if err != nil {
			return err
		}
		if err := d.AddStorylet(s); err != nil {
			return fmt.Errorf("%w: %q", ErrDuplicateID, s.ID)
		}
	}
	return nil
}

func isPacket(m map[string]any) bool {
	for _, k := range packetKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// mergeDefaults returns a new map combining parent with this level's
// own defaults object (later/more-nested wins), without mutating
// either input.
func mergeDefaults(parent map[string]any, ownRaw any) map[string]any {
	merged := make(map[string]any, len(parent))
	for k, v := range parent {
		merged[k] = v
	}
	if own, ok := ownRaw.(map[string]any); ok {
		for k, v := range own {
			merged[k] = v
		}
	}
	return merged
}

// fieldOrDefault returns the leaf's own value for key if present,
// else the active defaults' value for key, else (nil, false).
func fieldOrDefault(leaf, defaults map[string]any, key string) (any, bool) {
	if v, ok := leaf[key]; ok {
		return v, true
	}
	if v, ok := defaults[key]; ok {
		return v, true
	}
	return nil, false
}

func (l *Loader) buildStorylet(leaf, defaults map[string]any) (*storylet.Storylet, error) {
	idRaw, ok := leaf["id"]
	if !ok {
		return nil, ErrMissingID
	}
	id, ok := idRaw.(string)
	if !ok || id == "" {
		return nil, ErrMissingID
	}

	s := storylet.New(id)

	if raw, ok := fieldOrDefault(leaf, defaults, "redraw"); ok {
		r, err := parseRedraw(raw)
		if err != nil {
			return nil, fmt.Errorf("loader: storylet %q: %w", id, err)
		}
		s.Redraw = r
	}

	if raw, ok := fieldOrDefault(leaf, defaults, "condition"); ok {
		src, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("loader: storylet %q: %w: 'condition' must be a string", id, ErrMalformedField)
		}
		expr, err := l.parser.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("loader: storylet %q: condition: %w", id, err)
		}
		s.Condition = expr
	}

	if raw, ok := fieldOrDefault(leaf, defaults, "priority"); ok {
		switch v := raw.(type) {
		case float64:
			s.FixedPriority = int(v)
		case string:
			expr, err := l.parser.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("loader: storylet %q: priority: %w", id, err)
			}
			s.PriorityExpr = expr
		default:
			return nil, fmt.Errorf("loader: storylet %q: %w: 'priority' must be a number or string", id, ErrMalformedField)
		}
	}

	if raw, ok := fieldOrDefault(leaf, defaults, "content"); ok {
		s.Content = raw
	}

	if raw, ok := fieldOrDefault(leaf, defaults, "updateOnPlayed"); ok {
		updates, err := l.compileUpdateMap(id, "updateOnPlayed", raw)
		if err != nil {
			return nil, err
		}
		s.UpdateOnPlayed = updates
	}

	if raw, ok := fieldOrDefault(leaf, defaults, "updateOnDrawn"); ok {
		updates, err := l.compileUpdateMap(id, "updateOnDrawn", raw)
		if err != nil {
			return nil, err
		}
		s.UpdateOnDrawn = updates
	}

	return s, nil
}

func (l *Loader) compileUpdateMap(storyletID, field string, raw any) ([]storylet.Update, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("loader: storylet %q: %w: %q must be an object", storyletID, ErrMalformedField, field)
	}
	updates := make([]storylet.Update, 0, len(m))
	for key, exprRaw := range m {
		src, ok := exprRaw.(string)
		if !ok {
			return nil, fmt.Errorf("loader: storylet %q: %w: %s.%s must be a string", storyletID, ErrMalformedField, field, key)
		}
		expr, err := l.parser.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("loader: storylet %q: %s.%s: %w", storyletID, field, key, err)
		}
		updates = append(updates, storylet.Update{Key: key, Expr: expr})
	}
	return updates, nil
}

func parseRedraw(raw any) (int, error) {
	switch v := raw.(type) {
	case string:
		switch strings.ToLower(v) {
		case "always":
			return storylet.RedrawAlways, nil
		case "never":
			return storylet.RedrawNever, nil
		default:
			return 0, fmt.Errorf("%w: redraw string must be 'always' or 'never', got %q", ErrMalformedField, v)
		}
	case float64:
		n := int(v)
		if n < 0 {
			return 0, fmt.Errorf("%w: redraw integer must be non-negative, got %d", ErrMalformedField, n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: redraw must be a string or a number", ErrMalformedField)
	}
}

func (l *Loader) valueFromRaw(raw any) (exprlang.Value, error) {
	switch v := raw.(type) {
	case bool:
		return exprlang.Bool(v), nil
	case float64:
		return exprlang.Number(v), nil
	case string:
		return exprlang.String(v), nil
	default:
		return exprlang.Value{}, fmt.Errorf("%w: context values must be a bool, number, or string", ErrMalformedField)
	}
}
