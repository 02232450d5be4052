package noun

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/seferlab/lexgraph/pkg/common"
)

// ErrPlaceholderSurface is returned when a noun arrives with an empty or
// reserved placeholder surface. Such nouns are rejected at the boundary and
// never reach the batch processor.
var ErrPlaceholderSurface = errors.New("noun surface is empty or a placeholder")

// Placeholder surfaces emitted by looser upstream producers.
var placeholderSurfaces = map[string]struct{}{
	"":        {},
	"unknown": {},
	"n/a":     {},
	"none":    {},
	"-":       {},
}

// IsPlaceholderSurface reports whether the surface is empty or one of the
// reserved placeholder values.
func IsPlaceholderSurface(surface string) bool {
	_, ok := placeholderSurfaces[strings.ToLower(strings.TrimSpace(surface))]
	return ok
}

// Historical field-name aliases used by upstream producers. Every alias maps
// into the canonical struct here; anything ambiguous is rejected instead of
// being propagated downstream.
var (
	idAliases       = []string{"noun_id", "id"}
	surfaceAliases  = []string{"surface", "hebrew", "hebrew_text", "word"}
	gematriaAliases = []string{"gematria_value", "gematria", "value"}
	classAliases    = []string{"class", "category"}
	analysisAliases = []string{"analysis", "annotations"}
	sourcesAliases  = []string{"sources", "refs", "citations"}
	gemConfAliases  = []string{"gematria_confidence", "value_confidence"}
	aiConfAliases   = []string{"confidence", "ai_confidence"}
	insightAliases  = []string{"insight", "ai_insight", "commentary"}
	lettersAliases  = []string{"letters"}
)

// Adapt maps a raw upstream noun object into the canonical Noun struct.
// Missing identifiers are minted, missing confidences default to 1.0, the
// gematria value is computed from the surface when absent, and unknown class
// tags collapse to "other". Placeholder surfaces and ambiguous alias usage
// are errors.
func Adapt(raw map[string]any) (common.Noun, error) {
	var n common.Noun

	surface, _, err := pickString(raw, surfaceAliases)
	if err != nil {
		return n, err
	}
	if IsPlaceholderSurface(surface) {
		return n, fmt.Errorf("%w: %q", ErrPlaceholderSurface, surface)
	}
	n.Surface = surface

	id, ok, err := pickString(raw, idAliases)
	if err != nil {
		return n, err
	}
	if !ok || id == "" {
		id, err = gonanoid.New()
		if err != nil {
			return n, fmt.Errorf("failed to mint noun id: %w", err)
		}
	}
	n.ID = id

	value, ok, err := pickInt(raw, gematriaAliases)
	if err != nil {
		return n, err
	}
	if ok {
		n.GematriaValue = value
	} else {
		n.GematriaValue = GematriaValue(surface)
	}

	letters, ok, err := pickStringSlice(raw, lettersAliases)
	if err != nil {
		return n, err
	}
	if ok && len(letters) > 0 {
		n.Letters = letters
	} else {
		n.Letters = Letters(surface)
	}

	class, _, err := pickString(raw, classAliases)
	if err != nil {
		return n, err
	}
	n.Class = common.NormalizeClass(class)

	analysis, _, err := pickMap(raw, analysisAliases)
	if err != nil {
		return n, err
	}
	n.Analysis = analysis

	sources, err := pickSources(raw)
	if err != nil {
		return n, err
	}
	n.Sources = sources

	n.GematriaConfidence, err = pickFloatDefault(raw, gemConfAliases, 1.0)
	if err != nil {
		return n, err
	}
	n.AIConfidence, err = pickFloatDefault(raw, aiConfAliases, 1.0)
	if err != nil {
		return n, err
	}

	insight, _, err := pickString(raw, insightAliases)
	if err != nil {
		return n, err
	}
	n.Insight = insight

	return n, nil
}

// AdaptAll adapts a list of raw noun objects, failing on the first noun that
// does not map cleanly.
func AdaptAll(raws []map[string]any) ([]common.Noun, error) {
	nouns := make([]common.Noun, 0, len(raws))
	for i, raw := range raws {
		n, err := Adapt(raw)
		if err != nil {
			return nil, fmt.Errorf("noun %d: %w", i, err)
		}
		nouns = append(nouns, n)
	}
	return nouns, nil
}

func pickString(raw map[string]any, aliases []string) (string, bool, error) {
	var result string
	found := false
	for _, key := range aliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", false, fmt.Errorf("field %q must be a string, got %T", key, v)
		}
		if found && s != result {
			return "", false, fmt.Errorf("ambiguous aliases for %q: %q vs %q", aliases[0], result, s)
		}
		result = s
		found = true
	}
	return result, found, nil
}

func pickInt(raw map[string]any, aliases []string) (int, bool, error) {
	var result int
	found := false
	for _, key := range aliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		parsed, err := coerceInt(v)
		if err != nil {
			return 0, false, fmt.Errorf("field %q: %w", key, err)
		}
		if found && parsed != result {
			return 0, false, fmt.Errorf("ambiguous aliases for %q: %d vs %d", aliases[0], result, parsed)
		}
		result = parsed
		found = true
	}
	return result, found, nil
}

func pickFloatDefault(raw map[string]any, aliases []string, defaultValue float64) (float64, error) {
	var result float64
	found := false
	for _, key := range aliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		parsed, err := coerceFloat(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		if found && parsed != result {
			return 0, fmt.Errorf("ambiguous aliases for %q: %v vs %v", aliases[0], result, parsed)
		}
		result = parsed
		found = true
	}
	if !found {
		return defaultValue, nil
	}
	return result, nil
}

func pickMap(raw map[string]any, aliases []string) (map[string]any, bool, error) {
	for _, key := range aliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("field %q must be an object, got %T", key, v)
		}
		return m, true, nil
	}
	return nil, false, nil
}

func pickStringSlice(raw map[string]any, aliases []string) ([]string, bool, error) {
	for _, key := range aliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		switch entries := v.(type) {
		case []string:
			return entries, true, nil
		case []any:
			out := make([]string, 0, len(entries))
			for i, entry := range entries {
				s, ok := entry.(string)
				if !ok {
					return nil, false, fmt.Errorf("field %q[%d] must be a string, got %T", key, i, entry)
				}
				out = append(out, s)
			}
			return out, true, nil
		default:
			return nil, false, fmt.Errorf("field %q must be an array of strings, got %T", key, v)
		}
	}
	return nil, false, nil
}

func pickSources(raw map[string]any) ([]common.Source, error) {
	for _, key := range sourcesAliases {
		v, exists := raw[key]
		if !exists || v == nil {
			continue
		}
		entries, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("field %q must be an array, got %T", key, v)
		}
		sources := make([]common.Source, 0, len(entries))
		for i, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %q[%d] must be an object, got %T", key, i, entry)
			}
			ref, found, err := pickString(m, []string{"ref", "source", "citation"})
			if err != nil {
				return nil, fmt.Errorf("field %q[%d]: %w", key, i, err)
			}
			if !found || ref == "" {
				return nil, fmt.Errorf("field %q[%d] is missing a ref", key, i)
			}
			source := common.Source{Ref: ref}
			if offsetRaw, exists := m["offset"]; exists && offsetRaw != nil {
				offset, err := coerceInt(offsetRaw)
				if err != nil {
					return nil, fmt.Errorf("field %q[%d] offset: %w", key, i, err)
				}
				source.Offset = &offset
			}
			sources = append(sources, source)
		}
		return sources, nil
	}
	return nil, nil
}

func coerceInt(v any) (int, error) {
	switch value := v.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != float64(int(value)) {
			return 0, fmt.Errorf("expected an integer, got %v", value)
		}
		return int(value), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
