package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute lookup orders. Earlier keys win; empty values are skipped.
var (
	LabelKeys        = []string{"name", "label", "title"}
	EntityTypeKeys   = []string{"entity_type", "type"}
	DescriptionKeys  = []string{"description", "summary"}
	RelationshipKeys = []string{"relation", "label", "type"}
)

// DefaultRelationship is used when an edge names no relationship
const DefaultRelationship = "related"

// FirstAttr returns the first attribute among keys that is present and not
// empty, following the truthiness of the graph files' producers: nil, "",
// false and zero numbers count as empty.
func FirstAttr(attrs map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		v, ok := attrs[key]
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// FirstString is FirstAttr rendered as a string, or fallback when absent
func FirstString(attrs map[string]any, fallback string, keys ...string) string {
	if v, ok := FirstAttr(attrs, keys...); ok {
		return AttrString(v)
	}
	return fallback
}

// AttrString renders an attribute value as text
func AttrString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

// AttrFloat parses a numeric attribute. Strings holding numbers are accepted.
func AttrFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// EdgeWeight returns the "weight" attribute, defaulting to 1.0 when absent or
// not numeric
func EdgeWeight(attrs map[string]any) float64 {
	if w, ok := AttrFloat(attrs["weight"]); ok {
		return w
	}
	return 1.0
}

// Relationship resolves an edge's relationship label
func Relationship(attrs map[string]any) string {
	return FirstString(attrs, DefaultRelationship, RelationshipKeys...)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int64:
		return val == 0
	case int:
		return val == 0
	}
	return false
}

// resolveNode applies the label, type and description precedence rules
func resolveNode(id string, attrs map[string]any) Node {
	return Node{
		ID:          id,
		Label:       FirstString(attrs, id, LabelKeys...),
		Type:        FirstString(attrs, DefaultEntityType, EntityTypeKeys...),
		Description: FirstString(attrs, "", DescriptionKeys...),
		Attrs:       attrs,
	}
}
