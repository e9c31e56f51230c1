package graph

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	apperrors "kgchat/backend/pkg/errors"
)

// GraphMLFile reads a GraphML document such as the ones written by the
// ingestion pipeline
type GraphMLFile struct {
	Path string
}

// Load implements Source
func (f *GraphMLFile) Load(ctx context.Context) (*RawGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewContextCancelled("graphml load", err)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, apperrors.NewGraphSourceFailed(f.Path, err)
	}
	raw, err := ParseGraphML(data)
	if err != nil {
		return nil, apperrors.NewGraphSourceFailed(f.Path, err)
	}
	return raw, nil
}

type graphMLKey struct {
	name     string
	domain   string
	kind     string
	fallback *string
}

// ParseGraphML decodes a GraphML document. Keys declared with a numeric or
// boolean attr.type are converted; everything else stays a string. Key
// defaults apply to elements that omit the data value.
func ParseGraphML(data []byte) (*RawGraph, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse graphml: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "graphml" {
		return nil, fmt.Errorf("parse graphml: missing <graphml> root")
	}

	keys := make(map[string]graphMLKey)
	for _, k := range root.SelectElements("key") {
		id := k.SelectAttrValue("id", "")
		if id == "" {
			continue
		}
		key := graphMLKey{
			name:   k.SelectAttrValue("attr.name", id),
			domain: k.SelectAttrValue("for", "all"),
			kind:   k.SelectAttrValue("attr.type", "string"),
		}
		if d := k.SelectElement("default"); d != nil {
			text := d.Text()
			key.fallback = &text
		}
		keys[id] = key
	}

	g := root.SelectElement("graph")
	if g == nil {
		return &RawGraph{}, nil
	}

	raw := &RawGraph{}
	for _, n := range g.SelectElements("node") {
		id := n.SelectAttrValue("id", "")
		if id == "" {
			continue
		}
		raw.Nodes = append(raw.Nodes, RawNode{ID: id, Attrs: graphMLData(n, keys, "node")})
	}
	for _, e := range g.SelectElements("edge") {
		src := e.SelectAttrValue("source", "")
		dst := e.SelectAttrValue("target", "")
		if src == "" || dst == "" {
			continue
		}
		raw.Edges = append(raw.Edges, RawEdge{Source: src, Target: dst, Attrs: graphMLData(e, keys, "edge")})
	}
	return raw, nil
}

func graphMLData(el *etree.Element, keys map[string]graphMLKey, domain string) map[string]any {
	attrs := make(map[string]any)
	for _, key := range keys {
		if key.fallback != nil && (key.domain == domain || key.domain == "all") {
			attrs[key.name] = convertGraphMLValue(*key.fallback, key.kind)
		}
	}
	for _, d := range el.SelectElements("data") {
		keyID := d.SelectAttrValue("key", "")
		key, ok := keys[keyID]
		if !ok {
			attrs[keyID] = d.Text()
			continue
		}
		attrs[key.name] = convertGraphMLValue(d.Text(), key.kind)
	}
	return attrs
}

func convertGraphMLValue(text, kind string) any {
	trimmed := strings.TrimSpace(text)
	switch kind {
	case "double", "float":
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case "int", "long":
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i
		}
	case "boolean":
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b
		}
	}
	return text
}
