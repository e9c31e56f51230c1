package graph

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	apperrors "kgchat/backend/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NodeLinkFormat is the encoding of a node-link document
type NodeLinkFormat string

const (
	FormatJSON NodeLinkFormat = "json"
	FormatYAML NodeLinkFormat = "yaml"
)

// NodeLinkFile reads a node-link document:
//
//	{"nodes": [{"id": "a", ...}], "links": [{"source": "a", "target": "b", ...}]}
//
// "edges" is accepted in place of "links".
type NodeLinkFile struct {
	Path   string
	Format NodeLinkFormat
}

type nodeLinkDoc struct {
	Nodes []map[string]any `json:"nodes" yaml:"nodes"`
	Links []map[string]any `json:"links" yaml:"links"`
	Edges []map[string]any `json:"edges" yaml:"edges"`
}

// Load implements Source
func (f *NodeLinkFile) Load(ctx context.Context) (*RawGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewContextCancelled("node-link load", err)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, apperrors.NewGraphSourceFailed(f.Path, err)
	}
	raw, err := ParseNodeLink(data, f.Format)
	if err != nil {
		return nil, apperrors.NewGraphSourceFailed(f.Path, err)
	}
	return raw, nil
}

// ParseNodeLink decodes a node-link document. Identifiers may be strings or
// numbers; entries without one are dropped.
func ParseNodeLink(data []byte, format NodeLinkFormat) (*RawGraph, error) {
	var doc nodeLinkDoc
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse node-link json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse node-link yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown node-link format %q", format)
	}

	raw := &RawGraph{}
	for _, n := range doc.Nodes {
		id := AttrString(n["id"])
		if id == "" {
			continue
		}
		delete(n, "id")
		raw.Nodes = append(raw.Nodes, RawNode{ID: id, Attrs: n})
	}

	links := doc.Links
	if len(links) == 0 {
		links = doc.Edges
	}
	for _, l := range links {
		src, dst := AttrString(l["source"]), AttrString(l["target"])
		if src == "" || dst == "" {
			continue
		}
		delete(l, "source")
		delete(l, "target")
		raw.Edges = append(raw.Edges, RawEdge{Source: src, Target: dst, Attrs: l})
	}
	return raw, nil
}
