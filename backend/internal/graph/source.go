package graph

import (
	"context"
	"path/filepath"
	"strings"

	apperrors "kgchat/backend/pkg/errors"
)

// Source produces the raw nodes and edges of a graph
type Source interface {
	Load(ctx context.Context) (*RawGraph, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (*RawGraph, error)

// Load implements Source
func (f SourceFunc) Load(ctx context.Context) (*RawGraph, error) { return f(ctx) }

// SourceOptions carries credentials for database backed sources
type SourceOptions struct {
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
}

// IsDatabaseLocation reports whether location names a Neo4j endpoint rather
// than a file
func IsDatabaseLocation(location string) bool {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
		return true
	}
	return false
}

// OpenSource selects a Source for location by URI scheme or file extension
func OpenSource(location string, opts SourceOptions) (Source, error) {
	if IsDatabaseLocation(location) {
		return NewNeo4jSource(location, opts), nil
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".graphml", ".xml":
		return &GraphMLFile{Path: location}, nil
	case ".json":
		return &NodeLinkFile{Path: location, Format: FormatJSON}, nil
	case ".yaml", ".yml":
		return &NodeLinkFile{Path: location, Format: FormatYAML}, nil
	}
	return nil, apperrors.NewGraphFormatUnsupported(location)
}
