package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	apperrors "kgchat/backend/pkg/errors"
	"kgchat/backend/pkg/logger"
)

const (
	neo4jNodesQuery = `
		MATCH (n)
		RETURN elementId(n) AS element_id, labels(n) AS labels, properties(n) AS props
	`
	neo4jEdgesQuery = `
		MATCH (a)-[r]->(b)
		RETURN elementId(a) AS source, elementId(b) AS target, type(r) AS rel_type, properties(r) AS props
	`
	neo4jClearQuery = `MATCH (n:Entity) DETACH DELETE n`
	neo4jNodesWrite = `
		UNWIND $nodes AS node
		MERGE (n:Entity {id: node.id})
		SET n += node.props
	`
	neo4jEdgesWrite = `
		UNWIND $edges AS edge
		MATCH (a:Entity {id: edge.source}), (b:Entity {id: edge.target})
		MERGE (a)-[r:RELATED]->(b)
		SET r += edge.props
	`
)

// Neo4jSource reads the whole graph stored in a Neo4j database. A node is
// identified by its "id" property, falling back to the element id. The
// relationship type becomes the "relation" attribute unless a property of
// that name exists.
type Neo4jSource struct {
	uri      string
	opts     SourceOptions
	driver   neo4j.DriverWithContext
	external bool
	logger   *zap.Logger
}

// NewNeo4jSource creates a source that dials uri on every load
func NewNeo4jSource(uri string, opts SourceOptions) *Neo4jSource {
	return &Neo4jSource{
		uri:    uri,
		opts:   opts,
		logger: logger.Get(),
	}
}

// NewNeo4jSourceWithDriver creates a source over an existing driver. The
// driver stays owned by the caller.
func NewNeo4jSourceWithDriver(driver neo4j.DriverWithContext, database string) *Neo4jSource {
	return &Neo4jSource{
		opts:     SourceOptions{Neo4jDatabase: database},
		driver:   driver,
		external: true,
		logger:   logger.Get(),
	}
}

func (s *Neo4jSource) connect(ctx context.Context) (neo4j.DriverWithContext, error) {
	if s.external {
		return s.driver, nil
	}
	driver, err := neo4j.NewDriverWithContext(
		s.uri,
		neo4j.BasicAuth(s.opts.Neo4jUser, s.opts.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(s.uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(s.uri, err)
	}
	return driver, nil
}

func (s *Neo4jSource) release(ctx context.Context, driver neo4j.DriverWithContext) {
	if s.external {
		return
	}
	if err := driver.Close(ctx); err != nil {
		s.logger.Debug("Failed to close Neo4j driver", zap.Error(err))
	}
}

// Load implements Source
func (s *Neo4jSource) Load(ctx context.Context) (*RawGraph, error) {
	driver, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, driver)

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.opts.Neo4jDatabase,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, neo4jNodesQuery, nil)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("fetch nodes", err)
	}

	raw := &RawGraph{}
	byElement := make(map[string]string)
	for result.Next(ctx) {
		record := result.Record()
		elementID := getStringFromRecord(record, "element_id")
		props := getMapFromRecord(record, "props")

		id := AttrString(props["id"])
		if id == "" {
			id = elementID
		}
		delete(props, "id")

		labels := getStringSliceFromRecord(record, "labels")
		if len(labels) > 0 {
			if _, ok := FirstAttr(props, EntityTypeKeys...); !ok {
				sort.Strings(labels)
				props["type"] = labels[0]
			}
		}

		byElement[elementID] = id
		raw.Nodes = append(raw.Nodes, RawNode{ID: id, Attrs: props})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed("fetch nodes", err)
	}

	result, err = session.Run(ctx, neo4jEdgesQuery, nil)
	if err != nil {
		return nil, apperrors.NewGraphQueryFailed("fetch relationships", err)
	}
	for result.Next(ctx) {
		record := result.Record()
		src, okSrc := byElement[getStringFromRecord(record, "source")]
		dst, okDst := byElement[getStringFromRecord(record, "target")]
		if !okSrc || !okDst {
			continue
		}
		props := getMapFromRecord(record, "props")
		if _, ok := props["relation"]; !ok {
			if relType := getStringFromRecord(record, "rel_type"); relType != "" {
				props["relation"] = relType
			}
		}
		raw.Edges = append(raw.Edges, RawEdge{Source: src, Target: dst, Attrs: props})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewGraphQueryFailed("fetch relationships", err)
	}

	s.logger.Debug("Loaded graph from Neo4j",
		zap.Int("nodes", len(raw.Nodes)),
		zap.Int("edges", len(raw.Edges)),
	)
	return raw, nil
}

// Replace clears every :Entity node and writes raw in its place. Nodes are
// merged by "id" and edges stored as :RELATED relationships.
func (s *Neo4jSource) Replace(ctx context.Context, raw *RawGraph) error {
	driver, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer s.release(ctx, driver)

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.opts.Neo4jDatabase,
	})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, neo4jClearQuery, nil); err != nil {
		return apperrors.NewGraphQueryFailed("clear entities", err)
	}

	nodes := make([]map[string]any, 0, len(raw.Nodes))
	for _, n := range raw.Nodes {
		nodes = append(nodes, map[string]any{"id": n.ID, "props": neo4jProps(n.Attrs)})
	}
	if _, err := session.Run(ctx, neo4jNodesWrite, map[string]any{"nodes": nodes}); err != nil {
		return apperrors.NewGraphQueryFailed("write nodes", err)
	}

	edges := make([]map[string]any, 0, len(raw.Edges))
	for _, e := range raw.Edges {
		edges = append(edges, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"props":  neo4jProps(e.Attrs),
		})
	}
	if _, err := session.Run(ctx, neo4jEdgesWrite, map[string]any{"edges": edges}); err != nil {
		return apperrors.NewGraphQueryFailed("write relationships", err)
	}

	s.logger.Info("Graph written to Neo4j",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
	return nil
}

// neo4jProps keeps the attribute values Neo4j can store as properties
func neo4jProps(attrs map[string]any) map[string]any {
	props := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k == "id" {
			continue
		}
		switch val := v.(type) {
		case string, bool, int64, float64:
			props[k] = val
		case int:
			props[k] = int64(val)
		case float32:
			props[k] = float64(val)
		case nil:
		default:
			props[k] = fmt.Sprint(val)
		}
	}
	return props
}
