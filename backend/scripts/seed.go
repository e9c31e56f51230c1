package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"kgchat/backend/internal/graph"
	"kgchat/backend/pkg/config"
	"kgchat/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Copies a graph file into Neo4j so the server can read it with
// GRAPH_PATH=bolt://...
func main() {
	from := flag.String("from", "", "Graph file to import (defaults to GRAPH_PATH)")
	to := flag.String("to", "bolt://localhost:7687", "Neo4j URI to write to")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	path := *from
	if path == "" {
		path = cfg.GraphPath
	}
	if graph.IsDatabaseLocation(path) {
		log.Fatal("Seed source must be a graph file", zap.String("path", path))
	}
	if !graph.IsDatabaseLocation(*to) {
		log.Fatal("Seed target must be a Neo4j URI", zap.String("to", *to))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	src, err := graph.OpenSource(path, graph.SourceOptions{})
	if err != nil {
		log.Fatal("Failed to open graph file", zap.String("path", path), zap.Error(err))
	}
	raw, err := src.Load(ctx)
	if err != nil {
		log.Fatal("Failed to read graph file", zap.String("path", path), zap.Error(err))
	}
	log.Info("Graph file read",
		zap.String("path", path),
		zap.Int("nodes", len(raw.Nodes)),
		zap.Int("edges", len(raw.Edges)),
	)

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		*to,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	log.Info("Creating constraints...")
	if err := createConstraints(ctx, driver, cfg.Neo4jDatabase); err != nil {
		log.Warn("Failed to create entity constraint (may already exist)", zap.Error(err))
	}

	if err := graph.NewNeo4jSourceWithDriver(driver, cfg.Neo4jDatabase).Replace(ctx, raw); err != nil {
		log.Fatal("Failed to write graph", zap.Error(err))
	}

	log.Info("Graph seeding completed", zap.String("to", *to))
}

// createConstraints makes entity ids unique so MERGE stays cheap on large graphs
func createConstraints(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: database,
	})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE", nil)
	return err
}
