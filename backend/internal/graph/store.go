package graph

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"kgchat/backend/internal/centrality"
	"kgchat/backend/pkg/logger"
)

// StoreOptions configures a Store
type StoreOptions struct {
	Sources SourceOptions
	// Ranker computes centrality for each new snapshot. Defaults to PageRank
	// with the degree fallback.
	Ranker centrality.Ranker
	// Open resolves a location to a Source. Defaults to OpenSource.
	Open func(location string, opts SourceOptions) (Source, error)
	// OnReload observes every published snapshot together with the load
	// error that degraded it, if any.
	OnReload func(snap *Snapshot, err error)
	Logger   *zap.Logger
}

// Store owns the current graph snapshot. Readers take the snapshot without
// locking; Reload builds a replacement and swaps it in whole.
type Store struct {
	path string

	opts    StoreOptions
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	logger  *zap.Logger
}

// NewStore creates a store bound to path holding an empty snapshot. Call
// Reload to read the graph.
func NewStore(path string, opts StoreOptions) *Store {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.Ranker == nil {
		opts.Ranker = centrality.Default(opts.Logger)
	}
	if opts.Open == nil {
		opts.Open = OpenSource
	}
	s := &Store{path: path, opts: opts, logger: opts.Logger}
	s.current.Store(EmptySnapshot())
	return s
}

// Snapshot returns the current snapshot
func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

// Load reads path into a new snapshot without publishing it. Failures are
// logged and yield an empty snapshot.
func (s *Store) Load(ctx context.Context, path string) *Snapshot {
	snap, _ := s.load(ctx, path)
	return snap
}

func (s *Store) load(ctx context.Context, path string) (*Snapshot, error) {
	raw, err := s.read(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Graph file not found, using empty graph", zap.String("path", path))
		} else {
			s.logger.Error("Failed to load graph, using empty graph",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		raw = &RawGraph{}
	}

	snap := BuildSnapshot(raw, s.opts.Ranker)
	snap.source = path
	if algo, fellBack := snap.CentralityAlgorithm(); fellBack {
		s.logger.Debug("Centrality fell back", zap.String("strategy", algo))
	}
	return snap, err
}

func (s *Store) read(ctx context.Context, path string) (*RawGraph, error) {
	src, err := s.opts.Open(path, s.opts.Sources)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}

// Reload reads the current path and publishes the result. Concurrent calls
// share one load. It never fails; a broken source publishes an empty graph.
// A load cut short by ctx publishes nothing and returns the current snapshot.
func (s *Store) Reload(ctx context.Context) *Snapshot {
	v, _, _ := s.group.Do("reload", func() (interface{}, error) {
		path := s.path
		snap, err := s.load(ctx, path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.logger.Warn("Graph reload cancelled, keeping current graph",
				zap.String("path", path),
				zap.Error(ctxErr),
			)
			return s.current.Load(), nil
		}
		s.current.Store(snap)

		s.logger.Info("Graph loaded",
			zap.String("path", path),
			zap.Int("nodes", snap.NodeCount()),
			zap.Int("edges", snap.EdgeCount()),
		)
		if s.opts.OnReload != nil {
			s.opts.OnReload(snap, err)
		}
		return snap, nil
	})
	return v.(*Snapshot)
}
