package corpus

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ingestion job states
const (
	StatusIdle       = "idle"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Status describes the current or last ingestion job
type Status struct {
	JobID              string     `json:"job_id,omitempty"`
	Status             string     `json:"status"`
	DocumentsProcessed int        `json:"documents_processed"`
	TotalDocuments     int        `json:"total_documents"`
	CurrentFile        *string    `json:"current_file"`
	Error              *string    `json:"error"`
	StartedAt          *time.Time `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
}

// IngestOptions configures an Ingestor
type IngestOptions struct {
	// MaxParallel bounds how many files are read at once
	MaxParallel int
	// OnComplete runs after every job with its final status
	OnComplete func(Status)
	Logger     *zap.Logger
}

// Ingestor loads corpus directories into an Index in the background. At most
// one job runs at a time.
type Ingestor struct {
	index  *Index
	opts   IngestOptions
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	status  Status
	running bool
}

// NewIngestor creates an ingestor writing into index
func NewIngestor(index *Index, opts IngestOptions) *Ingestor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		index:  index,
		opts:   opts,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		status: Status{Status: StatusIdle},
	}
}

// Status returns a copy of the current job status
func (in *Ingestor) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status
}

// Start launches a job over dir unless one is already running, in which case
// the running job's status is returned unchanged. A job runs until its
// OnComplete hook returns.
func (in *Ingestor) Start(dir string) Status {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.running || in.ctx.Err() != nil {
		return in.status
	}

	now := time.Now()
	in.status = Status{
		JobID:     uuid.NewString(),
		Status:    StatusProcessing,
		StartedAt: &now,
	}

	in.running = true
	in.wg.Add(1)
	go func(jobID string) {
		defer in.wg.Done()
		in.run(jobID, dir)
		in.mu.Lock()
		in.running = false
		in.mu.Unlock()
	}(in.status.JobID)

	return in.status
}

// Wait blocks until the running job, if any, has finished
func (in *Ingestor) Wait() {
	in.wg.Wait()
}

// Close cancels a running job and waits for it
func (in *Ingestor) Close() {
	in.cancel()
	in.wg.Wait()
}

func (in *Ingestor) run(jobID, dir string) {
	logger := in.logger.With(zap.String("job_id", jobID), zap.String("dir", dir))
	logger.Info("Starting corpus ingestion")

	var (
		errMu  sync.Mutex
		errs   []string
		record = func(msg string) {
			errMu.Lock()
			errs = append(errs, msg)
			errMu.Unlock()
		}
	)

	files, err := IterFiles(dir, logger)
	if err != nil {
		record(err.Error())
	}
	in.update(func(s *Status) { s.TotalDocuments = len(files) })

	g, ctx := errgroup.WithContext(in.ctx)
	g.SetLimit(in.opts.MaxParallel)
	for _, path := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			name := filepath.Base(path)
			in.update(func(s *Status) { s.CurrentFile = &name })

			text, err := LoadDocument(path)
			if err != nil {
				logger.Error("Failed to load document", zap.String("file", name), zap.Error(err))
				record(name + ": " + err.Error())
				return nil
			}
			if strings.TrimSpace(text) == "" {
				logger.Warn("Skipping empty document", zap.String("file", name))
				return nil
			}

			chunks := in.index.Add(DocumentID(path), text)
			in.update(func(s *Status) { s.DocumentsProcessed++ })
			logger.Debug("Indexed document", zap.String("file", name), zap.Int("chunks", chunks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		record("ingestion cancelled: " + err.Error())
	}

	sort.Strings(errs)
	final := in.update(func(s *Status) {
		now := time.Now()
		s.FinishedAt = &now
		s.CurrentFile = nil
		if len(errs) == 0 {
			s.Status = StatusCompleted
			return
		}
		joined := strings.Join(errs, "; ")
		s.Status = StatusFailed
		s.Error = &joined
	})

	logger.Info("Corpus ingestion finished",
		zap.String("status", final.Status),
		zap.Int("documents_processed", final.DocumentsProcessed),
		zap.Int("total_documents", final.TotalDocuments),
	)

	if in.opts.OnComplete != nil {
		in.opts.OnComplete(final)
	}
}

func (in *Ingestor) update(fn func(*Status)) Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	fn(&in.status)
	return in.status
}
