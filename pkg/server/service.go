package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/index"
	"github.com/mikeboe/deep-research/pkg/research"
)

var ErrIndexingDisabled = errors.New("source indexing is not configured")

// LogWriter persists one job log record.
type LogWriter interface {
	AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error
}

// JobStore is implemented by *database.PostgresDB.
type JobStore interface {
	LogWriter
	CreateJob(ctx context.Context, query string, breadth, depth int) (*database.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]database.Job, error)
	SetJobStatus(ctx context.Context, id uuid.UUID, status database.JobStatus) error
	SaveProgress(ctx context.Context, id uuid.UUID, progress json.RawMessage) error
	SaveResult(ctx context.Context, id uuid.UUID, report string, learnings, visitedURLs []string) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error)
}

// SourceIndex is implemented by *index.SourceIndexer.
type SourceIndex interface {
	Index(ctx context.Context, jobID uuid.UUID, contents []string) (int, error)
	Search(ctx context.Context, query string, jobID *uuid.UUID, topK int) ([]index.Chunk, error)
	Chunks(ctx context.Context, jobID uuid.UUID) ([]index.Chunk, error)
}

var (
	_ JobStore    = (*database.PostgresDB)(nil)
	_ SourceIndex = (*index.SourceIndexer)(nil)
)

// Service runs research jobs in background workers. Every job shares the
// engine's gate, so the concurrency limit holds across the whole server.
type Service struct {
	Store     JobStore
	Engine    *research.ResearchEngine
	Assembler *research.ReportAssembler
	Indexer   SourceIndex
	Logger    *slog.Logger

	DefaultBreadth int
	DefaultDepth   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(store JobStore, engine *research.ResearchEngine, assembler *research.ReportAssembler, indexer SourceIndex) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		Store:          store,
		Engine:         engine,
		Assembler:      assembler,
		Indexer:        indexer,
		Logger:         slog.Default(),
		DefaultBreadth: 4,
		DefaultDepth:   2,
		ctx:            ctx,
		cancel:         cancel,
	}
}

type CreateJobRequest struct {
	Query   string `json:"query" binding:"required"`
	Breadth *int   `json:"breadth,omitempty"`
	Depth   *int   `json:"depth,omitempty"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*database.Job, error) {
	breadth, depth := s.DefaultBreadth, s.DefaultDepth
	if req.Breadth != nil {
		breadth = *req.Breadth
	}
	if req.Depth != nil {
		depth = *req.Depth
	}
	if breadth < 0 || depth < 0 {
		return nil, fmt.Errorf("%w: breadth=%d depth=%d", research.ErrInvalidBudget, breadth, depth)
	}

	job, err := s.Store.CreateJob(ctx, req.Query, breadth, depth)
	if err != nil {
		return nil, err
	}

	// Start background worker
	s.wg.Add(1)
	go s.runWorker(s.ctx, *job)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error) {
	return s.Store.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]database.Job, error) {
	return s.Store.ListJobs(ctx, 50)
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error) {
	return s.Store.GetJobLogs(ctx, jobID)
}

func (s *Service) SearchSources(ctx context.Context, query string, jobID *uuid.UUID, topK int) ([]index.Chunk, error) {
	if s.Indexer == nil {
		return nil, ErrIndexingDisabled
	}
	return s.Indexer.Search(ctx, query, jobID, topK)
}

// ListSources returns every indexed chunk of a job in document order.
func (s *Service) ListSources(ctx context.Context, jobID uuid.UUID) ([]index.Chunk, error) {
	if s.Indexer == nil {
		return nil, ErrIndexingDisabled
	}
	if _, err := s.Store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.Indexer.Chunks(ctx, jobID)
}

// wait blocks until every started worker has finished.
func (s *Service) wait() {
	s.wg.Wait()
}

// Shutdown cancels running jobs and waits for their workers to record the failure.
func (s *Service) Shutdown() {
	s.cancel()
	s.wait()
}

func (s *Service) runWorker(ctx context.Context, job database.Job) {
	defer s.wg.Done()

	logger := slog.New(NewDBLogHandler(s.Store, job.ID).WithMirror(s.Logger.Handler()))

	if err := s.Store.SetJobStatus(ctx, job.ID, database.StatusRunning); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	engine := *s.Engine
	engine.Logger = logger

	result, err := engine.DeepResearch(ctx, research.Request{
		Query:      job.Query,
		Breadth:    job.Breadth,
		Depth:      job.Depth,
		OnProgress: s.progressSink(ctx, job.ID, logger),
	})
	if err != nil {
		s.failJob(ctx, job.ID, logger, fmt.Sprintf("Research failed: %v", err))
		return
	}

	assembler := *s.Assembler
	assembler.Logger = logger

	report, err := assembler.Assemble(ctx, job.Query, result.Learnings, result.SourceContents, result.VisitedURLs)
	if err != nil {
		s.failJob(ctx, job.ID, logger, fmt.Sprintf("Report failed: %v", err))
		return
	}

	if err := s.Store.SaveResult(ctx, job.ID, report, result.Learnings, result.VisitedURLs); err != nil {
		s.failJob(ctx, job.ID, logger, fmt.Sprintf("Failed to save report: %v", err))
		return
	}

	if s.Indexer != nil {
		if _, err := s.Indexer.Index(ctx, job.ID, result.SourceContents); err != nil {
			s.failJob(ctx, job.ID, logger, fmt.Sprintf("Indexing sources failed: %v", err))
			return
		}
	}

	if err := s.Store.SetJobStatus(ctx, job.ID, database.StatusCompleted); err != nil {
		logger.Error("Failed to mark job completed", "error", err)
		return
	}
	logger.Info("Research job completed", "learnings", len(result.Learnings), "urls", len(result.VisitedURLs))
}

// progressSink persists every snapshot. It runs under the tracker lock, so
// snapshots reach the store in order.
func (s *Service) progressSink(ctx context.Context, jobID uuid.UUID, logger *slog.Logger) research.ProgressSink {
	return func(state research.ProgressState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			logger.Error("Failed to marshal progress", "error", err)
			return
		}
		if err := s.Store.SaveProgress(context.WithoutCancel(ctx), jobID, stateJSON); err != nil {
			logger.Error("Failed to save progress to DB", "error", err)
		}
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error(reason)
	if err := s.Store.FailJob(context.WithoutCancel(ctx), jobID, reason); err != nil {
		logger.Error("Failed to mark job failed", "error", err)
	}
}
