package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/index"
	"github.com/mikeboe/deep-research/pkg/research"
)

type memoryStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*database.Job
	order    []uuid.UUID
	logs     map[uuid.UUID][]database.LogEntry
	progress map[uuid.UUID][]research.ProgressState
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		jobs:     make(map[uuid.UUID]*database.Job),
		logs:     make(map[uuid.UUID][]database.LogEntry),
		progress: make(map[uuid.UUID][]research.ProgressState),
	}
}

func (m *memoryStore) CreateJob(ctx context.Context, query string, breadth, depth int) (*database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &database.Job{
		ID:        uuid.New(),
		Query:     query,
		Breadth:   breadth,
		Depth:     depth,
		Status:    database.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	c := *job
	return &c, nil
}

func (m *memoryStore) GetJob(ctx context.Context, id uuid.UUID) (*database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, database.ErrJobNotFound
	}
	c := *job
	return &c, nil
}

func (m *memoryStore) ListJobs(ctx context.Context, limit int) ([]database.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Job
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.jobs[m.order[i]])
	}
	return out, nil
}

func (m *memoryStore) update(id uuid.UUID, fn func(*database.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return database.ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) SetJobStatus(ctx context.Context, id uuid.UUID, status database.JobStatus) error {
	return m.update(id, func(j *database.Job) { j.Status = status })
}

func (m *memoryStore) SaveProgress(ctx context.Context, id uuid.UUID, progress json.RawMessage) error {
	var state research.ProgressState
	if err := json.Unmarshal(progress, &state); err != nil {
		return err
	}
	m.mu.Lock()
	m.progress[id] = append(m.progress[id], state)
	m.mu.Unlock()
	return m.update(id, func(j *database.Job) { j.Progress = progress })
}

func (m *memoryStore) SaveResult(ctx context.Context, id uuid.UUID, report string, learnings, visitedURLs []string) error {
	return m.update(id, func(j *database.Job) {
		j.Report = &report
		j.Learnings = learnings
		j.VisitedURLs = visitedURLs
	})
}

func (m *memoryStore) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	return m.update(id, func(j *database.Job) {
		j.Status = database.StatusFailed
		j.Error = &reason
	})
}

func (m *memoryStore) AppendLog(ctx context.Context, jobID uuid.UUID, ts time.Time, level, message string, metadata json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.logs[jobID]
	m.logs[jobID] = append(entries, database.LogEntry{
		ID:        len(entries) + 1,
		Timestamp: ts,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
	})
	return nil
}

func (m *memoryStore) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.LogEntry(nil), m.logs[jobID]...), nil
}

// stubResearch implements every research collaborator with canned answers.
type stubResearch struct {
	genErr    error
	reportErr error
	next      atomic.Int64
}

func (s *stubResearch) GenerateQueries(ctx context.Context, query string, learnings []string, maxCount int) ([]research.SerpQuery, error) {
	if s.genErr != nil {
		return nil, s.genErr
	}
	out := make([]research.SerpQuery, maxCount)
	for i := range out {
		out[i] = research.SerpQuery{Query: fmt.Sprintf("%s #%d", query, s.next.Add(1)), ResearchGoal: "goal"}
	}
	return out, nil
}

func (s *stubResearch) Search(ctx context.Context, query string, limit int) ([]research.SearchDocument, error) {
	return []research.SearchDocument{{URL: "https://example.com/" + uuid.NewString(), Markdown: "source for " + query}}, nil
}

func (s *stubResearch) ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (research.Extraction, error) {
	return research.Extraction{Learnings: []string{"learned " + query}, FollowUpQuestions: []string{"next?"}}, nil
}

func (s *stubResearch) WriteReport(ctx context.Context, prompt, learnings string) (string, error) {
	if s.reportErr != nil {
		return "", s.reportErr
	}
	return "# Report on " + prompt, nil
}

func (s *stubResearch) CheckFacts(ctx context.Context, report, sources string) (research.FactCheckResult, error) {
	return research.FactCheckResult{OverallAssessment: "Supported."}, nil
}

type stubIndex struct {
	mu      sync.Mutex
	indexed map[uuid.UUID][]string
	err     error
}

func (s *stubIndex) Index(ctx context.Context, jobID uuid.UUID, contents []string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed == nil {
		s.indexed = make(map[uuid.UUID][]string)
	}
	s.indexed[jobID] = contents
	return len(contents), nil
}

func (s *stubIndex) Search(ctx context.Context, query string, jobID *uuid.UUID, topK int) ([]index.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []index.Chunk
	for id, contents := range s.indexed {
		if jobID != nil && *jobID != id {
			continue
		}
		for d, c := range contents {
			out = append(out, index.Chunk{JobID: id.String(), Document: d, Content: c})
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *stubIndex) Chunks(ctx context.Context, jobID uuid.UUID) ([]index.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []index.Chunk
	for d, c := range s.indexed[jobID] {
		out = append(out, index.Chunk{JobID: jobID.String(), Document: d, Content: c})
	}
	return out, nil
}

var errStub = errors.New("stub failure")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(stub *stubResearch, idx SourceIndex) (*Service, *memoryStore) {
	store := newMemoryStore()
	engine := research.NewEngine(research.DefaultOptions(), stub, stub, stub)
	engine.Logger = discardLogger()
	assembler := research.NewReportAssembler(stub, stub)
	assembler.Logger = discardLogger()

	svc := NewService(store, engine, assembler, idx)
	svc.Logger = discardLogger()
	svc.DefaultBreadth = 2
	svc.DefaultDepth = 1
	return svc, store
}
