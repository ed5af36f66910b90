package research

import "sync"

// ProgressState is the live view of one top-level research call.
// TotalQueries is the branch count of the most recently expanded node, not a
// tree-wide total, so it is only a liveness hint.
type ProgressState struct {
	CurrentDepth     int    `json:"currentDepth"`
	TotalDepth       int    `json:"totalDepth"`
	CurrentBreadth   int    `json:"currentBreadth"`
	TotalBreadth     int    `json:"totalBreadth"`
	CurrentQuery     string `json:"currentQuery,omitempty"`
	TotalQueries     int    `json:"totalQueries"`
	CompletedQueries int    `json:"completedQueries"`
}

// ProgressUpdate is a partial state: nil fields are left untouched.
// CompletedDelta is added to CompletedQueries rather than overwriting it so
// concurrent branches never lose a completion.
type ProgressUpdate struct {
	CurrentDepth   *int
	CurrentBreadth *int
	CurrentQuery   *string
	TotalQueries   *int
	CompletedDelta int
}

// ProgressTracker owns the ProgressState of one top-level call. Updates are
// serialized and the sink always sees them in the order they were applied.
type ProgressTracker struct {
	mu    sync.Mutex
	state ProgressState
	sink  ProgressSink
}

func NewProgressTracker(breadth, depth int, sink ProgressSink) *ProgressTracker {
	return &ProgressTracker{
		state: ProgressState{
			CurrentDepth:   depth,
			TotalDepth:     depth,
			CurrentBreadth: breadth,
			TotalBreadth:   breadth,
		},
		sink: sink,
	}
}

// Update applies u and notifies the sink with the resulting snapshot. The sink
// runs while the tracker is locked and must not call Update itself.
func (p *ProgressTracker) Update(u ProgressUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if u.CurrentDepth != nil {
		p.state.CurrentDepth = *u.CurrentDepth
	}
	if u.CurrentBreadth != nil {
		p.state.CurrentBreadth = *u.CurrentBreadth
	}
	if u.CurrentQuery != nil {
		p.state.CurrentQuery = *u.CurrentQuery
	}
	if u.TotalQueries != nil {
		p.state.TotalQueries = *u.TotalQueries
	}
	if u.CompletedDelta > 0 {
		p.state.CompletedQueries += u.CompletedDelta
	}

	if p.sink != nil {
		p.sink(p.state)
	}
}

func (p *ProgressTracker) Snapshot() ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func ptr[T any](v T) *T {
	return &v
}
