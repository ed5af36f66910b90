package research

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_PartialUpdate(t *testing.T) {
	tracker := NewProgressTracker(4, 2, nil)

	tracker.Update(ProgressUpdate{CurrentQuery: ptr("first"), TotalQueries: ptr(4)})
	tracker.Update(ProgressUpdate{CurrentDepth: ptr(1)})

	assert.Equal(t, ProgressState{
		CurrentDepth:   1,
		TotalDepth:     2,
		CurrentBreadth: 4,
		TotalBreadth:   4,
		CurrentQuery:   "first",
		TotalQueries:   4,
	}, tracker.Snapshot())
}

func TestProgressTracker_ConcurrentCompletions(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	tracker := NewProgressTracker(2, 2, func(s ProgressState) {
		mu.Lock()
		seen = append(seen, s.CompletedQueries)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(ProgressUpdate{CompletedDelta: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Snapshot().CompletedQueries)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 100)
	for i, v := range seen {
		assert.Equal(t, i+1, v)
	}
}

func TestProgressTracker_NegativeDeltaIgnored(t *testing.T) {
	tracker := NewProgressTracker(1, 1, nil)
	tracker.Update(ProgressUpdate{CompletedDelta: 2})
	tracker.Update(ProgressUpdate{CompletedDelta: -1})
	assert.Equal(t, 2, tracker.Snapshot().CompletedQueries)
}
