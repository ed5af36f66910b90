package research

import "sync"

// Merge unions results field by field using exact string equality. The
// outcome does not depend on the order of results, and merging a result with
// itself changes nothing.
func Merge(results ...ResearchResult) ResearchResult {
	learnings := newStringSet()
	urls := newStringSet()
	contents := newStringSet()

	for _, r := range results {
		learnings.add(r.Learnings...)
		urls.add(r.VisitedURLs...)
		contents.add(r.SourceContents...)
	}

	return ResearchResult{
		Learnings:      learnings.values(),
		VisitedURLs:    urls.values(),
		SourceContents: contents.values(),
	}
}

// Accumulator is the append-only store shared by every branch of one
// top-level research call.
type Accumulator struct {
	mu       sync.Mutex
	learn    *stringSet
	urls     *stringSet
	contents *stringSet
}

func NewAccumulator(seed ResearchResult) *Accumulator {
	a := &Accumulator{
		learn:    newStringSet(),
		urls:     newStringSet(),
		contents: newStringSet(),
	}
	a.Append(seed)
	return a
}

func (a *Accumulator) Append(r ResearchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.learn.add(r.Learnings...)
	a.urls.add(r.VisitedURLs...)
	a.contents.add(r.SourceContents...)
}

// Snapshot copies the current contents; later appends do not affect it.
func (a *Accumulator) Snapshot() ResearchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ResearchResult{
		Learnings:      a.learn.values(),
		VisitedURLs:    a.urls.values(),
		SourceContents: a.contents.values(),
	}
}

func (a *Accumulator) Learnings() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.learn.values()
}

type stringSet struct {
	seen  map[string]struct{}
	order []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(items ...string) {
	for _, item := range items {
		if _, ok := s.seen[item]; ok {
			continue
		}
		s.seen[item] = struct{}{}
		s.order = append(s.order, item)
	}
}

func (s *stringSet) values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
