// Package frontier implements the crawl frontier: a max-priority queue of
// discovered but not yet fetched URLs whose scores can be raised in place.
//
// The queue is an index-aware binary heap paired with a URL index, so a
// rescored candidate is repositioned directly and PopBest never observes a
// stale score.
package frontier

import (
	"container/heap"
	"errors"
	"sync"
)

var (
	// ErrEmpty is returned by PopBest when no candidate is queued
	ErrEmpty = errors.New("frontier is empty")
	// ErrExists is returned by Insert when the URL is already queued
	ErrExists = errors.New("url already queued")
	// ErrRetired is returned by Insert when the URL was already popped this run
	ErrRetired = errors.New("url already popped")
	// ErrNotFound is returned by AddScore when the URL is not queued
	ErrNotFound = errors.New("url not queued")
)

// Candidate is a page known to exist but not yet fetched
type Candidate struct {
	URL   string // Absolute, normalized URL
	Name  string // Storage name derived at first discovery
	Score int    // Accumulated relevance score
}

type entry struct {
	Candidate
	seq   uint64 // insertion order, breaks score ties
	index int    // position in the heap
}

// entryHeap implements heap.Interface ordered by score, then insertion order
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Frontier is a priority queue with in-place key increase. It is safe for
// concurrent use.
type Frontier struct {
	mu      sync.Mutex
	heap    entryHeap
	byURL   map[string]*entry
	retired map[string]struct{}
	nextSeq uint64
}

// New creates an empty frontier
func New() *Frontier {
	return &Frontier{
		byURL:   make(map[string]*entry),
		retired: make(map[string]struct{}),
	}
}

// Insert adds a new candidate. Rediscovery of a queued URL must go through
// AddScore instead.
func (f *Frontier) Insert(url, name string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byURL[url]; ok {
		return ErrExists
	}
	if _, ok := f.retired[url]; ok {
		return ErrRetired
	}

	e := &entry{
		Candidate: Candidate{URL: url, Name: name, Score: score},
		seq:       f.nextSeq,
	}
	f.nextSeq++
	heap.Push(&f.heap, e)
	f.byURL[url] = e
	return nil
}

// AddScore adds delta to a queued candidate's score and restores heap order.
// It returns the new score.
func (f *Frontier) AddScore(url string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.byURL[url]
	if !ok {
		return 0, ErrNotFound
	}
	e.Score += delta
	heap.Fix(&f.heap, e.index)
	return e.Score, nil
}

// PopBest removes and returns the candidate with the highest score. The URL
// is retired and cannot be inserted again.
func (f *Frontier) PopBest() (Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.heap) == 0 {
		return Candidate{}, ErrEmpty
	}
	e := heap.Pop(&f.heap).(*entry)
	delete(f.byURL, e.URL)
	f.retired[e.URL] = struct{}{}
	return e.Candidate, nil
}

// IsEmpty reports whether no candidate is queued
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Len returns the number of queued candidates
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}

// Contains reports whether url is currently queued
func (f *Frontier) Contains(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byURL[url]
	return ok
}

// Retired reports whether url has already been popped
func (f *Frontier) Retired(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.retired[url]
	return ok
}

// Score returns the current score of a queued url
func (f *Frontier) Score(url string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byURL[url]
	if !ok {
		return 0, false
	}
	return e.Score, true
}

// Snapshot returns the queued candidates in heap order (not sorted)
func (f *Frontier) Snapshot() []Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Candidate, 0, len(f.heap))
	for _, e := range f.heap {
		out = append(out, e.Candidate)
	}
	return out
}
