package crawler

import "sync"

// SeenSet records URLs whose fetch succeeded, in the order they were added
type SeenSet struct {
	mu    sync.RWMutex
	index map[string]struct{}
	urls  []string
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{index: make(map[string]struct{})}
}

// Add records url and reports whether it was new
func (s *SeenSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[url]; ok {
		return false
	}
	s.index[url] = struct{}{}
	s.urls = append(s.urls, url)
	return true
}

func (s *SeenSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[url]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// URLs returns a copy of the recorded URLs in insertion order
func (s *SeenSet) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.urls...)
}
