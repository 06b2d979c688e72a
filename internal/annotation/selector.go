package annotation

import "sync"

// Selection identifies one dialog switch. Token grows with every Select call,
// so two selections of the same dialog are still distinct.
type Selection struct {
	DialogID string
	Token    uint64
}

// Selector issues selections and tells whether one is still current.
// Asynchronous results must be checked against it before they are applied.
type Selector struct {
	mu      sync.Mutex
	current Selection
}

func NewSelector() *Selector {
	return &Selector{}
}

// Select makes dialogID the active dialog and returns its selection.
func (s *Selector) Select(dialogID string) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Selection{DialogID: dialogID, Token: s.current.Token + 1}
	return s.current
}

func (s *Selector) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Selector) IsCurrent(sel Selection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == sel
}
