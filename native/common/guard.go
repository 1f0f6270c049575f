package common

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused, wrapped with the module name, when the module
// is paused in the supplied view.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, ErrModulePaused)
	}
	return nil
}

// PauseSet is a concurrency-safe PauseView backed by an in-memory set of module
// names. Names are case-insensitive.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

// NewPauseSet constructs a set with the supplied modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	set := &PauseSet{paused: make(map[string]struct{})}
	for _, module := range modules {
		set.Pause(module)
	}
	return set
}

func (s *PauseSet) Pause(module string) {
	name := normalizeModule(module)
	if name == "" {
		return
	}
	s.mu.Lock()
	s.paused[name] = struct{}{}
	s.mu.Unlock()
}

func (s *PauseSet) Resume(module string) {
	s.mu.Lock()
	delete(s.paused, normalizeModule(module))
	s.mu.Unlock()
}

// IsPaused implements PauseView.
func (s *PauseSet) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paused[normalizeModule(module)]
	return ok
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
