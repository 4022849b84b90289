package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrModulePaused is returned by mutating entry points of a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether operators have halted a module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when module is paused. A nil view never
// blocks.
func Guard(p PauseView, module string) error {
	if p == nil || strings.TrimSpace(module) == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", strings.ToLower(strings.TrimSpace(module)), ErrModulePaused)
	}
	return nil
}

// Pauses is an in-memory PauseView toggled by operators.
type Pauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauses returns a view with the supplied modules paused.
func NewPauses(modules ...string) *Pauses {
	p := &Pauses{paused: make(map[string]bool)}
	for _, module := range modules {
		p.SetPaused(module, true)
	}
	return p
}

// IsPaused implements PauseView.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[strings.ToLower(strings.TrimSpace(module))]
}

// SetPaused toggles the pause flag for module.
func (p *Pauses) SetPaused(module string, paused bool) {
	key := strings.ToLower(strings.TrimSpace(module))
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[key] = true
		return
	}
	delete(p.paused, key)
}

// Paused lists the currently paused modules in lexical order.
func (p *Pauses) Paused() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.paused))
	for module := range p.paused {
		out = append(out, module)
	}
	sort.Strings(out)
	return out
}
