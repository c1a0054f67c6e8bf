package host

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// AccessList admin registry
type AccessList struct {
	mu     sync.RWMutex
	admins map[string]struct{}
}

// NewAccessList creates a list holding admins
func NewAccessList(admins ...string) *AccessList {
	a := &AccessList{admins: make(map[string]struct{})}
	for _, id := range admins {
		a.Grant(id)
	}
	return a
}

// IsAdmin reports whether caller is an admin
func (a *AccessList) IsAdmin(_ context.Context, caller string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.admins[caller]
	return ok
}

// Grant adds an admin
func (a *AccessList) Grant(id string) {
	if id == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admins[id] = struct{}{}
}

// Revoke removes an admin
func (a *AccessList) Revoke(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.admins, id)
}

// Admins sorted admin ids
func (a *AccessList) Admins() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.admins))
	for id := range a.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PauseSwitch host pause flag
type PauseSwitch struct {
	paused atomic.Bool
}

// IsPaused reports the flag
func (p *PauseSwitch) IsPaused() bool {
	return p.paused.Load()
}

// SetPaused sets the flag
func (p *PauseSwitch) SetPaused(paused bool) {
	p.paused.Store(paused)
}
