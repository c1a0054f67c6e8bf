package store

import (
	"context"
	"sort"
	"sync"

	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

type nodeKey struct {
	asset string
	tick  uint64
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[nodeKey]tickwindow.Node
	states map[string]limiter.State
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[nodeKey]tickwindow.Node),
		states: make(map[string]limiter.State),
	}
}

// LoadNode returns the zero node when absent
func (s *MemoryStore) LoadNode(_ context.Context, asset string, tick uint64) (tickwindow.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeKey{asset, tick}], nil
}

// StoreNode upserts a node
func (s *MemoryStore) StoreNode(_ context.Context, asset string, tick uint64, node tickwindow.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeKey{asset, tick}] = node
	return nil
}

// ClearNode drops a node
func (s *MemoryStore) ClearNode(_ context.Context, asset string, tick uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, nodeKey{asset, tick})
	return nil
}

// LoadState returns ok=false for unknown assets
func (s *MemoryStore) LoadState(_ context.Context, asset string) (limiter.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[asset]
	return st, ok, nil
}

// SaveState upserts the asset state
func (s *MemoryStore) SaveState(_ context.Context, st limiter.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Asset] = st
	return nil
}

// Assets lists registered assets
func (s *MemoryStore) Assets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.states))
	for a := range s.states {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// NodeCount number of live nodes across assets
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Close no-op
func (s *MemoryStore) Close() error {
	return nil
}
