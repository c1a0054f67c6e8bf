package limiter

import (
	"context"
	"fmt"
	"sort"

	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

// Batch stages limiter writes in memory so a caller can inspect the outcome
// of a change before it becomes visible. Nothing reaches the backing store
// until Commit; a committed batch can still be reverted with Undo.
//
// Commit is all or nothing: a Transactional store applies the staged writes
// in one transaction, any other store gets the shadowed values written back
// when a write fails halfway.
type Batch struct {
	*Engine
	parent *Engine
	buf    *bufferedStore
	// metric updates are replayed on the parent once the batch is committed
	pending []func(ctx context.Context, m *OTelMetrics)
}

// Begin starts a batch on top of the engine's store
func (e *Engine) Begin() *Batch {
	buf := newBufferedStore(e.store)
	child := &Engine{
		config: e.config,
		store:  buf,
		logger: e.logger,
	}
	b := &Batch{Engine: child, parent: e, buf: buf}
	child.batch = b
	return b
}

// Commit writes every staged node and state to the parent store
func (b *Batch) Commit(ctx context.Context) error {
	if b.Dirty() {
		if err := b.parent.apply(ctx, b.buf.flush, b.buf.restore); err != nil {
			return fmt.Errorf("commit limiter batch failed: %w", err)
		}
	}
	if m := b.parent.metrics; m != nil {
		for _, fn := range b.pending {
			fn(ctx, m)
		}
	}
	b.pending = nil
	return nil
}

// Undo restores what a committed batch overwrote
func (b *Batch) Undo(ctx context.Context) error {
	if err := b.parent.apply(ctx, b.buf.restore, b.buf.flush); err != nil {
		return fmt.Errorf("undo limiter batch failed: %w", err)
	}
	return nil
}

type storeWrite func(ctx context.Context, dst Store) error

// apply runs write against the engine's store with readers held off.
// Without a transaction, rollback is written when write fails halfway.
func (e *Engine) apply(ctx context.Context, write, rollback storeWrite) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tx, ok := e.store.(Transactional); ok {
		return tx.Atomically(ctx, func(dst Store) error {
			return write(ctx, dst)
		})
	}
	if err := write(ctx, e.store); err != nil {
		if rerr := rollback(ctx, e.store); rerr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// Dirty reports whether anything was staged
func (b *Batch) Dirty() bool {
	return len(b.buf.nodes) > 0 || len(b.buf.states) > 0
}

type nodeKey struct {
	asset string
	tick  uint64
}

type stagedNode struct {
	node    tickwindow.Node
	cleared bool
}

type savedState struct {
	state State
	ok    bool
}

// bufferedStore overlays staged writes on a base store and remembers the
// base values it shadowed
type bufferedStore struct {
	base       Store
	nodes      map[nodeKey]stagedNode
	states     map[string]State
	origNodes  map[nodeKey]tickwindow.Node
	origStates map[string]savedState
}

func newBufferedStore(base Store) *bufferedStore {
	return &bufferedStore{
		base:       base,
		nodes:      make(map[nodeKey]stagedNode),
		states:     make(map[string]State),
		origNodes:  make(map[nodeKey]tickwindow.Node),
		origStates: make(map[string]savedState),
	}
}

func (s *bufferedStore) LoadNode(ctx context.Context, asset string, tick uint64) (tickwindow.Node, error) {
	if n, ok := s.nodes[nodeKey{asset, tick}]; ok {
		if n.cleared {
			return tickwindow.Node{}, nil
		}
		return n.node, nil
	}
	return s.base.LoadNode(ctx, asset, tick)
}

func (s *bufferedStore) rememberNode(ctx context.Context, k nodeKey) error {
	if _, ok := s.origNodes[k]; ok {
		return nil
	}
	if _, staged := s.nodes[k]; staged {
		return nil
	}
	n, err := s.base.LoadNode(ctx, k.asset, k.tick)
	if err != nil {
		return err
	}
	s.origNodes[k] = n
	return nil
}

func (s *bufferedStore) StoreNode(ctx context.Context, asset string, tick uint64, node tickwindow.Node) error {
	k := nodeKey{asset, tick}
	if err := s.rememberNode(ctx, k); err != nil {
		return err
	}
	s.nodes[k] = stagedNode{node: node}
	return nil
}

func (s *bufferedStore) ClearNode(ctx context.Context, asset string, tick uint64) error {
	k := nodeKey{asset, tick}
	if err := s.rememberNode(ctx, k); err != nil {
		return err
	}
	s.nodes[k] = stagedNode{cleared: true}
	return nil
}

func (s *bufferedStore) LoadState(ctx context.Context, asset string) (State, bool, error) {
	if st, ok := s.states[asset]; ok {
		return st, true, nil
	}
	return s.base.LoadState(ctx, asset)
}

func (s *bufferedStore) SaveState(ctx context.Context, st State) error {
	if _, ok := s.origStates[st.Asset]; !ok {
		orig, found, err := s.base.LoadState(ctx, st.Asset)
		if err != nil {
			return err
		}
		s.origStates[st.Asset] = savedState{state: orig, ok: found}
	}
	s.states[st.Asset] = st
	return nil
}

func (s *bufferedStore) Assets(ctx context.Context) ([]string, error) {
	assets, err := s.base.Assets(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		seen[a] = true
	}
	for a := range s.states {
		if !seen[a] {
			assets = append(assets, a)
		}
	}
	sort.Strings(assets)
	return assets, nil
}

func (s *bufferedStore) Close() error { return nil }

// flush writes nodes before states so a state never points at a missing node
func (s *bufferedStore) flush(ctx context.Context, dst Store) error {
	for _, k := range s.nodeKeys() {
		n := s.nodes[k]
		var err error
		if n.cleared {
			err = dst.ClearNode(ctx, k.asset, k.tick)
		} else {
			err = dst.StoreNode(ctx, k.asset, k.tick, n.node)
		}
		if err != nil {
			return err
		}
	}
	for _, st := range s.states {
		if err := dst.SaveState(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *bufferedStore) restore(ctx context.Context, dst Store) error {
	for _, orig := range s.origStates {
		if !orig.ok {
			// states are never created inside a batch
			continue
		}
		if err := dst.SaveState(ctx, orig.state); err != nil {
			return err
		}
	}
	for k, n := range s.origNodes {
		var err error
		if n.Next == tickwindow.None && n.Amount.IsZero() {
			err = dst.ClearNode(ctx, k.asset, k.tick)
		} else {
			err = dst.StoreNode(ctx, k.asset, k.tick, n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// nodeKeys staged node keys in a stable order
func (s *bufferedStore) nodeKeys() []nodeKey {
	keys := make([]nodeKey, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].asset != keys[j].asset {
			return keys[i].asset < keys[j].asset
		}
		return keys[i].tick < keys[j].tick
	})
	return keys
}
