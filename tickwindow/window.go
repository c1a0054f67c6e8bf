// Package tickwindow implements the rolling, time-bucketed flow list.
//
// Nodes are kept in a NodeStore keyed by (asset, tick) and chained forward
// through Node.Next. The list itself is just a Cursor of two tick ids, so the
// same algorithm runs on top of any backing map (memory, Redis, SQL).
package tickwindow

import (
	"context"
	"fmt"
	"math"

	"github.com/KOMKZ/go-yogan-liqguard/signed"
)

// None marks both "no next node" and "empty list"
const None uint64 = 0

// Unbounded step budget for eviction
const Unbounded = math.MaxInt

// Node one bucket of net flow
type Node struct {
	Amount signed.Int
	Next   uint64
}

// NodeStore is the key-value capability the window needs from its host.
// LoadNode returns the zero Node for a missing key.
type NodeStore interface {
	LoadNode(ctx context.Context, asset string, tick uint64) (Node, error)
	StoreNode(ctx context.Context, asset string, tick uint64, node Node) error
	ClearNode(ctx context.Context, asset string, tick uint64) error
}

// Cursor head and tail tick ids, both None when the list is empty
type Cursor struct {
	Head uint64 `json:"head"`
	Tail uint64 `json:"tail"`
}

// Empty reports whether the list holds no node
func (c Cursor) Empty() bool { return c.Head == None }

// TickID floors ts to the start of its bucket
func TickID(ts, tickLength uint64) uint64 {
	return ts - ts%tickLength
}

// AppendOrMerge adds amount to the bucket of now. Flows in the tail bucket are
// merged; a newer bucket is appended. A bucket older than the tail is rejected
// with ErrStaleTick and nothing is written.
func AppendOrMerge(ctx context.Context, store NodeStore, asset string, cur Cursor,
	amount signed.Int, now, tickLength uint64) (Cursor, error) {
	if tickLength == 0 {
		return cur, ErrInvalidTickLength
	}
	tid := TickID(now, tickLength)
	if tid == None {
		return cur, ErrInvalidTick.WithData("timestamp", now)
	}

	switch {
	case cur.Empty():
		if err := store.StoreNode(ctx, asset, tid, Node{Amount: amount}); err != nil {
			return cur, fmt.Errorf("store node failed: %w", err)
		}
		return Cursor{Head: tid, Tail: tid}, nil

	case tid == cur.Tail:
		tail, err := store.LoadNode(ctx, asset, tid)
		if err != nil {
			return cur, fmt.Errorf("load tail node failed: %w", err)
		}
		merged, err := tail.Amount.AddChecked(amount)
		if err != nil {
			return cur, err
		}
		tail.Amount = merged
		if err := store.StoreNode(ctx, asset, tid, tail); err != nil {
			return cur, fmt.Errorf("store node failed: %w", err)
		}
		return cur, nil

	case tid > cur.Tail:
		tail, err := store.LoadNode(ctx, asset, cur.Tail)
		if err != nil {
			return cur, fmt.Errorf("load tail node failed: %w", err)
		}
		// write the new node first so a failed link never points at nothing
		if err := store.StoreNode(ctx, asset, tid, Node{Amount: amount}); err != nil {
			return cur, fmt.Errorf("store node failed: %w", err)
		}
		tail.Next = tid
		if err := store.StoreNode(ctx, asset, cur.Tail, tail); err != nil {
			return cur, fmt.Errorf("link tail node failed: %w", err)
		}
		return Cursor{Head: cur.Head, Tail: tid}, nil

	default:
		return cur, ErrStaleTick.WithData("tick", tid).WithData("tail", cur.Tail)
	}
}

// EvictResult outcome of one eviction pass
type EvictResult struct {
	Evicted signed.Int
	Steps   int
}

// Evict walks from the head, clearing every node whose age (now - tick)
// reached cutoffAge, for at most maxSteps nodes. The returned cursor is always
// a valid list, so an interrupted pass resumes on the next call.
func Evict(ctx context.Context, store NodeStore, asset string, cur Cursor,
	cutoffAge, now uint64, maxSteps int) (EvictResult, Cursor, error) {
	res := EvictResult{Evicted: signed.Zero()}

	for !cur.Empty() && res.Steps < maxSteps {
		if now < cur.Head || now-cur.Head < cutoffAge {
			break
		}
		node, err := store.LoadNode(ctx, asset, cur.Head)
		if err != nil {
			return res, cur, fmt.Errorf("load head node failed: %w", err)
		}
		sum, err := res.Evicted.AddChecked(node.Amount)
		if err != nil {
			return res, cur, err
		}
		if err := store.ClearNode(ctx, asset, cur.Head); err != nil {
			return res, cur, fmt.Errorf("clear node failed: %w", err)
		}
		res.Evicted = sum
		res.Steps++

		if cur.Head == cur.Tail {
			cur = Cursor{}
			break
		}
		if node.Next == None || node.Next <= cur.Head {
			return res, cur, ErrCorruptList.WithData("asset", asset).WithData("tick", cur.Head)
		}
		cur.Head = node.Next
	}
	return res, cur, nil
}

// Walk visits nodes from head to tail. Returning an error from fn stops the walk.
func Walk(ctx context.Context, store NodeStore, asset string, cur Cursor,
	fn func(tick uint64, node Node) error) error {
	tick := cur.Head
	for tick != None {
		node, err := store.LoadNode(ctx, asset, tick)
		if err != nil {
			return fmt.Errorf("load node failed: %w", err)
		}
		if err := fn(tick, node); err != nil {
			return err
		}
		if tick == cur.Tail {
			return nil
		}
		if node.Next <= tick {
			return ErrCorruptList.WithData("asset", asset).WithData("tick", tick)
		}
		tick = node.Next
	}
	return nil
}

// Sum returns the total amount held by the list and its node count
func Sum(ctx context.Context, store NodeStore, asset string, cur Cursor) (signed.Int, int, error) {
	total := signed.Zero()
	n := 0
	err := Walk(ctx, store, asset, cur, func(_ uint64, node Node) error {
		s, err := total.AddChecked(node.Amount)
		if err != nil {
			return err
		}
		total = s
		n++
		return nil
	})
	return total, n, err
}
