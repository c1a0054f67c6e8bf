package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/KOMKZ/go-yogan-liqguard/limiter"
	"github.com/KOMKZ/go-yogan-liqguard/signed"
	"github.com/KOMKZ/go-yogan-liqguard/tickwindow"
)

// DefaultKeyPrefix redis key prefix
const DefaultKeyPrefix = "liqguard:"

// RedisStore keeps nodes and states in Redis hashes:
//
//	<prefix>node:<asset>:<tick>   amount, next
//	<prefix>limiter:<asset>       bps, threshold, liq_total, liq_in_period, head, tail
//	<prefix>assets                set of registered assets
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis store. The client is owned by the redis manager.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) nodeKey(asset string, tick uint64) string {
	return s.keyPrefix + "node:" + asset + ":" + strconv.FormatUint(tick, 10)
}

func (s *RedisStore) stateKey(asset string) string {
	return s.keyPrefix + "limiter:" + asset
}

func (s *RedisStore) assetsKey() string {
	return s.keyPrefix + "assets"
}

// LoadNode returns the zero node when the hash does not exist
func (s *RedisStore) LoadNode(ctx context.Context, asset string, tick uint64) (tickwindow.Node, error) {
	vals, err := s.client.HGetAll(ctx, s.nodeKey(asset, tick)).Result()
	if err != nil {
		return tickwindow.Node{}, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(vals) == 0 {
		return tickwindow.Node{}, nil
	}
	amount, err := signed.FromDecimal(vals["amount"])
	if err != nil {
		return tickwindow.Node{}, ErrCorruptRecord.Wrap(err).WithData("asset", asset).WithData("tick", tick)
	}
	next, err := parseUint("next", vals["next"])
	if err != nil {
		return tickwindow.Node{}, err
	}
	return tickwindow.Node{Amount: amount, Next: next}, nil
}

// StoreNode writes both node fields
func (s *RedisStore) StoreNode(ctx context.Context, asset string, tick uint64, node tickwindow.Node) error {
	return s.storeNode(ctx, s.client, asset, tick, node).Err()
}

func (s *RedisStore) storeNode(ctx context.Context, c redis.Cmdable, asset string, tick uint64, node tickwindow.Node) *redis.IntCmd {
	return c.HSet(ctx, s.nodeKey(asset, tick),
		"amount", node.Amount.String(),
		"next", strconv.FormatUint(node.Next, 10),
	)
}

// ClearNode deletes the node hash
func (s *RedisStore) ClearNode(ctx context.Context, asset string, tick uint64) error {
	return s.client.Del(ctx, s.nodeKey(asset, tick)).Err()
}

// LoadState reads the limiter hash
func (s *RedisStore) LoadState(ctx context.Context, asset string) (limiter.State, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.stateKey(asset)).Result()
	if err != nil {
		return limiter.State{}, false, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(vals) == 0 {
		return limiter.State{}, false, nil
	}

	bps, err := parseUint("bps", vals["bps"])
	if err != nil {
		return limiter.State{}, false, err
	}
	head, err := parseUint("head", vals["head"])
	if err != nil {
		return limiter.State{}, false, err
	}
	tail, err := parseUint("tail", vals["tail"])
	if err != nil {
		return limiter.State{}, false, err
	}
	st, err := decodeState(asset, record{
		Bps:         uint32(bps),
		Threshold:   vals["threshold"],
		LiqTotal:    vals["liq_total"],
		LiqInPeriod: vals["liq_in_period"],
		Head:        head,
		Tail:        tail,
	})
	if err != nil {
		return limiter.State{}, false, err
	}
	return st, true, nil
}

// SaveState writes the limiter hash and the asset index in one transaction
func (s *RedisStore) SaveState(ctx context.Context, st limiter.State) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.saveState(ctx, pipe, st)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save state failed: %w", err)
	}
	return nil
}

func (s *RedisStore) saveState(ctx context.Context, c redis.Cmdable, st limiter.State) {
	r := encodeState(st)
	c.HSet(ctx, s.stateKey(st.Asset),
		"bps", strconv.FormatUint(uint64(r.Bps), 10),
		"threshold", r.Threshold,
		"liq_total", r.LiqTotal,
		"liq_in_period", r.LiqInPeriod,
		"head", strconv.FormatUint(r.Head, 10),
		"tail", strconv.FormatUint(r.Tail, 10),
	)
	c.SAdd(ctx, s.assetsKey(), st.Asset)
}

// Atomically queues the writes of fn in one MULTI/EXEC block. Reads inside
// fn see the stored data, not the queued writes.
func (s *RedisStore) Atomically(ctx context.Context, fn func(tx limiter.Store) error) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&redisTx{RedisStore: s, pipe: pipe})
	})
	if err != nil {
		return fmt.Errorf("redis transaction failed: %w", err)
	}
	return nil
}

// redisTx routes writes into a transaction pipeline
type redisTx struct {
	*RedisStore
	pipe redis.Pipeliner
}

func (t *redisTx) StoreNode(ctx context.Context, asset string, tick uint64, node tickwindow.Node) error {
	t.storeNode(ctx, t.pipe, asset, tick, node)
	return nil
}

func (t *redisTx) ClearNode(ctx context.Context, asset string, tick uint64) error {
	t.pipe.Del(ctx, t.nodeKey(asset, tick))
	return nil
}

func (t *redisTx) SaveState(ctx context.Context, st limiter.State) error {
	t.saveState(ctx, t.pipe, st)
	return nil
}

// Assets lists registered assets
func (s *RedisStore) Assets(ctx context.Context) ([]string, error) {
	assets, err := s.client.SMembers(ctx, s.assetsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	sort.Strings(assets)
	return assets, nil
}

// Close the client belongs to the redis manager, nothing to close here
func (s *RedisStore) Close() error {
	return nil
}
