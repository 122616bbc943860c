package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis is a multi-instance feed. Every collection is one hash; writes run
// as Lua scripts that update the hash and publish the resulting child event
// on a channel named after the hash, so notifications are ordered exactly
// like the writes that caused them.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		rdb:    rdb,
		prefix: "feed:",
		logger: logger.With("component", "redis_feed"),
	}
}

// envelope is the pub/sub payload for one child event.
type envelope struct {
	Op    ChildEventType `json:"op"`
	Key   string         `json:"key"`
	Value string         `json:"value,omitempty"`
}

var writeScript = redis.NewScript(`
local added = redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local op = 'CHANGED'
if added == 1 then op = 'ADDED' end
redis.call('PUBLISH', KEYS[1], cjson.encode({op = op, key = ARGV[1], value = ARGV[2]}))
return added
`)

var removeScript = redis.NewScript(`
local removed = redis.call('HDEL', KEYS[1], ARGV[1])
if removed == 1 then
  redis.call('PUBLISH', KEYS[1], cjson.encode({op = 'REMOVED', key = ARGV[1]}))
end
return removed
`)

func (r *Redis) hashKey(collection string) string {
	return r.prefix + collection
}

func (r *Redis) subscribe(ctx context.Context, collection string) (*redis.PubSub, error) {
	ps := r.rdb.Subscribe(ctx, r.hashKey(collection))
	// Wait for the confirmation so nothing published after the snapshot
	// read below can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", collection, err)
	}
	context.AfterFunc(ctx, func() { ps.Close() })
	return ps, nil
}

func decodeEnvelope(payload string) (ChildEvent, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return ChildEvent{}, err
	}
	ev := ChildEvent{Type: env.Op, Key: env.Key}
	if env.Op != ChildRemoved {
		ev.Value = json.RawMessage(env.Value)
	}
	return ev, nil
}

func (r *Redis) SubscribeValue(ctx context.Context, path string) (<-chan NodeEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	parent, key := Split(path)

	ps, err := r.subscribe(ctx, parent)
	if err != nil {
		return nil, err
	}
	cur, ok, err := r.hget(ctx, parent, key)
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	q := newQueue[NodeEvent](ctx)
	q.push(NodeEvent{Path: path, Value: cur, Exists: ok})

	go func() {
		for msg := range ps.Channel() {
			ev, err := decodeEnvelope(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping malformed notification", "path", path, "error", err)
				continue
			}
			if ev.Key != key {
				continue
			}
			q.push(NodeEvent{Path: path, Value: ev.Value, Exists: ev.Type != ChildRemoved})
		}
	}()
	return q.out, nil
}

func (r *Redis) SubscribeChildren(ctx context.Context, path string) (<-chan ChildEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	ps, err := r.subscribe(ctx, path)
	if err != nil {
		return nil, err
	}
	kids, err := r.rdb.HGetAll(ctx, r.hashKey(path)).Result()
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	q := newQueue[ChildEvent](ctx)
	keys := make([]string, 0, len(kids))
	for k := range kids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.push(ChildEvent{Type: ChildAdded, Key: k, Value: json.RawMessage(kids[k])})
	}

	// A write that lands between SUBSCRIBE and HGETALL is seen twice: once in
	// the snapshot and once as a notification. Consumers dedupe by key.
	go func() {
		for msg := range ps.Channel() {
			ev, err := decodeEnvelope(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping malformed notification", "path", path, "error", err)
				continue
			}
			q.push(ev)
		}
	}()
	return q.out, nil
}

func (r *Redis) hget(ctx context.Context, parent, key string) (json.RawMessage, bool, error) {
	data, err := r.rdb.HGet(ctx, r.hashKey(parent), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(data), true, nil
}

func (r *Redis) Write(ctx context.Context, path string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	parent, key := Split(path)
	keys := []string{r.hashKey(parent)}

	if data == nil {
		if err := removeScript.Run(ctx, r.rdb, keys, key).Err(); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	}
	if err := writeScript.Run(ctx, r.rdb, keys, key, string(data)).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (r *Redis) PushKey(string) string {
	return NewPushKey()
}

func (r *Redis) ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error) {
	if err := checkPath(path); err != nil {
		return nil, false, err
	}
	parent, key := Split(path)

	data, ok, err := r.hget(ctx, parent, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if ok {
		return data, true, nil
	}

	kids, err := r.rdb.HGetAll(ctx, r.hashKey(path)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", path, err)
	}
	if len(kids) == 0 {
		return nil, false, nil
	}
	obj := make(map[string]json.RawMessage, len(kids))
	for k, v := range kids {
		obj[k] = json.RawMessage(v)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Ping reports whether the Redis server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
