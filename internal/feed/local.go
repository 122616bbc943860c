package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

type child struct {
	key  string
	data json.RawMessage
}

// nodeStore persists leaf documents for a Local feed. Implementations do not
// need their own locking; Local serializes every call.
type nodeStore interface {
	get(ctx context.Context, parent, key string) (json.RawMessage, bool, error)
	put(ctx context.Context, parent, key string, data json.RawMessage) (existed bool, err error)
	del(ctx context.Context, parent, key string) (existed bool, err error)
	children(ctx context.Context, parent string) ([]child, error)
}

// Local is a single-process feed: writes are applied to its store and fanned
// out to subscribers of this process only. Each write and its fan-out happen
// under one lock, so per-path event order matches write order.
type Local struct {
	store nodeStore

	mu        sync.Mutex
	valueSubs map[string]map[*queue[NodeEvent]]struct{}
	childSubs map[string]map[*queue[ChildEvent]]struct{}
}

func newLocal(store nodeStore) *Local {
	return &Local{
		store:     store,
		valueSubs: make(map[string]map[*queue[NodeEvent]]struct{}),
		childSubs: make(map[string]map[*queue[ChildEvent]]struct{}),
	}
}

// NewMemory returns a Local feed that keeps everything in memory.
func NewMemory() *Local {
	return newLocal(&memoryStore{nodes: make(map[string]map[string]json.RawMessage)})
}

func (l *Local) SubscribeValue(ctx context.Context, path string) (<-chan NodeEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	parent, key := Split(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok, err := l.store.get(ctx, parent, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	q := newQueue[NodeEvent](ctx)
	q.push(NodeEvent{Path: path, Value: data, Exists: ok})

	if l.valueSubs[path] == nil {
		l.valueSubs[path] = make(map[*queue[NodeEvent]]struct{})
	}
	l.valueSubs[path][q] = struct{}{}
	context.AfterFunc(ctx, func() {
		l.mu.Lock()
		delete(l.valueSubs[path], q)
		if len(l.valueSubs[path]) == 0 {
			delete(l.valueSubs, path)
		}
		l.mu.Unlock()
	})
	return q.out, nil
}

func (l *Local) SubscribeChildren(ctx context.Context, path string) (<-chan ChildEvent, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.store.children(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	q := newQueue[ChildEvent](ctx)
	for _, c := range existing {
		q.push(ChildEvent{Type: ChildAdded, Key: c.key, Value: c.data})
	}

	if l.childSubs[path] == nil {
		l.childSubs[path] = make(map[*queue[ChildEvent]]struct{})
	}
	l.childSubs[path][q] = struct{}{}
	context.AfterFunc(ctx, func() {
		l.mu.Lock()
		delete(l.childSubs[path], q)
		if len(l.childSubs[path]) == 0 {
			delete(l.childSubs, path)
		}
		l.mu.Unlock()
	})
	return q.out, nil
}

func (l *Local) Write(ctx context.Context, path string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	parent, key := Split(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if data == nil {
		existed, err := l.store.del(ctx, parent, key)
		if err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		if existed {
			l.publish(path, parent, ChildEvent{Type: ChildRemoved, Key: key})
		}
		return nil
	}

	existed, err := l.store.put(ctx, parent, key, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	typ := ChildAdded
	if existed {
		typ = ChildChanged
	}
	l.publish(path, parent, ChildEvent{Type: typ, Key: key, Value: data})
	return nil
}

// publish must be called with l.mu held.
func (l *Local) publish(path, parent string, ev ChildEvent) {
	node := NodeEvent{Path: path, Value: ev.Value, Exists: ev.Type != ChildRemoved}
	for q := range l.valueSubs[path] {
		q.push(node)
	}
	if parent == "" {
		return
	}
	for q := range l.childSubs[parent] {
		q.push(ev)
	}
}

func (l *Local) PushKey(string) string {
	return NewPushKey()
}

func (l *Local) ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error) {
	if err := checkPath(path); err != nil {
		return nil, false, err
	}
	parent, key := Split(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok, err := l.store.get(ctx, parent, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if ok {
		return data, true, nil
	}

	kids, err := l.store.children(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("listing %s: %w", path, err)
	}
	if len(kids) == 0 {
		return nil, false, nil
	}
	obj := make(map[string]json.RawMessage, len(kids))
	for _, c := range kids {
		obj[c.key] = c.data
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

type memoryStore struct {
	nodes map[string]map[string]json.RawMessage
}

func (m *memoryStore) get(_ context.Context, parent, key string) (json.RawMessage, bool, error) {
	data, ok := m.nodes[parent][key]
	return data, ok, nil
}

func (m *memoryStore) put(_ context.Context, parent, key string, data json.RawMessage) (bool, error) {
	kids := m.nodes[parent]
	if kids == nil {
		kids = make(map[string]json.RawMessage)
		m.nodes[parent] = kids
	}
	_, existed := kids[key]
	kids[key] = append(json.RawMessage(nil), data...)
	return existed, nil
}

func (m *memoryStore) del(_ context.Context, parent, key string) (bool, error) {
	kids := m.nodes[parent]
	if _, ok := kids[key]; !ok {
		return false, nil
	}
	delete(kids, key)
	if len(kids) == 0 {
		delete(m.nodes, parent)
	}
	return true, nil
}

func (m *memoryStore) children(_ context.Context, parent string) ([]child, error) {
	kids := m.nodes[parent]
	out := make([]child, 0, len(kids))
	for k, v := range kids {
		out = append(out, child{key: k, data: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}
