// Package feed is the client side of a path-addressed realtime document
// store. Records are flat JSON documents keyed by string id and grouped into
// collections ("folders"); subscribers receive either whole-node replacements
// or per-child diffs.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New("invalid path")

// NodeEvent carries the full current value of a node. Exists is false when
// the node is absent or was removed.
type NodeEvent struct {
	Path   string
	Value  json.RawMessage
	Exists bool
}

type ChildEventType string

const (
	ChildAdded   ChildEventType = "ADDED"
	ChildChanged ChildEventType = "CHANGED"
	ChildRemoved ChildEventType = "REMOVED"
)

// ChildEvent describes one change to a direct child of a collection.
// Value is empty for ChildRemoved.
type ChildEvent struct {
	Type  ChildEventType
	Key   string
	Value json.RawMessage
}

// Feed is implemented by every backend. Subscriptions stay open until ctx is
// cancelled, at which point the returned channel is closed. Events on one
// subscription are delivered in the order the backend observed them and are
// never dropped.
type Feed interface {
	// SubscribeValue delivers the node's current value first, then one event
	// per write to exactly that path.
	SubscribeValue(ctx context.Context, path string) (<-chan NodeEvent, error)
	// SubscribeChildren replays existing children as ChildAdded in key order,
	// then streams diffs.
	SubscribeChildren(ctx context.Context, path string) (<-chan ChildEvent, error)
	// Write replaces the node at path. A nil value removes it.
	Write(ctx context.Context, path string, value any) error
	// PushKey returns a new globally unique, lexically sortable child key.
	PushKey(path string) string
	// ReadOnce reads a node. For a collection path the result is an object of
	// its direct children keyed by child key.
	ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error)
}

// Join builds a path from segments, ignoring surrounding slashes.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Split returns the parent collection and the key of path.
func Split(path string) (parent, key string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func checkPath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// encode marshals a write value. A nil result means the node is removed.
func encode(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func exists(data json.RawMessage) bool {
	return len(data) > 0 && string(data) != "null"
}
