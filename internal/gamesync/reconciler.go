package gamesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

// Keying tells a Reconciler how to read and stamp the identity of T.
type Keying[T any] struct {
	ID         func(T) string
	WithID     func(T, string) T
	GameID     func(T) string
	WithGameID func(T, string) T
}

var IdeaKeying = Keying[brainy.Idea]{
	ID:         func(i brainy.Idea) string { return i.ID },
	WithID:     func(i brainy.Idea, id string) brainy.Idea { i.ID = id; return i },
	GameID:     func(i brainy.Idea) string { return i.GameID },
	WithGameID: func(i brainy.Idea, id string) brainy.Idea { i.GameID = id; return i },
}

var SessionKeying = Keying[brainy.PlayerSession]{
	ID:         func(s brainy.PlayerSession) string { return s.ID },
	WithID:     func(s brainy.PlayerSession, id string) brainy.PlayerSession { s.ID = id; return s },
	GameID:     func(s brainy.PlayerSession) string { return s.GameID },
	WithGameID: func(s brainy.PlayerSession, id string) brainy.PlayerSession { s.GameID = id; return s },
}

// Reconciler mirrors one remote collection of a game into an ordered list
// holding at most one element per id. Order is the arrival order of adds.
//
// Apply and the On* methods mutate the list and must all be called from the
// same goroutine. Insert and Update only touch the feed and are safe from any
// goroutine; neither changes the list, which only follows echoed events.
type Reconciler[T any] struct {
	feed     feed.Feed
	path     string
	gameID   string
	keys     Keying[T]
	logger   *slog.Logger
	onChange func([]T)

	items []T
}

// NewReconciler binds a reconciler to the collection at path for gameID.
// onChange receives a copy of the list after every mutation.
func NewReconciler[T any](f feed.Feed, path, gameID string, keys Keying[T], logger *slog.Logger, onChange func([]T)) *Reconciler[T] {
	if onChange == nil {
		onChange = func([]T) {}
	}
	return &Reconciler[T]{
		feed:     f,
		path:     path,
		gameID:   gameID,
		keys:     keys,
		logger:   logger.With("path", path),
		onChange: onChange,
	}
}

// Items returns a copy of the current list.
func (r *Reconciler[T]) Items() []T {
	return append([]T(nil), r.items...)
}

// Apply folds one child event into the list and reports whether it changed.
func (r *Reconciler[T]) Apply(ev feed.ChildEvent) bool {
	switch ev.Type {
	case feed.ChildAdded, feed.ChildChanged:
		var v T
		if err := json.Unmarshal(ev.Value, &v); err != nil {
			r.logger.Warn("dropping child event",
				"key", ev.Key, "type", ev.Type, "error", fmt.Errorf("%w: %v", ErrDecode, err))
			return false
		}
		if ev.Type == feed.ChildAdded {
			return r.OnAdded(ev.Key, v)
		}
		return r.OnChanged(ev.Key, v)
	case feed.ChildRemoved:
		return r.OnRemoved(ev.Key)
	}
	r.logger.Warn("unknown child event type", "key", ev.Key, "type", ev.Type)
	return false
}

// normalize makes the key authoritative for the id and fills in a missing
// game id. It rejects records that belong to another game.
func (r *Reconciler[T]) normalize(key string, v T) (T, bool) {
	if r.keys.ID(v) != key {
		v = r.keys.WithID(v, key)
	}
	switch r.keys.GameID(v) {
	case r.gameID:
	case "":
		v = r.keys.WithGameID(v, r.gameID)
	default:
		r.logger.Warn("dropping record of another game",
			"key", key, "game_id", r.keys.GameID(v), "error", ErrValidation)
		return v, false
	}
	return v, true
}

func (r *Reconciler[T]) indexOf(key string) int {
	for i, item := range r.items {
		if r.keys.ID(item) == key {
			return i
		}
	}
	return -1
}

// OnAdded appends v unless an element with that id is already present.
func (r *Reconciler[T]) OnAdded(key string, v T) bool {
	v, ok := r.normalize(key, v)
	if !ok {
		return false
	}
	if r.indexOf(key) >= 0 {
		r.logger.Debug("ignoring duplicate add", "key", key)
		return false
	}
	r.items = append(r.items, v)
	r.onChange(r.Items())
	return true
}

// OnChanged replaces the element with that id in place. A change for an
// element never seen as added is ignored.
func (r *Reconciler[T]) OnChanged(key string, v T) bool {
	v, ok := r.normalize(key, v)
	if !ok {
		return false
	}
	i := r.indexOf(key)
	if i < 0 {
		r.logger.Debug("ignoring change for unknown element", "key", key)
		return false
	}
	r.items[i] = v
	r.onChange(r.Items())
	return true
}

// OnRemoved deletes the element with that id if present.
func (r *Reconciler[T]) OnRemoved(key string) bool {
	i := r.indexOf(key)
	if i < 0 {
		return false
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	r.onChange(r.Items())
	return true
}

// Insert stamps v with a fresh push key and the bound game id and writes it.
// The list is not touched; the echoed add appends the element. It returns
// the stamped value.
func (r *Reconciler[T]) Insert(ctx context.Context, v T) (T, error) {
	if gid := r.keys.GameID(v); gid != "" && gid != r.gameID {
		err := fmt.Errorf("%w: record game %q does not match %q", ErrValidation, gid, r.gameID)
		r.logger.Warn("insert rejected", "error", err)
		return v, err
	}

	key := r.feed.PushKey(r.path)
	v = r.keys.WithID(v, key)
	v = r.keys.WithGameID(v, r.gameID)

	if err := r.feed.Write(ctx, feed.Join(r.path, key), v); err != nil {
		err = fmt.Errorf("%w: %v", ErrWriteRejected, err)
		r.logger.Error("insert failed", "key", key, "error", err)
		return v, err
	}
	r.logger.Debug("inserted", "key", key)
	return v, nil
}

// Update overwrites an existing element remotely. The existence check and
// the write are two round trips; an element removed in between is
// resurrected. The list only changes through the echoed change event.
func (r *Reconciler[T]) Update(ctx context.Context, v T) error {
	id := r.keys.ID(v)
	if id == "" || r.keys.GameID(v) != r.gameID {
		err := fmt.Errorf("%w: id %q game %q (bound to %q)", ErrValidation, id, r.keys.GameID(v), r.gameID)
		r.logger.Warn("update rejected", "error", err)
		return err
	}
	return writeExisting(ctx, r.feed, feed.Join(r.path, id), v, r.logger)
}

// writeExisting writes v at path only if a point read finds the node.
func writeExisting(ctx context.Context, f feed.Feed, path string, v any, logger *slog.Logger) error {
	_, ok, err := f.ReadOnce(ctx, path)
	if err != nil {
		err = fmt.Errorf("%w: checking %s: %v", ErrStaleTarget, path, err)
		logger.Warn("update skipped", "error", err)
		return err
	}
	if !ok {
		err = fmt.Errorf("%w: %s", ErrStaleTarget, path)
		logger.Warn("update skipped", "error", err)
		return err
	}

	if err := f.Write(ctx, path, v); err != nil {
		err = fmt.Errorf("%w: %v", ErrWriteRejected, err)
		logger.Error("update failed", "node", path, "error", err)
		return err
	}
	return nil
}
