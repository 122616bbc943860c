package gamesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

// ChallengeCatalog is a read-only lookup of published challenges and
// lessons. The snapshot may be empty while the catalog is still loading.
type ChallengeCatalog interface {
	CurrentChallenges() map[string]brainy.Challenge
}

// StaticCatalog is a fixed catalog.
type StaticCatalog map[string]brainy.Challenge

func (c StaticCatalog) CurrentChallenges() map[string]brainy.Challenge { return c }

// CatalogWatcher keeps the challenge and lesson folders mirrored in memory.
type CatalogWatcher struct {
	feed   feed.Feed
	logger *slog.Logger

	mu         sync.RWMutex
	challenges map[string]brainy.Challenge
}

func NewCatalogWatcher(f feed.Feed, logger *slog.Logger) *CatalogWatcher {
	return &CatalogWatcher{
		feed:       f,
		logger:     logger.With("component", "catalog"),
		challenges: make(map[string]brainy.Challenge),
	}
}

// CurrentChallenges returns a copy of the catalog.
func (w *CatalogWatcher) CurrentChallenges() map[string]brainy.Challenge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.challenges)
}

// Load reads both folders once so lookups succeed before Run has caught up.
func (w *CatalogWatcher) Load(ctx context.Context) error {
	folders := []struct {
		path     string
		category brainy.Category
	}{
		{ChallengesFolder, brainy.CategoryChallenge},
		{LessonsFolder, brainy.CategoryLesson},
	}
	for _, folder := range folders {
		data, ok, err := w.feed.ReadOnce(ctx, folder.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", folder.path, err)
		}
		if !ok {
			continue
		}
		var children map[string]json.RawMessage
		if err := json.Unmarshal(data, &children); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDecode, folder.path, err)
		}
		for key, value := range children {
			w.apply(feed.ChildEvent{Type: feed.ChildAdded, Key: key, Value: value}, folder.category)
		}
	}
	w.logger.Info("catalog loaded", "entries", len(w.CurrentChallenges()))
	return nil
}

// Run subscribes to both folders and applies their events until ctx is done.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	challenges, err := w.feed.SubscribeChildren(ctx, ChallengesFolder)
	if err != nil {
		return fmt.Errorf("subscribing to challenges: %w", err)
	}
	lessons, err := w.feed.SubscribeChildren(ctx, LessonsFolder)
	if err != nil {
		return fmt.Errorf("subscribing to lessons: %w", err)
	}

	for challenges != nil || lessons != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-challenges:
			if !ok {
				challenges = nil
				continue
			}
			w.apply(ev, brainy.CategoryChallenge)
		case ev, ok := <-lessons:
			if !ok {
				lessons = nil
				continue
			}
			w.apply(ev, brainy.CategoryLesson)
		}
	}
	return nil
}

func (w *CatalogWatcher) apply(ev feed.ChildEvent, category brainy.Category) {
	if ev.Type == feed.ChildRemoved {
		w.mu.Lock()
		delete(w.challenges, ev.Key)
		w.mu.Unlock()
		return
	}

	var ch brainy.Challenge
	if err := json.Unmarshal(ev.Value, &ch); err != nil {
		w.logger.Warn("dropping catalog entry", "key", ev.Key, "error", fmt.Errorf("%w: %v", ErrDecode, err))
		return
	}
	ch.ID = ev.Key
	if ch.Category == "" {
		ch.Category = category
	}

	w.mu.Lock()
	w.challenges[ev.Key] = ch
	w.mu.Unlock()
	w.logger.Debug("catalog entry loaded", "key", ev.Key, "category", ch.Category)
}

// PublishChallenge writes ch into the folder of its category, assigning a
// push key when it has no id.
func PublishChallenge(ctx context.Context, f feed.Feed, ch brainy.Challenge) (brainy.Challenge, error) {
	folder := ChallengesFolder
	switch ch.Category {
	case brainy.CategoryChallenge:
	case brainy.CategoryLesson:
		folder = LessonsFolder
	default:
		return ch, fmt.Errorf("%w: unknown category %q", ErrValidation, ch.Category)
	}
	if ch.ID == "" {
		ch.ID = f.PushKey(folder)
	}
	if err := f.Write(ctx, feed.Join(folder, ch.ID), ch); err != nil {
		return ch, fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}
	return ch, nil
}
