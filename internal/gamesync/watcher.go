package gamesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

// GameWatcher mirrors the single game node and resolves its challenge
// against a catalog. Apply must be called from one goroutine.
type GameWatcher struct {
	feed     feed.Feed
	gameID   string
	catalog  ChallengeCatalog
	logger   *slog.Logger
	onChange func(brainy.Game, brainy.Challenge)

	game      brainy.Game
	challenge brainy.Challenge
}

func NewGameWatcher(f feed.Feed, gameID string, catalog ChallengeCatalog, logger *slog.Logger, onChange func(brainy.Game, brainy.Challenge)) *GameWatcher {
	if onChange == nil {
		onChange = func(brainy.Game, brainy.Challenge) {}
	}
	return &GameWatcher{
		feed:     f,
		gameID:   gameID,
		catalog:  catalog,
		logger:   logger.With("path", GamePath(gameID)),
		onChange: onChange,
	}
}

func (w *GameWatcher) Game() brainy.Game           { return w.game }
func (w *GameWatcher) Challenge() brainy.Challenge { return w.challenge }

// Apply replaces the game with the node's value. When the catalog does not
// know the referenced challenge yet, the previous challenge is kept; a later
// delivery of the node resolves it.
func (w *GameWatcher) Apply(ev feed.NodeEvent) bool {
	if !ev.Exists {
		w.logger.Debug("game node missing")
		return false
	}

	var g brainy.Game
	if err := json.Unmarshal(ev.Value, &g); err != nil {
		w.logger.Warn("dropping game event", "error", fmt.Errorf("%w: %v", ErrDecode, err))
		return false
	}
	switch g.ID {
	case w.gameID:
	case "":
		g.ID = w.gameID
	default:
		w.logger.Warn("dropping game event", "error",
			fmt.Errorf("%w: node holds game %q", ErrValidation, g.ID))
		return false
	}

	w.game = g
	if ch, ok := w.catalog.CurrentChallenges()[g.ChallengeID]; ok {
		w.challenge = ch
	} else {
		w.logger.Debug("challenge not in catalog yet", "challenge_id", g.ChallengeID)
	}
	w.onChange(w.game, w.challenge)
	return true
}

// UpdateRemote overwrites the game node if it still exists. The watcher's
// state only changes through the echoed value event.
func (w *GameWatcher) UpdateRemote(ctx context.Context, g brainy.Game) error {
	if g.ID == "" || g.ID != w.gameID {
		err := fmt.Errorf("%w: game %q (bound to %q)", ErrValidation, g.ID, w.gameID)
		w.logger.Warn("update rejected", "error", err)
		return err
	}
	return writeExisting(ctx, w.feed, GamePath(w.gameID), g, w.logger)
}
