package gamesync

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
)

const pinAttempts = 5

// CreateGame writes a new game node. The feed assigns the id; a join pin is
// drawn when g has none and the step defaults to the first one.
func CreateGame(ctx context.Context, f feed.Feed, g brainy.Game) (brainy.Game, error) {
	if g.ChallengeID == "" || g.CreatorID == "" {
		return g, fmt.Errorf("%w: challenge and creator are required", ErrValidation)
	}
	if g.Step == "" {
		g.Step = brainy.StepGenIdea
	}
	if !g.Step.Valid() {
		return g, fmt.Errorf("%w: unknown step %q", ErrValidation, g.Step)
	}

	if g.Pin == 0 {
		games, err := allGames(ctx, f)
		if err != nil {
			return g, err
		}
		taken := make(map[int]bool, len(games))
		for _, other := range games {
			taken[other.Pin] = true
		}
		for range pinAttempts {
			g.Pin = 1000 + rand.IntN(9000)
			if !taken[g.Pin] {
				break
			}
		}
	}

	g.ID = f.PushKey(GamesFolder)
	if err := f.Write(ctx, GamePath(g.ID), g); err != nil {
		return g, fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}
	return g, nil
}

// FindGameByPin returns the game with the given join pin. When pins collide
// the most recently created game wins.
func FindGameByPin(ctx context.Context, f feed.Feed, pin int) (brainy.Game, error) {
	games, err := allGames(ctx, f)
	if err != nil {
		return brainy.Game{}, err
	}
	var found brainy.Game
	for key, g := range games {
		if g.Pin != pin {
			continue
		}
		g.ID = key
		if found.ID == "" || g.ID > found.ID {
			found = g
		}
	}
	if found.ID == "" {
		return brainy.Game{}, fmt.Errorf("%w: no game with pin %d", ErrNotFound, pin)
	}
	return found, nil
}

func allGames(ctx context.Context, f feed.Feed) (map[string]brainy.Game, error) {
	data, ok, err := f.ReadOnce(ctx, GamesFolder)
	if err != nil {
		return nil, fmt.Errorf("reading games: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var games map[string]brainy.Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, fmt.Errorf("%w: games: %v", ErrDecode, err)
	}
	return games, nil
}
