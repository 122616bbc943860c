package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/gamesync"
)

type ctxKey int

const ctxKeyGame ctxKey = iota

// gameMiddleware acquires the coordinator for {gameID} for the lifetime of
// the request.
func gameMiddleware(games *gamesync.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gameID := chi.URLParam(r, "gameID")
			if gameID == "" {
				writeError(w, http.StatusNotFound, "game not found")
				return
			}

			coord, release, err := games.Acquire(gameID)
			if err != nil {
				writeSyncError(w, err)
				return
			}
			defer release()

			ctx := context.WithValue(r.Context(), ctxKeyGame, coord)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func gameFrom(r *http.Request) *gamesync.Coordinator {
	return r.Context().Value(ctxKeyGame).(*gamesync.Coordinator)
}

// awaitState waits until the aggregate satisfies cond, the timeout passes or
// ctx ends. It returns the last snapshot seen and whether cond held.
func awaitState(ctx context.Context, c *gamesync.Coordinator, timeout time.Duration, cond func(brainy.FullGame) bool) (brainy.FullGame, bool) {
	ch := c.Aggregate().Subscribe()
	defer c.Aggregate().Unsubscribe(ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case fg := <-ch:
			if cond(fg) {
				return fg, true
			}
		case <-timer.C:
			return c.Snapshot(), false
		case <-ctx.Done():
			return c.Snapshot(), false
		}
	}
}

func gameLoaded(fg brainy.FullGame) bool { return fg.Game.ID != "" }
