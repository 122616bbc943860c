package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/brainy/internal/gamesync"
)

func addRoutes(r chi.Router, logger *slog.Logger, games *gamesync.Registry, opts Options) {
	wait := opts.StateWait

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Brainy API", "/openapi.json", "/docs"))

	r.Get("/api/challenges", handleListChallenges(games.Catalog()))
	r.Post("/api/games", handleCreateGame(games.Feed(), games.Catalog()))
	r.Get("/api/games/by-pin/{pin}", handleGameByPin(games.Feed()))

	// Per-game routes share the registry's coordinator for {gameID}.
	r.Route("/api/games/{gameID}", func(r chi.Router) {
		r.Use(gameMiddleware(games))

		r.Get("/state", handleGameState(wait))
		r.Get("/events", handleEvents())
		r.Get("/ws", handleStream(logger))
		r.Put("/", handleUpdateGame(wait))
		r.Post("/advance", handleAdvance(wait))

		r.Post("/sessions", handleInsertSession())
		r.Put("/sessions/{sessionID}", handleUpdateSession(wait))

		r.Post("/ideas", handleInsertIdea(wait))
		r.Put("/ideas/{ideaID}", handleUpdateIdea(wait))
		r.Post("/ideas/{ideaID}/vote", handleVote(wait))
	})

	if opts.SPADir != "" {
		if info, err := os.Stat(opts.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", opts.SPADir)
			r.NotFound(handleSPA(opts.SPADir))
		}
	}
}
