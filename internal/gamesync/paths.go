package gamesync

import "github.com/playperu/brainy/internal/feed"

// Top-level folders of the remote store.
const (
	GamesFolder      = "games"
	ChallengesFolder = "challenges"
	LessonsFolder    = "lessons"
	SessionsFolder   = "player-sessions-by-game"
	IdeasFolder      = "ideas-by-game"
)

func GamePath(gameID string) string     { return feed.Join(GamesFolder, gameID) }
func IdeasPath(gameID string) string    { return feed.Join(IdeasFolder, gameID) }
func SessionsPath(gameID string) string { return feed.Join(SessionsFolder, gameID) }
