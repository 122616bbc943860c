package server

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/feed"
	"github.com/playperu/brainy/internal/gamesync"
)

type CreateGameRequest struct {
	ChallengeID      string `json:"challengeId"`
	CreatorID        string `json:"creatorId"`
	StoryTitle       string `json:"storyTitle,omitempty"`
	StoryDescription string `json:"storyDescription,omitempty"`
}

// StateResponse is the aggregate of one game plus its derived counters.
type StateResponse struct {
	brainy.FullGame
	Counts       map[brainy.Step]int `json:"counts"`
	CurrentCount int                 `json:"currentCount"`
}

func newStateResponse(fg brainy.FullGame) StateResponse {
	resp := StateResponse{
		FullGame:     fg,
		Counts:       brainy.StepCounts(fg),
		CurrentCount: brainy.StepCount(fg, fg.Game.Step),
	}
	if resp.Sessions == nil {
		resp.Sessions = []brainy.PlayerSession{}
	}
	if resp.Ideas == nil {
		resp.Ideas = []brainy.Idea{}
	}
	return resp
}

func handleListChallenges(catalog gamesync.ChallengeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := brainy.Category(strings.ToUpper(r.URL.Query().Get("category")))

		out := []brainy.Challenge{}
		for _, ch := range catalog.CurrentChallenges() {
			if category != "" && ch.Category != category {
				continue
			}
			out = append(out, ch)
		}
		slices.SortFunc(out, func(a, b brainy.Challenge) int { return cmp.Compare(a.ID, b.ID) })

		writeJSON(w, http.StatusOK, out)
	}
}

func handleCreateGame(f feed.Feed, catalog gamesync.ChallengeCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if _, ok := catalog.CurrentChallenges()[req.ChallengeID]; !ok {
			writeError(w, http.StatusBadRequest, "unknown challenge")
			return
		}

		g, err := gamesync.CreateGame(r.Context(), f, brainy.Game{
			ChallengeID:      req.ChallengeID,
			CreatorID:        req.CreatorID,
			StoryTitle:       req.StoryTitle,
			StoryDescription: req.StoryDescription,
		})
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func handleGameByPin(f feed.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin, err := strconv.Atoi(chi.URLParam(r, "pin"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "pin must be a number")
			return
		}

		g, err := gamesync.FindGameByPin(r.Context(), f, pin)
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func handleGameState(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fg, ok := awaitState(r.Context(), gameFrom(r), wait, gameLoaded)
		if !ok {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeJSON(w, http.StatusOK, newStateResponse(fg))
	}
}

// GameUpdateRequest carries the mutable game fields. Absent fields keep their
// current value; challenge, creator and pin never change.
type GameUpdateRequest struct {
	Step             *string `json:"step,omitempty"`
	StoryTitle       *string `json:"storyTitle,omitempty"`
	StoryDescription *string `json:"storyDescription,omitempty"`
}

func handleUpdateGame(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GameUpdateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		coord := gameFrom(r)
		fg, ok := awaitState(r.Context(), coord, wait, gameLoaded)
		if !ok {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		g := fg.Game
		if req.Step != nil {
			step, err := brainy.ParseStep(strings.ToUpper(*req.Step))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			g.Step = step
		}
		if req.StoryTitle != nil {
			g.StoryTitle = strings.TrimSpace(*req.StoryTitle)
		}
		if req.StoryDescription != nil {
			g.StoryDescription = strings.TrimSpace(*req.StoryDescription)
		}

		if err := coord.UpdateGame(r.Context(), g); err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, g)
	}
}

// handleAdvance moves the game to its next step. The session clock starts
// with the first advance.
func handleAdvance(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord := gameFrom(r)
		fg, ok := awaitState(r.Context(), coord, wait, gameLoaded)
		if !ok {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		g := fg.Game.Advance().StartSession(time.Now())
		if err := coord.UpdateGame(r.Context(), g); err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, g)
	}
}
