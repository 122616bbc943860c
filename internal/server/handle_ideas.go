package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/brainy/internal/brainy"
)

type IdeaRequest struct {
	PlayerID string        `json:"playerId"`
	Origin   brainy.Origin `json:"origin"`
	Title    string        `json:"title,omitempty"`
	ImageURI string        `json:"imageUri,omitempty"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}

// handleInsertIdea gives a freshly loaded aggregate up to wait to pick up the
// player's session so the idea carries the player's name.
func handleInsertIdea(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IdeaRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		coord := gameFrom(r)
		if req.PlayerID != "" {
			awaitState(r.Context(), coord, wait, func(fg brainy.FullGame) bool {
				_, ok := fg.SessionByUser(req.PlayerID)
				return ok
			})
		}

		idea, err := coord.InsertIdea(r.Context(), brainy.Idea{
			PlayerID: req.PlayerID,
			Origin:   brainy.Origin(strings.ToUpper(string(req.Origin))),
			Title:    strings.TrimSpace(req.Title),
			ImageURI: req.ImageURI,
		})
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CreatedResponse{ID: idea.ID})
	}
}

// IdeaUpdateRequest carries the editable idea fields. Origin, author and
// votes are kept from the stored idea; votes change only through voting.
type IdeaUpdateRequest struct {
	Title    *string `json:"title,omitempty"`
	ImageURI *string `json:"imageUri,omitempty"`
}

func handleUpdateIdea(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IdeaUpdateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		coord := gameFrom(r)
		ideaID := chi.URLParam(r, "ideaID")
		fg, ok := awaitState(r.Context(), coord, wait, func(fg brainy.FullGame) bool {
			_, found := fg.Idea(ideaID)
			return found
		})
		if !ok {
			writeError(w, http.StatusNotFound, "idea not found")
			return
		}

		idea, _ := fg.Idea(ideaID)
		if req.Title != nil {
			idea.Title = strings.TrimSpace(*req.Title)
		}
		if req.ImageURI != nil {
			idea.ImageURI = *req.ImageURI
		}

		if err := coord.UpdateIdea(r.Context(), idea); err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, idea)
	}
}

// handleVote adds one vote to the idea as currently known to the aggregate.
// Concurrent votes on the same idea can overwrite each other.
func handleVote(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord := gameFrom(r)
		ideaID := chi.URLParam(r, "ideaID")

		fg, ok := awaitState(r.Context(), coord, wait, func(fg brainy.FullGame) bool {
			_, found := fg.Idea(ideaID)
			return found
		})
		if !ok {
			writeError(w, http.StatusNotFound, "idea not found")
			return
		}

		idea, _ := fg.Idea(ideaID)
		idea = idea.Vote()
		if err := coord.UpdateIdea(r.Context(), idea); err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, idea)
	}
}
