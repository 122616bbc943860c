package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/brainy/internal/brainy"
)

type SessionRequest struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	ImageURI string `json:"imageUri,omitempty"`
}

func handleInsertSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		s, err := gameFrom(r).InsertPlayerSession(r.Context(), brainy.PlayerSession{
			UserID:   req.UserID,
			Name:     req.Name,
			ImageURI: req.ImageURI,
		})
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CreatedResponse{ID: s.ID})
	}
}

// SessionUpdateRequest carries the editable session fields. The user id is
// kept from the stored session.
type SessionUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	ImageURI *string `json:"imageUri,omitempty"`
}

func handleUpdateSession(wait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionUpdateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		coord := gameFrom(r)
		sessionID := chi.URLParam(r, "sessionID")
		fg, ok := awaitState(r.Context(), coord, wait, func(fg brainy.FullGame) bool {
			_, found := fg.Session(sessionID)
			return found
		})
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		s, _ := fg.Session(sessionID)
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				writeError(w, http.StatusBadRequest, "name is required")
				return
			}
			s.Name = name
		}
		if req.ImageURI != nil {
			s.ImageURI = *req.ImageURI
		}

		if err := coord.UpdatePlayerSession(r.Context(), s); err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, s)
	}
}
