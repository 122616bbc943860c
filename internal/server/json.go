package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playperu/brainy/internal/gamesync"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeSyncError maps gamesync errors to HTTP statuses.
func writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gamesync.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gamesync.ErrStaleTarget), errors.Is(err, gamesync.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gamesync.ErrWriteRejected):
		writeError(w, http.StatusBadGateway, "write rejected by the feed")
	case errors.Is(err, gamesync.ErrTornDown):
		writeError(w, http.StatusConflict, "game is no longer synchronized")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
