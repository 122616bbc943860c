package server

import (
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleStream pushes every aggregate snapshot to a websocket client as a
// JSON text message. Messages from the client are ignored.
func handleStream(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		coord := gameFrom(r)
		logger := logger.With("game_id", coord.GameID())

		ctx := conn.CloseRead(r.Context())
		agg := coord.Aggregate()
		ch := agg.Subscribe()
		defer agg.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket stream ended", "error", ctx.Err())
				return
			case fg, ok := <-ch:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "game closed")
					return
				}
				if err := wsjson.Write(ctx, conn, newStateResponse(fg)); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
