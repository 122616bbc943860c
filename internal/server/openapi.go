package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/brainy/internal/brainy"
	"github.com/playperu/brainy/internal/handler/health"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type gamePath struct {
	GameID string `path:"gameID"`
}

type ideaPath struct {
	GameID string `path:"gameID"`
	IdeaID string `path:"ideaID"`
}

type sessionPath struct {
	GameID    string `path:"gameID"`
	SessionID string `path:"sessionID"`
}

type pinPath struct {
	Pin int `path:"pin"`
}

type challengeQuery struct {
	Category brainy.Category `query:"category" enum:"CHALLENGE,LESSON"`
}

type updateIdeaRequest struct {
	ideaPath
	IdeaUpdateRequest
}

type updateSessionRequest struct {
	sessionPath
	SessionUpdateRequest
}

type updateGameRequest struct {
	gamePath
	GameUpdateRequest
}

type insertIdeaRequest struct {
	gamePath
	IdeaRequest
}

type insertSessionRequest struct {
	gamePath
	SessionRequest
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Brainy API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Realtime state of brainstorming games.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the remote feed.")
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/challenges
	listChallenges, _ := r.NewOperationContext(http.MethodGet, "/api/challenges")
	listChallenges.SetSummary("List challenges")
	listChallenges.SetDescription("Returns the published challenges and lessons, optionally filtered by category.")
	listChallenges.AddReqStructure(challengeQuery{})
	listChallenges.AddRespStructure([]brainy.Challenge{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listChallenges)

	// POST /api/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createGame.SetSummary("Create game")
	createGame.SetDescription("Creates a game for a published challenge and assigns it a join pin.")
	createGame.AddReqStructure(CreateGameRequest{})
	createGame.AddRespStructure(brainy.Game{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(createGame)

	// GET /api/games/by-pin/{pin}
	byPin, _ := r.NewOperationContext(http.MethodGet, "/api/games/by-pin/{pin}")
	byPin.SetSummary("Find game by pin")
	byPin.SetDescription("Looks up the game a player wants to join.")
	byPin.AddReqStructure(pinPath{})
	byPin.AddRespStructure(brainy.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	byPin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(byPin)

	// GET /api/games/{gameID}/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/state")
	getState.SetSummary("Get game state")
	getState.SetDescription("Returns the game with its challenge, sessions, ideas and step counters.")
	getState.AddReqStructure(gamePath{})
	getState.AddRespStructure(StateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// GET /api/games/{gameID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/events")
	getEvents.SetSummary("SSE state stream")
	getEvents.SetDescription("Server-Sent Events stream with one state event per change of the game.")
	getEvents.AddReqStructure(gamePath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/games/{gameID}/ws
	getStream, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/ws")
	getStream.SetSummary("WebSocket state stream")
	getStream.SetDescription("Upgrades to a WebSocket connection that receives the game state as JSON on every change.")
	getStream.AddReqStructure(gamePath{})
	getStream.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getStream)

	// PUT /api/games/{gameID}
	updateGame, _ := r.NewOperationContext(http.MethodPut, "/api/games/{gameID}")
	updateGame.SetSummary("Update game")
	updateGame.SetDescription("Changes the step or story of the game. Omitted fields keep their value. The change shows up in the state once the feed echoes it.")
	updateGame.AddReqStructure(updateGameRequest{})
	updateGame.AddRespStructure(brainy.Game{}, openapi.WithHTTPStatus(http.StatusAccepted))
	updateGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateGame)

	// POST /api/games/{gameID}/advance
	advance, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/advance")
	advance.SetSummary("Advance step")
	advance.SetDescription("Moves the game to its next step and starts the session clock.")
	advance.AddReqStructure(gamePath{})
	advance.AddRespStructure(brainy.Game{}, openapi.WithHTTPStatus(http.StatusAccepted))
	advance.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(advance)

	// POST /api/games/{gameID}/sessions
	insertSession, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/sessions")
	insertSession.SetSummary("Join game")
	insertSession.SetDescription("Creates a player session in the game.")
	insertSession.AddReqStructure(insertSessionRequest{})
	insertSession.AddRespStructure(CreatedResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	insertSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(insertSession)

	// PUT /api/games/{gameID}/sessions/{sessionID}
	updateSession, _ := r.NewOperationContext(http.MethodPut, "/api/games/{gameID}/sessions/{sessionID}")
	updateSession.SetSummary("Update session")
	updateSession.SetDescription("Renames a player or changes their picture. Omitted fields keep their value.")
	updateSession.AddReqStructure(updateSessionRequest{})
	updateSession.AddRespStructure(brainy.PlayerSession{}, openapi.WithHTTPStatus(http.StatusAccepted))
	updateSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateSession)

	// POST /api/games/{gameID}/ideas
	insertIdea, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/ideas")
	insertIdea.SetSummary("Add idea")
	insertIdea.SetDescription("Adds an idea. The player name is taken from the player's session.")
	insertIdea.AddReqStructure(insertIdeaRequest{})
	insertIdea.AddRespStructure(CreatedResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	insertIdea.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(insertIdea)

	// PUT /api/games/{gameID}/ideas/{ideaID}
	updateIdea, _ := r.NewOperationContext(http.MethodPut, "/api/games/{gameID}/ideas/{ideaID}")
	updateIdea.SetSummary("Update idea")
	updateIdea.SetDescription("Edits the title or image of an idea. Omitted fields keep their value; votes change only through voting.")
	updateIdea.AddReqStructure(updateIdeaRequest{})
	updateIdea.AddRespStructure(brainy.Idea{}, openapi.WithHTTPStatus(http.StatusAccepted))
	updateIdea.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	updateIdea.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(updateIdea)

	// POST /api/games/{gameID}/ideas/{ideaID}/vote
	vote, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/ideas/{ideaID}/vote")
	vote.SetSummary("Vote for idea")
	vote.SetDescription("Adds one vote to the idea.")
	vote.AddReqStructure(ideaPath{})
	vote.AddRespStructure(brainy.Idea{}, openapi.WithHTTPStatus(http.StatusAccepted))
	vote.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(vote)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
