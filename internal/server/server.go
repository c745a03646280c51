package server

import (
	"net/http"

	"github.com/AwesomeSam9523/Spades/internal/game"
)

type Server struct {
	svc *game.Service
	hub *wsHub
}

func New(store game.Store) *Server {
	hub := newWSHub()
	return &Server{
		svc: game.NewService(store, hub),
		hub: hub,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /api/rooms/join", s.handleJoinRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("GET /api/rooms/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /api/rooms/{id}/rounds", s.handleStartRound)
	mux.HandleFunc("POST /api/rooms/{id}/call", s.handleCall)
	mux.HandleFunc("POST /api/rooms/{id}/play", s.handleStartPlay)
	mux.HandleFunc("POST /api/rooms/{id}/end", s.handleEndPlay)
	mux.HandleFunc("POST /api/rooms/{id}/report", s.handleReport)
	mux.HandleFunc("POST /api/rooms/{id}/verify", s.handleVerify)
	mux.HandleFunc("POST /api/rooms/{id}/close", s.handleCloseRound)
	mux.HandleFunc("POST /api/rooms/{id}/kick", s.handleKick)
	mux.HandleFunc("POST /api/rooms/{id}/leader", s.handleTransferLeadership)
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.handleLeave)
	mux.HandleFunc("POST /api/rooms/{id}/finish", s.handleFinish)
	mux.HandleFunc("GET /ws/rooms/{id}", s.handleWebsocket)
	return mux
}
