package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AwesomeSam9523/Spades/internal/game"
)

type createRoomRequest struct {
	Name string `json:"name"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

type callRequest struct {
	CalledHands int  `json:"called_hands"`
	Lock        bool `json:"lock"`
	BlindCall   bool `json:"blind_call"`
}

type reportRequest struct {
	WinningHands int `json:"winning_hands"`
}

type verifyRequest struct {
	TargetID      uint `json:"target_id"`
	VerifiedHands *int `json:"verified_hands"`
}

type targetRequest struct {
	TargetID uint `json:"target_id"`
}

// actor reads the already-authenticated identity from the request.
// Authentication itself is handled upstream of this service.
func actor(r *http.Request) (game.Actor, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return game.Actor{}, fmt.Errorf("%w: X-User-ID header is required", game.ErrValidation)
	}
	name := r.Header.Get("X-User-Name")
	if name == "" {
		name = userID
	}
	return game.Actor{UserID: userID, Name: name}, nil
}

func roomID(r *http.Request) (uint, error) {
	raw := r.PathValue("id")
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("%w: invalid room id %q", game.ErrValidation, raw)
	}
	return uint(value), nil
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req createRoomRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.svc.CreateRoom(r.Context(), who, req.Name)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room_id":   room.ID,
		"join_code": room.JoinCode,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req joinRoomRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.svc.JoinRoom(r.Context(), who, req.Code)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id":   room.ID,
		"join_code": room.JoinCode,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	snap, err := s.svc.Snapshot(r.Context(), id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := roomID(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	events, err := s.svc.Events(r.Context(), id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	round, err := s.svc.StartRound(r.Context(), who, id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"round_number": round.Number,
	})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req callRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.LockOrUpdateCall(r.Context(), who, id, req.CalledHands, req.Lock, req.BlindCall); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartPlay(w http.ResponseWriter, r *http.Request) {
	s.roomAction(w, r, s.svc.StartPlay)
}

func (s *Server) handleEndPlay(w http.ResponseWriter, r *http.Request) {
	s.roomAction(w, r, s.svc.EndPlay)
}

func (s *Server) handleCloseRound(w http.ResponseWriter, r *http.Request) {
	s.roomAction(w, r, s.svc.CloseRound)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.roomAction(w, r, s.svc.FinishRoom)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	s.roomAction(w, r, s.svc.LeaveRoom)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req reportRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.Report(r.Context(), who, id, req.WinningHands); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req verifyRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.Verify(r.Context(), who, id, req.TargetID, req.VerifiedHands); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req targetRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.KickMember(r.Context(), who, id, req.TargetID); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTransferLeadership(w http.ResponseWriter, r *http.Request) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	var req targetRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.TransferLeadership(r.Context(), who, id, req.TargetID); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) actorAndRoom(r *http.Request) (game.Actor, uint, error) {
	who, err := actor(r)
	if err != nil {
		return game.Actor{}, 0, err
	}
	id, err := roomID(r)
	if err != nil {
		return game.Actor{}, 0, err
	}
	return who, id, nil
}

// roomAction wraps the body-less room operations.
func (s *Server) roomAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, who game.Actor, roomID uint) error) {
	who, id, err := s.actorAndRoom(r)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if err := op(r.Context(), who, id); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
