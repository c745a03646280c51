package game

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

const (
	EventRoomCreated       = "room_created"
	EventMemberJoined      = "member_joined"
	EventMemberKicked      = "member_kicked"
	EventMemberLeft        = "member_left"
	EventLeaderTransferred = "leader_transferred"
	EventRoomFinished      = "room_finished"
	EventRoundStarted      = "round_started"
	EventCallLocked        = "call_locked"
	EventCallUpdated       = "call_updated"
	EventPlayStarted       = "play_started"
	EventPlayEnded         = "play_ended"
	EventHandsReported     = "hands_reported"
	EventHandsVerified     = "hands_verified"
	EventRoundClosed       = "round_closed"
)

type EventPayload struct {
	JoinCode      string `json:"join_code,omitempty"`
	MemberName    string `json:"member,omitempty"`
	TargetID      uint   `json:"target_id,omitempty"`
	RoundNumber   int    `json:"round_number,omitempty"`
	CalledHands   int    `json:"called_hands,omitempty"`
	BlindCall     bool   `json:"blind_call,omitempty"`
	WinningHands  *int   `json:"winning_hands,omitempty"`
	VerifiedHands *int   `json:"verified_hands,omitempty"`
	Points        int    `json:"points,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// appendEvent records room activity inside the current transaction.
// A marshal failure is a programming error; it is logged, not fatal.
func appendEvent(ctx context.Context, tx Store, eventType string, roomID uint, roundID, memberID *uint, payload EventPayload, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event payload marshal failed type=%s error=%v", eventType, err)
		data = []byte("{}")
	}
	return tx.AppendEvent(ctx, &Event{
		RoomID:    roomID,
		RoundID:   roundID,
		MemberID:  memberID,
		Type:      eventType,
		Payload:   data,
		CreatedAt: at,
	})
}

// Events returns the room's activity log, oldest first.
func (s *Service) Events(ctx context.Context, roomID uint) ([]Event, error) {
	if _, err := s.store.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.store.EventsByRoom(ctx, roomID)
}
