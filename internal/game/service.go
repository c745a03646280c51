package game

import (
	"context"
	"log"
	"time"
)

// Service exposes the room and round operations. All mutations run
// inside a single store transaction; the snapshot broadcast happens
// after commit and never affects the operation's outcome.
type Service struct {
	store        Store
	cast         Broadcaster
	codeAttempts int
	now          func() time.Time
}

func NewService(store Store, cast Broadcaster) *Service {
	return &Service{
		store:        store,
		cast:         cast,
		codeAttempts: 10,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// publish rebuilds the room snapshot and hands it to the broadcaster.
// Called after a committed mutation; delivery failure is logged and
// dropped.
func (s *Service) publish(ctx context.Context, roomID uint) {
	if s.cast == nil {
		return
	}
	snap, err := s.Snapshot(ctx, roomID)
	if err != nil {
		log.Printf("snapshot rebuild failed room_id=%d error=%v", roomID, err)
		return
	}
	s.cast.Publish(roomID, snap)
}
