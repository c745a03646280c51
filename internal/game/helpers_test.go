package game

import (
	"context"
	"errors"
	"testing"
)

func newTestService() *Service {
	return NewService(NewMemStore(), nil)
}

// setupRoom creates a room led by the first user and joins the rest.
func setupRoom(t *testing.T, svc *Service, users ...string) *Room {
	t.Helper()
	ctx := context.Background()
	room, err := svc.CreateRoom(ctx, Actor{UserID: users[0], Name: users[0]}, "Friday Spades")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, user := range users[1:] {
		if _, err := svc.JoinRoom(ctx, Actor{UserID: user, Name: user}, room.JoinCode); err != nil {
			t.Fatalf("join room as %s: %v", user, err)
		}
	}
	return reload(t, svc, room.ID)
}

func reload(t *testing.T, svc *Service, roomID uint) *Room {
	t.Helper()
	room, err := svc.store.RoomByID(context.Background(), roomID)
	if err != nil {
		t.Fatalf("reload room: %v", err)
	}
	return room
}

func openRound(t *testing.T, svc *Service, roomID uint) *Round {
	t.Helper()
	round, err := svc.store.OpenRound(context.Background(), roomID)
	if err != nil {
		t.Fatalf("open round: %v", err)
	}
	return round
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func lockAll(t *testing.T, svc *Service, roomID uint, calls map[string]int, blind map[string]bool) {
	t.Helper()
	ctx := context.Background()
	for user, called := range calls {
		if err := svc.LockOrUpdateCall(ctx, Actor{UserID: user}, roomID, called, true, blind[user]); err != nil {
			t.Fatalf("lock call for %s: %v", user, err)
		}
	}
}

func intptr(v int) *int {
	return &v
}
