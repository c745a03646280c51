package game

import "context"

// Store is the persistence collaborator. Implementations must make
// Transact atomic: every mutation inside fn commits together or not at
// all, and ForUpdate reads must block concurrent transactions touching
// the same row until commit.
type Store interface {
	CreateRoom(ctx context.Context, room *Room) error
	RoomByID(ctx context.Context, id uint) (*Room, error)
	RoomByCode(ctx context.Context, code string) (*Room, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	SaveRoom(ctx context.Context, room *Room) error

	AddMember(ctx context.Context, member *Member) error
	SaveMember(ctx context.Context, member *Member) error
	// DeleteMember removes the membership and all of the member's
	// round entries, historical ones included.
	DeleteMember(ctx context.Context, memberID uint) error

	CreateRound(ctx context.Context, round *Round) error
	SaveRound(ctx context.Context, round *Round) error
	RoundsByRoom(ctx context.Context, roomID uint) ([]Round, error)
	// OpenRound returns the room's round with state=in_progress, or
	// ErrNotFound when the room has no open round.
	OpenRound(ctx context.Context, roomID uint) (*Round, error)
	// OpenRoundForUpdate is OpenRound with the round row locked for
	// the duration of the surrounding transaction.
	OpenRoundForUpdate(ctx context.Context, roomID uint) (*Round, error)
	MaxRoundNumber(ctx context.Context, roomID uint) (int, error)

	EntryForUpdate(ctx context.Context, roundID, memberID uint) (*RoundEntry, error)
	SaveEntry(ctx context.Context, entry *RoundEntry) error

	AppendEvent(ctx context.Context, event *Event) error
	EventsByRoom(ctx context.Context, roomID uint) ([]Event, error)

	// Transact runs fn against a transaction-scoped view of the store.
	Transact(ctx context.Context, fn func(tx Store) error) error
}

// Broadcaster delivers a fresh snapshot to every subscriber of a room.
// Delivery is fire-and-forget; failures never surface to the mutation.
type Broadcaster interface {
	Publish(roomID uint, snap *Snapshot)
}
