package game

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoomStatusLobby      = "lobby"
	RoomStatusInProgress = "in_progress"
	RoomStatusFinished   = "finished"
)

const (
	RoundStateInProgress = "in_progress"
	RoundStateClosed     = "closed"
)

const (
	PhaseCalling = "calling"
	PhasePlaying = "playing"
	PhaseEnded   = "ended"
)

const (
	// RoomCapacity is the hard member ceiling per room.
	RoomCapacity = 4
	// RoundsPerSet groups rounds for display (set 1 = rounds 1-4).
	RoundsPerSet = 4

	MinCalledHands = 2
	MaxHands       = 13
	// MinBlindCall is the lowest call that may be locked blind.
	MinBlindCall = 5

	JoinCodeLength = 6
)

// Actor is the already-authenticated identity performing an operation.
// Authentication itself happens upstream; the core only needs a stable
// user id and a display name for newly created memberships.
type Actor struct {
	UserID string
	Name   string
}

type Room struct {
	ID        uint      `gorm:"primaryKey"`
	JoinCode  string    `gorm:"size:6;uniqueIndex;not null"`
	Name      string    `gorm:"size:64;not null"`
	Status    string    `gorm:"size:16;not null"`
	LeaderID  uint      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Members   []Member  `gorm:"constraint:OnDelete:CASCADE"`
}

type Member struct {
	ID          uint      `gorm:"primaryKey"`
	RoomID      uint      `gorm:"index;not null;uniqueIndex:idx_members_room_user"`
	UserID      string    `gorm:"size:64;not null;uniqueIndex:idx_members_room_user"`
	Name        string    `gorm:"size:64;not null"`
	TotalPoints int       `gorm:"not null;default:0"`
	JoinedAt    time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type Round struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    uint   `gorm:"index;not null;uniqueIndex:idx_rounds_room_number"`
	Number    int    `gorm:"not null;uniqueIndex:idx_rounds_room_number"`
	State     string `gorm:"size:16;not null"`
	Phase     string `gorm:"size:16;not null"`
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	ClosedAt  *time.Time
	UpdatedAt time.Time
	Entries   []RoundEntry `gorm:"constraint:OnDelete:CASCADE"`
}

// RoundEntry is the per-member ledger row inside one round. Locked is
// an explicit flag; LockedAt only records when the lock happened.
type RoundEntry struct {
	ID            uint   `gorm:"primaryKey"`
	RoundID       uint   `gorm:"index;not null;uniqueIndex:idx_entries_round_member"`
	MemberID      uint   `gorm:"index;not null;uniqueIndex:idx_entries_round_member"`
	CalledHands   int    `gorm:"not null;default:0"`
	BlindCall     bool   `gorm:"not null;default:false"`
	Locked        bool   `gorm:"not null;default:false"`
	LockedAt      *time.Time
	ReportedHands *int
	VerifiedHands *int
	VerifiedBy    *uint
	Points        *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event is an append-only activity record per room.
type Event struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoomID    uint           `gorm:"index;not null" json:"room_id"`
	RoundID   *uint          `gorm:"index" json:"round_id,omitempty"`
	MemberID  *uint          `gorm:"index" json:"member_id,omitempty"`
	Type      string         `gorm:"size:64;not null" json:"type"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (r *Room) MemberByUser(userID string) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

func (r *Room) MemberByID(id uint) *Member {
	for i := range r.Members {
		if r.Members[i].ID == id {
			return &r.Members[i]
		}
	}
	return nil
}

func (rd *Round) EntryByMember(memberID uint) *RoundEntry {
	for i := range rd.Entries {
		if rd.Entries[i].MemberID == memberID {
			return &rd.Entries[i]
		}
	}
	return nil
}

// SetNumber groups rounds into sets of four for display.
func SetNumber(roundNumber int) int {
	return (roundNumber-1)/RoundsPerSet + 1
}

// SetPosition is the 1-based position of a round within its set.
func SetPosition(roundNumber int) int {
	return (roundNumber-1)%RoundsPerSet + 1
}
