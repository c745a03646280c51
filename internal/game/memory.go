package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used when no database is configured
// and by tests. A single mutex makes every transaction serializable,
// which trivially satisfies the Store contract.
type MemStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	nextRoomID   uint
	nextMemberID uint
	nextRoundID  uint
	nextEntryID  uint
	nextEventID  uint
	rooms        map[uint]*Room
	members      map[uint]*Member
	rounds       map[uint]*Round
	events       []Event
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: &memData{
			nextRoomID:   1,
			nextMemberID: 1,
			nextRoundID:  1,
			nextEntryID:  1,
			nextEventID:  1,
			rooms:        make(map[uint]*Room),
			members:      make(map[uint]*Member),
			rounds:       make(map[uint]*Round),
		},
	}
}

func (s *MemStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{data: s.data})
}

func (s *MemStore) CreateRoom(ctx context.Context, room *Room) error {
	return s.one(ctx, func(tx *memTx) error { return tx.CreateRoom(ctx, room) })
}

func (s *MemStore) RoomByID(ctx context.Context, id uint) (room *Room, err error) {
	err = s.one(ctx, func(tx *memTx) error { room, err = tx.RoomByID(ctx, id); return err })
	return room, err
}

func (s *MemStore) RoomByCode(ctx context.Context, code string) (room *Room, err error) {
	err = s.one(ctx, func(tx *memTx) error { room, err = tx.RoomByCode(ctx, code); return err })
	return room, err
}

func (s *MemStore) CodeInUse(ctx context.Context, code string) (used bool, err error) {
	err = s.one(ctx, func(tx *memTx) error { used, err = tx.CodeInUse(ctx, code); return err })
	return used, err
}

func (s *MemStore) SaveRoom(ctx context.Context, room *Room) error {
	return s.one(ctx, func(tx *memTx) error { return tx.SaveRoom(ctx, room) })
}

func (s *MemStore) AddMember(ctx context.Context, member *Member) error {
	return s.one(ctx, func(tx *memTx) error { return tx.AddMember(ctx, member) })
}

func (s *MemStore) SaveMember(ctx context.Context, member *Member) error {
	return s.one(ctx, func(tx *memTx) error { return tx.SaveMember(ctx, member) })
}

func (s *MemStore) DeleteMember(ctx context.Context, memberID uint) error {
	return s.one(ctx, func(tx *memTx) error { return tx.DeleteMember(ctx, memberID) })
}

func (s *MemStore) CreateRound(ctx context.Context, round *Round) error {
	return s.one(ctx, func(tx *memTx) error { return tx.CreateRound(ctx, round) })
}

func (s *MemStore) SaveRound(ctx context.Context, round *Round) error {
	return s.one(ctx, func(tx *memTx) error { return tx.SaveRound(ctx, round) })
}

func (s *MemStore) RoundsByRoom(ctx context.Context, roomID uint) (rounds []Round, err error) {
	err = s.one(ctx, func(tx *memTx) error { rounds, err = tx.RoundsByRoom(ctx, roomID); return err })
	return rounds, err
}

func (s *MemStore) OpenRound(ctx context.Context, roomID uint) (round *Round, err error) {
	err = s.one(ctx, func(tx *memTx) error { round, err = tx.OpenRound(ctx, roomID); return err })
	return round, err
}

func (s *MemStore) OpenRoundForUpdate(ctx context.Context, roomID uint) (*Round, error) {
	return s.OpenRound(ctx, roomID)
}

func (s *MemStore) MaxRoundNumber(ctx context.Context, roomID uint) (max int, err error) {
	err = s.one(ctx, func(tx *memTx) error { max, err = tx.MaxRoundNumber(ctx, roomID); return err })
	return max, err
}

func (s *MemStore) EntryForUpdate(ctx context.Context, roundID, memberID uint) (entry *RoundEntry, err error) {
	err = s.one(ctx, func(tx *memTx) error { entry, err = tx.EntryForUpdate(ctx, roundID, memberID); return err })
	return entry, err
}

func (s *MemStore) SaveEntry(ctx context.Context, entry *RoundEntry) error {
	return s.one(ctx, func(tx *memTx) error { return tx.SaveEntry(ctx, entry) })
}

func (s *MemStore) AppendEvent(ctx context.Context, event *Event) error {
	return s.one(ctx, func(tx *memTx) error { return tx.AppendEvent(ctx, event) })
}

func (s *MemStore) EventsByRoom(ctx context.Context, roomID uint) (events []Event, err error) {
	err = s.one(ctx, func(tx *memTx) error { events, err = tx.EventsByRoom(ctx, roomID); return err })
	return events, err
}

func (s *MemStore) one(ctx context.Context, fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{data: s.data})
}

// memTx operates on the shared data while the MemStore mutex is held.
type memTx struct {
	data *memData
}

func (t *memTx) Transact(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTx) CreateRoom(ctx context.Context, room *Room) error {
	room.ID = t.data.nextRoomID
	t.data.nextRoomID++
	stored := *room
	stored.Members = nil
	t.data.rooms[room.ID] = &stored
	return nil
}

func (t *memTx) RoomByID(ctx context.Context, id uint) (*Room, error) {
	stored, ok := t.data.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, id)
	}
	return t.loadRoom(stored), nil
}

func (t *memTx) RoomByCode(ctx context.Context, code string) (*Room, error) {
	for _, stored := range t.data.rooms {
		if stored.JoinCode == code {
			return t.loadRoom(stored), nil
		}
	}
	return nil, fmt.Errorf("%w: no room with that code", ErrNotFound)
}

func (t *memTx) CodeInUse(ctx context.Context, code string) (bool, error) {
	for _, stored := range t.data.rooms {
		if stored.JoinCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) SaveRoom(ctx context.Context, room *Room) error {
	stored, ok := t.data.rooms[room.ID]
	if !ok {
		return fmt.Errorf("%w: room %d", ErrNotFound, room.ID)
	}
	stored.Name = room.Name
	stored.Status = room.Status
	stored.LeaderID = room.LeaderID
	stored.UpdatedAt = room.UpdatedAt
	return nil
}

func (t *memTx) AddMember(ctx context.Context, member *Member) error {
	member.ID = t.data.nextMemberID
	t.data.nextMemberID++
	stored := *member
	t.data.members[member.ID] = &stored
	return nil
}

func (t *memTx) SaveMember(ctx context.Context, member *Member) error {
	if _, ok := t.data.members[member.ID]; !ok {
		return fmt.Errorf("%w: member %d", ErrNotFound, member.ID)
	}
	stored := *member
	t.data.members[member.ID] = &stored
	return nil
}

func (t *memTx) DeleteMember(ctx context.Context, memberID uint) error {
	if _, ok := t.data.members[memberID]; !ok {
		return fmt.Errorf("%w: member %d", ErrNotFound, memberID)
	}
	delete(t.data.members, memberID)
	for _, round := range t.data.rounds {
		kept := round.Entries[:0]
		for _, entry := range round.Entries {
			if entry.MemberID != memberID {
				kept = append(kept, entry)
			}
		}
		round.Entries = kept
	}
	return nil
}

func (t *memTx) CreateRound(ctx context.Context, round *Round) error {
	round.ID = t.data.nextRoundID
	t.data.nextRoundID++
	for i := range round.Entries {
		round.Entries[i].ID = t.data.nextEntryID
		round.Entries[i].RoundID = round.ID
		t.data.nextEntryID++
	}
	stored := copyRound(round)
	t.data.rounds[round.ID] = stored
	return nil
}

func (t *memTx) SaveRound(ctx context.Context, round *Round) error {
	stored, ok := t.data.rounds[round.ID]
	if !ok {
		return fmt.Errorf("%w: round %d", ErrNotFound, round.ID)
	}
	stored.State = round.State
	stored.Phase = round.Phase
	stored.StartedAt = copyTime(round.StartedAt)
	stored.EndedAt = copyTime(round.EndedAt)
	stored.ClosedAt = copyTime(round.ClosedAt)
	stored.UpdatedAt = round.UpdatedAt
	return nil
}

func (t *memTx) RoundsByRoom(ctx context.Context, roomID uint) ([]Round, error) {
	var rounds []Round
	for _, stored := range t.data.rounds {
		if stored.RoomID == roomID {
			rounds = append(rounds, *copyRound(stored))
		}
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].Number < rounds[j].Number })
	return rounds, nil
}

func (t *memTx) OpenRound(ctx context.Context, roomID uint) (*Round, error) {
	for _, stored := range t.data.rounds {
		if stored.RoomID == roomID && stored.State == RoundStateInProgress {
			return copyRound(stored), nil
		}
	}
	return nil, fmt.Errorf("%w: no open round", ErrNotFound)
}

func (t *memTx) OpenRoundForUpdate(ctx context.Context, roomID uint) (*Round, error) {
	return t.OpenRound(ctx, roomID)
}

func (t *memTx) MaxRoundNumber(ctx context.Context, roomID uint) (int, error) {
	max := 0
	for _, stored := range t.data.rounds {
		if stored.RoomID == roomID && stored.Number > max {
			max = stored.Number
		}
	}
	return max, nil
}

func (t *memTx) EntryForUpdate(ctx context.Context, roundID, memberID uint) (*RoundEntry, error) {
	stored, ok := t.data.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: round %d", ErrNotFound, roundID)
	}
	for i := range stored.Entries {
		if stored.Entries[i].MemberID == memberID {
			entry := copyEntry(&stored.Entries[i])
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: no entry for member %d", ErrNotFound, memberID)
}

func (t *memTx) SaveEntry(ctx context.Context, entry *RoundEntry) error {
	stored, ok := t.data.rounds[entry.RoundID]
	if !ok {
		return fmt.Errorf("%w: round %d", ErrNotFound, entry.RoundID)
	}
	for i := range stored.Entries {
		if stored.Entries[i].ID == entry.ID {
			stored.Entries[i] = *copyEntry(entry)
			return nil
		}
	}
	return fmt.Errorf("%w: entry %d", ErrNotFound, entry.ID)
}

func (t *memTx) AppendEvent(ctx context.Context, event *Event) error {
	event.ID = t.data.nextEventID
	t.data.nextEventID++
	t.data.events = append(t.data.events, *event)
	return nil
}

func (t *memTx) EventsByRoom(ctx context.Context, roomID uint) ([]Event, error) {
	var events []Event
	for _, event := range t.data.events {
		if event.RoomID == roomID {
			events = append(events, event)
		}
	}
	return events, nil
}

// loadRoom copies the room and attaches its members in join order.
func (t *memTx) loadRoom(stored *Room) *Room {
	room := *stored
	room.Members = nil
	for _, member := range t.data.members {
		if member.RoomID == room.ID {
			room.Members = append(room.Members, *member)
		}
	}
	sort.Slice(room.Members, func(i, j int) bool {
		a, b := room.Members[i], room.Members[j]
		if a.JoinedAt.Equal(b.JoinedAt) {
			return a.ID < b.ID
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return &room
}

func copyRound(round *Round) *Round {
	copied := *round
	copied.StartedAt = copyTime(round.StartedAt)
	copied.EndedAt = copyTime(round.EndedAt)
	copied.ClosedAt = copyTime(round.ClosedAt)
	copied.Entries = make([]RoundEntry, len(round.Entries))
	for i := range round.Entries {
		copied.Entries[i] = *copyEntry(&round.Entries[i])
	}
	return &copied
}

func copyEntry(entry *RoundEntry) *RoundEntry {
	copied := *entry
	copied.LockedAt = copyTime(entry.LockedAt)
	copied.ReportedHands = copyInt(entry.ReportedHands)
	copied.VerifiedHands = copyInt(entry.VerifiedHands)
	copied.VerifiedBy = copyUint(entry.VerifiedBy)
	copied.Points = copyInt(entry.Points)
	return &copied
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyUint(value *uint) *uint {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
