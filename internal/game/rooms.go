package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
)

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("A", JoinCodeLength)
	}
	for i := range buf {
		buf[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
	}
	return string(buf)
}

// CreateRoom creates a room with the actor as leader and sole member.
func (s *Service) CreateRoom(ctx context.Context, actor Actor, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	var room *Room
	err := s.store.Transact(ctx, func(tx Store) error {
		code, err := s.uniqueJoinCode(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now()
		room = &Room{
			JoinCode:  code,
			Name:      name,
			Status:    RoomStatusLobby,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateRoom(ctx, room); err != nil {
			return err
		}
		leader := &Member{
			RoomID:    room.ID,
			UserID:    actor.UserID,
			Name:      actor.Name,
			JoinedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.AddMember(ctx, leader); err != nil {
			return err
		}
		room.LeaderID = leader.ID
		room.Members = []Member{*leader}
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventRoomCreated, room.ID, nil, &leader.ID, EventPayload{
			JoinCode:   room.JoinCode,
			MemberName: leader.Name,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("room created room_id=%d join_code=%s leader=%s", room.ID, room.JoinCode, actor.UserID)
	s.publish(ctx, room.ID)
	return room, nil
}

func (s *Service) uniqueJoinCode(ctx context.Context, tx Store) (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code := newJoinCode()
		taken, err := tx.CodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique join code", ErrConflict)
}

// JoinRoom adds the actor to the room with the given code. Rejoining a
// room the actor already belongs to is a no-op success, even mid-round.
func (s *Service) JoinRoom(ctx context.Context, actor Actor, code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != JoinCodeLength {
		return nil, fmt.Errorf("%w: join code must be %d characters", ErrValidation, JoinCodeLength)
	}

	var room *Room
	joined := false
	err := s.store.Transact(ctx, func(tx Store) error {
		var err error
		room, err = tx.RoomByCode(ctx, code)
		if err != nil {
			return err
		}
		if room.MemberByUser(actor.UserID) != nil {
			return nil
		}
		if _, err := tx.OpenRound(ctx, room.ID); err == nil {
			return fmt.Errorf("%w: round in progress", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if room.Status == RoomStatusFinished {
			return fmt.Errorf("%w: room is finished", ErrSequence)
		}
		if len(room.Members) >= RoomCapacity {
			return fmt.Errorf("%w: room already has %d members", ErrCapacity, RoomCapacity)
		}
		now := s.now()
		member := &Member{
			RoomID:    room.ID,
			UserID:    actor.UserID,
			Name:      actor.Name,
			JoinedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.AddMember(ctx, member); err != nil {
			return err
		}
		room.Members = append(room.Members, *member)
		joined = true
		return appendEvent(ctx, tx, EventMemberJoined, room.ID, nil, &member.ID, EventPayload{
			MemberName: member.Name,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		log.Printf("member joined room_id=%d user=%s", room.ID, actor.UserID)
		s.publish(ctx, room.ID)
	}
	return room, nil
}

// KickMember removes a member. The leader cannot be kicked. All of the
// member's round entries are removed with the membership, historical
// ones included.
func (s *Service) KickMember(ctx context.Context, actor Actor, roomID, targetMemberID uint) error {
	return s.removeMember(ctx, actor, roomID, targetMemberID, EventMemberKicked)
}

// LeaveRoom removes the actor's own membership. The leader must
// transfer leadership before leaving.
func (s *Service) LeaveRoom(ctx context.Context, actor Actor, roomID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		room, err := tx.RoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		member := room.MemberByUser(actor.UserID)
		if member == nil {
			return fmt.Errorf("%w: not a member of this room", ErrNotFound)
		}
		if member.ID == room.LeaderID {
			return fmt.Errorf("%w: leader must transfer leadership before leaving", ErrValidation)
		}
		if err := tx.DeleteMember(ctx, member.ID); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventMemberLeft, room.ID, nil, &member.ID, EventPayload{
			MemberName: member.Name,
		}, s.now())
	})
	if err != nil {
		return err
	}
	log.Printf("member left room_id=%d user=%s", roomID, actor.UserID)
	s.publish(ctx, roomID)
	return nil
}

func (s *Service) removeMember(ctx context.Context, actor Actor, roomID, targetMemberID uint, eventType string) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		room, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		if targetMemberID == room.LeaderID {
			return fmt.Errorf("%w: leader cannot be kicked", ErrValidation)
		}
		target := room.MemberByID(targetMemberID)
		if target == nil {
			return fmt.Errorf("%w: member %d", ErrNotFound, targetMemberID)
		}
		if err := tx.DeleteMember(ctx, target.ID); err != nil {
			return err
		}
		return appendEvent(ctx, tx, eventType, room.ID, nil, &leader.ID, EventPayload{
			MemberName: target.Name,
			TargetID:   target.ID,
		}, s.now())
	})
	if err != nil {
		return err
	}
	log.Printf("member removed room_id=%d member_id=%d by=%s", roomID, targetMemberID, actor.UserID)
	s.publish(ctx, roomID)
	return nil
}

// TransferLeadership reassigns the room leader to another member.
func (s *Service) TransferLeadership(ctx context.Context, actor Actor, roomID, targetMemberID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		room, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		if targetMemberID == room.LeaderID {
			return fmt.Errorf("%w: member is already the leader", ErrValidation)
		}
		target := room.MemberByID(targetMemberID)
		if target == nil {
			return fmt.Errorf("%w: member %d", ErrNotFound, targetMemberID)
		}
		room.LeaderID = target.ID
		room.UpdatedAt = s.now()
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventLeaderTransferred, room.ID, nil, &leader.ID, EventPayload{
			MemberName: target.Name,
			TargetID:   target.ID,
		}, s.now())
	})
	if err != nil {
		return err
	}
	log.Printf("leadership transferred room_id=%d to_member_id=%d", roomID, targetMemberID)
	s.publish(ctx, roomID)
	return nil
}

// FinishRoom marks the room finished. Only allowed from the lobby with
// no open round; finished is terminal.
func (s *Service) FinishRoom(ctx context.Context, actor Actor, roomID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		room, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		if room.Status != RoomStatusLobby {
			return fmt.Errorf("%w: room is not in the lobby", ErrSequence)
		}
		if _, err := tx.OpenRound(ctx, room.ID); err == nil {
			return fmt.Errorf("%w: round in progress", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		room.Status = RoomStatusFinished
		room.UpdatedAt = s.now()
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventRoomFinished, room.ID, nil, &leader.ID, EventPayload{}, s.now())
	})
	if err != nil {
		return err
	}
	log.Printf("room finished room_id=%d", roomID)
	s.publish(ctx, roomID)
	return nil
}

// leaderRoom loads the room and resolves the actor, requiring the
// leader role.
func (s *Service) leaderRoom(ctx context.Context, tx Store, roomID uint, actor Actor) (*Room, *Member, error) {
	room, err := tx.RoomByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	member := room.MemberByUser(actor.UserID)
	if member == nil {
		return nil, nil, fmt.Errorf("%w: not a member of this room", ErrNotFound)
	}
	if member.ID != room.LeaderID {
		return nil, nil, fmt.Errorf("%w: only the leader can do this", ErrAuthorization)
	}
	return room, member, nil
}

// memberRoom loads the room and resolves the actor's membership.
func (s *Service) memberRoom(ctx context.Context, tx Store, roomID uint, actor Actor) (*Room, *Member, error) {
	room, err := tx.RoomByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	member := room.MemberByUser(actor.UserID)
	if member == nil {
		return nil, nil, fmt.Errorf("%w: not a member of this room", ErrNotFound)
	}
	return room, member, nil
}
