package game

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// StartRound opens the next round for the room: leader-only, one open
// round at a time. Every current member gets an unlocked entry and the
// room moves to in_progress.
func (s *Service) StartRound(ctx context.Context, actor Actor, roomID uint) (*Round, error) {
	var round *Round
	err := s.store.Transact(ctx, func(tx Store) error {
		room, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		if room.Status == RoomStatusFinished {
			return fmt.Errorf("%w: room is finished", ErrSequence)
		}
		if _, err := tx.OpenRound(ctx, room.ID); err == nil {
			return fmt.Errorf("%w: round in progress", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		maxNumber, err := tx.MaxRoundNumber(ctx, room.ID)
		if err != nil {
			return err
		}
		now := s.now()
		round = &Round{
			RoomID:    room.ID,
			Number:    maxNumber + 1,
			State:     RoundStateInProgress,
			Phase:     PhaseCalling,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, member := range room.Members {
			round.Entries = append(round.Entries, RoundEntry{
				MemberID:  member.ID,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if err := tx.CreateRound(ctx, round); err != nil {
			return err
		}
		room.Status = RoomStatusInProgress
		room.UpdatedAt = now
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventRoundStarted, room.ID, &round.ID, &leader.ID, EventPayload{
			RoundNumber: round.Number,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("round started room_id=%d round=%d", roomID, round.Number)
	s.publish(ctx, roomID)
	return round, nil
}

// LockOrUpdateCall commits or raises the actor's own call during the
// calling phase. The first submission must lock; once locked the call
// may only grow.
func (s *Service) LockOrUpdateCall(ctx context.Context, actor Actor, roomID uint, calledHands int, lock, blindCall bool) error {
	if calledHands < MinCalledHands || calledHands > MaxHands {
		return fmt.Errorf("%w: called hands must be between %d and %d", ErrValidation, MinCalledHands, MaxHands)
	}
	if blindCall && calledHands < MinBlindCall {
		return fmt.Errorf("%w: blind call must be at least %d hands", ErrValidation, MinBlindCall)
	}

	var eventType string
	err := s.store.Transact(ctx, func(tx Store) error {
		_, member, err := s.memberRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundInPhase(ctx, tx, roomID, PhaseCalling)
		if err != nil {
			return err
		}
		entry, err := tx.EntryForUpdate(ctx, round.ID, member.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if !entry.Locked {
			if !lock {
				return fmt.Errorf("%w: must lock on first call", ErrSequence)
			}
			entry.CalledHands = calledHands
			entry.BlindCall = blindCall
			entry.Locked = true
			entry.LockedAt = &now
			eventType = EventCallLocked
		} else {
			if calledHands < entry.CalledHands {
				return fmt.Errorf("%w: locked call cannot decrease below %d", ErrInvariant, entry.CalledHands)
			}
			entry.CalledHands = calledHands
			entry.BlindCall = blindCall
			eventType = EventCallUpdated
		}
		entry.UpdatedAt = now
		if err := tx.SaveEntry(ctx, entry); err != nil {
			return err
		}
		return appendEvent(ctx, tx, eventType, roomID, &round.ID, &member.ID, EventPayload{
			RoundNumber: round.Number,
			CalledHands: calledHands,
			BlindCall:   blindCall,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("call %s room_id=%d user=%s called=%d blind=%v", eventType, roomID, actor.UserID, calledHands, blindCall)
	s.publish(ctx, roomID)
	return nil
}

// StartPlay moves the open round from calling to playing once every
// entry is locked. Leader-only.
func (s *Service) StartPlay(ctx context.Context, actor Actor, roomID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		_, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundForUpdateInPhase(ctx, tx, roomID, PhaseCalling)
		if err != nil {
			return err
		}
		for i := range round.Entries {
			if !round.Entries[i].Locked {
				return fmt.Errorf("%w: every call must be locked before play starts", ErrPrecondition)
			}
		}
		now := s.now()
		round.Phase = PhasePlaying
		round.StartedAt = &now
		round.UpdatedAt = now
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventPlayStarted, roomID, &round.ID, &leader.ID, EventPayload{
			RoundNumber: round.Number,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("play started room_id=%d", roomID)
	s.publish(ctx, roomID)
	return nil
}

// EndPlay moves the open round from playing to ended. Leader-only;
// reporting becomes legal afterwards.
func (s *Service) EndPlay(ctx context.Context, actor Actor, roomID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		_, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundForUpdateInPhase(ctx, tx, roomID, PhasePlaying)
		if err != nil {
			return err
		}
		now := s.now()
		round.Phase = PhaseEnded
		round.EndedAt = &now
		round.UpdatedAt = now
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventPlayEnded, roomID, &round.ID, &leader.ID, EventPayload{
			RoundNumber: round.Number,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("play ended room_id=%d", roomID)
	s.publish(ctx, roomID)
	return nil
}

// Report records the actor's own winning-hand count once the round has
// ended. Reports may be overwritten until the entry is verified.
func (s *Service) Report(ctx context.Context, actor Actor, roomID uint, winningHands int) error {
	if winningHands < 0 || winningHands > MaxHands {
		return fmt.Errorf("%w: winning hands must be between 0 and %d", ErrValidation, MaxHands)
	}
	err := s.store.Transact(ctx, func(tx Store) error {
		_, member, err := s.memberRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundInPhase(ctx, tx, roomID, PhaseEnded)
		if err != nil {
			return err
		}
		entry, err := tx.EntryForUpdate(ctx, round.ID, member.ID)
		if err != nil {
			return err
		}
		if entry.VerifiedHands != nil {
			return fmt.Errorf("%w: entry is already verified", ErrPrecondition)
		}
		now := s.now()
		reported := winningHands
		entry.ReportedHands = &reported
		entry.UpdatedAt = now
		if err := tx.SaveEntry(ctx, entry); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventHandsReported, roomID, &round.ID, &member.ID, EventPayload{
			RoundNumber:  round.Number,
			WinningHands: &reported,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("hands reported room_id=%d user=%s hands=%d", roomID, actor.UserID, winningHands)
	s.publish(ctx, roomID)
	return nil
}

// Verify confirms, and possibly overrides, a member's reported winning
// hands. Leader-only; the target must have reported first. A nil
// verifiedHands accepts the reported value.
func (s *Service) Verify(ctx context.Context, actor Actor, roomID, targetMemberID uint, verifiedHands *int) error {
	if verifiedHands != nil && (*verifiedHands < 0 || *verifiedHands > MaxHands) {
		return fmt.Errorf("%w: verified hands must be between 0 and %d", ErrValidation, MaxHands)
	}
	err := s.store.Transact(ctx, func(tx Store) error {
		_, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundInPhase(ctx, tx, roomID, PhaseEnded)
		if err != nil {
			return err
		}
		entry, err := tx.EntryForUpdate(ctx, round.ID, targetMemberID)
		if err != nil {
			return err
		}
		if entry.ReportedHands == nil {
			return fmt.Errorf("%w: member has not reported yet", ErrPrecondition)
		}
		verified := *entry.ReportedHands
		if verifiedHands != nil {
			verified = *verifiedHands
		}
		now := s.now()
		entry.VerifiedHands = &verified
		entry.VerifiedBy = &leader.ID
		entry.UpdatedAt = now
		if err := tx.SaveEntry(ctx, entry); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventHandsVerified, roomID, &round.ID, &leader.ID, EventPayload{
			RoundNumber:   round.Number,
			TargetID:      targetMemberID,
			VerifiedHands: &verified,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("hands verified room_id=%d member_id=%d", roomID, targetMemberID)
	s.publish(ctx, roomID)
	return nil
}

// CloseRound scores every verified entry, bumps member totals, closes
// the round and returns the room to the lobby. The whole operation is
// one transaction; a concurrent close sees state=closed and fails.
func (s *Service) CloseRound(ctx context.Context, actor Actor, roomID uint) error {
	err := s.store.Transact(ctx, func(tx Store) error {
		room, leader, err := s.leaderRoom(ctx, tx, roomID, actor)
		if err != nil {
			return err
		}
		round, err := openRoundForUpdateInPhase(ctx, tx, roomID, PhaseEnded)
		if err != nil {
			return err
		}
		for i := range round.Entries {
			if round.Entries[i].VerifiedHands == nil {
				return fmt.Errorf("%w: every entry must be verified before closing", ErrPrecondition)
			}
		}
		now := s.now()
		for i := range round.Entries {
			entry := &round.Entries[i]
			points := Score(entry.CalledHands, *entry.VerifiedHands, entry.BlindCall)
			entry.Points = &points
			entry.UpdatedAt = now
			if err := tx.SaveEntry(ctx, entry); err != nil {
				return err
			}
			member := room.MemberByID(entry.MemberID)
			if member == nil {
				return fmt.Errorf("%w: member %d for entry", ErrNotFound, entry.MemberID)
			}
			member.TotalPoints += points
			member.UpdatedAt = now
			if err := tx.SaveMember(ctx, member); err != nil {
				return err
			}
		}
		round.State = RoundStateClosed
		round.ClosedAt = &now
		round.UpdatedAt = now
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}
		room.Status = RoomStatusLobby
		room.UpdatedAt = now
		if err := tx.SaveRoom(ctx, room); err != nil {
			return err
		}
		return appendEvent(ctx, tx, EventRoundClosed, roomID, &round.ID, &leader.ID, EventPayload{
			RoundNumber: round.Number,
		}, now)
	})
	if err != nil {
		return err
	}
	log.Printf("round closed room_id=%d", roomID)
	s.publish(ctx, roomID)
	return nil
}

// openRoundInPhase loads the room's open round and requires it to be
// in the given phase.
func openRoundInPhase(ctx context.Context, tx Store, roomID uint, phase string) (*Round, error) {
	round, err := tx.OpenRound(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: no open round", ErrSequence)
	}
	if err != nil {
		return nil, err
	}
	if round.Phase != phase {
		return nil, fmt.Errorf("%w: round is %s, not %s", ErrSequence, round.Phase, phase)
	}
	return round, nil
}

// openRoundForUpdateInPhase is openRoundInPhase with the round row
// locked, for operations that mutate the round itself.
func openRoundForUpdateInPhase(ctx context.Context, tx Store, roomID uint, phase string) (*Round, error) {
	round, err := tx.OpenRoundForUpdate(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: no open round", ErrSequence)
	}
	if err != nil {
		return nil, err
	}
	if round.Phase != phase {
		return nil, fmt.Errorf("%w: round is %s, not %s", ErrSequence, round.Phase, phase)
	}
	return round, nil
}
