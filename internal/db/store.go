package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/AwesomeSam9523/Spades/internal/game"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements game.Store on GORM/Postgres. Transact opens a real
// database transaction; the ForUpdate reads take row locks so that
// concurrent round mutations serialize on the round row.
type Store struct {
	db *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Transact(ctx context.Context, fn func(tx game.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) CreateRoom(ctx context.Context, room *game.Room) error {
	if err := s.db.WithContext(ctx).Omit("Members").Create(room).Error; err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

func (s *Store) RoomByID(ctx context.Context, id uint) (*game.Room, error) {
	var room game.Room
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room %d", game.ErrNotFound, id)
		}
		return nil, fmt.Errorf("find room %d: %w", id, err)
	}
	return &room, nil
}

func (s *Store) RoomByCode(ctx context.Context, code string) (*game.Room, error) {
	var room game.Room
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Where("join_code = ?", code).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no room with that code", game.ErrNotFound)
		}
		return nil, fmt.Errorf("find room by code: %w", err)
	}
	return &room, nil
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&game.Room{}).
		Where("join_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count join code: %w", err)
	}
	return count > 0, nil
}

func (s *Store) SaveRoom(ctx context.Context, room *game.Room) error {
	err := s.db.WithContext(ctx).
		Model(&game.Room{}).
		Where("id = ?", room.ID).
		Updates(map[string]any{
			"name":       room.Name,
			"status":     room.Status,
			"leader_id":  room.LeaderID,
			"updated_at": room.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("save room %d: %w", room.ID, err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, member *game.Member) error {
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) SaveMember(ctx context.Context, member *game.Member) error {
	err := s.db.WithContext(ctx).
		Model(&game.Member{}).
		Where("id = ?", member.ID).
		Updates(map[string]any{
			"name":         member.Name,
			"total_points": member.TotalPoints,
			"updated_at":   member.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("save member %d: %w", member.ID, err)
	}
	return nil
}

func (s *Store) DeleteMember(ctx context.Context, memberID uint) error {
	err := s.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Delete(&game.RoundEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete entries of member %d: %w", memberID, err)
	}
	result := s.db.WithContext(ctx).Delete(&game.Member{}, memberID)
	if result.Error != nil {
		return fmt.Errorf("delete member %d: %w", memberID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: member %d", game.ErrNotFound, memberID)
	}
	return nil
}

func (s *Store) CreateRound(ctx context.Context, round *game.Round) error {
	if err := s.db.WithContext(ctx).Create(round).Error; err != nil {
		return fmt.Errorf("create round: %w", err)
	}
	return nil
}

func (s *Store) SaveRound(ctx context.Context, round *game.Round) error {
	err := s.db.WithContext(ctx).
		Model(&game.Round{}).
		Where("id = ?", round.ID).
		Updates(map[string]any{
			"state":      round.State,
			"phase":      round.Phase,
			"started_at": round.StartedAt,
			"ended_at":   round.EndedAt,
			"closed_at":  round.ClosedAt,
			"updated_at": round.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("save round %d: %w", round.ID, err)
	}
	return nil
}

func (s *Store) RoundsByRoom(ctx context.Context, roomID uint) ([]game.Round, error) {
	var rounds []game.Round
	err := s.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("room_id = ?", roomID).
		Order("number ASC").
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("list rounds of room %d: %w", roomID, err)
	}
	return rounds, nil
}

func (s *Store) OpenRound(ctx context.Context, roomID uint) (*game.Round, error) {
	return s.openRound(ctx, roomID, false)
}

func (s *Store) OpenRoundForUpdate(ctx context.Context, roomID uint) (*game.Round, error) {
	return s.openRound(ctx, roomID, true)
}

func (s *Store) openRound(ctx context.Context, roomID uint, forUpdate bool) (*game.Round, error) {
	query := s.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var round game.Round
	err := query.
		Where("room_id = ? AND state = ?", roomID, game.RoundStateInProgress).
		First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no open round", game.ErrNotFound)
		}
		return nil, fmt.Errorf("find open round of room %d: %w", roomID, err)
	}
	err = s.db.WithContext(ctx).
		Where("round_id = ?", round.ID).
		Order("id ASC").
		Find(&round.Entries).Error
	if err != nil {
		return nil, fmt.Errorf("load entries of round %d: %w", round.ID, err)
	}
	return &round, nil
}

func (s *Store) MaxRoundNumber(ctx context.Context, roomID uint) (int, error) {
	var max int
	err := s.db.WithContext(ctx).
		Model(&game.Round{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("max round number of room %d: %w", roomID, err)
	}
	return max, nil
}

func (s *Store) EntryForUpdate(ctx context.Context, roundID, memberID uint) (*game.RoundEntry, error) {
	var entry game.RoundEntry
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("round_id = ? AND member_id = ?", roundID, memberID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no entry for member %d", game.ErrNotFound, memberID)
		}
		return nil, fmt.Errorf("find entry round=%d member=%d: %w", roundID, memberID, err)
	}
	return &entry, nil
}

func (s *Store) SaveEntry(ctx context.Context, entry *game.RoundEntry) error {
	err := s.db.WithContext(ctx).
		Model(&game.RoundEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"called_hands":   entry.CalledHands,
			"blind_call":     entry.BlindCall,
			"locked":         entry.Locked,
			"locked_at":      entry.LockedAt,
			"reported_hands": entry.ReportedHands,
			"verified_hands": entry.VerifiedHands,
			"verified_by":    entry.VerifiedBy,
			"points":         entry.Points,
			"updated_at":     entry.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("save entry %d: %w", entry.ID, err)
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event *game.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *Store) EventsByRoom(ctx context.Context, roomID uint) ([]game.Event, error) {
	var events []game.Event
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events of room %d: %w", roomID, err)
	}
	return events, nil
}
