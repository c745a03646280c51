package game

import (
	"context"
	"sort"
	"time"
)

// Snapshot is the externally visible projection of a room: summary,
// members in join order, every round oldest first, and the
// leaderboard. Built fresh after each accepted mutation and handed to
// the broadcaster.
type Snapshot struct {
	RoomID      uint         `json:"room_id"`
	JoinCode    string       `json:"join_code"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	LeaderID    uint         `json:"leader_id"`
	Members     []MemberView `json:"members"`
	Rounds      []RoundView  `json:"rounds"`
	Leaderboard []MemberView `json:"leaderboard"`
}

type MemberView struct {
	MemberID    uint   `json:"member_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	TotalPoints int    `json:"total_points"`
	IsLeader    bool   `json:"is_leader"`
}

type RoundView struct {
	Number        int         `json:"number"`
	Set           int         `json:"set"`
	PositionInSet int         `json:"position_in_set"`
	State         string      `json:"state"`
	Phase         string      `json:"phase"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
	Entries       []EntryView `json:"entries"`
}

type EntryView struct {
	MemberID      uint   `json:"member_id"`
	MemberName    string `json:"member_name"`
	CalledHands   int    `json:"called_hands"`
	BlindCall     bool   `json:"blind_call"`
	Locked        bool   `json:"locked"`
	ReportedHands *int   `json:"reported_hands"`
	VerifiedHands *int   `json:"verified_hands"`
	VerifiedBy    *uint  `json:"verified_by"`
	Points        *int   `json:"points"`
}

// Snapshot assembles the current view of a room.
func (s *Service) Snapshot(ctx context.Context, roomID uint) (*Snapshot, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.store.RoundsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(room, rounds), nil
}

// BuildSnapshot projects a loaded room and its rounds into the view.
// Pure; exported so tests can feed it directly.
func BuildSnapshot(room *Room, rounds []Round) *Snapshot {
	names := make(map[uint]string, len(room.Members))
	members := make([]MemberView, 0, len(room.Members))
	for _, member := range room.Members {
		names[member.ID] = member.Name
		members = append(members, MemberView{
			MemberID:    member.ID,
			UserID:      member.UserID,
			Name:        member.Name,
			TotalPoints: member.TotalPoints,
			IsLeader:    member.ID == room.LeaderID,
		})
	}

	roundViews := make([]RoundView, 0, len(rounds))
	for i := range rounds {
		round := &rounds[i]
		entries := make([]EntryView, 0, len(round.Entries))
		for j := range round.Entries {
			entry := &round.Entries[j]
			entries = append(entries, EntryView{
				MemberID:      entry.MemberID,
				MemberName:    names[entry.MemberID],
				CalledHands:   entry.CalledHands,
				BlindCall:     entry.BlindCall,
				Locked:        entry.Locked,
				ReportedHands: entry.ReportedHands,
				VerifiedHands: entry.VerifiedHands,
				VerifiedBy:    entry.VerifiedBy,
				Points:        entry.Points,
			})
		}
		roundViews = append(roundViews, RoundView{
			Number:        round.Number,
			Set:           SetNumber(round.Number),
			PositionInSet: SetPosition(round.Number),
			State:         round.State,
			Phase:         round.Phase,
			CreatedAt:     round.CreatedAt,
			StartedAt:     round.StartedAt,
			EndedAt:       round.EndedAt,
			ClosedAt:      round.ClosedAt,
			Entries:       entries,
		})
	}
	sort.Slice(roundViews, func(i, j int) bool {
		return roundViews[i].Number < roundViews[j].Number
	})

	// Ties keep join order.
	leaderboard := make([]MemberView, len(members))
	copy(leaderboard, members)
	sort.SliceStable(leaderboard, func(i, j int) bool {
		return leaderboard[i].TotalPoints > leaderboard[j].TotalPoints
	})

	return &Snapshot{
		RoomID:      room.ID,
		JoinCode:    room.JoinCode,
		Name:        room.Name,
		Status:      room.Status,
		LeaderID:    room.LeaderID,
		Members:     members,
		Rounds:      roundViews,
		Leaderboard: leaderboard,
	}
}
