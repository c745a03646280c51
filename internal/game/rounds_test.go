package game

import (
	"context"
	"sync"
	"testing"
)

func TestFirstCallMustLock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	if _, err := svc.StartRound(ctx, Actor{UserID: "ada"}, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}

	err := svc.LockOrUpdateCall(ctx, Actor{UserID: "ada"}, room.ID, 3, false, false)
	wantErr(t, err, ErrSequence)

	if err := svc.LockOrUpdateCall(ctx, Actor{UserID: "ada"}, room.ID, 3, true, false); err != nil {
		t.Fatalf("lock call: %v", err)
	}
	entry := openRound(t, svc, room.ID).EntryByMember(room.Members[0].ID)
	if entry == nil || !entry.Locked || entry.CalledHands != 3 {
		t.Fatalf("expected locked call of 3, got %#v", entry)
	}
	if entry.LockedAt == nil {
		t.Fatal("expected lock timestamp to be set")
	}
}

func TestLockedCallMonotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	if _, err := svc.StartRound(ctx, Actor{UserID: "ada"}, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	ada := Actor{UserID: "ada"}

	for _, called := range []int{3, 3, 5, 7} {
		if err := svc.LockOrUpdateCall(ctx, ada, room.ID, called, true, false); err != nil {
			t.Fatalf("call %d: %v", called, err)
		}
	}
	err := svc.LockOrUpdateCall(ctx, ada, room.ID, 6, true, false)
	wantErr(t, err, ErrInvariant)

	entry := openRound(t, svc, room.ID).EntryByMember(room.Members[0].ID)
	if entry.CalledHands != 7 {
		t.Fatalf("expected call to stay at 7, got %d", entry.CalledHands)
	}
}

func TestCallValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada")
	if _, err := svc.StartRound(ctx, Actor{UserID: "ada"}, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	ada := Actor{UserID: "ada"}

	wantErr(t, svc.LockOrUpdateCall(ctx, ada, room.ID, 1, true, false), ErrValidation)
	wantErr(t, svc.LockOrUpdateCall(ctx, ada, room.ID, 14, true, false), ErrValidation)
	wantErr(t, svc.LockOrUpdateCall(ctx, ada, room.ID, 4, true, true), ErrValidation)

	if err := svc.LockOrUpdateCall(ctx, ada, room.ID, 5, true, true); err != nil {
		t.Fatalf("blind call of 5: %v", err)
	}
}

func TestStartPlayRequiresAllLocked(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben", "cal")
	if _, err := svc.StartRound(ctx, Actor{UserID: "ada"}, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}

	wantErr(t, svc.StartPlay(ctx, Actor{UserID: "ben"}, room.ID), ErrAuthorization)
	wantErr(t, svc.StartPlay(ctx, Actor{UserID: "ada"}, room.ID), ErrPrecondition)

	lockAll(t, svc, room.ID, map[string]int{"ada": 3, "ben": 2}, nil)
	wantErr(t, svc.StartPlay(ctx, Actor{UserID: "ada"}, room.ID), ErrPrecondition)

	lockAll(t, svc, room.ID, map[string]int{"cal": 4}, nil)
	if err := svc.StartPlay(ctx, Actor{UserID: "ada"}, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	round := openRound(t, svc, room.ID)
	if round.Phase != PhasePlaying || round.StartedAt == nil {
		t.Fatalf("expected playing phase with start timestamp, got %s", round.Phase)
	}

	// Phase never regresses; a second start fails.
	wantErr(t, svc.StartPlay(ctx, Actor{UserID: "ada"}, room.ID), ErrSequence)
	wantErr(t, svc.LockOrUpdateCall(ctx, Actor{UserID: "ada"}, room.ID, 5, true, false), ErrSequence)
}

func TestReportRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	ada := Actor{UserID: "ada"}
	if _, err := svc.StartRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	lockAll(t, svc, room.ID, map[string]int{"ada": 3, "ben": 4}, nil)

	wantErr(t, svc.Report(ctx, ada, room.ID, 3), ErrSequence)

	if err := svc.StartPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	wantErr(t, svc.Report(ctx, ada, room.ID, 3), ErrSequence)
	if err := svc.EndPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("end play: %v", err)
	}

	wantErr(t, svc.Report(ctx, ada, room.ID, -1), ErrValidation)
	wantErr(t, svc.Report(ctx, ada, room.ID, 14), ErrValidation)

	// Reports overwrite freely until verified.
	if err := svc.Report(ctx, ada, room.ID, 2); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := svc.Report(ctx, ada, room.ID, 4); err != nil {
		t.Fatalf("re-report: %v", err)
	}
	entry := openRound(t, svc, room.ID).EntryByMember(room.Members[0].ID)
	if entry.ReportedHands == nil || *entry.ReportedHands != 4 {
		t.Fatalf("expected reported 4, got %v", entry.ReportedHands)
	}

	if err := svc.Verify(ctx, ada, room.ID, room.Members[0].ID, nil); err != nil {
		t.Fatalf("verify: %v", err)
	}
	wantErr(t, svc.Report(ctx, ada, room.ID, 5), ErrPrecondition)
}

func TestVerifyRules(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	ada, ben := Actor{UserID: "ada"}, Actor{UserID: "ben"}
	if _, err := svc.StartRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	lockAll(t, svc, room.ID, map[string]int{"ada": 3, "ben": 4}, nil)
	if err := svc.StartPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	if err := svc.EndPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("end play: %v", err)
	}

	benID := room.Members[1].ID
	wantErr(t, svc.Verify(ctx, ben, room.ID, benID, nil), ErrAuthorization)
	wantErr(t, svc.Verify(ctx, ada, room.ID, benID, nil), ErrPrecondition)

	if err := svc.Report(ctx, ben, room.ID, 5); err != nil {
		t.Fatalf("report: %v", err)
	}
	// Leader overrides the reported value.
	if err := svc.Verify(ctx, ada, room.ID, benID, intptr(4)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	entry := openRound(t, svc, room.ID).EntryByMember(benID)
	if entry.VerifiedHands == nil || *entry.VerifiedHands != 4 {
		t.Fatalf("expected verified 4, got %v", entry.VerifiedHands)
	}
	if entry.VerifiedBy == nil || *entry.VerifiedBy != room.LeaderID {
		t.Fatalf("expected verifying leader %d, got %v", room.LeaderID, entry.VerifiedBy)
	}
}

func TestCloseRoundScoresAtomically(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	ada, ben := Actor{UserID: "ada"}, Actor{UserID: "ben"}
	if _, err := svc.StartRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	lockAll(t, svc, room.ID, map[string]int{"ada": 4, "ben": 5}, map[string]bool{"ben": true})
	if err := svc.StartPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	if err := svc.EndPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("end play: %v", err)
	}
	if err := svc.Report(ctx, ada, room.ID, 6); err != nil {
		t.Fatalf("report ada: %v", err)
	}

	// Close requires every entry verified.
	if err := svc.Verify(ctx, ada, room.ID, room.Members[0].ID, nil); err != nil {
		t.Fatalf("verify ada: %v", err)
	}
	wantErr(t, svc.CloseRound(ctx, ada, room.ID), ErrPrecondition)

	if err := svc.Report(ctx, ben, room.ID, 5); err != nil {
		t.Fatalf("report ben: %v", err)
	}
	if err := svc.Verify(ctx, ada, room.ID, room.Members[1].ID, nil); err != nil {
		t.Fatalf("verify ben: %v", err)
	}
	if err := svc.CloseRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("close round: %v", err)
	}

	rounds, err := svc.store.RoundsByRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("rounds: %v", err)
	}
	round := rounds[0]
	if round.State != RoundStateClosed || round.ClosedAt == nil {
		t.Fatalf("expected closed round, got state=%s", round.State)
	}
	adaEntry := round.EntryByMember(room.Members[0].ID)
	benEntry := round.EntryByMember(room.Members[1].ID)
	if adaEntry.Points == nil || *adaEntry.Points != Score(4, 6, false) {
		t.Fatalf("ada points = %v, want %d", adaEntry.Points, Score(4, 6, false))
	}
	if benEntry.Points == nil || *benEntry.Points != Score(5, 5, true) {
		t.Fatalf("ben points = %v, want %d", benEntry.Points, Score(5, 5, true))
	}

	after := reload(t, svc, room.ID)
	if after.Status != RoomStatusLobby {
		t.Fatalf("expected lobby status, got %s", after.Status)
	}
	if after.Members[0].TotalPoints != 42 || after.Members[1].TotalPoints != 100 {
		t.Fatalf("totals = %d/%d, want 42/100", after.Members[0].TotalPoints, after.Members[1].TotalPoints)
	}

	// A second close finds no open round.
	wantErr(t, svc.CloseRound(ctx, ada, room.ID), ErrSequence)
	again := reload(t, svc, room.ID)
	if again.Members[0].TotalPoints != 42 {
		t.Fatalf("total changed on repeated close: %d", again.Members[0].TotalPoints)
	}
}

func TestConcurrentCloseAwardsOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	ada, ben := Actor{UserID: "ada"}, Actor{UserID: "ben"}
	if _, err := svc.StartRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}
	lockAll(t, svc, room.ID, map[string]int{"ada": 3, "ben": 3}, nil)
	if err := svc.StartPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	if err := svc.EndPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("end play: %v", err)
	}
	for _, who := range []Actor{ada, ben} {
		if err := svc.Report(ctx, who, room.ID, 3); err != nil {
			t.Fatalf("report: %v", err)
		}
	}
	for _, member := range room.Members {
		if err := svc.Verify(ctx, ada, room.ID, member.ID, nil); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.CloseRound(ctx, ada, room.ID)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			wantErr(t, err, ErrSequence)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one close to succeed, got %d", succeeded)
	}
	after := reload(t, svc, room.ID)
	if after.Members[0].TotalPoints != 30 {
		t.Fatalf("expected single award of 30, got %d", after.Members[0].TotalPoints)
	}
}

func TestStartRoundNumbersAndConflict(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	room := setupRoom(t, svc, "ada", "ben")
	ada, ben := Actor{UserID: "ada"}, Actor{UserID: "ben"}

	wantErr(t, func() error { _, err := svc.StartRound(ctx, ben, room.ID); return err }(), ErrAuthorization)

	round, err := svc.StartRound(ctx, ada, room.ID)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if round.Number != 1 || round.Phase != PhaseCalling || round.State != RoundStateInProgress {
		t.Fatalf("unexpected first round %+v", round)
	}
	if len(round.Entries) != 2 {
		t.Fatalf("expected one entry per member, got %d", len(round.Entries))
	}
	if reload(t, svc, room.ID).Status != RoomStatusInProgress {
		t.Fatal("expected room status in_progress")
	}

	_, err = svc.StartRound(ctx, ada, room.ID)
	wantErr(t, err, ErrConflict)

	// Close it and the next round gets number 2.
	lockAll(t, svc, room.ID, map[string]int{"ada": 2, "ben": 2}, nil)
	if err := svc.StartPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("start play: %v", err)
	}
	if err := svc.EndPlay(ctx, ada, room.ID); err != nil {
		t.Fatalf("end play: %v", err)
	}
	for _, who := range []Actor{ada, ben} {
		if err := svc.Report(ctx, who, room.ID, 2); err != nil {
			t.Fatalf("report: %v", err)
		}
	}
	for _, member := range room.Members {
		if err := svc.Verify(ctx, ada, room.ID, member.ID, nil); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
	if err := svc.CloseRound(ctx, ada, room.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	next, err := svc.StartRound(ctx, ada, room.ID)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if next.Number != 2 {
		t.Fatalf("expected round number 2, got %d", next.Number)
	}
}
