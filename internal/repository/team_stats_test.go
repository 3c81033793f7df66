package repository

import (
	"context"
	"errors"
	"testing"

	"scout-sync/internal/domain"
	"scout-sync/internal/testutil"

	"github.com/rs/zerolog"
)

func newStatsRepo(t *testing.T) *TeamStatsRepository {
	t.Helper()
	return NewTeamStatsRepository(testutil.NewDB(t), zerolog.Nop())
}

func TestStatsUpsertAndGet(t *testing.T) {
	repo := newStatsRepo(t)
	ctx := context.Background()

	stats := domain.ZeroStats("254", "The Cheesy Poofs")
	stats.MatchCount = 2
	stats.AvgOverall = 6.5
	stats.ClimbCounts[domain.ClimbHigh] = 2

	if err := repo.Upsert(ctx, stats); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "254")
	if err != nil {
		t.Fatal(err)
	}
	if got.MatchCount != 2 || got.AvgOverall != 6.5 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if got.ClimbCounts[domain.ClimbHigh] != 2 {
		t.Fatalf("climb counts not round-tripped: %+v", got.ClimbCounts)
	}
}

func TestStatsUpsertReplacesFully(t *testing.T) {
	repo := newStatsRepo(t)
	ctx := context.Background()

	stats := domain.ZeroStats("254", "The Cheesy Poofs")
	stats.MatchCount = 3
	stats.AvgOverall = 5.0
	stats.ClimbCounts[domain.ClimbHigh] = 3
	if err := repo.Upsert(ctx, stats); err != nil {
		t.Fatal(err)
	}

	// A recompute down to zero must not leave stale values behind.
	if err := repo.Upsert(ctx, domain.ZeroStats("254", "")); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "254")
	if err != nil {
		t.Fatal(err)
	}
	if got.MatchCount != 0 || got.AvgOverall != 0 || got.ClimbCounts[domain.ClimbHigh] != 0 {
		t.Fatalf("zero upsert left stale values: %+v", got)
	}
	if got.TeamName != "The Cheesy Poofs" {
		t.Fatal("team name must survive a zero recompute")
	}
}

func TestEnsureTeam(t *testing.T) {
	repo := newStatsRepo(t)
	ctx := context.Background()

	if err := repo.EnsureTeam(ctx, "1678", "Citrus Circuits"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "1678")
	if err != nil {
		t.Fatal(err)
	}
	if got.MatchCount != 0 || got.TeamName != "Citrus Circuits" {
		t.Fatalf("unexpected seeded team %+v", got)
	}

	// Ensuring again must not clobber existing statistics.
	got.MatchCount = 5
	if err := repo.Upsert(ctx, got); err != nil {
		t.Fatal(err)
	}
	if err := repo.EnsureTeam(ctx, "1678", "Renamed"); err != nil {
		t.Fatal(err)
	}
	again, err := repo.Get(ctx, "1678")
	if err != nil {
		t.Fatal(err)
	}
	if again.MatchCount != 5 {
		t.Fatal("EnsureTeam must not reset statistics")
	}
	if again.TeamName != "Citrus Circuits" {
		t.Fatal("EnsureTeam must not rename a team that already has a name")
	}
}

func TestStatsGetMissing(t *testing.T) {
	repo := newStatsRepo(t)
	if _, err := repo.Get(context.Background(), "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
