package stats

import (
	"context"
	"fmt"

	"scout-sync/internal/domain"
	"scout-sync/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Recalculator rebuilds per-team aggregates from the full record set. It
// always recomputes from scratch; incremental updates are deliberately not
// supported so the aggregate can never drift from the records.
type Recalculator struct {
	records *repository.RecordRepository
	teams   *repository.TeamStatsRepository
	logger  zerolog.Logger
}

func NewRecalculator(records *repository.RecordRepository, teams *repository.TeamStatsRepository, logger zerolog.Logger) *Recalculator {
	return &Recalculator{records: records, teams: teams, logger: logger}
}

// Recompute derives and stores the aggregate for one team. A team whose last
// record was deleted resets to zero-valued defaults; the identity row stays.
func (r *Recalculator) Recompute(ctx context.Context, teamNumber string) (*domain.TeamStats, error) {
	records, err := r.records.ListByTeam(ctx, teamNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for team %s: %w", teamNumber, err)
	}

	teamName := ""
	if prior, err := r.teams.Get(ctx, teamNumber); err == nil {
		teamName = prior.TeamName
	}

	computed := domain.ComputeStats(teamNumber, teamName, records)
	if err := r.teams.Upsert(ctx, computed); err != nil {
		return nil, fmt.Errorf("failed to store team stats %s: %w", teamNumber, err)
	}

	r.logger.Debug().
		Str("team", teamNumber).
		Int("match_count", computed.MatchCount).
		Msg("team aggregate recomputed")
	return computed, nil
}

// RecomputeAll recomputes every listed team, typically the distinct teams
// touched by a bulk merge. Aggregate writes land on independent rows, so a
// few may run in parallel.
func (r *Recalculator) RecomputeAll(ctx context.Context, teams []string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, team := range teams {
		g.Go(func() error {
			_, err := r.Recompute(gCtx, team)
			return err
		})
	}
	return g.Wait()
}
