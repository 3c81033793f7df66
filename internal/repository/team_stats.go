package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scout-sync/internal/domain"

	"github.com/rs/zerolog"
)

type TeamStatsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTeamStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *TeamStatsRepository {
	return &TeamStatsRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert fully replaces the team's aggregate; nothing is merged in place.
func (r *TeamStatsRepository) Upsert(ctx context.Context, stats *domain.TeamStats) error {
	if stats.UpdatedAt.IsZero() {
		stats.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO team_stats (
			team_number, team_name, match_count,
			avg_defense, avg_avoiding_defense, avg_scoring_coral, avg_scoring_algae,
			avg_autonomous, avg_driving_skill, avg_overall,
			climb_none, climb_park, climb_low, climb_mid, climb_high, climb_traversal,
			updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (team_number) DO UPDATE SET
			team_name = CASE WHEN excluded.team_name != '' THEN excluded.team_name ELSE team_stats.team_name END,
			match_count = excluded.match_count,
			avg_defense = excluded.avg_defense,
			avg_avoiding_defense = excluded.avg_avoiding_defense,
			avg_scoring_coral = excluded.avg_scoring_coral,
			avg_scoring_algae = excluded.avg_scoring_algae,
			avg_autonomous = excluded.avg_autonomous,
			avg_driving_skill = excluded.avg_driving_skill,
			avg_overall = excluded.avg_overall,
			climb_none = excluded.climb_none,
			climb_park = excluded.climb_park,
			climb_low = excluded.climb_low,
			climb_mid = excluded.climb_mid,
			climb_high = excluded.climb_high,
			climb_traversal = excluded.climb_traversal,
			updated_at = excluded.updated_at`,
		stats.TeamNumber, stats.TeamName, stats.MatchCount,
		stats.AvgDefense, stats.AvgAvoidingDefense, stats.AvgScoringCoral, stats.AvgScoringAlgae,
		stats.AvgAutonomous, stats.AvgDrivingSkill, stats.AvgOverall,
		stats.ClimbCounts[domain.ClimbNone], stats.ClimbCounts[domain.ClimbPark],
		stats.ClimbCounts[domain.ClimbLow], stats.ClimbCounts[domain.ClimbMid],
		stats.ClimbCounts[domain.ClimbHigh], stats.ClimbCounts[domain.ClimbTraversal],
		stats.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert team stats %s: %w", stats.TeamNumber, err)
	}
	return nil
}

// EnsureTeam creates the zero-default aggregate for a known but unscouted
// team. An existing row is left untouched except for a missing name.
func (r *TeamStatsRepository) EnsureTeam(ctx context.Context, teamNumber, teamName string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO team_stats (team_number, team_name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (team_number) DO UPDATE SET
			team_name = CASE WHEN team_stats.team_name = '' THEN excluded.team_name ELSE team_stats.team_name END`,
		teamNumber, teamName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure team %s: %w", teamNumber, err)
	}
	return nil
}

const statsColumns = `team_number, team_name, match_count,
	avg_defense, avg_avoiding_defense, avg_scoring_coral, avg_scoring_algae,
	avg_autonomous, avg_driving_skill, avg_overall,
	climb_none, climb_park, climb_low, climb_mid, climb_high, climb_traversal,
	updated_at`

func (r *TeamStatsRepository) Get(ctx context.Context, teamNumber string) (*domain.TeamStats, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+statsColumns+` FROM team_stats WHERE team_number = ?`, teamNumber)
	return scanStats(row)
}

func (r *TeamStatsRepository) List(ctx context.Context) ([]domain.TeamStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+statsColumns+` FROM team_stats ORDER BY team_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []domain.TeamStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *stats)
	}
	return all, rows.Err()
}

func scanStats(row scanner) (*domain.TeamStats, error) {
	stats := domain.ZeroStats("", "")
	var none, park, low, mid, high, traversal int

	err := row.Scan(
		&stats.TeamNumber, &stats.TeamName, &stats.MatchCount,
		&stats.AvgDefense, &stats.AvgAvoidingDefense, &stats.AvgScoringCoral, &stats.AvgScoringAlgae,
		&stats.AvgAutonomous, &stats.AvgDrivingSkill, &stats.AvgOverall,
		&none, &park, &low, &mid, &high, &traversal,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	stats.ClimbCounts[domain.ClimbNone] = none
	stats.ClimbCounts[domain.ClimbPark] = park
	stats.ClimbCounts[domain.ClimbLow] = low
	stats.ClimbCounts[domain.ClimbMid] = mid
	stats.ClimbCounts[domain.ClimbHigh] = high
	stats.ClimbCounts[domain.ClimbTraversal] = traversal

	return stats, nil
}
