// Package testutil provides shared test fixtures: an in-memory SQLite store
// running the real migrations, and valid record builders.
package testutil

import (
	"database/sql"
	"testing"
	"time"

	"scout-sync/internal/database"
	"scout-sync/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// NewDB opens an in-memory SQLite database with the embedded migrations
// applied. It is torn down with the test.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// One connection only: every :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	if err := database.Migrate(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// Record builds a valid match record with every rating set to score and the
// given observation time.
func Record(id, team string, matchNumber, score int, observedAt time.Time) domain.MatchRecord {
	rating := domain.Rating{Score: score}
	return domain.MatchRecord{
		RecordID:        id,
		Team:            team,
		MatchType:       domain.MatchQual,
		MatchNumber:     matchNumber,
		Defense:         rating,
		AvoidingDefense: rating,
		ScoringCoral:    rating,
		ScoringAlgae:    rating,
		Autonomous:      rating,
		DrivingSkill:    rating,
		Overall:         rating,
		Climb:           domain.ClimbNone,
		ScoutedBy:       "tester",
		SyncState:       domain.SyncPending,
		ObservedAt:      observedAt,
	}
}
