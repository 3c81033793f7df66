package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scout-sync/internal/constants"
	"scout-sync/internal/domain"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("record not found")

type RecordRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRecordRepository(sqlDB *sql.DB, logger zerolog.Logger) *RecordRepository {
	return &RecordRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const recordColumns = `record_id, team, match_type, match_number,
	defense, defense_comment, avoiding_defense, avoiding_defense_comment,
	scoring_coral, scoring_coral_comment, scoring_algae, scoring_algae_comment,
	autonomous, autonomous_comment, driving_skill, driving_skill_comment,
	overall, overall_comment, climb, comments, scouted_by, origin_device,
	sync_state, observed_at, transmitted_at, created_at, updated_at`

const upsertRecordSQL = `INSERT INTO match_records (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (record_id) DO UPDATE SET
		team = excluded.team,
		match_type = excluded.match_type,
		match_number = excluded.match_number,
		defense = excluded.defense,
		defense_comment = excluded.defense_comment,
		avoiding_defense = excluded.avoiding_defense,
		avoiding_defense_comment = excluded.avoiding_defense_comment,
		scoring_coral = excluded.scoring_coral,
		scoring_coral_comment = excluded.scoring_coral_comment,
		scoring_algae = excluded.scoring_algae,
		scoring_algae_comment = excluded.scoring_algae_comment,
		autonomous = excluded.autonomous,
		autonomous_comment = excluded.autonomous_comment,
		driving_skill = excluded.driving_skill,
		driving_skill_comment = excluded.driving_skill_comment,
		overall = excluded.overall,
		overall_comment = excluded.overall_comment,
		climb = excluded.climb,
		comments = excluded.comments,
		scouted_by = excluded.scouted_by,
		origin_device = excluded.origin_device,
		sync_state = excluded.sync_state,
		observed_at = excluded.observed_at,
		transmitted_at = excluded.transmitted_at,
		updated_at = excluded.updated_at`

func recordArgs(rec *domain.MatchRecord) []any {
	return []any{
		rec.RecordID, rec.Team, string(rec.MatchType), rec.MatchNumber,
		rec.Defense.Score, commentArg(rec.Defense.Comment),
		rec.AvoidingDefense.Score, commentArg(rec.AvoidingDefense.Comment),
		rec.ScoringCoral.Score, commentArg(rec.ScoringCoral.Comment),
		rec.ScoringAlgae.Score, commentArg(rec.ScoringAlgae.Comment),
		rec.Autonomous.Score, commentArg(rec.Autonomous.Comment),
		rec.DrivingSkill.Score, commentArg(rec.DrivingSkill.Comment),
		rec.Overall.Score, commentArg(rec.Overall.Comment),
		string(rec.Climb), commentArg(rec.Comments),
		rec.ScoutedBy, rec.OriginDevice, string(rec.SyncState),
		rec.ObservedAt, timeArg(rec.TransmittedAt), rec.CreatedAt, rec.UpdatedAt,
	}
}

func commentArg(c domain.Comment) any {
	if !c.Set {
		return nil
	}
	return c.Text
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Put inserts or overwrites a record by its canonical ID. Records arriving
// from peer devices already carry a server-assigned ID and land here too.
func (r *RecordRepository) Put(ctx context.Context, rec *domain.MatchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, upsertRecordSQL, recordArgs(rec)...); err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.RecordID, err)
	}
	return nil
}

// PutBatch applies a set of records in one transaction, batched to keep
// statements bounded.
func (r *RecordRepository) PutBatch(ctx context.Context, records []domain.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(records); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(records) {
			end = len(records)
		}

		for j := range records[i:end] {
			rec := &records[i+j]
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = time.Now().UTC()
			}
			rec.UpdatedAt = time.Now().UTC()
			if _, err := tx.ExecContext(ctx, upsertRecordSQL, recordArgs(rec)...); err != nil {
				return fmt.Errorf("failed to upsert record %s: %w", rec.RecordID, err)
			}
		}
	}

	return tx.Commit()
}

func (r *RecordRepository) GetByID(ctx context.Context, recordID string) (*domain.MatchRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM match_records WHERE record_id = ?`, recordID)
	return scanRecord(row)
}

// GetByKey looks a record up by its business key; used for de-duplication of
// records arriving from other devices.
func (r *RecordRepository) GetByKey(ctx context.Context, key domain.RecordKey) (*domain.MatchRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM match_records WHERE team = ? AND match_type = ? AND match_number = ?`,
		key.Team, string(key.MatchType), key.MatchNumber)
	return scanRecord(row)
}

func (r *RecordRepository) ListByTeam(ctx context.Context, team string) ([]domain.MatchRecord, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM match_records WHERE team = ? ORDER BY match_type, match_number`, team)
}

func (r *RecordRepository) ListBySyncState(ctx context.Context, state domain.SyncState) ([]domain.MatchRecord, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM match_records WHERE sync_state = ? ORDER BY observed_at`, string(state))
}

func (r *RecordRepository) ListAll(ctx context.Context) ([]domain.MatchRecord, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM match_records ORDER BY team, match_type, match_number`)
}

func (r *RecordRepository) Delete(ctx context.Context, recordID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM match_records WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", recordID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RecordRepository) SetSyncState(ctx context.Context, recordID string, state domain.SyncState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_records SET sync_state = ?, updated_at = ? WHERE record_id = ?`,
		string(state), time.Now().UTC(), recordID)
	if err != nil {
		return fmt.Errorf("failed to set sync state for %s: %w", recordID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RecordRepository) list(ctx context.Context, query string, args ...any) ([]domain.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.MatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.MatchRecord, error) {
	var (
		rec           domain.MatchRecord
		matchType     string
		climb         string
		syncState     string
		transmittedAt sql.NullTime
		comments      = make([]sql.NullString, 8)
	)

	err := row.Scan(
		&rec.RecordID, &rec.Team, &matchType, &rec.MatchNumber,
		&rec.Defense.Score, &comments[0],
		&rec.AvoidingDefense.Score, &comments[1],
		&rec.ScoringCoral.Score, &comments[2],
		&rec.ScoringAlgae.Score, &comments[3],
		&rec.Autonomous.Score, &comments[4],
		&rec.DrivingSkill.Score, &comments[5],
		&rec.Overall.Score, &comments[6],
		&climb, &comments[7],
		&rec.ScoutedBy, &rec.OriginDevice, &syncState,
		&rec.ObservedAt, &transmittedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.MatchType = domain.MatchType(matchType)
	rec.Climb = domain.Climb(climb)
	rec.SyncState = domain.SyncState(syncState)
	if transmittedAt.Valid {
		t := transmittedAt.Time
		rec.TransmittedAt = &t
	}

	rec.Defense.Comment = nullComment(comments[0])
	rec.AvoidingDefense.Comment = nullComment(comments[1])
	rec.ScoringCoral.Comment = nullComment(comments[2])
	rec.ScoringAlgae.Comment = nullComment(comments[3])
	rec.Autonomous.Comment = nullComment(comments[4])
	rec.DrivingSkill.Comment = nullComment(comments[5])
	rec.Overall.Comment = nullComment(comments[6])
	rec.Comments = nullComment(comments[7])

	return &rec, nil
}

func nullComment(s sql.NullString) domain.Comment {
	if !s.Valid {
		return domain.Comment{}
	}
	return domain.NormalizeComment(&s.String)
}
