package resolver

import (
	"scout-sync/internal/domain"

	"github.com/rs/zerolog"
)

// Action says what the caller should do with the incoming record.
type Action int

const (
	// ActionInsert accepts the incoming record as a new observation.
	ActionInsert Action = iota
	// ActionOverwrite replaces the existing record with the merged winner.
	ActionOverwrite
	// ActionKeep discards the incoming record; the local copy stands.
	ActionKeep
	// ActionReject discards the incoming record because it failed validation.
	ActionReject
)

// Resolution is the outcome of one merge decision. Winner is the surviving
// version; it is nil only for ActionReject.
type Resolution struct {
	Action Action
	Winner *domain.MatchRecord
	Reason string
}

// Resolver decides between two versions of the same logical observation
// using last-writer-wins on the effective timestamp. It is pure: no I/O, no
// mutation of its inputs.
type Resolver struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve reconciles an incoming record against the local copy sharing its
// business key (existing may be nil).
//
// A strictly newer incoming record wins but inherits the local sync state
// unless the incoming copy is itself marked synced: a record confirmed by
// the server always upgrades local state. Equal timestamps keep the local
// copy untouched so replayed snapshots never flip state.
func (r *Resolver) Resolve(existing, incoming *domain.MatchRecord) Resolution {
	if err := incoming.Validate(); err != nil {
		r.logger.Warn().Err(err).Str("record_id", incoming.RecordID).Msg("rejecting malformed incoming record")
		return Resolution{Action: ActionReject, Reason: err.Error()}
	}

	if existing == nil {
		winner := cloneRecord(incoming)
		if winner.SyncState == "" {
			winner.SyncState = domain.SyncSynced
		}
		return Resolution{Action: ActionInsert, Winner: winner, Reason: "no local copy"}
	}

	incomingTS := incoming.EffectiveTimestamp()
	existingTS := existing.EffectiveTimestamp()

	if incomingTS.After(existingTS) {
		winner := cloneRecord(incoming)
		// Keep the canonical ID the store already knows this observation by.
		winner.RecordID = existing.RecordID
		if incoming.SyncState != domain.SyncSynced {
			winner.SyncState = existing.SyncState
		}
		return Resolution{Action: ActionOverwrite, Winner: winner, Reason: "incoming is newer"}
	}

	if incomingTS.Equal(existingTS) {
		r.logger.Debug().
			Str("key", existing.Key().String()).
			Time("timestamp", existingTS).
			Msg("timestamp tie, keeping local copy")
		return Resolution{Action: ActionKeep, Winner: existing, Reason: "timestamp tie"}
	}

	return Resolution{Action: ActionKeep, Winner: existing, Reason: "incoming is stale"}
}

// ResolveForced applies the force-sync rule: the server copy wins
// unconditionally, sync state included.
func (r *Resolver) ResolveForced(existing, incoming *domain.MatchRecord) Resolution {
	if err := incoming.Validate(); err != nil {
		r.logger.Warn().Err(err).Str("record_id", incoming.RecordID).Msg("rejecting malformed forced record")
		return Resolution{Action: ActionReject, Reason: err.Error()}
	}

	winner := cloneRecord(incoming)
	winner.SyncState = domain.SyncSynced
	if existing == nil {
		return Resolution{Action: ActionInsert, Winner: winner, Reason: "forced"}
	}
	winner.RecordID = existing.RecordID
	return Resolution{Action: ActionOverwrite, Winner: winner, Reason: "forced"}
}

func cloneRecord(rec *domain.MatchRecord) *domain.MatchRecord {
	clone := *rec
	if rec.TransmittedAt != nil {
		t := *rec.TransmittedAt
		clone.TransmittedAt = &t
	}
	return &clone
}
