package resolver

import (
	"testing"
	"time"

	"scout-sync/internal/domain"
	"scout-sync/internal/testutil"

	"github.com/rs/zerolog"
)

func newResolver() *Resolver {
	return New(zerolog.Nop())
}

func recordAt(overall int, observed time.Time, state domain.SyncState) *domain.MatchRecord {
	rec := testutil.Record("rec-local", "254", 3, 4, observed)
	rec.Overall.Score = overall
	rec.SyncState = state
	return &rec
}

func TestResolveNoExisting(t *testing.T) {
	r := newResolver()
	incoming := recordAt(5, time.Unix(1000, 0), domain.SyncSynced)

	res := r.Resolve(nil, incoming)
	if res.Action != ActionInsert {
		t.Fatalf("action = %v, want insert", res.Action)
	}
	if res.Winner.Overall.Score != 5 {
		t.Fatal("winner must be the incoming record")
	}
}

func TestResolveNewerIncomingWins(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(1000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(2000, 0), domain.SyncSynced)
	incoming.RecordID = "rec-server"

	res := r.Resolve(existing, incoming)
	if res.Action != ActionOverwrite {
		t.Fatalf("action = %v, want overwrite", res.Action)
	}
	if res.Winner.Overall.Score != 7 {
		t.Fatalf("overall = %d, want 7", res.Winner.Overall.Score)
	}
	if res.Winner.SyncState != domain.SyncSynced {
		t.Fatal("server-confirmed record must upgrade local state to synced")
	}
	if res.Winner.RecordID != "rec-local" {
		t.Fatal("winner must keep the locally canonical record ID")
	}
}

func TestResolveNewerIncomingInheritsLocalState(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(1000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(2000, 0), domain.SyncPending)

	res := r.Resolve(existing, incoming)
	if res.Action != ActionOverwrite {
		t.Fatalf("action = %v, want overwrite", res.Action)
	}
	if res.Winner.SyncState != domain.SyncPending {
		t.Fatal("non-synced incoming must inherit the existing sync state")
	}
}

func TestResolveStaleIncomingDiscarded(t *testing.T) {
	r := newResolver()
	existing := recordAt(7, time.Unix(2000, 0), domain.SyncSynced)
	incoming := recordAt(5, time.Unix(1000, 0), domain.SyncSynced)

	res := r.Resolve(existing, incoming)
	if res.Action != ActionKeep {
		t.Fatalf("action = %v, want keep", res.Action)
	}
	if res.Winner.Overall.Score != 7 {
		t.Fatal("existing record must survive")
	}
}

// Merging in either order must settle on the later record.
func TestResolveConvergesEitherOrder(t *testing.T) {
	r := newResolver()
	early := recordAt(5, time.Unix(1000, 0), domain.SyncSynced)
	late := recordAt(7, time.Unix(2000, 0), domain.SyncSynced)

	first := r.Resolve(early, late)
	if first.Winner.Overall.Score != 7 {
		t.Fatal("early-then-late must settle on the later record")
	}
	second := r.Resolve(late, early)
	if second.Winner.Overall.Score != 7 {
		t.Fatal("late-then-early must settle on the later record")
	}
}

func TestResolveTieKeepsExisting(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(1000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(1000, 0), domain.SyncSynced)

	res := r.Resolve(existing, incoming)
	if res.Action != ActionKeep {
		t.Fatalf("action = %v, want keep on timestamp tie", res.Action)
	}
	if res.Winner.SyncState != domain.SyncPending {
		t.Fatal("a timestamp tie must not flip the existing sync state")
	}
	if res.Winner.Overall.Score != 5 {
		t.Fatal("a timestamp tie must keep the existing payload")
	}
}

func TestResolvePrefersTransmitTime(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(3000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(1000, 0), domain.SyncSynced)
	transmitted := time.Unix(4000, 0)
	incoming.TransmittedAt = &transmitted

	res := r.Resolve(existing, incoming)
	if res.Action != ActionOverwrite {
		t.Fatal("transmit time must take precedence over the observation time")
	}
}

func TestResolveRejectsMalformed(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(1000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(2000, 0), domain.SyncSynced)
	incoming.Defense.Score = 99

	res := r.Resolve(existing, incoming)
	if res.Action != ActionReject {
		t.Fatalf("action = %v, want reject for malformed payload", res.Action)
	}
	if res.Winner != nil {
		t.Fatal("a rejected record must not produce a winner")
	}
	// existing is untouched
	if existing.Overall.Score != 5 || existing.SyncState != domain.SyncPending {
		t.Fatal("rejection must not partially overwrite the existing record")
	}
}

func TestResolveForcedServerWins(t *testing.T) {
	r := newResolver()
	existing := recordAt(7, time.Unix(9000, 0), domain.SyncPending)
	incoming := recordAt(3, time.Unix(1000, 0), domain.SyncPending)
	incoming.RecordID = "rec-server"

	res := r.ResolveForced(existing, incoming)
	if res.Action != ActionOverwrite {
		t.Fatalf("action = %v, want overwrite", res.Action)
	}
	if res.Winner.Overall.Score != 3 {
		t.Fatal("forced sync must overwrite regardless of timestamps")
	}
	if res.Winner.SyncState != domain.SyncSynced {
		t.Fatal("forced winner must be marked synced")
	}
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	r := newResolver()
	existing := recordAt(5, time.Unix(1000, 0), domain.SyncPending)
	incoming := recordAt(7, time.Unix(2000, 0), domain.SyncPending)
	incoming.RecordID = "rec-server"

	_ = r.Resolve(existing, incoming)
	if incoming.RecordID != "rec-server" || incoming.SyncState != domain.SyncPending {
		t.Fatal("resolver must not mutate the incoming record")
	}
}
