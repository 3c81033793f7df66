package domain

import (
	"testing"
	"time"
)

func validRecord() MatchRecord {
	rating := Rating{Score: 4}
	return MatchRecord{
		RecordID:        "rec-1",
		Team:            "254",
		MatchType:       MatchQual,
		MatchNumber:     3,
		Defense:         rating,
		AvoidingDefense: rating,
		ScoringCoral:    rating,
		ScoringAlgae:    rating,
		Autonomous:      rating,
		DrivingSkill:    rating,
		Overall:         rating,
		Climb:           ClimbLow,
		SyncState:       SyncPending,
		ObservedAt:      time.Unix(1000, 0),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchRecord)
		wantErr bool
	}{
		{"valid", func(r *MatchRecord) {}, false},
		{"empty team", func(r *MatchRecord) { r.Team = "  " }, true},
		{"bad match type", func(r *MatchRecord) { r.MatchType = "scrimmage" }, true},
		{"zero match number", func(r *MatchRecord) { r.MatchNumber = 0 }, true},
		{"rating too low", func(r *MatchRecord) { r.Defense.Score = 0 }, true},
		{"rating too high", func(r *MatchRecord) { r.Overall.Score = 8 }, true},
		{"bad climb", func(r *MatchRecord) { r.Climb = "hover" }, true},
		{"bad sync state", func(r *MatchRecord) { r.SyncState = "maybe" }, true},
		{"empty sync state allowed", func(r *MatchRecord) { r.SyncState = "" }, false},
		{"missing observed_at", func(r *MatchRecord) { r.ObservedAt = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveTimestamp(t *testing.T) {
	rec := validRecord()
	if got := rec.EffectiveTimestamp(); !got.Equal(rec.ObservedAt) {
		t.Fatalf("expected observed timestamp, got %v", got)
	}

	transmitted := time.Unix(2000, 0)
	rec.TransmittedAt = &transmitted
	if got := rec.EffectiveTimestamp(); !got.Equal(transmitted) {
		t.Fatalf("expected transmit timestamp, got %v", got)
	}
}

func TestRecordKey(t *testing.T) {
	a := validRecord()
	b := validRecord()
	b.RecordID = "rec-2"
	if a.Key() != b.Key() {
		t.Fatal("records differing only in ID must share a business key")
	}

	b.MatchNumber = 4
	if a.Key() == b.Key() {
		t.Fatal("different match numbers must produce different keys")
	}
}

func TestNormalizeComment(t *testing.T) {
	if c := NormalizeComment(nil); c.Set {
		t.Fatal("nil input must be unset")
	}
	empty := "   "
	if c := NormalizeComment(&empty); c.Set {
		t.Fatal("whitespace input must be unset")
	}
	text := " strong defense "
	c := NormalizeComment(&text)
	if !c.Set || c.Text != "strong defense" {
		t.Fatalf("unexpected comment %+v", c)
	}
}

func TestCommentJSON(t *testing.T) {
	c := NewComment("solid auto")
	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"solid auto"` {
		t.Fatalf("unexpected JSON %s", data)
	}

	var unset Comment
	data, err = unset.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Fatalf("unset comment must marshal to null, got %s", data)
	}

	var decoded Comment
	if err := decoded.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatal(err)
	}
	if decoded.Set {
		t.Fatal("null must decode as unset")
	}
	if err := decoded.UnmarshalJSON([]byte(`""`)); err != nil {
		t.Fatal(err)
	}
	if decoded.Set {
		t.Fatal("empty string must decode as unset")
	}
}
