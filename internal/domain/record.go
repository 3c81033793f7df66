package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RatingMin = 1
	RatingMax = 7
)

type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

func (s SyncState) Valid() bool {
	switch s {
	case SyncPending, SyncSynced, SyncFailed:
		return true
	}
	return false
}

type MatchType string

const (
	MatchPractice MatchType = "practice"
	MatchQual     MatchType = "qual"
	MatchPlayoff  MatchType = "playoff"
)

type Climb string

const (
	ClimbNone      Climb = "none"
	ClimbPark      Climb = "park"
	ClimbLow       Climb = "low"
	ClimbMid       Climb = "mid"
	ClimbHigh      Climb = "high"
	ClimbTraversal Climb = "traversal"
)

// Climbs lists every climb outcome in display order. The aggregate keeps one
// counter per entry.
var Climbs = []Climb{ClimbNone, ClimbPark, ClimbLow, ClimbMid, ClimbHigh, ClimbTraversal}

func (c Climb) Valid() bool {
	for _, k := range Climbs {
		if c == k {
			return true
		}
	}
	return false
}

var (
	ErrInvalidRecord = errors.New("invalid match record")
)

// RecordKey is the business key of a match observation. Two records sharing a
// key describe the same logical observation regardless of record ID.
type RecordKey struct {
	Team        string    `json:"team"`
	MatchType   MatchType `json:"match_type"`
	MatchNumber int       `json:"match_number"`
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Team, k.MatchType, k.MatchNumber)
}

// Rating is one scored category with its optional comment.
type Rating struct {
	Score   int     `json:"score"`
	Comment Comment `json:"comment"`
}

type MatchRecord struct {
	RecordID    string    `json:"record_id"`
	Team        string    `json:"team"`
	MatchType   MatchType `json:"match_type"`
	MatchNumber int       `json:"match_number"`

	Defense         Rating `json:"defense"`
	AvoidingDefense Rating `json:"avoiding_defense"`
	ScoringCoral    Rating `json:"scoring_coral"`
	ScoringAlgae    Rating `json:"scoring_algae"`
	Autonomous      Rating `json:"autonomous"`
	DrivingSkill    Rating `json:"driving_skill"`
	Overall         Rating `json:"overall"`

	Climb    Climb   `json:"climb"`
	Comments Comment `json:"comments"`

	ScoutedBy    string    `json:"scouted_by"`
	OriginDevice string    `json:"origin_device"`
	SyncState    SyncState `json:"sync_state"`

	// ObservedAt is when the scout submitted the observation. TransmittedAt
	// is set when the record first leaves the device and, when present, takes
	// precedence for conflict resolution.
	ObservedAt    time.Time  `json:"observed_at"`
	TransmittedAt *time.Time `json:"transmitted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *MatchRecord) Key() RecordKey {
	return RecordKey{Team: r.Team, MatchType: r.MatchType, MatchNumber: r.MatchNumber}
}

// EffectiveTimestamp is the instant used by last-writer-wins comparison.
func (r *MatchRecord) EffectiveTimestamp() time.Time {
	if r.TransmittedAt != nil && !r.TransmittedAt.IsZero() {
		return *r.TransmittedAt
	}
	return r.ObservedAt
}

// Ratings returns the scored categories keyed by their canonical names.
func (r *MatchRecord) Ratings() map[string]Rating {
	return map[string]Rating{
		CategoryDefense:         r.Defense,
		CategoryAvoidingDefense: r.AvoidingDefense,
		CategoryScoringCoral:    r.ScoringCoral,
		CategoryScoringAlgae:    r.ScoringAlgae,
		CategoryAutonomous:      r.Autonomous,
		CategoryDrivingSkill:    r.DrivingSkill,
		CategoryOverall:         r.Overall,
	}
}

const (
	CategoryDefense         = "defense"
	CategoryAvoidingDefense = "avoiding_defense"
	CategoryScoringCoral    = "scoring_coral"
	CategoryScoringAlgae    = "scoring_algae"
	CategoryAutonomous      = "autonomous"
	CategoryDrivingSkill    = "driving_skill"
	CategoryOverall         = "overall"
)

// Categories lists the rating categories in display order.
var Categories = []string{
	CategoryDefense,
	CategoryAvoidingDefense,
	CategoryScoringCoral,
	CategoryScoringAlgae,
	CategoryAutonomous,
	CategoryDrivingSkill,
	CategoryOverall,
}

// Validate checks the whole payload. A record failing validation must be
// rejected whole; callers never apply it partially.
func (r *MatchRecord) Validate() error {
	if strings.TrimSpace(r.Team) == "" {
		return fmt.Errorf("%w: team is required", ErrInvalidRecord)
	}
	switch r.MatchType {
	case MatchPractice, MatchQual, MatchPlayoff:
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRecord, r.MatchType)
	}
	if r.MatchNumber < 1 {
		return fmt.Errorf("%w: match number %d out of range", ErrInvalidRecord, r.MatchNumber)
	}
	for _, name := range Categories {
		score := r.Ratings()[name].Score
		if score < RatingMin || score > RatingMax {
			return fmt.Errorf("%w: %s score %d out of range [%d,%d]", ErrInvalidRecord, name, score, RatingMin, RatingMax)
		}
	}
	if !r.Climb.Valid() {
		return fmt.Errorf("%w: unknown climb outcome %q", ErrInvalidRecord, r.Climb)
	}
	if r.SyncState != "" && !r.SyncState.Valid() {
		return fmt.Errorf("%w: unknown sync state %q", ErrInvalidRecord, r.SyncState)
	}
	if r.ObservedAt.IsZero() {
		return fmt.Errorf("%w: observed_at is required", ErrInvalidRecord)
	}
	return nil
}
