package domain

import "time"

// TeamStats is fully derived from the team's current record set. Only the
// identity fields survive a recompute; everything else is replaced.
type TeamStats struct {
	TeamNumber string `json:"team_number"`
	TeamName   string `json:"team_name"`

	MatchCount int `json:"match_count"`

	AvgDefense         float64 `json:"avg_defense"`
	AvgAvoidingDefense float64 `json:"avg_avoiding_defense"`
	AvgScoringCoral    float64 `json:"avg_scoring_coral"`
	AvgScoringAlgae    float64 `json:"avg_scoring_algae"`
	AvgAutonomous      float64 `json:"avg_autonomous"`
	AvgDrivingSkill    float64 `json:"avg_driving_skill"`
	AvgOverall         float64 `json:"avg_overall"`

	ClimbCounts map[Climb]int `json:"climb_counts"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ZeroStats returns the default aggregate for a known but unscouted team.
func ZeroStats(teamNumber, teamName string) *TeamStats {
	counts := make(map[Climb]int, len(Climbs))
	for _, c := range Climbs {
		counts[c] = 0
	}
	return &TeamStats{
		TeamNumber:  teamNumber,
		TeamName:    teamName,
		ClimbCounts: counts,
	}
}

// Mean returns the aggregate's mean for a named category.
func (s *TeamStats) Mean(category string) float64 {
	switch category {
	case CategoryDefense:
		return s.AvgDefense
	case CategoryAvoidingDefense:
		return s.AvgAvoidingDefense
	case CategoryScoringCoral:
		return s.AvgScoringCoral
	case CategoryScoringAlgae:
		return s.AvgScoringAlgae
	case CategoryAutonomous:
		return s.AvgAutonomous
	case CategoryDrivingSkill:
		return s.AvgDrivingSkill
	case CategoryOverall:
		return s.AvgOverall
	}
	return 0
}

func (s *TeamStats) setMean(category string, mean float64) {
	switch category {
	case CategoryDefense:
		s.AvgDefense = mean
	case CategoryAvoidingDefense:
		s.AvgAvoidingDefense = mean
	case CategoryScoringCoral:
		s.AvgScoringCoral = mean
	case CategoryScoringAlgae:
		s.AvgScoringAlgae = mean
	case CategoryAutonomous:
		s.AvgAutonomous = mean
	case CategoryDrivingSkill:
		s.AvgDrivingSkill = mean
	case CategoryOverall:
		s.AvgOverall = mean
	}
}

// ComputeStats derives the aggregate for a team from scratch. It never
// updates incrementally; the full record set is the only input.
func ComputeStats(teamNumber, teamName string, records []MatchRecord) *TeamStats {
	stats := ZeroStats(teamNumber, teamName)
	stats.MatchCount = len(records)
	stats.UpdatedAt = time.Now().UTC()
	if len(records) == 0 {
		return stats
	}

	sums := make(map[string]int, len(Categories))
	for _, rec := range records {
		for name, rating := range rec.Ratings() {
			sums[name] += rating.Score
		}
		stats.ClimbCounts[rec.Climb]++
	}
	for _, name := range Categories {
		stats.setMean(name, float64(sums[name])/float64(len(records)))
	}
	return stats
}
