package engine

import (
	"fmt"
	"math"
)

// EfficiencyProfile maps categories to signed opponent-relative efficiency
// values. Positive always means better than what the opponent typically
// allows or forces. Values are derived; they are recomputed whenever new
// game data lands, never mutated in place.
type EfficiencyProfile struct {
	TeamID string             `json:"teamId"`
	Season string             `json:"season"`
	Values map[string]float64 `json:"values"`
}

// Value returns the efficiency for a category, zero if absent
func (p *EfficiencyProfile) Value(category string) float64 {
	return p.Values[category]
}

// defensiveCategories invert the subtraction so positive stays "better"
var defensiveCategories = map[string]bool{
	CategoryPassingDefense: true,
	CategoryRushingDefense: true,
}

// IsDefensiveCategory reports whether the category uses the inverted
// (baseline minus actual-allowed) sign convention
func IsDefensiveCategory(category string) bool {
	return defensiveCategories[category]
}

// CalculateEfficiency computes a team's relative efficiency per category
// against the opponent's baseline (not the team's own). All comparisons are
// made on a per-game basis so values land in the nominal [-50, +50] range.
//
// Offensive categories: efficiency = team value - what the opponent typically allows.
// Defensive categories: efficiency = what opponents typically gain - team value allowed.
//
// The function is a pure function of its two inputs. Any single value whose
// magnitude exceeds the extreme threshold yields a warning, not an error.
func CalculateEfficiency(team *TeamGameStats, opponentBaseline *OpponentBaseline) (*EfficiencyProfile, *ValidationResult, error) {
	if team == nil || opponentBaseline == nil {
		return nil, nil, fmt.Errorf("must pass non-nil team statistics and opponent baseline")
	}

	result := team.Validate()

	profile := &EfficiencyProfile{
		TeamID: team.TeamID,
		Season: team.Season,
		Values: map[string]float64{},
	}

	// Offense: team production per game vs what the opponent allows per game
	profile.Values[CategoryScoring] = team.PerGame(team.PointsScored) - opponentBaseline.PerGame(opponentBaseline.PointsAllowed)
	profile.Values[CategoryPassingOffense] = team.PerGame(team.PassingYards) - opponentBaseline.PerGame(opponentBaseline.PassingYardsAllowed)
	profile.Values[CategoryRushingOffense] = team.PerGame(team.RushingYards) - opponentBaseline.PerGame(opponentBaseline.RushingYardsAllowed)

	// Defense: what the opponent typically gains per game vs what this team allowed
	profile.Values[CategoryPassingDefense] = opponentBaseline.PerGame(opponentBaseline.PassingYards) - team.PerGame(team.PassingYardsAllowed)
	profile.Values[CategoryRushingDefense] = opponentBaseline.PerGame(opponentBaseline.RushingYards) - team.PerGame(team.RushingYardsAllowed)

	// Turnover margin: what this team forces vs what the opponent typically commits
	profile.Values[CategoryTurnovers] = team.PerGame(team.TurnoversForced-team.TurnoversCommitted) -
		opponentBaseline.PerGame(opponentBaseline.TurnoversCommitted-opponentBaseline.TurnoversForced)

	// Special teams: field goal production vs what opponents typically make
	profile.Values[CategorySpecialTeams] = team.PerGame(team.FieldGoals) - opponentBaseline.PerGame(opponentBaseline.FieldGoals)

	for category, value := range profile.Values {
		if math.Abs(value) > Config.ExtremeEfficiencyThreshold {
			result.AddWarning(CodeExtremeEfficiency,
				"verify the underlying statistics for data entry errors",
				"team %s %s efficiency %.2f is statistically extreme (|v| > %.0f)",
				team.TeamID, category, value, Config.ExtremeEfficiencyThreshold)
		}
	}

	return profile, result, nil
}
