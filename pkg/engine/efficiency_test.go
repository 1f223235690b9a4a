package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAggregate(teamID string) *TeamGameStats {
	return &TeamGameStats{
		TeamID: teamID, Season: "2024", GameID: SeasonAggregateGameID,
		PassingYards: 2800, RushingYards: 1800, TotalYards: 4600,
		PassingYardsAllowed: 2200, RushingYardsAllowed: 1400,
		PointsScored: 320, PointsAllowed: 210,
		TurnoversForced: 18, TurnoversCommitted: 10,
		Sacks: 25, FieldGoals: 16,
		GamesPlayed: 10,
	}
}

func testBaseline() *OpponentBaseline {
	return &OpponentBaseline{
		TeamID: "opp", Season: "2024", OpponentCount: 4,
		PassingYards: 2500, RushingYards: 1600,
		PassingYardsAllowed: 2400, RushingYardsAllowed: 1600,
		PointsScored: 280, PointsAllowed: 240,
		TurnoversForced: 14, TurnoversCommitted: 14,
		FieldGoals: 14,
		GamesPlayed: 10,
	}
}

func TestCalculateEfficiencySignConventions(t *testing.T) {
	profile, result, err := CalculateEfficiency(testAggregate("psu"), testBaseline())
	require.NoError(t, err)
	require.True(t, result.IsValid())

	// Offense: production above what opponents typically allow is positive.
	// 320/10 scored vs 240/10 typically allowed.
	assert.InDelta(t, 8.0, profile.Value(CategoryScoring), 1e-9)
	// 2800/10 passing vs 2400/10 allowed
	assert.InDelta(t, 40.0, profile.Value(CategoryPassingOffense), 1e-9)
	// 1800/10 rushing vs 1600/10 allowed
	assert.InDelta(t, 20.0, profile.Value(CategoryRushingOffense), 1e-9)

	// Defense: allowing less than opponents typically gain is positive.
	// Opponents gain 2500/10 passing; this team allowed 2200/10.
	assert.InDelta(t, 30.0, profile.Value(CategoryPassingDefense), 1e-9)
	// Opponents gain 1600/10 rushing; this team allowed 1400/10.
	assert.InDelta(t, 20.0, profile.Value(CategoryRushingDefense), 1e-9)

	// Turnover margin: +8/10 per game vs an even opponent margin
	assert.InDelta(t, 0.8, profile.Value(CategoryTurnovers), 1e-9)

	// Special teams: 16/10 field goals vs 14/10 typical
	assert.InDelta(t, 0.2, profile.Value(CategorySpecialTeams), 1e-9)
}

func TestCalculateEfficiencyZeroWhenAverage(t *testing.T) {
	// A team performing exactly at its opponents' baseline scores zero
	// in every category
	team := &TeamGameStats{
		TeamID: "avg", Season: "2024", GameID: SeasonAggregateGameID,
		PassingYards: 2400, RushingYards: 1600, TotalYards: 4000,
		PassingYardsAllowed: 2500, RushingYardsAllowed: 1600,
		PointsScored: 240, PointsAllowed: 280,
		TurnoversForced: 12, TurnoversCommitted: 12,
		FieldGoals:  14,
		GamesPlayed: 10,
	}

	profile, _, err := CalculateEfficiency(team, testBaseline())
	require.NoError(t, err)

	for _, category := range EfficiencyCategories() {
		assert.InDelta(t, 0.0, profile.Value(category), 1e-9, "category %s", category)
	}
}

func TestCalculateEfficiencyExtremeWarning(t *testing.T) {
	team := testAggregate("blowout")
	team.PassingYards = 7000 // 700 per game, absurd
	team.TotalYards = team.PassingYards + team.RushingYards

	_, result, err := CalculateEfficiency(team, testBaseline())
	require.NoError(t, err)

	require.True(t, result.IsValid(), "extreme values warn, they do not error")
	found := false
	for _, w := range result.Warnings {
		if w.Code == CodeExtremeEfficiency {
			found = true
		}
	}
	assert.True(t, found, "expected an extreme-efficiency warning")
}

func TestCalculateEfficiencyNilInputs(t *testing.T) {
	_, _, err := CalculateEfficiency(nil, testBaseline())
	assert.Error(t, err)

	_, _, err = CalculateEfficiency(testAggregate("psu"), nil)
	assert.Error(t, err)
}

func TestStatsValidateYardsReconciliation(t *testing.T) {
	team := testAggregate("psu")
	team.TotalYards = 9999

	result := team.Validate()
	require.False(t, result.IsValid())
	assert.Equal(t, CodeTotalYardsMismatch, result.Errors[0].Code)
}

func TestStatsValidateNegativeCounts(t *testing.T) {
	team := testAggregate("psu")
	team.TurnoversForced = -3

	result := team.Validate()
	assert.False(t, result.IsValid())
}
