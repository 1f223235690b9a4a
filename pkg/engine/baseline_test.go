package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateOpponentBaselineAverages(t *testing.T) {
	opponents := []*TeamGameStats{
		{TeamID: "osu", Season: "2024", GameID: SeasonAggregateGameID,
			PassingYards: 3100, RushingYards: 2000, PointsScored: 400,
			PassingYardsAllowed: 2200, RushingYardsAllowed: 1500, PointsAllowed: 250,
			TurnoversForced: 20, TurnoversCommitted: 12, FieldGoals: 18, GamesPlayed: 10},
		{TeamID: "mich", Season: "2024", GameID: SeasonAggregateGameID,
			PassingYards: 2900, RushingYards: 2400, PointsScored: 380,
			PassingYardsAllowed: 1800, RushingYardsAllowed: 1300, PointsAllowed: 210,
			TurnoversForced: 24, TurnoversCommitted: 10, FieldGoals: 22, GamesPlayed: 10},
	}

	baseline, err := CalculateOpponentBaseline("psu", "2024", opponents)
	require.NoError(t, err)

	assert.Equal(t, "psu", baseline.TeamID)
	assert.Equal(t, 2, baseline.OpponentCount)
	assert.InDelta(t, 3000.0, baseline.PassingYards, 1e-9)
	assert.InDelta(t, 2200.0, baseline.RushingYards, 1e-9)
	assert.InDelta(t, 2000.0, baseline.PassingYardsAllowed, 1e-9)
	assert.InDelta(t, 230.0, baseline.PointsAllowed, 1e-9)
	assert.InDelta(t, 22.0, baseline.TurnoversForced, 1e-9)
	assert.InDelta(t, 10.0, baseline.GamesPlayed, 1e-9)
}

func TestCalculateOpponentBaselineSingleOpponent(t *testing.T) {
	opponents := []*TeamGameStats{
		{TeamID: "osu", Season: "2024", GameID: SeasonAggregateGameID,
			PassingYards: 3100, PointsAllowed: 250, GamesPlayed: 10},
	}

	baseline, err := CalculateOpponentBaseline("psu", "2024", opponents)
	require.NoError(t, err)

	// One opponent: the baseline is that opponent's own figures
	assert.InDelta(t, 3100.0, baseline.PassingYards, 1e-9)
	assert.InDelta(t, 250.0, baseline.PointsAllowed, 1e-9)
}

func TestCalculateOpponentBaselineNoOpponents(t *testing.T) {
	_, err := CalculateOpponentBaseline("psu", "2024", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CalculateOpponentBaseline("psu", "2024", []*TeamGameStats{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestBaselinePerGame(t *testing.T) {
	baseline := &OpponentBaseline{PointsAllowed: 230, GamesPlayed: 10}
	assert.InDelta(t, 23.0, baseline.PerGame(baseline.PointsAllowed), 1e-9)

	// Zero games falls back to a sane divisor rather than dividing by zero
	empty := &OpponentBaseline{PointsAllowed: 24}
	assert.InDelta(t, 24.0, empty.PerGame(empty.PointsAllowed), 1e-9)
}
