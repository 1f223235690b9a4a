package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIngestor delivers a canned season batch
type fakeIngestor struct {
	stats []*TeamGameStats
	games []*Game
	err   error
}

func (f *fakeIngestor) SeasonStatistics(season string) ([]*TeamGameStats, []*Game, error) {
	return f.stats, f.games, f.err
}

func TestIngestSeasonSkipsInvalidRows(t *testing.T) {
	setupTestDB(t)

	good := testAggregate("psu")
	bad := testAggregate("corrupt")
	bad.TotalYards = 9999 // fails yardage reconciliation

	ingestor := &fakeIngestor{
		stats: []*TeamGameStats{good, bad},
		games: []*Game{{
			GameID: "g1", Season: "2024", Week: 1,
			HomeTeamID: "psu", AwayTeamID: "rutgers",
			HomePoints: 31, AwayPoints: 13, Completed: true,
		}},
	}

	require.NoError(t, IngestSeason(ingestor, "2024"))

	// The valid row landed
	agg, err := LoadSeasonAggregate("psu", "2024")
	require.NoError(t, err)
	assert.InDelta(t, 2800.0, agg.PassingYards, 1e-9)

	// The corrupt row was skipped, not persisted
	_, err = LoadSeasonAggregate("corrupt", "2024")
	assert.ErrorIs(t, err, ErrInsufficientData)

	games, err := LoadSeasonGames("2024")
	require.NoError(t, err)
	assert.Len(t, games, 1)
}

func TestIngestSeasonPropagatesSourceFailure(t *testing.T) {
	setupTestDB(t)

	ingestor := &fakeIngestor{err: assert.AnError}
	assert.Error(t, IngestSeason(ingestor, "2024"))
}

func TestLoadOpponentAggregatesFromSchedule(t *testing.T) {
	setupTestDB(t)
	seedMatchupFixture(t)

	opponents, err := LoadOpponentAggregates("psu", "2024")
	require.NoError(t, err)
	require.Len(t, opponents, 2)

	ids := map[string]bool{}
	for _, opp := range opponents {
		ids[opp.TeamID] = true
	}
	assert.True(t, ids["osu"])
	assert.True(t, ids["mich"])
}

func TestLoadOpponentAggregatesIgnoresUnplayedGames(t *testing.T) {
	setupTestDB(t)
	seedMatchupFixture(t)

	// Future game: scheduled but not completed
	require.NoError(t, Save(&Game{
		GameID: "future", Season: "2024", Week: 10,
		HomeTeamID: "psu", AwayTeamID: "rutgers",
		HomePoints: -1, AwayPoints: -1, Completed: false,
	}))

	opponents, err := LoadOpponentAggregates("psu", "2024")
	require.NoError(t, err)
	assert.Len(t, opponents, 2, "unplayed opponents do not enter the baseline")
}

func TestBuildTeamBaselinePersists(t *testing.T) {
	setupTestDB(t)
	seedMatchupFixture(t)

	baseline, err := BuildTeamBaseline("psu", "2024")
	require.NoError(t, err)
	assert.Equal(t, 2, baseline.OpponentCount)

	stored := &OpponentBaseline{TeamID: "psu", Season: "2024"}
	require.NoError(t, FindByPrimaryKey(stored, stored.GetPrimaryKey()))
	assert.InDelta(t, baseline.PointsAllowed, stored.PointsAllowed, 1e-6)
}

func TestBuildSeasonObservationsAlignment(t *testing.T) {
	setupTestDB(t)
	seedFullSeason(t)

	observations, err := BuildSeasonObservations("2024")
	require.NoError(t, err)

	// 15 completed games, two observations each
	for _, metric := range EfficiencyCategories() {
		assert.Len(t, observations[metric], 30, "metric %s", metric)
	}

	// Index i pairs the same game and team across metrics: the response
	// variable must agree everywhere
	for i := range observations[CategoryScoring] {
		y := observations[CategoryScoring][i].Y
		for _, metric := range EfficiencyCategories() {
			assert.Equal(t, y, observations[metric][i].Y, "metric %s index %d", metric, i)
		}
	}
}
