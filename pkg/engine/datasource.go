package engine

import (
	"fmt"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
)

// StatsIngestor is the boundary with the external sports-data collaborator.
// Implementations deliver season aggregates and the season schedule; the
// engine never fetches raw statistics itself.
type StatsIngestor interface {
	SeasonStatistics(season string) ([]*TeamGameStats, []*Game, error)
}

// IngestSeason validates and persists a batch delivered by the ingestion
// collaborator. Rows failing the raw-statistics invariants are skipped with
// a warning so one bad record cannot poison the season.
func IngestSeason(ingestor StatsIngestor, season string) error {
	season, err := ParseSeason(season)
	if err != nil {
		return err
	}

	stats, games, err := ingestor.SeasonStatistics(season)
	if err != nil {
		return fmt.Errorf("ingestion failed for season %s: %w", season, err)
	}

	var rows []Persistable
	for _, ts := range stats {
		if result := ts.Validate(); !result.IsValid() {
			logger.Warn("Skipping invalid statistics row", ts.TeamID, result.FirstError())
			continue
		}
		rows = append(rows, ts)
	}
	for _, g := range games {
		rows = append(rows, g)
	}

	if err := BulkSave(rows); err != nil {
		return fmt.Errorf("failed to persist season %s batch: %w", season, err)
	}

	logger.Info("Ingested season batch", season, "stats rows", len(stats), "games", len(games))
	return nil
}

// LoadSeasonAggregate returns a team's season-aggregate statistics row
func LoadSeasonAggregate(teamID, season string) (*TeamGameStats, error) {
	results, err := FindWhere(&TeamGameStats{}, "team_id = ? AND season = ? AND game_id = ?",
		teamID, season, SeasonAggregateGameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregate for team %s season %s: %w", teamID, season, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no season aggregate for team %s in season %s", ErrInsufficientData, teamID, season)
	}
	ts, ok := results[0].(*TeamGameStats)
	if !ok {
		return nil, fmt.Errorf("unexpected type in aggregate results for team %s", teamID)
	}
	return ts, nil
}

// LoadSeasonGames returns every game on the season schedule
func LoadSeasonGames(season string) ([]*Game, error) {
	results, err := FindWhere(&Game{}, "season = ? ORDER BY week, game_id", season)
	if err != nil {
		return nil, fmt.Errorf("failed to load games for season %s: %w", season, err)
	}

	games := make([]*Game, 0, len(results))
	for _, r := range results {
		if g, ok := r.(*Game); ok {
			games = append(games, g)
		}
	}
	return games, nil
}

// LoadOpponentAggregates returns the season aggregates of every opponent the
// given team has faced, derived from the completed schedule
func LoadOpponentAggregates(teamID, season string) ([]*TeamGameStats, error) {
	games, err := LoadSeasonGames(season)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var opponents []*TeamGameStats
	for _, g := range games {
		if !g.HasBeenPlayed() {
			continue
		}
		opponentID := g.Opponent(teamID)
		if opponentID == "" || seen[opponentID] {
			continue
		}
		seen[opponentID] = true

		agg, err := LoadSeasonAggregate(opponentID, season)
		if err != nil {
			logger.Warn("No season aggregate for opponent", opponentID, err)
			continue
		}
		opponents = append(opponents, agg)
	}

	return opponents, nil
}

// BuildTeamBaseline computes and persists the opponent baseline for one team
func BuildTeamBaseline(teamID, season string) (*OpponentBaseline, error) {
	opponents, err := LoadOpponentAggregates(teamID, season)
	if err != nil {
		return nil, err
	}

	baseline, err := CalculateOpponentBaseline(teamID, season, opponents)
	if err != nil {
		return nil, err
	}

	if err := Save(baseline); err != nil {
		return nil, fmt.Errorf("failed to persist baseline for team %s: %w", teamID, err)
	}

	return baseline, nil
}

// BuildSeasonObservations walks the season's completed games and pairs each
// team's efficiency values (season aggregate vs that game's opponent
// baseline) with the points the team actually scored in the game. Index i
// refers to the same (game, team) pair in every metric's slice.
func BuildSeasonObservations(season string) (MetricObservations, error) {
	games, err := LoadSeasonGames(season)
	if err != nil {
		return nil, err
	}

	observations := MetricObservations{}
	aggregates := map[string]*TeamGameStats{}
	baselines := map[string]*OpponentBaseline{}

	loadAggregate := func(teamID string) *TeamGameStats {
		if agg, ok := aggregates[teamID]; ok {
			return agg
		}
		agg, err := LoadSeasonAggregate(teamID, season)
		if err != nil {
			aggregates[teamID] = nil
			return nil
		}
		aggregates[teamID] = agg
		return agg
	}

	loadBaseline := func(teamID string) *OpponentBaseline {
		if b, ok := baselines[teamID]; ok {
			return b
		}
		opponents, err := LoadOpponentAggregates(teamID, season)
		if err != nil {
			baselines[teamID] = nil
			return nil
		}
		b, err := CalculateOpponentBaseline(teamID, season, opponents)
		if err != nil {
			baselines[teamID] = nil
			return nil
		}
		baselines[teamID] = b
		return b
	}

	for _, g := range games {
		if !g.HasBeenPlayed() {
			continue
		}

		for _, teamID := range []string{g.HomeTeamID, g.AwayTeamID} {
			team := loadAggregate(teamID)
			opponentBaseline := loadBaseline(g.Opponent(teamID))
			if team == nil || opponentBaseline == nil {
				continue
			}

			profile, _, err := CalculateEfficiency(team, opponentBaseline)
			if err != nil {
				continue
			}

			points := g.PointsFor(teamID)
			for _, metric := range EfficiencyCategories() {
				observations[metric] = append(observations[metric], Observation{
					X: profile.Value(metric),
					Y: points,
				})
			}
		}
	}

	return observations, nil
}
