package engine

import (
	"math"
	"time"
)

// Fixed prediction category schema. Weight sets and efficiency profiles are
// keyed by these names; anything else is rejected.
const (
	CategoryScoring        = "scoring"
	CategoryPassingOffense = "passing_offense"
	CategoryPassingDefense = "passing_defense"
	CategoryRushingOffense = "rushing_offense"
	CategoryRushingDefense = "rushing_defense"
	CategoryTurnovers      = "turnovers"
	CategorySpecialTeams   = "special_teams"
	CategoryHomeField      = "home_field"
)

// WeightCategories returns the fixed category schema in canonical order
func WeightCategories() []string {
	return []string{
		CategoryScoring,
		CategoryPassingOffense,
		CategoryPassingDefense,
		CategoryRushingOffense,
		CategoryRushingDefense,
		CategoryTurnovers,
		CategorySpecialTeams,
		CategoryHomeField,
	}
}

// EfficiencyCategories returns the categories that carry an opponent-adjusted
// efficiency signal. Home field is a static edge, not an efficiency.
func EfficiencyCategories() []string {
	return []string{
		CategoryScoring,
		CategoryPassingOffense,
		CategoryPassingDefense,
		CategoryRushingOffense,
		CategoryRushingDefense,
		CategoryTurnovers,
		CategorySpecialTeams,
	}
}

// IsKnownCategory reports whether name is part of the fixed category schema
func IsKnownCategory(name string) bool {
	for _, c := range WeightCategories() {
		if c == name {
			return true
		}
	}
	return false
}

// SeasonAggregateGameID is the game_id used for a team's season-aggregate row
const SeasonAggregateGameID = "season"

// Compile-time checks that persisted types implement Persistable
var (
	_ Persistable = (*TeamGameStats)(nil)
	_ Persistable = (*Game)(nil)
)

// TeamGameStats holds a team's raw statistics, either for one completed game
// or as a running season aggregate (GameID == SeasonAggregateGameID).
// Yardage totals must reconcile: TotalYards == PassingYards + RushingYards.
type TeamGameStats struct {
	TeamID string `json:"teamId" column:"team_id" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Season string `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	GameID string `json:"gameId" column:"game_id" dbtype:"TEXT NOT NULL" primary:"true"`

	PassingYards        float64 `json:"passingYards" column:"passing_yards" dbtype:"REAL DEFAULT 0.0"`
	PassingYardsAllowed float64 `json:"passingYardsAllowed" column:"passing_yards_allowed" dbtype:"REAL DEFAULT 0.0"`
	RushingYards        float64 `json:"rushingYards" column:"rushing_yards" dbtype:"REAL DEFAULT 0.0"`
	RushingYardsAllowed float64 `json:"rushingYardsAllowed" column:"rushing_yards_allowed" dbtype:"REAL DEFAULT 0.0"`
	TotalYards          float64 `json:"totalYards" column:"total_yards" dbtype:"REAL DEFAULT 0.0"`
	TotalYardsAllowed   float64 `json:"totalYardsAllowed" column:"total_yards_allowed" dbtype:"REAL DEFAULT 0.0"`

	PointsScored  float64 `json:"pointsScored" column:"points_scored" dbtype:"REAL DEFAULT 0.0"`
	PointsAllowed float64 `json:"pointsAllowed" column:"points_allowed" dbtype:"REAL DEFAULT 0.0"`

	TurnoversForced    float64 `json:"turnoversForced" column:"turnovers_forced" dbtype:"REAL DEFAULT 0.0"`
	TurnoversCommitted float64 `json:"turnoversCommitted" column:"turnovers_committed" dbtype:"REAL DEFAULT 0.0"`

	Sacks      float64 `json:"sacks" column:"sacks" dbtype:"REAL DEFAULT 0.0"`
	FieldGoals float64 `json:"fieldGoals" column:"field_goals" dbtype:"REAL DEFAULT 0.0"`

	GamesPlayed int `json:"gamesPlayed" column:"games_played" dbtype:"INTEGER DEFAULT 1"`

	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// GetTableName returns the table name for team statistics
func (ts *TeamGameStats) GetTableName() string {
	return "team_game_stats"
}

// GetPrimaryKey returns the compound primary key as a map
func (ts *TeamGameStats) GetPrimaryKey() map[string]any {
	return map[string]any{
		"team_id": ts.TeamID,
		"season":  ts.Season,
		"game_id": ts.GameID,
	}
}

// BeforeSave reconciles derived totals and timestamps
func (ts *TeamGameStats) BeforeSave() error {
	if ts.TotalYards == 0 {
		ts.TotalYards = ts.PassingYards + ts.RushingYards
	}
	if ts.TotalYardsAllowed == 0 {
		ts.TotalYardsAllowed = ts.PassingYardsAllowed + ts.RushingYardsAllowed
	}

	now := time.Now()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
	return nil
}

// IsSeasonAggregate reports whether this row is a season aggregate
func (ts *TeamGameStats) IsSeasonAggregate() bool {
	return ts.GameID == SeasonAggregateGameID
}

// yardsTolerance for the total-yards reconciliation invariant
const yardsTolerance = 1.0

// Validate checks the raw-statistics invariants: yardage reconciliation,
// non-negative counts and at least one game played for aggregates.
func (ts *TeamGameStats) Validate() *ValidationResult {
	result := NewValidationResult()

	if math.Abs(ts.TotalYards-(ts.PassingYards+ts.RushingYards)) > yardsTolerance {
		result.AddError(CodeTotalYardsMismatch, "TeamGameStats", SeverityHigh,
			"team %s: total yards %.1f does not equal passing %.1f + rushing %.1f",
			ts.TeamID, ts.TotalYards, ts.PassingYards, ts.RushingYards)
	}

	counts := map[string]float64{
		"passingYards":        ts.PassingYards,
		"passingYardsAllowed": ts.PassingYardsAllowed,
		"rushingYards":        ts.RushingYards,
		"rushingYardsAllowed": ts.RushingYardsAllowed,
		"pointsScored":        ts.PointsScored,
		"pointsAllowed":       ts.PointsAllowed,
		"turnoversForced":     ts.TurnoversForced,
		"turnoversCommitted":  ts.TurnoversCommitted,
		"sacks":               ts.Sacks,
		"fieldGoals":          ts.FieldGoals,
	}
	for name, v := range counts {
		if v < 0 {
			result.AddError(CodeMissingStatistics, "TeamGameStats", SeverityHigh,
				"team %s: %s must not be negative, got %.1f", ts.TeamID, name, v)
		}
	}

	if ts.IsSeasonAggregate() && ts.GamesPlayed < 1 {
		result.AddError(CodeInsufficientData, "TeamGameStats", SeverityCritical,
			"team %s: season aggregate requires gamesPlayed >= 1, got %d", ts.TeamID, ts.GamesPlayed)
	}

	return result
}

// PerGame returns a per-game view of a season aggregate. Single-game rows
// are returned unchanged.
func (ts *TeamGameStats) PerGame(value float64) float64 {
	games := float64(ts.GamesPlayed)
	if games == 0 {
		games = GetMakeSensibleDefault()
	}
	return value / games
}

// Game records one scheduled or completed matchup. The schedule drives the
// opponent relationships behind baselines and regression observations.
type Game struct {
	GameID     string `json:"gameId" column:"game_id" dbtype:"TEXT NOT NULL" primary:"true"`
	Season     string `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Week       int    `json:"week" column:"week" dbtype:"INTEGER DEFAULT 0"`
	HomeTeamID string `json:"homeTeamId" column:"home_team_id" dbtype:"TEXT NOT NULL" index:"true"`
	AwayTeamID string `json:"awayTeamId" column:"away_team_id" dbtype:"TEXT NOT NULL" index:"true"`

	HomePoints float64 `json:"homePoints" column:"home_points" dbtype:"REAL DEFAULT -1"`
	AwayPoints float64 `json:"awayPoints" column:"away_points" dbtype:"REAL DEFAULT -1"`
	Completed  bool    `json:"completed" column:"completed" dbtype:"INTEGER DEFAULT 0"`

	// Graded prediction fields, filled in after kickoff for accuracy tracking
	PredictedHomeScore float64 `json:"predictedHomeScore" column:"predicted_home_score" dbtype:"REAL DEFAULT -1"`
	PredictedAwayScore float64 `json:"predictedAwayScore" column:"predicted_away_score" dbtype:"REAL DEFAULT -1"`

	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// GetTableName returns the table name for games
func (g *Game) GetTableName() string {
	return "games"
}

// GetPrimaryKey returns the compound primary key as a map
func (g *Game) GetPrimaryKey() map[string]any {
	return map[string]any{
		"game_id": g.GameID,
		"season":  g.Season,
	}
}

// BeforeSave sets timestamps
func (g *Game) BeforeSave() error {
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	return nil
}

// HasBeenPlayed reports whether a final score is recorded
func (g *Game) HasBeenPlayed() bool {
	return g.Completed && g.HomePoints >= 0 && g.AwayPoints >= 0
}

// Opponent returns the other side of the matchup, or "" if teamID did not play
func (g *Game) Opponent(teamID string) string {
	switch teamID {
	case g.HomeTeamID:
		return g.AwayTeamID
	case g.AwayTeamID:
		return g.HomeTeamID
	}
	return ""
}

// PointsFor returns the points teamID scored in this game
func (g *Game) PointsFor(teamID string) float64 {
	if teamID == g.HomeTeamID {
		return g.HomePoints
	}
	return g.AwayPoints
}
