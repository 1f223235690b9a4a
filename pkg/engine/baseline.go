package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData is returned when a calculation has no records to work on
var ErrInsufficientData = errors.New("insufficient data")

var _ Persistable = (*OpponentBaseline)(nil)

// OpponentBaseline holds, per team per season, the average of what that
// team's opponents typically allow/force against other opponents.
// Each averaged field is sum(category)/opponentCount exactly.
type OpponentBaseline struct {
	TeamID string `json:"teamId" column:"team_id" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Season string `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`

	OpponentCount int `json:"opponentCount" column:"opponent_count" dbtype:"INTEGER DEFAULT 0"`

	// What opponents typically gain
	PassingYards float64 `json:"passingYards" column:"passing_yards" dbtype:"REAL DEFAULT 0.0"`
	RushingYards float64 `json:"rushingYards" column:"rushing_yards" dbtype:"REAL DEFAULT 0.0"`
	PointsScored float64 `json:"pointsScored" column:"points_scored" dbtype:"REAL DEFAULT 0.0"`

	// What opponents typically allow
	PassingYardsAllowed float64 `json:"passingYardsAllowed" column:"passing_yards_allowed" dbtype:"REAL DEFAULT 0.0"`
	RushingYardsAllowed float64 `json:"rushingYardsAllowed" column:"rushing_yards_allowed" dbtype:"REAL DEFAULT 0.0"`
	PointsAllowed       float64 `json:"pointsAllowed" column:"points_allowed" dbtype:"REAL DEFAULT 0.0"`

	// What opponents typically force/commit
	TurnoversForced    float64 `json:"turnoversForced" column:"turnovers_forced" dbtype:"REAL DEFAULT 0.0"`
	TurnoversCommitted float64 `json:"turnoversCommitted" column:"turnovers_committed" dbtype:"REAL DEFAULT 0.0"`
	FieldGoals         float64 `json:"fieldGoals" column:"field_goals" dbtype:"REAL DEFAULT 0.0"`

	// Mean games played across the averaged opponent records, used to put
	// baseline values on a per-game basis
	GamesPlayed float64 `json:"gamesPlayed" column:"games_played" dbtype:"REAL DEFAULT 1.0"`

	CreatedAt time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// GetTableName returns the table name for opponent baselines
func (b *OpponentBaseline) GetTableName() string {
	return "opponent_baselines"
}

// GetPrimaryKey returns the compound primary key as a map
func (b *OpponentBaseline) GetPrimaryKey() map[string]any {
	return map[string]any{
		"team_id": b.TeamID,
		"season":  b.Season,
	}
}

// BeforeSave sets timestamps
func (b *OpponentBaseline) BeforeSave() error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	return nil
}

// PerGame divides a baseline value by the mean opponent games played
func (b *OpponentBaseline) PerGame(value float64) float64 {
	games := b.GamesPlayed
	if games == 0 {
		games = GetMakeSensibleDefault()
	}
	return value / games
}

// CalculateOpponentBaseline computes the arithmetic mean of each statistical
// category across the given opponent records. The caller persists the result.
// An empty opponent list yields ErrInsufficientData rather than a division by
// zero.
func CalculateOpponentBaseline(teamID, season string, opponents []*TeamGameStats) (*OpponentBaseline, error) {
	if len(opponents) == 0 {
		return nil, fmt.Errorf("%w: team %s has no opponent records for season %s", ErrInsufficientData, teamID, season)
	}

	baseline := &OpponentBaseline{
		TeamID:        teamID,
		Season:        season,
		OpponentCount: len(opponents),
	}

	for _, opp := range opponents {
		baseline.PassingYards += opp.PassingYards
		baseline.RushingYards += opp.RushingYards
		baseline.PointsScored += opp.PointsScored
		baseline.PassingYardsAllowed += opp.PassingYardsAllowed
		baseline.RushingYardsAllowed += opp.RushingYardsAllowed
		baseline.PointsAllowed += opp.PointsAllowed
		baseline.TurnoversForced += opp.TurnoversForced
		baseline.TurnoversCommitted += opp.TurnoversCommitted
		baseline.FieldGoals += opp.FieldGoals
		baseline.GamesPlayed += float64(opp.GamesPlayed)
	}

	count := float64(len(opponents))
	baseline.PassingYards /= count
	baseline.RushingYards /= count
	baseline.PointsScored /= count
	baseline.PassingYardsAllowed /= count
	baseline.RushingYardsAllowed /= count
	baseline.PointsAllowed /= count
	baseline.TurnoversForced /= count
	baseline.TurnoversCommitted /= count
	baseline.FieldGoals /= count
	baseline.GamesPlayed /= count

	return baseline, nil
}
