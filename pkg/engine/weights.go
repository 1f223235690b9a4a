package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
)

// ErrWeightsRejected is returned when a weight update fails validation; the
// previous weights remain authoritative and no partial mutation occurs
var ErrWeightsRejected = errors.New("weight update rejected")

// PredictionWeights is the authoritative weight set for one season.
// Values are keyed by the fixed category schema and are never negative.
type PredictionWeights struct {
	Season    string             `json:"season"`
	Version   int                `json:"version"`
	Values    map[string]float64 `json:"values"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Sum returns the total of all weights
func (w *PredictionWeights) Sum() float64 {
	var total float64
	for _, v := range w.Values {
		total += v
	}
	return total
}

// Clone returns a deep copy so callers can't mutate shared state
func (w *PredictionWeights) Clone() *PredictionWeights {
	values := make(map[string]float64, len(w.Values))
	for k, v := range w.Values {
		values[k] = v
	}
	return &PredictionWeights{
		Season:    w.Season,
		Version:   w.Version,
		Values:    values,
		UpdatedAt: w.UpdatedAt,
	}
}

var _ Persistable = (*WeightChangeEntry)(nil)

// WeightChangeEntry is one immutable, append-only history row. The previous
// and new weight snapshots are stored as structured per-category decimal
// string columns, not an opaque blob, so history remains inspectable without
// re-parsing free-form text. Floating values round-trip through fixed
// precision decimal strings to avoid serialization surprises.
type WeightChangeEntry struct {
	Season  string `json:"season" column:"season" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Version int    `json:"version" column:"version" dbtype:"INTEGER NOT NULL" primary:"true"`

	Timestamp time.Time `json:"timestamp" column:"timestamp" dbtype:"DATETIME NOT NULL"`
	Reason    string    `json:"reason" column:"reason" dbtype:"TEXT NOT NULL"`
	ActorID   string    `json:"actorId,omitempty" column:"actor_id" dbtype:"TEXT DEFAULT ''"`
	Manual    bool      `json:"manual" column:"manual" dbtype:"INTEGER DEFAULT 0"`

	// Previous snapshot, decimal strings, one column per category
	PrevScoring        string `json:"prevScoring" column:"prev_scoring" dbtype:"TEXT DEFAULT ''"`
	PrevPassingOffense string `json:"prevPassingOffense" column:"prev_passing_offense" dbtype:"TEXT DEFAULT ''"`
	PrevPassingDefense string `json:"prevPassingDefense" column:"prev_passing_defense" dbtype:"TEXT DEFAULT ''"`
	PrevRushingOffense string `json:"prevRushingOffense" column:"prev_rushing_offense" dbtype:"TEXT DEFAULT ''"`
	PrevRushingDefense string `json:"prevRushingDefense" column:"prev_rushing_defense" dbtype:"TEXT DEFAULT ''"`
	PrevTurnovers      string `json:"prevTurnovers" column:"prev_turnovers" dbtype:"TEXT DEFAULT ''"`
	PrevSpecialTeams   string `json:"prevSpecialTeams" column:"prev_special_teams" dbtype:"TEXT DEFAULT ''"`
	PrevHomeField      string `json:"prevHomeField" column:"prev_home_field" dbtype:"TEXT DEFAULT ''"`

	// New snapshot, decimal strings, one column per category
	NewScoring        string `json:"newScoring" column:"new_scoring" dbtype:"TEXT NOT NULL"`
	NewPassingOffense string `json:"newPassingOffense" column:"new_passing_offense" dbtype:"TEXT NOT NULL"`
	NewPassingDefense string `json:"newPassingDefense" column:"new_passing_defense" dbtype:"TEXT NOT NULL"`
	NewRushingOffense string `json:"newRushingOffense" column:"new_rushing_offense" dbtype:"TEXT NOT NULL"`
	NewRushingDefense string `json:"newRushingDefense" column:"new_rushing_defense" dbtype:"TEXT NOT NULL"`
	NewTurnovers      string `json:"newTurnovers" column:"new_turnovers" dbtype:"TEXT NOT NULL"`
	NewSpecialTeams   string `json:"newSpecialTeams" column:"new_special_teams" dbtype:"TEXT NOT NULL"`
	NewHomeField      string `json:"newHomeField" column:"new_home_field" dbtype:"TEXT NOT NULL"`

	// Regression metrics behind the change; zero/empty when set manually
	RSquared           float64 `json:"rSquared" column:"r_squared" dbtype:"REAL DEFAULT 0.0"`
	SampleSize         int     `json:"sampleSize" column:"sample_size" dbtype:"INTEGER DEFAULT 0"`
	SignificantMetrics string  `json:"significantMetrics" column:"significant_metrics" dbtype:"TEXT DEFAULT ''"`
}

// GetTableName returns the table name for weight history
func (e *WeightChangeEntry) GetTableName() string {
	return "weight_change_log"
}

// GetPrimaryKey returns the compound primary key as a map
func (e *WeightChangeEntry) GetPrimaryKey() map[string]any {
	return map[string]any{
		"season":  e.Season,
		"version": e.Version,
	}
}

// BeforeSave stamps the entry time
func (e *WeightChangeEntry) BeforeSave() error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return nil
}

// weightPrecision is the fixed decimal precision for persisted weights
const weightPrecision = 6

// formatWeight renders a weight as a decimal string for persistence
func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', weightPrecision, 64)
}

// parseWeight reads a persisted decimal string back into a float
func parseWeight(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logger.Warn("Unparseable persisted weight", s, err)
		return 0
	}
	return v
}

// setNewSnapshot writes a weight map into the entry's new-snapshot columns
func (e *WeightChangeEntry) setNewSnapshot(values map[string]float64) {
	e.NewScoring = formatWeight(values[CategoryScoring])
	e.NewPassingOffense = formatWeight(values[CategoryPassingOffense])
	e.NewPassingDefense = formatWeight(values[CategoryPassingDefense])
	e.NewRushingOffense = formatWeight(values[CategoryRushingOffense])
	e.NewRushingDefense = formatWeight(values[CategoryRushingDefense])
	e.NewTurnovers = formatWeight(values[CategoryTurnovers])
	e.NewSpecialTeams = formatWeight(values[CategorySpecialTeams])
	e.NewHomeField = formatWeight(values[CategoryHomeField])
}

// setPrevSnapshot writes a weight map into the entry's previous-snapshot columns
func (e *WeightChangeEntry) setPrevSnapshot(values map[string]float64) {
	e.PrevScoring = formatWeight(values[CategoryScoring])
	e.PrevPassingOffense = formatWeight(values[CategoryPassingOffense])
	e.PrevPassingDefense = formatWeight(values[CategoryPassingDefense])
	e.PrevRushingOffense = formatWeight(values[CategoryRushingOffense])
	e.PrevRushingDefense = formatWeight(values[CategoryRushingDefense])
	e.PrevTurnovers = formatWeight(values[CategoryTurnovers])
	e.PrevSpecialTeams = formatWeight(values[CategorySpecialTeams])
	e.PrevHomeField = formatWeight(values[CategoryHomeField])
}

// NewWeights reads the entry's new-snapshot columns into a weight map
func (e *WeightChangeEntry) NewWeights() map[string]float64 {
	return map[string]float64{
		CategoryScoring:        parseWeight(e.NewScoring),
		CategoryPassingOffense: parseWeight(e.NewPassingOffense),
		CategoryPassingDefense: parseWeight(e.NewPassingDefense),
		CategoryRushingOffense: parseWeight(e.NewRushingOffense),
		CategoryRushingDefense: parseWeight(e.NewRushingDefense),
		CategoryTurnovers:      parseWeight(e.NewTurnovers),
		CategorySpecialTeams:   parseWeight(e.NewSpecialTeams),
		CategoryHomeField:      parseWeight(e.NewHomeField),
	}
}

// PreviousWeights reads the entry's previous-snapshot columns into a weight map
func (e *WeightChangeEntry) PreviousWeights() map[string]float64 {
	return map[string]float64{
		CategoryScoring:        parseWeight(e.PrevScoring),
		CategoryPassingOffense: parseWeight(e.PrevPassingOffense),
		CategoryPassingDefense: parseWeight(e.PrevPassingDefense),
		CategoryRushingOffense: parseWeight(e.PrevRushingOffense),
		CategoryRushingDefense: parseWeight(e.PrevRushingDefense),
		CategoryTurnovers:      parseWeight(e.PrevTurnovers),
		CategorySpecialTeams:   parseWeight(e.PrevSpecialTeams),
		CategoryHomeField:      parseWeight(e.PrevHomeField),
	}
}

// WeightManager owns the authoritative current weights per season and all
// transitions between weight sets. Current state is derived entirely from the
// append-only change log, so every append is atomic by construction; there is
// no ambient in-memory weight set to drift out of sync. Writers for the same
// season are serialized; different seasons proceed in parallel.
type WeightManager struct {
	mu          sync.Mutex
	seasonLocks map[string]*sync.Mutex
}

// NewWeightManager returns a ready weight manager
func NewWeightManager() *WeightManager {
	return &WeightManager{
		seasonLocks: map[string]*sync.Mutex{},
	}
}

// lockSeason returns the per-season writer lock, creating it on first use
func (m *WeightManager) lockSeason(season string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.seasonLocks[season]
	if !ok {
		lock = &sync.Mutex{}
		m.seasonLocks[season] = lock
	}
	return lock
}

// GetCurrentWeights returns the most recent persisted weights for the season,
// initializing the season with the static fallback set if none exist yet.
func (m *WeightManager) GetCurrentWeights(season string) (*PredictionWeights, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	latest, err := m.latestEntry(season)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		lock := m.lockSeason(season)
		lock.Lock()
		defer lock.Unlock()

		// Re-check under the lock; another writer may have initialized
		latest, err = m.latestEntry(season)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			latest, err = m.appendEntry(season, nil, FallbackWeights(),
				"initialized with fallback weights", "", false, nil)
			if err != nil {
				return nil, err
			}
		}
	}

	return &PredictionWeights{
		Season:    season,
		Version:   latest.Version,
		Values:    latest.NewWeights(),
		UpdatedAt: latest.Timestamp,
	}, nil
}

// latestEntry returns the newest history row for the season, or nil
func (m *WeightManager) latestEntry(season string) (*WeightChangeEntry, error) {
	results, err := FindWhere(&WeightChangeEntry{}, "season = ? ORDER BY version DESC LIMIT 1", season)
	if err != nil {
		return nil, fmt.Errorf("failed to load current weights for season %s: %w", season, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	entry, ok := results[0].(*WeightChangeEntry)
	if !ok {
		return nil, fmt.Errorf("unexpected type in weight history results for season %s", season)
	}
	return entry, nil
}

// appendEntry writes one history row carrying the new authoritative weights.
// Must be called with the season lock held (or during init where no
// concurrent writer exists).
func (m *WeightManager) appendEntry(season string, previous map[string]float64, next map[string]float64,
	reason, actorID string, manual bool, analysis *RegressionAnalysis) (*WeightChangeEntry, error) {

	latest, err := m.latestEntry(season)
	if err != nil {
		return nil, err
	}

	version := 1
	if latest != nil {
		version = latest.Version + 1
	}

	entry := &WeightChangeEntry{
		Season:  season,
		Version: version,
		Reason:  reason,
		ActorID: actorID,
		Manual:  manual,
	}
	if previous != nil {
		entry.setPrevSnapshot(previous)
	}
	entry.setNewSnapshot(next)

	if analysis != nil {
		entry.RSquared = analysis.OverallRSquared
		entry.SampleSize = analysis.SampleSize
		entry.SignificantMetrics = strings.Join(analysis.SignificantMetrics(), ",")
	}

	if err := Save(entry); err != nil {
		return nil, fmt.Errorf("failed to persist weight change for season %s: %w", season, err)
	}

	logger.Info("Weight change recorded", season, "version", version, "reason", reason)
	return entry, nil
}

// ValidateWeights rejects (does not normalize) any set containing a
// non-numeric or negative weight, an unknown category, or a zero total sum.
// Weights above the plausibility ceiling draw warnings.
func ValidateWeights(values map[string]float64) *ValidationResult {
	result := NewValidationResult()

	if len(values) == 0 {
		result.AddError(CodeZeroSumWeights, "WeightManager", SeverityCritical, "weight set is empty")
		return result
	}

	var sum float64
	for category, v := range values {
		if !IsKnownCategory(category) {
			result.AddError(CodeUnknownCategory, "WeightManager", SeverityHigh,
				"category %q is not part of the fixed schema", category)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			result.AddError(CodeNonNumericWeight, "WeightManager", SeverityCritical,
				"weight for %s is not a finite number", category)
			continue
		}
		if v < 0 {
			result.AddError(CodeNegativeWeight, "WeightManager", SeverityHigh,
				"weight for %s is negative: %f", category, v)
			continue
		}
		if v > Config.MaxPlausibleWeight {
			result.AddWarning(CodeImplausibleWeight,
				"confirm the regression output; weights above 2.0 dominate every other signal",
				"weight for %s is implausibly large: %.3f", category, v)
		}
		sum += v
	}

	if result.IsValid() && sum == 0 {
		result.AddError(CodeZeroSumWeights, "WeightManager", SeverityCritical,
			"weight sum is exactly zero, nothing to normalize")
	}

	return result
}

// NormalizeWeights proportionally rescales a valid weight set whose sum falls
// outside the tolerance band so the new sum equals the configured target.
// Returns the (possibly rescaled) values and whether rescaling happened.
func NormalizeWeights(values map[string]float64) (map[string]float64, bool) {
	var sum float64
	for _, v := range values {
		sum += v
	}

	target := Config.WeightNormalizationTarget
	if math.Abs(sum-target) <= Config.WeightNormalizationTolerance {
		return values, false
	}

	factor := target / sum
	normalized := make(map[string]float64, len(values))
	for k, v := range values {
		normalized[k] = v * factor
	}
	return normalized, true
}

// UpdateFromRegression maps regression-derived metric weights onto the fixed
// category schema, validates and normalizes them, and appends a history entry
// atomically. The static home-field weight is carried over unchanged; it is
// never regression-derived.
func (m *WeightManager) UpdateFromRegression(season string, analysis *RegressionAnalysis, actorID string) (*PredictionWeights, *ValidationResult, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, nil, err
	}
	if analysis == nil {
		return nil, nil, fmt.Errorf("must pass a regression analysis")
	}

	current, err := m.GetCurrentWeights(season)
	if err != nil {
		return nil, nil, err
	}

	lock := m.lockSeason(season)
	lock.Lock()
	defer lock.Unlock()

	// Start from the current set so metrics the regression could not fit
	// keep their existing weights
	next := make(map[string]float64, len(current.Values))
	for k, v := range current.Values {
		next[k] = v
	}
	for _, r := range analysis.Results {
		if IsKnownCategory(r.Metric) {
			next[r.Metric] = r.DerivedWeight
		}
	}
	next[CategoryHomeField] = current.Values[CategoryHomeField]

	validation := ValidateWeights(next)
	if !validation.IsValid() {
		return nil, validation, fmt.Errorf("%w: %v", ErrWeightsRejected, validation.FirstError())
	}

	normalized, rescaled := NormalizeWeights(next)
	if rescaled {
		validation.AddWarning(CodeWeightsNormalized, "",
			"weights rescaled proportionally to target sum %.2f", Config.WeightNormalizationTarget)
	}

	reason := fmt.Sprintf("regression update: overall R² %.3f over %d observations",
		analysis.OverallRSquared, analysis.SampleSize)
	entry, err := m.appendEntry(season, current.Values, normalized, reason, actorID, false, analysis)
	if err != nil {
		return nil, validation, err
	}

	return &PredictionWeights{
		Season:    season,
		Version:   entry.Version,
		Values:    entry.NewWeights(),
		UpdatedAt: entry.Timestamp,
	}, validation, nil
}

// UpdateManually merges partial updates onto the current weights, validates
// the merged result and logs the change. A reason string is mandatory.
// Validation failure leaves the current weights untouched.
func (m *WeightManager) UpdateManually(season string, partial map[string]float64, reason, actorID string) (*PredictionWeights, *ValidationResult, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, nil, fmt.Errorf("%w: a reason is required for manual weight changes", ErrWeightsRejected)
	}
	if len(partial) == 0 {
		return nil, nil, fmt.Errorf("%w: no weight changes supplied", ErrWeightsRejected)
	}

	current, err := m.GetCurrentWeights(season)
	if err != nil {
		return nil, nil, err
	}

	lock := m.lockSeason(season)
	lock.Lock()
	defer lock.Unlock()

	// Reject unknown keys before touching anything
	validation := NewValidationResult()
	for category := range partial {
		if !IsKnownCategory(category) {
			validation.AddError(CodeUnknownCategory, "WeightManager", SeverityHigh,
				"category %q is not part of the fixed schema", category)
		}
	}
	if !validation.IsValid() {
		return nil, validation, fmt.Errorf("%w: %v", ErrWeightsRejected, validation.FirstError())
	}

	next := make(map[string]float64, len(current.Values))
	for k, v := range current.Values {
		next[k] = v
	}
	for k, v := range partial {
		next[k] = v
	}

	merged := ValidateWeights(next)
	validation.Merge(merged)
	if !validation.IsValid() {
		return nil, validation, fmt.Errorf("%w: %v", ErrWeightsRejected, validation.FirstError())
	}

	normalized, rescaled := NormalizeWeights(next)
	if rescaled {
		validation.AddWarning(CodeWeightsNormalized, "",
			"weights rescaled proportionally to target sum %.2f", Config.WeightNormalizationTarget)
	}

	entry, err := m.appendEntry(season, current.Values, normalized, reason, actorID, true, nil)
	if err != nil {
		return nil, validation, err
	}

	return &PredictionWeights{
		Season:    season,
		Version:   entry.Version,
		Values:    entry.NewWeights(),
		UpdatedAt: entry.Timestamp,
	}, validation, nil
}

// ResetToFallback writes the static fallback weights as a new history entry
func (m *WeightManager) ResetToFallback(season, reason, actorID string) (*PredictionWeights, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "reset to fallback weights"
	}

	current, err := m.GetCurrentWeights(season)
	if err != nil {
		return nil, err
	}

	lock := m.lockSeason(season)
	lock.Lock()
	defer lock.Unlock()

	entry, err := m.appendEntry(season, current.Values, FallbackWeights(), reason, actorID, true, nil)
	if err != nil {
		return nil, err
	}

	return &PredictionWeights{
		Season:    season,
		Version:   entry.Version,
		Values:    entry.NewWeights(),
		UpdatedAt: entry.Timestamp,
	}, nil
}

// GetWeightHistory returns history entries for the season, newest first.
// limit <= 0 returns the full history.
func (m *WeightManager) GetWeightHistory(season string, limit int) ([]*WeightChangeEntry, error) {
	season, err := ParseSeason(season)
	if err != nil {
		return nil, err
	}

	where := "season = ? ORDER BY version DESC"
	args := []any{season}
	if limit > 0 {
		where += " LIMIT ?"
		args = append(args, limit)
	}

	results, err := FindWhere(&WeightChangeEntry{}, where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load weight history for season %s: %w", season, err)
	}

	entries := make([]*WeightChangeEntry, 0, len(results))
	for _, r := range results {
		if entry, ok := r.(*WeightChangeEntry); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
