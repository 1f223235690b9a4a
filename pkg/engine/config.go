package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig contains all configurable parameters that influence prediction
// outcomes. This centralizes all magic numbers and constants for easy adjustment.
type EngineConfig struct {
	// Database parameters
	AssetsPath string `yaml:"assetsPath"` // Base directory of engine assets
	DbPath     string `yaml:"dbPath"`     // Location of the sqlite database

	// === REGRESSION PARAMETERS ===

	MinSampleSize            int     `yaml:"minSampleSize"`            // Minimum observations for a multi-variable fit (default: 30)
	SignificanceRSquared     float64 `yaml:"significanceRSquared"`     // R² above which a metric may be significant (default: 0.2)
	SignificancePValue       float64 `yaml:"significancePValue"`       // p-value below which a metric may be significant (default: 0.1)
	BoostRSquared            float64 `yaml:"boostRSquared"`            // R² above which a derived weight is boosted (default: 0.6)
	NonSignificantMultiplier float64 `yaml:"nonSignificantMultiplier"` // Down-weighting of non-significant metrics (default: 0.5)
	BoostMultiplier          float64 `yaml:"boostMultiplier"`          // Up-weighting of strong predictors (default: 1.25)
	SingularPivotEpsilon     float64 `yaml:"singularPivotEpsilon"`     // Pivot magnitude below which the design matrix is treated singular (default: 1e-10)
	ConfidenceZ              float64 `yaml:"confidenceZ"`              // z value for coefficient confidence intervals (default: 1.96 = 95%)
	LowModelRSquared         float64 `yaml:"lowModelRSquared"`         // Overall R² below which the model is flagged weak (default: 0.3)
	HighResidualStdError     float64 `yaml:"highResidualStdError"`     // Residual standard error above which the model is flagged noisy (default: 20)
	OverallFPValue           float64 `yaml:"overallFPValue"`           // Overall F-test p-value above which the model is flagged (default: 0.05)

	// === WEIGHT MANAGEMENT ===

	// The observed normalization target is 1.5 rather than 1.0. The working
	// hypothesis is that the static home-field weight sits outside the
	// normalized set; the value is preserved here as a named constant.
	WeightNormalizationTarget    float64 `yaml:"weightNormalizationTarget"`    // Target weight sum (default: 1.5)
	WeightNormalizationTolerance float64 `yaml:"weightNormalizationTolerance"` // Band around target before normalization kicks in (default: 0.1)
	MaxPlausibleWeight           float64 `yaml:"maxPlausibleWeight"`           // Weights above this draw a warning (default: 2.0)

	// Fallback weights, one constant per category
	FallbackScoringWeight        float64 `yaml:"fallbackScoringWeight"`        // default: 0.30
	FallbackPassingOffenseWeight float64 `yaml:"fallbackPassingOffenseWeight"` // default: 0.20
	FallbackPassingDefenseWeight float64 `yaml:"fallbackPassingDefenseWeight"` // default: 0.15
	FallbackRushingOffenseWeight float64 `yaml:"fallbackRushingOffenseWeight"` // default: 0.20
	FallbackRushingDefenseWeight float64 `yaml:"fallbackRushingDefenseWeight"` // default: 0.15
	FallbackTurnoverWeight       float64 `yaml:"fallbackTurnoverWeight"`       // default: 0.25
	FallbackSpecialTeamsWeight   float64 `yaml:"fallbackSpecialTeamsWeight"`   // default: 0.10
	FallbackHomeFieldWeight      float64 `yaml:"fallbackHomeFieldWeight"`      // default: 0.15

	// === EFFICIENCY PARAMETERS ===

	ExtremeEfficiencyThreshold float64 `yaml:"extremeEfficiencyThreshold"` // Magnitude above which an efficiency value is statistically extreme (default: 40)
	EfficiencyBound            float64 `yaml:"efficiencyBound"`            // Magnitude above which an efficiency value is treated as a defect (default: 50)

	// === PREDICTION ASSEMBLY ===

	BaselineExpectedScore    float64 `yaml:"baselineExpectedScore"`    // Starting expected score before contributions (default: 24.0)
	HomeFieldAdvantagePoints float64 `yaml:"homeFieldAdvantagePoints"` // Static home-field edge in points (default: 2.5)
	MinScore                 float64 `yaml:"minScore"`                 // Lower score clamp (default: 0)
	MaxScore                 float64 `yaml:"maxScore"`                 // Upper score clamp (default: 100)
	MaxPointDifferential     float64 `yaml:"maxPointDifferential"`     // Maximum allowed score differential (default: 70)
	ConfidenceFloor          float64 `yaml:"confidenceFloor"`          // default: 0.10
	ConfidenceCeiling        float64 `yaml:"confidenceCeiling"`        // default: 0.95
	ProbabilityFloor         float64 `yaml:"probabilityFloor"`         // default: 0.05
	ProbabilityCeiling       float64 `yaml:"probabilityCeiling"`       // default: 0.95
	WinProbabilityScale      float64 `yaml:"winProbabilityScale"`      // Base logistic steepness factor (default: 0.1)
	DefaultHistoricalAccuracy float64 `yaml:"defaultHistoricalAccuracy"` // Used until enough graded predictions exist (default: 0.55)

	// === TRACING ===

	TraceTTLMinutes int     `yaml:"traceTTLMinutes"` // Abandoned traces are evicted after this long (default: 30)
	VerifyTolerance float64 `yaml:"verifyTolerance"` // Numeric tolerance for step re-verification (default: 1e-6)

	// Division by zero protection
	MakeSensibleDefault float64 `yaml:"makeSensibleDefault"` // Default when a divisor would be zero (default: 1.0)
}

// DefaultEngineConfig returns the default configuration with all standard values
func DefaultEngineConfig() *EngineConfig {
	assetsPath := os.TempDir() + "/pickem/"
	return &EngineConfig{
		AssetsPath: assetsPath,
		DbPath:     assetsPath + "pickem.db",

		// === REGRESSION PARAMETERS ===
		MinSampleSize:            30,
		SignificanceRSquared:     0.2,
		SignificancePValue:       0.1,
		BoostRSquared:            0.6,
		NonSignificantMultiplier: 0.5,
		BoostMultiplier:          1.25,
		SingularPivotEpsilon:     1e-10,
		ConfidenceZ:              1.96,
		LowModelRSquared:         0.3,
		HighResidualStdError:     20.0,
		OverallFPValue:           0.05,

		// === WEIGHT MANAGEMENT ===
		WeightNormalizationTarget:    1.5,
		WeightNormalizationTolerance: 0.1,
		MaxPlausibleWeight:           2.0,

		FallbackScoringWeight:        0.30,
		FallbackPassingOffenseWeight: 0.20,
		FallbackPassingDefenseWeight: 0.15,
		FallbackRushingOffenseWeight: 0.20,
		FallbackRushingDefenseWeight: 0.15,
		FallbackTurnoverWeight:       0.25,
		FallbackSpecialTeamsWeight:   0.10,
		FallbackHomeFieldWeight:      0.15,

		// === EFFICIENCY PARAMETERS ===
		ExtremeEfficiencyThreshold: 40.0,
		EfficiencyBound:            50.0,

		// === PREDICTION ASSEMBLY ===
		BaselineExpectedScore:     24.0,
		HomeFieldAdvantagePoints:  2.5,
		MinScore:                  0.0,
		MaxScore:                  100.0,
		MaxPointDifferential:      70.0,
		ConfidenceFloor:           0.10,
		ConfidenceCeiling:         0.95,
		ProbabilityFloor:          0.05,
		ProbabilityCeiling:        0.95,
		WinProbabilityScale:       0.1,
		DefaultHistoricalAccuracy: 0.55,

		// === TRACING ===
		TraceTTLMinutes: 30,
		VerifyTolerance: 1e-6,

		MakeSensibleDefault: 1.0,
	}
}

// Global configuration instance
var Config *EngineConfig

// init initializes the global configuration with default values
func init() {
	Config = DefaultEngineConfig()
}

// UpdateConfig allows updating the global configuration
func UpdateConfig(newConfig *EngineConfig) error {
	if err := ValidateConfig(newConfig); err != nil {
		return err
	}
	Config = newConfig
	return nil
}

// LoadConfigFile reads a YAML overrides file on top of the defaults and
// installs the result as the global configuration
func LoadConfigFile(path string) (*EngineConfig, error) {
	config := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := UpdateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// === CONFIGURATION VALIDATION ===

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *EngineConfig) error {
	if config.MinSampleSize < 2 {
		return fmt.Errorf("MinSampleSize must be at least 2, got: %d", config.MinSampleSize)
	}

	if config.SignificanceRSquared < 0.0 || config.SignificanceRSquared > 1.0 {
		return fmt.Errorf("SignificanceRSquared must be between 0.0 and 1.0, got: %f", config.SignificanceRSquared)
	}

	if config.SignificancePValue <= 0.0 || config.SignificancePValue > 1.0 {
		return fmt.Errorf("SignificancePValue must be between 0.0 and 1.0, got: %f", config.SignificancePValue)
	}

	if config.WeightNormalizationTarget <= 0.0 {
		return fmt.Errorf("WeightNormalizationTarget must be positive, got: %f", config.WeightNormalizationTarget)
	}

	if config.WeightNormalizationTolerance < 0.0 {
		return fmt.Errorf("WeightNormalizationTolerance must not be negative, got: %f", config.WeightNormalizationTolerance)
	}

	if config.MinScore >= config.MaxScore {
		return fmt.Errorf("MinScore must be below MaxScore, got: %f >= %f", config.MinScore, config.MaxScore)
	}

	if config.MaxPointDifferential <= 0.0 {
		return fmt.Errorf("MaxPointDifferential must be positive, got: %f", config.MaxPointDifferential)
	}

	if config.ConfidenceFloor < 0.0 || config.ConfidenceCeiling > 1.0 || config.ConfidenceFloor >= config.ConfidenceCeiling {
		return fmt.Errorf("confidence clamp [%f, %f] is not a valid sub-range of [0, 1]", config.ConfidenceFloor, config.ConfidenceCeiling)
	}

	if config.ProbabilityFloor < 0.0 || config.ProbabilityCeiling > 1.0 || config.ProbabilityFloor >= config.ProbabilityCeiling {
		return fmt.Errorf("probability clamp [%f, %f] is not a valid sub-range of [0, 1]", config.ProbabilityFloor, config.ProbabilityCeiling)
	}

	if config.TraceTTLMinutes < 1 {
		return fmt.Errorf("TraceTTLMinutes must be at least 1, got: %d", config.TraceTTLMinutes)
	}

	fallbacks := []float64{
		config.FallbackScoringWeight,
		config.FallbackPassingOffenseWeight,
		config.FallbackPassingDefenseWeight,
		config.FallbackRushingOffenseWeight,
		config.FallbackRushingDefenseWeight,
		config.FallbackTurnoverWeight,
		config.FallbackSpecialTeamsWeight,
		config.FallbackHomeFieldWeight,
	}
	for i, w := range fallbacks {
		if w < 0.0 {
			return fmt.Errorf("fallback weight %d must not be negative, got: %f", i, w)
		}
	}

	return nil
}

// === HELPER FUNCTIONS FOR EASY ACCESS ===

// GetMinSampleSize returns the minimum observation count for a multi-variable fit
func GetMinSampleSize() int {
	return Config.MinSampleSize
}

// GetWeightNormalizationTarget returns the configured target weight sum
func GetWeightNormalizationTarget() float64 {
	return Config.WeightNormalizationTarget
}

// GetMakeSensibleDefault returns the default value for division by zero protection
func GetMakeSensibleDefault() float64 {
	return Config.MakeSensibleDefault
}

// FallbackWeights returns the static fallback weight set, one entry per category
func FallbackWeights() map[string]float64 {
	return map[string]float64{
		CategoryScoring:        Config.FallbackScoringWeight,
		CategoryPassingOffense: Config.FallbackPassingOffenseWeight,
		CategoryPassingDefense: Config.FallbackPassingDefenseWeight,
		CategoryRushingOffense: Config.FallbackRushingOffenseWeight,
		CategoryRushingDefense: Config.FallbackRushingDefenseWeight,
		CategoryTurnovers:      Config.FallbackTurnoverWeight,
		CategorySpecialTeams:   Config.FallbackSpecialTeamsWeight,
		CategoryHomeField:      Config.FallbackHomeFieldWeight,
	}
}
