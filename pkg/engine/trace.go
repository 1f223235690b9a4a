package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
)

// StepType identifies one stage of the calculation pipeline
type StepType string

const (
	StepDataExtraction     StepType = "data_extraction"
	StepBaseline           StepType = "baseline_calculation"
	StepEfficiency         StepType = "efficiency_calculation"
	StepWeightApplication  StepType = "weight_application"
	StepPredictionAssembly StepType = "prediction_assembly"
)

// PipelineStepOrder is the canonical order in which stages run
func PipelineStepOrder() []StepType {
	return []StepType{
		StepDataExtraction,
		StepBaseline,
		StepEfficiency,
		StepWeightApplication,
		StepPredictionAssembly,
	}
}

// CalculationStep records one stage's concrete inputs and outputs together
// with the formula applied, so the verifier can recompute it independently
type CalculationStep struct {
	StepNumber  int                `json:"stepNumber"`
	Type        StepType           `json:"stepType"`
	Description string             `json:"description"`
	Formula     string             `json:"formula"`
	Inputs      map[string]float64 `json:"inputs"`
	Output      map[string]float64 `json:"output"`
	Validation  *ValidationResult  `json:"validation,omitempty"`
}

// CalculationTrace is the ephemeral, per-prediction ordered record of every
// calculation step. Steps are appended strictly in calculation order by the
// originating caller; the trace is finalized by recording the final
// prediction and exporting a report.
type CalculationTrace struct {
	ID         string `json:"id"`
	Season     string `json:"season"`
	HomeTeamID string `json:"homeTeamId"`
	AwayTeamID string `json:"awayTeamId"`
	GameID     string `json:"gameId,omitempty"`

	Steps           []*CalculationStep `json:"steps"`
	FinalPrediction *MatchupPrediction `json:"finalPrediction,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// AddStep appends the next calculation step. Only the originating caller
// touches a trace's step list, so no locking is needed here.
func (t *CalculationTrace) AddStep(stepType StepType, description, formula string, inputs, output map[string]float64) *CalculationStep {
	step := &CalculationStep{
		StepNumber:  len(t.Steps) + 1,
		Type:        stepType,
		Description: description,
		Formula:     formula,
		Inputs:      inputs,
		Output:      output,
	}
	t.Steps = append(t.Steps, step)
	return step
}

// TraceReport is the serializable result of verifying a finalized trace,
// shaped for an external validation/reporting dashboard
type TraceReport struct {
	TraceID         string              `json:"traceId"`
	IsValid         bool                `json:"isValid"`
	Score           int                 `json:"score"` // 0-100
	Errors          []ValidationError   `json:"errors"`
	Warnings        []ValidationWarning `json:"warnings"`
	Recommendations []string            `json:"recommendations"`
	Timestamp       time.Time           `json:"timestamp"`
}

// ReportSink receives finalized trace reports
type ReportSink interface {
	Export(report *TraceReport) error
}

// LogReportSink writes finalized reports to the engine log
type LogReportSink struct{}

// Export logs the report
func (LogReportSink) Export(report *TraceReport) error {
	if report.IsValid {
		logger.Info("Trace verified", report.TraceID, "score", report.Score)
	} else {
		logger.Error("Trace failed verification", report.TraceID, "score", report.Score, report)
	}
	return nil
}

type traceEntry struct {
	trace     *CalculationTrace
	createdAt time.Time
}

// Tracer owns the shared registry of in-flight traces. The registry is
// mutex-protected because batch analysis creates traces concurrently, while
// each trace's own step list is only ever touched by its originating caller.
// Abandoned traces (caller never completes them) are evicted after the
// configured TTL so the registry cannot grow without bound.
type Tracer struct {
	mu       sync.Mutex
	traces   map[string]*traceEntry
	verifier *MathematicalVerifier
	sink     ReportSink
}

// NewTracer returns a tracer exporting to the given sink; nil falls back to
// the log sink
func NewTracer(sink ReportSink) *Tracer {
	if sink == nil {
		sink = LogReportSink{}
	}
	return &Tracer{
		traces:   map[string]*traceEntry{},
		verifier: NewMathematicalVerifier(),
		sink:     sink,
	}
}

// StartTrace opens a trace for one matchup and registers it
func (tr *Tracer) StartTrace(season, homeTeamID, awayTeamID, gameID string) *CalculationTrace {
	trace := &CalculationTrace{
		ID:         uuid.NewString(),
		Season:     season,
		HomeTeamID: homeTeamID,
		AwayTeamID: awayTeamID,
		GameID:     gameID,
		StartedAt:  time.Now(),
	}

	tr.mu.Lock()
	tr.evictStaleLocked()
	tr.traces[trace.ID] = &traceEntry{trace: trace, createdAt: time.Now()}
	tr.mu.Unlock()

	return trace
}

// Get returns a registered in-flight trace
func (tr *Tracer) Get(traceID string) (*CalculationTrace, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	entry, ok := tr.traces[traceID]
	if !ok {
		return nil, false
	}
	return entry.trace, true
}

// ActiveCount returns the number of unfinalized traces in the registry
func (tr *Tracer) ActiveCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.traces)
}

// Complete finalizes a trace: records the final prediction, verifies every
// step, exports the report to the sink and removes the trace from the
// registry. The trace is not retained as long-lived state.
func (tr *Tracer) Complete(traceID string, prediction *MatchupPrediction) (*TraceReport, error) {
	tr.mu.Lock()
	entry, ok := tr.traces[traceID]
	if ok {
		delete(tr.traces, traceID)
	}
	tr.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("trace %s not found (completed or evicted)", traceID)
	}

	trace := entry.trace
	trace.FinalPrediction = prediction
	now := time.Now()
	trace.CompletedAt = &now

	report := tr.verifier.VerifyTrace(trace)

	if err := tr.sink.Export(report); err != nil {
		logger.Warn("Failed to export trace report", trace.ID, err)
	}

	return report, nil
}

// evictStaleLocked drops traces older than the configured TTL. Caller holds mu.
func (tr *Tracer) evictStaleLocked() {
	ttl := time.Duration(Config.TraceTTLMinutes) * time.Minute
	cutoff := time.Now().Add(-ttl)
	for id, entry := range tr.traces {
		if entry.createdAt.Before(cutoff) {
			logger.Warn("Evicting abandoned trace", id)
			delete(tr.traces, id)
		}
	}
}
