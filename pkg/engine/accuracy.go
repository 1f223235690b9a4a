package engine

import "math"

// PredictionAccuracy holds accuracy figures for one graded game
type PredictionAccuracy struct {
	GameID             string  `json:"gameId"`
	HomeTeamID         string  `json:"homeTeamId"`
	AwayTeamID         string  `json:"awayTeamId"`
	ActualHomeScore    float64 `json:"actualHomeScore"`
	ActualAwayScore    float64 `json:"actualAwayScore"`
	PredictedHomeScore float64 `json:"predictedHomeScore"`
	PredictedAwayScore float64 `json:"predictedAwayScore"`
	WinnerCorrect      bool    `json:"winnerCorrect"`
	ScoreError         float64 `json:"scoreError"`  // mean absolute per-team error
	MarginError        float64 `json:"marginError"` // absolute differential error
}

// AggregateAccuracy summarizes graded predictions across a set of games.
// WinnerAccuracy feeds the win-probability scale factor as the model's
// historical accuracy.
type AggregateAccuracy struct {
	TotalGames        int     `json:"totalGames"`
	WinnerAccuracy    float64 `json:"winnerAccuracy"` // 0-1
	MeanScoreError    float64 `json:"meanScoreError"`
	MeanMarginError   float64 `json:"meanMarginError"`
}

// EvaluatePredictionAccuracy grades one completed game that carries a stored
// prediction. Returns nil when the game is unplayed or ungraded.
func EvaluatePredictionAccuracy(g *Game) *PredictionAccuracy {
	if g == nil || !g.HasBeenPlayed() {
		return nil
	}
	if g.PredictedHomeScore < 0 || g.PredictedAwayScore < 0 {
		return nil
	}

	accuracy := &PredictionAccuracy{
		GameID:             g.GameID,
		HomeTeamID:         g.HomeTeamID,
		AwayTeamID:         g.AwayTeamID,
		ActualHomeScore:    g.HomePoints,
		ActualAwayScore:    g.AwayPoints,
		PredictedHomeScore: g.PredictedHomeScore,
		PredictedAwayScore: g.PredictedAwayScore,
	}

	actualMargin := g.HomePoints - g.AwayPoints
	predictedMargin := g.PredictedHomeScore - g.PredictedAwayScore

	// Both picked the same side (or both a push)
	accuracy.WinnerCorrect = (actualMargin > 0 && predictedMargin > 0) ||
		(actualMargin < 0 && predictedMargin < 0) ||
		(actualMargin == 0 && predictedMargin == 0)

	accuracy.ScoreError = (math.Abs(g.HomePoints-g.PredictedHomeScore) +
		math.Abs(g.AwayPoints-g.PredictedAwayScore)) / 2.0
	accuracy.MarginError = math.Abs(actualMargin - predictedMargin)

	return accuracy
}

// EvaluateAllPredictions aggregates accuracy across multiple games. Returns
// nil when no game is gradeable.
func EvaluateAllPredictions(games []*Game) *AggregateAccuracy {
	var accuracies []*PredictionAccuracy
	for _, g := range games {
		if accuracy := EvaluatePredictionAccuracy(g); accuracy != nil {
			accuracies = append(accuracies, accuracy)
		}
	}

	if len(accuracies) == 0 {
		return nil
	}

	aggregate := &AggregateAccuracy{TotalGames: len(accuracies)}

	var winnerCorrect int
	var totalScoreError, totalMarginError float64
	for _, acc := range accuracies {
		if acc.WinnerCorrect {
			winnerCorrect++
		}
		totalScoreError += acc.ScoreError
		totalMarginError += acc.MarginError
	}

	n := float64(aggregate.TotalGames)
	aggregate.WinnerAccuracy = float64(winnerCorrect) / n
	aggregate.MeanScoreError = totalScoreError / n
	aggregate.MeanMarginError = totalMarginError / n

	return aggregate
}

// HistoricalAccuracy returns the season's graded winner accuracy, or the
// configured default when nothing has been graded yet
func HistoricalAccuracy(season string) float64 {
	games, err := LoadSeasonGames(season)
	if err != nil {
		return Config.DefaultHistoricalAccuracy
	}

	aggregate := EvaluateAllPredictions(games)
	if aggregate == nil || aggregate.TotalGames == 0 {
		return Config.DefaultHistoricalAccuracy
	}
	return aggregate.WinnerAccuracy
}
