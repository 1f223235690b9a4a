package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/jason-ratigan/college-pickem-prediction-sub001/internal/logger"
	"github.com/jason-ratigan/college-pickem-prediction-sub001/pkg/engine"
)

// Server exposes the prediction engine over HTTP. It is a thin JSON layer;
// all domain rules live in the engine package.
type Server struct {
	engine *engine.Engine
	router *mux.Router
	http   *http.Server
}

// New builds a server around the given engine
func New(eng *engine.Engine, addr string) *Server {
	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
	}
	s.routes()
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router returns the configured router, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/weights/{season}", s.handleGetWeights).Methods(http.MethodGet)
	api.HandleFunc("/weights/{season}", s.handleUpdateWeights).Methods(http.MethodPost)
	api.HandleFunc("/weights/{season}/history", s.handleWeightHistory).Methods(http.MethodGet)
	api.HandleFunc("/weights/{season}/reset", s.handleResetWeights).Methods(http.MethodPost)

	api.HandleFunc("/regression/{season}", s.handleRunRegression).Methods(http.MethodPost)

	api.HandleFunc("/predict/{season}/{home}/{away}", s.handlePredict).Methods(http.MethodGet)
	api.HandleFunc("/trace/{season}/{home}/{away}", s.handleTrace).Methods(http.MethodGet)

	api.HandleFunc("/accuracy/{season}", s.handleAccuracy).Methods(http.MethodGet)
}

// ListenAndServe runs the server until SIGINT/SIGTERM, then drains
func (s *Server) ListenAndServe() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		logger.Info("Prediction API listening", s.http.Addr)
		errs <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		logger.Info("Shutting down on signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(ctx)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response body", err)
	}
}

// writeError maps engine errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInsufficientData),
		errors.Is(err, engine.ErrInsufficientSample):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrWeightsRejected):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	weights, err := s.engine.Weights.GetCurrentWeights(season)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

// manualWeightsRequest carries a manual weight override. Reason is mandatory;
// Values may be a partial set, merged over the current weights.
type manualWeightsRequest struct {
	Values  map[string]float64 `json:"values"`
	Reason  string             `json:"reason"`
	ActorID string             `json:"actorId"`
}

func (s *Server) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req manualWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	weights, validation, err := s.engine.Weights.UpdateManually(season, req.Values, req.Reason, req.ActorID)
	if err != nil {
		if validation != nil && !validation.IsValid() {
			writeJSON(w, http.StatusBadRequest, validation)
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"weights":    weights,
		"validation": validation,
	})
}

func (s *Server) handleWeightHistory(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	limit := 50
	history, err := s.engine.Weights.GetWeightHistory(season, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type resetWeightsRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actorId"`
}

func (s *Server) handleResetWeights(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var req resetWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	weights, err := s.engine.Weights.ResetToFallback(season, req.Reason, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

func (s *Server) handleRunRegression(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	analysis, err := s.engine.PerformRegressionAnalysis(season, r.Header.Get("X-Actor-Id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	season, err := engine.ParseSeason(vars["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	prediction, _, err := s.engine.Predict(season, vars["home"], vars["away"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	season, err := engine.ParseSeason(vars["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.engine.TraceAndValidate(season, vars["home"], vars["away"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	season, err := engine.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	games, err := engine.LoadSeasonGames(season)
	if err != nil {
		writeError(w, err)
		return
	}

	aggregate := engine.EvaluateAllPredictions(games)
	if aggregate == nil {
		writeJSON(w, http.StatusOK, map[string]any{"totalGames": 0})
		return
	}
	writeJSON(w, http.StatusOK, aggregate)
}
