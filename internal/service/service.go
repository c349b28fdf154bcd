// Package service is the HTTP boundary: it validates requests, invokes the
// analyzer and maps every result onto the uniform response envelope.
package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/finsight/analytics/internal/analysis"
	"github.com/finsight/analytics/internal/config"
)

const serviceVersion = "1.0.0"

// AnalyticsService exposes the analytical operations over HTTP.
type AnalyticsService struct {
	analyzer *analysis.Analyzer
	reqs     config.Requirements
	log      *logrus.Logger
}

// New creates the HTTP boundary around an analyzer.
func New(analyzer *analysis.Analyzer, reqs config.Requirements, log *logrus.Logger) *AnalyticsService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AnalyticsService{analyzer: analyzer, reqs: reqs, log: log}
}

// Router builds the full route table.
func (s *AnalyticsService) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)

	api.HandleFunc("/forecast/{userID}", s.handleForecast).Methods(http.MethodPost)
	api.HandleFunc("/forecast/{userID}/categories", s.handleCategoryForecast).Methods(http.MethodPost)

	api.HandleFunc("/anomalies/{userID}", s.handleAnomalies).Methods(http.MethodPost)
	api.HandleFunc("/anomalies/{userID}/categories", s.handleCategoryAnomalies).Methods(http.MethodGet)

	api.HandleFunc("/budget/recommend/{userID}", s.handleBudgetRecommend).Methods(http.MethodPost)
	api.HandleFunc("/budget/optimize/{userID}", s.handleBudgetOptimize).Methods(http.MethodPost)

	api.HandleFunc("/goals/{userID}/savings-rate", s.handleSavingsRate).Methods(http.MethodGet)
	api.HandleFunc("/goals/{userID}/predict", s.handleGoalPredict).Methods(http.MethodPost)
	api.HandleFunc("/goals/{userID}/analyze", s.handleGoalsAnalyze).Methods(http.MethodGet)

	api.HandleFunc("/insights/{userID}", s.handleInsights).Methods(http.MethodPost)
	api.HandleFunc("/insights/{userID}/specific", s.handleSpecificInsight).Methods(http.MethodPost)
	api.HandleFunc("/insights/{userID}/quick", s.handleQuickInsight).Methods(http.MethodPost)

	return r
}

// envelope is the uniform response shape of every operation.
type envelope map[string]interface{}

func (s *AnalyticsService) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("write response")
	}
}

// writeSuccess merges operation fields into a success envelope.
func (s *AnalyticsService) writeSuccess(w http.ResponseWriter, fields envelope) {
	env := envelope{"success": true}
	for k, v := range fields {
		env[k] = v
	}
	s.writeJSON(w, http.StatusOK, env)
}

// writeFailure maps an analysis error onto the failure envelope. Insufficient
// data carries the measured verdict as data_info and is a client-side 400;
// anything else is an internal failure. The empty fields keep the envelope
// shape stable for consumers.
func (s *AnalyticsService) writeFailure(w http.ResponseWriter, err error, empty envelope) {
	env := envelope{"success": false, "error": err.Error()}
	for k, v := range empty {
		env[k] = v
	}

	status := http.StatusInternalServerError
	var insufficient *analysis.InsufficientDataError
	if errors.As(err, &insufficient) {
		env["data_info"] = insufficient.Verdict
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, env)
}

// writeBadRequest reports a malformed or invalid request.
func (s *AnalyticsService) writeBadRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, envelope{"success": false, "error": msg})
}

// decodeBody parses an optional JSON body into dst. An empty body is fine;
// the handlers apply their own defaults.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *AnalyticsService) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
