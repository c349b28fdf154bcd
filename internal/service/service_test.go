package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/analytics/internal/analysis"
	"github.com/finsight/analytics/internal/config"
	"github.com/finsight/analytics/internal/model"
	"github.com/finsight/analytics/internal/outlier"
	"github.com/finsight/analytics/internal/store"
	"github.com/finsight/analytics/internal/timeseries"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "stub insight", nil
}

func newTestService(t *testing.T, st store.Store) *AnalyticsService {
	t.Helper()
	reqs := config.DefaultRequirements()
	analyzer := analysis.New(st, timeseries.NewSeasonalTrendFitter(), outlier.NewIsolationForest(100, 42), stubGenerator{}, reqs, nil)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(analyzer, reqs, log)
}

// seedHistory inserts one $50 expense per day for the given number of days
// ending yesterday, plus a salary on the first of each month covered.
func seedHistory(t *testing.T, st store.Store, days int) {
	t.Helper()
	ctx := context.Background()
	end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

	for i := 0; i < days; i++ {
		date := end.AddDate(0, 0, -i)
		txn := model.Transaction{
			ID: fmt.Sprintf("tx-%d", i), UserID: "user1", Date: date,
			Amount: 50, Kind: model.KindExpense, Category: "Groceries",
		}
		require.NoError(t, st.CreateTransaction(ctx, &txn))

		if date.Day() == 1 {
			salary := model.Transaction{
				ID: fmt.Sprintf("salary-%d", i), UserID: "user1", Date: date,
				Amount: 3000, Kind: model.KindIncome, Category: "Salary",
			}
			require.NoError(t, st.CreateTransaction(ctx, &salary))
		}
	}
}

func doRequest(t *testing.T, svc *AnalyticsService, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestRootAndHealth(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, serviceVersion, body["version"])

	rec, body = doRequest(t, svc, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["features"], 5)
}

func TestModelsEndpoint(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodGet, "/api/v1/models", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	models, ok := body["models"].([]interface{})
	require.True(t, ok)
	require.Len(t, models, 5)

	first := models[0].(map[string]interface{})
	assert.Equal(t, "spending_forecast", first["name"])
	reqs := first["requirements"].(map[string]interface{})
	assert.Equal(t, 30.0, reqs["min_days_of_data"])
}

func TestForecastEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/forecast/user1", map[string]interface{}{"forecast_days": 14})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	forecast := body["forecast"].([]interface{})
	assert.Len(t, forecast, 14)
	point := forecast[0].(map[string]interface{})
	assert.Contains(t, point, "date")
	assert.Contains(t, point, "predicted_spending")
	assert.Contains(t, point, "lower_bound")
	assert.Contains(t, point, "upper_bound")

	stats := body["statistics"].(map[string]interface{})
	assert.InDelta(t, 50.0, stats["forecast_avg_daily"].(float64), 1.0)
}

func TestForecastInsufficientData(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/forecast/user1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	// Insufficient data carries the measured verdict and the empty shape.
	info := body["data_info"].(map[string]interface{})
	assert.Equal(t, false, info["sufficient"])
	assert.Empty(t, body["forecast"])
	assert.NotNil(t, body["statistics"])
}

func TestForecastEmptyBodyDefaultsHorizon(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/forecast/user1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["forecast"], 30)
}

func TestCategoryForecastEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/forecast/user1/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	forecasts := body["forecasts"].(map[string]interface{})
	assert.Contains(t, forecasts, "Groceries")
	assert.Equal(t, 30.0, body["forecast_period_days"])
}

func TestAnomaliesEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	spike := model.Transaction{
		ID: "spike", UserID: "user1", Date: time.Now().UTC().AddDate(0, 0, -2),
		Amount: 2000, Kind: model.KindExpense, Category: "Electronics",
	}
	require.NoError(t, st.CreateTransaction(context.Background(), &spike))
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/anomalies/user1", map[string]interface{}{"contamination": 0.1})
	assert.Equal(t, http.StatusOK, rec.Code)

	anomalies := body["anomalies"].([]interface{})
	require.NotEmpty(t, anomalies)
	top := anomalies[0].(map[string]interface{})
	assert.Equal(t, 2000.0, top["amount"])
	assert.Equal(t, "high", top["severity"])

	stats := body["statistics"].(map[string]interface{})
	assert.Equal(t, 41.0, stats["total_transactions"])
}

func TestCategoryAnomaliesEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodGet, "/api/v1/anomalies/user1/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	categories := body["categories"].(map[string]interface{})
	assert.Contains(t, categories, "Groceries")
}

func TestBudgetRecommendEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 90)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/budget/recommend/user1", map[string]interface{}{"approach": "conservative"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "conservative", body["approach"])

	recs := body["recommendations"].([]interface{})
	require.NotEmpty(t, recs)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, "Groceries", first["category"])
	assert.Greater(t, body["total_recommended_budget"].(float64), 0.0)
	assert.Contains(t, body, "comparison")
}

func TestBudgetOptimizeValidation(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/budget/optimize/user1", map[string]interface{}{"total_budget": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "total_budget must be positive", body["error"])
}

func TestBudgetOptimizeEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 90)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/budget/optimize/user1", map[string]interface{}{"total_budget": 2000})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2000.0, body["total_budget"])

	allocation := body["allocation"].([]interface{})
	require.NotEmpty(t, allocation)
	var total float64
	for _, entry := range allocation {
		total += entry.(map[string]interface{})["allocated_amount"].(float64)
	}
	assert.InDelta(t, 2000.0, total, 0.01)
}

func TestSavingsRateEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 90)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodGet, "/api/v1/goals/user1/savings-rate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := body["savings_statistics"].(map[string]interface{})
	assert.Contains(t, stats, "avg_monthly_income")
	assert.Contains(t, stats, "savings_rate_percentage")
}

func TestGoalPredictValidation(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/goals/user1/predict", map[string]interface{}{"target_amount": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "target_amount must be positive", body["error"])

	rec, body = doRequest(t, svc, http.MethodPost, "/api/v1/goals/user1/predict", map[string]interface{}{
		"target_amount": 1000,
		"deadline":      "June 2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "expected YYYY-MM-DD")
}

func TestGoalPredictEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 90)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/goals/user1/predict", map[string]interface{}{
		"target_amount":        1000,
		"current_amount":       1000,
		"monthly_contribution": 0,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, body["achievement_probability"])
	assert.Equal(t, "achieved", body["status"])
	assert.Equal(t, "Goal already achieved!", body["message"])
}

func TestGoalsAnalyzeEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 90)
	ctx := context.Background()
	require.NoError(t, st.CreateGoal(ctx, &model.Goal{
		ID: "g1", UserID: "user1", Title: "Emergency Fund", TargetAmount: 5000, CurrentAmount: 1000,
	}))
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodGet, "/api/v1/goals/user1/analyze", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["total_goals"])

	goals := body["goals"].([]interface{})
	require.Len(t, goals, 1)
	assert.Equal(t, "Emergency Fund", goals[0].(map[string]interface{})["goal_name"])
	assert.Contains(t, body, "overall_assessment")
}

func TestInsightsEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/insights/user1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stub insight", body["insights"])
	assert.NotContains(t, body, "ai_unavailable")

	used := body["context_used"].(map[string]interface{})
	assert.Equal(t, true, used["spending_forecast"])
}

func TestSpecificInsightValidation(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/insights/user1/specific", map[string]interface{}{"context_type": "astrology"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown context type: astrology", body["error"])
}

func TestSpecificInsightEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	seedHistory(t, st, 40)
	svc := newTestService(t, st)

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/insights/user1/specific", map[string]interface{}{
		"context_type":       "spending",
		"additional_context": "trip coming up",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "spending", body["context_type"])
	assert.Equal(t, "stub insight", body["insight"])
}

func TestQuickInsightEndpoint(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	rec, body := doRequest(t, svc, http.MethodPost, "/api/v1/insights/user1/quick", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "prompt is required", body["error"])

	rec, body = doRequest(t, svc, http.MethodPost, "/api/v1/insights/user1/quick", map[string]interface{}{
		"prompt":  "How did I do this month?",
		"context": map[string]interface{}{"balance": 120.5},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stub insight", body["insight"])
	assert.Equal(t, 120.5, body["context_used"].(map[string]interface{})["balance"])
}

func TestMethodNotAllowed(t *testing.T) {
	svc := newTestService(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forecast/user1", nil)
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
