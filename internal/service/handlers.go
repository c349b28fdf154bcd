package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/finsight/analytics/internal/analysis"
)

func (s *AnalyticsService) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{
		"status":  "success",
		"message": "FinSight Analytics Service is running",
		"version": serviceVersion,
	})
}

func (s *AnalyticsService) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{
		"status":  "healthy",
		"service": "analytics",
		"features": []string{
			"spending_forecast",
			"anomaly_detection",
			"budget_recommendations",
			"goal_prediction",
			"ai_insights",
		},
	})
}

// handleModels reports what each model needs before it will produce output,
// so clients can explain an insufficient-data refusal up front.
func (s *AnalyticsService) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{
		"models": []envelope{
			{
				"name":        "spending_forecast",
				"description": "Daily spending forecast with confidence intervals",
				"requirements": envelope{
					"min_days_of_data": s.reqs.MinDays,
				},
			},
			{
				"name":        "anomaly_detection",
				"description": "Unusual transaction detection",
				"requirements": envelope{
					"min_days_of_data": s.reqs.MinDays,
					"min_transactions": s.reqs.MinTransactions,
					"min_expenses":     s.reqs.MinExpenses,
				},
			},
			{
				"name":        "budget_recommendations",
				"description": "Per-category monthly budget suggestions",
				"requirements": envelope{
					"min_days_of_data": s.reqs.MinDays,
					"min_transactions": s.reqs.MinDays,
					"min_expenses":     s.reqs.MinExpenses,
				},
			},
			{
				"name":        "goal_prediction",
				"description": "Goal achievement probability and timeline",
				"requirements": envelope{
					"min_days_of_data": s.reqs.GoalsMinMonths * 30,
					"min_transactions": s.reqs.MinTransactions,
				},
			},
			{
				"name":        "ai_insights",
				"description": "Personalized financial narrative",
				"requirements": envelope{
					"min_days_of_data": s.reqs.MinDays,
					"min_transactions": s.reqs.MinTransactions,
				},
			},
		},
	})
}

func (s *AnalyticsService) handleForecast(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		ForecastDays int `json:"forecast_days"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	result, err := s.analyzer.Forecast(r.Context(), userID, req.ForecastDays)
	if err != nil {
		s.writeFailure(w, err, envelope{"forecast": []analysis.ForecastPoint{}, "statistics": envelope{}})
		return
	}
	s.writeSuccess(w, envelope{"forecast": result.Forecast, "statistics": result.Statistics})
}

func (s *AnalyticsService) handleCategoryForecast(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		ForecastDays int `json:"forecast_days"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	result, err := s.analyzer.ForecastByCategory(r.Context(), userID, req.ForecastDays)
	if err != nil {
		s.writeFailure(w, err, envelope{"forecasts": envelope{}})
		return
	}
	s.writeSuccess(w, envelope{
		"forecasts":            result.Forecasts,
		"forecast_period_days": result.ForecastPeriodDays,
	})
}

func (s *AnalyticsService) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		Contamination float64 `json:"contamination"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	result, err := s.analyzer.DetectAnomalies(r.Context(), userID, req.Contamination)
	if err != nil {
		s.writeFailure(w, err, envelope{"anomalies": []analysis.AnomalyRecord{}, "statistics": envelope{}})
		return
	}
	s.writeSuccess(w, envelope{"anomalies": result.Anomalies, "statistics": result.Statistics})
}

func (s *AnalyticsService) handleCategoryAnomalies(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	result, err := s.analyzer.DetectCategoryAnomalies(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, envelope{"categories": envelope{}})
		return
	}
	s.writeSuccess(w, envelope{
		"categories":  result.Categories,
		"period_days": result.PeriodDays,
	})
}

func (s *AnalyticsService) handleBudgetRecommend(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		Approach string `json:"approach"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	if req.Approach == "" {
		req.Approach = analysis.ApproachBalanced
	}

	result, err := s.analyzer.RecommendBudgets(r.Context(), userID, req.Approach)
	if err != nil {
		s.writeFailure(w, err, envelope{
			"recommendations":          []analysis.BudgetRecommendation{},
			"total_recommended_budget": 0,
		})
		return
	}
	s.writeSuccess(w, envelope{
		"approach":                 result.Approach,
		"recommendations":          result.Recommendations,
		"total_recommended_budget": result.TotalRecommendedBudget,
		"comparison":               result.Comparison,
		"analysis_period_months":   result.AnalysisPeriodMonths,
	})
}

func (s *AnalyticsService) handleBudgetOptimize(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		TotalBudget float64 `json:"total_budget"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	if req.TotalBudget <= 0 {
		s.writeBadRequest(w, "total_budget must be positive")
		return
	}

	result, err := s.analyzer.OptimizeBudget(r.Context(), userID, req.TotalBudget)
	if err != nil {
		s.writeFailure(w, err, envelope{"allocation": []analysis.BudgetAllocation{}})
		return
	}
	s.writeSuccess(w, envelope{
		"total_budget":       result.TotalBudget,
		"allocation":         result.Allocation,
		"categories_covered": result.CategoriesCovered,
	})
}

func (s *AnalyticsService) handleSavingsRate(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	stats, err := s.analyzer.SavingsRate(r.Context(), userID, 0)
	if err != nil {
		s.writeFailure(w, err, nil)
		return
	}
	s.writeSuccess(w, envelope{"savings_statistics": stats})
}

func (s *AnalyticsService) handleGoalPredict(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		TargetAmount        float64 `json:"target_amount"`
		CurrentAmount       float64 `json:"current_amount"`
		MonthlyContribution float64 `json:"monthly_contribution"`
		Deadline            string  `json:"deadline"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	if req.TargetAmount <= 0 {
		s.writeBadRequest(w, "target_amount must be positive")
		return
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			s.writeBadRequest(w, fmt.Sprintf("invalid deadline %q, expected YYYY-MM-DD", req.Deadline))
			return
		}
		deadline = &d
	}

	prediction, err := s.analyzer.PredictGoal(r.Context(), userID, req.TargetAmount, req.CurrentAmount, req.MonthlyContribution, deadline)
	if err != nil {
		s.writeFailure(w, err, nil)
		return
	}
	s.writeSuccess(w, envelope{
		"achievement_probability":     prediction.AchievementProbability,
		"status":                      prediction.Status,
		"months_required":             prediction.MonthsRequired,
		"estimated_completion_date":   prediction.EstimatedCompletionDate,
		"is_realistic":                prediction.IsRealistic,
		"current_progress_percentage": prediction.CurrentProgressPercentage,
		"savings_statistics":          prediction.SavingsStatistics,
		"recommendations":             prediction.Recommendations,
		"message":                     prediction.Message,
	})
}

func (s *AnalyticsService) handleGoalsAnalyze(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	result, err := s.analyzer.AnalyzeGoals(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, envelope{"total_goals": 0, "goals": []analysis.AnalyzedGoal{}})
		return
	}
	s.writeSuccess(w, envelope{
		"total_goals":              result.TotalGoals,
		"goals":                    result.Goals,
		"total_monthly_commitment": result.TotalMonthlyCommitment,
		"avg_monthly_savings":      result.AvgMonthlySavings,
		"commitment_ratio":         result.CommitmentRatio,
		"overall_assessment":       result.OverallAssessment,
		"message":                  result.Message,
	})
}

func (s *AnalyticsService) handleInsights(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	result, err := s.analyzer.GenerateInsights(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err, envelope{"insights": ""})
		return
	}
	fields := envelope{
		"insights":     result.Insights,
		"context_used": result.ContextUsed,
	}
	if result.AIUnavailable {
		fields["ai_unavailable"] = true
	}
	s.writeSuccess(w, fields)
}

func (s *AnalyticsService) handleSpecificInsight(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		ContextType       string `json:"context_type"`
		AdditionalContext string `json:"additional_context"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	switch req.ContextType {
	case analysis.ContextSpending, analysis.ContextSaving, analysis.ContextBudgeting, analysis.ContextGoals:
	default:
		s.writeBadRequest(w, fmt.Sprintf("unknown context type: %s", req.ContextType))
		return
	}

	result, err := s.analyzer.GenerateSpecific(r.Context(), userID, req.ContextType, req.AdditionalContext)
	if err != nil {
		s.writeFailure(w, err, envelope{"insight": ""})
		return
	}
	s.writeSuccess(w, envelope{
		"context_type": result.ContextType,
		"insight":      result.Insight,
	})
}

func (s *AnalyticsService) handleQuickInsight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt  string                 `json:"prompt"`
		Context map[string]interface{} `json:"context"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.writeBadRequest(w, "prompt is required")
		return
	}

	result, err := s.analyzer.GenerateQuick(r.Context(), req.Prompt, req.Context)
	if err != nil {
		s.writeFailure(w, err, envelope{"insight": ""})
		return
	}
	s.writeSuccess(w, envelope{
		"insight":      result.Insight,
		"context_used": result.ContextUsed,
	})
}
