package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FinancialSummary aggregates a user's recent activity.
type FinancialSummary struct {
	TotalIncome        float64            `json:"total_income"`
	TotalExpenses      float64            `json:"total_expenses"`
	NetBalance         float64            `json:"net_balance"`
	TransactionCount   int                `json:"transaction_count"`
	AvgDailySpending   float64            `json:"avg_daily_spending"`
	SpendingByCategory map[string]float64 `json:"spending_by_category"`
}

// FinancialSummary summarizes the last N days of activity. The daily average
// divides by the window length, not by observed days.
func (a *Analyzer) FinancialSummary(ctx context.Context, userID string, days int) (*FinancialSummary, error) {
	if days <= 0 {
		days = 30
	}
	txns, err := a.fetchRecent(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{SpendingByCategory: map[string]float64{}}
	for _, t := range txns {
		if t.IsExpense() {
			summary.TotalExpenses += t.Amount
			summary.SpendingByCategory[t.Category] += t.Amount
		} else {
			summary.TotalIncome += t.Amount
		}
	}
	summary.NetBalance = summary.TotalIncome - summary.TotalExpenses
	summary.TransactionCount = len(txns)
	summary.AvgDailySpending = summary.TotalExpenses / float64(days)
	return summary, nil
}

// FinancialContext is everything the narrative draws on. Each section is nil
// (or zero) when its analysis was unavailable; insight generation degrades
// gracefully rather than failing on a missing section.
type FinancialContext struct {
	Summary   *FinancialSummary
	Forecast  *ForecastStatistics
	Anomalies *AnomalyStatistics
	Budget    *BudgetRecommendationResult
	Goals     *GoalAnalysisResult
}

// HasData reports whether the context carries anything worth narrating.
func (c *FinancialContext) HasData() bool {
	return c.Summary != nil && c.Summary.TransactionCount > 0
}

// GatherContext runs every analysis and collects whatever succeeds. Failures
// of individual analyses are logged and leave their section empty.
func (a *Analyzer) GatherContext(ctx context.Context, userID string) *FinancialContext {
	fc := &FinancialContext{}

	summary, err := a.FinancialSummary(ctx, userID, 30)
	if err != nil {
		a.log.WithError(err).Warn("financial summary unavailable for insights")
	} else {
		fc.Summary = summary
	}

	if forecast, err := a.Forecast(ctx, userID, a.reqs.ForecastPeriodDays); err == nil {
		fc.Forecast = &forecast.Statistics
	}
	if anomalies, err := a.DetectAnomalies(ctx, userID, 0.1); err == nil {
		fc.Anomalies = &anomalies.Statistics
	}
	if budget, err := a.RecommendBudgets(ctx, userID, ApproachBalanced); err == nil {
		fc.Budget = budget
	}
	if goals, err := a.AnalyzeGoals(ctx, userID); err == nil {
		fc.Goals = goals
	}

	return fc
}

// InsightContextUsed records which analyses informed the narrative.
type InsightContextUsed struct {
	SpendingForecast  bool `json:"spending_forecast"`
	AnomaliesDetected int  `json:"anomalies_detected"`
	BudgetsAnalyzed   bool `json:"budgets_analyzed"`
	GoalsAnalyzed     int  `json:"goals_analyzed"`
}

// InsightsResult is the narrative output. AIUnavailable marks the rule-based
// degraded mode.
type InsightsResult struct {
	Insights      string             `json:"insights"`
	AIUnavailable bool               `json:"ai_unavailable,omitempty"`
	ContextUsed   InsightContextUsed `json:"context_used"`
}

// GenerateInsights produces the comprehensive narrative. The generator
// failing is not an error: the rule-based fallback takes over and the result
// is flagged.
func (a *Analyzer) GenerateInsights(ctx context.Context, userID string) (*InsightsResult, error) {
	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	verdict := CheckDataSufficiency(txns, a.reqs.MinDays, a.reqs.MinTransactions, goalsMinExpenses)
	if !verdict.Sufficient {
		return nil, &InsufficientDataError{Op: "insights", Verdict: verdict}
	}

	fc := a.GatherContext(ctx, userID)
	if !fc.HasData() {
		return nil, fmt.Errorf("insufficient financial data for insights")
	}

	used := contextUsed(fc)

	text, err := a.gen.Generate(ctx, buildInsightsPrompt(fc))
	if err != nil {
		a.log.WithError(&NarrativeError{Err: err}).Warn("narrative generator unavailable, using basic insights")
		return &InsightsResult{
			Insights:      basicInsights(fc),
			AIUnavailable: true,
			ContextUsed:   used,
		}, nil
	}

	return &InsightsResult{Insights: text, ContextUsed: used}, nil
}

func contextUsed(fc *FinancialContext) InsightContextUsed {
	used := InsightContextUsed{
		SpendingForecast: fc.Forecast != nil,
		BudgetsAnalyzed:  fc.Budget != nil,
	}
	if fc.Anomalies != nil {
		used.AnomaliesDetected = fc.Anomalies.AnomaliesDetected
	}
	if fc.Goals != nil {
		used.GoalsAnalyzed = fc.Goals.TotalGoals
	}
	return used
}

// buildInsightsPrompt renders the financial context into the advisor prompt.
func buildInsightsPrompt(fc *FinancialContext) string {
	var b strings.Builder
	b.WriteString("You are a professional financial advisor analyzing a user's financial data. ")
	b.WriteString("Provide personalized, actionable insights based on the following information:\n\n")

	if fc.Summary != nil {
		fmt.Fprintf(&b, "**Last 30 Days Summary:**\n")
		fmt.Fprintf(&b, "- Total Income: $%.2f\n", fc.Summary.TotalIncome)
		fmt.Fprintf(&b, "- Total Expenses: $%.2f\n", fc.Summary.TotalExpenses)
		fmt.Fprintf(&b, "- Net Balance: $%.2f\n", fc.Summary.NetBalance)
		fmt.Fprintf(&b, "- Average Daily Spending: $%.2f\n\n", fc.Summary.AvgDailySpending)
	}

	if fc.Forecast != nil {
		fmt.Fprintf(&b, "**Spending Forecast (Next 30 Days):**\n")
		fmt.Fprintf(&b, "- Predicted Average Daily: $%.2f\n", fc.Forecast.ForecastAvgDaily)
		fmt.Fprintf(&b, "- Trend: %+.1f%%\n\n", fc.Forecast.TrendPercentage)
	}

	if fc.Anomalies != nil && fc.Anomalies.AnomaliesDetected > 0 {
		fmt.Fprintf(&b, "**Anomalies Detected:**\n")
		fmt.Fprintf(&b, "- Unusual transactions: %d\n", fc.Anomalies.AnomaliesDetected)
		fmt.Fprintf(&b, "- Total anomalous spending: $%.2f\n\n", fc.Anomalies.TotalAnomalousSpending)
	}

	if fc.Budget != nil {
		fmt.Fprintf(&b, "**Budget Analysis:**\n")
		fmt.Fprintf(&b, "- Recommended Total Budget: $%.2f\n", fc.Budget.TotalRecommendedBudget)
		fmt.Fprintf(&b, "- Number of categories: %d\n\n", len(fc.Budget.Recommendations))
	}

	if fc.Goals != nil && fc.Goals.TotalGoals > 0 {
		fmt.Fprintf(&b, "**Financial Goals:**\n")
		fmt.Fprintf(&b, "- Active goals: %d\n", fc.Goals.TotalGoals)
		fmt.Fprintf(&b, "- Total monthly commitment: $%.2f\n", fc.Goals.TotalMonthlyCommitment)
		fmt.Fprintf(&b, "- Assessment: %s\n\n", fc.Goals.OverallAssessment)
	}

	b.WriteString("\n**Please provide:**\n")
	b.WriteString("1. Overall Financial Health Assessment (1-2 sentences)\n")
	b.WriteString("2. Top 3 Insights (key observations about their finances)\n")
	b.WriteString("3. Top 3 Recommendations (specific, actionable advice)\n")
	b.WriteString("4. One Caution (potential risk or area to watch)\n\n")
	b.WriteString("Keep the tone professional yet friendly, and be specific with numbers where relevant.")

	return b.String()
}

// basicInsights renders the rule-based narrative used when the generator is
// down. Same four sections as the generated one.
func basicInsights(fc *FinancialContext) string {
	var lines []string

	lines = append(lines, "**Overall Financial Health Assessment:**")
	if fc.Summary != nil {
		if fc.Summary.NetBalance > 0 {
			savingsRate := 0.0
			if fc.Summary.TotalIncome > 0 {
				savingsRate = fc.Summary.NetBalance / fc.Summary.TotalIncome * 100
			}
			lines = append(lines, fmt.Sprintf(
				"You have a positive net balance of $%.2f over the last 30 days, with a savings rate of %.1f%%.",
				fc.Summary.NetBalance, savingsRate))
		} else {
			lines = append(lines, fmt.Sprintf(
				"Your expenses exceeded income by $%.2f in the last 30 days. Consider reviewing your spending patterns.",
				math.Abs(fc.Summary.NetBalance)))
		}
	}

	lines = append(lines, "\n**Top 3 Insights:**")
	if fc.Forecast != nil {
		trend := fc.Forecast.TrendPercentage
		switch {
		case trend > 10:
			lines = append(lines, fmt.Sprintf(
				"1. Your spending is trending upward by %.1f%%. Daily spending is projected to increase from $%.2f to $%.2f.",
				trend, fc.Forecast.HistoricalAvgDaily, fc.Forecast.ForecastAvgDaily))
		case trend < -10:
			lines = append(lines, fmt.Sprintf(
				"1. Great news! Your spending is trending downward by %.1f%%. You're reducing daily spending from $%.2f to $%.2f.",
				math.Abs(trend), fc.Forecast.HistoricalAvgDaily, fc.Forecast.ForecastAvgDaily))
		default:
			lines = append(lines, fmt.Sprintf(
				"1. Your spending patterns are stable with minimal change (%+.1f%%).", trend))
		}
	}

	if fc.Anomalies != nil && fc.Anomalies.AnomaliesDetected > 0 {
		lines = append(lines, fmt.Sprintf(
			"2. Detected %d unusual transactions totaling $%.2f. Review these for unexpected charges or one-time expenses.",
			fc.Anomalies.AnomaliesDetected, fc.Anomalies.TotalAnomalousSpending))
	} else {
		lines = append(lines, "2. No unusual spending patterns detected. Your transactions appear consistent with your typical behavior.")
	}

	if fc.Goals != nil && fc.Goals.TotalGoals > 0 {
		switch fc.Goals.OverallAssessment {
		case AssessmentOnTrack:
			lines = append(lines, fmt.Sprintf(
				"3. Your %d financial goal(s) are on track with $%.2f/month in commitments.",
				fc.Goals.TotalGoals, fc.Goals.TotalMonthlyCommitment))
		case AssessmentOvercommitted:
			lines = append(lines, fmt.Sprintf(
				"3. Your %d goals require $%.2f/month, which may exceed your savings capacity. Consider adjusting timelines or contributions.",
				fc.Goals.TotalGoals, fc.Goals.TotalMonthlyCommitment))
		default:
			lines = append(lines, fmt.Sprintf(
				"3. You have %d active financial goal(s) that may need adjustment to improve achievability.",
				fc.Goals.TotalGoals))
		}
	} else {
		lines = append(lines, "3. Consider setting financial goals to track progress toward savings targets, vacations, or major purchases.")
	}

	lines = append(lines, "\n**Top 3 Recommendations:**")
	if fc.Budget != nil {
		lines = append(lines, fmt.Sprintf(
			"1. Based on your spending patterns, a monthly budget of $%.2f is recommended. Review category-specific budgets to optimize spending.",
			fc.Budget.TotalRecommendedBudget))
	} else {
		lines = append(lines, "1. Start tracking expenses by category to receive personalized budget recommendations.")
	}

	if fc.Summary != nil {
		if avgDaily := fc.Summary.AvgDailySpending; avgDaily > 0 {
			lines = append(lines, fmt.Sprintf(
				"2. Reducing daily spending by 15%% ($%.2f/day) could save $%.2f/month.",
				avgDaily*0.15, avgDaily*0.15*30))
		} else {
			lines = append(lines, "2. Continue tracking transactions to identify spending reduction opportunities.")
		}
	} else {
		lines = append(lines, "2. Track your daily expenses consistently to identify areas where you can reduce spending.")
	}

	if fc.Goals == nil || fc.Goals.TotalGoals == 0 {
		lines = append(lines, "3. Set up an emergency fund goal of 3-6 months of expenses as a financial safety net.")
	} else {
		lines = append(lines, "3. Automate your savings by setting up automatic transfers on payday to stay consistent with your goals.")
	}

	lines = append(lines, "\n**One Caution:**")
	switch {
	case fc.Goals != nil && fc.Goals.TotalGoals > 0 && fc.Goals.OverallAssessment == AssessmentOvercommitted:
		lines = append(lines, "You're committed to more in monthly savings than your typical capacity. This may lead to missed goals or financial stress. Consider prioritizing your most important goals.")
	case fc.Summary != nil && fc.Summary.NetBalance < 0:
		lines = append(lines, fmt.Sprintf(
			"Your spending exceeded income by $%.2f last month. If this continues, it could impact your financial stability. Focus on reducing discretionary expenses.",
			math.Abs(fc.Summary.NetBalance)))
	default:
		lines = append(lines, "Continue monitoring your spending patterns to catch any emerging issues early. Consistency is key to financial health.")
	}

	return strings.Join(lines, "\n")
}

// Specific insight focus areas.
const (
	ContextSpending  = "spending"
	ContextSaving    = "saving"
	ContextBudgeting = "budgeting"
	ContextGoals     = "goals"
)

// SpecificInsightResult is a targeted narrative for one focus area.
type SpecificInsightResult struct {
	ContextType string `json:"context_type"`
	Insight     string `json:"insight"`
}

// GenerateSpecific produces a narrative focused on one aspect of the user's
// finances. Unlike GenerateInsights there is no rule-based fallback; a
// generator failure fails the call.
func (a *Analyzer) GenerateSpecific(ctx context.Context, userID, contextType, additionalContext string) (*SpecificInsightResult, error) {
	var data, focus string
	var err error

	switch contextType {
	case ContextSpending:
		data, err = a.spendingContext(ctx, userID)
		focus = "spending patterns and recommendations for reducing expenses"
	case ContextSaving:
		data, err = a.savingContext(ctx, userID)
		focus = "savings potential and strategies for increasing savings"
	case ContextBudgeting:
		data, err = a.budgetingContext(ctx, userID)
		focus = "budget optimization and category-wise recommendations"
	case ContextGoals:
		data, err = a.goalsContext(ctx, userID)
		focus = "financial goals and strategies for achieving them"
	default:
		return nil, fmt.Errorf("unknown context type: %s", contextType)
	}
	if err != nil {
		return nil, err
	}

	if additionalContext == "" {
		additionalContext = "None provided"
	}
	prompt := fmt.Sprintf(`You are a professional financial advisor. Analyze the following financial data and provide actionable insights focused on %s.

Financial Data:
%s

Additional Context: %s

Provide:
1. Key observations (2-3 bullet points)
2. Specific recommendations (3-4 actionable items)
3. Potential risks or concerns to watch for

Keep the response concise, professional, and actionable.`, focus, data, additionalContext)

	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, &NarrativeError{Err: err}
	}

	return &SpecificInsightResult{ContextType: contextType, Insight: text}, nil
}

func (a *Analyzer) spendingContext(ctx context.Context, userID string) (string, error) {
	summary, err := a.FinancialSummary(ctx, userID, 30)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total Expenses: $%.2f\n", summary.TotalExpenses)
	fmt.Fprintf(&b, "Average Daily Spending: $%.2f\n", summary.AvgDailySpending)
	b.WriteString("\nSpending by Category:\n")

	type catAmount struct {
		category string
		amount   float64
	}
	cats := make([]catAmount, 0, len(summary.SpendingByCategory))
	for c, amt := range summary.SpendingByCategory {
		cats = append(cats, catAmount{c, amt})
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].amount > cats[j].amount })
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: $%.2f\n", c.category, c.amount)
	}
	return b.String(), nil
}

func (a *Analyzer) savingContext(ctx context.Context, userID string) (string, error) {
	stats, err := a.SavingsRate(ctx, userID, a.reqs.SavingsAnalysisMonths)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Average Monthly Income: $%.2f\n", stats.AvgMonthlyIncome)
	fmt.Fprintf(&b, "Average Monthly Expenses: $%.2f\n", stats.AvgMonthlyExpenses)
	fmt.Fprintf(&b, "Average Monthly Savings: $%.2f\n", stats.AvgMonthlySavings)
	fmt.Fprintf(&b, "Savings Rate: %.1f%%\n", stats.SavingsRatePercentage)
	fmt.Fprintf(&b, "Consistency Score: %.1f/100\n", stats.ConsistencyScore)
	return b.String(), nil
}

func (a *Analyzer) budgetingContext(ctx context.Context, userID string) (string, error) {
	budget, err := a.RecommendBudgets(ctx, userID, ApproachBalanced)
	if err != nil {
		return "Insufficient data for budget analysis", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recommended Total Budget: $%.2f\n", budget.TotalRecommendedBudget)
	b.WriteString("\nCategory Recommendations:\n")

	recs := budget.Recommendations
	if len(recs) > 10 {
		recs = recs[:10]
	}
	for _, rec := range recs {
		fmt.Fprintf(&b, "- %s: $%.2f (Current avg: $%.2f, Trend: %s)\n",
			rec.Category, rec.RecommendedAmount, rec.CurrentMonthlyAvg, rec.Trend)
	}
	return b.String(), nil
}

func (a *Analyzer) goalsContext(ctx context.Context, userID string) (string, error) {
	goals, err := a.AnalyzeGoals(ctx, userID)
	if err != nil {
		return "No active financial goals", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total Active Goals: %d\n", goals.TotalGoals)
	fmt.Fprintf(&b, "Total Monthly Commitment: $%.2f\n", goals.TotalMonthlyCommitment)
	fmt.Fprintf(&b, "Average Monthly Savings: $%.2f\n", goals.AvgMonthlySavings)
	fmt.Fprintf(&b, "Overall Assessment: %s\n", goals.OverallAssessment)
	b.WriteString("\nGoals Summary:\n")

	for _, g := range goals.Goals {
		fmt.Fprintf(&b, "- %s: $%.2f/$%.2f (%.0f%% likely, %s)\n",
			g.GoalName, g.CurrentAmount, g.TargetAmount,
			g.Prediction.AchievementProbability, g.Prediction.Status)
	}
	return b.String(), nil
}

// QuickInsightResult echoes back the caller-supplied context alongside the
// generated text.
type QuickInsightResult struct {
	Insight     string                 `json:"insight"`
	ContextUsed map[string]interface{} `json:"context_used"`
}

// GenerateQuick runs a caller-built prompt straight through the generator.
func (a *Analyzer) GenerateQuick(ctx context.Context, prompt string, callerContext map[string]interface{}) (*QuickInsightResult, error) {
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, &NarrativeError{Err: err}
	}
	return &QuickInsightResult{Insight: text, ContextUsed: callerContext}, nil
}
