package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Goal achievement statuses.
const (
	GoalAchieved     = "achieved"
	GoalHighlyLikely = "highly_likely"
	GoalPossible     = "possible"
	GoalChallenging  = "challenging"
	GoalUnlikely     = "unlikely"
)

// goalsMinExpenses relaxes the expense threshold for goal analysis; goals
// lean on income/expense balance, not on spending variety.
const goalsMinExpenses = 10

// SavingsStatistics summarizes a user's monthly savings behavior over the
// analysis window.
type SavingsStatistics struct {
	AvgMonthlyIncome      float64 `json:"avg_monthly_income"`
	AvgMonthlyExpenses    float64 `json:"avg_monthly_expenses"`
	AvgMonthlySavings     float64 `json:"avg_monthly_savings"`
	SavingsRatePercentage float64 `json:"savings_rate_percentage"`
	ConsistencyScore      float64 `json:"consistency_score"`
	MonthsAnalyzed        int     `json:"months_analyzed"`
}

// SavingsRate derives monthly income, expense and savings averages from the
// last N months of transactions. The consistency score rewards steady monthly
// savings: 100 means no month deviated, 0 means the swings are at least as
// large as the average itself.
func (a *Analyzer) SavingsRate(ctx context.Context, userID string, months int) (SavingsStatistics, error) {
	if months <= 0 {
		months = a.reqs.SavingsAnalysisMonths
	}

	txns, err := a.fetchRecent(ctx, userID, months*30)
	if err != nil {
		return SavingsStatistics{}, err
	}
	if len(txns) == 0 {
		return SavingsStatistics{}, nil
	}

	type monthTotals struct {
		income, expenses float64
	}
	byMonth := make(map[string]*monthTotals)
	for _, t := range txns {
		key := monthKey(t.Date)
		mt, ok := byMonth[key]
		if !ok {
			mt = &monthTotals{}
			byMonth[key] = mt
		}
		if t.IsExpense() {
			mt.expenses += t.Amount
		} else {
			mt.income += t.Amount
		}
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	incomes := make([]float64, len(keys))
	expenses := make([]float64, len(keys))
	savings := make([]float64, len(keys))
	for i, k := range keys {
		incomes[i] = byMonth[k].income
		expenses[i] = byMonth[k].expenses
		savings[i] = byMonth[k].income - byMonth[k].expenses
	}

	avgIncome := mean(incomes)
	avgSavings := mean(savings)
	savingsRate := 0.0
	if avgIncome > 0 {
		savingsRate = avgSavings / avgIncome * 100
	}

	deviation := 100.0
	if avgSavings > 0 {
		deviation = sampleStd(savings) / avgSavings * 100
	}
	consistency := 100 - math.Min(deviation, 100)
	if consistency < 0 {
		consistency = 0
	}

	return SavingsStatistics{
		AvgMonthlyIncome:      round2(avgIncome),
		AvgMonthlyExpenses:    round2(mean(expenses)),
		AvgMonthlySavings:     round2(avgSavings),
		SavingsRatePercentage: round2(savingsRate),
		ConsistencyScore:      round2(consistency),
		MonthsAnalyzed:        len(keys),
	}, nil
}

// GoalPrediction is the achievement outlook for a single goal.
type GoalPrediction struct {
	AchievementProbability    float64           `json:"achievement_probability"`
	Status                    string            `json:"status"`
	MonthsRequired            *float64          `json:"months_required"`
	EstimatedCompletionDate   *string           `json:"estimated_completion_date"`
	IsRealistic               bool              `json:"is_realistic"`
	CurrentProgressPercentage float64           `json:"current_progress_percentage"`
	SavingsStatistics         SavingsStatistics `json:"savings_statistics"`
	Recommendations           []string          `json:"recommendations"`
	Message                   string            `json:"message,omitempty"`
}

// PredictGoal forecasts whether a goal will be reached given the planned
// monthly contribution and the user's historical savings capacity.
func (a *Analyzer) PredictGoal(ctx context.Context, userID string, targetAmount, currentAmount, monthlyContribution float64, deadline *time.Time) (*GoalPrediction, error) {
	stats, err := a.SavingsRate(ctx, userID, a.reqs.SavingsAnalysisMonths)
	if err != nil {
		return nil, err
	}
	return a.predictGoal(stats, targetAmount, currentAmount, monthlyContribution, deadline), nil
}

// predictGoal is the shared core so AnalyzeGoals reuses one savings-stats
// computation across every goal.
func (a *Analyzer) predictGoal(stats SavingsStatistics, targetAmount, currentAmount, monthlyContribution float64, deadline *time.Time) *GoalPrediction {
	remaining := targetAmount - currentAmount
	now := a.now()

	if remaining <= 0 {
		zero := 0.0
		today := now.Format("2006-01-02")
		return &GoalPrediction{
			AchievementProbability:    100,
			Status:                    GoalAchieved,
			MonthsRequired:            &zero,
			EstimatedCompletionDate:   &today,
			IsRealistic:               true,
			CurrentProgressPercentage: 100,
			SavingsStatistics:         stats,
			Recommendations:           []string{},
			Message:                   "Goal already achieved!",
		}
	}

	monthsRequired := math.Inf(1)
	var estimatedDate *string
	if monthlyContribution > 0 {
		monthsRequired = remaining / monthlyContribution
		if monthsRequired > 9999 {
			monthsRequired = 9999
		} else {
			d := now.AddDate(0, int(monthsRequired), 0).Format("2006-01-02")
			estimatedDate = &d
		}
	}

	probability := achievementProbability(monthlyContribution, stats.AvgMonthlySavings, stats.ConsistencyScore, monthsRequired, deadline, now)

	var status string
	switch {
	case probability >= 80:
		status = GoalHighlyLikely
	case probability >= 50:
		status = GoalPossible
	case probability >= 30:
		status = GoalChallenging
	default:
		status = GoalUnlikely
	}

	var monthsOut *float64
	if !math.IsInf(monthsRequired, 1) {
		m := math.Round(monthsRequired*10) / 10
		monthsOut = &m
	}

	progress := 0.0
	if targetAmount > 0 {
		progress = currentAmount / targetAmount * 100
	}

	return &GoalPrediction{
		AchievementProbability:    round2(probability),
		Status:                    status,
		MonthsRequired:            monthsOut,
		EstimatedCompletionDate:   estimatedDate,
		IsRealistic:               monthlyContribution <= stats.AvgMonthlySavings*1.2,
		CurrentProgressPercentage: round2(progress),
		SavingsStatistics:         stats,
		Recommendations:           goalRecommendations(monthlyContribution, stats.AvgMonthlySavings, remaining, monthsRequired, deadline, now),
	}
}

// achievementProbability scores a goal between 5 and 95. The base comes from
// contribution relative to savings capacity, scaled by consistency, then
// penalized for missed deadlines and very long horizons.
func achievementProbability(contribution, avgSavings, consistency, monthsRequired float64, deadline *time.Time, now time.Time) float64 {
	contributionRatio := 0.5
	if avgSavings > 0 {
		contributionRatio = math.Min(contribution/avgSavings, 2.0)
	}

	probability := (50 + contributionRatio*25) * (0.7 + 0.3*consistency/100)

	if deadline != nil {
		monthsToDeadline := monthsBetween(now, *deadline)
		switch {
		case monthsToDeadline <= 0:
			probability *= 0.1
		case monthsRequired > float64(monthsToDeadline):
			probability *= float64(monthsToDeadline) / monthsRequired
		default:
			probability *= 1.1
		}
	}

	if monthsRequired > 60 {
		probability *= 0.7
	} else if monthsRequired > 36 {
		probability *= 0.85
	}

	return math.Max(5, math.Min(95, probability))
}

// goalRecommendations produces the actionable suggestions attached to a
// prediction.
func goalRecommendations(contribution, avgSavings, remaining, monthsRequired float64, deadline *time.Time, now time.Time) []string {
	recommendations := []string{}

	if contribution < avgSavings*0.5 {
		recommendations = append(recommendations, fmt.Sprintf(
			"Consider increasing monthly contribution to $%.2f based on your average savings capacity",
			avgSavings*0.7))
	}
	if contribution > avgSavings*1.5 {
		recommendations = append(recommendations,
			"Current contribution may be too aggressive - ensure it doesn't impact essential expenses")
	}

	if deadline != nil {
		monthsToDeadline := monthsBetween(now, *deadline)
		if monthsToDeadline > 0 && monthsRequired > float64(monthsToDeadline) {
			recommendations = append(recommendations, fmt.Sprintf(
				"To meet deadline, increase contribution to $%.2f/month",
				remaining/float64(monthsToDeadline)))
		}
	}

	if monthsRequired > 24 {
		recommendations = append(recommendations,
			"Consider setting intermediate milestones to track progress on this long-term goal")
	}

	if avgSavings > 0 && contribution < avgSavings {
		recommendations = append(recommendations, fmt.Sprintf(
			"You have $%.2f/month in unused savings capacity", avgSavings-contribution))
	}

	return recommendations
}

// Overall goal portfolio assessments.
const (
	AssessmentOvercommitted   = "overcommitted"
	AssessmentOnTrack         = "on_track"
	AssessmentNeedsAdjustment = "needs_adjustment"
	AssessmentChallenging     = "challenging"
)

// AnalyzedGoal pairs a stored goal with its prediction. The monthly
// contribution is implied from the deadline when the goal has one.
type AnalyzedGoal struct {
	GoalID              string          `json:"goal_id"`
	GoalName            string          `json:"goal_name"`
	TargetAmount        float64         `json:"target_amount"`
	CurrentAmount       float64         `json:"current_amount"`
	MonthlyContribution float64         `json:"monthly_contribution"`
	Deadline            *string         `json:"deadline"`
	Prediction          *GoalPrediction `json:"prediction"`
}

// GoalAnalysisResult is the portfolio view across all active goals.
type GoalAnalysisResult struct {
	TotalGoals             int            `json:"total_goals"`
	Goals                  []AnalyzedGoal `json:"goals"`
	TotalMonthlyCommitment float64        `json:"total_monthly_commitment"`
	AvgMonthlySavings      float64        `json:"avg_monthly_savings"`
	CommitmentRatio        float64        `json:"commitment_ratio"`
	OverallAssessment      string         `json:"overall_assessment"`
	Message                string         `json:"message,omitempty"`
}

// AnalyzeGoals predicts every active goal and judges the portfolio as a
// whole. Each goal's contribution is implied by spreading the remaining
// amount evenly across the months to its deadline; goals without a deadline
// contribute zero.
func (a *Analyzer) AnalyzeGoals(ctx context.Context, userID string) (*GoalAnalysisResult, error) {
	goals, err := a.store.ListGoals(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("fetch goals: %w", err)
	}
	if len(goals) == 0 {
		return &GoalAnalysisResult{
			TotalGoals:        0,
			Goals:             []AnalyzedGoal{},
			OverallAssessment: "No active goals",
		}, nil
	}

	txns, err := a.fetchAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	verdict := CheckDataSufficiency(txns, a.reqs.GoalsMinMonths*30, a.reqs.MinTransactions, goalsMinExpenses)
	if !verdict.Sufficient {
		return nil, &InsufficientDataError{Op: "goals analysis", Verdict: verdict}
	}

	stats, err := a.SavingsRate(ctx, userID, a.reqs.SavingsAnalysisMonths)
	if err != nil {
		return nil, err
	}

	now := a.now()
	analyzed := make([]AnalyzedGoal, 0, len(goals))
	var totalMonthlyRequired, probabilitySum float64

	for _, g := range goals {
		monthly := 0.0
		if g.Deadline != nil {
			monthsToDeadline := monthsBetween(now, *g.Deadline)
			if remaining := g.TargetAmount - g.CurrentAmount; monthsToDeadline > 0 && remaining > 0 {
				monthly = remaining / float64(monthsToDeadline)
			}
		}

		prediction := a.predictGoal(stats, g.TargetAmount, g.CurrentAmount, monthly, g.Deadline)
		probabilitySum += prediction.AchievementProbability
		totalMonthlyRequired += monthly

		var deadlineStr *string
		if g.Deadline != nil {
			d := g.Deadline.Format("2006-01-02")
			deadlineStr = &d
		}
		name := g.Title
		if name == "" {
			name = "Unnamed Goal"
		}

		analyzed = append(analyzed, AnalyzedGoal{
			GoalID:              g.ID,
			GoalName:            name,
			TargetAmount:        g.TargetAmount,
			CurrentAmount:       g.CurrentAmount,
			MonthlyContribution: round2(monthly),
			Deadline:            deadlineStr,
			Prediction:          prediction,
		})
	}

	avgProbability := probabilitySum / float64(len(analyzed))

	var overall, message string
	switch {
	case totalMonthlyRequired > stats.AvgMonthlySavings:
		overall = AssessmentOvercommitted
		message = "Total goal contributions exceed average savings capacity"
	case avgProbability >= 70:
		overall = AssessmentOnTrack
		message = "Goals are achievable with current trajectory"
	case avgProbability >= 40:
		overall = AssessmentNeedsAdjustment
		message = "Some goals may need timeline or contribution adjustments"
	default:
		overall = AssessmentChallenging
		message = "Current goals may be too ambitious - consider revising"
	}

	commitmentRatio := 0.0
	if stats.AvgMonthlySavings > 0 {
		commitmentRatio = totalMonthlyRequired / stats.AvgMonthlySavings
	}

	return &GoalAnalysisResult{
		TotalGoals:             len(goals),
		Goals:                  analyzed,
		TotalMonthlyCommitment: round2(totalMonthlyRequired),
		AvgMonthlySavings:      stats.AvgMonthlySavings,
		CommitmentRatio:        round2(commitmentRatio),
		OverallAssessment:      overall,
		Message:                message,
	}, nil
}
