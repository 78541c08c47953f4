package predict

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

// ComputeOverallAccuracy summarizes the prediction history.
// Values are not rounded, Formatter.Percent rounds for display.
// An empty history yields a zero summary, see AccuracySummary.Err.
func ComputeOverallAccuracy(history []model.HistoricalRaceRecord) model.AccuracySummary {
	if len(history) == 0 {
		return model.AccuracySummary{}
	}
	correct := lo.CountBy(history, func(h model.HistoricalRaceRecord) bool {
		return h.IsCorrect()
	})
	total := decimal.NewFromInt(int64(len(history)))
	sum := decimal.Zero
	for _, h := range history {
		sum = sum.Add(decimal.NewFromFloat(h.ConfidencePercent))
	}
	accuracy := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(total)

	return model.AccuracySummary{
		AccuracyPercent: accuracy.InexactFloat64(),
		CorrectCount:    correct,
		TotalCount:      len(history),
		AvgConfidence:   sum.Div(total).InexactFloat64(),
	}
}
