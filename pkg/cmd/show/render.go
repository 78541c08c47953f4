package show

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
)

// probabilityTolerance is the deviation from 100% accepted without a notice.
const probabilityTolerance = 0.05

// renderer writes the dashboard sections as tables.
type renderer struct {
	w      io.Writer
	format *predict.Formatter
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

func (r *renderer) race(info *model.RaceInfo) {
	if info == nil {
		return
	}
	fmt.Fprintf(r.w, "%s\n", text.Bold.Sprint(info.Name))
	var parts []string
	for _, p := range []string{info.Circuit, info.Date, info.Conditions} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		fmt.Fprintln(r.w, strings.Join(parts, " | "))
	}
	fmt.Fprintln(r.w)
}

func (r *renderer) prediction(p *model.Prediction) {
	t := newTable(r.w, "Predicted winner")
	t.AppendRow(table.Row{"Winner", text.Bold.Sprint(p.Winner)})
	t.AppendRow(table.Row{"Confidence", p.ConfidenceText})
	t.AppendRow(table.Row{"Model", p.Model})
	t.AppendRow(table.Row{"Podium", strings.Join(p.Podium, ", ")})
	t.AppendRow(table.Row{"Generated", p.TimestampText})
	t.Render()
}

func (r *renderer) qualifying(results []model.QualifyingResult) {
	if len(results) == 0 {
		return
	}
	t := newTable(r.w, "Qualifying")
	t.AppendHeader(table.Row{"Pos", "Driver", "Team", "Time"})
	for _, q := range results {
		t.AppendRow(table.Row{q.Position, q.Driver, q.Team, q.LapTime})
	}
	t.Render()
}

func (r *renderer) winProbabilities(probs []model.WinProbability, sum float64) {
	if len(probs) == 0 {
		return
	}
	t := newTable(r.w, "Win probabilities")
	t.AppendHeader(table.Row{"Driver", "Probability"})
	for _, p := range probs {
		t.AppendRow(table.Row{p.Driver, r.format.Percent(p.Probability)})
	}
	t.AppendFooter(table.Row{"Total", r.format.Percent(sum)})
	t.Render()
	if math.Abs(sum-100) > probabilityTolerance {
		fmt.Fprintf(r.w, "note: probabilities add up to %s\n", r.format.Percent(sum))
	}
}

func (r *renderer) models(models []model.ModelResult) {
	best, err := predict.BestModel(models)
	if err != nil {
		return
	}
	t := newTable(r.w, "Models")
	t.AppendHeader(table.Row{"", "Model", "Accuracy", "Precision", "Recall", "F1", "Winner", "Status"})
	for _, m := range models {
		mark := ""
		if m.Name == best.Name {
			mark = "*"
		}
		t.AppendRow(table.Row{
			mark, m.Name,
			r.format.Percent(predict.ConfidencePercent(m.Accuracy)),
			r.format.Percent(predict.ConfidencePercent(m.Precision)),
			r.format.Percent(predict.ConfidencePercent(m.Recall)),
			r.format.Percent(predict.ConfidencePercent(m.F1Score)),
			m.PredictedWinner, m.Status,
		})
	}
	t.Render()
}

func (r *renderer) features(features []model.FeatureImportance) {
	if len(features) == 0 {
		return
	}
	t := newTable(r.w, "Feature importance")
	t.AppendHeader(table.Row{"Feature", "Importance", "Description"})
	sorted := slices.Clone(features)
	slices.SortStableFunc(sorted, func(a, b model.FeatureImportance) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	for _, f := range sorted {
		t.AppendRow(table.Row{f.Feature, r.format.Percent(f.Importance * 100), f.Description})
	}
	t.Render()
}

//nolint:whitespace // editor/linter issue
func (r *renderer) history(
	history []model.HistoricalRaceRecord,
	acc model.AccuracySummary,
) {
	t := newTable(r.w, "Prediction history")
	t.AppendHeader(table.Row{"Race", "Date", "Predicted", "Actual", "Confidence", ""})
	for _, h := range history {
		result := text.FgRed.Sprint("miss")
		if h.IsCorrect() {
			result = text.FgGreen.Sprint("hit")
		}
		t.AppendRow(table.Row{
			h.RaceName, h.Date, h.PredictedWinner, h.ActualWinner,
			r.format.Percent(h.ConfidencePercent), result,
		})
	}
	t.AppendFooter(table.Row{
		"Accuracy",
		fmt.Sprintf("%d/%d", acc.CorrectCount, acc.TotalCount),
		"", "",
		r.format.Percent(acc.AvgConfidence),
		r.format.Percent(acc.AccuracyPercent),
	})
	t.Render()
}

func (r *renderer) report(rep *model.PredictionReport) {
	t := newTable(r.w, "Prediction "+rep.RaceID)
	t.AppendRow(table.Row{"Winner", text.Bold.Sprint(rep.Winner)})
	t.AppendRow(table.Row{"Confidence", r.format.Percent(rep.Confidence)})
	if rep.Model != "" {
		t.AppendRow(table.Row{"Model", rep.Model})
	}
	if len(rep.Podium) > 0 {
		t.AppendRow(table.Row{"Podium", strings.Join(rep.Podium, ", ")})
	}
	t.AppendRow(table.Row{"Generated", r.format.DateTime(rep.Timestamp)})
	t.Render()
	r.qualifying(rep.Qualifying)
}
