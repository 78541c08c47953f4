//nolint:funlen,lll // ok for tests
package predict

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

func sampleModels() []model.ModelResult {
	return []model.ModelResult{
		{Name: "RandomForest", Accuracy: 0.847, PredictedWinner: "Verstappen"},
		{Name: "XGBoost", Accuracy: 0.862, PredictedWinner: "Verstappen"},
		{Name: "GradientBoosting", Accuracy: 0.839, PredictedWinner: "Norris"},
		{Name: "NeuralNetwork", Accuracy: 0.855, PredictedWinner: "Verstappen"},
	}
}

func sampleQualifying() []model.QualifyingResult {
	return []model.QualifyingResult{
		{Position: 3, Driver: "Piastri", Team: "McLaren", LapTime: "1:23.104"},
		{Position: 1, Driver: "Verstappen", Team: "Red Bull Racing", LapTime: "1:22.945"},
		{Position: 4, Driver: "Sainz", Team: "Ferrari", LapTime: "1:23.287"},
		{Position: 2, Driver: "Norris", Team: "McLaren", LapTime: "1:23.056"},
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 4, 16, 55, 54, 0, time.UTC)
}

func TestDeriver_Derive(t *testing.T) {
	d := NewDeriver(
		WithClock(fixedClock),
		WithFormatter(NewFormatter("en-US", WithLocation(time.UTC))),
		WithDefaultPodium([]string{"X", "Y", "Z", "W"}))

	got, err := d.Derive(sampleModels(), sampleQualifying())
	require.NoError(t, err)
	assert.Equal(t, "Verstappen", got.Winner)
	assert.Equal(t, "XGBoost", got.Model)
	assert.Equal(t, 86.2, got.ConfidencePercent)
	assert.Equal(t, "86.2%", got.ConfidenceText)
	assert.Equal(t, []string{"Verstappen", "Norris", "Piastri"}, got.Podium)
	assert.Equal(t, fixedClock(), got.Timestamp)
	assert.Equal(t, "1/4/2026, 4:55:54 PM", got.TimestampText)
}

func TestDeriver_Derive_podiumFallback(t *testing.T) {
	d := NewDeriver(WithClock(fixedClock), WithDefaultPodium([]string{"X", "Y", "Z", "W"}))

	got, err := d.Derive(sampleModels(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, got.Podium)

	got, err = d.Derive(sampleModels(), nil, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Podium, "dataset default takes precedence")
}

func TestDeriver_Derive_noModels(t *testing.T) {
	_, err := NewDeriver().Derive(nil, sampleQualifying())
	assert.ErrorIs(t, err, model.ErrNoModelResults)
}

func TestDeriver_Derive_newValueEachTime(t *testing.T) {
	d := NewDeriver()
	first, err := d.Derive(sampleModels(), nil)
	require.NoError(t, err)
	second, err := d.Derive(sampleModels(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotSame(t, first, second)
}

func TestBestModel(t *testing.T) {
	tests := []struct {
		name     string
		models   []model.ModelResult
		wantName string
	}{
		{
			name:     "single",
			models:   []model.ModelResult{{Name: "A", Accuracy: 0.5}},
			wantName: "A",
		},
		{
			name:     "max in the middle",
			models:   sampleModels(),
			wantName: "XGBoost",
		},
		{
			name: "tie picks first",
			models: []model.ModelResult{
				{Name: "A", Accuracy: 0.8},
				{Name: "B", Accuracy: 0.9},
				{Name: "C", Accuracy: 0.9},
			},
			wantName: "B",
		},
		{
			name: "all equal",
			models: []model.ModelResult{
				{Name: "A", Accuracy: 0.7},
				{Name: "B", Accuracy: 0.7},
			},
			wantName: "A",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BestModel(tt.models)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestConfidencePercent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.862, 86.2},
		{0.8475, 84.8},
		{0, 0},
		{1, 100},
		{0.12345, 12.3},
		{1.2, 100},
		{-0.1, 0},
	}
	for _, tt := range tests {
		got := ConfidencePercent(tt.in)
		assert.Equal(t, tt.want, got, "in=%v", tt.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestPodium(t *testing.T) {
	tests := []struct {
		name       string
		qualifying []model.QualifyingResult
		fallback   []string
		want       []string
	}{
		{name: "from qualifying", qualifying: sampleQualifying(), want: []string{"Verstappen", "Norris", "Piastri"}},
		{name: "short qualifying", qualifying: sampleQualifying()[:2], want: []string{"Verstappen", "Piastri"}},
		{name: "fallback", fallback: []string{"A", "B", "C", "D"}, want: []string{"A", "B", "C"}},
		{name: "nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Podium(tt.qualifying, tt.fallback)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Podium() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeOverallAccuracy(t *testing.T) {
	history := []model.HistoricalRaceRecord{
		{RaceName: "Las Vegas", PredictedWinner: "Verstappen", ActualWinner: "Verstappen", ConfidencePercent: 82.1},
		{RaceName: "Sao Paulo", PredictedWinner: "Verstappen", ActualWinner: "Verstappen", ConfidencePercent: 79.4},
		{RaceName: "Mexico City", PredictedWinner: "Verstappen", ActualWinner: "Sainz", ConfidencePercent: 75.8},
		{RaceName: "Austin", PredictedWinner: "Leclerc", ActualWinner: "Leclerc", ConfidencePercent: 71.2},
	}
	got := ComputeOverallAccuracy(history)
	want := model.AccuracySummary{
		AccuracyPercent: 75.0,
		CorrectCount:    3,
		TotalCount:      4,
		AvgConfidence:   77.125,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputeOverallAccuracy() mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, got.Err())
}

func TestComputeOverallAccuracy_empty(t *testing.T) {
	got := ComputeOverallAccuracy(nil)
	assert.Equal(t, model.AccuracySummary{}, got)
	assert.ErrorIs(t, got.Err(), model.ErrDivisionUndefined)
}

func TestComputeOverallAccuracy_thirds(t *testing.T) {
	got := ComputeOverallAccuracy([]model.HistoricalRaceRecord{
		{PredictedWinner: "A", ActualWinner: "A", ConfidencePercent: 70},
		{PredictedWinner: "A", ActualWinner: "B", ConfidencePercent: 80},
		{PredictedWinner: "B", ActualWinner: "C", ConfidencePercent: 90},
	})
	assert.InDelta(t, 100.0/3, got.AccuracyPercent, 1e-12)
	assert.Equal(t, 80.0, got.AvgConfidence)
	assert.Equal(t, "33.3%", NewFormatter("en-US").Percent(got.AccuracyPercent))

	got = ComputeOverallAccuracy([]model.HistoricalRaceRecord{
		{PredictedWinner: "A", ActualWinner: "A", ConfidencePercent: 70},
		{PredictedWinner: "A", ActualWinner: "A", ConfidencePercent: 70},
		{PredictedWinner: "B", ActualWinner: "C", ConfidencePercent: 71},
	})
	assert.InDelta(t, 200.0/3, got.AccuracyPercent, 1e-12)
	assert.InDelta(t, 211.0/3, got.AvgConfidence, 1e-12)
}
