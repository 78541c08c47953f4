package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaceEstimator_Estimate(t *testing.T) {
	tests := []struct {
		name string
		in   RaceInput
		want RaceOutcome
	}{
		{
			name: "pole with neutral form",
			in:   RaceInput{Driver: "A", GridPosition: 1, RecentForm: 5},
			want: RaceOutcome{Driver: "A", PredictedPosition: 1, Confidence: 85, WinProbability: 45, PodiumProbability: 90},
		},
		{
			name: "third with neutral form",
			in:   RaceInput{Driver: "B", GridPosition: 3, RecentForm: 5},
			want: RaceOutcome{Driver: "B", PredictedPosition: 3, Confidence: 85, WinProbability: 6, PodiumProbability: 70},
		},
		{
			name: "weak form moves back",
			in:   RaceInput{Driver: "C", GridPosition: 4, RecentForm: 9},
			want: RaceOutcome{Driver: "C", PredictedPosition: 6, Confidence: 75, WinProbability: 0.1, PodiumProbability: 15},
		},
		{
			name: "clamped to grid",
			in:   RaceInput{Driver: "D", GridPosition: 20, RecentForm: 10},
			want: RaceOutcome{Driver: "D", PredictedPosition: 20, Confidence: 85, WinProbability: 0.1, PodiumProbability: 1},
		},
		{
			name: "strong form clamped to pole",
			in:   RaceInput{Driver: "E", GridPosition: 2, RecentForm: 0},
			want: RaceOutcome{Driver: "E", PredictedPosition: 1, Confidence: 80, WinProbability: 45, PodiumProbability: 90},
		},
		{
			name: "large shift hits min confidence",
			in:   RaceInput{Driver: "F", GridPosition: 1, RecentForm: 30},
			want: RaceOutcome{Driver: "F", PredictedPosition: 13, Confidence: 60, WinProbability: 0.1, PodiumProbability: 2},
		},
	}
	e := NewRaceEstimator(NoJitter)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Estimate(tt.in))
		})
	}
}

func TestRaceEstimator_winnerJitter(t *testing.T) {
	up := NewRaceEstimator(func() float64 { return 1 })
	down := NewRaceEstimator(func() float64 { return -1 })
	in := RaceInput{GridPosition: 1, RecentForm: 5}
	assert.Equal(t, 50.0, up.Estimate(in).WinProbability)
	assert.Equal(t, 40.0, down.Estimate(in).WinProbability)

	random := NewRaceEstimator(nil)
	for range 20 {
		p := random.Estimate(in).WinProbability
		assert.GreaterOrEqual(t, p, 40.0)
		assert.LessOrEqual(t, p, 50.0)
	}
}

func TestRaceEstimator_EstimateAll(t *testing.T) {
	e := NewRaceEstimator(NoJitter)
	got := e.EstimateAll([]RaceInput{
		{Driver: "slow", GridPosition: 8, RecentForm: 5},
		{Driver: "fast", GridPosition: 1, RecentForm: 5},
		{Driver: "mid", GridPosition: 4, RecentForm: 5},
	})
	assert.Equal(t, []string{"fast", "mid", "slow"},
		[]string{got[0].Driver, got[1].Driver, got[2].Driver})
}
