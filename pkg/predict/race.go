package predict

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	gridSize         = 20
	neutralForm      = 5.0
	minConfidence    = 60.0
	maxConfidence    = 95.0
	winnerBaseChance = 45.0
	winnerJitter     = 5.0
)

// RaceInput describes a single driver entering a race.
type RaceInput struct {
	Driver       string
	Track        string
	GridPosition int
	RecentForm   float64 // 0..10, 5 is neutral
	Weather      string
	Temperature  float64
}

type RaceOutcome struct {
	Driver            string  `json:"driver"`
	PredictedPosition int     `json:"predictedPosition"`
	Confidence        float64 `json:"confidence"`
	WinProbability    float64 `json:"winProbability"`
	PodiumProbability float64 `json:"podiumProbability"`
}

// JitterFunc returns a value in [-1,1] used to vary the chance of the
// predicted winner.
type JitterFunc func() float64

func RandomJitter() float64 {
	//nolint:gosec // no crypto here
	return rand.Float64()*2 - 1
}

func NoJitter() float64 { return 0 }

// RaceEstimator applies the grid/form heuristic to single drivers.
type RaceEstimator struct {
	jitter JitterFunc
}

func NewRaceEstimator(jitter JitterFunc) *RaceEstimator {
	if jitter == nil {
		jitter = RandomJitter
	}
	return &RaceEstimator{jitter: jitter}
}

// Estimate predicts the finishing position of a driver.
// RecentForm is an average finishing position, so values above neutral
// move the driver back.
func (e *RaceEstimator) Estimate(in RaceInput) RaceOutcome {
	pos := int(float64(in.GridPosition) + (in.RecentForm-neutralForm)*0.5)
	pos = max(1, min(gridSize, pos))

	confidence := 85.0 - math.Abs(float64(pos-in.GridPosition))*5
	confidence = clamp(confidence, minConfidence, maxConfidence)

	return RaceOutcome{
		Driver:            in.Driver,
		PredictedPosition: pos,
		Confidence:        round1(confidence),
		WinProbability:    e.winProbability(pos),
		PodiumProbability: podiumProbability(pos),
	}
}

// EstimateAll estimates all inputs and orders the result by predicted position.
func (e *RaceEstimator) EstimateAll(inputs []RaceInput) []RaceOutcome {
	ret := make([]RaceOutcome, 0, len(inputs))
	for _, in := range inputs {
		ret = append(ret, e.Estimate(in))
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].PredictedPosition < ret[j].PredictedPosition
	})
	return ret
}

func (e *RaceEstimator) winProbability(pos int) float64 {
	switch {
	case pos == 1:
		return round1(winnerBaseChance + e.jitter()*winnerJitter)
	case pos <= 3:
		return round1(20 - float64(pos-1)*7)
	default:
		return round1(math.Max(0.1, float64(5-pos)))
	}
}

func podiumProbability(pos int) float64 {
	switch {
	case pos <= 3:
		return round1(60 + float64(4-pos)*10)
	case pos <= 6:
		return round1(30 - float64(pos-3)*5)
	default:
		return round1(math.Max(1, float64(15-pos)))
	}
}

func round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
