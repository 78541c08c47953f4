package predict

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

const podiumSize = 3

type (
	Option  func(*Deriver)
	Deriver struct {
		clock         func() time.Time
		formatter     *Formatter
		defaultPodium []string
		l             *log.Logger
	}
)

func WithClock(clock func() time.Time) Option {
	return func(d *Deriver) {
		d.clock = clock
	}
}

func WithFormatter(f *Formatter) Option {
	return func(d *Deriver) {
		d.formatter = f
	}
}

// WithDefaultPodium sets the podium used when no qualifying data is present.
func WithDefaultPodium(podium []string) Option {
	return func(d *Deriver) {
		d.defaultPodium = podium
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Deriver) {
		d.l = l
	}
}

func NewDeriver(opts ...Option) *Deriver {
	ret := &Deriver{
		clock:     time.Now,
		formatter: NewFormatter(""),
		l:         log.Default().Named("predict"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Derive creates a new prediction from the model results.
// The model with the highest accuracy wins, on equal accuracy the first one
// in models is used. The podium is taken from the qualifying order. If there
// is no qualifying data the dataset default (if any) or the configured
// default podium is used.
//
//nolint:whitespace // editor/linter issue
func (d *Deriver) Derive(
	models []model.ModelResult,
	qualifying []model.QualifyingResult,
	datasetDefault ...string,
) (*model.Prediction, error) {
	best, err := BestModel(models)
	if err != nil {
		return nil, err
	}
	fallback := d.defaultPodium
	if len(datasetDefault) > 0 {
		fallback = datasetDefault
	}
	now := d.clock()
	confidence := ConfidencePercent(best.Accuracy)
	ret := &model.Prediction{
		ID:                uuid.New(),
		Model:             best.Name,
		Winner:            best.PredictedWinner,
		ConfidencePercent: confidence,
		ConfidenceText:    d.formatter.Percent(confidence),
		Podium:            Podium(qualifying, fallback),
		Timestamp:         now,
		TimestampText:     d.formatter.DateTime(now),
	}
	d.l.Debug("derived prediction",
		log.String("model", ret.Model),
		log.String("winner", ret.Winner),
		log.Float64("confidence", ret.ConfidencePercent))
	return ret, nil
}

// BestModel returns the model with the maximum accuracy.
// Ties are resolved by the order in models: the first one wins.
func BestModel(models []model.ModelResult) (model.ModelResult, error) {
	if len(models) == 0 {
		return model.ModelResult{}, model.ErrNoModelResults
	}
	// lo.MaxBy keeps the current item unless the candidate is strictly greater
	return lo.MaxBy(models, func(item, current model.ModelResult) bool {
		return item.Accuracy > current.Accuracy
	}), nil
}

// ConfidencePercent converts an accuracy [0,1] to a percentage rounded to one
// decimal place. Values outside the range are clamped.
func ConfidencePercent(accuracy float64) float64 {
	v := decimal.NewFromFloat(accuracy).Mul(decimal.NewFromInt(100)).Round(1)
	return clamp(v.InexactFloat64(), 0, 100)
}

// Podium returns up to three drivers ordered by qualifying position.
func Podium(qualifying []model.QualifyingResult, fallback []string) []string {
	if len(qualifying) == 0 {
		return slices.Clone(fallback[:min(podiumSize, len(fallback))])
	}
	sorted := slices.Clone(qualifying)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	return lo.Map(sorted[:min(podiumSize, len(sorted))],
		func(q model.QualifyingResult, _ int) string { return q.Driver })
}

func clamp(v, lower, upper float64) float64 {
	return max(lower, min(upper, v))
}
