package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils/broadcast"
)

// Snapshot is a read-only copy of the view model state.
type Snapshot struct {
	State      model.ViewState        `json:"state"`
	Race       *model.RaceInfo        `json:"race,omitempty"`
	Prediction *model.Prediction      `json:"prediction,omitempty"`
	Accuracy   *model.AccuracySummary `json:"accuracy,omitempty"`
	Generation uint64                 `json:"generation"`
}

// loaded is replaced as a whole, readers never see a dataset combined with
// a prediction of another dataset.
type loaded struct {
	catalog    *model.Catalog
	dataset    *model.Dataset
	prediction *model.Prediction
	accuracy   model.AccuracySummary
	generation uint64
}

type (
	Option    func(*ViewModel)
	ViewModel struct {
		src         refdata.Source
		deriver     *predict.Deriver
		raceID      string
		loadDelay   time.Duration
		loadTimeout time.Duration
		l           *log.Logger
		tracer      trace.Tracer

		mu    sync.RWMutex
		state model.ViewState
		data  atomic.Pointer[loaded]

		initOnce sync.Once
		load     *Load
		updMu    sync.Mutex // serializes data replacements

		pubMu   sync.Mutex
		updates chan Snapshot
		bcast   broadcast.Server[Snapshot]
		ctx     context.Context
		cancel  context.CancelFunc
	}
)

func WithDeriver(d *predict.Deriver) Option {
	return func(vm *ViewModel) {
		vm.deriver = d
	}
}

// WithRaceID selects the race of the catalog. Empty selects the first one.
func WithRaceID(id string) Option {
	return func(vm *ViewModel) {
		vm.raceID = id
	}
}

// WithLoadDelay delays the loading of the reference data.
func WithLoadDelay(d time.Duration) Option {
	return func(vm *ViewModel) {
		vm.loadDelay = d
	}
}

// WithLoadTimeout fails the initial load if it does not resolve in time.
// Zero waits forever.
func WithLoadTimeout(d time.Duration) Option {
	return func(vm *ViewModel) {
		vm.loadTimeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(vm *ViewModel) {
		vm.l = l
	}
}

func New(src refdata.Source, opts ...Option) *ViewModel {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &ViewModel{
		src:     src,
		deriver: predict.NewDeriver(),
		l:       log.Default().Named("viewmodel"),
		tracer:  otel.Tracer("viewmodel"),
		state:   model.InitialViewState(),
		updates: make(chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.bcast = broadcast.NewServer("viewmodel", ret.updates,
		broadcast.WithTelemetry[Snapshot]("snapshot"),
		broadcast.WithLogger[Snapshot](ret.l.Named("broadcast")))
	return ret
}

// Initialize starts loading the reference data. Only the first call starts a
// load, later calls return the same Load.
// The load is detached from the cancellation of ctx.
func (vm *ViewModel) Initialize(ctx context.Context) *Load {
	vm.initOnce.Do(func() {
		vm.load = newLoad()
		vm.publish()
		go vm.runInitialLoad(context.WithoutCancel(ctx), vm.load)
	})
	return vm.load
}

func (vm *ViewModel) runInitialLoad(ctx context.Context, ld *Load) {
	ctx, span := vm.tracer.Start(ctx, "viewmodel.initialize",
		trace.WithAttributes(attribute.String("source", vm.src.Name())))
	defer span.End()
	if vm.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, vm.loadTimeout)
		defer cancel()
	}
	start := time.Now()
	data, err := vm.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		vm.l.Error("could not load reference data",
			log.String("source", vm.src.Name()), log.ErrorField(err))
		vm.updMu.Lock()
		// a reload may have succeeded in the meantime
		if vm.data.Load() == nil {
			vm.mu.Lock()
			vm.state.IsLoading = false
			vm.state.Status = model.StatusFailed
			vm.state.Error = err.Error()
			vm.mu.Unlock()
			vm.publish()
		}
		vm.updMu.Unlock()
		ld.resolve(err)
		return
	}
	vm.l.Info("reference data loaded",
		log.String("source", vm.src.Name()),
		log.String("race", data.dataset.Race.ID),
		log.Duration("duration", time.Since(start)))
	vm.updMu.Lock()
	if vm.data.Load() == nil {
		vm.swap(data)
	}
	vm.updMu.Unlock()
	ld.resolve(nil)
}

// fetch waits for the source. It returns when ctx is done even if the source
// does not honor ctx.
func (vm *ViewModel) fetch(ctx context.Context) (*loaded, error) {
	if vm.loadDelay > 0 {
		select {
		case <-time.After(vm.loadDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, ctx.Err())
		}
	}
	type result struct {
		catalog *model.Catalog
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		c, err := vm.src.Load(ctx)
		resCh <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, ctx.Err())
	case res := <-resCh:
		if res.err != nil {
			return nil, asUnavailable(res.err)
		}
		return vm.build(res.catalog)
	}
}

func (vm *ViewModel) build(c *model.Catalog) (*loaded, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: source returned no catalog", model.ErrDataUnavailable)
	}
	ds, err := c.Dataset(vm.raceID)
	if err != nil {
		return nil, asUnavailable(err)
	}
	p, err := vm.derive(ds, ds.Models)
	if err != nil {
		return nil, asUnavailable(err)
	}
	return &loaded{
		catalog:    c,
		dataset:    ds,
		prediction: p,
		accuracy:   predict.ComputeOverallAccuracy(ds.History),
	}, nil
}

func (vm *ViewModel) derive(ds *model.Dataset, models []model.ModelResult) (*model.Prediction, error) {
	p, err := vm.deriver.Derive(models, ds.Qualifying, ds.DefaultPodium...)
	if err != nil {
		return nil, err
	}
	p.RaceID = ds.Race.ID
	return p, nil
}

func asUnavailable(err error) error {
	if errors.Is(err, model.ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
}

// swap makes data visible and moves the lifecycle to ready.
// The selected driver is kept if the new data still knows it, otherwise the
// predicted winner is selected (if known).
func (vm *ViewModel) swap(data *loaded) {
	vm.mu.Lock()
	if prev := vm.data.Load(); prev != nil {
		data.generation = prev.generation + 1
	} else {
		data.generation = 1
	}
	vm.data.Store(data)
	vm.state.IsLoading = false
	vm.state.Status = model.StatusReady
	vm.state.Error = ""
	if !data.dataset.HasDriver(vm.state.SelectedDriver) {
		vm.state.SelectedDriver = ""
		if data.dataset.HasDriver(data.prediction.Winner) {
			vm.state.SelectedDriver = data.prediction.Winner
		}
	}
	vm.mu.Unlock()
	vm.publish()
}

// SetActiveTab switches the visible tab. This is possible in every
// lifecycle state.
func (vm *ViewModel) SetActiveTab(tab model.Tab) error {
	if _, err := model.ParseTab(string(tab)); err != nil {
		return err
	}
	vm.mu.Lock()
	changed := vm.state.ActiveTab != tab
	vm.state.ActiveTab = tab
	vm.mu.Unlock()
	if changed {
		vm.publish()
	}
	return nil
}

// SetSelectedDriver selects a driver of the driver statistics.
// On error the previous selection is kept.
func (vm *ViewModel) SetSelectedDriver(name string) error {
	// swap replaces data under mu, the check must see the data the
	// selection is made for
	vm.mu.Lock()
	data := vm.data.Load()
	if data == nil {
		vm.mu.Unlock()
		return fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
	}
	if !data.dataset.HasDriver(name) {
		vm.mu.Unlock()
		return fmt.Errorf("%w: %q", model.ErrUnknownDriver, name)
	}
	changed := vm.state.SelectedDriver != name
	vm.state.SelectedDriver = name
	vm.mu.Unlock()
	if changed {
		vm.publish()
	}
	return nil
}

// Recompute derives a new prediction from the current dataset.
// The previous prediction stays visible until the new one is in place.
func (vm *ViewModel) Recompute(ctx context.Context) (*model.Prediction, error) {
	_, span := vm.tracer.Start(ctx, "viewmodel.recompute")
	defer span.End()
	vm.updMu.Lock()
	defer vm.updMu.Unlock()
	cur := vm.data.Load()
	if cur == nil {
		err := fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
		span.RecordError(err)
		return nil, err
	}
	p, err := vm.derive(cur.dataset, cur.dataset.Models)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	vm.swap(&loaded{
		catalog:    cur.catalog,
		dataset:    cur.dataset,
		prediction: p,
		accuracy:   cur.accuracy,
	})
	span.SetAttributes(attribute.String("winner", p.Winner))
	return p, nil
}

// Reload fetches the reference data again. On failure the current data stays
// visible. A successful reload recovers from a failed initial load.
func (vm *ViewModel) Reload(ctx context.Context) error {
	ctx, span := vm.tracer.Start(ctx, "viewmodel.reload")
	defer span.End()
	vm.updMu.Lock()
	defer vm.updMu.Unlock()
	c, err := vm.src.Load(ctx)
	if err != nil {
		err = asUnavailable(err)
		span.RecordError(err)
		vm.l.Warn("reload failed, keeping current data", log.ErrorField(err))
		return err
	}
	data, err := vm.build(c)
	if err != nil {
		span.RecordError(err)
		vm.l.Warn("reload failed, keeping current data", log.ErrorField(err))
		return err
	}
	vm.swap(data)
	vm.l.Info("reference data reloaded", log.String("source", vm.src.Name()))
	return nil
}

// DerivePrediction derives a prediction for the given model results using the
// qualifying order of the current dataset. It does not change the view state.
func (vm *ViewModel) DerivePrediction(models []model.ModelResult) (*model.Prediction, error) {
	ds := &model.Dataset{}
	if cur := vm.data.Load(); cur != nil {
		ds = cur.dataset
	}
	return vm.derive(ds, models)
}

// PredictionFor returns the prediction for a race of the catalog without
// changing the view state. The visible prediction is returned for the race
// of the view.
func (vm *ViewModel) PredictionFor(raceID string) (*model.Prediction, *model.Dataset, error) {
	cur := vm.data.Load()
	if cur == nil {
		return nil, nil, fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
	}
	if raceID == "" || raceID == cur.dataset.Race.ID {
		return cur.prediction, cur.dataset, nil
	}
	ds, err := cur.catalog.Dataset(raceID)
	if err != nil {
		return nil, nil, err
	}
	p, err := vm.derive(ds, ds.Models)
	if err != nil {
		return nil, nil, err
	}
	return p, ds, nil
}

// ComputeOverallAccuracy summarizes the given history.
func (vm *ViewModel) ComputeOverallAccuracy(
	history []model.HistoricalRaceRecord,
) model.AccuracySummary {
	return predict.ComputeOverallAccuracy(history)
}

func (vm *ViewModel) State() model.ViewState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state
}

// Snapshot returns the current state together with the visible prediction.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	ret := Snapshot{State: vm.state}
	if data := vm.data.Load(); data != nil {
		race := data.dataset.Race
		acc := data.accuracy
		ret.Race = &race
		ret.Prediction = data.prediction
		ret.Accuracy = &acc
		ret.Generation = data.generation
	}
	return ret
}

// Dataset returns the dataset of the selected race.
func (vm *ViewModel) Dataset() (*model.Dataset, error) {
	if data := vm.data.Load(); data != nil {
		return data.dataset, nil
	}
	return nil, fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
}

// Catalog returns the complete reference data.
func (vm *ViewModel) Catalog() (*model.Catalog, error) {
	if data := vm.data.Load(); data != nil {
		return data.catalog, nil
	}
	return nil, fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
}

// Prediction returns the visible prediction.
func (vm *ViewModel) Prediction() (*model.Prediction, error) {
	if data := vm.data.Load(); data != nil {
		return data.prediction, nil
	}
	return nil, fmt.Errorf("%w: reference data not loaded", model.ErrDataUnavailable)
}

// Subscribe returns a channel carrying the latest snapshot and all following
// ones. Slow subscribers skip intermediate snapshots.
func (vm *ViewModel) Subscribe() <-chan Snapshot {
	return vm.bcast.Subscribe()
}

func (vm *ViewModel) CancelSubscription(ch <-chan Snapshot) {
	vm.bcast.CancelSubscription(ch)
}

func (vm *ViewModel) Close() {
	vm.cancel()
	vm.bcast.Close()
}

// publish keeps the order of snapshots equal to the order of state changes.
func (vm *ViewModel) publish() {
	vm.pubMu.Lock()
	defer vm.pubMu.Unlock()
	select {
	case vm.updates <- vm.Snapshot():
	case <-vm.ctx.Done():
	}
}
