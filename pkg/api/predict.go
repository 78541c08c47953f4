package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/samber/lo"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
)

const (
	defaultRecentForm  = 5.0
	defaultWeather     = "Clear"
	defaultTemperature = 25.0
	heuristicModel     = "grid-form-heuristic"
)

type (
	predictRequest struct {
		Driver       omit.Val[string]  `json:"driver"`
		Track        omit.Val[string]  `json:"track"`
		GridPosition omit.Val[int]     `json:"gridPosition"`
		RecentForm   omit.Val[float64] `json:"recentForm"`
		Weather      omit.Val[string]  `json:"weather"`
		Temperature  omit.Val[float64] `json:"temperature"`
	}
	predictResponse struct {
		Driver       string              `json:"driver"`
		Track        string              `json:"track"`
		GridPosition int                 `json:"gridPosition"`
		Prediction   predict.RaceOutcome `json:"prediction"`
		Timestamp    time.Time           `json:"timestamp"`
		ModelUsed    string              `json:"modelUsed"`
	}
	batchRequest struct {
		Drivers []predictRequest `json:"drivers"`
	}
	batchEntry struct {
		Driver     string              `json:"driver"`
		Prediction predict.RaceOutcome `json:"prediction"`
	}
	batchResponse struct {
		Predictions []batchEntry `json:"predictions"`
		Timestamp   time.Time    `json:"timestamp"`
	}
)

func (req *predictRequest) toInput() (predict.RaceInput, error) {
	driver, ok := req.Driver.Get()
	if !ok || driver == "" {
		return predict.RaceInput{}, badRequest("missing required field: driver")
	}
	grid, ok := req.GridPosition.Get()
	if !ok {
		return predict.RaceInput{}, badRequest("missing required field: gridPosition")
	}
	if grid < 1 {
		return predict.RaceInput{}, badRequest("gridPosition must be positive, got %d", grid)
	}
	track, ok := req.Track.Get()
	if !ok {
		return predict.RaceInput{}, badRequest("missing required field: track")
	}
	return predict.RaceInput{
		Driver:       driver,
		Track:        track,
		GridPosition: grid,
		RecentForm:   req.RecentForm.GetOr(defaultRecentForm),
		Weather:      req.Weather.GetOr(defaultWeather),
		Temperature:  req.Temperature.GetOr(defaultTemperature),
	}, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := s.estimator.Estimate(in)
	s.l.Info("prediction made",
		log.String("driver", in.Driver), log.Int("position", out.PredictedPosition))
	writeJSON(w, r, http.StatusOK, predictResponse{
		Driver:       in.Driver,
		Track:        in.Track,
		GridPosition: in.GridPosition,
		Prediction:   out,
		Timestamp:    s.clock(),
		ModelUsed:    heuristicModel,
	})
}

// handleBatchPredict rejects the whole batch if one entry is invalid.
func (s *Server) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Drivers) == 0 {
		writeError(w, r, badRequest("no driver data provided"))
		return
	}
	inputs := make([]predict.RaceInput, 0, len(req.Drivers))
	for i := range req.Drivers {
		in, err := req.Drivers[i].toInput()
		if err != nil {
			writeError(w, r, fmt.Errorf("drivers[%d]: %w", i, err))
			return
		}
		inputs = append(inputs, in)
	}
	outcomes := s.estimator.EstimateAll(inputs)
	writeJSON(w, r, http.StatusOK, batchResponse{
		Predictions: lo.Map(outcomes, func(o predict.RaceOutcome, _ int) batchEntry {
			return batchEntry{Driver: o.Driver, Prediction: o}
		}),
		Timestamp: s.clock(),
	})
}
