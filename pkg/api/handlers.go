package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/version"
)

const healthy = "healthy"

type (
	healthResponse struct {
		Status       string           `json:"status"`
		Lifecycle    model.LoadStatus `json:"lifecycle"`
		Timestamp    time.Time        `json:"timestamp"`
		Version      string           `json:"version"`
		ModelsLoaded bool             `json:"modelsLoaded"`
		Generation   uint64           `json:"generation"`
	}
	driverEntry struct {
		Name string `json:"name"`
		model.DriverStat
	}
	driversResponse struct {
		Drivers  []driverEntry `json:"drivers"`
		Count    int           `json:"count"`
		Selected string        `json:"selected,omitempty"`
	}
	modelsResponse struct {
		Models    []model.ModelResult `json:"models"`
		BestModel string              `json:"bestModel"`
		Features  []string            `json:"features"`
		Count     int                 `json:"count"`
	}
	featuresResponse struct {
		Model         string                    `json:"model"`
		Features      []model.FeatureImportance `json:"features"`
		TotalFeatures int                       `json:"totalFeatures"`
	}
	historyEntry struct {
		model.HistoricalRaceRecord
		IsCorrect bool `json:"isCorrect"`
	}
	historyResponse struct {
		History  []historyEntry        `json:"history"`
		Accuracy model.AccuracySummary `json:"accuracy"`
	}
	trackHistoryResponse struct {
		Track      string              `json:"track"`
		Races      []model.TrackResult `json:"races"`
		TotalRaces int                 `json:"totalRaces"`
	}
	raceDriverPrediction struct {
		Driver          string  `json:"driver"`
		Team            string  `json:"team"`
		Grid            int     `json:"grid"`
		PredictedFinish int     `json:"predictedFinish"`
		WinProbability  float64 `json:"winProbability"`
		Confidence      float64 `json:"confidence"`
	}
	raceResponse struct {
		Race                model.RaceInfo           `json:"race"`
		Qualifying          []model.QualifyingResult `json:"qualifying"`
		WinProbabilities    []model.WinProbability   `json:"winProbabilities"`
		WinProbabilitySum   float64                  `json:"winProbabilitySum"`
		Predictions         []raceDriverPrediction   `json:"predictions"`
		PredictedWinner     string                   `json:"predictedWinner"`
		Confidence          float64                  `json:"confidence"`
		PredictionTimestamp time.Time                `json:"predictionTimestamp"`
	}
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.vm.Snapshot()
	resp := healthResponse{
		Status:     string(snap.State.Status),
		Lifecycle:  snap.State.Status,
		Timestamp:  s.clock(),
		Version:    version.Version,
		Generation: snap.Generation,
	}
	if snap.State.Status == model.StatusReady {
		resp.Status = healthy
	}
	if ds, err := s.vm.Dataset(); err == nil {
		resp.ModelsLoaded = len(ds.Models) > 0
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleDrivers(w http.ResponseWriter, r *http.Request) {
	ds, err := s.vm.Dataset()
	if err != nil {
		writeError(w, r, err)
		return
	}
	drivers := lo.MapToSlice(ds.DriverStats, func(name string, stat model.DriverStat) driverEntry {
		return driverEntry{Name: name, DriverStat: stat}
	})
	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Points != drivers[j].Points {
			return drivers[i].Points > drivers[j].Points
		}
		return drivers[i].Name < drivers[j].Name
	})
	writeJSON(w, r, http.StatusOK, driversResponse{
		Drivers:  drivers,
		Count:    len(drivers),
		Selected: s.vm.State().SelectedDriver,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ds, err := s.vm.Dataset()
	if err != nil {
		writeError(w, r, err)
		return
	}
	best, err := predict.BestModel(ds.Models)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, modelsResponse{
		Models:    ds.Models,
		BestModel: best.Name,
		Features: lo.Map(ds.Features, func(f model.FeatureImportance, _ int) string {
			return f.Feature
		}),
		Count: len(ds.Models),
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	ds, err := s.vm.Dataset()
	if err != nil {
		writeError(w, r, err)
		return
	}
	best, err := predict.BestModel(ds.Models)
	if err != nil {
		writeError(w, r, err)
		return
	}
	features := append([]model.FeatureImportance{}, ds.Features...)
	sort.SliceStable(features, func(i, j int) bool {
		return features[i].Importance > features[j].Importance
	})
	writeJSON(w, r, http.StatusOK, featuresResponse{
		Model:         best.Name,
		Features:      features,
		TotalFeatures: len(features),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ds, err := s.vm.Dataset()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, historyResponse{
		History: lo.Map(ds.History, func(h model.HistoricalRaceRecord, _ int) historyEntry {
			return historyEntry{HistoricalRaceRecord: h, IsCorrect: h.IsCorrect()}
		}),
		Accuracy: s.vm.ComputeOverallAccuracy(ds.History),
	})
}

func (s *Server) handleTrackHistory(w http.ResponseWriter, r *http.Request) {
	c, err := s.vm.Catalog()
	if err != nil {
		writeError(w, r, err)
		return
	}
	track := mux.Vars(r)["track"]
	races, err := c.TrackResults(track)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trackHistoryResponse{
		Track:      track,
		Races:      races,
		TotalRaces: len(races),
	})
}

// handlePrediction serves the report of the current data generation, a
// recompute or reload is visible to the next request.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	key := reportKey{
		raceID:     r.URL.Query().Get("race"),
		generation: s.vm.Snapshot().Generation,
	}
	report, err := s.predictions.Get(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret := *report
	ret.TimestampText = s.formatter(r).DateTime(ret.Timestamp)
	writeJSON(w, r, http.StatusOK, ret)
}

// formatter uses the locale query parameter, then the configured locale.
func (s *Server) formatter(r *http.Request) *predict.Formatter {
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		if cfg := config.FromContext(r.Context()); cfg != nil {
			locale = cfg.Locale
		}
	}
	return predict.NewFormatter(locale)
}

func (s *Server) loadReport(_ context.Context, key reportKey) (*model.PredictionReport, error) {
	p, ds, err := s.vm.PredictionFor(key.raceID)
	if err != nil {
		return nil, err
	}
	return &model.PredictionReport{
		RaceID:     ds.Race.ID,
		Model:      p.Model,
		Winner:     p.Winner,
		Confidence: p.ConfidencePercent,
		Podium:     p.Podium,
		Qualifying: ds.Qualifying,
		Timestamp:  p.Timestamp,
	}, nil
}

// handleRace applies the grid heuristic to each qualified driver with
// neutral form.
func (s *Server) handleRace(w http.ResponseWriter, r *http.Request) {
	p, ds, err := s.vm.PredictionFor(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	predictions := lo.Map(ds.Qualifying, func(q model.QualifyingResult, _ int) raceDriverPrediction {
		out := s.estimator.Estimate(predict.RaceInput{
			Driver:       q.Driver,
			Track:        ds.Race.Track,
			GridPosition: q.Position,
			RecentForm:   defaultRecentForm,
		})
		return raceDriverPrediction{
			Driver:          q.Driver,
			Team:            q.Team,
			Grid:            q.Position,
			PredictedFinish: out.PredictedPosition,
			WinProbability:  out.WinProbability,
			Confidence:      out.Confidence,
		}
	})
	writeJSON(w, r, http.StatusOK, raceResponse{
		Race:                ds.Race,
		Qualifying:          ds.Qualifying,
		WinProbabilities:    ds.WinProbabilities,
		WinProbabilitySum:   ds.WinProbabilitySum(),
		Predictions:         predictions,
		PredictedWinner:     p.Winner,
		Confidence:          p.ConfidencePercent,
		PredictionTimestamp: p.Timestamp,
	})
}
