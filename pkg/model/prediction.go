package model

import (
	"time"

	"github.com/google/uuid"
)

type ModelResult struct {
	Name            string  `json:"name" yaml:"name"`
	Accuracy        float64 `json:"accuracy" yaml:"accuracy"` // [0,1]
	PredictedWinner string  `json:"predictedWinner" yaml:"predictedWinner"`
	Precision       float64 `json:"precision,omitempty" yaml:"precision"`
	Recall          float64 `json:"recall,omitempty" yaml:"recall"`
	F1Score         float64 `json:"f1Score,omitempty" yaml:"f1Score"`
	Status          string  `json:"status,omitempty" yaml:"status"` // active, backup, experimental
	Version         string  `json:"version,omitempty" yaml:"version"`
	Description     string  `json:"description,omitempty" yaml:"description"`
}

type FeatureImportance struct {
	Feature     string  `json:"feature" yaml:"feature"`
	Importance  float64 `json:"importance" yaml:"importance"` // [0,1], no need to sum up to 1
	Description string  `json:"description,omitempty" yaml:"description"`
}

type HistoricalRaceRecord struct {
	RaceName          string  `json:"raceName" yaml:"raceName"`
	Date              string  `json:"date" yaml:"date"`
	PredictedWinner   string  `json:"predictedWinner" yaml:"predictedWinner"`
	ActualWinner      string  `json:"actualWinner" yaml:"actualWinner"`
	ConfidencePercent float64 `json:"confidence" yaml:"confidence"`
}

func (h HistoricalRaceRecord) IsCorrect() bool {
	return h.PredictedWinner == h.ActualWinner
}

// Prediction is derived from model results. It is never modified after
// creation, a recomputation creates a new value.
type Prediction struct {
	ID                uuid.UUID `json:"id"`
	RaceID            string    `json:"raceId,omitempty"`
	Model             string    `json:"model"`
	Winner            string    `json:"winner"`
	ConfidencePercent float64   `json:"confidence"`
	ConfidenceText    string    `json:"confidenceText"`
	Podium            []string  `json:"podium"`
	Timestamp         time.Time `json:"timestamp"`
	TimestampText     string    `json:"timestampText"`
}

type AccuracySummary struct {
	AccuracyPercent float64 `json:"accuracyPercent"`
	CorrectCount    int     `json:"correctCount"`
	TotalCount      int     `json:"totalCount"`
	AvgConfidence   float64 `json:"avgConfidence"`
}

// Err reports ErrDivisionUndefined for summaries computed over no records.
// Callers display the zero values in that case.
func (a AccuracySummary) Err() error {
	if a.TotalCount == 0 {
		return ErrDivisionUndefined
	}
	return nil
}

// PredictionReport is the payload of the prediction backend for a single race.
type PredictionReport struct {
	RaceID     string             `json:"raceId"`
	Model      string             `json:"model,omitempty"`
	Winner     string             `json:"winner"`
	Confidence float64            `json:"confidence"`
	Podium     []string           `json:"podium,omitempty"`
	Qualifying []QualifyingResult `json:"qualifying"`
	Timestamp  time.Time          `json:"timestamp"`
	// formatted for the locale of the request
	TimestampText string `json:"timestampText,omitempty"`
}
