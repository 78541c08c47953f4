package model

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

type RaceInfo struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Circuit     string `json:"circuit" yaml:"circuit"`
	Track       string `json:"track" yaml:"track"`
	Date        string `json:"date" yaml:"date"`
	Conditions  string `json:"conditions" yaml:"conditions"`
	ModelStatus string `json:"modelStatus" yaml:"modelStatus"`
}

// QualifyingResult is one line of the qualifying classification.
// LapTime uses the format M:SS.mmm
type QualifyingResult struct {
	Position int    `json:"position" yaml:"position"`
	Driver   string `json:"driver" yaml:"driver"`
	Team     string `json:"team" yaml:"team"`
	LapTime  string `json:"time" yaml:"time"`
}

type DriverStat struct {
	FullName  string  `json:"fullName,omitempty" yaml:"fullName"`
	Team      string  `json:"team,omitempty" yaml:"team"`
	Number    int     `json:"number,omitempty" yaml:"number"`
	Points    int     `json:"points,omitempty" yaml:"points"`
	Wins      int     `json:"wins" yaml:"wins"`
	Podiums   int     `json:"podiums" yaml:"podiums"`
	DNFRate   float64 `json:"dnfRate" yaml:"dnfRate"`     // percentage [0,100]
	AvgFinish float64 `json:"avgFinish" yaml:"avgFinish"` // average finishing position
	Form      float64 `json:"form" yaml:"form"`           // percentage [0,100]
}

type WinProbability struct {
	Driver      string  `json:"driver" yaml:"driver"`
	Probability float64 `json:"probability" yaml:"probability"`
	Color       string  `json:"color,omitempty" yaml:"color"`
}

// TrackResult is a past race outcome at a specific track
type TrackResult struct {
	Year   int      `json:"year" yaml:"year"`
	Winner string   `json:"winner" yaml:"winner"`
	Podium []string `json:"podium" yaml:"podium"`
}

// RaceData holds the race specific part of a catalog
type RaceData struct {
	Info             RaceInfo           `json:"info" yaml:"info"`
	Qualifying       []QualifyingResult `json:"qualifying" yaml:"qualifying"`
	WinProbabilities []WinProbability   `json:"winProbabilities" yaml:"winProbabilities"`
}

// Catalog is the complete set of reference data as provided by a source.
type Catalog struct {
	Version       string                   `json:"version" yaml:"version"`
	DefaultPodium []string                 `json:"defaultPodium" yaml:"defaultPodium"`
	DriverStats   map[string]DriverStat    `json:"driverStats" yaml:"driverStats"`
	Models        []ModelResult            `json:"models" yaml:"models"`
	Features      []FeatureImportance      `json:"features" yaml:"features"`
	History       []HistoricalRaceRecord   `json:"history" yaml:"history"`
	TrackHistory  map[string][]TrackResult `json:"trackHistory" yaml:"trackHistory"`
	Races         []RaceData               `json:"races" yaml:"races"`
}

// Dataset is the reference data for a single race.
type Dataset struct {
	Race             RaceInfo               `json:"race"`
	Qualifying       []QualifyingResult     `json:"qualifying"`
	DriverStats      map[string]DriverStat  `json:"driverStats"`
	Models           []ModelResult          `json:"models"`
	Features         []FeatureImportance    `json:"features"`
	WinProbabilities []WinProbability       `json:"winProbabilities"`
	History          []HistoricalRaceRecord `json:"history"`
	DefaultPodium    []string               `json:"defaultPodium"`
}

func (c *Catalog) RaceIDs() []string {
	ret := make([]string, 0, len(c.Races))
	for i := range c.Races {
		ret = append(ret, c.Races[i].Info.ID)
	}
	return ret
}

// Dataset returns the reference data for the given race.
// An empty raceID selects the first race of the catalog.
func (c *Catalog) Dataset(raceID string) (*Dataset, error) {
	if len(c.Races) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no races", ErrDataUnavailable)
	}
	idx := 0
	if raceID != "" {
		idx = slices.IndexFunc(c.Races, func(r RaceData) bool { return r.Info.ID == raceID })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrRaceNotFound, raceID)
		}
	}
	race := c.Races[idx]
	qualifying := slices.Clone(race.Qualifying)
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].Position < qualifying[j].Position
	})
	return &Dataset{
		Race:             race.Info,
		Qualifying:       qualifying,
		DriverStats:      c.DriverStats,
		Models:           slices.Clone(c.Models),
		Features:         slices.Clone(c.Features),
		WinProbabilities: slices.Clone(race.WinProbabilities),
		History:          slices.Clone(c.History),
		DefaultPodium:    slices.Clone(c.DefaultPodium),
	}, nil
}

// TrackResults returns the past results of a track. The lookup ignores case.
func (c *Catalog) TrackResults(track string) ([]TrackResult, error) {
	if res, ok := c.TrackHistory[track]; ok && len(res) > 0 {
		return res, nil
	}
	for name, res := range c.TrackHistory {
		if strings.EqualFold(name, track) && len(res) > 0 {
			return res, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTrackNotFound, track)
}

// HasDriver reports if name is a key of the driver statistics.
func (d *Dataset) HasDriver(name string) bool {
	_, ok := d.DriverStats[name]
	return ok
}

// WinProbabilitySum is reported to consumers as-is. The source data does not
// guarantee a sum of 100.
func (d *Dataset) WinProbabilitySum() float64 {
	sum := 0.0
	for _, w := range d.WinProbabilities {
		sum += w.Probability
	}
	return sum
}
