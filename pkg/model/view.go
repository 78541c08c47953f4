package model

import "fmt"

type Tab string

const (
	TabPrediction Tab = "prediction"
	TabModels     Tab = "models"
	TabFeatures   Tab = "features"
	TabHistory    Tab = "history"
)

var Tabs = []Tab{TabPrediction, TabModels, TabFeatures, TabHistory}

func ParseTab(s string) (Tab, error) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
}

type LoadStatus string

const (
	StatusLoading LoadStatus = "loading"
	StatusReady   LoadStatus = "ready"
	StatusFailed  LoadStatus = "failed"
)

// ViewState is the session local state of the dashboard view.
type ViewState struct {
	ActiveTab      Tab        `json:"activeTab"`
	SelectedDriver string     `json:"selectedDriver"`
	IsLoading      bool       `json:"isLoading"`
	Status         LoadStatus `json:"status"`
	Error          string     `json:"error,omitempty"`
}

func InitialViewState() ViewState {
	return ViewState{
		ActiveTab: TabPrediction,
		IsLoading: true,
		Status:    StatusLoading,
	}
}
