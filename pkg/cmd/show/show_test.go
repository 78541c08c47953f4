package show

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

func newRenderer(buf *bytes.Buffer) *renderer {
	return &renderer{w: buf, format: predict.NewFormatter("en-US", predict.WithLocation(time.UTC))}
}

func TestParseTabs(t *testing.T) {
	tests := []struct {
		in      string
		want    []model.Tab
		wantErr bool
	}{
		{in: "", want: model.Tabs},
		{in: "all", want: model.Tabs},
		{in: "ALL", want: model.Tabs},
		{in: "models", want: []model.Tab{model.TabModels}},
		{in: "History", want: []model.Tab{model.TabHistory}},
		{in: "settings", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTabs(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrUnknownTab)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShowLocal(t *testing.T) {
	tests := []struct {
		name    string
		tabs    []model.Tab
		want    []string
		notWant []string
	}{
		{
			name:    "prediction",
			tabs:    []model.Tab{model.TabPrediction},
			want:    []string{"Abu Dhabi Grand Prix 2025", "Predicted winner", "Verstappen", "86.2%", "Qualifying", "1:22.945", "100.0%"},
			notWant: []string{"Models", "Prediction history", "note:"},
		},
		{
			name: "models",
			tabs: []model.Tab{model.TabModels},
			want: []string{"Models", "XGBoost", "86.2%", "experimental"},
		},
		{
			name: "features",
			tabs: []model.Tab{model.TabFeatures},
			want: []string{"Feature importance", "Qualifying Position", "38.5%"},
		},
		{
			name: "history",
			tabs: []model.Tab{model.TabHistory},
			want: []string{"Prediction history", "Mexico City Grand Prix 2024", "miss", "3/4", "75.0%", "77.1%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			vm := viewmodel.New(refdata.NewEmbeddedSource())
			defer vm.Close()
			require.NoError(t, showLocal(context.Background(), newRenderer(&buf), vm, tt.tabs))
			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestRenderer_winProbabilitiesNote(t *testing.T) {
	var buf bytes.Buffer
	newRenderer(&buf).winProbabilities([]model.WinProbability{
		{Driver: "A", Probability: 60},
		{Driver: "B", Probability: 30},
	}, 90)
	assert.Contains(t, buf.String(), "note: probabilities add up to 90.0%")
}

func TestShowRemote(t *testing.T) {
	defer func(url, wait string) {
		config.RemoteURL, config.WaitForServices = url, wait
	}(config.RemoteURL, config.WaitForServices)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		case "/api/prediction":
			if r.URL.Query().Get("race") == "nope" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(model.PredictionReport{
				RaceID:     "abu-dhabi-2025",
				Winner:     "Norris",
				Confidence: 80.5,
				Podium:     []string{"Norris", "Piastri", "Verstappen"},
				Qualifying: []model.QualifyingResult{{Position: 1, Driver: "Norris", Team: "McLaren", LapTime: "1:22.900"}},
				Timestamp:  time.Date(2026, 1, 4, 16, 55, 54, 0, time.UTC),
			})
		}
	}))
	defer srv.Close()
	config.RemoteURL, config.WaitForServices = srv.URL+"/", "1s"

	var buf bytes.Buffer
	require.NoError(t, showRemote(context.Background(), newRenderer(&buf), ""))
	out := buf.String()
	for _, w := range []string{"Prediction abu-dhabi-2025", "Norris", "80.5%", "Norris, Piastri, Verstappen", "1/4/2026, 4:55:54 PM", "1:22.900"} {
		assert.Contains(t, out, w)
	}

	err := showRemote(context.Background(), newRenderer(&buf), "nope")
	assert.ErrorIs(t, err, model.ErrRaceNotFound)
}
