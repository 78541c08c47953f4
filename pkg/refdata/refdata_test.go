//nolint:funlen,lll // ok for tests
package refdata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

const minimalYAML = `
version: v1.0.0
driverStats:
  A: {wins: 1, podiums: 2, dnfRate: 1.5, avgFinish: 2.5, form: 80}
models:
  - {name: M1, accuracy: 0.5, predictedWinner: A}
races:
  - info: {id: r1, name: Race 1}
    qualifying:
      - {position: 1, driver: A, team: T, time: "1:22.945"}
`

const minimalJSON = `{
  "payload": {
    "catalog": {
      "version": "1.2.0",
      "driverStats": {"A": {"wins": 1, "podiums": 2, "dnfRate": 1.5, "avgFinish": 2.5, "form": 80}},
      "models": [{"name": "M1", "accuracy": 0.5, "predictedWinner": "A"}],
      "races": [{"info": {"id": "r1", "name": "Race 1"},
                 "qualifying": [{"position": 1, "driver": "A", "team": "T", "time": "1:22.945"}]}]
    }
  }
}`

func TestEmbeddedSource_Load(t *testing.T) {
	c, err := NewEmbeddedSource().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", c.Version)
	assert.Len(t, c.Models, 4)
	assert.Len(t, c.Features, 6)
	assert.Len(t, c.History, 4)
	assert.Contains(t, c.DriverStats, "Verstappen")
	assert.Equal(t, []string{"abu-dhabi-2025"}, c.RaceIDs())

	ds, err := c.Dataset("")
	require.NoError(t, err)
	assert.Equal(t, "Yas Marina Circuit", ds.Race.Circuit)
	assert.Equal(t, "1:22.945", ds.Qualifying[0].LapTime)
	assert.InDelta(t, 100.0, ds.WinProbabilitySum(), 0.001)
}

func TestEmbeddedSource_Load_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbeddedSource().Load(ctx)
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeYAML(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "valid", data: minimalYAML},
		{name: "broken yaml", data: "version: [", wantErr: "parse yaml"},
		{name: "no models", data: strings.Replace(minimalYAML,
			"models:\n  - {name: M1, accuracy: 0.5, predictedWinner: A}", "models: []", 1),
			wantErr: "/models"},
		{name: "accuracy out of range", data: strings.Replace(minimalYAML, "accuracy: 0.5", "accuracy: 1.5", 1),
			wantErr: "/models/0/accuracy"},
		{name: "bad lap time", data: strings.Replace(minimalYAML, `"1:22.945"`, `"82.945"`, 1),
			wantErr: "/races/0/qualifying/0/time"},
		{name: "unsupported major", data: strings.Replace(minimalYAML, "v1.0.0", "v2.0.0", 1),
			wantErr: "not supported"},
		{name: "duplicate model", data: strings.Replace(minimalYAML,
			"  - {name: M1, accuracy: 0.5, predictedWinner: A}",
			"  - {name: M1, accuracy: 0.5, predictedWinner: A}\n  - {name: M1, accuracy: 0.6, predictedWinner: A}", 1),
			wantErr: `duplicate model "M1"`},
		{name: "position gap", data: strings.Replace(minimalYAML, "position: 1", "position: 2", 1),
			wantErr: "invalid qualifying position 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeYAML([]byte(tt.data))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "M1", c.Models[0].Name)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrDataUnavailable)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		wantErr  bool
	}{
		{name: "direct path", selector: "$.payload.catalog"},
		{name: "descendant", selector: "$..catalog"},
		{name: "no match", selector: "$.nothing", wantErr: true},
		{name: "invalid selector", selector: "$[", wantErr: true},
		{name: "whole document", selector: "$", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := DecodeJSON([]byte(minimalJSON), tt.selector)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrDataUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "1.2.0", c.Version)
			assert.Equal(t, 2.5, c.DriverStats["A"].AvgFinish)
			assert.Equal(t, 1, c.Races[0].Qualifying[0].Position)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"v1.0.0", false},
		{"1.1.0", false},
		{"v1.3", false},
		{"v0.9.0", true},
		{"v2.0.0", true},
		{"", true},
		{"latest", true},
	}
	for _, tt := range tests {
		err := CheckVersion(tt.version)
		if tt.wantErr {
			assert.ErrorIs(t, err, model.ErrDataUnavailable, tt.version)
		} else {
			assert.NoError(t, err, tt.version)
		}
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "catalog.yaml")
	jsonFile := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(yamlFile, []byte(minimalYAML), 0o600))
	require.NoError(t, os.WriteFile(jsonFile, []byte(minimalJSON), 0o600))

	c, err := NewFileSource(yamlFile).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", c.Version)

	c, err = NewFileSource(jsonFile, WithSelector("$.payload.catalog")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", c.Version)

	_, err = NewFileSource(jsonFile, WithFormat(FormatYAML)).Load(context.Background())
	assert.ErrorIs(t, err, model.ErrDataUnavailable, "json root is not a catalog")

	_, err = NewFileSource(filepath.Join(dir, "missing.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("toml")
	assert.Error(t, err)
}
