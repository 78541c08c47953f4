package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
)

const validYAML = `
version: v1.0.0
driverStats:
  A: {wins: 1, podiums: 2, dnfRate: 1.5, avgFinish: 2.5, form: 80}
models:
  - {name: M1, accuracy: 0.5, predictedWinner: A}
races:
  - info: {id: r1, name: Race 1}
    qualifying:
      - {position: 1, driver: A, team: T, time: "1:22.945"}
    winProbabilities:
      - {driver: A, probability: 70}
`

const inconsistentYAML = `
version: v1.0.0
driverStats:
  A: {wins: 1, podiums: 2, dnfRate: 1.5, avgFinish: 2.5, form: 80}
models:
  - {name: M1, accuracy: 0.5, predictedWinner: A}
  - {name: M1, accuracy: 0.6, predictedWinner: A}
races:
  - info: {id: r1, name: Race 1}
    qualifying:
      - {position: 1, driver: A, team: T, time: "1:22.945"}
      - {position: 3, driver: B, team: T, time: "1:23.945"}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestCheckSource(t *testing.T) {
	tests := []struct {
		name    string
		src     refdata.Source
		wantErr bool
		want    []string
	}{
		{
			name: "embedded",
			src:  refdata.NewEmbeddedSource(),
			want: []string{"embedded: ok (version v1.1.0)", "drivers: 6, models: 4", "race abu-dhabi-2025: 5 qualifying results"},
		},
		{
			name: "probabilities below 100",
			src:  refdata.NewFileSource(writeFile(t, "valid.yml", validYAML)),
			want: []string{"ok (version v1.0.0)", "note: win probabilities add up to 70.0%"},
		},
		{
			name:    "inconsistent",
			src:     refdata.NewFileSource(writeFile(t, "bad.yml", inconsistentYAML)),
			wantErr: true,
			want:    []string{"invalid", `- duplicate model "M1"`, "- race r1: invalid qualifying position 3 for B"},
		},
		{
			name:    "schema",
			src:     refdata.NewFileSource(writeFile(t, "schema.yml", "version: v1.0.0\nmodels: []\n")),
			wantErr: true,
			want:    []string{"invalid", "- /models:"},
		},
		{
			name:    "missing file",
			src:     refdata.NewFileSource(filepath.Join(t.TempDir(), "missing.yml")),
			wantErr: true,
			want:    []string{"invalid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := checkSource(context.Background(), &buf, tt.src)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidData)
			} else {
				assert.NilError(t, err)
			}
			for _, w := range tt.want {
				assert.Assert(t, is.Contains(buf.String(), w))
			}
		})
	}
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "joined",
			err: fmt.Errorf("%w: %w", model.ErrDataUnavailable,
				errors.Join(errors.New("a"), errors.New("b"))),
			want: []string{"a", "b"},
		},
		{
			name: "schema",
			err:  fmt.Errorf("%w: schema: /x: bad; /y: worse", model.ErrDataUnavailable),
			want: []string{"/x: bad", "/y: worse"},
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			want: []string{"boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.DeepEqual(t, findings(tt.err), tt.want)
		})
	}
}
