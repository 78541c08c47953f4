package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/cmd/cmdutil"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
)

// ErrInvalidData is returned if the checked data contains findings.
var ErrInvalidData = errors.New("reference data is invalid")

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "validates a reference data file",
		Long: `Validates a reference data file against the schema and the consistency
rules. Without a file argument the configured --data-file (or the embedded
data) is checked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.NewLogger(os.Stderr, log.WarnLevel)
			if err != nil {
				return err
			}
			log.ResetDefault(logger)
			if len(args) == 1 {
				config.DataFile = args[0]
			}
			src, err := cmdutil.NewSource(logger)
			if err != nil {
				return err
			}
			return checkSource(cmd.Context(), cmd.OutOrStdout(), src)
		},
	}
	return cmd
}

func checkSource(ctx context.Context, w io.Writer, src refdata.Source) error {
	c, err := src.Load(ctx)
	if err != nil {
		fmt.Fprintf(w, "%s: invalid\n", src.Name())
		for _, f := range findings(err) {
			fmt.Fprintf(w, "  - %s\n", f)
		}
		return ErrInvalidData
	}
	fmt.Fprintf(w, "%s: ok (version %s)\n", src.Name(), c.Version)
	fmt.Fprintf(w, "  drivers: %d, models: %d, features: %d, history: %d\n",
		len(c.DriverStats), len(c.Models), len(c.Features), len(c.History))
	for i := range c.Races {
		r := &c.Races[i]
		fmt.Fprintf(w, "  race %s: %d qualifying results\n", r.Info.ID, len(r.Qualifying))
		if len(r.WinProbabilities) == 0 {
			continue
		}
		ds, err := c.Dataset(r.Info.ID)
		if err != nil {
			continue
		}
		if sum := ds.WinProbabilitySum(); math.Abs(sum-100) > 0.05 {
			fmt.Fprintf(w, "    note: win probabilities add up to %.1f%%\n", sum)
		}
	}
	return nil
}

// findings flattens joined errors into single messages.
func findings(err error) []string {
	var ret []string
	var walk func(error)
	walk = func(e error) {
		if e == nil || e == model.ErrDataUnavailable { //nolint:errorlint // sentinel itself
			return
		}
		if multi, ok := e.(interface{ Unwrap() []error }); ok {
			for _, child := range multi.Unwrap() {
				walk(child)
			}
			return
		}
		msg := strings.TrimPrefix(e.Error(), model.ErrDataUnavailable.Error()+": ")
		for _, part := range strings.Split(strings.TrimPrefix(msg, "schema: "), "; ") {
			ret = append(ret, part)
		}
	}
	walk(err)
	return ret
}
