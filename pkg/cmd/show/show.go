package show

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/cmd/cmdutil"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

const allTabs = "all"

var tabArg string

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "prints the prediction dashboard",
		Long: `Prints the prediction dashboard as tables.
The data is read from the reference data (embedded or --data-file) or from a
running server if --remote-url is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.NewLogger(os.Stderr, log.WarnLevel)
			if err != nil {
				return err
			}
			log.ResetDefault(logger)
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&tabArg,
		"tab",
		allTabs,
		"section to show (all, prediction, models, features, history)")
	cmd.Flags().StringVar(&config.RemoteURL,
		"remote-url",
		"",
		"base url of a prediction server")
	cmd.Flags().StringVar(&config.RemoteTimeout,
		"remote-timeout",
		refdata.DefaultRemoteTimeout.String(),
		"timeout for requests to the prediction server")
	return cmd
}

func parseTabs(s string) ([]model.Tab, error) {
	if s == "" || strings.EqualFold(s, allTabs) {
		return model.Tabs, nil
	}
	tab, err := model.ParseTab(strings.ToLower(s))
	if err != nil {
		return nil, err
	}
	return []model.Tab{tab}, nil
}

func run(ctx context.Context, w io.Writer) error {
	tabs, err := parseTabs(tabArg)
	if err != nil {
		return err
	}
	appConfig := config.Resolve()
	r := &renderer{w: w, format: predict.NewFormatter(appConfig.Locale)}
	if config.RemoteURL != "" {
		return showRemote(ctx, r, appConfig.RaceID)
	}
	src, err := cmdutil.NewSource(log.Default())
	if err != nil {
		return err
	}
	vm := viewmodel.New(src,
		viewmodel.WithDeriver(predict.NewDeriver(
			predict.WithFormatter(r.format),
			predict.WithDefaultPodium(appConfig.DefaultPodium))),
		viewmodel.WithRaceID(appConfig.RaceID))
	defer vm.Close()
	return showLocal(ctx, r, vm, tabs)
}

//nolint:whitespace // editor/linter issue
func showLocal(
	ctx context.Context,
	r *renderer,
	vm *viewmodel.ViewModel,
	tabs []model.Tab,
) error {
	if err := vm.Initialize(ctx).Wait(ctx); err != nil {
		return err
	}
	snap := vm.Snapshot()
	ds, err := vm.Dataset()
	if err != nil {
		return err
	}
	r.race(snap.Race)
	for _, tab := range tabs {
		switch tab {
		case model.TabPrediction:
			r.prediction(snap.Prediction)
			r.qualifying(ds.Qualifying)
			r.winProbabilities(ds.WinProbabilities, ds.WinProbabilitySum())
		case model.TabModels:
			r.models(ds.Models)
		case model.TabFeatures:
			r.features(ds.Features)
		case model.TabHistory:
			acc := vm.ComputeOverallAccuracy(ds.History)
			r.history(ds.History, acc)
		}
	}
	return nil
}

func showRemote(ctx context.Context, r *renderer, raceID string) error {
	base := strings.TrimSuffix(config.RemoteURL, "/")
	wait := config.ParseDuration(config.WaitForServices, 0)
	if wait > 0 {
		if err := utils.WaitForHTTPResponse(ctx, base+"/api/health", wait); err != nil {
			return err
		}
	}
	cli := refdata.NewRemoteClient(base,
		refdata.WithTimeout(config.ParseDuration(config.RemoteTimeout, refdata.DefaultRemoteTimeout)))
	rep, err := cli.FetchPrediction(ctx, raceID)
	if err != nil {
		return fmt.Errorf("fetch prediction from %s: %w", base, err)
	}
	r.report(rep)
	return nil
}
