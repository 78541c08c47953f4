package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // served on a separate localhost port
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/api"
	"github.com/mpapenbr/f1-race-predictor/pkg/cmd/cmdutil"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/notify"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils/certs"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

const shutdownTimeout = 5 * time.Second

//nolint:funlen // flag definitions
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the prediction api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Addr,
		"addr",
		"a",
		"localhost:8080",
		"listen address of the http server")
	cmd.Flags().StringVar(&config.LoadDelay,
		"load-delay",
		"0s",
		"delay before the reference data becomes available")
	cmd.Flags().StringVar(&config.LoadTimeout,
		"load-timeout",
		"0s",
		"max duration for loading the reference data (0: wait forever)")
	cmd.Flags().StringSliceVar(&config.DefaultPodium,
		"default-podium",
		nil,
		"podium shown if the dataset has no qualifying results")
	cmd.Flags().BoolVar(&config.WatchDataFile,
		"watch",
		false,
		"reload the reference data when the data file changes")
	cmd.Flags().StringVar(&config.RefreshSchedule,
		"refresh-schedule",
		"",
		"cron expression for recomputing the prediction (e.g. \"*/10 * * * *\")")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish prediction updates to this NATS server")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		notify.DefaultSubject,
		"subject prefix for prediction updates")
	cmd.Flags().StringVar(&config.CacheExpiration,
		"cache-expiration",
		"5m",
		"how long per-race predictions are cached")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout: print to stdout)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"file containing the server certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"file containing the server key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"file containing the CA for client certificates")
	cmd.Flags().StringVar(&config.ACMEStore,
		"acme-store",
		"",
		"traefik acme.json file to take the certificate from")
	cmd.Flags().StringVar(&config.ACMEDomain,
		"acme-domain",
		"",
		"main domain of the certificate in the acme store")
	return cmd
}

//nolint:funlen,cyclop // wiring
func startServer(ctx context.Context) error {
	logger, err := cmdutil.NewLogger(os.Stderr, log.InfoLevel)
	if err != nil {
		return fmt.Errorf("log filter: %w", err)
	}
	log.ResetDefault(logger)
	ctx = log.AddToContext(ctx, logger)
	appConfig := config.Resolve()
	log.Debug("Config:",
		log.String("addr", config.Addr),
		log.String("dataFile", config.DataFile),
		log.String("race", appConfig.RaceID),
		log.String("locale", appConfig.Locale),
		log.Duration("loadDelay", appConfig.LoadDelay),
		log.Duration("loadTimeout", appConfig.LoadTimeout),
		log.String("natsURL", config.NatsURL),
	)

	setupGoRoutinesDump()
	startProfiling()

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}
	if telemetry != nil {
		defer telemetry.Shutdown()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := waitForRequiredServices(ctx); err != nil {
		return err
	}

	src, err := cmdutil.NewSource(logger)
	if err != nil {
		return err
	}
	deriver := predict.NewDeriver(
		predict.WithFormatter(predict.NewFormatter(appConfig.Locale)),
		predict.WithDefaultPodium(appConfig.DefaultPodium),
		predict.WithLogger(logger.Named("predict")))
	vm := viewmodel.New(src,
		viewmodel.WithDeriver(deriver),
		viewmodel.WithRaceID(appConfig.RaceID),
		viewmodel.WithLoadDelay(appConfig.LoadDelay),
		viewmodel.WithLoadTimeout(appConfig.LoadTimeout),
		viewmodel.WithLogger(logger.Named("viewmodel")))
	defer vm.Close()

	apiServer := api.NewServer(vm,
		api.WithCacheExpiration(appConfig.CacheExpiry),
		api.WithConfig(&appConfig),
		api.WithLogger(logger.Named("api")))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.WatchUpdates(gCtx) })

	log.Info("Loading reference data", log.String("source", src.Name()))
	ld := vm.Initialize(gCtx)
	g.Go(func() error {
		if err := ld.Wait(gCtx); err != nil && gCtx.Err() == nil {
			log.Warn("Reference data not available", log.ErrorField(err))
		} else if err == nil {
			log.Info("Reference data loaded")
		}
		return nil
	})

	if err := startWatcher(gCtx, g, src, vm); err != nil {
		return err
	}
	if err := startRefresher(gCtx, g, vm); err != nil {
		return err
	}
	if config.NatsURL != "" {
		conn, err := notify.Connect(config.NatsURL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer conn.Close()
		pub := notify.NewPublisher(conn,
			notify.WithSubject(config.NatsSubject),
			notify.WithLogger(logger.Named("notify")))
		ch := vm.Subscribe()
		g.Go(func() error {
			defer vm.CancelSubscription(ch)
			return pub.Run(gCtx, ch)
		})
	}

	//nolint:gosec // timeouts are set on the relevant parts
	server := &http.Server{
		Addr:              config.Addr,
		Handler:           h2c.NewHandler(apiServer.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          zap.NewStdLog(logger.Named("http").ZapLogger()),
	}
	useTLS, err := configureTLS(gCtx, g, server)
	if err != nil {
		return err
	}
	g.Go(func() error {
		log.Info("Starting server", log.String("addr", config.Addr), log.Bool("tls", useTLS))
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", log.ErrorField(err))
		return err
	}
	log.Info("Server terminated")
	return nil
}

//nolint:whitespace // editor/linter issue
func startWatcher(
	ctx context.Context, g *errgroup.Group, src refdata.Source, vm *viewmodel.ViewModel,
) error {
	if !config.WatchDataFile {
		return nil
	}
	fs, ok := src.(*refdata.FileSource)
	if !ok {
		log.Warn("--watch ignored, no data file configured")
		return nil
	}
	w, err := refdata.NewWatcher(fs.Path(), func(ctx context.Context) {
		if err := vm.Reload(ctx); err != nil {
			log.Warn("reload after file change failed", log.ErrorField(err))
		}
	}, refdata.WithWatcherLogger(log.Default().Named("refdata.watcher")))
	if err != nil {
		return fmt.Errorf("watch %s: %w", fs.Path(), err)
	}
	g.Go(func() error { return w.Run(ctx) })
	return nil
}

func startRefresher(ctx context.Context, g *errgroup.Group, vm *viewmodel.ViewModel) error {
	if config.RefreshSchedule == "" {
		return nil
	}
	r, err := newRefresher(config.RefreshSchedule, func(ctx context.Context) {
		p, err := vm.Recompute(ctx)
		if err != nil {
			log.Warn("scheduled recompute failed", log.ErrorField(err))
			return
		}
		log.Debug("prediction recomputed", log.String("winner", p.Winner))
	}, log.Default().Named("refresh"))
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", config.RefreshSchedule, err)
	}
	log.Info("Scheduled recompute", log.String("schedule", config.RefreshSchedule))
	g.Go(func() error { return r.Run(ctx) })
	return nil
}

// configureTLS sets up the server certificate if one is configured.
func configureTLS(ctx context.Context, g *errgroup.Group, server *http.Server) (bool, error) {
	p, err := certs.NewProvider(
		certs.WithKeyPair(config.TLSCertFile, config.TLSKeyFile),
		certs.WithClientCA(config.TLSCAFile),
		certs.WithACMEStore(config.ACMEStore, config.ACMEDomain),
		certs.WithLogger(log.Default().Named("certs")))
	if errors.Is(err, certs.ErrNoCertificate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tls: %w", err)
	}
	if server.TLSConfig, err = p.TLSConfig(); err != nil {
		return false, fmt.Errorf("tls: %w", err)
	}
	g.Go(func() error {
		if err := p.Watch(ctx); err != nil {
			log.Warn("certificate reload disabled", log.ErrorField(err))
		}
		return nil
	})
	return true, nil
}

func waitForRequiredServices(ctx context.Context) error {
	timeout := config.ParseDuration(config.WaitForServices, 60*time.Second)
	g, gCtx := errgroup.WithContext(ctx)
	if natsAddr := utils.ExtractFromNatsURL(config.NatsURL); natsAddr != "" {
		g.Go(func() error {
			if err := utils.WaitForTCP(gCtx, natsAddr, timeout); err != nil {
				return fmt.Errorf("nats not ready: %w", err)
			}
			return nil
		})
	}
	log.Debug("Waiting for connection checks to return")
	if err := g.Wait(); err != nil {
		return err
	}
	log.Debug("Required services are available")
	return nil
}

func startProfiling() {
	if config.ProfilingPort <= 0 {
		return
	}
	log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
	go func() {
		//nolint:gosec // profiling only
		err := http.ListenAndServe(fmt.Sprintf("localhost:%d", config.ProfilingPort), nil)
		if err != nil {
			log.Error("Profiling server stopped", log.ErrorField(err))
		}
	}()
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
