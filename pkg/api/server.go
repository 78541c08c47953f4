package api

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"connectrpc.com/otelconnect"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/predict"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils/cache"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils/cache/loadercache"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

// PredictionService is the service name reported by the grpc health check.
const PredictionService = "f1p.prediction.v1.PredictionService"

type (
	Option func(*Server)
	// reportKey binds a cached report to the data generation it was built from.
	reportKey struct {
		raceID     string
		generation uint64
	}
	Server struct {
		vm          *viewmodel.ViewModel
		estimator   *predict.RaceEstimator
		predictions cache.Cache[reportKey, model.PredictionReport]
		cacheExpiry time.Duration
		cfg         *config.Config
		clock       func() time.Time
		health      *grpchealth.StaticChecker
		upgrader    websocket.Upgrader
		l           *log.Logger
	}
)

func WithEstimator(e *predict.RaceEstimator) Option {
	return func(s *Server) {
		s.estimator = e
	}
}

// WithCacheExpiration sets how long per-race predictions are cached.
func WithCacheExpiration(d time.Duration) Option {
	return func(s *Server) {
		s.cacheExpiry = d
	}
}

// WithConfig makes cfg available to the request contexts.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func NewServer(vm *viewmodel.ViewModel, opts ...Option) *Server {
	ret := &Server{
		vm:          vm,
		estimator:   predict.NewRaceEstimator(nil),
		cacheExpiry: 5 * time.Minute,
		clock:       time.Now,
		health:      grpchealth.NewStaticChecker(PredictionService),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		l: log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.predictions = loadercache.New(
		loadercache.WithExpiration[reportKey, model.PredictionReport](ret.cacheExpiry),
		loadercache.WithLoader[reportKey, model.PredictionReport](ret.loadReport),
		loadercache.WithLogger[reportKey, model.PredictionReport](ret.l.Named("cache")),
	)
	ret.syncHealth(vm.Snapshot())
	return ret
}

// Handler returns the root handler of the api including CORS handling.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, req, http.StatusNotFound, errorResponse{Error: "endpoint not found"})
	})
	r.Use(s.contextMiddleware)
	// websocket connections must not pass the compressing middleware
	r.HandleFunc("/api/ws", s.handleWS).Methods(http.MethodGet)
	s.registerHealth(r)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(otelMiddleware, gzipMiddleware)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/drivers", s.handleDrivers).Methods(http.MethodGet)
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/features/importance", s.handleFeatures).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{track}", s.handleTrackHistory).Methods(http.MethodGet)
	api.HandleFunc("/prediction", s.handlePrediction).Methods(http.MethodGet)
	api.HandleFunc("/race/{id}", s.handleRace).Methods(http.MethodGet)
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predict/batch", s.handleBatchPredict).Methods(http.MethodPost)
	api.HandleFunc("/view", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/view/tab", s.handleViewTab).Methods(http.MethodPost)
	api.HandleFunc("/view/driver", s.handleViewDriver).Methods(http.MethodPost)
	api.HandleFunc("/view/recompute", s.handleViewRecompute).Methods(http.MethodPost)
	return newCORS().Handler(r)
}

func (s *Server) registerHealth(r *mux.Router) {
	var handlerOpts []connect.HandlerOption
	if otelInterceptor, err := otelconnect.NewInterceptor(); err == nil {
		handlerOpts = append(handlerOpts, connect.WithInterceptors(otelInterceptor))
	} else {
		s.l.Warn("could not create otel interceptor", log.ErrorField(err))
	}
	path, handler := grpchealth.NewHandler(s.health, handlerOpts...)
	r.PathPrefix(path).Handler(handler)

	reflector := grpcreflect.NewStaticReflector(
		grpchealth.HealthV1ServiceName,
		grpcreflect.ReflectV1ServiceName,
		grpcreflect.ReflectV1AlphaServiceName,
	)
	path, handler = grpcreflect.NewHandlerV1(reflector)
	r.PathPrefix(path).Handler(handler)
	path, handler = grpcreflect.NewHandlerV1Alpha(reflector)
	r.PathPrefix(path).Handler(handler)
}

// WatchUpdates keeps the health status in sync with the view model and drops
// cached reports of outdated generations until ctx is done.
func (s *Server) WatchUpdates(ctx context.Context) error {
	ch := s.vm.Subscribe()
	defer s.vm.CancelSubscription(ch)
	var generation uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			s.syncHealth(snap)
			if snap.Generation != generation {
				generation = snap.Generation
				s.predictions.InvalidateAll(ctx)
			}
		}
	}
}

func (s *Server) syncHealth(snap viewmodel.Snapshot) {
	status := grpchealth.StatusNotServing
	if snap.State.Status == model.StatusReady {
		status = grpchealth.StatusServing
	}
	s.health.SetStatus(PredictionService, status)
	s.health.SetStatus("", status)
}

func (s *Server) contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.AddToContext(r.Context(), s.l)
		if s.cfg != nil {
			ctx = config.NewContext(ctx, s.cfg)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func otelMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					return r.Method + " " + tpl
				}
			}
			return r.Method + " " + r.URL.Path
		}))
}

func gzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func newCORS() *cors.Cors {
	// permissive setup, the api is consumed by browser dashboards
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
