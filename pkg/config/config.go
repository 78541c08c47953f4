package config

import (
	"context"
	"time"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	Addr              string // listen addr for the http server
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules applied to the logger
	DataFile          string // path to the reference data file (empty: embedded data)
	DataFormat        string // yaml or json
	DataSelector      string // jsonpath selecting the catalog inside a json document
	RaceID            string // race shown by the dashboard view
	RemoteURL         string // base url of a prediction backend (show command)
	RemoteTimeout     string // timeout for requests to the prediction backend
	LoadDelay         string // simulated delay before reference data becomes available
	LoadTimeout       string // max duration for loading reference data (0: wait forever)
	Locale            string // locale used to format timestamps and percentages
	DefaultPodium     []string
	WatchDataFile     bool   // reload reference data when the data file changes
	RefreshSchedule   string // cron expression for recomputing the prediction
	NatsURL           string // url of the NATS server (empty: disabled)
	NatsSubject       string // subject prefix for prediction updates
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry
	WaitForServices   string // duration to wait for other services to be ready
	CacheExpiration   string // how long per-race predictions are cached
	TLSCertFile       string // file containing the server certificate
	TLSKeyFile        string // file containing the server key
	TLSCAFile         string // file containing the CA for client certificates
	ACMEStore         string // traefik acme.json file to take the certificate from
	ACMEDomain        string // main domain of the certificate in the acme store
	ProfilingPort     int    // port for pprof (0: disabled)
)

// Config holds the configuration values which are used by the application
type Config struct {
	RaceID        string
	Locale        string
	DefaultPodium []string
	LoadDelay     time.Duration
	LoadTimeout   time.Duration
	CacheExpiry   time.Duration
}

// Resolve converts the raw CLI values into a Config.
// Invalid durations fall back to the given defaults.
func Resolve() Config {
	return Config{
		RaceID:        RaceID,
		Locale:        Locale,
		DefaultPodium: DefaultPodium,
		LoadDelay:     ParseDuration(LoadDelay, 0),
		LoadTimeout:   ParseDuration(LoadTimeout, 0),
		CacheExpiry:   ParseDuration(CacheExpiration, 5*time.Minute),
	}
}

func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

type ctxConfigKey struct{}

func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxConfigKey{}, cfg)
}

func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxConfigKey{}).(*Config); ok {
		return cfg
	}
	return nil
}
