// Package cmdutil holds setup code shared by the commands.
package cmdutil

import (
	"io"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/config"
	"github.com/mpapenbr/f1-race-predictor/pkg/refdata"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// NewLogger creates the logger configured by the log flags.
// defaultLevel is used if the configured level is invalid.
func NewLogger(w io.Writer, defaultLevel log.Level) (*log.Logger, error) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilterRules(config.LogFilter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, filter)
	}
	level := ParseLogLevel(config.LogLevel, defaultLevel)
	if config.LogFormat == "json" {
		return log.New(w, level, opts...), nil
	}
	return log.DevLogger(w, level, opts...), nil
}

// NewSource returns the configured reference data source.
// Without a data file the embedded data is used.
func NewSource(l *log.Logger) (refdata.Source, error) {
	if config.DataFile == "" {
		return refdata.NewEmbeddedSource(), nil
	}
	opts := []refdata.FileOption{
		refdata.WithSelector(config.DataSelector),
		refdata.WithFileLogger(l.Named("refdata")),
	}
	if config.DataFormat != "" {
		f, err := refdata.ParseFormat(config.DataFormat)
		if err != nil {
			return nil, err
		}
		opts = append(opts, refdata.WithFormat(f))
	}
	return refdata.NewFileSource(config.DataFile, opts...), nil
}
