package server

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mpapenbr/f1-race-predictor/log"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// refresher calls run each time the cron schedule fires.
type refresher struct {
	sched cron.Schedule
	clock func() time.Time
	run   func(ctx context.Context)
	l     *log.Logger
}

// newRefresher accepts 5-field cron expressions and descriptors like
// "@hourly" or "@every 10m".
//
//nolint:whitespace // editor/linter issue
func newRefresher(
	spec string,
	run func(ctx context.Context),
	l *log.Logger,
) (*refresher, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, err
	}
	return &refresher{sched: sched, clock: time.Now, run: run, l: l}, nil
}

func (r *refresher) Run(ctx context.Context) error {
	for {
		now := r.clock()
		next := r.sched.Next(now)
		r.l.Debug("next refresh", log.Time("at", next))
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			r.run(ctx)
		}
	}
}
