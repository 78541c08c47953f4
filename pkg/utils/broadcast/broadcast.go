package broadcast

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/f1-race-predictor/log"
)

// Server distributes the values of a source channel to all subscribers.
// Subscribers always receive the latest value: a subscriber that has not
// consumed the previous value gets it replaced by the new one.
type Server[T any] interface {
	// Subscribe returns a channel which immediately carries the latest value
	// (if any) followed by all subsequent values.
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type (
	Option[T any] func(*server[T])
	server[T any] struct {
		name           string
		eventKey       string
		source         <-chan T
		listeners      []chan T
		addListener    chan chan T
		removeListener chan (<-chan T)
		ctx            context.Context
		cancel         context.CancelFunc
		latest         *T
		numRcv         atomic.Int64
		numSnd         atomic.Int64
		numSkip        atomic.Int64
		numListener    atomic.Int64
		l              *log.Logger
	}
)

// WithTelemetry registers observable gauges tagged with eventKey.
func WithTelemetry[T any](eventKey string) Option[T] {
	return func(b *server[T]) {
		b.eventKey = eventKey
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *server[T]) {
		b.l = l
	}
}

// NewServer starts the distribution of source. The server stops when
// Close is called or source is closed.
func NewServer[T any](name string, source <-chan T, opts ...Option[T]) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &server[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.eventKey != "" {
		b.setupMetrics()
	}
	go b.serve()
	return b
}

func (b *server[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *server[T]) Close() {
	b.l.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("f1p.broadcast.%s", b.name))
	attrs := metric.WithAttributes(
		attribute.String("name", b.name),
		attribute.String("event", b.eventKey),
	)
	for _, d := range []struct {
		name  string
		desc  string
		value *atomic.Int64
	}{
		{"f1p.broadcast.rcv", "Number of received messages", &b.numRcv},
		{"f1p.broadcast.snd", "Number of sent messages", &b.numSnd},
		{"f1p.broadcast.skip", "Number of replaced messages", &b.numSkip},
		{"f1p.broadcast.listener", "Number of listeners", &b.numListener},
	} {
		value := d.value
		if _, err := meter.Int64ObservableGauge(
			d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(), attrs)
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", d.name),
				log.ErrorField(err))
		}
	}
}

//nolint:cyclop // event loop
func (b *server[T]) serve() {
	defer func() {
		b.l.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
		b.cancel()
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
			if b.latest != nil {
				b.deliver(ch, *b.latest)
			}
		case ch := <-b.removeListener:
			idx := slices.IndexFunc(b.listeners, func(l chan T) bool { return l == ch })
			if idx >= 0 {
				close(b.listeners[idx])
				b.listeners = slices.Delete(b.listeners, idx, idx+1)
				b.numListener.Store(int64(len(b.listeners)))
			}
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				return
			}
			b.numRcv.Add(1)
			b.latest = &msg
			for _, listener := range b.listeners {
				b.deliver(listener, msg)
			}
		}
	}
}

// deliver never blocks. An unconsumed value is dropped in favor of msg.
func (b *server[T]) deliver(ch chan T, msg T) {
	select {
	case ch <- msg:
		b.numSnd.Add(1)
		return
	default:
	}
	select {
	case <-ch:
		b.numSkip.Add(1)
	default:
	}
	select {
	case ch <- msg:
		b.numSnd.Add(1)
	default:
		b.numSkip.Add(1)
	}
}
