// Package notify publishes prediction updates to NATS.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

const DefaultSubject = "f1p.prediction"

type (
	// Conn is the part of *nats.Conn used by the publisher.
	Conn interface {
		Publish(subject string, data []byte) error
	}

	// Update is the payload published for each new prediction.
	Update struct {
		RaceID     string    `json:"raceId"`
		Generation uint64    `json:"generation"`
		Winner     string    `json:"winner"`
		Model      string    `json:"model"`
		Confidence float64   `json:"confidence"`
		Podium     []string  `json:"podium,omitempty"`
		Timestamp  time.Time `json:"timestamp"`
	}

	Option    func(*Publisher)
	Publisher struct {
		conn    Conn
		subject string
		l       *log.Logger
	}
)

// Connect opens a connection that keeps reconnecting while the service runs.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("f1p"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Default().Named("nats").Warn("disconnected", log.ErrorField(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Default().Named("nats").Info("reconnected", log.String("url", c.ConnectedUrl()))
		}),
	)
}

func WithSubject(subject string) Option {
	return func(p *Publisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func NewPublisher(conn Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:    conn,
		subject: DefaultSubject,
		l:       log.Default().Named("notify"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Subject returns the subject updates for raceID are published on.
func (p *Publisher) Subject(raceID string) string {
	if raceID == "" {
		return p.subject
	}
	return p.subject + "." + subjectToken(raceID)
}

// Publish sends the prediction contained in snap. Snapshots without a
// prediction are ignored.
func (p *Publisher) Publish(snap viewmodel.Snapshot) error {
	u, ok := UpdateFrom(snap)
	if !ok {
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(u.RaceID), data)
}

// Run publishes each new prediction generation received on ch until ctx is
// done or ch is closed. Publish errors are logged, not returned.
func (p *Publisher) Run(ctx context.Context, ch <-chan viewmodel.Snapshot) error {
	var generation uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if snap.Prediction == nil || snap.Generation == generation {
				continue
			}
			generation = snap.Generation
			if err := p.Publish(snap); err != nil {
				p.l.Warn("could not publish prediction",
					log.Uint64("generation", generation), log.ErrorField(err))
				continue
			}
			p.l.Debug("prediction published",
				log.Uint64("generation", generation),
				log.String("winner", snap.Prediction.Winner))
		}
	}
}

func UpdateFrom(snap viewmodel.Snapshot) (Update, bool) {
	if snap.Prediction == nil {
		return Update{}, false
	}
	p := snap.Prediction
	raceID := p.RaceID
	if raceID == "" && snap.Race != nil {
		raceID = snap.Race.ID
	}
	return Update{
		RaceID:     raceID,
		Generation: snap.Generation,
		Winner:     p.Winner,
		Model:      p.Model,
		Confidence: p.ConfidencePercent,
		Podium:     p.Podium,
		Timestamp:  p.Timestamp,
	}, true
}

// subjectToken replaces characters that have a meaning in NATS subjects.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
