package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
	"github.com/mpapenbr/f1-race-predictor/pkg/viewmodel"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{subject: subject, data: data})
	return nil
}

func (f *fakeConn) messages() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message{}, f.msgs...)
}

func snapshot(gen uint64, winner string) viewmodel.Snapshot {
	return viewmodel.Snapshot{
		State:      model.ViewState{Status: model.StatusReady},
		Race:       &model.RaceInfo{ID: "abu-dhabi-2025"},
		Generation: gen,
		Prediction: &model.Prediction{
			RaceID:            "abu-dhabi-2025",
			Winner:            winner,
			Model:             "XGBoost",
			ConfidencePercent: 86.2,
			Podium:            []string{winner, "Norris", "Piastri"},
			Timestamp:         time.Date(2026, 1, 4, 16, 55, 54, 0, time.UTC),
		},
	}
}

func TestPublisher_Subject(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		raceID  string
		subject string
	}{
		{name: "default", raceID: "abu-dhabi-2025", subject: "f1p.prediction.abu-dhabi-2025"},
		{name: "custom prefix", opts: []Option{WithSubject("races")}, raceID: "r1", subject: "races.r1"},
		{name: "empty prefix keeps default", opts: []Option{WithSubject("")}, raceID: "r1", subject: "f1p.prediction.r1"},
		{name: "no race", subject: "f1p.prediction"},
		{name: "reserved chars", raceID: "gp 2025.x>*", subject: "f1p.prediction.gp_2025_x__"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(&fakeConn{}, tt.opts...)
			assert.Equal(t, tt.subject, p.Subject(tt.raceID))
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn)

	require.NoError(t, p.Publish(viewmodel.Snapshot{Generation: 1}))
	assert.Empty(t, conn.messages(), "no prediction, nothing published")

	require.NoError(t, p.Publish(snapshot(3, "Verstappen")))
	msgs := conn.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "f1p.prediction.abu-dhabi-2025", msgs[0].subject)

	var u Update
	require.NoError(t, json.Unmarshal(msgs[0].data, &u))
	assert.Equal(t, Update{
		RaceID:     "abu-dhabi-2025",
		Generation: 3,
		Winner:     "Verstappen",
		Model:      "XGBoost",
		Confidence: 86.2,
		Podium:     []string{"Verstappen", "Norris", "Piastri"},
		Timestamp:  time.Date(2026, 1, 4, 16, 55, 54, 0, time.UTC),
	}, u)

	conn.err = errors.New("connection closed")
	assert.Error(t, p.Publish(snapshot(4, "Verstappen")))
}

func TestUpdateFrom_raceFallback(t *testing.T) {
	snap := snapshot(1, "Norris")
	snap.Prediction.RaceID = ""
	u, ok := UpdateFrom(snap)
	require.True(t, ok)
	assert.Equal(t, "abu-dhabi-2025", u.RaceID)
}

func TestPublisher_Run(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn)
	ch := make(chan viewmodel.Snapshot, 5)
	ch <- snapshot(1, "Verstappen")
	ch <- snapshot(1, "Verstappen") // tab change, same generation
	ch <- viewmodel.Snapshot{Generation: 2}
	ch <- snapshot(3, "Norris")
	close(ch)

	require.NoError(t, p.Run(context.Background(), ch))
	msgs := conn.messages()
	require.Len(t, msgs, 2)
	var u Update
	require.NoError(t, json.Unmarshal(msgs[1].data, &u))
	assert.Equal(t, "Norris", u.Winner)
	assert.Equal(t, uint64(3), u.Generation)
}

func TestPublisher_Run_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- NewPublisher(&fakeConn{}).Run(ctx, make(chan viewmodel.Snapshot)) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
