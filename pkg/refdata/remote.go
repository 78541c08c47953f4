package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

const DefaultRemoteTimeout = 10 * time.Second

type (
	RemoteOption func(*RemoteClient)
	// RemoteClient queries a prediction backend for the prediction of a race.
	RemoteClient struct {
		baseURL string
		client  *http.Client
		l       *log.Logger
	}
)

func WithTimeout(d time.Duration) RemoteOption {
	return func(c *RemoteClient) {
		c.client.Timeout = d
	}
}

func WithHTTPClient(cli *http.Client) RemoteOption {
	return func(c *RemoteClient) {
		c.client = cli
	}
}

func NewRemoteClient(baseURL string, opts ...RemoteOption) *RemoteClient {
	ret := &RemoteClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultRemoteTimeout},
		l:       log.Default().Named("refdata.remote"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// FetchPrediction issues GET <base>/api/prediction?race=<raceID>.
// Unknown races yield model.ErrRaceNotFound, all other failures
// model.ErrDataUnavailable.
func (c *RemoteClient) FetchPrediction(
	ctx context.Context,
	raceID string,
) (*model.PredictionReport, error) {
	u := c.baseURL + "/api/prediction"
	if raceID != "" {
		u += "?" + url.Values{"race": {raceID}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()
	c.l.Debug("fetched prediction",
		log.String("url", u),
		log.Int("status", resp.StatusCode),
		log.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", model.ErrRaceNotFound, raceID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: backend responded with %s",
			model.ErrDataUnavailable, resp.Status)
	}
	ret := &model.PredictionReport{}
	if err := json.NewDecoder(resp.Body).Decode(ret); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", model.ErrDataUnavailable, err)
	}
	if ret.Winner == "" {
		return nil, fmt.Errorf("%w: response contains no winner", model.ErrDataUnavailable)
	}
	return ret, nil
}
