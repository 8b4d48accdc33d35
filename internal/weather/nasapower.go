package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/terraguard/climate-alerts/internal/models"
)

const (
	powerDateLayout = "20060102"
	paramMaxTemp    = "T2M_MAX"
	paramPrecip     = "PRECTOTCORR"
)

// NASAPowerClient fetches daily climate observations from the NASA POWER
// temporal API. A circuit breaker shields the rate-limited upstream from
// hammering while it is down.
type NASAPowerClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	clock      clockwork.Clock
}

func NewNASAPowerClient(baseURL string, timeout time.Duration, clock clockwork.Clock) *NASAPowerClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NASAPowerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nasa-power",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		clock: clock,
	}
}

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

func (c *NASAPowerClient) FetchWindow(ctx context.Context, coord models.Coordinate, days int) (models.ObservationWindow, error) {
	if !coord.Valid() {
		return nil, &UpstreamError{Err: fmt.Errorf("invalid coordinate: %+v", coord)}
	}
	if days <= 0 {
		return nil, &UpstreamError{Err: fmt.Errorf("invalid window length: %d", days)}
	}

	// The daily feed lags real time, so the window ends yesterday.
	end := c.clock.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))

	params := url.Values{}
	params.Set("parameters", paramMaxTemp+","+paramPrecip)
	params.Set("community", "AG")
	params.Set("latitude", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	params.Set("start", start.Format(powerDateLayout))
	params.Set("end", end.Format(powerDateLayout))
	params.Set("format", "JSON")

	body, err := c.get(ctx, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var data powerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("error decoding response: %w", err)}
	}

	temps := data.Properties.Parameter[paramMaxTemp]
	precips := data.Properties.Parameter[paramPrecip]
	if len(temps) == 0 && len(precips) == 0 {
		return nil, &UpstreamError{Err: fmt.Errorf("response carries no %s/%s data", paramMaxTemp, paramPrecip)}
	}

	// Build exactly days consecutive entries; dates the provider omitted
	// entirely get the sentinel so counts keep their fixed denominator.
	window := make(models.ObservationWindow, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(powerDateLayout)
		window = append(window, models.Observation{
			Date:            d,
			MaxTemperatureC: valueOrSentinel(temps, key),
			PrecipitationMM: valueOrSentinel(precips, key),
		})
	}

	if len(window) != days {
		return nil, &UpstreamError{Err: fmt.Errorf("expected %d observations, built %d", days, len(window))}
	}

	return window, nil
}

func (c *NASAPowerClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Timeouts and connection failures are worth retrying.
			return nil, &UpstreamError{Retryable: isTimeout(err), Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, &UpstreamError{Retryable: true, Err: fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &UpstreamError{Err: fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)}
		}

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &UpstreamError{Retryable: true, Err: err}
		}
		return buf, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// The breaker already knows the upstream is down; an immediate
			// retry would fail the same way.
			return nil, &UpstreamError{Err: err}
		}
		return nil, err
	}
	return result.([]byte), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func valueOrSentinel(values map[string]float64, key string) float64 {
	if v, ok := values[key]; ok {
		return v
	}
	return models.SentinelValue
}
