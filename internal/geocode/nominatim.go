package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/terraguard/climate-alerts/internal/models"
)

const nominatimUserAgent = "terraguard-climate-alerts/1.0" // required by Nominatim ToS

// NominatimClient implements Provider against the OpenStreetMap Nominatim
// search API.
type NominatimClient struct {
	baseURL    string
	httpClient *http.Client

	// Nominatim allows at most 1 request per second.
	mu       sync.Mutex
	lastCall time.Time
}

func NewNominatimClient(baseURL string, timeout time.Duration) *NominatimClient {
	return &NominatimClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *NominatimClient) Geocode(ctx context.Context, text string) (Result, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", text)

	c.throttle()

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Result{}, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if len(results) == 0 {
		return Result{}, ErrNotFound
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return Result{}, fmt.Errorf("malformed coordinates in response")
	}

	return Result{
		Region: regionFromDisplayName(results[0].DisplayName),
		Coord:  models.Coordinate{Latitude: lat, Longitude: lon},
	}, nil
}

func (c *NominatimClient) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}
	c.lastCall = time.Now()
}

// regionFromDisplayName takes the leading component of a Nominatim display
// name ("Kitui, Eastern, Kenya" -> "Kitui").
func regionFromDisplayName(name string) string {
	if i := strings.Index(name, ","); i > 0 {
		return strings.TrimSpace(name[:i])
	}
	return strings.TrimSpace(name)
}
