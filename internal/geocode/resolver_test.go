package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terraguard/climate-alerts/internal/models"
)

type stubProvider struct {
	result Result
	err    error
	calls  int
}

func (s *stubProvider) Geocode(ctx context.Context, text string) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestResolve_StaticTableHit(t *testing.T) {
	provider := &stubProvider{err: errors.New("should not be called")}
	r := NewResolver(StaticRegions(), provider)

	got, err := r.Resolve(context.Background(), "  NAIROBI ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Region != "Nairobi" {
		t.Errorf("expected canonical region Nairobi, got %s", got.Region)
	}
	if !got.Coord.Valid() {
		t.Errorf("expected valid coordinates, got %+v", got.Coord)
	}
	if provider.calls != 0 {
		t.Error("table hits must not reach the network provider")
	}
}

func TestResolve_FallsBackToProvider(t *testing.T) {
	provider := &stubProvider{
		result: Result{
			Region: "Lodwar",
			Coord:  models.Coordinate{Latitude: 3.12, Longitude: 35.6},
		},
	}
	r := NewResolver(StaticRegions(), provider)

	got, err := r.Resolve(context.Background(), "some village nobody tabled")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.Region != "Lodwar" {
		t.Errorf("expected provider region, got %s", got.Region)
	}
	if provider.calls != 1 {
		t.Errorf("expected one provider call, got %d", provider.calls)
	}
}

func TestResolve_ProviderFailureIsNotFound(t *testing.T) {
	provider := &stubProvider{err: errors.New("network down")}
	r := NewResolver(StaticRegions(), provider)

	_, err := r.Resolve(context.Background(), "unknown place")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_EmptyInput(t *testing.T) {
	r := NewResolver(StaticRegions(), nil)

	if _, err := r.Resolve(context.Background(), "   "); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for blank input, got %v", err)
	}
}

func TestResolve_InvalidProviderCoordinates(t *testing.T) {
	provider := &stubProvider{
		result: Result{Region: "Nowhere", Coord: models.Coordinate{Latitude: 512, Longitude: 0}},
	}
	r := NewResolver(StaticRegions(), provider)

	if _, err := r.Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for out-of-range coordinates, got %v", err)
	}
}

func TestNominatimClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != nominatimUserAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		if q := r.URL.Query().Get("q"); q != "Kitui" {
			t.Errorf("unexpected query %q", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"-1.3667","lon":"38.0167","display_name":"Kitui, Eastern, Kenya"}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, 5*time.Second)
	got, err := c.Geocode(context.Background(), "Kitui")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if got.Region != "Kitui" {
		t.Errorf("expected leading display name component, got %q", got.Region)
	}
	if got.Coord.Latitude != -1.3667 || got.Coord.Longitude != 38.0167 {
		t.Errorf("unexpected coordinates %+v", got.Coord)
	}
}

func TestNominatimClient_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, 5*time.Second)
	if _, err := c.Geocode(context.Background(), "nowhere at all"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegionFromDisplayName(t *testing.T) {
	cases := map[string]string{
		"Kitui, Eastern, Kenya": "Kitui",
		"Nairobi":               "Nairobi",
		" Mombasa , Coast":      "Mombasa",
	}
	for in, want := range cases {
		if got := regionFromDisplayName(in); got != want {
			t.Errorf("regionFromDisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
