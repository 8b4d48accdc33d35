package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/terraguard/climate-alerts/internal/models"
)

// ErrNotFound means the text could not be resolved to a coordinate. Ambiguous
// input, provider failures and empty provider results all collapse into this.
var ErrNotFound = errors.New("location not found")

// Result is a resolved location with its canonical region name.
type Result struct {
	Region string
	Coord  models.Coordinate
}

// Provider geocodes free text over the network.
type Provider interface {
	Geocode(ctx context.Context, text string) (Result, error)
}

// Resolver maps free-text place names to coordinates. The static table is
// consulted first; the network provider only sees table misses.
type Resolver struct {
	table    map[string]Region
	provider Provider
}

func NewResolver(table map[string]Region, provider Provider) *Resolver {
	return &Resolver{table: table, provider: provider}
}

// Normalize produces the lookup key for a location string.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (r *Resolver) Resolve(ctx context.Context, text string) (Result, error) {
	key := Normalize(text)
	if key == "" {
		return Result{}, ErrNotFound
	}

	if region, ok := r.table[key]; ok {
		return Result{Region: region.Name, Coord: region.Coord}, nil
	}

	if r.provider == nil {
		return Result{}, ErrNotFound
	}

	res, err := r.provider.Geocode(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("geocoding provider failed", "location", key, "error", err)
		}
		return Result{}, ErrNotFound
	}
	if !res.Coord.Valid() {
		return Result{}, ErrNotFound
	}
	if res.Region == "" {
		res.Region = strings.TrimSpace(text)
	}
	return res, nil
}
