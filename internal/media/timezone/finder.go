// Package timezone resolves IANA zones from coordinates.
package timezone

import (
	"fmt"
	"time"

	"github.com/ringsaturn/tzf"
)

// lookup is the subset of tzf.F used here.
type lookup interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Finder maps coordinates to an IANA zone name.
type Finder struct {
	lookup lookup
}

// NewFinder loads the embedded timezone polygons.
func NewFinder() (*Finder, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load timezone data: %w", err)
	}
	return &Finder{lookup: f}, nil
}

// Zone returns the IANA zone at (lon, lat), or "" if none is known.
func (f *Finder) Zone(lon, lat float64) string {
	return f.lookup.GetTimezoneName(lon, lat)
}

// Location resolves name to a *time.Location, falling back to fallback when
// name is empty or unknown to the runtime.
func Location(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
