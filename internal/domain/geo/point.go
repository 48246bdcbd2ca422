package geo

import (
	"fmt"
	"math"
	"strings"
)

// Point is a WGS84 coordinate stored in (longitude, latitude) order.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// NewPoint validates the coordinate ranges and returns a Point.
func NewPoint(lon, lat float64) (Point, error) {
	if !ValidateCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("coordinates out of range: lon=%f lat=%f", lon, lat)
	}
	return Point{Lon: lon, Lat: lat}, nil
}

func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lon, p.Lat)
}

// DMS is a degree/minute/second triple as stored in EXIF GPS tags.
type DMS struct {
	Degrees float64
	Minutes float64
	Seconds float64
}

// Decimal converts the triple to signed decimal degrees.
// References "S" and "W" negate the value.
func (d DMS) Decimal(ref string) float64 {
	v := d.Degrees + d.Minutes/60 + d.Seconds/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		return -v
	}
	return v
}

// ToDMS splits decimal degrees into an unsigned triple and its hemisphere reference.
// latitude selects N/S over E/W.
func ToDMS(deg float64, latitude bool) (DMS, string) {
	ref := "E"
	if latitude {
		ref = "N"
	}
	if deg < 0 {
		deg = -deg
		if latitude {
			ref = "S"
		} else {
			ref = "W"
		}
	}
	d := math.Floor(deg)
	rem := (deg - d) * 60
	m := math.Floor(rem)
	s := (rem - m) * 60
	return DMS{Degrees: d, Minutes: m, Seconds: s}, ref
}

// DMSFromSlice builds a triple from the three rationals of an EXIF GPS coordinate.
func DMSFromSlice(v []float64) (DMS, bool) {
	if len(v) != 3 {
		return DMS{}, false
	}
	return DMS{Degrees: v[0], Minutes: v[1], Seconds: v[2]}, true
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
