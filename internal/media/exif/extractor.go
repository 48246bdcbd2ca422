// Package exif reads capture metadata from image files.
package exif

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/kailas-cloud/photodex/internal/domain/geo"
)

// CaptureTimeLayout is the EXIF DateTimeOriginal layout.
const CaptureTimeLayout = "2006:01:02 15:04:05"

const unknownTagPrefix = "UnknownTag_"

// ignored tags carry binary blobs or vendor payloads with no search value.
var ignored = map[string]struct{}{
	"MakerNote":               {},
	"UserComment":             {},
	"PrintImageMatching":      {},
	"FileSource":              {},
	"SceneType":               {},
	"ComponentsConfiguration": {},
}

// Result is the outcome of metadata extraction.
type Result struct {
	GPS            *geo.Point
	CaptureTimeRaw string
	Fingerprint    *string
	Metadata       map[string]any
}

// Extractor decodes EXIF. It never fails: problems end up in Metadata["error"].
type Extractor struct{}

// New creates an extractor.
func New() *Extractor { return &Extractor{} }

// Extract reads the file at path.
func (e *Extractor) Extract(path string) Result {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return failed(fmt.Errorf("open image: %w", err))
	}
	defer func() { _ = f.Close() }()
	return e.ExtractReader(f)
}

// ExtractReader reads EXIF from r.
func (e *Extractor) ExtractReader(r io.Reader) Result {
	raw, err := decode(r)
	if err != nil {
		return failed(err)
	}
	return assemble(raw)
}

func failed(err error) Result {
	return Result{Metadata: map[string]any{"error": err.Error()}}
}

type walker struct {
	raw map[string]any
}

func (w *walker) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	n := string(name)
	if strings.HasPrefix(n, unknownTagPrefix) {
		return nil
	}
	if v, ok := tagValue(tag); ok {
		w.raw[n] = v
	}
	return nil
}

func decode(r io.Reader) (map[string]any, error) {
	x, err := goexif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode exif: %w", err)
	}
	w := &walker{raw: make(map[string]any)}
	if err := x.Walk(w); err != nil {
		return nil, fmt.Errorf("walk exif: %w", err)
	}
	return w.raw, nil
}

// tagValue converts a tag into a JSON-safe value. Multi-valued tags become slices.
func tagValue(tag *tiff.Tag) (any, bool) {
	n := int(tag.Count)
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		return cleanString(s), true
	case tiff.RatVal:
		vals := make([]float64, 0, n)
		for i := range n {
			num, den, err := tag.Rat2(i)
			if err != nil {
				return nil, false
			}
			if den == 0 {
				vals = append(vals, 0)
				continue
			}
			vals = append(vals, float64(num)/float64(den))
		}
		return collapse(vals), true
	case tiff.IntVal:
		vals := make([]int64, 0, n)
		for i := range n {
			v, err := tag.Int64(i)
			if err != nil {
				return nil, false
			}
			vals = append(vals, v)
		}
		return collapse(vals), true
	case tiff.FloatVal:
		vals := make([]float64, 0, n)
		for i := range n {
			v, err := tag.Float(i)
			if err != nil {
				return nil, false
			}
			vals = append(vals, v)
		}
		return collapse(vals), true
	case tiff.UndefVal:
		return cleanString(string(tag.Val)), true
	default:
		return nil, false
	}
}

func collapse[T any](vals []T) any {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

func cleanString(s string) string {
	s = strings.ToValidUTF8(s, "�")
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// assemble builds the result from decoded tag values.
func assemble(raw map[string]any) Result {
	res := Result{Metadata: make(map[string]any, len(raw))}

	for name, v := range raw {
		if _, skip := ignored[name]; skip {
			continue
		}
		if strings.HasPrefix(name, "GPS") || strings.HasSuffix(name, "IFDPointer") {
			continue
		}
		res.Metadata[name] = v
	}

	res.GPS = gpsPoint(raw)

	if s, ok := raw["DateTimeOriginal"].(string); ok && s != "" {
		res.CaptureTimeRaw = s
	}
	if s, ok := raw["ImageUniqueID"].(string); ok && s != "" {
		res.Fingerprint = &s
	}
	return res
}

func gpsPoint(raw map[string]any) *geo.Point {
	lat, ok := coordinate(raw, "GPSLatitude")
	if !ok {
		return nil
	}
	lon, ok := coordinate(raw, "GPSLongitude")
	if !ok {
		return nil
	}
	p, err := geo.NewPoint(lon, lat)
	if err != nil {
		return nil
	}
	return &p
}

// coordinate requires both the DMS triple and its hemisphere reference.
func coordinate(raw map[string]any, name string) (float64, bool) {
	triple, ok := raw[name].([]float64)
	if !ok {
		return 0, false
	}
	ref, ok := raw[name+"Ref"].(string)
	if !ok || ref == "" {
		return 0, false
	}
	dms, ok := geo.DMSFromSlice(triple)
	if !ok {
		return 0, false
	}
	return dms.Decimal(ref), true
}
