package image

import (
	"strings"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/domain/search/filter"
	"github.com/kailas-cloud/photodex/internal/domain/search/query"
)

func testVector() []float32 {
	v := make([]float32, 1408)
	for i := range v {
		v[i] = float32(i%7) / 7
	}
	return v
}

func TestRowToDomain_Done(t *testing.T) {
	vec := pgvector.NewVector(testVector())
	model := "multimodalembedding@001"
	rw := row{
		id:        7,
		locator:   "images/cat.jpg",
		embedding: &vec,
		model:     &model,
		gps:       []float64{127.0, 37.5},
		tags:      []string{"cat"},
		status:    "done",
		createdAt: time.Now(),
	}

	rec, err := rw.toDomain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID() != 7 || !rec.Status().Is(domimg.StateDone) {
		t.Errorf("unexpected record %d %s", rec.ID(), rec.Status())
	}
	if rec.GPS() == nil || rec.GPS().Lon != 127.0 || rec.GPS().Lat != 37.5 {
		t.Errorf("expected (lon, lat) = (127.0, 37.5), got %v", rec.GPS())
	}
	if len(rec.Embedding()) != 1408 {
		t.Errorf("expected 1408-dim embedding, got %d", len(rec.Embedding()))
	}
}

func TestRowToDomain_Failed(t *testing.T) {
	msg := "provider timeout"
	rw := row{id: 1, locator: "images/a.jpg", status: "failed", errMsg: &msg}

	rec, err := rw.toDomain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status().Message() != msg {
		t.Errorf("expected message %q, got %q", msg, rec.Status().Message())
	}
}

func TestRowToDomain_RejectsBrokenInvariant(t *testing.T) {
	tests := []struct {
		name string
		rw   row
	}{
		{"done without vector", row{id: 1, locator: "x", status: "done"}},
		{"failed without message", row{id: 2, locator: "x", status: "failed"}},
		{"unknown status", row{id: 3, locator: "x", status: "archived"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.rw.toDomain(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildSearch_Ranked(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f, err := filter.New("dog, park", "Seoul", &from, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seoul := time.FixedZone("KST", 9*60*60)
	sql, args := buildSearch(query.Query{Filter: f, Vector: testVector(), Limit: 20}, seoul).Build()

	for _, want := range []string{
		"WHERE status = $1",
		"unnest(tags)",
		"location_user ILIKE",
		"date_taken_exif >=",
		"embedding IS NOT NULL",
		"ORDER BY distance ASC, id ASC LIMIT 20",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %q", want, sql)
		}
	}
	if args[0] != "done" {
		t.Errorf("expected status arg done, got %v", args[0])
	}
	var lower *time.Time
	for _, a := range args {
		if ts, ok := a.(time.Time); ok {
			lower = &ts
		}
	}
	if lower == nil || !lower.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, seoul)) {
		t.Errorf("expected the date bound at Seoul midnight, got %v", lower)
	}
	if _, ok := args[len(args)-1].(pgvector.Vector); !ok {
		t.Errorf("expected last arg to be a pgvector.Vector, got %T", args[len(args)-1])
	}
}

func TestBuildSearch_RecentExcludesReference(t *testing.T) {
	sql, args := buildSearch(query.Query{ExcludeID: 9, Limit: 50}, nil).Build()

	if !strings.Contains(sql, "id <> $2") {
		t.Errorf("expected exclusion in %q", sql)
	}
	if !strings.HasSuffix(sql, "ORDER BY created_at DESC, id DESC LIMIT 50") {
		t.Errorf("expected newest-first ordering in %q", sql)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestArgs(t *testing.T) {
	if vectorArg(nil) != nil {
		t.Error("expected nil vector arg for empty embedding")
	}
	if gpsArg(nil) != nil {
		t.Error("expected nil gps arg")
	}
	if nullString("") != nil {
		t.Error("expected nil for empty string")
	}
	if errorArg(domimg.Done()) != nil {
		t.Error("expected no error column for done")
	}
	if got := errorArg(domimg.Failed("boom")); got == nil || *got != "boom" {
		t.Errorf("unexpected error arg %v", got)
	}
}
