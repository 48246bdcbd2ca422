// Package ingest turns an uploaded photo into a pending image record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/logger"
	"github.com/kailas-cloud/photodex/internal/media/exif"
	"github.com/kailas-cloud/photodex/internal/media/timezone"
	"github.com/kailas-cloud/photodex/internal/queue"
	"github.com/kailas-cloud/photodex/internal/storage"
)

// Kind classifies an ingestion outcome.
type Kind string

const (
	Created   Kind = "created"
	Duplicate Kind = "duplicate"
	Rejected  Kind = "rejected"
)

// Upload is one incoming photo. Exactly one of Body or TempPath is set.
// A TempPath file belongs to the caller and is left in place.
type Upload struct {
	Filename     string
	Body         io.Reader
	TempPath     string
	Size         int64 // negative when unknown
	UserDate     *time.Time
	UserLocation string
	Tags         string
}

// Outcome reports what happened to an upload.
type Outcome struct {
	Kind   Kind
	Record domimg.Record
	Reason string
}

// Options configures enrichment.
type Options struct {
	Language        string
	DefaultLocation *time.Location
	TempDir         string
}

// Service runs the ingestion pipeline.
type Service struct {
	repo      Repository
	extractor Extractor
	geocoder  Geocoder
	zones     ZoneFinder
	storage   Storage
	queue     Enqueuer
	opts      Options
}

// New creates an ingestion service. geocoder and zones can be nil.
func New(
	repo Repository, extractor Extractor, geocoder Geocoder, zones ZoneFinder,
	store Storage, q Enqueuer, opts Options,
) *Service {
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	return &Service{
		repo:      repo,
		extractor: extractor,
		geocoder:  geocoder,
		zones:     zones,
		storage:   store,
		queue:     q,
		opts:      opts,
	}
}

// Ingest validates, deduplicates, stores and records an upload, then enqueues its
// embedding job. Validation failures and duplicates are outcomes, not errors.
func (s *Service) Ingest(ctx context.Context, up Upload) (Outcome, error) {
	log := logger.FromContext(ctx).With(zap.String("filename", up.Filename))

	tags, err := s.validate(up)
	if err != nil {
		return rejected(err)
	}

	path, cleanup, err := s.materialize(up)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return rejected(err)
		}
		return Outcome{}, err
	}
	defer cleanup()

	meta := s.extractor.Extract(path)

	if meta.Fingerprint != nil {
		known, err := s.repo.ExistsByFingerprint(ctx, *meta.Fingerprint)
		if err != nil {
			return Outcome{}, fmt.Errorf("check fingerprint: %w", err)
		}
		if known {
			log.Info("Duplicate upload skipped", zap.String("fingerprint", *meta.Fingerprint))
			return Outcome{Kind: Duplicate, Reason: "image already uploaded"}, nil
		}
	}

	params := domimg.NewParams{
		GPS:          meta.GPS,
		CaptureTime:  s.captureTime(meta),
		UserDate:     up.UserDate,
		UserLocation: up.UserLocation,
		Fingerprint:  meta.Fingerprint,
		Metadata:     meta.Metadata,
		Tags:         tags,
	}
	if meta.GPS != nil && s.geocoder != nil {
		params.Locality = s.geocoder.Locality(ctx, meta.GPS.Lat, meta.GPS.Lon, s.opts.Language)
	}

	locator, err := s.save(ctx, path, up.Filename)
	if err != nil {
		return Outcome{}, err
	}
	params.Locator = locator

	rec, err := domimg.New(params)
	if err != nil {
		s.discard(ctx, locator, log)
		return Outcome{}, fmt.Errorf("build record: %w", err)
	}

	rec, err = s.repo.Create(ctx, rec)
	if err != nil {
		s.discard(ctx, locator, log)
		if errors.Is(err, domain.ErrDuplicate) {
			return Outcome{Kind: Duplicate, Reason: "image already uploaded"}, nil
		}
		return Outcome{}, fmt.Errorf("create record: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.Job{ImageID: rec.ID(), Attempt: 1}); err != nil {
		log.Warn("Enqueue failed, record left pending", zap.Int64("image_id", rec.ID()), zap.Error(err))
	}

	log.Info("Image ingested", zap.Int64("image_id", rec.ID()), zap.String("locator", locator))
	return Outcome{Kind: Created, Record: rec}, nil
}

func (s *Service) validate(up Upload) ([]string, error) {
	if err := domimg.ValidateFile(up.Filename, up.Size); err != nil {
		return nil, err
	}
	if err := domimg.ValidateLocation(up.UserLocation); err != nil {
		return nil, err
	}
	return domimg.ParseTags(up.Tags)
}

func rejected(err error) (Outcome, error) {
	return Outcome{Kind: Rejected, Reason: err.Error()}, nil
}

// materialize returns a local path for the upload and a cleanup func.
func (s *Service) materialize(up Upload) (string, func(), error) {
	if up.TempPath != "" {
		return up.TempPath, func() {}, nil
	}
	if up.Body == nil {
		return "", nil, domain.NewValidationError("empty upload")
	}

	f, err := os.CreateTemp(s.opts.TempDir, "photodex-upload-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	n, err := io.Copy(f, io.LimitReader(up.Body, domimg.MaxFileSize+1))
	closeErr := f.Close()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("buffer upload: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("buffer upload: %w", closeErr)
	}
	if n > domimg.MaxFileSize {
		cleanup()
		return "", nil, domain.NewValidationError("file too large: max %dMB", domimg.MaxFileSize/(1024*1024))
	}
	return f.Name(), cleanup, nil
}

// captureTime parses the raw EXIF time in the zone of the GPS position.
func (s *Service) captureTime(meta exif.Result) *time.Time {
	if meta.CaptureTimeRaw == "" {
		return nil
	}
	loc := s.opts.DefaultLocation
	if meta.GPS != nil && s.zones != nil {
		loc = timezone.Location(s.zones.Zone(meta.GPS.Lon, meta.GPS.Lat), loc)
	}
	t, err := time.ParseInLocation(exif.CaptureTimeLayout, meta.CaptureTimeRaw, loc)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Service) save(ctx context.Context, path, filename string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	locator, err := s.storage.Save(ctx, storage.ImageKey(filename), f)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return locator, nil
}

func (s *Service) discard(ctx context.Context, locator string, log *zap.Logger) {
	if err := s.storage.Delete(ctx, locator); err != nil {
		log.Warn("Failed to remove orphaned file", zap.String("locator", locator), zap.Error(err))
	}
}
