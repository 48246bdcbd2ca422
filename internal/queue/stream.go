package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/metrics"
)

const (
	fieldImageID = "image_id"
	fieldAttempt = "attempt"

	readCount    = 10
	readBlock    = 5 * time.Second
	errorBackoff = 2 * time.Second
)

// streamClient is the subset of go-redis used by Stream (ISP).
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
}

// StreamConfig names the stream, the consumer group and this consumer.
type StreamConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

// Stream is a Redis Streams job queue with a consumer group.
// Messages are acknowledged only after the handler succeeds.
type Stream struct {
	client streamClient
	cfg    StreamConfig
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a stream queue. An empty consumer name gets a random one.
func NewStream(client streamClient, cfg StreamConfig, logger *zap.Logger) *Stream {
	if cfg.Consumer == "" {
		cfg.Consumer = "photodex-" + uuid.NewString()[:8]
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 5 * time.Minute
	}
	return &Stream{client: client, cfg: cfg, logger: logger}
}

// EnsureGroup creates the stream and consumer group if missing.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", s.cfg.Group, err)
	}
	return nil
}

// Enqueue appends the job to the stream.
func (s *Stream) Enqueue(ctx context.Context, job Job) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{
			fieldImageID: job.ImageID,
			fieldAttempt: job.Attempt,
		},
	}).Err()
	if err != nil {
		metrics.QueueEnqueueTotal.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("enqueue image %d: %w", job.ImageID, err)
	}
	metrics.QueueEnqueueTotal.WithLabelValues("redis", "ok").Inc()
	return nil
}

// Start runs the consumer loop in the background until Shutdown or ctx cancellation.
func (s *Stream) Start(ctx context.Context, h Handler) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, h)
	}()
}

// Shutdown stops the consumer loop and waits for the in-flight message.
func (s *Stream) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Stream) run(ctx context.Context, h Handler) {
	ticker := time.NewTicker(s.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.read(ctx, h); err != nil && ctx.Err() == nil {
			s.logger.Error("Stream read failed", zap.String("stream", s.cfg.Stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.claimStalled(ctx, h); err != nil && ctx.Err() == nil {
				s.logger.Error("Stream claim failed", zap.String("stream", s.cfg.Stream), zap.Error(err))
			}
		default:
		}
	}
}

func (s *Stream) read(ctx context.Context, h Handler) error {
	result, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    readCount,
		Block:    readBlock,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			if ctx.Err() != nil {
				// Left pending; claimed again after ClaimInterval.
				return nil
			}
			s.deliver(ctx, h, msg)
		}
	}
	return nil
}

func (s *Stream) claimStalled(ctx context.Context, h Handler) error {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.cfg.Stream,
		Group:  s.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  readCount,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.Idle < s.cfg.ClaimInterval {
			continue
		}
		msgs, err := s.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   s.cfg.Stream,
			Group:    s.cfg.Group,
			Consumer: s.cfg.Consumer,
			MinIdle:  s.cfg.ClaimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			s.logger.Error("Stream claim failed", zap.String("message_id", entry.ID), zap.Error(err))
			continue
		}
		for _, msg := range msgs {
			if ctx.Err() != nil {
				return nil
			}
			s.deliver(ctx, h, msg)
		}
	}
	return nil
}

// deliver runs one message to completion even if Shutdown cancels ctx meanwhile.
func (s *Stream) deliver(ctx context.Context, h Handler, msg redis.XMessage) {
	ctx = context.WithoutCancel(ctx)
	job, err := decodeJob(msg.Values)
	if err != nil {
		// Undecodable messages are acknowledged so they never block the group.
		s.logger.Error("Malformed stream message", zap.String("message_id", msg.ID), zap.Error(err))
		s.ack(ctx, msg.ID)
		return
	}
	if logOutcome(s.logger, job, h.Handle(ctx, job)) {
		s.ack(ctx, msg.ID)
	}
}

func (s *Stream) ack(ctx context.Context, id string) {
	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, id).Err(); err != nil {
		s.logger.Error("Stream ack failed", zap.String("message_id", id), zap.Error(err))
	}
}

func decodeJob(values map[string]any) (Job, error) {
	id, err := intField(values, fieldImageID)
	if err != nil {
		return Job{}, err
	}
	attempt, err := intField(values, fieldAttempt)
	if err != nil {
		return Job{}, err
	}
	return Job{ImageID: id, Attempt: int(attempt)}, nil
}

func intField(values map[string]any, name string) (int64, error) {
	raw, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	str, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T", name, raw)
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return n, nil
}
