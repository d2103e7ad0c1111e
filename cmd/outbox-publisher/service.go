package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/pkg/config"
	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
	"github.com/juspay/hyperswitch-sub035/pkg/logger"
	"github.com/juspay/hyperswitch-sub035/pkg/metrics"
	"github.com/juspay/hyperswitch-sub035/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	WebhooksTopic() string
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// nonRetryableError marks a row that no amount of republishing will fix.
type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string { return e.err.Error() }
func (e nonRetryableError) Unwrap() error { return e.err }

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service relays outbox rows to the merchant webhooks topic. Messages for one
// payment share an ordering key so merchants observe status changes in order.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	publisherFactory publisherFactory
	metrics          *metrics.OutboxMetrics
	topic            string
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	topic := params.PubSub.WebhooksTopic()
	if topic == "" {
		return nil, errors.New("webhooks topic is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = defaultPollMs
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		publisherFactory: factory,
		metrics:          params.Metrics,
		topic:            topic,
		batchSize:        cfg.BatchSize,
		maxAttempts:      cfg.MaxAttempts,
		pollInterval:     time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "webhook publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "webhook publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
		case processed:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
		}
		if err := s.sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}
	}
}

// inflight pairs a row with its pending publish result.
type inflight struct {
	event  models.OutboxEvent
	fields map[string]any
	result publishResult
	key    string
}

// processBatch publishes the whole batch before awaiting any result so the
// client can batch on the wire. Once an ordering key fails, later rows for that
// payment are left untouched for the next batch.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		pub := s.publisherFactory(s.topic)
		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			var envelope outbox.PayloadEnvelope
			if err := json.Unmarshal(event.Payload, &envelope); err != nil {
				if err := s.markTerminal(ctx, tx, event, fmt.Errorf("decode envelope: %w", err), nil); err != nil {
					return err
				}
				continue
			}
			fields := s.eventFields(event, envelope)
			if pub == nil {
				err := nonRetryableError{err: fmt.Errorf("publisher not configured for topic %s", s.topic)}
				if err := s.markTerminal(ctx, tx, event, err, fields); err != nil {
					return err
				}
				continue
			}
			msg := s.message(event, envelope)
			pending = append(pending, inflight{
				event:  event,
				fields: fields,
				result: pub.Publish(publishCtx, msg),
				key:    msg.OrderingKey,
			})
		}

		failedKeys := map[string]bool{}
		for _, p := range pending {
			if failedKeys[p.key] {
				s.metrics.Deferred()
				continue
			}
			if err := awaitResult(publishCtx, p.result); err != nil {
				failedKeys[p.key] = true
				pub.ResumePublish(p.key)
				if err := s.recordFailure(ctx, tx, p, err); err != nil {
					return err
				}
				continue
			}
			if err := s.repo.MarkPublishedTx(tx, p.event.ID); err != nil {
				return fmt.Errorf("mark published %s: %w", p.event.ID, err)
			}
			s.metrics.Outcome(string(p.event.EventType), metrics.OutboxPublished)
			s.logg.Info(s.logg.WithFields(ctx, p.fields), "webhook published")
		}
		return nil
	})
	return processed, err
}

func awaitResult(ctx context.Context, result publishResult) error {
	if result == nil {
		return nonRetryableError{err: errors.New("publisher returned no result")}
	}
	_, err := result.Get(ctx)
	return err
}

func (s *Service) recordFailure(ctx context.Context, tx *gorm.DB, p inflight, err error) error {
	var nonRetry nonRetryableError
	if errors.As(err, &nonRetry) {
		return s.markTerminal(ctx, tx, p.event, err, p.fields)
	}
	nextAttempt := p.event.AttemptCount + 1
	p.fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		p.fields["terminal_reason"] = "max_attempts"
		return s.markTerminal(ctx, tx, p.event, fmt.Errorf("max publish attempts reached: %w", err), p.fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, p.fields), "error", err.Error())
	s.logg.Warn(logCtx, "webhook publish failed")
	if err := s.repo.MarkFailedTx(tx, p.event.ID, err); err != nil {
		return fmt.Errorf("mark failure %s: %w", p.event.ID, err)
	}
	s.metrics.Outcome(string(p.event.EventType), metrics.OutboxRetry)
	return nil
}

func (s *Service) markTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{})
	}
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "webhook will not be retried")

	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.Outcome(string(event.EventType), metrics.OutboxTerminal)
	return nil
}

func (s *Service) message(event models.OutboxEvent, envelope outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: orderingKey(event),
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  string(event.EventType),
			"event_class": string(event.EventClass),
			"object_id":   event.ObjectID,
			"merchant_id": event.MerchantID,
			"created_at":  event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func orderingKey(event models.OutboxEvent) string {
	return event.MerchantID + ":" + event.ObjectID
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"event_class":   event.EventClass,
		"object_id":     event.ObjectID,
		"merchant_id":   event.MerchantID,
		"attempt_count": event.AttemptCount,
		"topic":         s.topic,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < max {
		return next
	}
	return max
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{Publisher: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
