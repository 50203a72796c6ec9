package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/logging"
	"github.com/google/uuid"
)

// terminalWriteTimeout bounds the final registry write of a validation run.
// It runs on a fresh context so an expired run can still record failure.
const terminalWriteTimeout = 15 * time.Second

// Deps are the collaborators a Service is built from. Repository and
// References are required. A nil Storage makes upload initiation fail with
// ErrStorageUnavailable, a nil Broker forces inline validation, and a nil
// KV disables progress snapshots.
type Deps struct {
	Repository DatasetRepository
	References ReferenceChecker
	Storage    Storage
	Broker     Broker
	KV         KVStore
	Events     *EventBus
}

// Service is the dataset ingestion, validation, and scoring core.
type Service struct {
	repo    DatasetRepository
	refs    ReferenceChecker
	storage Storage
	broker  Broker
	kv      KVStore
	events  *EventBus

	validator *StructureValidator
	scorer    *QualityScorer
	limiter   *ValidationLimiter

	cfg *config.Config

	now   func() time.Time
	newID func() string
}

// NewService creates a Service with its collaborators injected.
func NewService(deps Deps, cfg *config.Config) (*Service, error) {
	if deps.Repository == nil {
		return nil, ErrRepositoryRequired
	}
	if deps.References == nil {
		return nil, ErrReferencesRequired
	}
	events := deps.Events
	if events == nil {
		events = NewEventBus(DefaultSubscriberBuffer)
	}

	return &Service{
		repo:      deps.Repository,
		refs:      deps.References,
		storage:   deps.Storage,
		broker:    deps.Broker,
		kv:        deps.KV,
		events:    events,
		validator: NewStructureValidator(deps.Storage, PathsFromConfig(cfg.Validation)),
		scorer:    NewQualityScorer(cfg.Scoring),
		limiter:   NewValidationLimiter(cfg.Validation.MaxConcurrent, cfg.Validation.MaxWaitTime),
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Events returns the bus every state change is published on.
func (s *Service) Events() *EventBus {
	return s.events
}

// Subscribe is shorthand for s.Events().Subscribe.
func (s *Service) Subscribe(types ...EventType) *Subscription {
	return s.events.Subscribe(types...)
}

// Limiter exposes the validation limiter for status reporting.
func (s *Service) Limiter() *ValidationLimiter {
	return s.limiter
}

// WaitForValidations blocks until in-flight validation runs finish or ctx ends.
func (s *Service) WaitForValidations(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// BrokerConnected reports whether queued dispatch is currently possible.
func (s *Service) BrokerConnected(ctx context.Context) bool {
	if s.broker == nil || !s.cfg.Broker.Enabled {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, s.cfg.Broker.HealthTimeout)
	defer cancel()
	return s.broker.Connected(checkCtx)
}

func (s *Service) emit(ctx context.Context, ev DatasetEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if ev.JobID == "" {
		ev.JobID = JobIDFromContext(ctx)
	}
	logging.FromContext(ctx).Debug("dataset event", "type", ev.Type, "dataset_id", ev.DatasetID)
	s.events.Publish(ev)
}
