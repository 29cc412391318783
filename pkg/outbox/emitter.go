package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// Emitter queues events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

// Service is the Emitter backed by outbox_events. The row id doubles as the
// envelope's event id.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, err := s.build(tx, event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.logQueued(ctx, row, "outbox event queued")
	return nil
}

// EmitIfNotExists queues the event unless one with the same type and
// aggregate is already stored. Losing an insert race to a unique index is
// treated the same as finding the row.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, err := s.build(tx, event)
	if err != nil {
		return err
	}
	found, err := s.repo.Exists(tx, row.EventType, row.AggregateType, row.AggregateID)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	inserted, err := s.repo.InsertUnlessDuplicate(tx, row)
	if err != nil {
		return err
	}
	if inserted {
		s.logQueued(ctx, row, "outbox event queued")
	}
	return nil
}

func (s *Service) build(tx *gorm.DB, event DomainEvent) (*models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	if err := event.validate(); err != nil {
		return nil, err
	}
	id := uuid.New()
	env, err := event.envelope(id, s.now())
	if err != nil {
		return nil, err
	}
	payload, err := jsonBytes(env)
	if err != nil {
		return nil, err
	}
	return &models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}

func (s *Service) logQueued(ctx context.Context, row *models.OutboxEvent, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":       row.ID.String(),
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID,
	}), msg)
}
