package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// ChangeRequestService coordinates change request workflows.
type ChangeRequestService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// ChangeRequestDependencies bundles collaborators for the change request service.
type ChangeRequestDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// ChangeRequestInput describes a new change request.
type ChangeRequestInput struct {
	Title       string    `validate:"required,max=200"`
	Description string
	Expiry      time.Time `validate:"required"`
}

// NewChangeRequestService constructs the service.
func NewChangeRequestService(deps ChangeRequestDependencies) *ChangeRequestService {
	s := &ChangeRequestService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = utcNow
	}
	return s
}

// Raise records a new change request in RAISED state.
func (s *ChangeRequestService) Raise(ctx context.Context, requester domain.User, input ChangeRequestInput) (*domain.ChangeRequest, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	cr := &domain.ChangeRequest{
		Requester:   requester,
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.ChangeStatusRaised,
		ExpiryDate:  domain.DateOf(input.Expiry),
		CreatedAt:   s.now(),
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		return apperrors.MapError(tx.ChangeRequests().Create(ctx, cr))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("change request raised",
		zap.Int64("change_id", cr.ID),
		zap.Int64("actor_id", requester.ID))
	s.publish(ctx, events.EventChangeRequestRaised, requester, cr, "")
	return cr, nil
}

// Renew moves the expiry date. Admin or requester only.
func (s *ChangeRequestService) Renew(ctx context.Context, actor domain.User, id int64, newExpiry time.Time) (*domain.ChangeRequest, error) {
	if newExpiry.IsZero() {
		return nil, apperrors.NewValidationError("expiry date required", map[string]any{"change_id": id})
	}
	cr, err := s.withChange(ctx, id, func(cr *domain.ChangeRequest) error {
		if err := requireOwnerOrAdmin(actor, cr); err != nil {
			return err
		}
		cr.ExpiryDate = domain.DateOf(newExpiry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("change request renewed",
		zap.Int64("change_id", cr.ID),
		zap.Time("expiry", cr.ExpiryDate))
	expiry := cr.ExpiryDate
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventChangeRequestRenewed,
		EntityID: cr.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.ChangeRequestPayload{Title: cr.Title, Status: cr.Status, Expiry: &expiry},
	})
	return cr, nil
}

// Remove deletes an active change request. Admin or requester only.
func (s *ChangeRequestService) Remove(ctx context.Context, actor domain.User, id int64) error {
	var removed *domain.ChangeRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cr, err := s.loadChange(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(actor, cr); err != nil {
			return err
		}
		removed = cr
		return apperrors.MapError(tx.ChangeRequests().Remove(ctx, id))
	})
	if err != nil {
		return err
	}
	s.logger.Info("change request removed", zap.Int64("change_id", id), zap.Int64("actor_id", actor.ID))
	s.publish(ctx, events.EventChangeRequestRemoved, actor, removed, "")
	return nil
}

// Approve decides a change request. Admin only; the decision may be revised.
func (s *ChangeRequestService) Approve(ctx context.Context, admin domain.User, id int64, approve bool) (*domain.ChangeRequest, error) {
	if !admin.IsAdmin() {
		return nil, apperrors.NewPermissionDenied("only admin can approve", map[string]any{"actor_id": admin.ID})
	}
	cr, err := s.withChange(ctx, id, func(cr *domain.ChangeRequest) error {
		if approve {
			cr.Status = domain.ChangeStatusApproved
		} else {
			cr.Status = domain.ChangeStatusRejected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("change request decided",
		zap.Int64("change_id", cr.ID),
		zap.String("status", string(cr.Status)))
	s.publish(ctx, events.EventChangeRequestDecided, admin, cr, "")
	return cr, nil
}

// Implement closes an approved change request with a note. Agents and admins only.
func (s *ChangeRequestService) Implement(ctx context.Context, actor domain.User, id int64, note string) (*domain.ChangeRequest, error) {
	if !actor.IsAgent() && !actor.IsAdmin() {
		return nil, apperrors.NewPermissionDenied("only agent or admin can implement", map[string]any{"actor_id": actor.ID})
	}
	cr, err := s.withChange(ctx, id, func(cr *domain.ChangeRequest) error {
		if cr.Status != domain.ChangeStatusApproved {
			return apperrors.NewInvalidState("change request not approved", map[string]any{"status": cr.Status})
		}
		cr.ImplementationNote = &note
		cr.Status = domain.ChangeStatusImplemented
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("change request implemented", zap.Int64("change_id", cr.ID), zap.Int64("actor_id", actor.ID))
	s.publish(ctx, events.EventChangeImplemented, actor, cr, note)
	return cr, nil
}

// ExpiringWithin lists active requests expiring on or before today plus days.
func (s *ChangeRequestService) ExpiringWithin(ctx context.Context, days int) ([]domain.ChangeRequest, error) {
	if err := validateValue("days", days, "min=0"); err != nil {
		return nil, err
	}
	changes, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return expiringWithin(changes, s.now(), days), nil
}

// QuarterlyReport lists active requests created in the given quarter of any year.
func (s *ChangeRequestService) QuarterlyReport(ctx context.Context, quarter int) ([]domain.ChangeRequest, error) {
	if err := validateValue("quarter", quarter, "min=1,max=4"); err != nil {
		return nil, err
	}
	changes, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.ChangeRequest, 0, len(changes))
	for i := range changes {
		if changes[i].Quarter() == quarter {
			result = append(result, changes[i])
		}
	}
	return result, nil
}

// ArchiveOld moves every request created more than 365 days before today to
// the archive. Running it again archives nothing new.
func (s *ChangeRequestService) ArchiveOld(ctx context.Context, today time.Time) ([]domain.ChangeRequest, error) {
	cutoff := domain.DateOf(today).AddDate(0, 0, -365)
	var archived []domain.ChangeRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		changes, err := tx.ChangeRequests().List(ctx)
		if err != nil {
			return apperrors.MapError(err)
		}
		for i := range changes {
			if !domain.DateOf(changes[i].CreatedAt).Before(cutoff) {
				continue
			}
			cr := changes[i]
			if err := tx.ChangeRequests().Archive(ctx, &cr); err != nil {
				return apperrors.MapError(err)
			}
			archived = append(archived, cr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(archived) == 0 {
		return archived, nil
	}

	ids := make([]int64, len(archived))
	for i := range archived {
		ids[i] = archived[i].ID
	}
	s.logger.Info("change requests archived", zap.Int64s("change_ids", ids), zap.Time("cutoff", cutoff))
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:    events.EventChangeRequestArchived,
		Actor:   events.Actor{Name: "System"},
		Payload: events.ChangeRequestsArchivedPayload{IDs: ids},
	})
	return archived, nil
}

// ListActive returns the non-archived requests ordered by id.
func (s *ChangeRequestService) ListActive(ctx context.Context) ([]domain.ChangeRequest, error) {
	changes, err := s.store.ChangeRequests().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return changes, nil
}

// ListArchived returns the archived requests ordered by id.
func (s *ChangeRequestService) ListArchived(ctx context.Context) ([]domain.ChangeRequest, error) {
	changes, err := s.store.ChangeRequests().ListArchived(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return changes, nil
}

// Get returns one active change request.
func (s *ChangeRequestService) Get(ctx context.Context, id int64) (*domain.ChangeRequest, error) {
	return s.loadChange(ctx, s.store, id)
}

func (s *ChangeRequestService) withChange(ctx context.Context, id int64, fn func(cr *domain.ChangeRequest) error) (*domain.ChangeRequest, error) {
	var result *domain.ChangeRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cr, err := s.loadChange(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(cr); err != nil {
			return err
		}
		if err := tx.ChangeRequests().Update(ctx, cr); err != nil {
			return apperrors.MapError(err)
		}
		result = cr
		return nil
	})
	if err != nil {
		s.logger.Debug("change request operation rejected", zap.Int64("change_id", id), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *ChangeRequestService) loadChange(ctx context.Context, store repository.Store, id int64) (*domain.ChangeRequest, error) {
	cr, err := store.ChangeRequests().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("change request", map[string]any{"change_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return cr, nil
}

func (s *ChangeRequestService) publish(ctx context.Context, eventType events.EventType, actor domain.User, cr *domain.ChangeRequest, note string) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     eventType,
		EntityID: cr.ID,
		Actor:    events.ActorFrom(actor),
		Payload:  events.ChangeRequestPayload{Title: cr.Title, Status: cr.Status, Note: note},
	})
}

func requireOwnerOrAdmin(actor domain.User, cr *domain.ChangeRequest) error {
	if actor.IsAdmin() || cr.Requester.ID == actor.ID {
		return nil
	}
	return apperrors.NewPermissionDenied("only admin or requester", map[string]any{"change_id": cr.ID, "actor_id": actor.ID})
}
