package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/service"
)

// SweepResult reports what one sweep did.
type SweepResult struct {
	Archived  []int64
	Escalated []int64
}

// Sweeper periodically archives old change requests and logs tickets that
// are due for escalation.
type Sweeper struct {
	tickets  *service.TicketService
	changes  *service.ChangeRequestService
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// SweeperDependencies bundles collaborators for the sweeper.
type SweeperDependencies struct {
	Tickets        *service.TicketService
	ChangeRequests *service.ChangeRequestService
	Logger         *zap.Logger
	Interval       time.Duration
	Clock          func() time.Time
}

// NewSweeper constructs a sweeper. Interval defaults to one hour.
func NewSweeper(deps SweeperDependencies) *Sweeper {
	s := &Sweeper{
		tickets:  deps.Tickets,
		changes:  deps.ChangeRequests,
		logger:   deps.Logger,
		interval: deps.Interval,
		now:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	archived, err := s.changes.ArchiveOld(ctx, now)
	if err != nil {
		return result, err
	}
	for i := range archived {
		result.Archived = append(result.Archived, archived[i].ID)
	}

	overdue, err := s.tickets.Escalations(ctx, now)
	if err != nil {
		return result, err
	}
	for i := range overdue {
		result.Escalated = append(result.Escalated, overdue[i].ID)
		s.logger.Warn("ticket needs escalation",
			zap.Int64("ticket_id", overdue[i].ID),
			zap.String("status", string(overdue[i].Status)),
			zap.Time("created_at", overdue[i].CreatedAt))
	}

	s.logger.Info("sweep finished",
		zap.Int("archived", len(result.Archived)),
		zap.Int("escalated", len(result.Escalated)))
	return result, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
