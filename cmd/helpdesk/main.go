package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("env", cfg.App.Env), zap.String("version", cfg.App.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return 1
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return 1
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var publisher service.EventPublisher
	if redis.Enabled() {
		publisher = redis
	}

	a := newApp(cfg, logger, pg.Store(), publisher, stdout)
	if cfg.App.SeedFile != "" {
		if _, err := a.users.SeedFromFile(ctx, cfg.App.SeedFile); err != nil {
			logger.Error("failed to seed users", zap.String("file", cfg.App.SeedFile), zap.Error(err))
			return 1
		}
	}

	code := a.execute(ctx, args, stderr)
	a.logMetrics()
	return code
}

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	out     io.Writer
	now     func() time.Time

	users   *service.UserService
	tickets *service.TicketService
	changes *service.ChangeRequestService
	reports *service.ReportService
	sweeper *worker.Sweeper

	actorID int64
}

func newApp(cfg *config.Config, logger *zap.Logger, store repository.Store, publisher service.EventPublisher, out io.Writer) *app {
	now := func() time.Time { return time.Now().UTC() }
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(dispatcher, publisher, logger, cfg.Notification)

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:         store,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Clock:         now,
		EscalateAfter: cfg.Policy.EscalationAfter(),
	})
	changes := service.NewChangeRequestService(service.ChangeRequestDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      now,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		out:     out,
		now:     now,
		users:   service.NewUserService(store, logger),
		tickets: tickets,
		changes: changes,
		reports: service.NewReportService(service.ReportDependencies{
			Store:             store,
			Tickets:           tickets,
			ChangeRequests:    changes,
			ExpiryHorizonDays: cfg.Policy.ExpiryHorizonDays,
		}),
		sweeper: worker.NewSweeper(worker.SweeperDependencies{
			Tickets:        tickets,
			ChangeRequests: changes,
			Logger:         logger,
			Interval:       cfg.Policy.SweepInterval(),
			Clock:          now,
		}),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           a.cfg.App.Name,
		Short:         "Helpdesk ticket and change request tracker",
		Version:       a.cfg.App.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64Var(&a.actorID, "as", 0, "id of the acting user")
	root.AddCommand(
		a.usersCmd(),
		a.ticketsCmd(),
		a.changesCmd(),
		a.reportsCmd(),
		a.sweepCmd(),
	)
	return root
}

// execute runs the command line and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		fmt.Fprintf(stderr, "%s: %s\n", domainErr.Code, domainErr.Message)
		return domainErr.ExitCode()
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

// track wraps a command body with metrics and error logging.
func (a *app) track(op string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := fn(cmd, args)
		a.metrics.RecordOperation(op, time.Since(start))
		if err != nil {
			code := apperrors.CodeInternal
			if domainErr := apperrors.ToDomainError(err); domainErr != nil {
				code = domainErr.Code
			}
			a.metrics.RecordError(op, code)
			a.logger.Warn("command failed", zap.String("operation", op), zap.String("code", code), zap.Error(err))
		}
		return err
	}
}

// actor resolves the --as flag to a stored user.
func (a *app) actor(ctx context.Context) (domain.User, error) {
	if a.actorID <= 0 {
		return domain.User{}, apperrors.NewValidationError("--as <userID> is required", nil)
	}
	user, err := a.users.FindUser(ctx, a.actorID)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (a *app) logMetrics() {
	for _, stat := range a.metrics.Snapshot() {
		a.logger.Debug("command metrics",
			zap.String("operation", stat.Operation),
			zap.Int64("calls", stat.Calls),
			zap.Int64("errors", stat.Errors),
			zap.Duration("total", stat.Total))
	}
}
