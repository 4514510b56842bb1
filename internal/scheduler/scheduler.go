// Package scheduler runs the daily receivables jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bizportal/internal/logger"
	"bizportal/internal/mailer"
	"bizportal/internal/metrics"
	"bizportal/internal/services"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	JobMarkOverdue     = "mark_overdue"
	JobSendReminders   = "send_reminders"
	JobRefreshInsights = "refresh_insights"
)

// Schedules are in UTC.
const (
	markOverdueSpec     = "0 5 * * *"
	sendRemindersSpec   = "0 9 * * *"
	refreshInsightsSpec = "30 2 * * *"
)

type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	mailer mailer.Mailer
	appURL string
	now    func() time.Time
}

func New(db *gorm.DB, m mailer.Mailer, appURL string) *Scheduler {
	log := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		db:     db,
		mailer: m,
		appURL: appURL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.register(markOverdueSpec, JobMarkOverdue, s.MarkOverdue)
	s.register(sendRemindersSpec, JobSendReminders, s.SendReminders)
	s.register(refreshInsightsSpec, JobRefreshInsights, s.RefreshInsights)
	return s
}

func (s *Scheduler) register(spec, name string, job func(context.Context) error) {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{Component: "scheduler." + name})
		start := time.Now()
		err := job(ctx)
		metrics.RecordJobRun(name, err)
		if err != nil {
			slog.ErrorContext(ctx, "job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		slog.InfoContext(ctx, "job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		// specs are constants; a parse failure is a programming error
		panic(err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) MarkOverdue(ctx context.Context) error {
	n, err := services.MarkOverdueInvoices(ctx, s.db, s.now())
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "invoices marked overdue", "count", n)
	return nil
}

func (s *Scheduler) SendReminders(ctx context.Context) error {
	n, err := services.SendReminders(ctx, s.db, s.mailer, s.appURL, s.now())
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "payment reminders sent", "count", n)
	return nil
}

// RefreshInsights regenerates insights for every organization; one tenant failing
// does not stop the others.
func (s *Scheduler) RefreshInsights(ctx context.Context) error {
	ids, err := services.OrganizationIDs(ctx, s.db)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		orgCtx := logger.WithLogFields(ctx, logger.LogFields{OrganizationID: logger.Ptr(id)})
		if _, err := services.RefreshInsights(orgCtx, s.db, id, s.now()); err != nil {
			slog.ErrorContext(orgCtx, "refresh insights failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cronLogger routes robfig/cron's logging into slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
