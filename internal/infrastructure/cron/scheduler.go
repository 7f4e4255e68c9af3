package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/service"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// Options configures the scheduled jobs
type Options struct {
	Location      *time.Location
	Rotation      []config.RotationEntry
	SweepInterval time.Duration
	// Empty disables the weekly report job
	WeeklyReportSpec string
}

// Scheduler fires slot reminders, the timeout sweep and the weekly report
type Scheduler struct {
	reminderService service.ReminderService
	cron            *cron.Cron
	opts            Options
	log             *slog.Logger
}

// NewScheduler creates a new scheduler. Cron specs are read in opts.Location.
func NewScheduler(reminderService service.ReminderService, opts Options, log *slog.Logger) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		reminderService: reminderService,
		cron:            cron.New(cron.WithLocation(loc)),
		opts:            opts,
		log:             log,
	}
}

// Start registers every job and starts the cron runner
func (s *Scheduler) Start() error {
	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		"reminder_jobs", len(s.opts.Rotation),
		"sweep_interval", s.opts.SweepInterval,
		"weekly_report", s.opts.WeeklyReportSpec,
	)
	return nil
}

func (s *Scheduler) register() error {
	for _, entry := range s.opts.Rotation {
		entry := entry
		if _, err := s.cron.AddFunc(entry.Spec, func() { s.sendSlot(entry) }); err != nil {
			return fmt.Errorf("failed to add reminder job %s %s: %w", entry.Weekday, entry.Time, err)
		}
	}

	if s.opts.SweepInterval > 0 {
		cronExpr := fmt.Sprintf("@every %s", s.opts.SweepInterval.String())
		if _, err := s.cron.AddFunc(cronExpr, s.sweep); err != nil {
			return fmt.Errorf("failed to add sweep job: %w", err)
		}
	}

	if s.opts.WeeklyReportSpec != "" {
		if _, err := s.cron.AddFunc(s.opts.WeeklyReportSpec, s.weeklyReport); err != nil {
			return fmt.Errorf("failed to add weekly report job: %w", err)
		}
	}
	return nil
}

// Stop stops the runner and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) sendSlot(entry config.RotationEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Info("sending slot reminders", "time", entry.Time, "slot_id", entry.SlotID)
	if err := s.reminderService.SendSlotReminders(ctx, entry.Time, entry.SlotID); err != nil {
		s.log.Error("slot reminders failed", "time", entry.Time, "slot_id", entry.SlotID, "error", err)
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.reminderService.SweepTimeouts(ctx); err != nil {
		s.log.Error("timeout sweep failed", "error", err)
	}
}

func (s *Scheduler) weeklyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Info("sending weekly reports")
	if err := s.reminderService.SendWeeklyReports(ctx); err != nil {
		s.log.Error("weekly reports failed", "error", err)
	}
}
