package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flotta/internal/amqp"
	"flotta/internal/core"
	"flotta/internal/storage"
)

// ReminderPublisher publishes reminder events for due vehicles. *amqp.Client
// satisfies it.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// ReminderConfig tunes the fleet scan.
type ReminderConfig struct {
	// Interval is the pause between scans.
	Interval time.Duration

	// LeadDays is how far ahead the date rule looks.
	LeadDays int

	// MileageThreshold is how close to the next schedule rung the mileage
	// rule fires, in miles.
	MileageThreshold int64
}

// DefaultReminderConfig returns hourly scans with the shared rule defaults.
func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		Interval:         1 * time.Hour,
		LeadDays:         DefaultReminderLeadDays,
		MileageThreshold: DefaultMileageDueThreshold,
	}
}

type ruleChecker struct {
	rule    string
	checker DueChecker
}

// ReminderProcessor periodically scans active vehicles and publishes a
// reminder event for each satisfied due rule. Without a publisher the
// reminders are only logged.
type ReminderProcessor struct {
	store     *storage.SQLiteRepository
	publisher ReminderPublisher
	checkers  []ruleChecker
	config    ReminderConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReminderProcessor builds a processor with the date and mileage rules
// configured from config.
func NewReminderProcessor(
	store *storage.SQLiteRepository,
	publisher ReminderPublisher,
	config ReminderConfig,
) *ReminderProcessor {
	return &ReminderProcessor{
		store:     store,
		publisher: publisher,
		config:    config,
		checkers: []ruleChecker{
			{RuleByDate, ByDateChecker{LeadDays: config.LeadDays}},
			{RuleByMileage, ByMileageChecker{Threshold: config.MileageThreshold}},
		},
	}
}

// Start launches the scan loop. Starting a running processor is an error.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("reminder processor is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)

	slog.InfoContext(ctx, "Reminder processor started",
		"interval", p.config.Interval,
		"lead_days", p.config.LeadDays,
		"mileage_threshold", p.config.MileageThreshold)

	return nil
}

// Stop cancels the scan loop and waits for it to wind down, or for ctx to
// expire. Stopping a processor that never started is a no-op.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Reminder processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}
}

func (p *ReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *ReminderProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	scan := func() {
		if _, err := p.ProcessNow(ctx, time.Now().UTC()); err != nil {
			slog.ErrorContext(ctx, "Reminder scan failed", "error", err)
		}
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// First scan happens at startup, not one interval later.
	scan()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scan()
		}
	}
}

// ProcessNow scans the fleet once and returns how many reminders were
// raised. Inactive vehicles are skipped.
func (p *ReminderProcessor) ProcessNow(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("reminder processor not properly initialized")
	}

	vehicles, err := p.store.ListVehicles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list vehicles: %w", err)
	}
	schedule, err := p.store.ListPreventativeSchedule(ctx)
	if err != nil {
		return 0, fmt.Errorf("load preventative schedule: %w", err)
	}

	raised := 0
	for _, v := range vehicles {
		if v.Status != core.StatusActive {
			continue
		}
		for _, rc := range p.checkers {
			result, due := rc.checker.Check(v, schedule, now)
			if !due {
				continue
			}
			p.raise(ctx, v, result)
			raised++
		}
	}

	slog.InfoContext(ctx, "Reminder scan complete",
		"vehicles", len(vehicles),
		"raised", raised)
	return raised, nil
}

func (p *ReminderProcessor) raise(ctx context.Context, v core.Vehicle, result DueResult) {
	if p.publisher == nil {
		slog.InfoContext(ctx, "Service reminder (no queue configured)",
			"vehicle_id", v.ID,
			"plate_reg", v.PlateReg,
			"rule", result.Rule,
			"reason", result.Reason)
		return
	}

	msg := amqp.NewReminderMessage(v.ID, v.PlateReg, result.Rule, result.Reason)
	msg.DueDate = result.DueDate.ISO()
	msg.DueMileage = result.DueMileage

	if err := p.publisher.PublishReminder(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish reminder",
			"vehicle_id", v.ID,
			"rule", result.Rule,
			"error", err)
		return
	}

	slog.InfoContext(ctx, "Service reminder published",
		"vehicle_id", v.ID,
		"plate_reg", v.PlateReg,
		"rule", result.Rule,
		"reason", result.Reason)
}
