package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"flotta/internal/amqp"
	"flotta/internal/core"
)

type captureReminderPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ReminderMessage
}

func (p *captureReminderPublisher) PublishReminder(_ context.Context, msg *amqp.ReminderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *captureReminderPublisher) messages() []*amqp.ReminderMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.ReminderMessage(nil), p.msgs...)
}

func TestDefaultReminderConfig(t *testing.T) {
	config := DefaultReminderConfig()

	if config.Interval != 1*time.Hour {
		t.Errorf("expected Interval 1h, got %v", config.Interval)
	}
	if config.LeadDays != 14 {
		t.Errorf("expected LeadDays 14, got %d", config.LeadDays)
	}
	if config.MileageThreshold != 500 {
		t.Errorf("expected MileageThreshold 500, got %d", config.MileageThreshold)
	}
}

func TestProcessNowRaisesDateReminder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := seedVehicle(t, repo, "FLT030") // odometer 41000, next rung 4000 miles off
	v.NextServiceDue = core.NewDate(2024, 3, 8)
	if err := repo.UpdateVehicle(ctx, v); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}

	pub := &captureReminderPublisher{}
	processor := NewReminderProcessor(repo, pub, DefaultReminderConfig())

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	raised, err := processor.ProcessNow(ctx, now)
	if err != nil {
		t.Fatalf("ProcessNow: %v", err)
	}
	if raised != 1 {
		t.Fatalf("raised = %d, want 1", raised)
	}

	msgs := pub.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Strategy != RuleByDate {
		t.Errorf("Strategy = %q, want %q", msg.Strategy, RuleByDate)
	}
	if msg.PlateReg != "FLT030" {
		t.Errorf("PlateReg = %q, want FLT030", msg.PlateReg)
	}
	if msg.DueDate != "2024-03-08" {
		t.Errorf("DueDate = %q, want 2024-03-08", msg.DueDate)
	}
}

func TestProcessNowRaisesMileageReminder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := seedVehicle(t, repo, "FLT031")
	v.Mileage = 44800 // 200 miles short of the 45000 rung
	if err := repo.UpdateVehicle(ctx, v); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}

	pub := &captureReminderPublisher{}
	processor := NewReminderProcessor(repo, pub, DefaultReminderConfig())

	raised, err := processor.ProcessNow(ctx, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessNow: %v", err)
	}
	if raised != 1 {
		t.Fatalf("raised = %d, want 1", raised)
	}

	msg := pub.messages()[0]
	if msg.Strategy != RuleByMileage {
		t.Errorf("Strategy = %q, want %q", msg.Strategy, RuleByMileage)
	}
	if msg.DueMileage != 45000 {
		t.Errorf("DueMileage = %d, want 45000", msg.DueMileage)
	}
}

func TestProcessNowSkipsInactiveVehicles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := seedVehicle(t, repo, "FLT032")
	v.Status = core.StatusInactive
	v.NextServiceDue = core.NewDate(2023, 1, 1) // long overdue, but inactive
	if err := repo.UpdateVehicle(ctx, v); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}

	pub := &captureReminderPublisher{}
	processor := NewReminderProcessor(repo, pub, DefaultReminderConfig())

	raised, err := processor.ProcessNow(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ProcessNow: %v", err)
	}
	if raised != 0 {
		t.Errorf("raised = %d, want 0 for inactive fleet", raised)
	}
}

func TestProcessNowWithoutPublisher(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := seedVehicle(t, repo, "FLT033")
	v.NextServiceDue = core.NewDate(2024, 3, 2)
	if err := repo.UpdateVehicle(ctx, v); err != nil {
		t.Fatalf("UpdateVehicle: %v", err)
	}

	processor := NewReminderProcessor(repo, nil, DefaultReminderConfig())

	raised, err := processor.ProcessNow(ctx, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ProcessNow without publisher: %v", err)
	}
	if raised != 1 {
		t.Errorf("raised = %d, want 1 (logged only)", raised)
	}
}

func TestReminderProcessorLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	config := DefaultReminderConfig()
	config.Interval = 50 * time.Millisecond
	processor := NewReminderProcessor(repo, &captureReminderPublisher{}, config)

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !processor.IsRunning() {
		t.Error("processor should report running after Start")
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not report running after Stop")
	}

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop when not running: %v", err)
	}
}
