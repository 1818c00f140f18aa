// Package services provides business logic and orchestration services.
//
// This file implements the strategy pattern for service-due checking. Each
// rule (calendar date, odometer mileage) has its own checker that
// encapsulates the logic for deciding whether a vehicle needs a reminder.
package services

import (
	"fmt"
	"time"

	"flotta/internal/core"
)

// Default reminder thresholds, overridable via config.
const (
	DefaultReminderLeadDays    = 14
	DefaultMileageDueThreshold = 500
)

// Rule names for the registered checkers.
const (
	RuleByDate    = "by_date"
	RuleByMileage = "by_mileage"
)

// DueResult describes why a vehicle is due for service.
type DueResult struct {
	Rule       string
	Reason     string
	DueDate    core.Date // set by the date rule
	DueMileage int64     // set by the mileage rule
}

// DueChecker is the strategy interface for service-due rules.
type DueChecker interface {
	// Check reports whether the vehicle needs a reminder right now.
	Check(v core.Vehicle, schedule []core.ScheduleEntry, now time.Time) (DueResult, bool)
}

// ByDateChecker flags vehicles whose NextServiceDue date is past or falls
// within the lead window.
type ByDateChecker struct {
	LeadDays int
}

func (c ByDateChecker) Check(v core.Vehicle, _ []core.ScheduleEntry, now time.Time) (DueResult, bool) {
	if v.NextServiceDue.IsEmpty() {
		return DueResult{}, false
	}

	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	horizon := today.AddDate(0, 0, c.LeadDays)
	if v.NextServiceDue.After(horizon) {
		return DueResult{}, false
	}

	reason := fmt.Sprintf("service due %s", v.NextServiceDue.ISO())
	if v.NextServiceDue.Before(today.Time) {
		reason = fmt.Sprintf("service overdue since %s", v.NextServiceDue.ISO())
	}
	return DueResult{
		Rule:    RuleByDate,
		Reason:  reason,
		DueDate: v.NextServiceDue,
	}, true
}

// ByMileageChecker flags vehicles whose odometer is within Threshold miles
// of the next preventative schedule rung. Vehicles past the end of the
// ladder are never flagged.
type ByMileageChecker struct {
	Threshold int64
}

func (c ByMileageChecker) Check(v core.Vehicle, schedule []core.ScheduleEntry, _ time.Time) (DueResult, bool) {
	rung, ok := core.NextService(schedule, v.Mileage)
	if !ok {
		return DueResult{}, false
	}

	remaining := rung.Mileage - v.Mileage
	if remaining > c.Threshold {
		return DueResult{}, false
	}

	return DueResult{
		Rule:       RuleByMileage,
		Reason:     fmt.Sprintf("within %d miles of the %d-mile service (%s)", remaining, rung.Mileage, rung.Recommended),
		DueMileage: rung.Mileage,
	}, true
}

// dueStrategies maps rule names to their default-configured checkers.
// The registry enables lookup by name and extension with custom rules.
var dueStrategies = map[string]DueChecker{
	RuleByDate:    ByDateChecker{LeadDays: DefaultReminderLeadDays},
	RuleByMileage: ByMileageChecker{Threshold: DefaultMileageDueThreshold},
}

// ForRule returns the checker registered under the given rule name.
func ForRule(name string) (DueChecker, error) {
	checker, ok := dueStrategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown due rule: %s", name)
	}
	return checker, nil
}

// RegisterDueChecker registers a custom checker for a new rule name,
// replacing any previous registration.
func RegisterDueChecker(name string, checker DueChecker) {
	dueStrategies[name] = checker
}
