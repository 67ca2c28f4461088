// Package health periodically checks the prediction backend and keeps the
// latest result for the /health endpoint.
package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule checks the backend once a minute
const DefaultSchedule = "@every 1m"

// Checker reports whether a collaborator is reachable
type Checker interface {
	Status(ctx context.Context) error
}

// Status is the outcome of the latest check
type Status struct {
	Healthy   bool       `json:"healthy"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Monitor runs a Checker on a cron schedule
type Monitor struct {
	checker  Checker
	schedule string
	timeout  time.Duration
	cron     *cron.Cron

	mu     sync.RWMutex
	status Status
}

// NewMonitor creates a monitor; an empty schedule uses DefaultSchedule
func NewMonitor(checker Checker, schedule string, timeout time.Duration) *Monitor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Monitor{
		checker:  checker,
		schedule: schedule,
		timeout:  timeout,
		cron:     cron.New(),
	}
}

// Start runs a first check, then schedules the following ones
func (m *Monitor) Start(ctx context.Context) error {
	_, err := m.cron.AddFunc(m.schedule, func() {
		m.Check(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling status check %q: %w", m.schedule, err)
	}

	m.Check(ctx)
	m.cron.Start()
	log.Printf("Backend status check scheduled schedule=%s", m.schedule)
	return nil
}

// Stop ends the schedule and waits for a running check
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

// Check runs the checker once and records the result
func (m *Monitor) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	now := time.Now().UTC()
	status := Status{Healthy: true, CheckedAt: &now}
	if err := m.checker.Status(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
		log.Printf("Backend status check failed error=%v", err)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status
}

// Status returns the latest recorded result. CheckedAt is nil until a
// check has run.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Latest returns the recorded result, running a check first when none has
// been recorded yet. Instances that never call Start, like a Cloud
// Function, get checked on the first read.
func (m *Monitor) Latest(ctx context.Context) Status {
	if status := m.Status(); status.CheckedAt != nil {
		return status
	}
	return m.Check(ctx)
}
