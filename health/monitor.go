package health

import (
	"sync"
	"time"
)

// CheckFunc reports the current health of one component
type CheckFunc func() Status

// Monitor tracks component health in a thread-safe manner. Components either
// push updates or register a check that is evaluated on every aggregation.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checks   map[string]CheckFunc
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checks:   make(map[string]CheckFunc),
	}
}

// Update records the status for a named component
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[name] = normalize(name, status)
}

// Register installs a check for name, replacing any pushed status
func (m *Monitor) Register(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	m.checks[name] = check
}

// Get returns the status for name, running its check if one is registered
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	check, hasCheck := m.checks[name]
	status, exists := m.statuses[name]
	m.mu.RUnlock()

	if hasCheck {
		return normalize(name, check()), true
	}
	return status, exists
}

// Remove removes a component from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	delete(m.checks, name)
}

// AggregateHealth evaluates all checks and combines them with pushed statuses
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subStatuses := make([]Status, 0, len(m.statuses)+len(m.checks))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	// Checks run without the lock so they may call back into the monitor
	for name, check := range checks {
		subStatuses = append(subStatuses, normalize(name, check()))
	}

	return Aggregate(systemName, subStatuses)
}

// Count returns the number of components being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses) + len(m.checks)
}

func normalize(name string, status Status) Status {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	return status
}
