package observability

import (
	"context"
	"strconv"
	"time"
)

// HealthStatus is the health state of a component or of the whole service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// severity orders statuses so reports can keep the worst one seen.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// Health is one component's line in a service health report.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthChecker is implemented by components that report their own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// RegistryHealth reports a session registry as a health component. A
// registry holds one entry per live session, so the active count doubles as
// the session load figure.
func RegistryHealth(name string, activeSessions int) Health {
	return Health{
		Name:   name,
		Status: HealthStatusUp,
		Details: map[string]string{
			"active_sessions": strconv.Itoa(activeSessions),
		},
	}
}

// ServiceHealth aggregates component reports into a service-level report.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates an empty report with status up, stamped with the
// check time.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service:   service,
		Status:    HealthStatusUp,
		Version:   version,
		CheckedAt: time.Now(),
	}
}

// AddComponent records a component report. The service status tracks the
// worst component status seen so far.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	if ch.Status.severity() > sh.Status.severity() {
		sh.Status = ch.Status
	}
}
