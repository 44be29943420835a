// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-databox.
//
// go-databox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package health implements liveness, readiness and startup probes for the
// databox server. Readiness runs registered checks, typically the entropy
// source self-test and a split/combine round trip on every scheme.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-databox/pkg/metrics"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the component works with reduced capacity,
	// e.g. the entropy resolver fell back to its secondary source.
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 5 * time.Second

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs a health check. It should return well within the
// context deadline.
type CheckFunc func(ctx context.Context) CheckResult

// Checker manages health checks following Kubernetes probe semantics:
// liveness (restart?), readiness (route traffic?) and startup (initialized?).
type Checker struct {
	mu           sync.RWMutex
	started      bool
	startTime    time.Time
	checkTimeout time.Duration
	checks       map[string]CheckFunc
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]CheckFunc),
		startTime:    time.Now(),
		checkTimeout: DefaultCheckTimeout,
	}
}

// SetCheckTimeout changes the per-check deadline. Non-positive values are ignored.
func (c *Checker) SetCheckTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkTimeout = d
}

// RegisterCheck adds or replaces the named check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a health check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// MarkStarted marks the service as fully started and ready.
func (c *Checker) MarkStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
}

// MarkNotStarted marks the service as not started, e.g. during shutdown.
func (c *Checker) MarkNotStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
}

// Live reports whether the process is running. The engine holds no state
// that could wedge, so liveness never fails.
func (c *Checker) Live(ctx context.Context) CheckResult {
	return CheckResult{
		Name:    "liveness",
		Status:  StatusHealthy,
		Message: "Service is alive",
	}
}

// Ready runs every registered check, each under the check timeout, and
// returns the results ordered by name. Gauges in the metrics package track
// the outcome of each check.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.checkTimeout
	c.mu.RUnlock()

	if len(checks) == 0 {
		return []CheckResult{{
			Name:    "default",
			Status:  StatusHealthy,
			Message: "No readiness checks configured",
		}}
	}

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		results = append(results, c.run(ctx, name, check, timeout))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func (c *Checker) run(ctx context.Context, name string, check CheckFunc, timeout time.Duration) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := check(checkCtx)
	result.Latency = time.Since(start)
	if result.Name == "" {
		result.Name = name
	}
	// Degraded counts as failing in the gauge.
	metrics.SetCheckHealth(result.Name, result.Status == StatusHealthy)
	return result
}

// Startup fails until MarkStarted is called.
func (c *Checker) Startup(ctx context.Context) CheckResult {
	c.mu.RLock()
	started := c.started
	startTime := c.startTime
	c.mu.RUnlock()

	if !started {
		return CheckResult{
			Name:    "startup",
			Status:  StatusUnhealthy,
			Message: "Service initialization not complete",
		}
	}

	return CheckResult{
		Name:    "startup",
		Status:  StatusHealthy,
		Message: fmt.Sprintf("Service fully initialized (uptime: %s)", time.Since(startTime).Round(time.Second)),
	}
}

// GetAllChecks returns the sorted names of all registered checks.
func (c *Checker) GetAllChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsHealthy returns true if all readiness checks pass.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return AggregateStatus(c.Ready(ctx)) == StatusHealthy
}

// IsStarted returns true if the service has been marked as started.
func (c *Checker) IsStarted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Uptime returns how long the service has been running.
func (c *Checker) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// AggregateStatus is unhealthy if any result is unhealthy, degraded if any
// is degraded, and healthy otherwise.
func AggregateStatus(results []CheckResult) Status {
	status := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
