// Package monitor tracks background pipeline health for the /v1/health
// endpoint.
package monitor

import (
	"sync"
	"time"

	"github.com/nicktill/skilltrend/pkg/compaction"
)

// CompactionMonitor tracks compaction health and failures.
type CompactionMonitor struct {
	mu                sync.RWMutex
	staleAfter        time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastReport        *compaction.Report
}

// New creates a monitor. staleAfter is how long the pipeline may go without
// a successful run before health flips to degraded; two compaction
// intervals is a reasonable choice.
func New(staleAfter time.Duration) *CompactionMonitor {
	return &CompactionMonitor{staleAfter: staleAfter}
}

// RecordSuccess records a successful compaction run.
func (cm *CompactionMonitor) RecordSuccess(report *compaction.Report) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.lastSuccess = time.Now()
	cm.lastAttempt = time.Now()
	cm.consecutiveErrors = 0
	cm.lastError = ""
	cm.lastReport = report
}

// RecordFailure records a failed compaction run.
func (cm *CompactionMonitor) RecordFailure(err error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.lastAttempt = time.Now()
	cm.consecutiveErrors++
	if err != nil {
		cm.lastError = err.Error()
	}
}

// IsHealthy returns true if compaction is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - Haven't succeeded within staleAfter
//   - More than 3 consecutive failures
func (cm *CompactionMonitor) IsHealthy() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isHealthyLocked()
}

// CompactionStatus is the health-check view of the pipeline.
type CompactionStatus struct {
	Healthy           bool               `json:"healthy"`
	LastSuccess       string             `json:"last_success,omitempty"`
	TimeSinceSuccess  string             `json:"time_since_success,omitempty"`
	LastAttempt       string             `json:"last_attempt,omitempty"`
	ConsecutiveErrors int                `json:"consecutive_errors,omitempty"`
	LastError         string             `json:"last_error,omitempty"`
	LastReport        *compaction.Report `json:"last_report,omitempty"`
}

// Status returns current compaction status for health checks.
func (cm *CompactionMonitor) Status() CompactionStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	status := CompactionStatus{
		Healthy:    cm.isHealthyLocked(),
		LastReport: cm.lastReport,
	}

	if !cm.lastSuccess.IsZero() {
		status.LastSuccess = cm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(cm.lastSuccess).String()
	}
	if !cm.lastAttempt.IsZero() {
		status.LastAttempt = cm.lastAttempt.Format(time.RFC3339)
	}
	if cm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = cm.consecutiveErrors
		status.LastError = cm.lastError
	}

	return status
}

func (cm *CompactionMonitor) isHealthyLocked() bool {
	if cm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(cm.lastSuccess) > cm.staleAfter {
		return false
	}
	if cm.consecutiveErrors > 3 {
		return false
	}
	return true
}
