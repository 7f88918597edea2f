package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the HTTP surface and the
// compliance passes.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64

	ticksRun       int64
	ticketsScanned int64
	warningsSent   int64
	breachesSent   int64
	escalations    int64
	passErrors     int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCompliancePass accumulates the outcome of one monitor tick.
func (m *Metrics) RecordCompliancePass(scanned, warnings, breaches, escalations, errors int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticksRun++
	m.ticketsScanned += int64(scanned)
	m.warningsSent += int64(warnings)
	m.breachesSent += int64(breaches)
	m.escalations += int64(escalations)
	m.passErrors += int64(errors)
}

// ComplianceSnapshot reports accumulated pass counters.
func (m *Metrics) ComplianceSnapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"ticks_run":       m.ticksRun,
		"tickets_scanned": m.ticketsScanned,
		"warnings_sent":   m.warningsSent,
		"breaches_sent":   m.breachesSent,
		"escalations":     m.escalations,
		"pass_errors":     m.passErrors,
	}
}
