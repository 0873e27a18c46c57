// Package metrics provides callback and signal accounting for the event loop.
//
// A Monitor can be attached to a loop as its Observer:
//
//	monitor := metrics.NewMonitor()
//	monitor.SetLogger(logger.Logger)
//	l := loop.New(loop.WithObserver(monitor))
//	...
//	monitor.LogMetricsSummary(ctx)
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor collects per-operation timing and signal delivery counts
type Monitor struct {
	logger *slog.Logger
	mu     sync.RWMutex

	operations map[string]*OperationMetrics
	signals    map[string]*SignalMetrics
	failures   map[string]*FailureMetrics
}

// OperationMetrics tracks metrics for one kind of scheduled callback
type OperationMetrics struct {
	Name            string        `json:"name"`
	Count           int64         `json:"count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	MaxLateness     time.Duration `json:"max_lateness"`
	LastExecution   time.Time     `json:"last_execution"`
}

// SignalMetrics tracks deliveries of one signal kind
type SignalMetrics struct {
	Kind          string    `json:"kind"`
	Delivered     int64     `json:"delivered"`
	Dropped       int64     `json:"dropped"`
	LastDelivered time.Time `json:"last_delivered"`
}

// FailureMetrics tracks loop failures by error code
type FailureMetrics struct {
	Code         string    `json:"code"`
	Count        int64     `json:"count"`
	LastOccurred time.Time `json:"last_occurred"`
	Message      string    `json:"message"`
}

// NewMonitor creates a new monitor
func NewMonitor() *Monitor {
	return &Monitor{
		operations: make(map[string]*OperationMetrics),
		signals:    make(map[string]*SignalMetrics),
		failures:   make(map[string]*FailureMetrics),
	}
}

// SetLogger sets the logger for metrics output
func (m *Monitor) SetLogger(logger *slog.Logger) {
	m.logger = logger.With(slog.String("component", "metrics"))
}

// CallbackRan records one callback execution. lateness is how far past its
// deadline the callback started.
func (m *Monitor) CallbackRan(operation string, duration, lateness time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, exists := m.operations[operation]
	if !exists {
		metrics = &OperationMetrics{
			Name:        operation,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.operations[operation] = metrics
	}

	metrics.Count++
	metrics.TotalDuration += duration
	metrics.LastExecution = time.Now()

	if duration < metrics.MinDuration {
		metrics.MinDuration = duration
	}
	if duration > metrics.MaxDuration {
		metrics.MaxDuration = duration
	}
	if lateness > metrics.MaxLateness {
		metrics.MaxLateness = lateness
	}

	metrics.AverageDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
}

// SignalDelivered records a signal. handled is false when the signal
// arrived with no handler bound for its kind.
func (m *Monitor) SignalDelivered(kind string, handled bool) {
	m.mu.Lock()
	metrics, exists := m.signals[kind]
	if !exists {
		metrics = &SignalMetrics{Kind: kind}
		m.signals[kind] = metrics
	}
	if handled {
		metrics.Delivered++
		metrics.LastDelivered = time.Now()
	} else {
		metrics.Dropped++
	}
	delivered := metrics.Delivered
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Debug("Signal delivered",
			slog.String("signal", kind),
			slog.Bool("handled", handled),
			slog.Int64("delivered", delivered),
		)
	}
}

// LoopFailed records the error that tore a loop down
func (m *Monitor) LoopFailed(ctx context.Context, code, message string) {
	m.mu.Lock()
	metrics, exists := m.failures[code]
	if !exists {
		metrics = &FailureMetrics{Code: code, Message: message}
		m.failures[code] = metrics
	}
	metrics.Count++
	metrics.LastOccurred = time.Now()
	count := metrics.Count
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.ErrorContext(ctx, "Loop failure tracked",
			slog.String("error_code", code),
			slog.Int64("count", count),
			slog.String("message", message),
		)
	}
}

// GetOperationMetrics returns metrics for a specific operation
func (m *Monitor) GetOperationMetrics(operation string) *OperationMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, exists := m.operations[operation]; exists {
		copy := *metrics
		return &copy
	}
	return nil
}

// GetSignalMetrics returns metrics for a signal kind
func (m *Monitor) GetSignalMetrics(kind string) *SignalMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, exists := m.signals[kind]; exists {
		copy := *metrics
		return &copy
	}
	return nil
}

// GetFailureMetrics returns all failure metrics
func (m *Monitor) GetFailureMetrics() map[string]*FailureMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*FailureMetrics)
	for code, metrics := range m.failures {
		copy := *metrics
		result[code] = &copy
	}
	return result
}

// LogMetricsSummary logs a summary of all collected metrics
func (m *Monitor) LogMetricsSummary(ctx context.Context) {
	if m.logger == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, metrics := range m.operations {
		m.logger.InfoContext(ctx, "Callback metrics",
			slog.String("operation", name),
			slog.Int64("count", metrics.Count),
			slog.Duration("avg_duration", metrics.AverageDuration),
			slog.Duration("max_duration", metrics.MaxDuration),
			slog.Duration("max_lateness", metrics.MaxLateness),
		)
	}

	for kind, metrics := range m.signals {
		m.logger.InfoContext(ctx, "Signal metrics",
			slog.String("signal", kind),
			slog.Int64("delivered", metrics.Delivered),
			slog.Int64("dropped", metrics.Dropped),
		)
	}

	for code, metrics := range m.failures {
		m.logger.InfoContext(ctx, "Failure metrics",
			slog.String("error_code", code),
			slog.Int64("count", metrics.Count),
			slog.Time("last_occurred", metrics.LastOccurred),
		)
	}
}

// Reset clears all metrics
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations = make(map[string]*OperationMetrics)
	m.signals = make(map[string]*SignalMetrics)
	m.failures = make(map[string]*FailureMetrics)
}
