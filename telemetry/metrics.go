// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SheetCalls          *prometheus.CounterVec // labels: op, result
	SheetRateLimited    prometheus.Counter
	SheetAuthorizations prometheus.Counter
	Applies             *prometheus.CounterVec // labels: outcome
	Lookups             *prometheus.CounterVec // labels: site, result
	Commands            *prometheus.CounterVec // labels: command

	// Histograms (seconds)
	SheetCallDuration *prometheus.HistogramVec // labels: op
	LookupDuration    *prometheus.HistogramVec // labels: site

	// Gauges
	SheetCallsInWindow prometheus.Gauge
	ChannelsJoined     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SheetCalls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "battlesheet_sheet_calls_total", Help: "Spreadsheet service calls by operation and result"}, []string{"op", "result"})
		SheetRateLimited = promauto.NewCounter(prometheus.CounterOpts{Name: "battlesheet_sheet_rate_limited_total", Help: "Spreadsheet calls rejected with a quota error"})
		SheetAuthorizations = promauto.NewCounter(prometheus.CounterOpts{Name: "battlesheet_sheet_authorizations_total", Help: "Credential exchanges performed for the spreadsheet client"})
		Applies = promauto.NewCounterVec(prometheus.CounterOpts{Name: "battlesheet_applies_total", Help: "Apply commands by outcome"}, []string{"outcome"})
		Lookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "battlesheet_rating_lookups_total", Help: "Rating lookups by site and result"}, []string{"site", "result"})
		Commands = promauto.NewCounterVec(prometheus.CounterOpts{Name: "battlesheet_commands_total", Help: "Chat commands dispatched"}, []string{"command"})
		SheetCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "battlesheet_sheet_call_duration_seconds", Help: "Spreadsheet call duration seconds", Buckets: prometheus.DefBuckets}, []string{"op"})
		LookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "battlesheet_rating_lookup_duration_seconds", Help: "Rating lookup duration seconds", Buckets: prometheus.DefBuckets}, []string{"site"})
		SheetCallsInWindow = promauto.NewGauge(prometheus.GaugeOpts{Name: "battlesheet_sheet_calls_in_window", Help: "Spreadsheet calls made in the current 100s quota window"})
		ChannelsJoined = promauto.NewGauge(prometheus.GaugeOpts{Name: "battlesheet_channels_joined", Help: "Channels the bot is currently in"})
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSheetCall records one attempt of a spreadsheet operation.
func ObserveSheetCall(op string, d time.Duration, err error) {
	if SheetCalls != nil {
		SheetCalls.WithLabelValues(op, result(err)).Inc()
	}
	if SheetCallDuration != nil {
		SheetCallDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetSheetCallsInWindow records the current quota window's call count.
func SetSheetCallsInWindow(n int) {
	if SheetCallsInWindow != nil {
		SheetCallsInWindow.Set(float64(n))
	}
}

// ObserveLookup records a rating lookup. notFound lookups are not errors.
func ObserveLookup(site string, d time.Duration, res string) {
	if Lookups != nil {
		Lookups.WithLabelValues(site, res).Inc()
	}
	if LookupDuration != nil {
		LookupDuration.WithLabelValues(site).Observe(d.Seconds())
	}
}

// IncApply counts an apply by outcome (new, updated, moved, error, ...).
func IncApply(outcome string) {
	if Applies != nil {
		Applies.WithLabelValues(outcome).Inc()
	}
}

// IncCommand counts a dispatched chat command.
func IncCommand(name string) {
	if Commands != nil {
		Commands.WithLabelValues(name).Inc()
	}
}

// SetChannelsJoined records how many channels the bot is in.
func SetChannelsJoined(n int) {
	if ChannelsJoined != nil {
		ChannelsJoined.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns base (or the default logger) with a corr attribute if present.
func LoggerWithCorr(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := GetCorrelation(ctx); id != "" {
		return base.With(slog.String("corr", id))
	}
	return base
}
