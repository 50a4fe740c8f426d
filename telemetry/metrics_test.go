package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // idempotent

	if SheetCalls == nil || SheetCallDuration == nil || SheetRateLimited == nil || SheetAuthorizations == nil {
		t.Fatal("sheet metrics not initialized")
	}
	if Applies == nil || Lookups == nil || Commands == nil || ChannelsJoined == nil {
		t.Fatal("bot metrics not initialized")
	}
}

func TestObserveSheetCall(t *testing.T) {
	Init()

	before := testutil.ToFloat64(SheetCalls.WithLabelValues("append", "error"))
	ObserveSheetCall("append", 10*time.Millisecond, errors.New("boom"))
	ObserveSheetCall("append", 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(SheetCalls.WithLabelValues("append", "error")); got != before+1 {
		t.Errorf("error count = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(SheetCalls.WithLabelValues("append", "ok")); got < 1 {
		t.Errorf("ok count = %v, want >= 1", got)
	}
}

func TestGauges(t *testing.T) {
	Init()

	tests := []struct {
		name string
		set  func(int)
		read func() float64
	}{
		{"calls_in_window", SetSheetCallsInWindow, func() float64 { return testutil.ToFloat64(SheetCallsInWindow) }},
		{"channels", SetChannelsJoined, func() float64 { return testutil.ToFloat64(ChannelsJoined) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, n := range []int{0, 7, 42} {
				tt.set(n)
				if got := tt.read(); got != float64(n) {
					t.Errorf("gauge = %v, want %d", got, n)
				}
			}
		})
	}
}

func TestCountersByLabel(t *testing.T) {
	Init()

	before := testutil.ToFloat64(Applies.WithLabelValues("moved"))
	IncApply("moved")
	if got := testutil.ToFloat64(Applies.WithLabelValues("moved")); got != before+1 {
		t.Errorf("applies{moved} = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(Lookups.WithLabelValues("lichess", "not_found"))
	ObserveLookup("lichess", time.Millisecond, "not_found")
	if got := testutil.ToFloat64(Lookups.WithLabelValues("lichess", "not_found")); got != before+1 {
		t.Errorf("lookups = %v, want %v", got, before+1)
	}

	IncCommand("apply")
}

func TestLoggerWithCorr(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	LoggerWithCorr(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "corr=") {
		t.Errorf("unexpected corr attribute: %s", buf.String())
	}

	buf.Reset()
	ctx := WithCorrelation(context.Background(), "abc-123")
	if GetCorrelation(ctx) != "abc-123" {
		t.Fatalf("GetCorrelation = %q", GetCorrelation(ctx))
	}
	LoggerWithCorr(ctx, base).Info("tagged")
	if !strings.Contains(buf.String(), "corr=abc-123") {
		t.Errorf("missing corr attribute: %s", buf.String())
	}
}
