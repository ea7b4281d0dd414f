package telemetry

import (
	"context"
	"testing"
)

func TestSetupDisabledForcesOffMode(t *testing.T) {
	runtime, err := Setup(Config{
		Enabled:   false,
		TraceMode: "detailed",
	})
	if err != nil {
		t.Fatalf("Setup() unexpected error: %v", err)
	}
	defer func() {
		_ = runtime.Shutdown(context.Background())
	}()

	if TraceMode() != "off" {
		t.Fatalf("TraceMode() = %q, want off", TraceMode())
	}
	if ShouldTraceDependencies() {
		t.Fatalf("ShouldTraceDependencies() = true, want false when disabled")
	}
}

func TestSetupDetailedEnablesDependencySpans(t *testing.T) {
	runtime, err := Setup(Config{
		Enabled:     true,
		ServiceName: "team-status-test",
		TraceMode:   "detailed",
	})
	if err != nil {
		t.Fatalf("Setup() unexpected error: %v", err)
	}
	defer func() {
		_ = runtime.Shutdown(context.Background())
	}()

	if !ShouldTraceDependencies() {
		t.Fatalf("ShouldTraceDependencies() = false, want true in detailed mode")
	}
	setTraceMode("off")
}

func TestNormalizeTraceMode(t *testing.T) {
	testCases := []struct {
		raw  string
		want string
	}{
		{raw: "off", want: "off"},
		{raw: " Errors ", want: "errors"},
		{raw: "", want: "sampled"},
		{raw: "detailed", want: "detailed"},
		{raw: "bogus", want: "sampled"},
	}

	for _, tc := range testCases {
		if got := normalizeTraceMode(tc.raw); got != tc.want {
			t.Fatalf("normalizeTraceMode(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestClampRatio(t *testing.T) {
	if got := clampRatio(-0.5); got != 0 {
		t.Fatalf("clampRatio(-0.5) = %v, want 0", got)
	}
	if got := clampRatio(1.5); got != 1 {
		t.Fatalf("clampRatio(1.5) = %v, want 1", got)
	}
	if got := clampRatio(0.25); got != 0.25 {
		t.Fatalf("clampRatio(0.25) = %v, want 0.25", got)
	}
}
