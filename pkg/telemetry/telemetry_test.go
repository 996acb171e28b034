package telemetry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethoflow/ethoflow/pkg/config"
	"github.com/ethoflow/ethoflow/pkg/sampling"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 10; i++ {
		m.ObserveUnit(sampling.UnitDone{Rows: 5, Elapsed: time.Duration(i) * time.Millisecond})
	}
	m.RecordFile(100)
	m.RecordFile(50)
	m.RecordSkipped()

	s := m.Summary()
	if s.Units != 10 || s.Rows != 50 {
		t.Errorf("units/rows = %d/%d", s.Units, s.Rows)
	}
	if s.FilesWritten != 2 || s.BytesWritten != 150 || s.FilesSkipped != 1 {
		t.Errorf("files = %+v", s)
	}
	if s.P50Latency != 6*time.Millisecond || s.P95Latency != 10*time.Millisecond {
		t.Errorf("percentiles = %v / %v", s.P50Latency, s.P95Latency)
	}

	data, err := s.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil || back["units"].(float64) != 10 {
		t.Errorf("json = %s", data)
	}
}

func TestMetrics_Empty(t *testing.T) {
	if p := NewMetrics().Percentile(0.5); p != 0 {
		t.Errorf("Percentile on empty = %v", p)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := Sampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("Sampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{Endpoint: "collector:4317", Insecure: true, SamplingRatio: 0.5}, "1.2.0")
	if cfg.Endpoint != "collector:4317" || !cfg.InsecureTLS || cfg.SamplingRatio != 0.5 || cfg.ServiceVersion != "1.2.0" {
		t.Errorf("FromConfig = %+v", cfg)
	}
	if cfg.ServiceName != ServiceName {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown = %v", err)
	}
}
