package export

import (
	"context"
	"sync"
	"testing"

	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/storage/object"
	"github.com/ethoflow/ethoflow/pkg/table"
)

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"obs1_A", "obs1_A"},
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"day 1 (morning)", "day 1 (morning)"},
	}
	for _, tt := range tests {
		if got := SafeFileName(tt.input); got != tt.want {
			t.Errorf("SafeFileName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		unit  table.Unit
		multi bool
		want  string
	}{
		{"multi", "", table.Unit{ObservationID: "obs/1", Subject: "A"}, true, "obs_1_A.tsv"},
		{"multi ignores base", "out.tsv", table.Unit{ObservationID: "o", Subject: "B"}, true, "o_B.tsv"},
		{"single strips extension", "results.tsv", table.Unit{ObservationID: "o", Subject: "A"}, false, "results_A.tsv"},
		{"single keeps dir", "runs/day1", table.Unit{ObservationID: "o", Subject: "A:1"}, false, "runs/day1_A_1.tsv"},
		{"no focal subject", "res", table.Unit{ObservationID: "o", Subject: ""}, false, "res_No focal subject.tsv"},
	}
	for _, tt := range tests {
		if got := FileName(tt.base, tt.unit, FormatTSV, tt.multi); got != tt.want {
			t.Errorf("%s: FileName = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func twoUnitResult(t *testing.T) table.SamplingResult {
	res := table.SamplingResult{}
	res.Set("obs1", "A", sampleTable(t))
	res.Set("obs2", "", sampleTable(t))
	return res
}

type memTracker struct {
	mu   sync.Mutex
	done map[string]bool
}

func (m *memTracker) IsDone(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[path], nil
}

func (m *memTracker) MarkDone(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[path] = true
	return nil
}

func TestWriter_Policies(t *testing.T) {
	ctx := context.Background()
	store, _ := object.NewLocalStorage(t.TempDir())
	res := twoUnitResult(t)

	w, err := NewWriter(store, FormatCSV, WithExportWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	outcomes, err := w.WriteAll(ctx, res)
	if err != nil {
		t.Fatalf("first export failed: %v", err)
	}
	if len(outcomes) != 2 || outcomes[0].Path != "obs1_A.csv" || outcomes[1].Path != "obs2_No focal subject.csv" {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	for _, o := range outcomes {
		if o.Status != StatusWritten || o.Bytes == 0 {
			t.Errorf("outcome = %+v", o)
		}
	}

	// Default policy refuses to overwrite.
	if _, err := w.WriteAll(ctx, res); !eferrors.IsCode(err, eferrors.CodeOutputExists) {
		t.Errorf("expected OutputExists, got %v", err)
	}

	skip, _ := NewWriter(store, FormatCSV, WithPolicy(Skip))
	outcomes, err = skip.WriteAll(ctx, res)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outcomes {
		if o.Status != StatusSkipped {
			t.Errorf("expected skipped, got %+v", o)
		}
	}

	over, _ := NewWriter(store, FormatCSV, WithPolicy(Overwrite))
	outcomes, err = over.WriteAll(ctx, res)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != StatusWritten {
		t.Errorf("expected overwrite, got %+v", outcomes[0])
	}
}

func TestWriter_SingleObservationBase(t *testing.T) {
	store, _ := object.NewLocalStorage(t.TempDir())
	res := table.SamplingResult{}
	res.Set("obs1", "A", sampleTable(t))
	res.Set("obs1", "B", sampleTable(t))

	w, _ := NewWriter(store, FormatXLSX, WithBaseName("study.xlsx"))
	outcomes, err := w.WriteAll(context.Background(), res)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Path != "study_A.xlsx" || outcomes[1].Path != "study_B.xlsx" {
		t.Errorf("paths = %s, %s", outcomes[0].Path, outcomes[1].Path)
	}
	if ok, _ := store.Exists(context.Background(), "study_B.xlsx"); !ok {
		t.Error("file not written")
	}
}

func TestWriter_Resume(t *testing.T) {
	ctx := context.Background()
	store, _ := object.NewLocalStorage(t.TempDir())
	tracker := &memTracker{done: map[string]bool{"obs1_A.tsv": true}}

	w, _ := NewWriter(store, FormatTSV, WithTracker(tracker))
	outcomes, err := w.WriteAll(ctx, twoUnitResult(t))
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Status != StatusResumed {
		t.Errorf("expected resumed, got %+v", outcomes[0])
	}
	if ok, _ := store.Exists(ctx, "obs1_A.tsv"); ok {
		t.Error("resumed unit should not be rewritten")
	}
	if outcomes[1].Status != StatusWritten || !tracker.done["obs2_No focal subject.tsv"] {
		t.Errorf("second unit not tracked: %+v", outcomes[1])
	}
}

func TestWriter_UnsupportedFormat(t *testing.T) {
	store, _ := object.NewLocalStorage(t.TempDir())
	if _, err := NewWriter(store, FormatXLS); !eferrors.IsCode(err, eferrors.CodeUnsupportedFormat) {
		t.Errorf("expected UnsupportedFormat, got %v", err)
	}
}

func TestParseOverwritePolicy(t *testing.T) {
	if p, _ := ParseOverwritePolicy(""); p != Fail {
		t.Errorf("default policy = %q", p)
	}
	if _, err := ParseOverwritePolicy("ask"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
