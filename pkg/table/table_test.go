package table

import (
	"reflect"
	"testing"

	"github.com/ethoflow/ethoflow/internal/model"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		code, modifier string
		include        bool
		expected       string
	}{
		{"walk", "fast", true, "walk (fast)"},
		{"walk", "fast", false, "walk"},
		{"walk", "", true, "walk"},
		{"walk", "", false, "walk"},
	}
	for _, tt := range tests {
		if got := Label(tt.code, tt.modifier, tt.include); got != tt.expected {
			t.Errorf("Label(%q, %q, %v) = %q, want %q", tt.code, tt.modifier, tt.include, got, tt.expected)
		}
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	if _, err := New([]string{"a", "b", "a"}); err == nil {
		t.Error("expected duplicate label error")
	}
	if _, err := New([]string{"time"}); err == nil {
		t.Error("expected collision with time column")
	}

	tbl, err := New([]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tbl.Headers, []string{"time", "a", "b"}) {
		t.Errorf("Headers = %v", tbl.Headers)
	}
}

func TestResultTable_AppendActive(t *testing.T) {
	tbl, _ := New([]string{"groom", "rest"})
	tbl.Grow(2)
	tbl.AppendActive(0, map[string]struct{}{"rest": {}})
	tbl.AppendActive(model.Second, map[string]struct{}{"groom": {}, "other": {}})

	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if !reflect.DeepEqual(tbl.Rows[0].Cells, []uint8{0, 1}) {
		t.Errorf("row 0 = %v", tbl.Rows[0].Cells)
	}
	if !reflect.DeepEqual(tbl.Rows[1].Cells, []uint8{1, 0}) {
		t.Errorf("row 1 = %v", tbl.Rows[1].Cells)
	}

	col, ok := tbl.Column("rest")
	if !ok || !reflect.DeepEqual(col, []uint8{1, 0}) {
		t.Errorf("Column(rest) = %v, %v", col, ok)
	}
	if _, ok := tbl.Column("missing"); ok {
		t.Error("Column(missing) should not be found")
	}
}

func TestResultTable_Records(t *testing.T) {
	tbl, _ := New([]string{"rest"})
	tbl.AppendActive(2500, map[string]struct{}{"rest": {}})

	want := [][]string{{"time", "rest"}, {"2.5", "1"}}
	if got := tbl.Records(); !reflect.DeepEqual(got, want) {
		t.Errorf("Records() = %v, want %v", got, want)
	}
}

func TestSortColumns(t *testing.T) {
	cols := []Column{{"b", ""}, {"a", "z"}, {"a", ""}, {"a", "m"}}
	SortColumns(cols)
	want := []Column{{"a", ""}, {"a", "m"}, {"a", "z"}, {"b", ""}}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("SortColumns = %v", cols)
	}
}

func TestSamplingResult_Units(t *testing.T) {
	r := SamplingResult{}
	tbl, _ := New(nil)
	r.Set("obs2", "S1", tbl)
	r.Set("obs1", "S2", tbl)
	r.Set("obs1", "", tbl)

	want := []Unit{{"obs1", ""}, {"obs1", "S2"}, {"obs2", "S1"}}
	if got := r.Units(); !reflect.DeepEqual(got, want) {
		t.Errorf("Units() = %v", got)
	}
	if _, ok := r.Get("obs2", "S1"); !ok {
		t.Error("Get(obs2, S1) missing")
	}
}
