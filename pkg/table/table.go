// Package table holds the tabular result of an instantaneous sampling run.
package table

import (
	"fmt"
	"sort"

	"github.com/ethoflow/ethoflow/internal/model"
)

// TimeHeader is the label of the first column of every ResultTable.
const TimeHeader = "time"

// Label formats a column label for a behavior and modifier.
func Label(code, modifier string, includeModifiers bool) string {
	if !includeModifiers || modifier == "" {
		return code
	}
	return code + " (" + modifier + ")"
}

// Column identifies the (behavior, modifier) pair behind a column.
type Column struct {
	Behavior string
	Modifier string
}

// SortColumns orders columns by behavior code, then modifier.
func SortColumns(cols []Column) {
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Behavior != cols[j].Behavior {
			return cols[i].Behavior < cols[j].Behavior
		}
		return cols[i].Modifier < cols[j].Modifier
	})
}

// Row is one sample instant. Cells are 0 or 1, aligned with Headers[1:].
type Row struct {
	Time  model.Time
	Cells []uint8
}

// ResultTable is a time column plus one boolean column per label.
type ResultTable struct {
	Headers []string
	Rows    []Row
}

// New creates an empty table with "time" followed by labels.
// Labels must be unique.
func New(labels []string) (*ResultTable, error) {
	seen := make(map[string]struct{}, len(labels))
	headers := make([]string, 0, len(labels)+1)
	headers = append(headers, TimeHeader)
	for _, l := range labels {
		if l == TimeHeader {
			return nil, fmt.Errorf("label %q collides with the time column", l)
		}
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("duplicate column label %q", l)
		}
		seen[l] = struct{}{}
		headers = append(headers, l)
	}
	return &ResultTable{Headers: headers}, nil
}

// Labels returns the non-time column labels.
func (t *ResultTable) Labels() []string {
	return t.Headers[1:]
}

// Width returns the number of non-time columns.
func (t *ResultTable) Width() int {
	return len(t.Headers) - 1
}

// Grow reserves capacity for n more rows.
func (t *ResultTable) Grow(n int) {
	if cap(t.Rows)-len(t.Rows) < n {
		rows := make([]Row, len(t.Rows), len(t.Rows)+n)
		copy(rows, t.Rows)
		t.Rows = rows
	}
}

// AppendActive appends a row whose cells are 1 for labels in active.
func (t *ResultTable) AppendActive(at model.Time, active map[string]struct{}) {
	cells := make([]uint8, t.Width())
	for i, l := range t.Labels() {
		if _, ok := active[l]; ok {
			cells[i] = 1
		}
	}
	t.Rows = append(t.Rows, Row{Time: at, Cells: cells})
}

// Column returns the cells of the column with the given label.
func (t *ResultTable) Column(label string) ([]uint8, bool) {
	idx := -1
	for i, l := range t.Labels() {
		if l == label {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]uint8, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row.Cells[idx]
	}
	return out, true
}

// Records renders the table as string records, header first.
// Time cells use the shortest exact decimal form.
func (t *ResultTable) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Headers...))
	for _, row := range t.Rows {
		rec := make([]string, 0, len(row.Cells)+1)
		rec = append(rec, row.Time.String())
		for _, c := range row.Cells {
			if c == 1 {
				rec = append(rec, "1")
			} else {
				rec = append(rec, "0")
			}
		}
		out = append(out, rec)
	}
	return out
}

// SamplingResult maps observation id, then subject key, to a table.
// The no-focal-subject table is keyed by "".
type SamplingResult map[string]map[string]*ResultTable

// Set stores a table, creating the observation entry if needed.
func (r SamplingResult) Set(observationID, subject string, t *ResultTable) {
	bySubject, ok := r[observationID]
	if !ok {
		bySubject = make(map[string]*ResultTable)
		r[observationID] = bySubject
	}
	bySubject[subject] = t
}

// Get returns the table for an observation and subject key.
func (r SamplingResult) Get(observationID, subject string) (*ResultTable, bool) {
	t, ok := r[observationID][subject]
	return t, ok
}

// Unit addresses one (observation, subject) table.
type Unit struct {
	ObservationID string
	Subject       string
}

// Units lists every stored table in observation, then subject order.
func (r SamplingResult) Units() []Unit {
	var units []Unit
	for obsID, bySubject := range r {
		for subj := range bySubject {
			units = append(units, Unit{ObservationID: obsID, Subject: subj})
		}
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].ObservationID != units[j].ObservationID {
			return units[i].ObservationID < units[j].ObservationID
		}
		return units[i].Subject < units[j].Subject
	})
	return units
}
