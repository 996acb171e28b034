package sampling

import (
	"sort"

	"github.com/ethoflow/ethoflow/internal/model"
	"github.com/ethoflow/ethoflow/pkg/table"
)

// Interval is one occurrence of a state behavior, active over [Start, Stop).
// Open intervals have no stop and stay active from Start onwards.
type Interval struct {
	Start    model.Time
	Stop     model.Time
	Modifier string
	Open     bool
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t model.Time) bool {
	if t < iv.Start {
		return false
	}
	return iv.Open || t < iv.Stop
}

// Resolver answers which state behaviors are active for one subject.
// Intervals are indexed once, so each query costs O(codes * log intervals).
type Resolver struct {
	codes     []string
	intervals map[string][]Interval
}

// NewResolver indexes the state intervals of subject for the given codes.
// Events may belong to several subjects; only subject's events are used.
func NewResolver(events []model.Event, subject string, stateCodes []string) *Resolver {
	r := &Resolver{
		codes:     append([]string(nil), stateCodes...),
		intervals: make(map[string][]Interval, len(stateCodes)),
	}
	sort.Strings(r.codes)

	byCode := make(map[string][]model.Event, len(stateCodes))
	for _, code := range r.codes {
		byCode[code] = nil
	}
	for _, ev := range events {
		if ev.Subject != subject {
			continue
		}
		if _, ok := byCode[ev.Behavior]; ok {
			byCode[ev.Behavior] = append(byCode[ev.Behavior], ev)
		}
	}

	for code, evs := range byCode {
		if len(evs) > 0 {
			r.intervals[code] = buildIntervals(evs)
		}
	}
	return r
}

// buildIntervals pairs events in time order. Untagged events alternate
// start/stop; a tagged start while open closes the previous interval and a
// tagged stop with nothing open is ignored.
func buildIntervals(events []model.Event) []Interval {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})

	var out []Interval
	var cur *Interval
	closeAt := func(t model.Time) {
		cur.Stop = t
		cur.Open = false
		out = append(out, *cur)
		cur = nil
	}

	for _, ev := range events {
		switch ev.Status {
		case model.StatusStart:
			if cur != nil {
				closeAt(ev.Time)
			}
			cur = &Interval{Start: ev.Time, Modifier: ev.Modifier, Open: true}
		case model.StatusStop:
			if cur != nil {
				closeAt(ev.Time)
			}
		default:
			if cur != nil {
				closeAt(ev.Time)
			} else {
				cur = &Interval{Start: ev.Time, Modifier: ev.Modifier, Open: true}
			}
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// Intervals returns the indexed intervals of a code.
func (r *Resolver) Intervals(code string) []Interval {
	return r.intervals[code]
}

// activeAt returns the interval of code covering t, if any.
func (r *Resolver) activeAt(code string, t model.Time) (Interval, bool) {
	ivs := r.intervals[code]
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].Start > t })
	if i == 0 {
		return Interval{}, false
	}
	iv := ivs[i-1]
	return iv, iv.Contains(t)
}

// ActiveStates returns the labels of the state behaviors active at t.
func (r *Resolver) ActiveStates(t model.Time, includeModifiers bool) map[string]struct{} {
	active := make(map[string]struct{})
	for _, code := range r.codes {
		if iv, ok := r.activeAt(code, t); ok {
			active[table.Label(code, iv.Modifier, includeModifiers)] = struct{}{}
		}
	}
	return active
}

// ActiveStates resolves a single instant without keeping an index. Events must
// already be restricted to one subject.
func ActiveStates(events []model.Event, stateCodes []string, t model.Time, includeModifiers bool) map[string]struct{} {
	subject := ""
	if len(events) > 0 {
		subject = events[0].Subject
	}
	return NewResolver(events, subject, stateCodes).ActiveStates(t, includeModifiers)
}
