// Package model defines core data structures for ethoflow.
package model

import "sort"

// NoFocalSubject is the subject selection sentinel for events that are not
// attributed to a tracked subject. Events carry it as the empty subject name.
const NoFocalSubject = "No focal subject"

// SubjectKey maps a selected subject name to the name used on events and as
// the result table key.
func SubjectKey(subject string) string {
	if subject == NoFocalSubject {
		return ""
	}
	return subject
}

// Status is an explicit transition tag carried by some event sources.
// Most logs leave it unset and rely on start/stop alternation.
type Status uint8

const (
	StatusUnset Status = iota
	StatusStart
	StatusStop
	StatusPoint
)

// String returns the tag as written in tabular exports.
func (s Status) String() string {
	switch s {
	case StatusStart:
		return "START"
	case StatusStop:
		return "STOP"
	case StatusPoint:
		return "POINT"
	default:
		return ""
	}
}

// ParseStatus parses a START/STOP/POINT tag. Unknown values map to StatusUnset.
func ParseStatus(s string) Status {
	switch s {
	case "START", "start", "Start":
		return StatusStart
	case "STOP", "stop", "Stop":
		return StatusStop
	case "POINT", "point", "Point":
		return StatusPoint
	default:
		return StatusUnset
	}
}

// Event is a single coded occurrence in an observation.
type Event struct {
	// Time of the occurrence relative to the observation start.
	Time Time

	// Subject is the focal subject name, empty for no focal subject.
	Subject string

	// Behavior is the ethogram behavior code.
	Behavior string

	// Modifier is an optional free-text qualifier.
	Modifier string

	// Status is set only when the source tags transitions explicitly.
	Status Status
}

// Kind classifies a behavior as having a duration or not.
type Kind uint8

const (
	KindPoint Kind = iota
	KindState
)

// String returns the ethogram type label.
func (k Kind) String() string {
	if k == KindState {
		return "State event"
	}
	return "Point event"
}

// Behavior is one ethogram entry.
type Behavior struct {
	Code        string
	Kind        Kind
	Description string
	Category    string
}

// Ethogram maps behavior codes to their definitions.
type Ethogram map[string]Behavior

// IsState reports whether code is declared as a state behavior.
func (e Ethogram) IsState(code string) bool {
	b, ok := e[code]
	return ok && b.Kind == KindState
}

// StateCodes returns the sorted state behavior codes.
func (e Ethogram) StateCodes() []string {
	codes := make([]string, 0, len(e))
	for code, b := range e {
		if b.Kind == KindState {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Subject is a tracked individual.
type Subject struct {
	Name        string
	Description string
}

// Observation holds the ordered events of one coding session.
type Observation struct {
	ID     string
	Events []Event

	// MediaLength is the total media duration. Valid only if HasMediaLength.
	MediaLength    Time
	HasMediaLength bool
}

// SortEvents orders events by time, keeping the source order of ties.
func (o *Observation) SortEvents() {
	sort.SliceStable(o.Events, func(i, j int) bool {
		return o.Events[i].Time < o.Events[j].Time
	})
}

// LastEventTime returns the time of the latest event, or false if the
// observation has none.
func (o *Observation) LastEventTime() (Time, bool) {
	if len(o.Events) == 0 {
		return 0, false
	}
	last := o.Events[0].Time
	for _, ev := range o.Events[1:] {
		if ev.Time > last {
			last = ev.Time
		}
	}
	return last, true
}

// EventsFor returns the events attributed to subject (empty for no focal subject).
func (o *Observation) EventsFor(subject string) []Event {
	var out []Event
	for _, ev := range o.Events {
		if ev.Subject == subject {
			out = append(out, ev)
		}
	}
	return out
}

// Project bundles the ethogram, subjects and observations of a study.
type Project struct {
	Name         string
	Ethogram     Ethogram
	Subjects     []Subject
	Observations map[string]*Observation
}

// ObservationIDs returns the sorted observation identifiers.
func (p *Project) ObservationIDs() []string {
	ids := make([]string, 0, len(p.Observations))
	for id := range p.Observations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubjectNames returns the declared subject names in declaration order.
func (p *Project) SubjectNames() []string {
	names := make([]string, 0, len(p.Subjects))
	for _, s := range p.Subjects {
		names = append(names, s.Name)
	}
	return names
}
