package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
)

// Reason classifies a pairing diagnostic.
type Reason string

const (
	ReasonUnpairedStart    Reason = "unpaired_start"
	ReasonStopWithoutStart Reason = "stop_without_start"
	ReasonConsecutiveStart Reason = "consecutive_start"
	ReasonUnknownBehavior  Reason = "unknown_behavior"
)

// Diagnostic locates one pairing problem.
type Diagnostic struct {
	ObservationID string
	Subject       string
	Behavior      string
	Modifier      string
	Time          model.Time
	Reason        Reason
}

// String renders the diagnostic for humans.
func (d Diagnostic) String() string {
	subject := d.Subject
	if subject == "" {
		subject = model.NoFocalSubject
	}
	behavior := fmt.Sprintf("%q", d.Behavior)
	if d.Modifier != "" {
		behavior += " (" + d.Modifier + ")"
	}

	switch d.Reason {
	case ReasonUnknownBehavior:
		return fmt.Sprintf("behavior %s not found in the ethogram (subject %q at %s)", behavior, subject, d.Time)
	case ReasonStopWithoutStart:
		return fmt.Sprintf("behavior %s stopped without a start for subject %q at %s", behavior, subject, d.Time)
	case ReasonConsecutiveStart:
		return fmt.Sprintf("behavior %s started twice without a stop for subject %q at %s", behavior, subject, d.Time)
	default:
		return fmt.Sprintf("behavior %s is not paired for subject %q at %s", behavior, subject, d.Time)
	}
}

// Result is the outcome of validating one observation.
type Result struct {
	OK          bool
	Diagnostics []Diagnostic
}

// Message joins the diagnostics, one per line.
func (r Result) Message() string {
	if r.OK {
		return "no problem detected"
	}
	lines := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Err returns nil for a valid observation, otherwise an UnpairedStateEvents error.
func (r Result) Err(observationID string) error {
	if r.OK {
		return nil
	}
	return eferrors.UnpairedStateEvents(observationID, r.Message())
}

type pairKey struct {
	subject  string
	behavior string
}

// ValidateObservation checks that every state behavior alternates start and
// stop for each subject. An open interval at the end of the observation is a
// failure. Explicit START/STOP tags, when present, are checked against the
// alternation.
func ValidateObservation(obs *model.Observation, eth model.Ethogram) Result {
	groups := make(map[pairKey][]model.Event)
	var keys []pairKey
	var diags []Diagnostic

	for _, ev := range obs.Events {
		b, known := eth[ev.Behavior]
		if !known {
			diags = append(diags, Diagnostic{
				ObservationID: obs.ID,
				Subject:       ev.Subject,
				Behavior:      ev.Behavior,
				Modifier:      ev.Modifier,
				Time:          ev.Time,
				Reason:        ReasonUnknownBehavior,
			})
			continue
		}
		if b.Kind != model.KindState {
			continue
		}
		k := pairKey{subject: ev.Subject, behavior: ev.Behavior}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], ev)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].subject != keys[j].subject {
			return keys[i].subject < keys[j].subject
		}
		return keys[i].behavior < keys[j].behavior
	})

	for _, k := range keys {
		diags = append(diags, replayPairs(obs.ID, groups[k])...)
	}

	return Result{OK: len(diags) == 0, Diagnostics: diags}
}

// Validate is the boolean form of ValidateObservation.
func Validate(obs *model.Observation, eth model.Ethogram) (bool, string) {
	r := ValidateObservation(obs, eth)
	return r.OK, r.Message()
}

func replayPairs(observationID string, events []model.Event) []Diagnostic {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})

	var diags []Diagnostic
	var open *model.Event
	diag := func(ev model.Event, reason Reason) {
		diags = append(diags, Diagnostic{
			ObservationID: observationID,
			Subject:       ev.Subject,
			Behavior:      ev.Behavior,
			Modifier:      ev.Modifier,
			Time:          ev.Time,
			Reason:        reason,
		})
	}

	for i := range events {
		ev := events[i]
		switch ev.Status {
		case model.StatusStart:
			if open != nil {
				diag(ev, ReasonConsecutiveStart)
			}
			open = &events[i]
		case model.StatusStop:
			if open == nil {
				diag(ev, ReasonStopWithoutStart)
				continue
			}
			open = nil
		default:
			if open != nil {
				open = nil
			} else {
				open = &events[i]
			}
		}
	}

	if open != nil {
		diag(*open, ReasonUnpairedStart)
	}
	return diags
}

// Rejection records an observation excluded from a batch.
type Rejection struct {
	ObservationID string
	Result        Result
}

// BatchResult splits a selection into valid and rejected observations.
type BatchResult struct {
	Kept     []string
	Rejected []Rejection
}

// Message renders all rejections, grouped by observation.
func (b BatchResult) Message() string {
	var sb strings.Builder
	for _, r := range b.Rejected {
		sb.WriteString("Observation: ")
		sb.WriteString(r.ObservationID)
		sb.WriteString("\n")
		sb.WriteString(r.Result.Message())
		sb.WriteString("\n")
	}
	return sb.String()
}

// ValidateBatch validates each selected observation, preserving selection order.
func ValidateBatch(p *model.Project, observationIDs []string) (BatchResult, error) {
	var out BatchResult
	for _, id := range observationIDs {
		obs, ok := p.Observations[id]
		if !ok {
			return BatchResult{}, eferrors.InvalidParameters("unknown observation").
				WithContext("observation", id)
		}
		r := ValidateObservation(obs, p.Ethogram)
		if r.OK {
			out.Kept = append(out.Kept, id)
			continue
		}
		out.Rejected = append(out.Rejected, Rejection{ObservationID: id, Result: r})
	}
	return out, nil
}
