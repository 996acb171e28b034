package sampling

import (
	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
)

// Parameters selects what to sample. Subjects may include
// model.NoFocalSubject.
type Parameters struct {
	SelectedSubjects              []string
	SelectedBehaviors             []string
	IncludeModifiers              bool
	ExcludeBehaviorsWithoutEvents bool
	StartTime                     model.Time
	EndTime                       model.Time
}

// Validate rejects parameters that cannot produce a meaningful result.
func (p Parameters) Validate(interval model.Time) error {
	switch {
	case len(p.SelectedSubjects) == 0:
		return eferrors.InvalidParameters("no subject selected")
	case len(p.SelectedBehaviors) == 0:
		return eferrors.InvalidParameters("no behavior selected")
	case p.StartTime >= p.EndTime:
		return eferrors.InvalidParameters("start time must be before end time").
			WithContext("start", p.StartTime.String()).
			WithContext("end", p.EndTime.String())
	case interval <= 0:
		return eferrors.InvalidParameters("time interval must be positive").
			WithContext("interval", interval.String())
	}
	return nil
}

// subjects returns the selected subjects without duplicates, in order.
func (p Parameters) subjects() []string {
	seen := make(map[string]struct{}, len(p.SelectedSubjects))
	out := make([]string, 0, len(p.SelectedSubjects))
	for _, s := range p.SelectedSubjects {
		key := model.SubjectKey(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// stateCodes restricts the ethogram's state codes to the selected behaviors.
func (p Parameters) stateCodes(eth model.Ethogram) []string {
	selected := make(map[string]struct{}, len(p.SelectedBehaviors))
	for _, b := range p.SelectedBehaviors {
		selected[b] = struct{}{}
	}
	var codes []string
	for _, code := range eth.StateCodes() {
		if _, ok := selected[code]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}
