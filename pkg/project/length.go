package project

import (
	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
)

// ObservationLength returns the longest length among the selected
// observations, used as the default sampling end. An observation without a
// media length falls back to its last event time when allowEventBounds is
// set, and fails with MissingMediaLength otherwise.
func ObservationLength(p *model.Project, ids []string, allowEventBounds bool) (model.Time, error) {
	var longest model.Time
	for _, id := range ids {
		obs, ok := p.Observations[id]
		if !ok {
			return 0, eferrors.InvalidParameters("unknown observation " + id)
		}

		length := obs.MediaLength
		if !obs.HasMediaLength {
			last, hasEvents := obs.LastEventTime()
			if !allowEventBounds || !hasEvents {
				return 0, eferrors.MissingMediaLength(id)
			}
			length = last
		}
		if length > longest {
			longest = length
		}
	}
	return longest, nil
}
