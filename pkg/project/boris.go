package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethoflow/ethoflow/internal/model"
)

// Field positions in a BORIS event row.
const (
	eventTime = iota
	eventSubject
	eventCode
	eventModifier
	eventComment
)

type borisProject struct {
	Name         string                      `json:"project_name"`
	Ethogram     map[string]borisBehavior    `json:"ethogram"`
	Subjects     map[string]borisSubject     `json:"subjects_conf"`
	Observations map[string]borisObservation `json:"observations"`
}

type borisBehavior struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type borisSubject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type borisObservation struct {
	Type      string          `json:"type"`
	Events    [][]interface{} `json:"events"`
	MediaInfo struct {
		Length map[string]json.Number `json:"length"`
	} `json:"media_info"`
	File map[string][]string `json:"file"`
}

// decodeBORIS reads the JSON project layout written by BORIS.
func decodeBORIS(data []byte) (*model.Project, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw borisProject
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}

	p := &model.Project{
		Name:         raw.Name,
		Ethogram:     make(model.Ethogram, len(raw.Ethogram)),
		Observations: make(map[string]*model.Observation, len(raw.Observations)),
	}

	for _, key := range sortedKeys(raw.Ethogram) {
		b := raw.Ethogram[key]
		kind, err := parseKind(b.Type)
		if err != nil {
			return nil, fmt.Errorf("ethogram entry %s: %w", b.Code, err)
		}
		p.Ethogram[b.Code] = model.Behavior{
			Code:        b.Code,
			Kind:        kind,
			Description: b.Description,
			Category:    b.Category,
		}
	}

	for _, key := range sortedKeys(raw.Subjects) {
		s := raw.Subjects[key]
		p.Subjects = append(p.Subjects, model.Subject{Name: s.Name, Description: s.Description})
	}

	for id, o := range raw.Observations {
		obs := &model.Observation{ID: id, Events: make([]model.Event, 0, len(o.Events))}
		for i, row := range o.Events {
			ev, err := borisEvent(row)
			if err != nil {
				return nil, fmt.Errorf("observation %s event %d: %w", id, i, err)
			}
			obs.Events = append(obs.Events, ev)
		}

		if o.Type == "LIVE" {
			if last, ok := obs.LastEventTime(); ok {
				obs.MediaLength, obs.HasMediaLength = last, true
			}
		} else if length, ok, err := mediaLength(o); err != nil {
			return nil, fmt.Errorf("observation %s: %w", id, err)
		} else if ok {
			obs.MediaLength, obs.HasMediaLength = length, true
		}
		p.Observations[id] = obs
	}

	return p, nil
}

func borisEvent(row []interface{}) (model.Event, error) {
	if len(row) <= eventCode {
		return model.Event{}, fmt.Errorf("expected at least %d fields, got %d", eventCode+1, len(row))
	}

	t, err := numberTime(row[eventTime])
	if err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		Time:     t,
		Subject:  field(row, eventSubject),
		Behavior: field(row, eventCode),
		Modifier: field(row, eventModifier),
	}
	return ev, nil
}

func field(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func numberTime(v interface{}) (model.Time, error) {
	switch n := v.(type) {
	case json.Number:
		return model.ParseTime(n.String())
	case string:
		return model.ParseTime(n)
	default:
		return 0, fmt.Errorf("invalid event time %v", v)
	}
}

// mediaLength sums the lengths of the first player's media files. When the
// player list is absent every listed length counts.
func mediaLength(o borisObservation) (model.Time, bool, error) {
	if len(o.MediaInfo.Length) == 0 {
		return 0, false, nil
	}

	files := o.File["1"]
	if len(files) == 0 {
		for f := range o.MediaInfo.Length {
			files = append(files, f)
		}
	}

	var total model.Time
	found := false
	for _, f := range files {
		n, ok := o.MediaInfo.Length[f]
		if !ok {
			continue
		}
		t, err := model.ParseTime(n.String())
		if err != nil {
			return 0, false, fmt.Errorf("media length of %s: %w", f, err)
		}
		if t <= 0 {
			continue
		}
		total += t
		found = true
	}
	return total, found, nil
}

// sortedKeys orders BORIS's stringified integer keys numerically.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
