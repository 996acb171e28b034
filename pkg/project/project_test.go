package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
)

const borisJSON = `{
  "project_name": "pilot",
  "ethogram": {
    "0": {"type": "State event", "key": "r", "code": "rest", "description": "resting", "category": "", "modifiers": ""},
    "1": {"type": "Point event", "key": "b", "code": "bark", "description": "", "category": "vocal", "modifiers": ""},
    "10": {"type": "State event", "key": "w", "code": "walk", "description": "", "category": "", "modifiers": ""},
    "11": {"type": "State event with coding map", "key": "z", "code": "zone", "description": "", "category": "", "modifiers": ""},
    "12": {"type": "Point event with coding map", "key": "s", "code": "spot", "description": "", "category": "", "modifiers": ""}
  },
  "subjects_conf": {
    "1": {"key": "2", "name": "B", "description": ""},
    "0": {"key": "1", "name": "A", "description": "adult"}
  },
  "observations": {
    "obs1": {
      "type": "MEDIA",
      "file": {"1": ["a.mp4", "b.mp4"], "2": []},
      "media_info": {"length": {"a.mp4": 60.5, "b.mp4": 30}},
      "events": [
        [8.0, "A", "rest", "", ""],
        [2.0, "A", "rest", "", ""],
        [3.25, "", "bark", "", "loud"],
        [4, "B", "walk", "fast", ""]
      ]
    },
    "live": {
      "type": "LIVE",
      "events": [[1.5, "A", "rest", "", ""], [12.75, "A", "rest", "", ""]]
    },
    "nomedia": {
      "type": "MEDIA",
      "events": [[1, "A", "rest", "", ""], [2, "A", "rest", "", ""]]
    }
  }
}`

func TestDecode_BORIS(t *testing.T) {
	p, err := Decode([]byte(borisJSON), EncodingJSON)
	if err != nil {
		t.Fatal(err)
	}

	if p.Name != "pilot" {
		t.Errorf("Name = %q", p.Name)
	}
	if !p.Ethogram.IsState("rest") || p.Ethogram.IsState("bark") || !p.Ethogram.IsState("walk") {
		t.Errorf("ethogram kinds wrong: %+v", p.Ethogram)
	}
	if !p.Ethogram.IsState("zone") {
		t.Error("state event with coding map should be a state behavior")
	}
	if b, ok := p.Ethogram["spot"]; !ok || b.Kind != model.KindPoint {
		t.Errorf("point event with coding map = %+v (present %v)", b, ok)
	}
	if p.Ethogram["bark"].Category != "vocal" {
		t.Errorf("category = %q", p.Ethogram["bark"].Category)
	}

	names := p.SubjectNames()
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("subjects = %v", names)
	}

	obs := p.Observations["obs1"]
	if len(obs.Events) != 4 {
		t.Fatalf("events = %d", len(obs.Events))
	}
	if obs.Events[0].Time != 2*model.Second || obs.Events[1].Time != 3250 {
		t.Errorf("events not sorted: %+v", obs.Events)
	}
	for _, e := range obs.Events {
		if e.Status != model.StatusUnset {
			t.Errorf("BORIS event at %s has status %s, want unset", e.Time, e.Status)
		}
	}
	if obs.Events[1].Subject != "" || obs.Events[2].Modifier != "fast" {
		t.Errorf("event fields wrong: %+v", obs.Events)
	}
	if !obs.HasMediaLength || obs.MediaLength != model.MustParseTime("90.5") {
		t.Errorf("media length = %s (%v)", obs.MediaLength, obs.HasMediaLength)
	}

	live := p.Observations["live"]
	if !live.HasMediaLength || live.MediaLength != 12750 {
		t.Errorf("live length = %s", live.MediaLength)
	}
	if p.Observations["nomedia"].HasMediaLength {
		t.Error("observation without media should have no length")
	}
}

func TestDecode_BORISErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"ethogram": [`},
		{"short event", `{"observations": {"o": {"events": [[1, "A"]]}}}`},
		{"bad time", `{"observations": {"o": {"events": [[true, "A", "rest"]]}}}`},
		{"bad type", `{"ethogram": {"0": {"type": "Mood event", "code": "x"}}}`},
	}
	for _, tt := range tests {
		if _, err := Decode([]byte(tt.data), EncodingJSON); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

const projectYAML = `
name: yard
ethogram:
  - {code: rest, type: state}
  - {code: bark, type: point}
subjects:
  - {name: A}
observations:
  obs1:
    media_length: "10"
    events:
      - {time: "8", subject: A, code: rest, status: STOP}
      - {time: "2", subject: A, code: rest, status: START}
      - {time: 3.5, subject: "No focal subject", code: bark}
`

func TestDecode_YAML(t *testing.T) {
	p, err := Decode([]byte(projectYAML), EncodingYAML)
	if err != nil {
		t.Fatal(err)
	}
	obs := p.Observations["obs1"]
	if !obs.HasMediaLength || obs.MediaLength != 10*model.Second {
		t.Errorf("media length = %s", obs.MediaLength)
	}
	if obs.Events[0].Status != model.StatusStart || obs.Events[2].Status != model.StatusStop {
		t.Errorf("statuses = %+v", obs.Events)
	}
	if obs.Events[1].Subject != "" || obs.Events[1].Time != 3500 {
		t.Errorf("no-focal event = %+v", obs.Events[1])
	}

	if _, err := Decode([]byte("ethogram:\n  - {code: a}\n  - {code: a}\n"), EncodingYAML); err == nil {
		t.Error("expected duplicate code error")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.boris")
	os.WriteFile(path, []byte(`{"ethogram": {}, "observations": {}}`), 0644)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "study" {
		t.Errorf("Name should default to file stem, got %q", p.Name)
	}

	if _, err := Load(filepath.Join(dir, "missing.boris")); !eferrors.IsCode(err, eferrors.CodeFileNotFound) {
		t.Errorf("expected FileNotFound, got %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("observations: [\n"), 0644)
	if _, err := Load(bad); !eferrors.IsCode(err, eferrors.CodeProjectLoad) {
		t.Errorf("expected ProjectLoad, got %v", err)
	}
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		path string
		data string
		want Encoding
	}{
		{"a.boris", "", EncodingJSON},
		{"a.yml", "{}", EncodingYAML},
		{"a", "  {\"x\": 1}", EncodingJSON},
		{"a", "name: x", EncodingYAML},
	}
	for _, tt := range tests {
		if got := DetectEncoding(tt.path, []byte(tt.data)); got != tt.want {
			t.Errorf("DetectEncoding(%q) = %v", tt.path, got)
		}
	}
}

func TestObservationLength(t *testing.T) {
	p, _ := Decode([]byte(borisJSON), EncodingJSON)

	got, err := ObservationLength(p, []string{"obs1", "live"}, false)
	if err != nil || got != model.MustParseTime("90.5") {
		t.Errorf("ObservationLength = %s, %v", got, err)
	}

	_, err = ObservationLength(p, []string{"nomedia"}, false)
	if !eferrors.IsCode(err, eferrors.CodeMissingMediaLength) {
		t.Errorf("expected MissingMediaLength, got %v", err)
	}

	got, err = ObservationLength(p, []string{"nomedia"}, true)
	if err != nil || got != 2*model.Second {
		t.Errorf("event-bounded length = %s, %v", got, err)
	}

	if _, err := ObservationLength(p, []string{"nope"}, true); !eferrors.IsCode(err, eferrors.CodeInvalidParameters) {
		t.Errorf("expected InvalidParameters, got %v", err)
	}
}
