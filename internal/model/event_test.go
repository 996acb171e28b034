package model

import (
	"reflect"
	"testing"
)

func TestSubjectKey(t *testing.T) {
	if got := SubjectKey(NoFocalSubject); got != "" {
		t.Errorf("SubjectKey(NoFocalSubject) = %q, want empty", got)
	}
	if got := SubjectKey("S1"); got != "S1" {
		t.Errorf("SubjectKey(S1) = %q", got)
	}
}

func TestEthogram_StateCodes(t *testing.T) {
	eth := Ethogram{
		"rest":  {Code: "rest", Kind: KindState},
		"bark":  {Code: "bark", Kind: KindPoint},
		"groom": {Code: "groom", Kind: KindState},
	}

	got := eth.StateCodes()
	if !reflect.DeepEqual(got, []string{"groom", "rest"}) {
		t.Errorf("StateCodes() = %v", got)
	}
	if eth.IsState("bark") || !eth.IsState("rest") || eth.IsState("missing") {
		t.Error("IsState misclassified a code")
	}
}

func TestObservation_SortEventsStable(t *testing.T) {
	obs := &Observation{Events: []Event{
		{Time: 5, Behavior: "b"},
		{Time: 1, Behavior: "a"},
		{Time: 5, Behavior: "c"},
	}}
	obs.SortEvents()

	var order []string
	for _, ev := range obs.Events {
		order = append(order, ev.Behavior)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", order)
	}

	last, ok := obs.LastEventTime()
	if !ok || last != 5 {
		t.Errorf("LastEventTime() = %d, %v", last, ok)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected Status
	}{
		{"START", StatusStart},
		{"stop", StatusStop},
		{"POINT", StatusPoint},
		{"", StatusUnset},
		{"other", StatusUnset},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.input); got != tt.expected {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
