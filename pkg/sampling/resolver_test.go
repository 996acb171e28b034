package sampling

import (
	"testing"

	"github.com/ethoflow/ethoflow/internal/model"
)

func has(set map[string]struct{}, label string) bool {
	_, ok := set[label]
	return ok
}

func TestActiveStates_Window(t *testing.T) {
	events := []model.Event{
		{Time: 2 * model.Second, Subject: "A", Behavior: "s"},
		{Time: 8 * model.Second, Subject: "A", Behavior: "s"},
	}
	codes := []string{"s"}

	tests := []struct {
		at     string
		active bool
	}{
		{"1.999", false},
		{"2", true},
		{"7.999", true},
		{"8", false},
		{"100", false},
	}
	for _, tt := range tests {
		got := ActiveStates(events, codes, model.MustParseTime(tt.at), false)
		if has(got, "s") != tt.active {
			t.Errorf("t=%s: active=%v, want %v", tt.at, has(got, "s"), tt.active)
		}
	}
}

func TestResolver_OpenInterval(t *testing.T) {
	events := []model.Event{
		{Time: 3 * model.Second, Behavior: "rest"},
	}
	r := NewResolver(events, "", []string{"rest"})

	if has(r.ActiveStates(2999, false), "rest") {
		t.Error("open interval active before its start")
	}
	if !has(r.ActiveStates(3*model.Second, false), "rest") {
		t.Error("open interval not active at its start")
	}
	if !has(r.ActiveStates(model.Hour, false), "rest") {
		t.Error("open interval should remain active")
	}
}

func TestResolver_Modifiers(t *testing.T) {
	events := []model.Event{
		{Time: 0, Subject: "A", Behavior: "walk", Modifier: "slow"},
		{Time: 1000, Subject: "A", Behavior: "walk", Modifier: "slow"},
		{Time: 2000, Subject: "A", Behavior: "walk", Modifier: "fast"},
		{Time: 3000, Subject: "A", Behavior: "walk", Modifier: "fast"},
	}
	r := NewResolver(events, "A", []string{"walk"})

	if !has(r.ActiveStates(500, true), "walk (slow)") {
		t.Error("expected walk (slow) at 0.5")
	}
	if !has(r.ActiveStates(2500, true), "walk (fast)") {
		t.Error("expected walk (fast) at 2.5")
	}
	if !has(r.ActiveStates(2500, false), "walk") {
		t.Error("expected plain walk without modifiers")
	}
	if got := r.ActiveStates(1500, true); len(got) != 0 {
		t.Errorf("expected nothing active at 1.5, got %v", got)
	}
}

func TestResolver_FiltersSubjectAndCodes(t *testing.T) {
	events := []model.Event{
		{Time: 0, Subject: "A", Behavior: "rest"},
		{Time: 0, Subject: "B", Behavior: "groom"},
		{Time: 0, Subject: "A", Behavior: "groom"},
	}
	r := NewResolver(events, "A", []string{"rest"})

	got := r.ActiveStates(1000, false)
	if len(got) != 1 || !has(got, "rest") {
		t.Errorf("ActiveStates = %v, want only rest", got)
	}
	if len(r.Intervals("groom")) != 0 {
		t.Error("unselected code should not be indexed")
	}
}

func TestResolver_TaggedTransitions(t *testing.T) {
	events := []model.Event{
		{Time: 0, Behavior: "rest", Status: model.StatusStop},
		{Time: 1000, Behavior: "rest", Status: model.StatusStart},
		{Time: 2000, Behavior: "rest", Status: model.StatusStart, Modifier: "deep"},
		{Time: 4000, Behavior: "rest", Status: model.StatusStop},
	}
	r := NewResolver(events, "", []string{"rest"})

	ivs := r.Intervals("rest")
	if len(ivs) != 2 {
		t.Fatalf("expected 2 intervals, got %+v", ivs)
	}
	if ivs[0].Start != 1000 || ivs[0].Stop != 2000 || ivs[0].Open {
		t.Errorf("first interval = %+v", ivs[0])
	}
	if ivs[1].Modifier != "deep" || ivs[1].Stop != 4000 {
		t.Errorf("second interval = %+v", ivs[1])
	}
	if has(r.ActiveStates(500, false), "rest") {
		t.Error("orphan stop should not open an interval")
	}
}

func TestResolver_ZeroLengthInterval(t *testing.T) {
	events := []model.Event{
		{Time: 1000, Behavior: "rest"},
		{Time: 1000, Behavior: "rest"},
	}
	r := NewResolver(events, "", []string{"rest"})
	if has(r.ActiveStates(1000, false), "rest") {
		t.Error("zero-length interval should never be active")
	}
}

func BenchmarkResolver_ActiveStates(b *testing.B) {
	var events []model.Event
	for i := 0; i < 2000; i++ {
		events = append(events, model.Event{Time: model.Time(i) * 500, Behavior: "rest"})
	}
	r := NewResolver(events, "", []string{"rest"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ActiveStates(model.Time(i%1000000), false)
	}
}
