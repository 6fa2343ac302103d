package daymark

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/brightfall/daymark/recurrence"
	"github.com/brightfall/daymark/solar"
)

// fixedSolarProvider returns the same sunset wall-clock time (hour:minute)
// on whatever date it's asked about, so astronomical event tests can pin
// down an exact boundary without depending on NOAAProvider's numerics.
type fixedSolarProvider struct {
	sunset time.Time
}

func (f fixedSolarProvider) GetSolarTimes(date time.Time, lat, lon float64) (solar.Times, error) {
	loc := date.Location()
	y, m, d := date.Date()
	return solar.Times{
		Sunset: time.Date(y, m, d, f.sunset.Hour(), f.sunset.Minute(), 0, 0, loc),
	}, nil
}

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw") // fixed +02:00 in July, matches spec.md's scenarios
	if err != nil {
		loc = time.FixedZone("+02:00", 2*3600)
	}
	return loc
}

func clockAt(t time.Time) (func() time.Time, func(time.Time)) {
	var cur atomic.Value
	cur.Store(t)
	get := func() time.Time { return cur.Load().(time.Time) }
	set := func(nt time.Time) { cur.Store(nt) }
	return get, set
}

func newTestProfile(now func() time.Time) *Profile {
	return NewProfile("test", "", ProfileDeps{Now: now})
}

func TestAddEventOneShotFuture(t *testing.T) {
	loc := mustLoc(t)
	created := time.Date(2025, 9, 1, 11, 59, 0, 0, loc)
	now, setNow := clockAt(created)
	p := newTestProfile(now)
	defer p.Dispose()

	target := time.Date(2025, 9, 1, 12, 0, 0, 0, loc)
	ok := p.AddEvent(EventConfig{
		Name:       "one-shot",
		Type:       "AbsoluteEvent",
		State:      "Enabled",
		Frequency:  "NotSet",
		TargetTime: target.Format(targetTimeLayout),
	}, true)
	if !ok {
		t.Fatalf("AddEvent returned false for a future one-shot")
	}

	ev, ok := p.GetEvent("one-shot")
	if !ok {
		t.Fatal("event not found after add")
	}

	setNow(target)
	ev.onTick()

	if ev.LastFired() == nil {
		t.Fatal("expected lastFired to be set after firing")
	}
	if _, still := p.GetEvent("one-shot"); still {
		t.Fatal("one-shot event should remove itself from the profile after firing")
	}
	if !p.Changed() {
		t.Fatal("profile should be marked dirty after a fire")
	}
}

func TestAddEventPastOneShotRejected(t *testing.T) {
	loc := mustLoc(t)
	now, _ := clockAt(time.Date(2025, 9, 1, 12, 1, 0, 0, loc))
	p := newTestProfile(now)
	defer p.Dispose()

	target := time.Date(2025, 9, 1, 12, 0, 0, 0, loc)
	ok := p.AddEvent(EventConfig{
		Name:       "late",
		Frequency:  "NotSet",
		TargetTime: target.Format(targetTimeLayout),
	}, true)
	if ok {
		t.Fatal("AddEvent should reject a one-shot whose target has already passed")
	}
	if _, exists := p.GetEvent("late"); exists {
		t.Fatal("rejected event must not appear in the profile's event map")
	}
}

func TestEveryTenMinutes(t *testing.T) {
	loc := mustLoc(t)
	created := time.Date(2025, 7, 15, 9, 7, 30, 0, loc)
	now, _ := clockAt(created)
	p := newTestProfile(now)
	defer p.Dispose()

	target := time.Date(2025, 7, 10, 0, 0, 0, 0, loc)
	p.AddEvent(EventConfig{
		Name:       "every-10",
		Frequency:  "EveryNthMinute",
		Rate:       10,
		TargetTime: target.Format(targetTimeLayout),
	}, true)

	ev, _ := p.GetEvent("every-10")
	want := time.Date(2025, 7, 15, 9, 10, 0, 0, loc)
	if !ev.TargetTime().Equal(want) {
		t.Fatalf("first target = %v, want %v", ev.TargetTime(), want)
	}
}

func TestWeekdaysOnly(t *testing.T) {
	loc := mustLoc(t)
	created := time.Date(2025, 7, 11, 7, 1, 0, 0, loc) // Friday
	now, _ := clockAt(created)
	p := newTestProfile(now)
	defer p.Dispose()

	target := time.Date(2025, 7, 7, 7, 0, 0, 0, loc) // Monday
	p.AddEvent(EventConfig{
		Name:       "weekdays",
		Frequency:  "EveryNthWeek",
		Rate:       1,
		AddRate:    int32(recurrence.Workdays),
		TargetTime: target.Format(targetTimeLayout),
	}, true)

	ev, _ := p.GetEvent("weekdays")
	want := time.Date(2025, 7, 14, 7, 0, 0, 0, loc) // next Monday
	if !ev.TargetTime().Equal(want) {
		t.Fatalf("target = %v, want %v", ev.TargetTime(), want)
	}
}

func TestFirstAndFifteenth(t *testing.T) {
	loc := mustLoc(t)
	created := time.Date(2025, 7, 10, 9, 0, 1, 0, loc)
	now, setNow := clockAt(created)
	p := newTestProfile(now)
	defer p.Dispose()

	mask := int32(1<<1) | int32(1<<15)
	target := time.Date(2025, 7, 10, 9, 0, 0, 0, loc)
	p.AddEvent(EventConfig{
		Name:       "bimonthly",
		Frequency:  "EveryNthMonth",
		Rate:       1,
		AddRate:    mask,
		TargetTime: target.Format(targetTimeLayout),
	}, true)

	ev, _ := p.GetEvent("bimonthly")
	want := time.Date(2025, 7, 15, 9, 0, 0, 0, loc)
	if !ev.TargetTime().Equal(want) {
		t.Fatalf("first target = %v, want %v", ev.TargetTime(), want)
	}

	setNow(want)
	ev.onTick()
	want2 := time.Date(2025, 8, 1, 9, 0, 0, 0, loc)
	if !ev.TargetTime().Equal(want2) {
		t.Fatalf("second target = %v, want %v", ev.TargetTime(), want2)
	}

	setNow(want2)
	ev.onTick()
	want3 := time.Date(2025, 8, 15, 9, 0, 0, 0, loc)
	if !ev.TargetTime().Equal(want3) {
		t.Fatalf("third target = %v, want %v", ev.TargetTime(), want3)
	}
}

func TestEventActions(t *testing.T) {
	now, _ := clockAt(time.Now())
	p := newTestProfile(now)
	defer p.Dispose()

	p.AddEvent(EventConfig{
		Name:       "actions",
		Frequency:  "NotSet",
		TargetTime: now().Add(time.Hour).Format(targetTimeLayout),
		Actions:    []string{"lights-on", "lights-on", " lock-doors "},
	}, true)
	ev, _ := p.GetEvent("actions")

	got := ev.GetActions()
	if len(got) != 2 {
		t.Fatalf("expected duplicate and whitespace actions to be collapsed, got %v", got)
	}
	if !ev.HasAction("lights-on") || !ev.HasAction("lock-doors") {
		t.Fatalf("unexpected actions: %v", got)
	}

	if ev.AddAction("lights-on") {
		t.Fatal("adding a duplicate action should report false")
	}
	if !ev.AddAction("siren") {
		t.Fatal("adding a new action should report true")
	}
	if !ev.RemoveAction("siren") {
		t.Fatal("removing a present action should report true")
	}
	if ev.RemoveAction("siren") {
		t.Fatal("removing an already-absent action should report false")
	}

	ev.ClearActions()
	if ev.HasActions() {
		t.Fatal("expected no actions after ClearActions")
	}
}

func TestEventExecuteActionsRunsConcurrentlyAndSurvivesPanic(t *testing.T) {
	now, _ := clockAt(time.Now())
	p := newTestProfile(now)
	defer p.Dispose()

	p.AddEvent(EventConfig{
		Name:       "actions",
		Frequency:  "NotSet",
		TargetTime: now().Add(time.Hour).Format(targetTimeLayout),
		Actions:    []string{"a", "b", "panics"},
	}, true)
	ev, _ := p.GetEvent("actions")

	var count int32
	ev.ExecuteActions(func(action string, e *Event) {
		if action == "panics" {
			panic("boom")
		}
		atomic.AddInt32(&count, 1)
	})

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&count) < 2 {
		select {
		case <-deadline:
			t.Fatal("ExecuteActions callbacks never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEnableDisable(t *testing.T) {
	now, _ := clockAt(time.Now())
	p := newTestProfile(now)
	defer p.Dispose()

	p.AddEvent(EventConfig{
		Name:       "toggle",
		Frequency:  "EveryNthDay",
		Rate:       1,
		State:      "Disabled",
		TargetTime: now().Add(time.Hour).Format(targetTimeLayout),
	}, true)
	ev, _ := p.GetEvent("toggle")

	if ev.State() != StateDisabled {
		t.Fatal("expected event to start disabled")
	}
	if !ev.Enable() {
		t.Fatal("enabling a disabled event should report a state flip")
	}
	if ev.State() != StateEnabled {
		t.Fatal("expected Enable to set state to Enabled")
	}
	if ev.Enable() {
		t.Fatal("enabling an already-enabled event should report false")
	}
	if !ev.Disable() {
		t.Fatal("disabling an enabled event should report a state flip")
	}
	if ev.State() != StateDisabled {
		t.Fatal("expected Disable to set state to Disabled")
	}
	if ev.Disable() { // no-op success
		t.Fatal("disabling an already-disabled event should report false")
	}
}

// TestAstronomicalEventOffsetWindow exercises scenario 6 at the exact
// boundary the default "Sunset:-10" offset sits on: now falls between the
// offset-adjusted instant and the raw phenomenon, so the event must skip
// to the next day rather than arm with a targetTime already in the past.
func TestAstronomicalEventOffsetWindow(t *testing.T) {
	loc := time.UTC
	rawSunset := time.Date(0, 1, 1, 19, 30, 0, 0, loc)
	// now sits 5 minutes before the raw sunset, i.e. after the -10 minute
	// offset-adjusted instant (19:20) but before the raw one (19:30).
	created := time.Date(2025, 6, 1, 19, 25, 0, 0, loc)
	now, _ := clockAt(created)

	p := NewProfile("test", "", ProfileDeps{
		Now:           now,
		SolarProvider: fixedSolarProvider{sunset: rawSunset},
		Latitude:      44.8125,
		Longitude:     20.4612,
	})
	defer p.Dispose()

	ok := p.AddEvent(EventConfig{
		Name:        "dusk-lights",
		Type:        "AstronomicalEvent",
		State:       "Enabled",
		Frequency:   "EveryNthDay",
		Rate:        1,
		AstroOffset: "Sunset:-10",
		TargetTime:  created.Format(targetTimeLayout),
	}, true)
	if !ok {
		t.Fatal("AddEvent returned false")
	}

	ev, _ := p.GetEvent("dusk-lights")
	if !ev.TargetTime().After(now().Add(time.Minute)) {
		t.Fatalf("targetTime %v must be strictly after now+1min (%v)", ev.TargetTime(), now().Add(time.Minute))
	}
	want := time.Date(2025, 6, 2, 19, 20, 0, 0, loc)
	if !ev.TargetTime().Equal(want) {
		t.Fatalf("targetTime = %v, want %v", ev.TargetTime(), want)
	}
}

func TestEventAcknowledgeRoundTrips(t *testing.T) {
	now, _ := clockAt(time.Now())
	p := newTestProfile(now)
	defer p.Dispose()

	p.AddEvent(EventConfig{
		Name:        "ack",
		Frequency:   "NotSet",
		TargetTime:  now().Add(time.Hour).Format(targetTimeLayout),
		Acknowledge: true,
	}, true)
	ev, _ := p.GetEvent("ack")

	if !ev.Acknowledge() {
		t.Fatal("expected Acknowledge() to reflect cfg.Acknowledge=true")
	}
	if cfg := ev.config(); !cfg.Acknowledge {
		t.Fatal("expected config() to preserve acknowledge=true for the next save")
	}
}
