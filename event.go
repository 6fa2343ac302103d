package daymark

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brightfall/daymark/logx"
	"github.com/brightfall/daymark/recurrence"
	"github.com/brightfall/daymark/solar"
	"github.com/brightfall/daymark/ticker"
)

// Event is one recurrence rule plus target time plus action list. It owns
// a one-shot timer (ticker.MinuteTicker) that observes minute boundaries
// and dispatches a fire at most once per occurrence. name is its identity
// within the owning Profile and never changes after construction.
type Event struct {
	mu sync.RWMutex

	name           string
	id             uint
	description    string
	recDescription string
	state          EventState
	typ            EventType
	rule           recurrence.Rule
	astroOffset    string
	targetTime     time.Time
	lastFired      *time.Time
	actions        []string
	acknowledge    bool

	profile *Profile
	tick    *ticker.MinuteTicker
	now     func() time.Time
}

// newEvent validates and normalizes cfg into an Event owned by p. It
// returns a *ScheduleError if cfg describes a one-shot event whose target
// time has already passed, and a *ConfigError for a recurrence rule with
// an invalid rate/add-rate — in both cases the event is not constructed.
func newEvent(p *Profile, cfg EventConfig, now func() time.Time) (*Event, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, &ConfigError{Field: "name", Msg: "must not be empty"}
	}

	typ := ParseEventType(cfg.Type)
	state := ParseEventState(cfg.State)
	rule := recurrence.Rule{
		Kind:    recurrence.ParseKind(cfg.Frequency),
		Rate:    cfg.Rate,
		AddRate: cfg.AddRate,
	}
	if err := rule.Validate(); err != nil {
		return nil, &ConfigError{Field: "frequency", Msg: err.Error()}
	}

	astroOffset := ""
	if typ == TypeAstronomical {
		astroOffset = strings.TrimSpace(cfg.AstroOffset)
		if astroOffset == "" {
			astroOffset = DefaultAstroOffset
		}
	}

	nowTime := now()
	target, err := parseTargetTime(cfg, nowTime)
	if err != nil {
		return nil, err
	}
	if cfg.TargetTime == "" && (cfg.Date == "" || cfg.Time == "") {
		p.deps.Log.Warn("event has no target time, defaulting to now+5m",
			logx.String("profile", p.name), logx.String("name", name))
	}

	var lastFired *time.Time
	if cfg.LastFired != "" {
		if t, err := time.Parse(targetTimeLayout, cfg.LastFired); err == nil {
			lastFired = &t
		}
	}

	e := &Event{
		name:        name,
		id:          cfg.ID,
		description: cfg.Description,
		state:       state,
		typ:         typ,
		rule:        rule,
		astroOffset: astroOffset,
		lastFired:   lastFired,
		actions:     dedupeActions(cfg.Actions),
		acknowledge: cfg.Acknowledge,
		profile:     p,
		now:         now,
	}

	target, err = e.advanceToFuture(target, nowTime)
	if err != nil {
		return nil, &ConfigError{Field: "frequency", Msg: err.Error()}
	}
	e.targetTime = target
	e.recDescription = recurrence.Describe(rule, target)

	if rule.Kind == recurrence.KindNone && !target.After(nowTime) {
		return nil, &ScheduleError{Name: name, Msg: "one-shot target time is in the past"}
	}

	e.tick = ticker.NewWithClock(now, e.onTick)
	if state == StateEnabled {
		e.tick.Start()
	}
	return e, nil
}

// advanceToFuture brings a nominal target time into the future using
// recurrence arithmetic, then resolves an astronomical anchor against the
// resulting date if the event is Astronomical. For KindNone this only
// rounds target to the minute (recurrence.NextFire doesn't advance a
// one-shot rule); the caller is responsible for rejecting a past one-shot
// target.
func (e *Event) advanceToFuture(target, now time.Time) (time.Time, error) {
	next, err := recurrence.NextFire(target, now, e.rule)
	if err != nil {
		return time.Time{}, err
	}
	if e.typ == TypeAstronomical {
		return e.resolveAstro(next, now), nil
	}
	return next, nil
}

// resolveAstro replaces nominal's time-of-day with the solar phenomenon
// named by the event's astroOffset, computed for nominal's date, plus the
// offset's signed minutes. The guard check inside solar.Resolve is applied
// to the offset-adjusted instant, not the raw phenomenon — otherwise a
// negative offset (e.g. the "Sunset:-10" default) could land targetTime in
// the past whenever now falls inside the offset window.
func (e *Event) resolveAstro(nominal, now time.Time) time.Time {
	provider := e.profile.solarProvider()
	lat, lon := e.profile.coordinates()
	kind, offsetMinutes := parseAstroOffset(e.astroOffset)
	offset := time.Duration(offsetMinutes) * time.Minute

	allowPast := e.rule.Kind == recurrence.KindNone
	instant, err := solar.Resolve(provider, kind, nominal, now, lat, lon, offset, allowPast)
	if err != nil {
		return recurrence.RoundToMinute(nominal)
	}
	return recurrence.RoundToMinute(instant)
}

// parseAstroOffset parses "<Kind>:<±minutes>", e.g. "Sunset:-10". The two
// parts fall back independently: an unrecognized kind becomes Sunset, and
// a missing colon or unparseable offset becomes a zero offset.
func parseAstroOffset(s string) (solar.Kind, int) {
	parts := strings.SplitN(s, ":", 2)
	kind := solar.ParseKind(parts[0])
	if len(parts) < 2 {
		return kind, 0
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return kind, 0
	}
	return kind, minutes
}

// parseTargetTime resolves an event's starting target time from its
// config: the preferred target-time field, then a combined legacy
// date+time pair, then now+5 minutes as a last resort.
func parseTargetTime(cfg EventConfig, now time.Time) (time.Time, error) {
	if cfg.TargetTime != "" {
		t, err := time.Parse(targetTimeLayout, cfg.TargetTime)
		if err != nil {
			return time.Time{}, &ConfigError{Field: "target-time", Msg: err.Error()}
		}
		return t, nil
	}
	if cfg.Date != "" && cfg.Time != "" {
		d, err := time.ParseInLocation(legacyDateLayout, cfg.Date, now.Location())
		if err != nil {
			return time.Time{}, &ConfigError{Field: "date", Msg: err.Error()}
		}
		c, err := time.Parse(legacyTimeLayout, cfg.Time)
		if err != nil {
			return time.Time{}, &ConfigError{Field: "time", Msg: err.Error()}
		}
		return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, now.Location()), nil
	}
	return now.Add(5 * time.Minute), nil
}

func dedupeActions(actions []string) []string {
	if len(actions) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// onTick is the MinuteTicker callback: it runs on the timer's own
// goroutine, synchronously, once per minute boundary. On a fire it
// notifies subscribers first, then records lastFired and advances (or
// removes) the event — every write to these fields, here or in Enable,
// happens under e.mu, so the unlocked notify leaves no window for a torn
// update.
func (e *Event) onTick() {
	now := e.now()

	e.mu.RLock()
	due := !now.Before(e.targetTime)
	e.mu.RUnlock()
	if !due {
		return
	}

	e.profile.notifyFired(e)

	e.mu.Lock()
	firedAt := now
	e.lastFired = &firedAt
	removeSelf := e.rule.Kind == recurrence.KindNone
	if !removeSelf {
		if next, err := e.advanceToFuture(e.targetTime, now); err == nil {
			e.targetTime = next
			e.recDescription = recurrence.Describe(e.rule, next)
		}
	} else {
		e.tick.Stop()
	}
	e.mu.Unlock()

	e.profile.markDirty()
	if removeSelf {
		e.profile.RemoveEvent(e.name)
	}
}

// Name returns the event's immutable identity within its profile.
func (e *Event) Name() string {
	return e.name
}

// ID returns the event's display-order number, as last assigned by the
// owning profile's most recent save.
func (e *Event) ID() uint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

func (e *Event) setID(id uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.id = id
}

// Description returns the event's human-supplied description.
func (e *Event) Description() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.description
}

// RecDescription returns the derived, deterministic recurrence summary.
func (e *Event) RecDescription() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recDescription
}

// State reports whether the event's timer is currently armed.
func (e *Event) State() EventState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Type reports whether the event is anchored to wall-clock time or to a
// solar phenomenon.
func (e *Event) Type() EventType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.typ
}

// Rule returns the event's recurrence rule.
func (e *Event) Rule() recurrence.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rule
}

// AstroOffset returns the "<Kind>:<±minutes>" string anchoring an
// Astronomical event, or "" for an Absolute one.
func (e *Event) AstroOffset() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.astroOffset
}

// TargetTime returns the next local wall-clock instant the event will
// fire at, always rounded to the minute.
func (e *Event) TargetTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.targetTime
}

// Acknowledge reports the event's reserved acknowledge flag, preserved
// verbatim from its config across save/load (spec.md §6).
func (e *Event) Acknowledge() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.acknowledge
}

// LastFired returns the instant of the event's most recent fire, or nil
// if it has never fired.
func (e *Event) LastFired() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastFired == nil {
		return nil
	}
	t := *e.lastFired
	return &t
}

// Enable arms the event's timer, recomputing the next target time past
// now. It reports whether the state actually flipped; enabling an
// already-enabled event still recomputes the target but reports false.
func (e *Event) Enable() bool {
	e.mu.Lock()
	now := e.now()
	if next, err := e.advanceToFuture(e.targetTime, now); err == nil {
		e.targetTime = next
		e.recDescription = recurrence.Describe(e.rule, next)
	}
	changed := e.state != StateEnabled
	e.state = StateEnabled
	e.mu.Unlock()

	e.tick.Start()
	e.profile.markDirty()
	return changed
}

// Disable stops the event's timer and reports whether the state actually
// flipped. Disabling an already-disabled event is a no-op success: it
// reports false and does not dirty the profile.
func (e *Event) Disable() bool {
	e.tick.Stop()
	e.mu.Lock()
	changed := e.state != StateDisabled
	e.state = StateDisabled
	e.mu.Unlock()
	if changed {
		e.profile.markDirty()
	}
	return changed
}

// dispose stops the event's timer permanently. Called by the owning
// profile on removal or disposal; after it returns, no further callbacks
// fire for this event.
func (e *Event) dispose() {
	e.tick.Stop()
}

// AddAction appends name to the action list if it isn't already present.
// Reports whether the action was added.
func (e *Event) AddAction(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	e.mu.Lock()
	for _, a := range e.actions {
		if a == name {
			e.mu.Unlock()
			return false
		}
	}
	e.actions = append(e.actions, name)
	e.mu.Unlock()
	e.profile.markDirty()
	return true
}

// RemoveAction removes name from the action list by exact match. Reports
// whether an action was removed.
func (e *Event) RemoveAction(name string) bool {
	e.mu.Lock()
	removed := false
	out := e.actions[:0:0]
	for _, a := range e.actions {
		if a == name && !removed {
			removed = true
			continue
		}
		out = append(out, a)
	}
	e.actions = out
	e.mu.Unlock()
	if removed {
		e.profile.markDirty()
	}
	return removed
}

// ClearActions removes every action.
func (e *Event) ClearActions() {
	e.mu.Lock()
	had := len(e.actions) > 0
	e.actions = nil
	e.mu.Unlock()
	if had {
		e.profile.markDirty()
	}
}

// SetActions replaces the action list wholesale, deduplicating by exact
// match and dropping empty/blank entries.
func (e *Event) SetActions(names []string) {
	e.mu.Lock()
	e.actions = dedupeActions(names)
	e.mu.Unlock()
	e.profile.markDirty()
}

// GetActions returns a copy of the event's action list.
func (e *Event) GetActions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.actions))
	copy(out, e.actions)
	return out
}

// HasAction reports whether name is present in the action list.
func (e *Event) HasAction(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, a := range e.actions {
		if a == name {
			return true
		}
	}
	return false
}

// HasActions reports whether the event has any actions at all.
func (e *Event) HasActions() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.actions) > 0
}

// ExecuteActions invokes cb once per action name through the owning
// profile's shared worker pool. A panic inside cb is recovered, so it
// never escapes to the caller or crashes a worker permanently; cb's
// errors (if any) are not observed by the event. The caller is not
// always unblocked: submission waits while the pool's queue is full, and
// when the pool is not running each cb runs synchronously on the
// caller's goroutine.
func (e *Event) ExecuteActions(cb func(action string, ev *Event)) {
	for _, action := range e.GetActions() {
		action := action
		e.profile.actionPool().Submit(func() {
			cb(action, e)
		})
	}
}

// config renders the event's current in-memory state as the JSON record
// spec.md §6 describes, used by the profile when it saves.
func (e *Event) config() EventConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg := EventConfig{
		ID:             e.id,
		Name:           e.name,
		Description:    e.description,
		RecDescription: e.recDescription,
		Type:           e.typ.String(),
		State:          e.state.String(),
		Frequency:      e.rule.Kind.String(),
		Rate:           e.rule.Rate,
		AddRate:        e.rule.AddRate,
		AstroOffset:    e.astroOffset,
		TargetTime:     e.targetTime.Format(targetTimeLayout),
		Acknowledge:    e.acknowledge,
		Actions:        append([]string(nil), e.actions...),
	}
	if e.lastFired != nil {
		cfg.LastFired = e.lastFired.Format(targetTimeLayout)
	}
	return cfg
}
