package daymark

import (
	"sort"
	"sync"
	"time"

	"github.com/brightfall/daymark/concurrency"
	"github.com/brightfall/daymark/logx"
	"github.com/brightfall/daymark/solar"
)

// SaveDebounce is the delay between a profile going dirty and its save
// actually running. Repeated dirty edges inside this window coalesce into
// a single write.
const SaveDebounce = 3 * time.Second

// Persister is the single seam through which a Profile reaches the
// filesystem. Kept as an interface — per spec.md §1, file I/O is an
// external, replaceable collaborator; package storage provides the
// concrete JSON-file implementation, wired in by package scheduler.
type Persister interface {
	Save(rec ProfileRecord) error
}

// noopPersister is used by profiles constructed without a Persister
// (standalone use, tests): Changed still arms the debounce timer, but the
// save is a no-op. In-memory state remains fully functional either way.
type noopPersister struct{}

func (noopPersister) Save(ProfileRecord) error { return nil }

// ProfileDeps are the collaborators a Profile needs beyond its own name
// and description. Every field has a usable zero value so a Profile can
// be constructed standalone for tests.
type ProfileDeps struct {
	Latitude, Longitude float64
	SolarProvider       solar.Provider
	Persister           Persister
	Pool                *concurrency.WorkerPool
	Log                 logx.Logger
	Now                 func() time.Time
	SaveDebounce        time.Duration
}

// Profile is a named, persisted container of events. It synchronizes
// mutation of its event map, re-emits event fires as profile-level fires,
// and owns a debounced save path so repeated fires coalesce into one
// on-disk write.
type Profile struct {
	name        string
	description string

	mu     sync.RWMutex
	events map[string]*Event

	lastModified time.Time

	dirty     bool
	dirtyMu   sync.Mutex
	saveTimer *time.Timer
	disposed  bool

	subsMu  sync.Mutex
	subs    map[int]func(*Event)
	nextSub int

	deps ProfileDeps
}

// NewProfile constructs an empty profile named name. deps supplies the
// scheduler's shared geographic coordinates, solar provider, worker pool,
// persister, logger and clock; a zero-valued ProfileDeps still produces a
// fully working, in-memory-only profile (no persistence, real solar
// position math, a private worker pool).
func NewProfile(name, description string, deps ProfileDeps) *Profile {
	if deps.SolarProvider == nil {
		deps.SolarProvider = solar.NOAAProvider{}
	}
	if deps.Persister == nil {
		deps.Persister = noopPersister{}
	}
	if deps.Pool == nil {
		deps.Pool = concurrency.NewWorkerPool(0)
		deps.Pool.Start()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SaveDebounce <= 0 {
		deps.SaveDebounce = SaveDebounce
	}
	return &Profile{
		name:        name,
		description: description,
		events:      make(map[string]*Event),
		subs:        make(map[int]func(*Event)),
		deps:        deps,
	}
}

// Name returns the profile's immutable identity.
func (p *Profile) Name() string { return p.name }

// Description returns the profile's human-supplied description.
func (p *Profile) Description() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.description
}

// LastModified returns the timestamp of the profile's most recent
// successful save.
func (p *Profile) LastModified() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastModified
}

func (p *Profile) solarProvider() solar.Provider { return p.deps.SolarProvider }

func (p *Profile) coordinates() (float64, float64) { return p.deps.Latitude, p.deps.Longitude }

func (p *Profile) actionPool() *concurrency.WorkerPool { return p.deps.Pool }

func (p *Profile) now() time.Time { return p.deps.Now() }

// AddEvent constructs an event from cfg and inserts it under cfg.Name. If
// overwrite is true (the default for a user-facing add), any existing
// event of the same name is removed first; otherwise a name collision
// returns false. Construction failures (ConfigError, ScheduleError) are
// logged and reported as false; with overwrite, an existing event of the
// same name has already been removed by then.
func (p *Profile) AddEvent(cfg EventConfig, overwrite bool) bool {
	if overwrite {
		p.RemoveEvent(cfg.Name)
	}

	ev, err := newEvent(p, cfg, p.now)
	if err != nil {
		p.deps.Log.Warn("event rejected", logx.String("profile", p.name), logx.String("name", cfg.Name), logx.Err(err))
		return false
	}

	p.mu.Lock()
	if _, exists := p.events[ev.name]; exists {
		p.mu.Unlock()
		ev.dispose()
		p.deps.Log.Warn("event name collision", logx.String("profile", p.name), logx.String("name", ev.name))
		return false
	}
	p.events[ev.name] = ev
	p.mu.Unlock()

	p.markDirty()
	return true
}

// RemoveEvent removes and disposes the named event. Reports whether an
// event was actually removed.
func (p *Profile) RemoveEvent(name string) bool {
	p.mu.Lock()
	ev, ok := p.events[name]
	if ok {
		delete(p.events, name)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ev.dispose()
	p.markDirty()
	return true
}

// EnableAllEvents enables every current event. It reports whether at
// least one event's state actually flipped; each flip dirties the
// profile through the event itself.
func (p *Profile) EnableAllEvents() bool {
	changed := false
	for _, ev := range p.snapshot() {
		if ev.Enable() {
			changed = true
		}
	}
	return changed
}

// DisableAllEvents disables every current event. It reports whether at
// least one event's state actually flipped.
func (p *Profile) DisableAllEvents() bool {
	changed := false
	for _, ev := range p.snapshot() {
		if ev.Disable() {
			changed = true
		}
	}
	return changed
}

// RemoveAllEvents removes and disposes every current event.
func (p *Profile) RemoveAllEvents() bool {
	ok := true
	for _, ev := range p.snapshot() {
		if !p.RemoveEvent(ev.Name()) {
			ok = false
		}
	}
	return ok
}

// GetEvents returns a snapshot of the profile's events, sorted ascending
// by target time.
func (p *Profile) GetEvents() []*Event {
	return p.snapshot()
}

// GetEvent looks up an event by name.
func (p *Profile) GetEvent(name string) (*Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ev, ok := p.events[name]
	return ev, ok
}

func (p *Profile) snapshot() []*Event {
	p.mu.RLock()
	out := make([]*Event, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].TargetTime().Before(out[j].TargetTime())
	})
	return out
}

// Subscribe registers fn to be invoked, synchronously on the firing
// event's own tick goroutine, every time one of the profile's events
// fires. It returns an unsubscribe function.
func (p *Profile) Subscribe(fn func(*Event)) func() {
	p.subsMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subsMu.Unlock()

	return func() {
		p.subsMu.Lock()
		delete(p.subs, id)
		p.subsMu.Unlock()
	}
}

// notifyFired re-emits an event fire to every profile-level subscriber.
// A panicking subscriber is swallowed — spec.md's UserCallbackError:
// fan-out never aborts because of a misbehaving subscriber.
func (p *Profile) notifyFired(ev *Event) {
	p.subsMu.Lock()
	fns := make([]func(*Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subsMu.Unlock()

	for _, fn := range fns {
		p.invokeSubscriber(fn, ev)
	}
}

func (p *Profile) invokeSubscriber(fn func(*Event), ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			p.deps.Log.Error("subscriber panicked", logx.String("profile", p.name), logx.Any("recover", r))
		}
	}()
	fn(ev)
}

// markDirty sets the dirty flag and arms the debounced save timer.
// Setting Changed=true (re)arms the timer; an already-dirty profile just
// keeps coalescing under the same pending save.
func (p *Profile) markDirty() {
	p.dirtyMu.Lock()
	defer p.dirtyMu.Unlock()
	if p.disposed {
		return
	}
	p.dirty = true
	if p.saveTimer != nil {
		p.saveTimer.Stop()
	}
	p.saveTimer = time.AfterFunc(p.deps.SaveDebounce, p.saveIfDirty)
}

// Changed reports whether the profile has unsaved mutations.
func (p *Profile) Changed() bool {
	p.dirtyMu.Lock()
	defer p.dirtyMu.Unlock()
	return p.dirty
}

func (p *Profile) saveIfDirty() {
	p.dirtyMu.Lock()
	if !p.dirty {
		p.dirtyMu.Unlock()
		return
	}
	p.dirtyMu.Unlock()
	p.save()
}

// save builds the on-disk record and writes it through the profile's
// Persister. On success the dirty flag clears; on failure the profile
// stays dirty and no new timer is armed, so the write is retried only when
// the next change re-arms the debounce, or by Dispose (PersistenceError —
// in-memory state is authoritative).
func (p *Profile) save() error {
	rec := p.record()
	err := p.deps.Persister.Save(rec)

	p.dirtyMu.Lock()
	if err != nil {
		p.deps.Log.Warn("profile save failed, will retry", logx.String("profile", p.name), logx.Err(err))
	} else {
		p.dirty = false
		p.mu.Lock()
		p.lastModified = p.now()
		p.mu.Unlock()
	}
	p.dirtyMu.Unlock()
	return err
}

// record builds the ProfileRecord to persist: events sorted by target
// time with id reassigned 1..N in that order.
func (p *Profile) record() ProfileRecord {
	events := p.snapshot()
	cfgs := make([]EventConfig, len(events))
	for i, ev := range events {
		ev.setID(uint(i + 1))
		cfgs[i] = ev.config()
	}

	p.mu.RLock()
	lastModified := p.now()
	desc := p.description
	p.mu.RUnlock()

	return ProfileRecord{
		Name:         p.name,
		Description:  desc,
		LastModified: lastModified.Format(targetTimeLayout),
		Events:       cfgs,
	}
}

// Dispose disarms the save timer, flushes one final synchronous save if
// dirty, then removes and disposes every event. Idempotent.
func (p *Profile) Dispose() {
	p.dirtyMu.Lock()
	if p.disposed {
		p.dirtyMu.Unlock()
		return
	}
	p.disposed = true
	if p.saveTimer != nil {
		p.saveTimer.Stop()
	}
	dirty := p.dirty
	p.dirtyMu.Unlock()

	if dirty {
		p.save()
	}

	for _, ev := range p.snapshot() {
		ev.dispose()
	}
	p.mu.Lock()
	p.events = make(map[string]*Event)
	p.mu.Unlock()
}
