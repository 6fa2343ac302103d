// Package scheduler is the top-level orchestrator: it owns a concurrent
// map of named Profiles, the scheduler-wide config folder and geographic
// coordinates, and the startup scan that loads every profile file. It
// wires together the interfaces package daymark treats as external
// collaborators — storage, the durability journal, logging, and the
// shared action-dispatch worker pool — leaving daymark itself free of any
// of those concrete dependencies.
package scheduler

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/brightfall/daymark"
	"github.com/brightfall/daymark/concurrency"
	"github.com/brightfall/daymark/logx"
	"github.com/brightfall/daymark/solar"
	"github.com/brightfall/daymark/storage"
	"github.com/brightfall/daymark/storage/journal"
)

// Config configures a Scheduler. Every field except ConfigFolder has a
// usable default.
type Config struct {
	ConfigFolder string
	Latitude     float64
	Longitude    float64

	SolarProvider solar.Provider
	Log           logx.Logger
	Now           func() time.Time

	// PoolSize bounds the goroutines ExecuteActions can have in flight at
	// once, shared across every profile. Defaults to GOMAXPROCS*4.
	PoolSize int

	// DisableJournal skips opening the badger-backed durability journal
	// entirely (e.g. for tests that don't want a directory created).
	DisableJournal bool

	// DisableWatch skips the fsnotify directory watch that hot-adds/
	// removes profiles as files appear or disappear after Initialize.
	DisableWatch bool
}

// Scheduler owns every Profile in one config folder.
type Scheduler struct {
	cfg  Config
	pool *concurrency.WorkerPool
	jrnl *journal.Journal
	log  logx.Logger
	now  func() time.Time

	mu       sync.RWMutex
	profiles map[string]*daymark.Profile
	unsub    map[string]func()

	subsMu  sync.Mutex
	subs    map[int]func(*daymark.Event)
	nextSub int

	watcher   *fsnotify.Watcher
	watchStop chan struct{}
	watchWG   sync.WaitGroup

	disposed bool
}

// New constructs a Scheduler. It does not touch the filesystem until
// Initialize is called.
func New(cfg Config) *Scheduler {
	if cfg.SolarProvider == nil {
		cfg.SolarProvider = solar.NOAAProvider{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.GOMAXPROCS(0) * 4
	}

	pool := concurrency.NewWorkerPool(cfg.PoolSize)
	pool.Start()

	return &Scheduler{
		cfg:      cfg,
		pool:     pool,
		log:      cfg.Log,
		now:      cfg.Now,
		profiles: make(map[string]*daymark.Profile),
		unsub:    make(map[string]func()),
		subs:     make(map[int]func(*daymark.Event)),
	}
}

// Initialize ensures the config folder exists, opens the durability
// journal, scans for every "*rofile.json" file, constructs a Profile and
// its Events from each, and — unless disabled — starts watching the
// folder for new or removed profile files.
func (s *Scheduler) Initialize() error {
	if err := storage.EnsureDir(s.cfg.ConfigFolder); err != nil {
		return err
	}

	if !s.cfg.DisableJournal {
		j, err := journal.Open(filepath.Join(s.cfg.ConfigFolder, ".daymark-journal"))
		if err != nil {
			s.log.Warn("journal unavailable, continuing without it", logx.Err(err))
		} else {
			s.jrnl = j
		}
	}

	paths, err := storage.DiscoverProfiles(s.cfg.ConfigFolder)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := s.loadProfileFile(path); err != nil {
			s.log.Warn("failed to load profile file", logx.String("path", path), logx.Err(err))
		}
	}

	if !s.cfg.DisableWatch {
		if err := s.startWatch(); err != nil {
			s.log.Warn("profile directory watch unavailable", logx.Err(err))
		}
	}
	return nil
}

func (s *Scheduler) loadProfileFile(path string) error {
	rec, err := storage.LoadProfile(path)
	if err != nil {
		return err
	}
	if rec.Name == "" {
		return fmt.Errorf("scheduler: %s: missing profile name", path)
	}

	s.mu.Lock()
	if _, exists := s.profiles[rec.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: duplicate profile name %q", rec.Name)
	}
	p := s.newProfileLocked(rec.Name, rec.Description)
	s.profiles[rec.Name] = p
	s.unsub[rec.Name] = p.Subscribe(s.notifyFired)
	s.mu.Unlock()

	for _, cfg := range rec.Events {
		p.AddEvent(cfg, false)
	}

	if s.jrnl != nil {
		if since, pending := s.jrnl.PendingSince(rec.Name); pending {
			s.log.Warn("profile was dirty when the process last exited",
				logx.String("profile", rec.Name), logx.Time("since", since))
		}
	}
	return nil
}

// newProfileLocked constructs a Profile wired to this scheduler's shared
// coordinates, solar provider, worker pool, logger, clock, and a
// journal-backed Persister. Caller must hold s.mu.
func (s *Scheduler) newProfileLocked(name, description string) *daymark.Profile {
	return daymark.NewProfile(name, description, daymark.ProfileDeps{
		Latitude:      s.cfg.Latitude,
		Longitude:     s.cfg.Longitude,
		SolarProvider: s.cfg.SolarProvider,
		Persister:     &filePersister{dir: s.cfg.ConfigFolder, name: name, journal: s.jrnl},
		Pool:          s.pool,
		Log:           s.log,
		Now:           s.now,
	})
}

// AddProfile constructs and registers a new, empty profile. Reports
// false if name is already in use.
func (s *Scheduler) AddProfile(name, description string) bool {
	s.mu.Lock()
	if _, exists := s.profiles[name]; exists {
		s.mu.Unlock()
		return false
	}
	p := s.newProfileLocked(name, description)
	s.profiles[name] = p
	s.unsub[name] = p.Subscribe(s.notifyFired)
	s.mu.Unlock()
	return true
}

// RemoveProfile unregisters, disposes, and deletes the on-disk file for
// the named profile. A profile that doesn't exist is not an error.
func (s *Scheduler) RemoveProfile(name string) error {
	s.mu.Lock()
	p, exists := s.profiles[name]
	if exists {
		delete(s.profiles, name)
		if unsub, ok := s.unsub[name]; ok {
			unsub()
			delete(s.unsub, name)
		}
	}
	s.mu.Unlock()

	if !exists {
		return nil
	}
	p.Dispose()
	if s.jrnl != nil {
		s.jrnl.MarkClean(name, 0)
	}
	return storage.DeleteProfileFile(s.cfg.ConfigFolder, name)
}

// GetProfile looks up a profile by name.
func (s *Scheduler) GetProfile(name string) (*daymark.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	return p, ok
}

// GetProfiles returns a snapshot of every registered profile.
func (s *Scheduler) GetProfiles() []*daymark.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*daymark.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// OnEventFired registers fn to be invoked, synchronously on the firing
// event's own tick goroutine, whenever any profile's event fires. It
// returns an unsubscribe function.
func (s *Scheduler) OnEventFired(fn func(*daymark.Event)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// notifyFired fans an event fire out to every OnEventFired subscriber. A
// panicking subscriber is logged and swallowed; it never stops the fan-out
// to the rest, and never propagates back to the event's tick goroutine.
func (s *Scheduler) notifyFired(ev *daymark.Event) {
	s.subsMu.Lock()
	fns := make([]func(*daymark.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		s.invoke(fn, ev)
	}
}

func (s *Scheduler) invoke(fn func(*daymark.Event), ev *daymark.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("OnEventFired subscriber panicked", logx.Any("recover", r))
		}
	}()
	fn(ev)
}

// Dispose unsubscribes from and disposes every profile (flushing its
// pending save), stops the directory watch, and closes the journal.
// Idempotent.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	profiles := make([]*daymark.Profile, 0, len(s.profiles))
	for name, p := range s.profiles {
		if unsub, ok := s.unsub[name]; ok {
			unsub()
		}
		profiles = append(profiles, p)
	}
	s.profiles = make(map[string]*daymark.Profile)
	s.unsub = make(map[string]func())
	s.mu.Unlock()

	s.stopWatch()

	for _, p := range profiles {
		p.Dispose()
	}
	s.pool.Stop()
	if s.jrnl != nil {
		s.jrnl.Close()
	}
}

// filePersister adapts package storage's JSON-file writer into
// daymark.Persister, journaling the pending write before it happens and
// recording the saved content's hash once it succeeds.
type filePersister struct {
	dir     string
	name    string
	journal *journal.Journal
}

func (p *filePersister) Save(rec daymark.ProfileRecord) error {
	if p.journal != nil {
		p.journal.MarkDirty(p.name)
	}
	if err := storage.SaveProfile(p.dir, rec); err != nil {
		return err
	}
	if p.journal != nil {
		data, err := json.Marshal(rec)
		if err == nil {
			p.journal.MarkClean(p.name, xxhash.Sum64(data))
		}
	}
	return nil
}

// startWatch begins watching the config folder for profile-file creation
// and removal, hot-adding or hot-removing the corresponding in-memory
// Profile. Each fsnotify event is handled as it arrives; there is no
// debouncing. A write to the file of a profile that is already loaded is
// ignored.
func (s *Scheduler) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.cfg.ConfigFolder); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	s.watchStop = make(chan struct{})

	s.watchWG.Add(1)
	go s.watchLoop()
	return nil
}

func (s *Scheduler) watchLoop() {
	defer s.watchWG.Done()
	for {
		select {
		case <-s.watchStop:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleWatchEvent(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("profile directory watch error", logx.Err(err))
		}
	}
}

func (s *Scheduler) handleWatchEvent(ev fsnotify.Event) {
	base := filepath.Base(ev.Name)
	matched, _ := filepath.Match("*rofile.json", base)
	if !matched {
		return
	}
	name := strings.TrimSuffix(base, "-Profile.json")
	name = strings.TrimSuffix(name, "-profile.json")

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		s.mu.RLock()
		_, exists := s.profiles[name]
		s.mu.RUnlock()
		if exists {
			return
		}
		if err := s.loadProfileFile(ev.Name); err != nil {
			s.log.Warn("failed to hot-load new profile file", logx.String("path", ev.Name), logx.Err(err))
			return
		}
		s.log.Info("hot-loaded new profile file", logx.String("profile", name))

	case ev.Op&fsnotify.Remove != 0:
		s.mu.Lock()
		p, exists := s.profiles[name]
		if exists {
			delete(s.profiles, name)
			if unsub, ok := s.unsub[name]; ok {
				unsub()
				delete(s.unsub, name)
			}
		}
		s.mu.Unlock()
		if exists {
			p.Dispose()
			s.log.Info("profile file removed externally, disposed in-memory profile", logx.String("profile", name))
		}
	}
}

func (s *Scheduler) stopWatch() {
	if s.watcher == nil {
		return
	}
	close(s.watchStop)
	s.watcher.Close()
	s.watchWG.Wait()
}
