// Command daymarkd hosts a Scheduler against a config folder on disk: it
// loads every profile, watches the folder for new or removed profile
// files, and logs each event fire until interrupted.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightfall/daymark"
	"github.com/brightfall/daymark/logx"
	"github.com/brightfall/daymark/scheduler"
)

func main() {
	var (
		configFolder = flag.String("config", "./profiles", "folder containing *-Profile.json files")
		latitude     = flag.Float64("lat", 0, "observer latitude in decimal degrees")
		longitude    = flag.Float64("lon", 0, "observer longitude in decimal degrees")
		logLevel     = flag.String("log-level", "info", "debug, info, warn, or error")
		noWatch      = flag.Bool("no-watch", false, "disable hot-add/hot-remove directory watch")
		noJournal    = flag.Bool("no-journal", false, "disable the badger-backed durability journal")
	)
	flag.Parse()

	log := logx.NewConsole(*logLevel)

	sch := scheduler.New(scheduler.Config{
		ConfigFolder:   *configFolder,
		Latitude:       *latitude,
		Longitude:      *longitude,
		Log:            log,
		DisableWatch:   *noWatch,
		DisableJournal: *noJournal,
	})

	if err := sch.Initialize(); err != nil {
		log.Error("initialize failed", logx.Err(err))
		os.Exit(1)
	}
	defer sch.Dispose()

	unsub := sch.OnEventFired(func(ev *daymark.Event) {
		log.Info("event fired",
			logx.String("profile", profileNameOf(sch, ev)),
			logx.String("event", ev.Name()),
			logx.String("recDescription", ev.RecDescription()),
			logx.Any("actions", ev.GetActions()),
		)
		ev.ExecuteActions(func(action string, fired *daymark.Event) {
			fmt.Fprintf(os.Stdout, "[%s] %s -> %s\n", fired.Name(), action, fired.TargetTime())
		})
	})
	defer unsub()

	log.Info("daymarkd started",
		logx.String("config", *configFolder),
		logx.Int("profiles", len(sch.GetProfiles())),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("daymarkd shutting down")
}

// profileNameOf recovers which profile owns ev for logging purposes; a
// Scheduler's fan-out doesn't otherwise carry the profile alongside the
// event.
func profileNameOf(sch *scheduler.Scheduler, ev *daymark.Event) string {
	for _, p := range sch.GetProfiles() {
		if _, ok := p.GetEvent(ev.Name()); ok {
			return p.Name()
		}
	}
	return ""
}
