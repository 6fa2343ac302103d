// Package daymark is an in-process recurring-event scheduler for
// long-running applications.
//
// A Scheduler (package scheduler) persists named Profiles; each Profile
// holds a set of Events. An Event pairs a recurrence rule (package
// recurrence) or an astronomical anchor (package solar) with a target
// time and an ordered list of action names, and owns a one-shot timer
// (package ticker) that re-arms itself at every minute boundary; on each
// tick the event checks whether its target time has been reached. A
// one-shot event stops its timer after its single fire.
//
// Profile owns its Events exclusively and debounces the durability path:
// repeated fires within a few seconds of each other coalesce into a
// single JSON write, performed through package storage.
package daymark
