package daymark

import "strings"

// EventType distinguishes an event anchored to a wall-clock target from
// one anchored to a solar phenomenon.
type EventType int

const (
	TypeAbsolute EventType = iota
	TypeAstronomical
)

func (t EventType) String() string {
	if t == TypeAstronomical {
		return "AstronomicalEvent"
	}
	return "AbsoluteEvent"
}

// ParseEventType parses an EventCfg "type" value case-insensitively,
// defaulting to TypeAbsolute for anything unrecognized.
func ParseEventType(s string) EventType {
	if strings.EqualFold(s, "AstronomicalEvent") {
		return TypeAstronomical
	}
	return TypeAbsolute
}

// EventState is whether an event's timer is currently armed.
type EventState int

const (
	StateEnabled EventState = iota
	StateDisabled
)

func (s EventState) String() string {
	if s == StateDisabled {
		return "Disabled"
	}
	return "Enabled"
}

// ParseEventState parses an EventCfg "state" value case-insensitively,
// defaulting to StateEnabled for anything unrecognized.
func ParseEventState(s string) EventState {
	if strings.EqualFold(s, "Disabled") {
		return StateDisabled
	}
	return StateEnabled
}

// Time layouts used throughout the JSON config format (spec.md §6).
const (
	targetTimeLayout = "2006-01-02T15:04:05Z07:00" // yyyy-MM-ddTHH:mm:sszzz
	legacyDateLayout = "01/02/2006"                // MM/dd/yyyy
	legacyTimeLayout = "15:04"                     // HH:mm
)

// EventConfig is the on-disk/wire representation of one event, matching
// spec.md §6's EventCfg schema field-for-field.
type EventConfig struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RecDescription string   `json:"rec-description,omitempty"`
	Type           string   `json:"type"`
	State          string   `json:"state"`
	Frequency      string   `json:"frequency"`
	Rate           uint     `json:"rate"`
	AddRate        int32    `json:"add-rate"`
	AstroOffset    string   `json:"astro-offset,omitempty"`
	TargetTime     string   `json:"target-time,omitempty"`
	Time           string   `json:"time,omitempty"`
	Date           string   `json:"date,omitempty"`
	LastFired      string   `json:"last-fired,omitempty"`
	Acknowledge    bool     `json:"acknowledge"`
	Actions        []string `json:"actions,omitempty"`
}

// ProfileRecord is the on-disk representation of a profile: its name,
// description, last-save timestamp, and the events it holds.
type ProfileRecord struct {
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	LastModified string        `json:"last-modified,omitempty"`
	Events       []EventConfig `json:"events"`
}

// DefaultAstroOffset is used when an Astronomical event's config omits
// astro-offset.
const DefaultAstroOffset = "Sunset:-10"
