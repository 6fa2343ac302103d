// Package solar resolves astronomical anchor times (sunrise, sunset, the
// three twilight pairs, and solar noon) for a given date and geographic
// location. It is deliberately split from recurrence: the core scheduler
// only needs the pure function described in spec.md — everything below
// the Provider interface is a replaceable implementation detail.
package solar

import "strings"

// Kind identifies a solar phenomenon.
type Kind int

const (
	Sunset Kind = iota // zero value; also the documented default for an unrecognized kind
	Sunrise
	SolarNoon
	DawnCivil
	DuskCivil
	DawnNautical
	DuskNautical
	DawnAstronomical
	DuskAstronomical
)

func (k Kind) String() string {
	switch k {
	case Sunrise:
		return "Sunrise"
	case Sunset:
		return "Sunset"
	case SolarNoon:
		return "SolarNoon"
	case DawnCivil:
		return "DawnCivil"
	case DuskCivil:
		return "DuskCivil"
	case DawnNautical:
		return "DawnNautical"
	case DuskNautical:
		return "DuskNautical"
	case DawnAstronomical:
		return "DawnAstronomical"
	case DuskAstronomical:
		return "DuskAstronomical"
	default:
		return "Sunset"
	}
}

// ParseKind parses a solar kind name case-insensitively. An unrecognized
// name resolves to Sunset, matching the Solar Resolver's own default.
func ParseKind(s string) Kind {
	switch strings.ToLower(s) {
	case "sunrise":
		return Sunrise
	case "sunset":
		return Sunset
	case "solarnoon":
		return SolarNoon
	case "dawncivil":
		return DawnCivil
	case "duskcivil":
		return DuskCivil
	case "dawnnautical":
		return DawnNautical
	case "dusknautical":
		return DuskNautical
	case "dawnastronomical":
		return DawnAstronomical
	case "duskastronomical":
		return DuskAstronomical
	default:
		return Sunset
	}
}
