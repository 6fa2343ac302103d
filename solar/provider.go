package solar

import "time"

// Times holds every solar phenomenon the scheduler can anchor an event
// to, each as a local instant on the date it was computed for.
type Times struct {
	Sunrise          time.Time
	Sunset           time.Time
	SolarNoon        time.Time
	DawnCivil        time.Time
	DuskCivil        time.Time
	DawnNautical     time.Time
	DuskNautical     time.Time
	DawnAstronomical time.Time
	DuskAstronomical time.Time
}

// At returns the instant for the named phenomenon.
func (t Times) At(kind Kind) time.Time {
	switch kind {
	case Sunrise:
		return t.Sunrise
	case Sunset:
		return t.Sunset
	case SolarNoon:
		return t.SolarNoon
	case DawnCivil:
		return t.DawnCivil
	case DuskCivil:
		return t.DuskCivil
	case DawnNautical:
		return t.DawnNautical
	case DuskNautical:
		return t.DuskNautical
	case DawnAstronomical:
		return t.DawnAstronomical
	case DuskAstronomical:
		return t.DuskAstronomical
	default:
		return t.Sunset
	}
}

// Provider computes every solar phenomenon for a calendar date at a
// latitude/longitude, returning instants in date's location. This is the
// single seam spec.md calls out as an external collaborator — the engine
// never depends on a specific solar-position algorithm, only on this
// interface.
type Provider interface {
	GetSolarTimes(date time.Time, lat, lon float64) (Times, error)
}
