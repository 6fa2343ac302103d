package solar

import (
	"math"
	"time"
)

// NOAAProvider computes solar times with the NOAA solar position
// algorithm (the same low-precision formulation behind NOAA's public
// solar calculator spreadsheet). No library in the example corpus this
// project draws its dependency stack from offers solar-position math, so
// this is implemented directly against math — see DESIGN.md for why a
// third-party dependency wasn't substituted here.
type NOAAProvider struct{}

// Zenith angles, in degrees, for each twilight definition.
const (
	zenithOfficial     = 90.833 // sunrise/sunset, includes atmospheric refraction
	zenithCivil        = 96.0
	zenithNautical     = 102.0
	zenithAstronomical = 108.0
)

func (NOAAProvider) GetSolarTimes(date time.Time, lat, lon float64) (Times, error) {
	loc := date.Location()
	year, month, day := date.Date()
	jd := julianDay(year, int(month), day)

	noonFrac := solarNoonFraction(jd, lon)
	eqTime, decl := sunEquationOfTimeAndDeclination(jd + noonFrac)

	mk := func(frac float64) time.Time {
		return dayFraction(year, month, day, loc, frac)
	}

	return Times{
		Sunrise:          mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithOfficial, -1)),
		Sunset:           mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithOfficial, 1)),
		SolarNoon:        mk(noonFrac),
		DawnCivil:        mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithCivil, -1)),
		DuskCivil:        mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithCivil, 1)),
		DawnNautical:     mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithNautical, -1)),
		DuskNautical:     mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithNautical, 1)),
		DawnAstronomical: mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithAstronomical, -1)),
		DuskAstronomical: mk(hourAngleFraction(noonFrac, eqTime, decl, lat, zenithAstronomical, 1)),
	}, nil
}

func julianDay(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := math.Floor(float64(year) / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*(float64(year)+4716)) + math.Floor(30.6001*(float64(month)+1)) + float64(day) + b - 1524.5
}

// solarNoonFraction returns solar noon as a fraction of the UTC day;
// dayFraction adds the zone offset when it maps a fraction back onto the
// date's wall clock.
func solarNoonFraction(jd, lon float64) float64 {
	t := julianCentury(jd)
	eqTime := equationOfTime(t)
	return (720 - 4*lon - eqTime) / 1440
}

func julianCentury(jd float64) float64 {
	return (jd - 2451545.0) / 36525.0
}

func equationOfTime(t float64) float64 {
	epsilon := obliquityCorrection(t)
	l0 := geomMeanLongitude(t)
	e := eccentricityEarthOrbit(t)
	m := geomMeanAnomaly(t)

	y := math.Tan(deg2rad(epsilon) / 2)
	y *= y

	sin2l0 := math.Sin(2 * deg2rad(l0))
	sinm := math.Sin(deg2rad(m))
	cos2l0 := math.Cos(2 * deg2rad(l0))
	sin4l0 := math.Sin(4 * deg2rad(l0))
	sin2m := math.Sin(2 * deg2rad(m))

	eTime := y*sin2l0 - 2*e*sinm + 4*e*y*sinm*cos2l0 - 0.5*y*y*sin4l0 - 1.25*e*e*sin2m
	return rad2deg(eTime) * 4
}

func sunEquationOfTimeAndDeclination(jd float64) (eqTime, declination float64) {
	t := julianCentury(jd)
	return equationOfTime(t), sunDeclination(t)
}

func sunDeclination(t float64) float64 {
	e := obliquityCorrection(t)
	lambda := sunApparentLongitude(t)
	sint := math.Sin(deg2rad(e)) * math.Sin(deg2rad(lambda))
	return rad2deg(math.Asin(sint))
}

func geomMeanLongitude(t float64) float64 {
	l0 := 280.46646 + t*(36000.76983+0.0003032*t)
	for l0 > 360 {
		l0 -= 360
	}
	for l0 < 0 {
		l0 += 360
	}
	return l0
}

func geomMeanAnomaly(t float64) float64 {
	return 357.52911 + t*(35999.05029-0.0001537*t)
}

func eccentricityEarthOrbit(t float64) float64 {
	return 0.016708634 - t*(0.000042037+0.0000001267*t)
}

func sunEquationOfCenter(t float64) float64 {
	m := geomMeanAnomaly(t)
	mrad := deg2rad(m)
	sinm := math.Sin(mrad)
	sin2m := math.Sin(2 * mrad)
	sin3m := math.Sin(3 * mrad)
	return sinm*(1.914602-t*(0.004817+0.000014*t)) + sin2m*(0.019993-0.000101*t) + sin3m*0.000289
}

func sunTrueLongitude(t float64) float64 {
	return geomMeanLongitude(t) + sunEquationOfCenter(t)
}

func sunApparentLongitude(t float64) float64 {
	o := sunTrueLongitude(t)
	omega := 125.04 - 1934.136*t
	return o - 0.00569 - 0.00478*math.Sin(deg2rad(omega))
}

func meanObliquityOfEcliptic(t float64) float64 {
	seconds := 21.448 - t*(46.815+t*(0.00059-t*0.001813))
	return 23 + (26+seconds/60)/60
}

func obliquityCorrection(t float64) float64 {
	e0 := meanObliquityOfEcliptic(t)
	omega := 125.04 - 1934.136*t
	return e0 + 0.00256*math.Cos(deg2rad(omega))
}

// hourAngleFraction returns the day fraction for sunrise (sign -1) or
// sunset (sign +1) at the given zenith angle.
func hourAngleFraction(noonFrac, eqTime, decl, lat, zenith, sign float64) float64 {
	ha := hourAngle(lat, decl, zenith)
	if math.IsNaN(ha) {
		// Sun never crosses this zenith today (polar day/night); pin to
		// solar noon rather than propagate NaN into a time.Time.
		return noonFrac
	}
	delta := sign * ha * 4 / 1440
	return noonFrac + delta
}

func hourAngle(lat, decl, zenith float64) float64 {
	latRad := deg2rad(lat)
	declRad := deg2rad(decl)
	cosH := (math.Cos(deg2rad(zenith)) - math.Sin(latRad)*math.Sin(declRad)) / (math.Cos(latRad) * math.Cos(declRad))
	if cosH < -1 || cosH > 1 {
		return math.NaN()
	}
	return rad2deg(math.Acos(cosH))
}

// dayFraction converts a fraction of the UTC day into a wall-clock instant
// on the given local date. The fraction is relative to UTC midnight, so the
// date's zone offset is added to land on the local clock.
func dayFraction(year int, month time.Month, day int, loc *time.Location, frac float64) time.Time {
	base := time.Date(year, month, day, 0, 0, 0, 0, loc)
	_, offsetSeconds := base.Zone()
	totalSeconds := int(math.Round(frac*86400)) + offsetSeconds
	return base.Add(time.Duration(totalSeconds) * time.Second)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
