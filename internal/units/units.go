// Package units converts provider quantities to the units used in forecast
// responses. Every conversion rounds to one decimal place, and converting a
// quantity that is already in the target unit returns it unchanged, so a value
// is scaled exactly once however often it passes through.
package units

import (
	"errors"
	"fmt"
	"math"
)

// Unit names a physical unit.
type Unit string

const (
	MetersPerSecond Unit = "m/s"
	MilesPerHour    Unit = "mph"
	Meters          Unit = "m"
	Feet            Unit = "ft"
	Seconds         Unit = "s"
	Degrees         Unit = "deg"
)

const (
	metersPerMile   = 1609.344
	feetPerMeter    = 3.28084
	secondsPerHour  = 3600
	mphPerMeterPerS = secondsPerHour / metersPerMile
)

// ErrIncompatible is returned for conversions between different dimensions.
var ErrIncompatible = errors.New("incompatible units")

// Quantity is a value tagged with its unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

var factors = map[[2]Unit]float64{
	{MetersPerSecond, MilesPerHour}: mphPerMeterPerS,
	{MilesPerHour, MetersPerSecond}: 1 / mphPerMeterPerS,
	{Meters, Feet}:                  feetPerMeter,
	{Feet, Meters}:                  1 / feetPerMeter,
}

// Convert expresses q in unit to, rounded to one decimal place.
func Convert(q Quantity, to Unit) (Quantity, error) {
	if q.Unit == to {
		return q, nil
	}
	f, ok := factors[[2]Unit{q.Unit, to}]
	if !ok {
		return Quantity{}, fmt.Errorf("%w: %s to %s", ErrIncompatible, q.Unit, to)
	}
	return Quantity{Value: Round1(q.Value * f), Unit: to}, nil
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// MPH converts a speed in meters per second to miles per hour.
func MPH(ms float64) float64 {
	return Round1(ms * mphPerMeterPerS)
}

// FeetFromMeters converts a height in meters to feet.
func FeetFromMeters(m float64) float64 {
	return Round1(m * feetPerMeter)
}

// Bearing rounds a direction in degrees and folds it into [0, 360).
func Bearing(deg float64) float64 {
	deg = Round1(math.Mod(deg, 360))
	switch {
	case deg == 0:
		return 0 // also folds -0
	case deg < 0:
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// WindFromUV derives speed (in the components' unit) and the compass direction
// the wind blows from out of the eastward (u) and northward (v) components.
// Neither result is rounded.
func WindFromUV(u, v float64) (speed, direction float64) {
	speed = math.Hypot(u, v)
	direction = math.Mod(270-math.Atan2(v, u)*180/math.Pi, 360)
	if direction < 0 {
		direction += 360
	}
	return speed, direction
}
