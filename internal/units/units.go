// Package units holds the numeric unit conversions used across the fusion
// pipeline. Bus signals arrive in vehicle-native units (km/h, Nm, degrees);
// the tracker works exclusively in SI (m/s, rad). Converting at the boundary
// keeps unit mistakes out of the estimation code.
package units

import "math"

// Gravity is standard gravitational acceleration in m/s².
const Gravity = 9.80665

// KmhToMps converts a speed from km/h to m/s.
func KmhToMps(kmh float64) float64 { return kmh / 3.6 }

// MpsToKmh converts a speed from m/s to km/h.
func MpsToKmh(mps float64) float64 { return mps * 3.6 }

// DegToRad converts an angle from degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts an angle from radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// WrapAngle normalises an angle to (-π, π].
func WrapAngle(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}
