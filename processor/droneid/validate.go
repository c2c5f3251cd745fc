package droneid

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// SentinelSerial is the alert identifier meaning "identity unknown". It
// replaces serials with too few visible characters, and is forced onto any
// record whose position was substituted from the auxiliary fix so the
// substitution is visible to consumers.
const SentinelSerial = "9999999999"

// Policy holds the numeric validation thresholds. The defaults match the
// deployed receiver; both are exposed through the processor config.
type Policy struct {
	// MaxHorizontalSpeed in m/s; a derived speed above it is treated as a
	// sensor artifact and reset to exactly 0, never clamped.
	MaxHorizontalSpeed float64

	// MinSerialChars is the minimum count of visible characters for a
	// serial number to be trusted.
	MinSerialChars int
}

// DefaultPolicy returns the deployed thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MaxHorizontalSpeed: 200.0,
		MinSerialChars:     5,
	}
}

// BuildDisplayRecord derives the published record from a decoded one plus
// the current auxiliary snapshot. Pure function: it never mutates the cache
// and never fails; validation "failures" are expected input noise resolved
// by substitution, not errors.
//
// Rules, in order: untrusted serials are replaced with the sentinel; pilot
// and home positions are zeroed when out of range ((0,0) already means
// absent downstream); the drone position resolves to its own fix, the
// auxiliary fix (forcing the sentinel serial), or none. A none record
// keeps whatever was decoded but must not be plotted; horizontal speed is
// the Euclidean norm of the east/north velocities, reset to 0 above the
// threshold. Vertical velocity is never altered.
func (p Policy) BuildDisplayRecord(rec types.TelemetryRecord, aux types.AuxiliaryPosition, haveAux bool) types.DisplayRecord {
	out := types.DisplayRecord{TelemetryRecord: rec}

	if utf8.RuneCountInString(strings.TrimSpace(rec.SerialNumber)) < p.MinSerialChars {
		out.SerialNumber = SentinelSerial
	}

	if !types.InRangeLatLon(rec.PilotLat, rec.PilotLon) {
		out.PilotLat = 0
		out.PilotLon = 0
	}
	if !types.InRangeLatLon(rec.HomeLat, rec.HomeLon) {
		out.HomeLat = 0
		out.HomeLon = 0
	}

	switch {
	case types.ValidLatLon(rec.DroneLat, rec.DroneLon):
		out.PositionSource = types.PositionSourceOwn
	case haveAux && aux.Usable():
		out.DroneLat = aux.Latitude
		out.DroneLon = aux.Longitude
		out.SerialNumber = SentinelSerial
		out.PositionSource = types.PositionSourceAuxiliary
	default:
		// Position kept as decoded, even when invalid; the source tag
		// tells consumers not to plot it.
		out.PositionSource = types.PositionSourceNone
	}

	out.HorizontalSpeed = math.Hypot(rec.VelocityEast, rec.VelocityNorth)
	if out.HorizontalSpeed > p.MaxHorizontalSpeed {
		out.HorizontalSpeed = 0
	}

	return out
}
