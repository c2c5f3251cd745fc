package types

import (
	"time"
)

// PositionSource tags where a display record's drone position came from
type PositionSource string

// Position source constants
const (
	// PositionSourceOwn means the drone's self-reported position was valid
	PositionSourceOwn PositionSource = "own"
	// PositionSourceAuxiliary means the position was substituted from the
	// host sensor's GPS fix
	PositionSourceAuxiliary PositionSource = "auxiliary"
	// PositionSourceNone means no usable position exists; consumers must
	// not plot the record
	PositionSourceNone PositionSource = "none"
)

// TelemetryRecord is the decoded, untouched mirror of one frame's telemetry
// payload. No validity judgement is applied at decode time: fields hold
// exactly what was on the wire, even when physically nonsensical. Validity
// is a property assigned only by the validation stage.
type TelemetryRecord struct {
	SerialNumber     string  `json:"serial_number"`
	DeviceType       string  `json:"device_type"`
	PilotLat         float64 `json:"pilot_lat"`
	PilotLon         float64 `json:"pilot_lon"`
	DroneLat         float64 `json:"drone_lat"`
	DroneLon         float64 `json:"drone_lon"`
	HeightAGL        float64 `json:"height_agl"`
	GeodeticAltitude float64 `json:"geodetic_altitude"`
	HomeLat          float64 `json:"home_lat"`
	HomeLon          float64 `json:"home_lon"`
	// Frequency is a pass-through: the upstream convention does not
	// self-describe the unit, so the raw value is preserved untouched.
	Frequency      float64 `json:"frequency"`
	VelocityEast   float64 `json:"velocity_east"`
	VelocityNorth  float64 `json:"velocity_north"`
	VelocityUp     float64 `json:"velocity_up"`
	SignalStrength int16   `json:"signal_strength"`
}

// DisplayRecord is the validated, fallback-applied record actually
// published. It carries the telemetry fields after substitution plus the
// derived horizontal speed and the position source tag. A record with
// PositionSource == PositionSourceNone still resolves a drone position,
// but downstream consumers must treat it as "do not plot".
type DisplayRecord struct {
	TelemetryRecord

	HorizontalSpeed float64        `json:"horizontal_speed"`
	PositionSource  PositionSource `json:"position_source"`
}

// IsEmpty reports whether the record carries no usable content. Decoding
// never produces such a record, but formatters guard on it so an empty
// record can never be published.
func (d DisplayRecord) IsEmpty() bool {
	return d == DisplayRecord{}
}

// DisplayEnvelope wraps a display record for the internal display subject,
// carrying a unique message id and the wall-clock time the record was
// produced.
type DisplayEnvelope struct {
	ID         string        `json:"id"`
	ObservedAt time.Time     `json:"observed_at"`
	Record     DisplayRecord `json:"record"`
}

// AuxiliaryPosition is the host sensor's own GPS fix, received from the
// secondary best-effort feed. It is owned exclusively by the auxiliary
// position cache and overwritten wholesale on each valid update.
type AuxiliaryPosition struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	ObservedAt time.Time `json:"observed_at"`
}

// Usable reports whether the fix can substitute for an invalid drone
// position: in range and not the (0,0) null island marker.
func (a AuxiliaryPosition) Usable() bool {
	return ValidLatLon(a.Latitude, a.Longitude)
}

// ValidLatLon reports whether a coordinate pair is plottable: latitude in
// [-90, 90], longitude in [-180, 180], and not exactly (0,0). The pair
// (0,0) is always treated as invalid/absent, never as a real location.
// The same predicate is applied to pilot, home, drone, and auxiliary
// positions.
func ValidLatLon(lat, lon float64) bool {
	return lat >= -90.0 && lat <= 90.0 &&
		lon >= -180.0 && lon <= 180.0 &&
		!(lat == 0.0 && lon == 0.0)
}

// InRangeLatLon reports whether a coordinate pair is within the standard
// ranges, without the (0,0) exclusion. Decode-stage range checks use this
// form; presence checks use ValidLatLon.
func InRangeLatLon(lat, lon float64) bool {
	return lat >= -90.0 && lat <= 90.0 && lon >= -180.0 && lon <= 180.0
}
