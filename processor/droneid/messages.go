package droneid

import (
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// AuxSuffix marks a Self-ID text whose record position was substituted
// from the auxiliary fix.
const AuxSuffix = " [AUX]"

// Message is one tagged object of the published array: a single key (the
// message kind) mapping to its fields.
type Message map[string]any

// Published message field shapes. Key names follow the established wire
// format of the receiver's JSON feed.

type basicIDFields struct {
	IDType      string `json:"id_type"`
	ID          string `json:"id"`
	Description string `json:"description"`
	RSSI        int16  `json:"RSSI"`
}

type locationVectorFields struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	GeodeticAltitude float64 `json:"geodetic_altitude"`
	HeightAGL        float64 `json:"height_agl"`
	Speed            float64 `json:"speed"`
	VertSpeed        float64 `json:"vert_speed"`
}

type selfIDFields struct {
	Text string `json:"text"`
}

type systemFields struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	HomeLat   *float64 `json:"home_lat,omitempty"`
	HomeLon   *float64 `json:"home_lon,omitempty"`
}

type frequencyFields struct {
	Frequency float64 `json:"frequency"`
}

// FormatMessages renders a display record as the ordered message array:
// Basic ID, Location/Vector, Self-ID, System (only when a valid pilot or
// home position exists), Frequency. An empty record yields an empty array,
// which the caller must not publish.
func FormatMessages(d types.DisplayRecord) []Message {
	if d.IsEmpty() {
		return nil
	}

	selfText := d.DeviceType
	if d.PositionSource == types.PositionSourceAuxiliary {
		selfText += AuxSuffix
	}

	out := []Message{
		{"Basic ID": basicIDFields{
			IDType:      "Serial Number (ANSI/CTA-2063-A)",
			ID:          d.SerialNumber,
			Description: d.DeviceType,
			RSSI:        d.SignalStrength,
		}},
		{"Location/Vector Message": locationVectorFields{
			Latitude:         d.DroneLat,
			Longitude:        d.DroneLon,
			GeodeticAltitude: d.GeodeticAltitude,
			HeightAGL:        d.HeightAGL,
			Speed:            d.HorizontalSpeed,
			VertSpeed:        d.VelocityUp,
		}},
		{"Self-ID Message": selfIDFields{Text: selfText}},
	}

	// System message carries whichever of pilot and home is a real
	// location; (0,0) pairs are absent by convention even though in range.
	hasPilot := types.ValidLatLon(d.PilotLat, d.PilotLon)
	hasHome := types.ValidLatLon(d.HomeLat, d.HomeLon)
	if hasPilot || hasHome {
		sys := systemFields{}
		if hasPilot {
			lat, lon := d.PilotLat, d.PilotLon
			sys.Latitude = &lat
			sys.Longitude = &lon
		}
		if hasHome {
			lat, lon := d.HomeLat, d.HomeLon
			sys.HomeLat = &lat
			sys.HomeLon = &lon
		}
		out = append(out, Message{"System Message": sys})
	}

	out = append(out, Message{"Frequency Message": frequencyFields{Frequency: d.Frequency}})

	return out
}
