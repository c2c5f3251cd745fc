package cot

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Cursor-on-Target literals for a DroneID track. hae/ce/le carry the
// conventional "unmeasured" sentinels; the event type and how are fixed
// for this feed.
const (
	eventVersion = "2.0"
	eventType    = "a-f-G-U-C"
	eventHow     = "m-g"

	pointHAE = "999999"
	pointCE  = "35.0"
	pointLE  = "999999"

	groupName = "Yellow"
	groupRole = "Team Member"

	geoPointSrc = "GPS"

	colorARGB   = "-256"
	iconSetPath = "-256"

	defaultCallsign = "Drone"

	// StaleWindow is how long consumers may treat an event as
	// authoritative.
	StaleWindow = 75 * time.Second

	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Event is one CoT event document.
type Event struct {
	XMLName xml.Name `xml:"event"`
	Version string   `xml:"version,attr"`
	UID     string   `xml:"uid,attr"`
	Type    string   `xml:"type,attr"`
	Time    string   `xml:"time,attr"`
	Start   string   `xml:"start,attr"`
	Stale   string   `xml:"stale,attr"`
	How     string   `xml:"how,attr"`
	Point   Point    `xml:"point"`
	Detail  Detail   `xml:"detail"`
}

// Point is the event geometry.
type Point struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
	HAE string  `xml:"hae,attr"`
	CE  string  `xml:"ce,attr"`
	LE  string  `xml:"le,attr"`
}

// Detail carries the TAK display attributes.
type Detail struct {
	Contact           Contact           `xml:"contact"`
	UID               DroidUID          `xml:"uid"`
	Group             Group             `xml:"__group"`
	PrecisionLocation PrecisionLocation `xml:"precisionlocation"`
	Status            Status            `xml:"status"`
	Takv              Takv              `xml:"takv"`
	Track             Track             `xml:"track"`
	Color             Color             `xml:"color"`
	UserIcon          UserIcon          `xml:"usericon"`
}

// Contact names the track on the TAK display.
type Contact struct {
	Endpoint string `xml:"endpoint,attr"`
	Phone    string `xml:"phone,attr"`
	Callsign string `xml:"callsign,attr"`
}

// DroidUID carries the aircraft serial.
type DroidUID struct {
	Droid string `xml:"Droid,attr"`
}

// Group is the TAK team assignment.
type Group struct {
	Name string `xml:"name,attr"`
	Role string `xml:"role,attr"`
}

// PrecisionLocation marks the position and altitude sources.
type PrecisionLocation struct {
	GeoPointSrc string `xml:"geopointsrc,attr"`
	AltSrc      string `xml:"altsrc,attr"`
}

// Status mirrors the original feed's empty battery attribute.
type Status struct {
	Battery string `xml:"battery,attr"`
}

// Takv identifies the producing device; all fields are empty for this
// feed.
type Takv struct {
	Device   string `xml:"device,attr"`
	Platform string `xml:"platform,attr"`
	OS       string `xml:"os,attr"`
	Version  string `xml:"version,attr"`
}

// Track carries speed over ground.
type Track struct {
	Speed  string `xml:"speed,attr"`
	Course string `xml:"course,attr"`
}

// Color is the track color.
type Color struct {
	ARGB string `xml:"argb,attr"`
}

// UserIcon selects the marker icon.
type UserIcon struct {
	IconSetPath string `xml:"iconsetpath,attr"`
}

// BuildEvent renders a display record as a CoT event valid from now until
// now + the stale window, exactly.
func BuildEvent(rec types.DisplayRecord, now time.Time) Event {
	start := now.UTC()
	timestamp := start.Format(timeLayout)
	stale := start.Add(StaleWindow).Format(timeLayout)

	callsign := defaultCallsign
	if rec.DeviceType != "" {
		callsign = strings.ReplaceAll(rec.DeviceType, " ", "_")
	}

	return Event{
		Version: eventVersion,
		UID:     rec.SerialNumber + "-Drone",
		Type:    eventType,
		Time:    timestamp,
		Start:   timestamp,
		Stale:   stale,
		How:     eventHow,
		Point: Point{
			Lat: rec.DroneLat,
			Lon: rec.DroneLon,
			HAE: pointHAE,
			CE:  pointCE,
			LE:  pointLE,
		},
		Detail: Detail{
			Contact: Contact{Callsign: callsign},
			UID:     DroidUID{Droid: rec.SerialNumber},
			Group:   Group{Name: groupName, Role: groupRole},
			PrecisionLocation: PrecisionLocation{
				GeoPointSrc: geoPointSrc,
				AltSrc:      "",
			},
			Track: Track{
				Speed: fmt.Sprintf("%.8f", rec.HorizontalSpeed),
			},
			Color:    Color{ARGB: colorARGB},
			UserIcon: UserIcon{IconSetPath: iconSetPath},
		},
	}
}

// Render serializes the event as a standalone XML document.
func Render(ev Event) ([]byte, error) {
	body, err := xml.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
