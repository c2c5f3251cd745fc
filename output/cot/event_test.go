package cot

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

func sampleRecord() types.DisplayRecord {
	return types.DisplayRecord{
		TelemetryRecord: types.TelemetryRecord{
			SerialNumber:     "1581F5FHD228Q00A7888",
			DeviceType:       "DJI Mini 3 Pro",
			DroneLat:         51.5080,
			DroneLon:         -0.1290,
			HeightAGL:        42.5,
			GeodeticAltitude: 120.0,
			SignalStrength:   -71,
		},
		HorizontalSpeed: 5.0,
		PositionSource:  types.PositionSourceOwn,
	}
}

func TestBuildEventAttributes(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	ev := BuildEvent(sampleRecord(), now)

	assert.Equal(t, "2.0", ev.Version)
	assert.Equal(t, "1581F5FHD228Q00A7888-Drone", ev.UID)
	assert.Equal(t, "a-f-G-U-C", ev.Type)
	assert.Equal(t, "m-g", ev.How)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", ev.Time)
	assert.Equal(t, ev.Time, ev.Start)

	assert.Equal(t, 51.5080, ev.Point.Lat)
	assert.Equal(t, -0.1290, ev.Point.Lon)
	assert.Equal(t, "999999", ev.Point.HAE)
	assert.Equal(t, "35.0", ev.Point.CE)
	assert.Equal(t, "999999", ev.Point.LE)

	assert.Equal(t, "DJI_Mini_3_Pro", ev.Detail.Contact.Callsign)
	assert.Equal(t, "1581F5FHD228Q00A7888", ev.Detail.UID.Droid)
	assert.Equal(t, "Yellow", ev.Detail.Group.Name)
	assert.Equal(t, "Team Member", ev.Detail.Group.Role)
	assert.Equal(t, "GPS", ev.Detail.PrecisionLocation.GeoPointSrc)
	assert.Empty(t, ev.Detail.PrecisionLocation.AltSrc)
	assert.Empty(t, ev.Detail.Status.Battery)
	assert.Equal(t, Takv{}, ev.Detail.Takv)
	assert.Equal(t, "5.00000000", ev.Detail.Track.Speed)
	assert.Equal(t, "-256", ev.Detail.Color.ARGB)
	assert.Equal(t, "-256", ev.Detail.UserIcon.IconSetPath)
}

func TestBuildEventStaleWindow(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	ev := BuildEvent(sampleRecord(), now)

	start, err := time.Parse(timeLayout, ev.Start)
	require.NoError(t, err)
	stale, err := time.Parse(timeLayout, ev.Stale)
	require.NoError(t, err)

	assert.Equal(t, StaleWindow, stale.Sub(start))
	assert.Equal(t, "2025-03-14T09:28:08.589Z", ev.Stale)
}

func TestBuildEventNormalizesToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 3, 14, 11, 26, 53, 0, zone)

	ev := BuildEvent(sampleRecord(), now)

	assert.Equal(t, "2025-03-14T09:26:53.000Z", ev.Time)
}

func TestBuildEventCallsign(t *testing.T) {
	tests := []struct {
		name       string
		deviceType string
		want       string
	}{
		{"spaces become underscores", "DJI Mini 3 Pro", "DJI_Mini_3_Pro"},
		{"single word unchanged", "Mavic3", "Mavic3"},
		{"empty falls back", "", "Drone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			rec.DeviceType = tt.deviceType
			ev := BuildEvent(rec, time.Now())
			assert.Equal(t, tt.want, ev.Detail.Contact.Callsign)
		})
	}
}

func TestBuildEventSpeedFormatting(t *testing.T) {
	rec := sampleRecord()
	rec.HorizontalSpeed = 12.3456789012

	ev := BuildEvent(rec, time.Now())

	assert.Equal(t, "12.34567890", ev.Detail.Track.Speed)
}

func TestRenderDocument(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	payload, err := Render(BuildEvent(sampleRecord(), now))
	require.NoError(t, err)

	doc := string(payload)
	assert.True(t, strings.HasPrefix(doc, xml.Header))
	assert.Contains(t, doc, `<event version="2.0"`)
	assert.Contains(t, doc, `uid="1581F5FHD228Q00A7888-Drone"`)
	assert.Contains(t, doc, `<__group name="Yellow" role="Team Member">`)
	assert.Contains(t, doc, `<precisionlocation geopointsrc="GPS" altsrc="">`)
	assert.Contains(t, doc, `<usericon iconsetpath="-256">`)

	var parsed Event
	require.NoError(t, xml.Unmarshal(payload, &parsed))
	assert.Equal(t, "a-f-G-U-C", parsed.Type)
	assert.Equal(t, 51.5080, parsed.Point.Lat)
}
