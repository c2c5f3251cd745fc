package droneid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

func sampleDisplay() types.DisplayRecord {
	return DefaultPolicy().BuildDisplayRecord(sampleRecord(), types.AuxiliaryPosition{}, false)
}

// messageKey returns the single tag of a message object.
func messageKey(t *testing.T, m Message) string {
	t.Helper()
	require.Len(t, m, 1)
	for k := range m {
		return k
	}
	return ""
}

func TestFormatMessagesOrder(t *testing.T) {
	msgs := FormatMessages(sampleDisplay())
	require.Len(t, msgs, 5)

	want := []string{
		"Basic ID",
		"Location/Vector Message",
		"Self-ID Message",
		"System Message",
		"Frequency Message",
	}
	for i, key := range want {
		assert.Equal(t, key, messageKey(t, msgs[i]))
	}
}

func TestFormatMessagesContent(t *testing.T) {
	d := sampleDisplay()
	msgs := FormatMessages(d)
	require.Len(t, msgs, 5)

	basic, ok := msgs[0]["Basic ID"].(basicIDFields)
	require.True(t, ok)
	assert.Equal(t, "Serial Number (ANSI/CTA-2063-A)", basic.IDType)
	assert.Equal(t, d.SerialNumber, basic.ID)
	assert.Equal(t, d.DeviceType, basic.Description)
	assert.Equal(t, d.SignalStrength, basic.RSSI)

	loc, ok := msgs[1]["Location/Vector Message"].(locationVectorFields)
	require.True(t, ok)
	assert.Equal(t, d.DroneLat, loc.Latitude)
	assert.Equal(t, d.DroneLon, loc.Longitude)
	assert.Equal(t, d.GeodeticAltitude, loc.GeodeticAltitude)
	assert.Equal(t, d.HeightAGL, loc.HeightAGL)
	assert.Equal(t, d.HorizontalSpeed, loc.Speed)
	assert.Equal(t, d.VelocityUp, loc.VertSpeed)

	self, ok := msgs[2]["Self-ID Message"].(selfIDFields)
	require.True(t, ok)
	assert.Equal(t, d.DeviceType, self.Text)

	freq, ok := msgs[4]["Frequency Message"].(frequencyFields)
	require.True(t, ok)
	assert.Equal(t, d.Frequency, freq.Frequency)
}

func TestFormatMessagesAuxSuffix(t *testing.T) {
	rec := sampleRecord()
	rec.DroneLat = 500.0
	aux := types.AuxiliaryPosition{Latitude: 37.7, Longitude: -122.4}
	d := DefaultPolicy().BuildDisplayRecord(rec, aux, true)

	msgs := FormatMessages(d)
	self, ok := msgs[2]["Self-ID Message"].(selfIDFields)
	require.True(t, ok)
	assert.Equal(t, rec.DeviceType+" [AUX]", self.Text)

	loc, ok := msgs[1]["Location/Vector Message"].(locationVectorFields)
	require.True(t, ok)
	assert.Equal(t, 37.7, loc.Latitude)
}

func TestFormatMessagesSystemOmission(t *testing.T) {
	t.Run("zero pilot omitted despite being in range", func(t *testing.T) {
		d := sampleDisplay()
		d.PilotLat = 0
		d.PilotLon = 0

		msgs := FormatMessages(d)
		require.Len(t, msgs, 5)
		sys, ok := msgs[3]["System Message"].(systemFields)
		require.True(t, ok)
		assert.Nil(t, sys.Latitude)
		assert.Nil(t, sys.Longitude)
		require.NotNil(t, sys.HomeLat)
		assert.Equal(t, d.HomeLat, *sys.HomeLat)
	})

	t.Run("no valid pilot or home drops the system message", func(t *testing.T) {
		d := sampleDisplay()
		d.PilotLat, d.PilotLon = 0, 0
		d.HomeLat, d.HomeLon = 0, 0

		msgs := FormatMessages(d)
		require.Len(t, msgs, 4)
		assert.Equal(t, "Frequency Message", messageKey(t, msgs[3]))
	})
}

func TestFormatMessagesEmptyRecord(t *testing.T) {
	assert.Empty(t, FormatMessages(types.DisplayRecord{}))
}

func TestFormatMessagesJSONShape(t *testing.T) {
	payload, err := json.Marshal(FormatMessages(sampleDisplay()))
	require.NoError(t, err)

	var decoded []map[string]map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded, 5)

	basic := decoded[0]["Basic ID"]
	assert.Equal(t, "Serial Number (ANSI/CTA-2063-A)", basic["id_type"])
	assert.Contains(t, basic, "RSSI")

	loc := decoded[1]["Location/Vector Message"]
	for _, field := range []string{"latitude", "longitude", "geodetic_altitude", "height_agl", "speed", "vert_speed"} {
		assert.Contains(t, loc, field)
	}

	freq := decoded[4]["Frequency Message"]
	assert.Contains(t, freq, "frequency")
}
