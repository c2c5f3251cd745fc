package droneid

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/component"
	"github.com/alphafox02/antsdr-dji-droneid/natsclient"
	"github.com/alphafox02/antsdr-dji-droneid/types"
)

func testDeps(t *testing.T) component.Dependencies {
	t.Helper()
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)
	return component.Dependencies{
		NATSClient: client,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestProcessor(t *testing.T, rawConfig json.RawMessage) *Processor {
	t.Helper()
	comp, err := NewProcessor(rawConfig, testDeps(t))
	require.NoError(t, err)
	p, ok := comp.(*Processor)
	require.True(t, ok)
	return p
}

func TestNewProcessorDefaults(t *testing.T) {
	p := newTestProcessor(t, nil)

	assert.Equal(t, "droneid.frames.raw", p.framesSubject)
	assert.Equal(t, "droneid.aux.gps", p.auxSubject)
	assert.Equal(t, "droneid.messages", p.messagesSubject)
	assert.Equal(t, "droneid.display", p.displaySubject)
	assert.Equal(t, 50*time.Millisecond, p.pollTimeout)
	assert.Equal(t, 4, p.pollBatch)
	assert.Equal(t, DefaultPolicy(), p.policy)
	assert.NoError(t, p.Initialize())
}

func TestNewProcessorOverrides(t *testing.T) {
	raw := json.RawMessage(`{
		"poll_timeout": "0s",
		"poll_batch": 8,
		"max_horizontal_speed": 150,
		"min_serial_chars": 3,
		"ports": {
			"inputs": [
				{"name": "frames_input", "type": "nats", "subject": "frames.custom"},
				{"name": "aux_input", "type": "nats", "subject": "aux.custom"}
			],
			"outputs": [
				{"name": "messages_output", "type": "nats", "subject": "messages.custom"},
				{"name": "display_output", "type": "nats", "subject": "display.custom"}
			]
		}
	}`)

	p := newTestProcessor(t, raw)

	assert.Equal(t, "frames.custom", p.framesSubject)
	assert.Equal(t, "aux.custom", p.auxSubject)
	assert.Equal(t, "messages.custom", p.messagesSubject)
	assert.Equal(t, "display.custom", p.displaySubject)
	assert.Equal(t, time.Duration(0), p.pollTimeout)
	assert.Equal(t, 8, p.pollBatch)
	assert.Equal(t, 150.0, p.policy.MaxHorizontalSpeed)
	assert.Equal(t, 3, p.policy.MinSerialChars)
}

func TestNewProcessorRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "bad poll timeout", raw: `{"poll_timeout": "whenever"}`},
		{name: "negative batch", raw: `{"poll_batch": -1}`},
		{name: "empty subject", raw: `{"ports":{"outputs":[{"name":"messages_output","type":"nats","subject":""}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessor(json.RawMessage(tt.raw), testDeps(t))
			assert.Error(t, err)
		})
	}
}

func TestRunDrainsAuxDuringQuietPeriods(t *testing.T) {
	p := newTestProcessor(t, nil)
	p.shutdown = make(chan struct{})

	// No frames at all; the aux fix must still reach the cache.
	frames := queued()
	aux := queued(`{"gps":{"latitude":37.7749,"longitude":-122.4194}}`)
	feed := NewFeed(aux, p.cache, 0, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.run(context.Background(), frames, feed)
	}()

	assert.Eventually(t, func() bool {
		pos, ok := p.cache.Snapshot()
		return ok && pos.Latitude == 37.7749
	}, 2*time.Second, 10*time.Millisecond, "aux fix should land without any frame traffic")

	close(p.shutdown)
	<-done
}

func TestNewProcessorRequiresNATSClient(t *testing.T) {
	_, err := NewProcessor(nil, component.Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.Error(t, err)
}

func TestProcessFrameOwnPosition(t *testing.T) {
	p := newTestProcessor(t, nil)
	frame := encodeFrame(PackageTypeTelemetry, encodeRecord(sampleRecord()))

	display, ok := p.processFrame(frame)
	require.True(t, ok)
	assert.Equal(t, types.PositionSourceOwn, display.PositionSource)
	assert.Equal(t, 5.0, display.HorizontalSpeed)
}

func TestProcessFrameAuxiliaryFallback(t *testing.T) {
	p := newTestProcessor(t, nil)
	require.True(t, p.cache.Update(types.AuxiliaryPosition{Latitude: 37.7, Longitude: -122.4}))

	rec := sampleRecord()
	rec.DroneLat = 500.0
	frame := encodeFrame(PackageTypeTelemetry, encodeRecord(rec))

	display, ok := p.processFrame(frame)
	require.True(t, ok)
	assert.Equal(t, types.PositionSourceAuxiliary, display.PositionSource)
	assert.Equal(t, 37.7, display.DroneLat)
	assert.Equal(t, SentinelSerial, display.SerialNumber)
}

func TestProcessFrameSkipsAndDrops(t *testing.T) {
	p := newTestProcessor(t, nil)

	t.Run("non-telemetry package type", func(t *testing.T) {
		frame := encodeFrame(0x02, encodeRecord(sampleRecord()))
		_, ok := p.processFrame(frame)
		assert.False(t, ok)
	})

	t.Run("short payload", func(t *testing.T) {
		frame := encodeFrame(PackageTypeTelemetry, make([]byte, 100))
		_, ok := p.processFrame(frame)
		assert.False(t, ok)
	})

	t.Run("malformed frame", func(t *testing.T) {
		_, ok := p.processFrame([]byte{0x5A, 0xA5})
		assert.False(t, ok)
	})
}

func TestProcessorMetaAndPorts(t *testing.T) {
	p := newTestProcessor(t, nil)

	meta := p.Meta()
	assert.Equal(t, "droneid-processor", meta.Name)
	assert.Equal(t, "processor", meta.Type)

	inputs := p.InputPorts()
	require.Len(t, inputs, 2)
	assert.Equal(t, "frames_input", inputs[0].Name)
	assert.False(t, inputs[0].Config.IsExclusive(), "NATS subjects are shareable")

	outputs := p.OutputPorts()
	require.Len(t, outputs, 2)
	natsPort, ok := outputs[0].Config.(component.NATSPort)
	require.True(t, ok)
	assert.Equal(t, "droneid.messages", natsPort.Subject)
}

func TestProcessorStopWithoutStart(t *testing.T) {
	p := newTestProcessor(t, nil)
	assert.NoError(t, p.Stop(time.Second))
}

func TestProcessorRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	info, ok := registry.ListAvailable()["droneid"]
	require.True(t, ok)
	assert.Equal(t, "processor", info.Type)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "empty", config: Config{}},
		{name: "defaults", config: DefaultConfig()},
		{name: "bad timeout", config: Config{PollTimeout: "later"}, wantErr: true},
		{name: "negative speed", config: Config{MaxHorizontalSpeed: -1}, wantErr: true},
		{name: "negative serial chars", config: Config{MinSerialChars: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
