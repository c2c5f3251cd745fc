package droneid

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

func TestCacheUpdateAndSnapshot(t *testing.T) {
	cache := &Cache{}

	_, populated := cache.Snapshot()
	assert.False(t, populated, "fresh cache must be empty")

	good := types.AuxiliaryPosition{Latitude: 37.7, Longitude: -122.4, Altitude: 10}
	assert.True(t, cache.Update(good))

	got, populated := cache.Snapshot()
	require.True(t, populated)
	assert.Equal(t, good, got)

	// Unusable candidates never touch the slot.
	assert.False(t, cache.Update(types.AuxiliaryPosition{Latitude: 95, Longitude: 0}))
	assert.False(t, cache.Update(types.AuxiliaryPosition{Latitude: 0, Longitude: 0}))

	got, _ = cache.Snapshot()
	assert.Equal(t, good, got, "rejected updates must not overwrite")

	// A new valid fix overwrites wholesale.
	next := types.AuxiliaryPosition{Latitude: 48.85, Longitude: 2.35}
	assert.True(t, cache.Update(next))
	got, _ = cache.Snapshot()
	assert.Equal(t, next, got)
}

// scriptedSource replays queued messages to the feed.
type scriptedSource struct {
	msgs []*nats.Msg
}

func (s *scriptedSource) NextMsg(time.Duration) (*nats.Msg, error) {
	if len(s.msgs) == 0 {
		return nil, nats.ErrTimeout
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

func (s *scriptedSource) Pending() (int, int, error) {
	return len(s.msgs), 0, nil
}

func queued(bodies ...string) *scriptedSource {
	s := &scriptedSource{}
	for _, body := range bodies {
		s.msgs = append(s.msgs, &nats.Msg{Data: []byte(body)})
	}
	return s
}

func TestFeedPoll(t *testing.T) {
	cache := &Cache{}
	feed := NewFeed(queued(
		`{"gps":{"latitude":37.7,"longitude":-122.4,"altitude":10.0}}`,
		`{"gps":{"latitude":37.8,"longitude":-122.5}}`,
	), cache, 50*time.Millisecond, 4)

	assert.Equal(t, 2, feed.Poll())

	got, populated := cache.Snapshot()
	require.True(t, populated)
	assert.Equal(t, 37.8, got.Latitude, "latest message wins")
	assert.Zero(t, got.Altitude, "altitude optional")
}

func TestFeedPollBatchLimit(t *testing.T) {
	cache := &Cache{}
	source := queued(
		`{"gps":{"latitude":1.0,"longitude":1.0}}`,
		`{"gps":{"latitude":2.0,"longitude":2.0}}`,
		`{"gps":{"latitude":3.0,"longitude":3.0}}`,
	)
	feed := NewFeed(source, cache, 50*time.Millisecond, 2)

	assert.Equal(t, 2, feed.Poll())
	got, _ := cache.Snapshot()
	assert.Equal(t, 2.0, got.Latitude)

	// Remaining message picked up on the next poll.
	assert.Equal(t, 1, feed.Poll())
	got, _ = cache.Snapshot()
	assert.Equal(t, 3.0, got.Latitude)
}

func TestFeedPollNonBlocking(t *testing.T) {
	// Zero timeout takes only already-pending messages.
	cache := &Cache{}
	feed := NewFeed(queued(`{"gps":{"latitude":5.0,"longitude":5.0}}`), cache, 0, 4)

	assert.Equal(t, 1, feed.Poll())
	assert.Equal(t, 0, feed.Poll(), "empty source yields no updates")
}

func TestFeedIgnoresUnusableShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `not json at all`},
		{name: "no gps object", body: `{"battery":{"percent":80}}`},
		{name: "gps missing longitude", body: `{"gps":{"latitude":37.7}}`},
		{name: "gps non-numeric", body: `{"gps":{"latitude":"37.7","longitude":"-122.4"}}`},
		{name: "out of range fix", body: `{"gps":{"latitude":95.0,"longitude":10.0}}`},
		{name: "null island fix", body: `{"gps":{"latitude":0.0,"longitude":0.0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &Cache{}
			feed := NewFeed(queued(tt.body), cache, 50*time.Millisecond, 4)

			assert.Equal(t, 0, feed.Poll())
			_, populated := cache.Snapshot()
			assert.False(t, populated)
		})
	}
}

func TestFeedStampsObservationTime(t *testing.T) {
	cache := &Cache{}
	feed := NewFeed(queued(`{"gps":{"latitude":37.7,"longitude":-122.4}}`), cache, time.Millisecond, 1)
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	feed.clock = func() time.Time { return fixed }

	require.Equal(t, 1, feed.Poll())
	got, _ := cache.Snapshot()
	assert.Equal(t, fixed, got.ObservedAt)
}
