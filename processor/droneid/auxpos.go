package droneid

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

// Cache is the single-slot store of the most recent usable host-sensor GPS
// fix. It is the only state shared between the auxiliary feed and the main
// pipeline: writes overwrite the slot wholesale, reads take a snapshot, and
// neither ever waits on the other beyond the lock hold itself. The slot
// never expires; staleness is accepted, corruption is not.
type Cache struct {
	mu        sync.RWMutex
	pos       types.AuxiliaryPosition
	populated bool
}

// Update overwrites the slot iff the candidate is usable (in range and not
// (0,0)). Unusable candidates are ignored, never partially merged. Returns
// whether the slot was written.
func (c *Cache) Update(pos types.AuxiliaryPosition) bool {
	if !pos.Usable() {
		return false
	}

	c.mu.Lock()
	c.pos = pos
	c.populated = true
	c.mu.Unlock()
	return true
}

// Snapshot returns the current fix and whether the slot has ever been
// populated.
func (c *Cache) Snapshot() (types.AuxiliaryPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos, c.populated
}

// auxMessage is the accepted shape of an auxiliary feed message. Any
// message without a gps object carrying numeric latitude and longitude is
// ignored without error.
type auxMessage struct {
	GPS *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Altitude  *float64 `json:"altitude"`
	} `json:"gps"`
}

// messageSource is the slice of a synchronous NATS subscription the feed
// needs. *nats.Subscription satisfies it; tests inject a scripted source.
type messageSource interface {
	NextMsg(timeout time.Duration) (*nats.Msg, error)
	Pending() (int, int, error)
}

// Feed drains the auxiliary position subject into the cache. It is polled
// from the main pipeline loop between frames: the first receive is bounded
// by the poll timeout (zero means strictly non-blocking), the remainder of
// the batch is taken only from messages already pending, so the primary
// pipeline is never blocked by a slow or silent feed.
type Feed struct {
	source  messageSource
	cache   *Cache
	timeout time.Duration
	batch   int
	clock   func() time.Time
}

// NewFeed wires a message source to the cache. batch < 1 is treated as 1.
func NewFeed(source messageSource, cache *Cache, timeout time.Duration, batch int) *Feed {
	if batch < 1 {
		batch = 1
	}
	return &Feed{
		source:  source,
		cache:   cache,
		timeout: timeout,
		batch:   batch,
		clock:   time.Now,
	}
}

// Poll drains up to the configured batch of pending messages and returns
// how many cache updates were applied.
func (f *Feed) Poll() int {
	updates := 0

	for i := 0; i < f.batch; i++ {
		var msg *nats.Msg
		var err error

		if i == 0 && f.timeout > 0 {
			msg, err = f.source.NextMsg(f.timeout)
		} else {
			// Only take messages that are already queued.
			pending, _, perr := f.source.Pending()
			if perr != nil || pending == 0 {
				return updates
			}
			msg, err = f.source.NextMsg(time.Millisecond)
		}
		if err != nil || msg == nil {
			return updates
		}

		if f.apply(msg.Data) {
			updates++
		}
	}

	return updates
}

// apply parses one feed message and updates the cache when it carries a
// usable fix.
func (f *Feed) apply(data []byte) bool {
	var msg auxMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	if msg.GPS == nil || msg.GPS.Latitude == nil || msg.GPS.Longitude == nil {
		return false
	}

	pos := types.AuxiliaryPosition{
		Latitude:   *msg.GPS.Latitude,
		Longitude:  *msg.GPS.Longitude,
		ObservedAt: f.clock(),
	}
	if msg.GPS.Altitude != nil {
		pos.Altitude = *msg.GPS.Altitude
	}

	return f.cache.Update(pos)
}
