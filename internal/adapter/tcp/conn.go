package tcp

import (
	"math/rand"
	"sync"
	"time"
)

// Conn drives the transition table for one logical connection, owning
// its current state, congestion window, RTT estimator, and the
// TIME_WAIT timer. It does not itself move bytes — internal/adapter
// codec and transport do that over the real net.Conn — this is the
// bookkeeping spec.md §4.1 asks every connection to carry.
type Conn struct {
	mu         sync.Mutex
	state      State
	iss        uint32 // initial send sequence number
	rtt        *RTTEstimator
	congestion *CongestionController
	dropped    int
	timeWaitAt time.Time
	onTimeWait func()
}

// NewConn returns a connection in CLOSED with a pseudo-random initial
// sequence number, per spec.md §4.1.
func NewConn() *Conn {
	return &Conn{
		state:      Closed,
		iss:        rand.Uint32(),
		rtt:        NewRTTEstimator(),
		congestion: NewCongestionController(),
	}
}

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ISS returns the initial sequence number chosen at construction.
func (c *Conn) ISS() uint32 {
	return c.iss
}

// Dropped returns the count of events with no defined transition.
func (c *Conn) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Apply feeds one event (with, for EventReceive, the peer's segment)
// into the transition table and updates state accordingly. It returns
// the outbound segment the table produced, if any.
func (c *Conn) Apply(event Event, in *Segment) *Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, out, ok := Step(c.state, event, in)
	if !ok {
		c.dropped++
		return nil
	}

	entering := next == TimeWait && c.state != TimeWait
	c.state = next
	if entering {
		c.timeWaitAt = time.Now()
	}
	return out
}

// TimeWaitExpired reports whether a connection in TIME_WAIT has held
// that state for at least 2*MSL and should transition to CLOSED.
func (c *Conn) TimeWaitExpired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == TimeWait && now.Sub(c.timeWaitAt) >= 2*MSL
}

// RTT and Congestion expose the per-connection estimators so a caller
// (the transport layer) can feed them measured samples and ACK events.
func (c *Conn) RTT() *RTTEstimator              { return c.rtt }
func (c *Conn) Congestion() *CongestionController { return c.congestion }
