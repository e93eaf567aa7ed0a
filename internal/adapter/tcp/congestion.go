package tcp

// CongestionController implements the slow-start / congestion-avoidance
// window spec.md §4.1 describes, in segments (not bytes): exponential
// growth while cwnd < ssthresh, additive growth thereafter; a timeout
// halves ssthresh and resets cwnd to 1; a triple duplicate ACK (fast
// retransmit) halves ssthresh and inflates cwnd past it by 3.
type CongestionController struct {
	cwnd     int
	ssthresh int
	dupACKs  int
	caAcks   int // ACKs counted toward the next congestion-avoidance increment
}

// NewCongestionController starts in slow start with an unbounded
// ssthresh, cwnd at one segment.
func NewCongestionController() *CongestionController {
	return &CongestionController{cwnd: 1, ssthresh: 1 << 30}
}

func (c *CongestionController) Window() int    { return c.cwnd }
func (c *CongestionController) Threshold() int { return c.ssthresh }

// OnAck advances the window on a new (non-duplicate) ACK.
func (c *CongestionController) OnAck() {
	c.dupACKs = 0
	if c.cwnd < c.ssthresh {
		c.cwnd++ // slow start: exponential via one increment per ACK, per-RTT doubling
	} else {
		// congestion avoidance: additive, one segment per RTT's worth of ACKs
		c.caAcks++
		if c.caAcks >= c.cwnd {
			c.cwnd++
			c.caAcks = 0
		}
	}
}

// OnDuplicateAck records a duplicate ACK and triggers fast retransmit on
// the third one.
func (c *CongestionController) OnDuplicateAck() (fastRetransmit bool) {
	c.dupACKs++
	if c.dupACKs == 3 {
		c.ssthresh = max(c.cwnd/2, 2)
		c.cwnd = c.ssthresh + 3
		return true
	}
	return false
}

// OnTimeout resets the window after a retransmission timeout.
func (c *CongestionController) OnTimeout() {
	c.ssthresh = max(c.cwnd/2, 2)
	c.cwnd = 1
	c.dupACKs = 0
}
