package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStep_ThreeWayHandshake(t *testing.T) {
	state := Closed

	state, out, ok := Step(state, EventPassiveOpen, nil)
	assert.True(t, ok)
	assert.Equal(t, Listen, state)
	assert.Nil(t, out)

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagSYN})
	assert.True(t, ok)
	assert.Equal(t, SynReceived, state)
	assert.True(t, out.Flags.Has(FlagSYN) && out.Flags.Has(FlagACK))

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagACK})
	assert.True(t, ok)
	assert.Equal(t, Established, state)
	assert.Nil(t, out)
}

func TestStep_ActiveOpenHandshake(t *testing.T) {
	state := Closed

	state, out, ok := Step(state, EventActiveOpen, nil)
	assert.True(t, ok)
	assert.Equal(t, SynSent, state)
	assert.True(t, out.Flags.Has(FlagSYN))

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagSYN | FlagACK})
	assert.True(t, ok)
	assert.Equal(t, Established, state)
	assert.True(t, out.Flags.Has(FlagACK))
}

func TestStep_FourWayClose(t *testing.T) {
	state := Established

	state, out, ok := Step(state, EventClose, nil)
	assert.True(t, ok)
	assert.Equal(t, FinWait1, state)
	assert.True(t, out.Flags.Has(FlagFIN))

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagACK})
	assert.True(t, ok)
	assert.Equal(t, FinWait2, state)
	assert.Nil(t, out)

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagFIN})
	assert.True(t, ok)
	assert.Equal(t, TimeWait, state)
	assert.True(t, out.Flags.Has(FlagACK))
}

func TestStep_PassiveCloseSequence(t *testing.T) {
	state := Established

	state, out, ok := Step(state, EventReceive, &Segment{Flags: FlagFIN})
	assert.True(t, ok)
	assert.Equal(t, CloseWait, state)
	assert.True(t, out.Flags.Has(FlagACK))

	state, out, ok = Step(state, EventClose, nil)
	assert.True(t, ok)
	assert.Equal(t, LastAck, state)
	assert.True(t, out.Flags.Has(FlagFIN))

	state, out, ok = Step(state, EventReceive, &Segment{Flags: FlagACK})
	assert.True(t, ok)
	assert.Equal(t, Closed, state)
	assert.Nil(t, out)
}

func TestStep_RSTAbortsFromAnyState(t *testing.T) {
	for _, s := range []State{Listen, SynSent, SynReceived, Established, FinWait1, FinWait2, CloseWait, Closing, LastAck, TimeWait} {
		next, out, ok := Step(s, EventReceive, &Segment{Flags: FlagRST})
		assert.True(t, ok, "state %s", s)
		assert.Equal(t, Closed, next, "state %s", s)
		assert.Nil(t, out)
	}
}

func TestStep_UnexpectedSegmentIsDroppedAndCounted(t *testing.T) {
	next, out, ok := Step(Closed, EventReceive, &Segment{Flags: FlagACK})
	assert.False(t, ok)
	assert.Equal(t, Closed, next)
	assert.Nil(t, out)
}

func TestStep_TimeWaitExpiresOnTimeout(t *testing.T) {
	next, out, ok := Step(TimeWait, EventTimeout, nil)
	assert.True(t, ok)
	assert.Equal(t, Closed, next)
	assert.Nil(t, out)
}

func TestConn_TimeWaitExpiry(t *testing.T) {
	c := NewConn()
	c.state = Established
	c.Apply(EventClose, nil)
	c.Apply(EventReceive, &Segment{Flags: FlagACK})
	c.Apply(EventReceive, &Segment{Flags: FlagFIN})

	assert.Equal(t, TimeWait, c.State())
	assert.False(t, c.TimeWaitExpired(c.timeWaitAt.Add(2*MSL-time.Nanosecond)))
	assert.True(t, c.TimeWaitExpired(c.timeWaitAt.Add(2*MSL)))
}

func TestConn_DropsUnexpectedEvents(t *testing.T) {
	c := NewConn()
	c.Apply(EventReceive, &Segment{Flags: FlagACK})
	assert.Equal(t, 1, c.Dropped())
	assert.Equal(t, Closed, c.State())
}
