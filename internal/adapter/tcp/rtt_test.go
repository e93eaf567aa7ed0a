package tcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRTTEstimator_FirstSamplePrimesDirectly(t *testing.T) {
	e := NewRTTEstimator()
	e.Sample(100 * time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, e.SRTT())
	assert.Equal(t, 50*time.Millisecond, e.RTTVAR())
}

func TestRTTEstimator_RTOClampedToBounds(t *testing.T) {
	e := NewRTTEstimator()
	e.Sample(1 * time.Millisecond)
	assert.Equal(t, minRTO, e.RTO())

	e2 := NewRTTEstimator()
	e2.Sample(100 * time.Second)
	assert.Equal(t, maxRTO, e2.RTO())
}

func TestRTTEstimator_ConvergesOnStableSamples(t *testing.T) {
	e := NewRTTEstimator()
	for i := 0; i < 50; i++ {
		e.Sample(40 * time.Millisecond)
	}
	assert.InDelta(t, 40*time.Millisecond, e.SRTT(), float64(time.Millisecond))
}

func TestCongestionController_SlowStartDoublesPerRTT(t *testing.T) {
	c := NewCongestionController()
	assert.Equal(t, 1, c.Window())

	c.OnAck()
	assert.Equal(t, 2, c.Window())
	assert.True(t, c.Window() < c.Threshold())
}

func TestCongestionController_TimeoutHalvesThresholdResetsWindow(t *testing.T) {
	c := NewCongestionController()
	for i := 0; i < 10; i++ {
		c.OnAck()
	}
	cwndBefore := c.Window()

	c.OnTimeout()
	assert.Equal(t, 1, c.Window())
	assert.Equal(t, max(cwndBefore/2, 2), c.Threshold())
}

func TestCongestionController_TripleDupAckFastRetransmits(t *testing.T) {
	c := NewCongestionController()
	for i := 0; i < 10; i++ {
		c.OnAck()
	}
	cwndBefore := c.Window()

	assert.False(t, c.OnDuplicateAck())
	assert.False(t, c.OnDuplicateAck())
	assert.True(t, c.OnDuplicateAck())

	expectedSsthresh := max(cwndBefore/2, 2)
	assert.Equal(t, expectedSsthresh, c.Threshold())
	assert.Equal(t, expectedSsthresh+3, c.Window())
}

