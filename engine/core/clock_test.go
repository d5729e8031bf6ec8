package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed(), "not started")

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	elapsed := c.Elapsed()
	assert.GreaterOrEqual(t, elapsed, 0.005)

	c.Stop()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	assert.Equal(t, elapsed, c.Elapsed(), "stopped clocks keep their time")

	c.Start()
	assert.Zero(t, c.Elapsed())
}
