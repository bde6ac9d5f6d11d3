package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	req := require.New(t)
	c := NewFake(time.Unix(0, 0))

	var fired []string
	c.AfterFunc(20*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "early") })

	c.Advance(15 * time.Second)
	req.Equal([]string{"early"}, fired)
	req.Equal(1, c.Pending())

	c.Advance(5 * time.Second)
	req.Equal([]string{"early", "late"}, fired)
	req.Equal(time.Unix(20, 0), c.Now())
}

func TestFakeAdvanceRunsChainedTimers(t *testing.T) {
	req := require.New(t)
	c := NewFake(time.Unix(0, 0))

	var at []time.Time
	c.AfterFunc(10*time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(20*time.Second, func() { at = append(at, c.Now()) })
	})

	c.Advance(30 * time.Second)
	req.Equal([]time.Time{time.Unix(10, 0), time.Unix(30, 0)}, at)
}

func TestFakeStop(t *testing.T) {
	req := require.New(t)
	c := NewFake(time.Unix(0, 0))

	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })
	req.True(timer.Stop())
	req.False(timer.Stop())

	c.Advance(time.Minute)
	req.False(called)
}
