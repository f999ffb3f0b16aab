package testing

import (
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	t.Run("fires timers in deadline order", func(t *testing.T) {
		c := NewFakeClock()
		var order []int
		c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
		c.AfterFunc(time.Second, func() { order = append(order, 1) })

		c.Advance(500 * time.Millisecond)
		if len(order) != 0 {
			t.Fatalf("expected nothing fired yet, got %v", order)
		}

		c.Advance(2 * time.Second)
		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("stopped timers never fire", func(t *testing.T) {
		c := NewFakeClock()
		fired := false
		timer := c.AfterFunc(time.Second, func() { fired = true })
		if !timer.Stop() {
			t.Error("expected first Stop to report true")
		}
		if timer.Stop() {
			t.Error("expected second Stop to report false")
		}
		c.Advance(time.Minute)
		if fired {
			t.Error("stopped timer fired")
		}
	})

	t.Run("timers scheduled by callbacks run within the window", func(t *testing.T) {
		c := NewFakeClock()
		ticks := 0
		var tick func()
		tick = func() {
			ticks++
			c.AfterFunc(time.Second, tick)
		}
		c.AfterFunc(time.Second, tick)

		c.Advance(3 * time.Second)
		if ticks != 3 {
			t.Errorf("expected 3 ticks, got %d", ticks)
		}
		if p := c.Pending(); len(p) != 1 || p[0] != time.Second {
			t.Errorf("expected one pending 1s timer, got %v", p)
		}
	})

	t.Run("Now tracks advances", func(t *testing.T) {
		c := NewFakeClock()
		start := c.Now()
		c.Advance(90 * time.Second)
		if c.Now().Sub(start) != 90*time.Second {
			t.Errorf("unexpected elapsed %v", c.Now().Sub(start))
		}
	})
}
