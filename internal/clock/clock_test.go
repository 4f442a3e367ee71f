package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManual_AfterFunc(t *testing.T) {
	c := NewManual(epoch)
	var fired []string
	c.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "early") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "stopped") })

	if !stopped.Stop() {
		t.Error("Stop on pending timer should return true")
	}
	if c.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", c.Pending())
	}

	c.Advance(299 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "early" {
		t.Fatalf("fired = %v, want [early]", fired)
	}
	c.Advance(time.Millisecond)
	if len(fired) != 2 || fired[1] != "late" {
		t.Errorf("fired = %v", fired)
	}
	if stopped.Stop() {
		t.Error("second Stop should return false")
	}
	if got := c.Now(); !got.Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestManual_TimerSeesFireTime(t *testing.T) {
	c := NewManual(epoch)
	var at time.Time
	c.AfterFunc(time.Second, func() { at = c.Now() })
	c.Advance(5 * time.Second)
	if !at.Equal(epoch.Add(time.Second)) {
		t.Errorf("callback saw %v, want fire time", at)
	}
}

func TestManual_TimerScheduledFromCallback(t *testing.T) {
	c := NewManual(epoch)
	count := 0
	var rearm func()
	rearm = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, rearm)
		}
	}
	c.AfterFunc(time.Second, rearm)
	c.Advance(10 * time.Second)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestManual_Ticker(t *testing.T) {
	c := NewManual(epoch)
	tk := c.NewTicker(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("no tick expected yet")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case at := <-tk.C():
		if !at.Equal(epoch.Add(100 * time.Millisecond)) {
			t.Errorf("tick at %v", at)
		}
	default:
		t.Fatal("expected a tick")
	}

	tk.Stop()
	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Error("stopped ticker should not tick")
	default:
	}
}
