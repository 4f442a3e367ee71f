// Package clock abstracts time so playback timers can be driven by tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the subset of the time package used by playback.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Manual is a clock that only moves when Advance is called. Timer callbacks
// run on the goroutine calling Advance; ticks are dropped when the receiver
// is behind, as with time.Ticker.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	timers  map[*manualTimer]struct{}
	tickers map[*manualTicker]struct{}
}

// NewManual returns a manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:     start,
		timers:  make(map[*manualTimer]struct{}),
		tickers: make(map[*manualTicker]struct{}),
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{clock: m, when: m.now.Add(d), f: f, seq: m.seq}
	m.timers[t] = struct{}{}
	return t
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{clock: m, period: d, next: m.now.Add(d), c: make(chan time.Time, 1)}
	m.tickers[t] = struct{}{}
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing due timers and tickers in
// time order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		timer, ticker, at := m.nextDue(target)
		if timer == nil && ticker == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = at
		if timer != nil {
			delete(m.timers, timer)
			m.mu.Unlock()
			timer.f()
			continue
		}
		ticker.next = ticker.next.Add(ticker.period)
		m.mu.Unlock()
		select {
		case ticker.c <- at:
		default:
		}
	}
}

// nextDue finds the earliest event at or before target. Timers win ties.
func (m *Manual) nextDue(target time.Time) (*manualTimer, *manualTicker, time.Time) {
	var timers []*manualTimer
	for t := range m.timers {
		if !t.when.After(target) {
			timers = append(timers, t)
		}
	}
	sort.Slice(timers, func(i, j int) bool {
		if timers[i].when.Equal(timers[j].when) {
			return timers[i].seq < timers[j].seq
		}
		return timers[i].when.Before(timers[j].when)
	})

	var tick *manualTicker
	for t := range m.tickers {
		if !t.next.After(target) && (tick == nil || t.next.Before(tick.next)) {
			tick = t
		}
	}

	switch {
	case len(timers) > 0 && (tick == nil || !tick.next.Before(timers[0].when)):
		return timers[0], nil, timers[0].when
	case tick != nil:
		return nil, tick, tick.next
	default:
		return nil, nil, target
	}
}

type manualTimer struct {
	clock *Manual
	when  time.Time
	f     func()
	seq   int
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.timers[t]; !ok {
		return false
	}
	delete(t.clock.timers, t)
	return true
}

type manualTicker struct {
	clock  *Manual
	period time.Duration
	next   time.Time
	c      chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	delete(t.clock.tickers, t)
}
