package audio

import (
	"context"
	"sync"
	"time"

	"lessoncast/internal/clock"
	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

// VirtualPlayer times clips on the server from their byte size. Browsers
// play the same URL aligned to the pushed position.
type VirtualPlayer struct {
	clock       clock.Clock
	bitrateKbps int
}

func NewVirtualPlayer(c clock.Clock, bitrateKbps int) *VirtualPlayer {
	if c == nil {
		c = clock.Real()
	}
	if bitrateKbps <= 0 {
		bitrateKbps = 128
	}
	return &VirtualPlayer{clock: c, bitrateKbps: bitrateKbps}
}

// DurationFor returns the play time of size bytes of constant-bitrate audio.
func DurationFor(size int64, bitrateKbps int) time.Duration {
	if size <= 0 || bitrateKbps <= 0 {
		return 0
	}
	bytesPerSecond := float64(bitrateKbps) * 1000 / 8
	return time.Duration(float64(size) / bytesPerSecond * float64(time.Second))
}

// Start begins a clip at offset. A source with neither a known size nor an
// estimate cannot be timed and fails like an undecodable file.
func (p *VirtualPlayer) Start(ctx context.Context, src types.AudioSource, offset time.Duration) (interfaces.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := DurationFor(src.Size, p.bitrateKbps)
	if d <= 0 {
		d = src.Estimate
	}
	if d <= 0 {
		return nil, ErrUnknownLength
	}
	if offset < 0 {
		offset = 0
	}
	if offset > d {
		offset = d
	}

	c := &virtualClip{
		clock:    p.clock,
		duration: d,
		offset:   offset,
		start:    p.clock.Now(),
		done:     make(chan struct{}),
	}
	c.mu.Lock()
	c.timer = p.clock.AfterFunc(d-offset, c.finish)
	c.mu.Unlock()
	return c, nil
}

type virtualClip struct {
	clock    clock.Clock
	duration time.Duration
	offset   time.Duration
	start    time.Time

	mu      sync.Mutex
	timer   clock.Timer
	done    chan struct{}
	stopped bool
	ended   bool
	frozen  time.Duration
}

func (c *virtualClip) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.ended {
		return
	}
	c.ended = true
	c.frozen = c.duration
	close(c.done)
}

func (c *virtualClip) Done() <-chan struct{} { return c.done }

func (c *virtualClip) Err() error { return nil }

func (c *virtualClip) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.ended {
		return c.frozen
	}
	pos := c.offset + c.clock.Now().Sub(c.start)
	if pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *virtualClip) Duration() time.Duration { return c.duration }

func (c *virtualClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.ended {
		return
	}
	pos := c.offset + c.clock.Now().Sub(c.start)
	if pos > c.duration {
		pos = c.duration
	}
	c.frozen = pos
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}
