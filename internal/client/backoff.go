package client

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: Min * Factor^attempt, randomized by
// ±Jitter and capped at Max. It is not safe for concurrent use.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64

	attempt int
	rand    func() float64
}

func DefaultBackoff() *Backoff {
	return &Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: 0.5}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	r := b.rand
	if r == nil {
		r = rand.Float64
	}

	d := float64(b.Min) * math.Pow(b.Factor, float64(b.attempt))
	b.attempt++
	if b.Jitter > 0 {
		d += d * b.Jitter * (2*r() - 1)
	}
	if d > float64(b.Max) || math.IsInf(d, 0) {
		return b.Max
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Reset starts over after a successful connection.
func (b *Backoff) Reset() { b.attempt = 0 }

func (b *Backoff) Attempt() int { return b.attempt }
