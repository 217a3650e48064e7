package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newReconnectBackOff returns a deterministic doubling sequence starting at
// base: base, 2*base, 4*base, ... capped at MaxReconnectDelay. It never stops
// on its own; the attempt limit is enforced by the client.
func newReconnectBackOff(base time.Duration, clock backoff.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         MaxReconnectDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clock,
	}
	b.Reset()
	return b
}

// nextDelay returns the next delay in the sequence, never above MaxReconnectDelay.
func nextDelay(b *backoff.ExponentialBackOff) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop || d > MaxReconnectDelay {
		return MaxReconnectDelay
	}
	return d
}
