package peer

import (
	"math/rand"
	"time"
)

// Backoff computes exponential reconnect delays with jitter and a ceiling,
// per spec §4.2.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the delay to use before reconnect attempt number attempt
// (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d/2 + jitter
}
