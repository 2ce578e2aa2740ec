package transport

import (
	"math/rand"
	"time"
)

// backoffDelay returns the sleep before reconnect attempt n (1-based):
// exponential growth from base, capped, with half the value jittered
// so simultaneous clients do not stampede.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			d = cap
			break
		}
	}
	if d > cap {
		d = cap
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
