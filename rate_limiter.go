package snapframe

import (
	"golang.org/x/time/rate"
)

// rateLimiter caps how many data messages a client may deliver.
// It is only touched by the read path.
type rateLimiter struct {
	limiter *rate.Limiter
	// Messages dropped since the connection started.
	dropped uint64
}

func newRateLimiter(mps float64, burst int) *rateLimiter {
	if mps <= 0 {
		return nil
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(mps), burst)}
}

func (rl *rateLimiter) allow() bool {
	if rl == nil {
		return true
	}
	if rl.limiter.Allow() {
		return true
	}
	rl.dropped++
	return false
}
