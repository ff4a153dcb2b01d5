package httpserver

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per authorized token id. A non-positive
// rps disables limiting.
type limiterPool struct {
	mu    sync.Mutex
	m     map[uint64]*rate.Limiter
	rps   float64
	burst int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{m: make(map[uint64]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) get(key uint64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key uint64) bool {
	if p.rps <= 0 {
		return true
	}
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
