package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a per-key token bucket. The ask endpoint keys it by client
// IP so one chatty client cannot monopolize the agent loop. Buckets idle
// past staleAfter are evicted lazily to bound memory.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	staleAfter time.Duration
	lastSweep  time.Time
}

func New() *Limiter {
	return &Limiter{m: make(map[string]*bucket), staleAfter: 10 * time.Minute}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.staleAfter {
		for k, b := range l.m {
			if now.Sub(b.last) > l.staleAfter {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}
