// Package ratelimit limits requests per resolved peer address.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxTrackedPeers bounds memory when many distinct peers appear at once.
	maxTrackedPeers = 10000

	cleanupInterval = time.Minute
)

// Limiter is a token bucket per peer.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	cleanup  *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewLimiter allows requestsPerSecond per peer with the given burst. A
// burst below one is raised to one.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}

	l := &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		cleanup:  time.NewTicker(cleanupInterval),
		stopChan: make(chan struct{}),
	}

	go l.cleanupRoutine()

	return l
}

// Allow reports whether a request from peer may proceed. Once
// maxTrackedPeers are tracked, a new peer replaces the bucket that has
// refilled the most.
func (l *Limiter) Allow(peer string) bool {
	l.mu.Lock()
	limiter, exists := l.limiters[peer]
	if !exists {
		if len(l.limiters) >= maxTrackedPeers {
			l.evictLocked()
		}
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[peer] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func (l *Limiter) cleanupRoutine() {
	for {
		select {
		case <-l.cleanup.C:
			l.cleanupIdle()
		case <-l.stopChan:
			return
		}
	}
}

// cleanupIdle drops peers whose bucket has refilled completely.
func (l *Limiter) cleanupIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for peer, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.burst) {
			delete(l.limiters, peer)
		}
	}
}

// evictLocked drops the bucket with the most tokens, stopping early at a
// full one. l.mu must be held.
func (l *Limiter) evictLocked() {
	now := time.Now()
	victim := ""
	most := -1.0
	for peer, limiter := range l.limiters {
		tokens := limiter.TokensAt(now)
		if tokens > most {
			victim, most = peer, tokens
		}
		if tokens >= float64(l.burst) {
			break
		}
	}
	delete(l.limiters, victim)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.cleanup.Stop()
		close(l.stopChan)
	})
}

// Tracked returns the number of peers with live buckets.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
