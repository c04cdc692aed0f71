/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps a token bucket per client address. A nil or disabled
// limiter allows everything.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit rate.Limit
	burst int
	now   func() time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ipLimiter) enabled() bool {
	return l != nil && l.limit > 0
}

func (l *ipLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// prune forgets clients not seen since cutoff.
func (l *ipLimiter) prune(cutoff time.Time) {
	if !l.enabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
}

func (l *ipLimiter) len() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.visitors)
}

// limit rejects requests from clients over their budget with 429.
func limit(cfg *Config, l *ipLimiter, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !l.allow(clientHost(cfg, r)) {
			logf(cfg, "ERROR: Rate limited %s %s from %s", r.Method, r.URL.Path, realIP(r))

			w.Header().Set("Retry-After", "1")
			writeJSON(cfg, w, http.StatusTooManyRequests, errorResponse{
				Kind:  "rate_limited",
				Error: "Too many requests. Please slow down.",
			})
			return
		}

		h(w, r, ps)
	}
}
