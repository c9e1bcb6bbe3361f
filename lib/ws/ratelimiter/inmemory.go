package ratelimiter

import (
	"sync"
	"time"

	"github.com/ether/collabpads-go/lib/settings"
)

type IPAddress string

type Event struct {
	LastOccurrence time.Time
}

// RateLimiter counts inbound frames per remote address over a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	events   map[IPAddress][]Event
	limiting settings.CommitRateLimiting
	now      func() time.Time
}

func New(limiting settings.CommitRateLimiting) *RateLimiter {
	return &RateLimiter{
		events:   make(map[IPAddress][]Event),
		limiting: limiting,
		now:      time.Now,
	}
}

type ErrRateLimitExceeded struct {
	IP IPAddress
}

func (e ErrRateLimitExceeded) Error() string {
	return "rate limit exceeded for " + string(e.IP)
}

// Check records one frame from ip and fails once more than Points frames arrived within the
// last Duration seconds. A disabled limiter accepts everything.
func (r *RateLimiter) Check(ip IPAddress) error {
	if r == nil || !r.limiting.Enabled {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-time.Duration(r.limiting.Duration) * time.Second)
	filteredEvents := make([]Event, 0, len(r.events[ip])+1)
	for _, event := range r.events[ip] {
		if event.LastOccurrence.After(cutoff) {
			filteredEvents = append(filteredEvents, event)
		}
	}

	filteredEvents = append(filteredEvents, Event{LastOccurrence: now})
	r.events[ip] = filteredEvents
	if len(filteredEvents) > r.limiting.Points {
		return ErrRateLimitExceeded{IP: ip}
	}
	return nil
}

// Forget drops the window kept for ip.
func (r *RateLimiter) Forget(ip IPAddress) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, ip)
}
