package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RequestBudget throttles provider API calls based on the rate-limit headers
// the provider returns. A caller acquires one unit per request; when the
// budget is exhausted or the provider asked for a cooldown, Acquire blocks
// until the reset time passes, the cooldown expires, or the context ends.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	notifyCh  chan struct{}
	now       func() time.Time
}

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: 5000, // conservative start until the first response arrives
		reset:     time.Now().Add(time.Hour),
		notifyCh:  make(chan struct{}),
		now:       time.Now,
	}
}

func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire consumes one request unit, blocking while the budget is exhausted
// or a cooldown is active.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("Acquire: nil RequestBudget")
	}
	if ctx == nil {
		return fmt.Errorf("Acquire: nil context")
	}

	for {
		b.mu.Lock()
		now := b.now()

		var wakeAt time.Time
		switch {
		case now.Before(b.cooldown):
			wakeAt = b.cooldown
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case !now.Before(b.reset):
			// Reset has passed but no refreshed headers observed yet; let the
			// request through and learn the new budget from its response.
			b.remaining = 0
			b.mu.Unlock()
			return nil
		default:
			wakeAt = b.reset
		}
		ch := b.notifyCh
		b.mu.Unlock()

		wait := wakeAt.Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-ch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// UpdateFromResponse learns the current budget from rate-limit headers and
// wakes any blocked Acquire calls.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if b == nil || resp == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
				changed = true
			}
		}
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 && b.remaining != val {
			b.remaining = val
			changed = true
		}
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			newReset := time.Unix(val, 0)
			if !b.reset.Equal(newReset) {
				b.reset = newReset
				changed = true
			}
		}
	}

	if changed {
		close(b.notifyCh)
		b.notifyCh = make(chan struct{})
	}
}
