package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stepClock is a manual clock for the rate limiter.
type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newSteppedLimiter(max int, window time.Duration) (*RateLimiter, *stepClock) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(max, window)
	limiter.now = clock.Now
	return limiter, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "test-conn-1"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(connID) {
		t.Error("11th request should be denied")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter, clock := newSteppedLimiter(2, time.Second)
	connID := "test-conn-2"

	if !limiter.Allow(connID) {
		t.Error("First request should be allowed")
	}
	clock.now = clock.now.Add(600 * time.Millisecond)
	if !limiter.Allow(connID) {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("Third request should be denied")
	}

	// Only the first request has left the window.
	clock.now = clock.now.Add(500 * time.Millisecond)
	if !limiter.Allow(connID) {
		t.Error("Request after the oldest expired should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("Window is full again")
	}
}

func TestRateLimiter_DeniedRequestsDoNotCount(t *testing.T) {
	limiter, clock := newSteppedLimiter(1, time.Second)

	assert.True(t, limiter.Allow("spammer"))
	for i := 0; i < 50; i++ {
		clock.now = clock.now.Add(10 * time.Millisecond)
		assert.False(t, limiter.Allow("spammer"))
	}

	clock.now = clock.now.Add(600 * time.Millisecond)
	assert.True(t, limiter.Allow("spammer"))
}

func TestRateLimiter_MultipleConnections(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		limiter.Allow("conn-1")
	}
	if limiter.Allow("conn-1") {
		t.Error("conn1 should be rate limited")
	}

	for i := 0; i < 5; i++ {
		if !limiter.Allow("conn-2") {
			t.Errorf("conn2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clock := newSteppedLimiter(10, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("conn-%d", i))
	}
	assert.Equal(t, 5, limiter.tracked())

	clock.now = clock.now.Add(50 * time.Millisecond)
	limiter.Allow("conn-fresh")
	clock.now = clock.now.Add(60 * time.Millisecond)

	limiter.Cleanup()
	assert.Equal(t, 1, limiter.tracked(), "only the connection with a request inside the window survives")
}

func TestRateLimiter_RemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	limiter.Allow("conn")
	assert.False(t, limiter.Allow("conn"))

	limiter.RemoveConnection("conn")
	assert.Equal(t, 0, limiter.tracked())
	assert.True(t, limiter.Allow("conn"))
}

func TestValidateName(t *testing.T) {
	var tests = []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Alice", "Alice", false},
		{"trimmed", "  Bob\t", "Bob", false},
		{"unicode", "Zoë 🃏", "Zoë 🃏", false},
		{"max length", strings.Repeat("x", maxNameLength), strings.Repeat("x", maxNameLength), false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("x", maxNameLength+1), "", true},
		{"control character", "Al\x00ice", "", true},
		{"newline inside", "Al\nice", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
