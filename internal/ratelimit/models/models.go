package models

import (
	"math"
	"time"
)

// LimitClass names a rate-limit budget shared by one or more endpoints.
type LimitClass string

const (
	// ClassChatbot: assistant requests (10 per 15 min)
	ClassChatbot LimitClass = "chatbot"
	// ClassContact: contact form submissions (3 per hour)
	ClassContact LimitClass = "contact"
	// ClassGlobal: every API request from one client (30 per minute)
	ClassGlobal LimitClass = "global"
)

func (c LimitClass) IsValid() bool {
	switch c {
	case ClassChatbot, ClassContact, ClassGlobal:
		return true
	}
	return false
}

func (c LimitClass) String() string {
	return string(c)
}

// WindowResult is what a store reports after one admit attempt.
type WindowResult struct {
	Allowed bool
	// Count is the number of timestamps in the window after the attempt.
	Count int
	// Oldest is the earliest timestamp still in the window, zero when empty.
	Oldest time.Time
}

// Decision is the limiter's verdict for one client and class.
type Decision struct {
	Admitted   bool       `json:"admitted"`
	Class      LimitClass `json:"class"`
	Limit      int        `json:"limit"`
	Remaining  int        `json:"remaining"`
	ResetAt    time.Time  `json:"reset_at"`
	RetryAfter int        `json:"retry_after,omitempty"` // seconds, only set when not admitted
	Message    string     `json:"message,omitempty"`
}

// MoreRestrictive reports whether d leaves the client less headroom than other.
func (d *Decision) MoreRestrictive(other *Decision) bool {
	if other == nil {
		return true
	}
	if d.Remaining != other.Remaining {
		return d.Remaining < other.Remaining
	}
	return d.ResetAt.Before(other.ResetAt)
}

// SweepResult summarises one eviction pass.
type SweepResult struct {
	KeysRemoved       int
	ViolationsRemoved int
	Duration          time.Duration
}

// RetryAfterSeconds is the whole number of seconds until the oldest
// timestamp leaves the window, never less than one.
func RetryAfterSeconds(oldest time.Time, window time.Duration, now time.Time) int {
	if oldest.IsZero() {
		return int(math.Ceil(window.Seconds()))
	}
	wait := oldest.Add(window).Sub(now)
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
