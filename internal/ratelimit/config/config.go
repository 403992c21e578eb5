package config

import (
	"time"

	"folio/internal/ratelimit/models"
)

// Config holds rate limiting configuration.
type Config struct {
	// Limits by class
	Classes map[models.LimitClass]Limit

	// Rejections from one client before it is reported as suspicious
	SuspiciousThreshold int

	// Violation counters idle longer than this are forgotten
	ViolationTTL time.Duration
}

// Limit defines the sliding-window budget of one class.
type Limit struct {
	MaxRequests int
	Window      time.Duration
	Message     string
}

// DefaultConfig returns the production budgets.
func DefaultConfig() *Config {
	return &Config{
		Classes: map[models.LimitClass]Limit{
			models.ClassChatbot: {
				MaxRequests: 10,
				Window:      15 * time.Minute,
				Message:     "Too many chatbot requests. Please wait a few minutes before trying again.",
			},
			models.ClassContact: {
				MaxRequests: 3,
				Window:      time.Hour,
				Message:     "Too many contact form submissions. Please wait an hour before sending another message.",
			},
			models.ClassGlobal: {
				MaxRequests: 30,
				Window:      time.Minute,
				Message:     "Too many requests. Please slow down.",
			},
		},
		SuspiciousThreshold: 5,
		ViolationTTL:        24 * time.Hour,
	}
}

// Limit returns the budget for class.
func (c *Config) Limit(class models.LimitClass) (Limit, bool) {
	limit, ok := c.Classes[class]
	if !ok || limit.MaxRequests <= 0 || limit.Window <= 0 {
		return Limit{}, false
	}
	return limit, true
}
