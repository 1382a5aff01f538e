package domain

import "time"

// Event is an append-only analytics/error/performance record.
type Event struct {
	ID        int64
	EventType string
	Data      map[string]any
	IP        string
	UserAgent string
	Timestamp time.Time
}

// FeedbackRecord is an append-only end-of-episode rating.
type FeedbackRecord struct {
	ID             int64
	OverallRating  int
	ScriptRating   int
	AudioRating    int
	Comments       string
	Recommend      bool
	SessionID      string
	CreatedAt      time.Time
}

// DefaultEventRetention is the default retention window for the Event log.
const DefaultEventRetention = 30 * 24 * time.Hour
