package model

import "time"

// Snapshot is the parsed profile data of one user at one point in time.
// It is never patched: a stale snapshot is replaced by a new one.
type Snapshot struct {
	UserID              string    `json:"user_id"`
	RegistrationDate    time.Time `json:"registration_date"`
	RegistrationDateRaw string    `json:"registration_date_raw"`
	ThreadCount         int       `json:"thread_count"`
	MessageCount        int       `json:"message_count"`
	DaysRegistered      int       `json:"days_registered"`
	MessagesPerDay      float64   `json:"messages_per_day"`
}

// NewSnapshot derives MessagesPerDay from the counters and the account age.
func NewSnapshot(userID, raw string, registered time.Time, threads, messages, days int) Snapshot {
	return Snapshot{
		UserID:              userID,
		RegistrationDate:    registered,
		RegistrationDateRaw: raw,
		ThreadCount:         threads,
		MessageCount:        messages,
		DaysRegistered:      days,
		MessagesPerDay:      PerDay(messages, days),
	}
}

// PerDay returns count/days, or the raw count for accounts younger than a day.
func PerDay(count, days int) float64 {
	if days > 0 {
		return float64(count) / float64(days)
	}
	return float64(count)
}

// CacheEntry is the durable representation of a fetched snapshot.
type CacheEntry struct {
	Snapshot    Snapshot `json:"snapshot"`
	FetchedAtMs int64    `json:"fetched_at_ms"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.FetchedAtMs < ttl.Milliseconds()
}
