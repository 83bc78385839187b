package domain

import "time"

// Story is one entry of the ranked top-stories list. Stories live in memory
// for the duration of a single run and are never persisted.
type Story struct {
	ID          int64
	Rank        int // 1-based position after dropped items are compacted out
	By          string
	Title       string
	URL         string
	Score       int
	SubmittedAt time.Time
}
