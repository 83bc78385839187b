// Package digest selects a subscriber's personal slice of the ranked
// story list.
package digest

import "hn_newsletter/internal/domain"

// Select returns the first min(count, len(stories)) stories. The input is
// already ordered by rank, so the front of the list is the digest. Safe on
// under-supply and on zero or negative counts.
func Select(stories []domain.Story, count int) []domain.Story {
	if count <= 0 || len(stories) == 0 {
		return nil
	}
	if count > len(stories) {
		count = len(stories)
	}
	return stories[:count]
}
