package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hn_newsletter/internal/domain"
)

type SubscriberStore struct {
	db *sqlx.DB
}

func NewSubscriberStore(db *sqlx.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

type subscriberRow struct {
	Email string `db:"email"`
	Count int64  `db:"count"`
}

// ListAll reads every subscriber. The pipeline never writes; subscription
// management owns mutations. Counts outside 0..255 are clamped rather than
// failing the run on one bad row.
func (s *SubscriberStore) ListAll(ctx context.Context) ([]domain.Subscriber, error) {
	query := `SELECT email, count FROM subscribers ORDER BY email`

	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	subscribers := make([]domain.Subscriber, 0, len(rows))
	for _, row := range rows {
		subscribers = append(subscribers, domain.Subscriber{
			Email: row.Email,
			Count: clampCount(row.Count),
		})
	}

	return subscribers, nil
}

func clampCount(n int64) uint8 {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
