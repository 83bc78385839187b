package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"hn_newsletter/internal/domain"
)

type SubscriberStore interface {
	ListAll(ctx context.Context) ([]domain.Subscriber, error)
}

type StorySource interface {
	ID() string
	Name() string
	TopStories(ctx context.Context, limit int) ([]domain.Story, error)
}

type Renderer interface {
	Render(stories []domain.Story, recipient string) string
}

// MailSession is one open, authenticated submission connection. Sends are
// serialized on it by the run service.
type MailSession interface {
	Send(to, subject, htmlBody string) error
	Close() error
}

type Mailer interface {
	Open(ctx context.Context) (MailSession, error)
}

type ReportPublisher interface {
	PublishReport(ctx context.Context, report *domain.RunReport) error
}
