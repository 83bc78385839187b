package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"hn_newsletter/internal/digest"
	"hn_newsletter/internal/domain"
	"hn_newsletter/internal/mail"
)

// Config holds the delivery policy knobs of a run.
type Config struct {
	Subject   string
	SendEmpty bool
}

// RunService drives one digest run: load subscribers, fetch the ranked
// story list once, then select, render, and send per subscriber. Failures
// of a single recipient never stop the batch; only subscriber load, story
// fetch, and a session that cannot be established at all are fatal.
type RunService struct {
	store     SubscriberStore
	source    StorySource
	renderer  Renderer
	mailer    Mailer
	publisher ReportPublisher
	logger    *slog.Logger
	config    Config
}

func NewRunService(
	store SubscriberStore,
	source StorySource,
	renderer Renderer,
	mailer Mailer,
	publisher ReportPublisher,
	logger *slog.Logger,
	cfg Config,
) *RunService {
	return &RunService{
		store:     store,
		source:    source,
		renderer:  renderer,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		config:    cfg,
	}
}

func (s *RunService) Run(ctx context.Context) (*domain.RunReport, error) {
	startTime := time.Now()
	report := &domain.RunReport{StartedAt: startTime.UTC()}

	subscribers, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	report.Subscribers = len(subscribers)

	if len(subscribers) == 0 {
		s.logger.Info("no subscribers, nothing to send")
		return s.finalize(ctx, report, startTime), nil
	}

	// One fetch pass covers everybody: the largest requested count bounds
	// the list.
	limit := int(lo.Max(lo.Map(subscribers, func(sub domain.Subscriber, _ int) uint8 {
		return sub.Count
	})))

	var stories []domain.Story
	if limit > 0 {
		stories, err = s.source.TopStories(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("fetch top stories: %w", err)
		}
		report.Stories = len(stories)
	}

	s.logger.Info("starting delivery",
		"source_name", s.source.Name(),
		"subscribers", len(subscribers),
		"stories", len(stories),
		"limit", limit,
	)

	// The session is opened lazily: an all-empty run never touches the
	// mail server.
	var session MailSession
	defer func() {
		if session != nil {
			_ = session.Close()
		}
	}()

sendLoop:
	for i, sub := range subscribers {
		selection := digest.Select(stories, int(sub.Count))
		if len(selection) == 0 && !s.config.SendEmpty {
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusSkipped,
			})
			continue
		}

		if session == nil {
			session, err = s.mailer.Open(ctx)
			if err != nil {
				// Open may hand back a typed-nil session alongside the
				// error; clear it so the deferred close never runs on a
				// session that was never established.
				session = nil
				return report, fmt.Errorf("open mail session: %w", err)
			}
		}

		body := s.renderer.Render(selection, sub.Email)

		sendErr := session.Send(sub.Email, s.config.Subject, body)
		if sendErr == nil {
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusSent,
			})
			continue
		}

		var rcptErr *mail.RecipientError
		if errors.As(sendErr, &rcptErr) {
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusFailed,
				Error:  sendErr.Error(),
			})
			continue
		}

		// The session died mid-batch. One reconnect, then replay starting
		// with the recipient whose send detected the drop.
		s.logger.Warn("mail session lost, reconnecting", "error", sendErr)
		_ = session.Close()
		session, err = s.mailer.Open(ctx)
		if err != nil {
			session = nil
			s.failRemaining(report, subscribers[i:], stories,
				"mail session lost and reconnect failed: "+err.Error())
			break
		}

		sendErr = session.Send(sub.Email, s.config.Subject, body)
		switch {
		case sendErr == nil:
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusSent,
			})
		case errors.As(sendErr, &rcptErr):
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusFailed,
				Error:  sendErr.Error(),
			})
		default:
			// Two session losses without a delivered message in between:
			// give up on the rest of the batch, but report every
			// untried recipient.
			s.failRemaining(report, subscribers[i:], stories,
				"mail session lost again after reconnect: "+sendErr.Error())
			break sendLoop
		}
	}

	return s.finalize(ctx, report, startTime), nil
}

func (s *RunService) record(report *domain.RunReport, result domain.DeliveryResult) {
	report.Results = append(report.Results, result)
	switch result.Status {
	case domain.StatusSent:
		report.Sent++
	case domain.StatusFailed:
		report.Failed++
	case domain.StatusSkipped:
		report.Skipped++
	}
}

// failRemaining accounts for every subscriber not yet attempted after the
// batch aborts. Subscribers whose digest would have been empty are still
// recorded as skipped; nobody is silently dropped.
func (s *RunService) failRemaining(report *domain.RunReport, remaining []domain.Subscriber, stories []domain.Story, reason string) {
	for _, sub := range remaining {
		if len(digest.Select(stories, int(sub.Count))) == 0 && !s.config.SendEmpty {
			s.record(report, domain.DeliveryResult{
				Email:  sub.Email,
				Status: domain.StatusSkipped,
			})
			continue
		}
		s.record(report, domain.DeliveryResult{
			Email:  sub.Email,
			Status: domain.StatusFailed,
			Error:  reason,
		})
	}
}

func (s *RunService) finalize(ctx context.Context, report *domain.RunReport, startTime time.Time) *domain.RunReport {
	report.Duration = time.Since(startTime)

	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, report); err != nil {
			s.logger.Warn("failed to publish run report", "error", err)
		}
	}

	s.logger.Info("run completed",
		"subscribers", report.Subscribers,
		"stories", report.Stories,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)

	return report
}
