// Package mail delivers rendered digests over a single authenticated
// STARTTLS SMTP session. One session serves the whole batch; the caller
// serializes sends on it (SMTP is sequential per connection).
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

// RecipientError marks a failure scoped to a single recipient: the server
// rejected the envelope or message with an SMTP reply, and the session is
// still usable for the next recipient.
type RecipientError struct {
	Recipient string
	Err       error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *RecipientError) Unwrap() error {
	return e.Err
}

// Config holds mail submission settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Client opens authenticated sessions to the submission server.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a mail client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "mail"),
	}
}

// Open dials the server in plaintext, negotiates STARTTLS, and
// authenticates. The returned session stays open until Close.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))

	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sc, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp greeting: %w", err)
	}

	if ok, _ := sc.Extension("STARTTLS"); !ok {
		sc.Close()
		return nil, fmt.Errorf("server %s does not support STARTTLS", c.cfg.Host)
	}

	tlsCfg := &tls.Config{
		ServerName: c.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if err := sc.StartTLS(tlsCfg); err != nil {
		sc.Close()
		return nil, fmt.Errorf("starttls: %w", err)
	}

	if err := sc.Auth(loginAuth(c.cfg.Username, c.cfg.Password)); err != nil {
		sc.Close()
		return nil, fmt.Errorf("authenticate as %s: %w", c.cfg.Username, err)
	}

	c.logger.Debug("mail session established", "server", addr, "user", c.cfg.Username)

	return &Session{
		client: sc,
		from:   c.cfg.From,
		logger: c.logger,
	}, nil
}

// Session is one authenticated SMTP connection. Not safe for concurrent use.
type Session struct {
	client *smtp.Client
	from   string
	logger *slog.Logger
}

// Send submits one message. An SMTP-level rejection comes back as a
// *RecipientError and leaves the session usable; any other error means the
// connection is gone and the caller must reopen.
func (s *Session) Send(to, subject, htmlBody string) error {
	if err := s.client.Mail(s.from); err != nil {
		return s.classify(to, "mail from", err)
	}
	if err := s.client.Rcpt(to); err != nil {
		// Clear the half-built envelope so the session can be reused.
		if _, ok := err.(*textproto.Error); ok {
			_ = s.client.Reset()
		}
		return s.classify(to, "rcpt to", err)
	}

	w, err := s.client.Data()
	if err != nil {
		// A rejected DATA leaves the accepted envelope open; clear it or
		// strict servers answer the next MAIL FROM with 503.
		if _, ok := err.(*textproto.Error); ok {
			_ = s.client.Reset()
		}
		return s.classify(to, "data", err)
	}
	if _, err := w.Write(buildMessage(s.from, to, subject, htmlBody)); err != nil {
		w.Close()
		return fmt.Errorf("write message to %s: %w", to, err)
	}
	if err := w.Close(); err != nil {
		return s.classify(to, "finish message", err)
	}

	return nil
}

// Close ends the session with QUIT. Safe to call on a dead connection.
func (s *Session) Close() error {
	return s.client.Quit()
}

func (s *Session) classify(to, op string, err error) error {
	if tpErr, ok := err.(*textproto.Error); ok {
		return &RecipientError{
			Recipient: to,
			Err:       fmt.Errorf("%s: server replied %d %s", op, tpErr.Code, tpErr.Msg),
		}
	}
	// Network-level failure: the session is dead.
	return fmt.Errorf("session lost during %s for %s: %w", op, to, err)
}

// buildMessage assembles headers and body with CRLF line endings.
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
