// Package render turns a story digest into an HTML email body by literal
// placeholder substitution. The template language is intentionally tiny:
// {PLACE:NAME} tokens, nothing else.
package render

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"hn_newsletter/internal/domain"
)

const (
	placeElement        = "{PLACE:ELEMENT}"
	placeUnsubscribeURL = "{PLACE:UNSUBSCRIBE_URL}"
	placeRecipient      = "{PLACE:RECIPIENT}"

	// Per-story line of the digest list.
	storyLine = `<li><a href="{PLACE:URL}">{PLACE:TITLE}</a><br>&emsp;by {PLACE:BY} | {PLACE:SCORE} points</li>`
)

// ErrMissingPlaceholder is returned when the template lacks a placeholder
// the renderer must substitute.
var ErrMissingPlaceholder = errors.New("template is missing a required placeholder")

// requiredPlaceholders must all be present; {PLACE:RECIPIENT} is optional.
var requiredPlaceholders = []string{placeElement, placeUnsubscribeURL}

// Renderer produces email bodies for one run. The template is validated at
// construction so a broken template fails the run before the first send.
type Renderer struct {
	template        string
	unsubscribeBase string
}

// New validates the template content and returns a ready Renderer.
func New(template, unsubscribeBase string) (*Renderer, error) {
	for _, p := range requiredPlaceholders {
		if !strings.Contains(template, p) {
			return nil, fmt.Errorf("%w: %s", ErrMissingPlaceholder, p)
		}
	}
	return &Renderer{
		template:        template,
		unsubscribeBase: unsubscribeBase,
	}, nil
}

// Render fills the template with the subscriber's digest and unsubscribe
// link. Deterministic: the same digest and recipient always produce the
// same bytes.
func (r *Renderer) Render(stories []domain.Story, recipient string) string {
	lines := make([]string, len(stories))
	for i, story := range stories {
		line := strings.ReplaceAll(storyLine, "{PLACE:URL}", story.URL)
		line = strings.ReplaceAll(line, "{PLACE:TITLE}", html.EscapeString(story.Title))
		line = strings.ReplaceAll(line, "{PLACE:BY}", html.EscapeString(story.By))
		line = strings.ReplaceAll(line, "{PLACE:SCORE}", fmt.Sprint(story.Score))
		lines[i] = line
	}

	// The unsubscribe link is the base with the encoded address appended,
	// nothing more. Anyone who knows an address can forge the link; that is
	// the upstream contract and is kept as-is.
	unsubscribe := r.unsubscribeBase + url.QueryEscape(recipient)

	body := strings.ReplaceAll(r.template, placeElement, strings.Join(lines, "\n"))
	body = strings.ReplaceAll(body, placeUnsubscribeURL, unsubscribe)
	body = strings.ReplaceAll(body, placeRecipient, html.EscapeString(recipient))

	return body
}
