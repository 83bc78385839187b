package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hn_newsletter/internal/domain"
)

const testTemplate = `<html><body>
<p>Hello {PLACE:RECIPIENT}</p>
<ul>{PLACE:ELEMENT}</ul>
<a href="{PLACE:UNSUBSCRIBE_URL}">Unsubscribe</a>
</body></html>`

func testStories() []domain.Story {
	return []domain.Story{
		{ID: 1, Rank: 1, By: "alice", Title: "First story", URL: "https://one.example.com", Score: 120},
		{ID: 2, Rank: 2, By: "bob", Title: "Second story", URL: "https://two.example.com", Score: 80},
	}
}

func TestNew_MissingElementPlaceholder(t *testing.T) {
	_, err := New(`<html>{PLACE:UNSUBSCRIBE_URL}</html>`, "https://x/u?e=")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
	assert.Contains(t, err.Error(), "{PLACE:ELEMENT}")
}

func TestNew_MissingUnsubscribePlaceholder(t *testing.T) {
	_, err := New(`<html>{PLACE:ELEMENT}</html>`, "https://x/u?e=")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPlaceholder)
}

func TestNew_RecipientPlaceholderOptional(t *testing.T) {
	_, err := New(`{PLACE:ELEMENT} {PLACE:UNSUBSCRIBE_URL}`, "https://x/u?e=")

	assert.NoError(t, err)
}

func TestRender_SubstitutesStories(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	body := r.Render(testStories(), "a@b.com")

	assert.Contains(t, body, `<a href="https://one.example.com">First story</a>`)
	assert.Contains(t, body, "by alice | 120 points")
	assert.Contains(t, body, `<a href="https://two.example.com">Second story</a>`)
	assert.Contains(t, body, "by bob | 80 points")
	assert.NotContains(t, body, "{PLACE:")
}

func TestRender_UnsubscribeLinkEncoding(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	body := r.Render(testStories(), "a@b.com")

	assert.Contains(t, body, `href="https://x/u?e=a%40b.com"`)
}

func TestRender_Idempotent(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	first := r.Render(testStories(), "a@b.com")
	second := r.Render(testStories(), "a@b.com")

	assert.Equal(t, first, second)
}

func TestRender_EscapesTitleAndAuthor(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	body := r.Render([]domain.Story{
		{Rank: 1, By: "mal<script>", Title: `Tags <b> & "quotes"`, URL: "https://x", Score: 1},
	}, "a@b.com")

	assert.Contains(t, body, "Tags &lt;b&gt; &amp; &#34;quotes&#34;")
	assert.Contains(t, body, "mal&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestRender_EmptyDigest(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	body := r.Render(nil, "a@b.com")

	assert.Contains(t, body, "<ul></ul>")
}

func TestRender_DistinctRecipientsGetDistinctLinks(t *testing.T) {
	r, err := New(testTemplate, "https://x/u?e=")
	require.NoError(t, err)

	bodyA := r.Render(testStories(), "a@x.com")
	bodyB := r.Render(testStories(), "b@x.com")

	assert.Contains(t, bodyA, "https://x/u?e=a%40x.com")
	assert.Contains(t, bodyB, "https://x/u?e=b%40x.com")
	assert.NotContains(t, bodyA, "b%40x.com")
}
