package hackernews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		Workers:        4,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, testLogger())
}

// itemsServer serves topstories.json from ids and item/{id}.json from
// bodies; ids missing from bodies get a 500.
func itemsServer(t *testing.T, ids string, bodies map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ids)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	})
	return httptest.NewServer(mux)
}

func TestTopStories_ResolvesInRankOrder(t *testing.T) {
	srv := itemsServer(t, `[11, 22, 33]`, map[string]string{
		"/item/11.json": `{"id":11,"by":"alice","title":"S1","url":"https://s1","score":100,"time":1700000000,"type":"story"}`,
		"/item/22.json": `{"id":22,"by":"bob","title":"S2","url":"https://s2","score":90,"time":1700000100,"type":"story"}`,
		"/item/33.json": `{"id":33,"by":"carol","title":"S3","url":"https://s3","score":80,"time":1700000200,"type":"story"}`,
	})
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, stories, 3)
	assert.Equal(t, "S1", stories[0].Title)
	assert.Equal(t, "S2", stories[1].Title)
	assert.Equal(t, "S3", stories[2].Title)
	assert.Equal(t, []int{1, 2, 3}, []int{stories[0].Rank, stories[1].Rank, stories[2].Rank})
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), stories[0].SubmittedAt)
}

func TestTopStories_TruncatesToLimit(t *testing.T) {
	srv := itemsServer(t, `[11, 22, 33]`, map[string]string{
		"/item/11.json": `{"id":11,"by":"alice","title":"S1","url":"https://s1","score":100,"time":1700000000,"type":"story"}`,
	})
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, int64(11), stories[0].ID)
}

func TestTopStories_DroppedItemShiftsRanks(t *testing.T) {
	// Item 22 fails; 33 must still appear, re-ranked to 2.
	srv := itemsServer(t, `[11, 22, 33]`, map[string]string{
		"/item/11.json": `{"id":11,"by":"alice","title":"S1","url":"https://s1","score":100,"time":1700000000,"type":"story"}`,
		"/item/33.json": `{"id":33,"by":"carol","title":"S3","url":"https://s3","score":80,"time":1700000200,"type":"story"}`,
	})
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "S1", stories[0].Title)
	assert.Equal(t, 1, stories[0].Rank)
	assert.Equal(t, "S3", stories[1].Title)
	assert.Equal(t, 2, stories[1].Rank)
}

func TestTopStories_NullItemDropped(t *testing.T) {
	srv := itemsServer(t, `[11, 22]`, map[string]string{
		"/item/11.json": `{"id":11,"by":"alice","title":"S1","url":"https://s1","score":100,"time":1700000000,"type":"story"}`,
		"/item/22.json": `null`,
	})
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, int64(11), stories[0].ID)
}

func TestTopStories_MissingURLFallsBackToDiscussionPage(t *testing.T) {
	srv := itemsServer(t, `[11]`, map[string]string{
		"/item/11.json": `{"id":11,"by":"alice","title":"Ask HN","score":50,"time":1700000000,"type":"story"}`,
	})
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "https://news.ycombinator.com/item?id=11", stories[0].URL)
}

func TestTopStories_MalformedList(t *testing.T) {
	srv := itemsServer(t, `{"not":"a list"}`, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).TopStories(context.Background(), 3)

	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTopStories_ListUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TopStories(context.Background(), 3)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTopStories_NonPositiveMaxAttemptsStillFetchesOnce(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{
		BaseURL:        srv.URL,
		Timeout:        2 * time.Second,
		Workers:        4,
		MaxAttempts:    -1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, testLogger())

	_, err := client.TopStories(context.Background(), 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, attempts)
}

func TestTopStories_ListRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[11]`)
	})
	mux.HandleFunc("/item/11.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":11,"by":"alice","title":"S1","url":"https://s1","score":100,"time":1700000000,"type":"story"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	stories, err := newTestClient(srv.URL).TopStories(context.Background(), 1)

	require.NoError(t, err)
	assert.Len(t, stories, 1)
	assert.Equal(t, 2, attempts)
}
