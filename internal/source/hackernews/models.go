package hackernews

// Item represents the Hacker News item endpoint response. URL is optional:
// Ask/Show posts carry no external link and fall back to the discussion page.
type Item struct {
	ID    int64   `json:"id"`
	By    string  `json:"by"`
	URL   *string `json:"url"`
	Score int     `json:"score"`
	Title string  `json:"title"`
	Time  int64   `json:"time"`
	Type  string  `json:"type"`
}
