package domain

import "time"

// Engagement holds the interaction counters observed on a post.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Retweets int64 `json:"retweets"`
	Replies  int64 `json:"replies"`
}

// Post is a social-media post handed to the analyzer. Immutable once received.
type Post struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"`
	URL        string     `json:"url,omitempty"`
	Content    string     `json:"content"`
	Engagement Engagement `json:"engagement"`
	MediaURLs  []string   `json:"media_urls,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
}

// ImageAnalysis is the optional description of the first media attachment,
// produced by an external vision model.
type ImageAnalysis struct {
	Description     string `json:"description"`
	MemecoinContext string `json:"memecoin_context"`
}
