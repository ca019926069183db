package domain

import "time"

// ContentSourceXBookmark identifies records mirrored from X bookmarks.
const ContentSourceXBookmark = "x_bookmark"

type ContentKind string

const (
	ContentKindPost    ContentKind = "post"
	ContentKindArticle ContentKind = "article"
)

type MediaKind string

const (
	MediaKindAvatar        MediaKind = "avatar"
	MediaKindPhoto         MediaKind = "photo"
	MediaKindVideo         MediaKind = "video"
	MediaKindAnimatedGIF   MediaKind = "animated_gif"
	MediaKindQuoteAvatar   MediaKind = "quote_avatar"
	MediaKindQuotePhoto    MediaKind = "quote_photo"
	MediaKindQuoteVideo    MediaKind = "quote_video"
	MediaKindQuoteAnimated MediaKind = "quote_animated_gif"
)

type Media struct {
	Kind     MediaKind `json:"kind"`
	URL      string    `json:"url"`
	VideoURL *string   `json:"video_url,omitempty"`
}

// ContentRecord is the normalized, persisted form of one remote entry.
type ContentRecord struct {
	ID                string
	OwnerAccountID    string
	Source            string
	URL               string // unique across the store
	Kind              ContentKind
	Title             string
	Body              string
	AuthorHandle      string
	Media             []Media
	OriginalCreatedAt time.Time
	CreatedAt         time.Time
}

// ClassificationItem is what the downstream classifier receives for each newly
// inserted record.
type ClassificationItem struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Kind  ContentKind `json:"kind"`
}

func NewClassificationItems(records []ContentRecord) []ClassificationItem {
	items := make([]ClassificationItem, 0, len(records))
	for _, r := range records {
		items = append(items, ClassificationItem{
			ID:    r.ID,
			Title: r.Title,
			Body:  r.Body,
			Kind:  r.Kind,
		})
	}
	return items
}

// Credential is a usable bearer token for a linked remote account.
type Credential struct {
	AccountID       string
	AccessToken     string
	RemoteAccountID string
}
