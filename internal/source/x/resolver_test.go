package x

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmark_sync/internal/domain"
)

func TestResolve_OldestFirst(t *testing.T) {
	resp := Response{
		Data: []Tweet{
			{ID: "2", Text: "newer", AuthorID: "u1", CreatedAt: "2025-02-01T10:00:00.000Z"},
			{ID: "1", Text: "older", AuthorID: "u1", CreatedAt: "2025-01-01T10:00:00.000Z"},
		},
		Includes: Includes{Users: []User{{ID: "u1", Username: "alice"}}},
	}

	records := Resolve(resp, "acc-1")

	require.Len(t, records, 2)
	assert.Equal(t, "https://x.com/i/status/1", records[0].URL)
	assert.Equal(t, "https://x.com/i/status/2", records[1].URL)
	assert.Equal(t, "acc-1", records[0].OwnerAccountID)
	assert.Equal(t, domain.ContentSourceXBookmark, records[0].Source)
	assert.Equal(t, domain.ContentKindPost, records[0].Kind)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), records[0].OriginalCreatedAt)
}

func TestResolve_UnknownAuthor(t *testing.T) {
	records := Resolve(Response{Data: []Tweet{{ID: "7", Text: "hi", AuthorID: "missing"}}}, "acc-1")

	require.Len(t, records, 1)
	assert.Equal(t, "unknown", records[0].AuthorHandle)
	assert.Equal(t, "https://x.com/i/status/7", records[0].URL)
	assert.True(t, records[0].OriginalCreatedAt.IsZero())
	assert.Empty(t, records[0].Media)
}

func TestResolve_ExpandsAndStripsLinks(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "100",
			Text:     "Read https://t.co/ext and https://t.co/own https://t.co/pic",
			AuthorID: "u1",
			Entities: &Entities{URLs: []URLEntity{
				{URL: "https://t.co/ext", ExpandedURL: "https://example.com/post"},
				{URL: "https://t.co/own", ExpandedURL: "https://twitter.com/alice/status/100/photo/1"},
				{URL: "https://t.co/pic", ExpandedURL: "https://x.com/alice/status/100/photo/1", MediaKey: "m1"},
			}},
		}},
		Includes: Includes{Users: []User{{ID: "u1", Username: "alice"}}},
	}

	records := Resolve(resp, "acc-1")

	require.Len(t, records, 1)
	assert.Equal(t, "Read https://example.com/post and", records[0].Body)
}

func TestResolve_URLIndependentOfHandle(t *testing.T) {
	entry := Tweet{ID: "42", Text: "same entry", AuthorID: "u1"}

	before := Resolve(Response{Data: []Tweet{entry}, Includes: Includes{Users: []User{{ID: "u1", Username: "alice"}}}}, "acc-1")
	renamed := Resolve(Response{Data: []Tweet{entry}, Includes: Includes{Users: []User{{ID: "u1", Username: "alice_new"}}}}, "acc-1")
	missing := Resolve(Response{Data: []Tweet{entry}}, "acc-1")

	assert.Equal(t, "https://x.com/i/status/42", before[0].URL)
	assert.Equal(t, before[0].URL, renamed[0].URL)
	assert.Equal(t, before[0].URL, missing[0].URL)
	assert.Equal(t, "alice_new", renamed[0].AuthorHandle)
}

func TestResolve_ExpandsLinkByOffsets(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "100",
			Text:     "a https://t.co/abc b https://t.co/abcd",
			AuthorID: "u1",
			Entities: &Entities{URLs: []URLEntity{
				{Start: 2, End: 18, URL: "https://t.co/abc", ExpandedURL: "https://one.example"},
				{Start: 21, End: 38, URL: "https://t.co/abcd", ExpandedURL: "https://two.example"},
			}},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "a https://one.example b https://two.example", records[0].Body)
}

func TestResolve_ExpandsPrefixLinksWithoutOffsets(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "100",
			Text:     "a https://t.co/abc b https://t.co/abcd",
			AuthorID: "u1",
			Entities: &Entities{URLs: []URLEntity{
				{URL: "https://t.co/abc", ExpandedURL: "https://one.example"},
				{URL: "https://t.co/abcd", ExpandedURL: "https://two.example"},
			}},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "a https://one.example b https://two.example", records[0].Body)
}

func TestResolve_OffsetsCountCodePoints(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "100",
			Text:     "café → https://t.co/x end",
			AuthorID: "u1",
			Entities: &Entities{URLs: []URLEntity{
				{Start: 7, End: 21, URL: "https://t.co/x", ExpandedURL: "https://example.com/x"},
			}},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "café → https://example.com/x end", records[0].Body)
}

func TestResolve_KeepsLinksToOtherEntries(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "100",
			Text:     "see https://t.co/other",
			AuthorID: "u1",
			Entities: &Entities{URLs: []URLEntity{
				{URL: "https://t.co/other", ExpandedURL: "https://x.com/bob/status/1000"},
			}},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "see https://x.com/bob/status/1000", records[0].Body)
}

func TestResolve_PrefersNoteTweet(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:       "5",
			Text:     "truncated…",
			AuthorID: "u1",
			NoteTweet: &NoteTweet{
				Text: "the whole long post https://t.co/n",
				Entities: &Entities{URLs: []URLEntity{
					{URL: "https://t.co/n", ExpandedURL: "https://example.com/n"},
				}},
			},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "the whole long post https://example.com/n", records[0].Body)
}

func TestResolve_Media(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:          "1",
			Text:        "clip",
			AuthorID:    "u1",
			Attachments: &Attachments{MediaKeys: []string{"p1", "v1", "g1", "missing"}},
		}},
		Includes: Includes{
			Users: []User{{ID: "u1", Username: "alice", ProfileImageURL: "https://pbs.twimg.com/profile/a.jpg"}},
			Media: []Media{
				{MediaKey: "p1", Type: MediaTypePhoto, URL: "https://pbs.twimg.com/media/p1.jpg"},
				{MediaKey: "v1", Type: MediaTypeVideo, PreviewImageURL: "https://pbs.twimg.com/thumb/v1.jpg", Variants: []Variant{
					{BitRate: 256000, ContentType: "video/mp4", URL: "https://video.twimg.com/v1-low.mp4"},
					{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/v1.m3u8"},
					{BitRate: 2176000, ContentType: "video/mp4", URL: "https://video.twimg.com/v1-high.mp4"},
				}},
				{MediaKey: "g1", Type: MediaTypeAnimatedGIF, PreviewImageURL: "https://pbs.twimg.com/thumb/g1.jpg", Variants: []Variant{
					{ContentType: "video/mp4", URL: "https://video.twimg.com/g1.mp4"},
				}},
			},
		},
	}

	records := Resolve(resp, "acc-1")

	require.Len(t, records, 1)
	media := records[0].Media
	require.Len(t, media, 4)

	assert.Equal(t, domain.Media{Kind: domain.MediaKindAvatar, URL: "https://pbs.twimg.com/profile/a.jpg"}, media[0])
	assert.Equal(t, domain.Media{Kind: domain.MediaKindPhoto, URL: "https://pbs.twimg.com/media/p1.jpg"}, media[1])

	assert.Equal(t, domain.MediaKindVideo, media[2].Kind)
	assert.Equal(t, "https://pbs.twimg.com/thumb/v1.jpg", media[2].URL)
	require.NotNil(t, media[2].VideoURL)
	assert.Equal(t, "https://video.twimg.com/v1-high.mp4", *media[2].VideoURL)

	assert.Equal(t, domain.MediaKindAnimatedGIF, media[3].Kind)
	require.NotNil(t, media[3].VideoURL)
	assert.Equal(t, "https://video.twimg.com/g1.mp4", *media[3].VideoURL)
}

func TestResolve_QuotedVideoKinds(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:               "100",
			Text:             "look",
			AuthorID:         "u1",
			ReferencedTweets: []ReferencedTweet{{Type: RefQuoted, ID: "200"}},
		}},
		Includes: Includes{
			Media: []Media{
				{MediaKey: "v", Type: MediaTypeVideo, PreviewImageURL: "https://pbs.twimg.com/thumb/v.jpg"},
				{MediaKey: "g", Type: MediaTypeAnimatedGIF, PreviewImageURL: "https://pbs.twimg.com/thumb/g.jpg"},
			},
			Tweets: []Tweet{{
				ID:          "200",
				Text:        "clips",
				AuthorID:    "u2",
				Attachments: &Attachments{MediaKeys: []string{"v", "g"}},
			}},
		},
	}

	records := Resolve(resp, "acc-1")

	require.Len(t, records[0].Media, 2)
	assert.Equal(t, domain.MediaKindQuoteVideo, records[0].Media[0].Kind)
	assert.Equal(t, domain.MediaKindQuoteAnimated, records[0].Media[1].Kind)
}

func TestResolve_QuoteFragment(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:               "100",
			Text:             "my take",
			AuthorID:         "u1",
			ReferencedTweets: []ReferencedTweet{{Type: RefQuoted, ID: "200"}},
		}},
		Includes: Includes{
			Users: []User{
				{ID: "u1", Username: "alice"},
				{ID: "u2", Username: "bob", ProfileImageURL: "https://pbs.twimg.com/profile/b.jpg"},
			},
			Media: []Media{{MediaKey: "bp", Type: MediaTypePhoto, URL: "https://pbs.twimg.com/media/bp.jpg"}},
			Tweets: []Tweet{{
				ID:          "200",
				Text:        "hello\nworld",
				AuthorID:    "u2",
				Attachments: &Attachments{MediaKeys: []string{"bp"}},
			}},
		},
	}

	records := Resolve(resp, "acc-1")

	require.Len(t, records, 1)
	assert.Equal(t, "my take\n\n> Quote from bob(https://x.com/i/status/200)\n> hello\n> world", records[0].Body)
	assert.Equal(t, []domain.Media{
		{Kind: domain.MediaKindQuoteAvatar, URL: "https://pbs.twimg.com/profile/b.jpg"},
		{Kind: domain.MediaKindQuotePhoto, URL: "https://pbs.twimg.com/media/bp.jpg"},
	}, records[0].Media)
}

func TestResolve_RepostFragment(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:               "100",
			Text:             "RT",
			AuthorID:         "u1",
			ReferencedTweets: []ReferencedTweet{{Type: RefRetweeted, ID: "300"}},
		}},
		Includes: Includes{
			Tweets: []Tweet{{ID: "300", Text: "original", AuthorID: "u3"}},
		},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "RT\n\n> Repost from unknown(https://x.com/i/status/300)\n> original", records[0].Body)
}

func TestResolve_MissingReferencedEntrySkipped(t *testing.T) {
	resp := Response{
		Data: []Tweet{{
			ID:               "100",
			Text:             "quoting something gone",
			AuthorID:         "u1",
			ReferencedTweets: []ReferencedTweet{{Type: RefQuoted, ID: "404"}},
		}},
	}

	records := Resolve(resp, "acc-1")

	assert.Equal(t, "quoting something gone", records[0].Body)
}

func TestResolve_Articles(t *testing.T) {
	tests := []struct {
		name      string
		tweet     Tweet
		wantKind  domain.ContentKind
		wantTitle string
	}{
		{
			name:      "article metadata",
			tweet:     Tweet{ID: "1", Text: "intro", Article: &Article{Title: "Deep dive"}},
			wantKind:  domain.ContentKindArticle,
			wantTitle: "Deep dive",
		},
		{
			name: "article link",
			tweet: Tweet{
				ID:   "2",
				Text: "Why queues matter\nmore text https://t.co/art",
				Entities: &Entities{URLs: []URLEntity{
					{URL: "https://t.co/art", ExpandedURL: "https://x.com/i/article/555"},
				}},
			},
			wantKind:  domain.ContentKindArticle,
			wantTitle: "Why queues matter",
		},
		{
			name:     "plain post",
			tweet:    Tweet{ID: "3", Text: "just a post"},
			wantKind: domain.ContentKindPost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := Resolve(Response{Data: []Tweet{tt.tweet}}, "acc-1")

			require.Len(t, records, 1)
			assert.Equal(t, tt.wantKind, records[0].Kind)
			assert.Equal(t, tt.wantTitle, records[0].Title)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"https://twitter.com/Alice/status/1/":   "x.com/alice/status/1",
		"http://www.x.com/alice/status/1":       "x.com/alice/status/1",
		"https://mobile.twitter.com/a/status/2": "x.com/a/status/2",
		"https://example.com/Path":              "example.com/path",
	}

	for in, want := range tests {
		assert.Equal(t, want, normalizeURL(in), in)
	}
}

func TestBestVariant_FallsBackToStream(t *testing.T) {
	v, ok := bestVariant([]Variant{{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/a.m3u8"}})

	require.True(t, ok)
	assert.Equal(t, "https://video.twimg.com/a.m3u8", v.URL)

	_, ok = bestVariant(nil)
	assert.False(t, ok)
}
