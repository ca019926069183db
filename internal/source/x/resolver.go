package x

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"bookmark_sync/internal/domain"
)

const (
	unknownHandle  = "unknown"
	maxTitleLength = 120
)

// sideTables indexes a page's includes once so each entry can look up its
// author, media and referenced entries by id.
type sideTables struct {
	users  map[string]User
	media  map[string]Media
	tweets map[string]Tweet
}

func newSideTables(inc Includes) sideTables {
	t := sideTables{
		users:  make(map[string]User, len(inc.Users)),
		media:  make(map[string]Media, len(inc.Media)),
		tweets: make(map[string]Tweet, len(inc.Tweets)),
	}
	for _, u := range inc.Users {
		t.users[u.ID] = u
	}
	for _, m := range inc.Media {
		t.media[m.MediaKey] = m
	}
	for _, tw := range inc.Tweets {
		t.tweets[tw.ID] = tw
	}
	return t
}

// handle returns the author's username, or "unknown" when the page does not
// include the author.
func (t sideTables) handle(authorID string) string {
	if u, ok := t.users[authorID]; ok && u.Username != "" {
		return u.Username
	}
	return unknownHandle
}

// Resolve turns one raw page into normalized records, oldest-first. The
// remote API delivers newest-first.
func Resolve(resp Response, ownerAccountID string) []domain.ContentRecord {
	tables := newSideTables(resp.Includes)

	records := make([]domain.ContentRecord, 0, len(resp.Data))
	for i := len(resp.Data) - 1; i >= 0; i-- {
		records = append(records, tables.resolve(resp.Data[i], ownerAccountID))
	}
	return records
}

// StatusURL is the canonical URL of an entry. It does not carry the author
// handle, so a renamed or unresolved author still maps to the same record.
func StatusURL(id string) string {
	return "https://x.com/i/status/" + id
}

func (t sideTables) resolve(tw Tweet, ownerAccountID string) domain.ContentRecord {
	handle := t.handle(tw.AuthorID)
	text, entities := tw.fullText()

	record := domain.ContentRecord{
		OwnerAccountID:    ownerAccountID,
		Source:            domain.ContentSourceXBookmark,
		URL:               StatusURL(tw.ID),
		Kind:              domain.ContentKindPost,
		AuthorHandle:      handle,
		Body:              t.expandLinks(text, entities, tw),
		Media:             t.resolveMedia(tw, false),
		OriginalCreatedAt: parseCreatedAt(tw.CreatedAt),
	}

	if title, ok := articleTitle(tw, entities); ok {
		record.Kind = domain.ContentKindArticle
		record.Title = title
		if record.Title == "" {
			record.Title = firstLine(record.Body)
		}
	}

	if ref, ok := tw.quoteOrRepost(); ok {
		if referenced, ok := t.tweets[ref.ID]; ok {
			record.Body += t.quoteFragment(ref.Type, referenced)
			record.Media = append(record.Media, t.resolveMedia(referenced, true)...)
		}
	}

	return record
}

// expandLinks replaces shortened links with their destinations and drops the
// ones that point at the entry itself or at its own media. Entities are
// applied by their code point offsets, last first, so earlier offsets stay
// valid. Entities whose offsets do not match the text are replaced as whole
// tokens instead.
func (t sideTables) expandLinks(text string, entities []URLEntity, tw Tweet) string {
	mediaURLs := t.mediaURLs(tw)

	ordered := slices.Clone(entities)
	slices.SortStableFunc(ordered, func(a, b URLEntity) int { return b.Start - a.Start })

	runes := []rune(text)
	var unplaced []URLEntity
	for _, e := range ordered {
		if e.URL == "" {
			continue
		}
		if e.Start < 0 || e.End > len(runes) || e.Start >= e.End || string(runes[e.Start:e.End]) != e.URL {
			unplaced = append(unplaced, e)
			continue
		}
		replacement := []rune(linkReplacement(e, tw, mediaURLs))
		runes = slices.Concat(runes[:e.Start], replacement, runes[e.End:])
	}

	text = string(runes)
	slices.SortStableFunc(unplaced, func(a, b URLEntity) int { return len(b.URL) - len(a.URL) })
	for _, e := range unplaced {
		text = replaceToken(text, e.URL, linkReplacement(e, tw, mediaURLs))
	}

	return strings.TrimSpace(text)
}

func linkReplacement(e URLEntity, tw Tweet, mediaURLs map[string]bool) string {
	replacement := e.ExpandedURL
	if replacement == "" {
		replacement = e.URL
	}
	if e.MediaKey != "" || pointsAtEntry(replacement, tw.ID) || mediaURLs[normalizeURL(replacement)] {
		return ""
	}
	return replacement
}

// replaceToken replaces occurrences of link that are not followed by another
// letter or digit, so a link never rewrites a longer one it is a prefix of.
func replaceToken(text, link, replacement string) string {
	var b strings.Builder
	for {
		idx := strings.Index(text, link)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := idx + len(link)
		b.WriteString(text[:idx])
		if end < len(text) && continuesLink(rune(text[end])) {
			b.WriteString(link)
		} else {
			b.WriteString(replacement)
		}
		text = text[end:]
	}
}

func continuesLink(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (t sideTables) mediaURLs(tw Tweet) map[string]bool {
	urls := make(map[string]bool)
	if tw.Attachments == nil {
		return urls
	}
	for _, key := range tw.Attachments.MediaKeys {
		m, ok := t.media[key]
		if !ok {
			continue
		}
		for _, u := range []string{m.URL, m.PreviewImageURL} {
			if u != "" {
				urls[normalizeURL(u)] = true
			}
		}
		for _, v := range m.Variants {
			urls[normalizeURL(v.URL)] = true
		}
	}
	return urls
}

// resolveMedia lists the author's avatar followed by the entry's attachments.
// quoted selects the quote_ kinds used for a referenced entry.
func (t sideTables) resolveMedia(tw Tweet, quoted bool) []domain.Media {
	var out []domain.Media

	if u, ok := t.users[tw.AuthorID]; ok && u.ProfileImageURL != "" {
		out = append(out, domain.Media{
			Kind: mediaKind(domain.MediaKindAvatar, quoted),
			URL:  u.ProfileImageURL,
		})
	}

	if tw.Attachments == nil {
		return out
	}

	for _, key := range tw.Attachments.MediaKeys {
		m, ok := t.media[key]
		if !ok {
			continue
		}

		switch m.Type {
		case MediaTypePhoto:
			if m.URL == "" {
				continue
			}
			out = append(out, domain.Media{
				Kind: mediaKind(domain.MediaKindPhoto, quoted),
				URL:  m.URL,
			})
		case MediaTypeVideo, MediaTypeAnimatedGIF:
			kind := domain.MediaKindVideo
			if m.Type == MediaTypeAnimatedGIF {
				kind = domain.MediaKindAnimatedGIF
			}
			item := domain.Media{Kind: mediaKind(kind, quoted), URL: m.PreviewImageURL}
			if v, ok := bestVariant(m.Variants); ok {
				videoURL := v.URL
				item.VideoURL = &videoURL
			}
			if item.URL == "" {
				if item.VideoURL == nil {
					continue
				}
				item.URL = *item.VideoURL
			}
			out = append(out, item)
		}
	}

	return out
}

func (t sideTables) quoteFragment(refType string, referenced Tweet) string {
	label := "Quote"
	if refType == RefRetweeted {
		label = "Repost"
	}

	handle := t.handle(referenced.AuthorID)
	text, entities := referenced.fullText()
	body := t.expandLinks(text, entities, referenced)

	return fmt.Sprintf("\n\n> %s from %s(%s)\n%s", label, handle, StatusURL(referenced.ID), blockquote(body))
}

// bestVariant picks the highest-bitrate mp4, falling back to any other
// streamable variant.
func bestVariant(variants []Variant) (Variant, bool) {
	var (
		best     Variant
		found    bool
		fallback Variant
	)
	for _, v := range variants {
		if v.URL == "" {
			continue
		}
		if v.ContentType != "video/mp4" {
			if fallback.URL == "" {
				fallback = v
			}
			continue
		}
		if !found || v.BitRate > best.BitRate {
			best = v
			found = true
		}
	}
	if found {
		return best, true
	}
	return fallback, fallback.URL != ""
}

func (tw Tweet) fullText() (string, []URLEntity) {
	if tw.NoteTweet != nil && tw.NoteTweet.Text != "" {
		entities := tw.NoteTweet.Entities
		if entities == nil {
			entities = tw.Entities
		}
		return tw.NoteTweet.Text, urlEntities(entities)
	}
	return tw.Text, urlEntities(tw.Entities)
}

func (tw Tweet) quoteOrRepost() (ReferencedTweet, bool) {
	for _, ref := range tw.ReferencedTweets {
		if ref.Type == RefQuoted || ref.Type == RefRetweeted {
			return ref, true
		}
	}
	return ReferencedTweet{}, false
}

func articleTitle(tw Tweet, entities []URLEntity) (string, bool) {
	if tw.Article != nil {
		return tw.Article.Title, true
	}
	for _, e := range entities {
		if strings.Contains(normalizeURL(e.ExpandedURL), "x.com/i/article/") {
			return "", true
		}
	}
	return "", false
}

func urlEntities(e *Entities) []URLEntity {
	if e == nil {
		return nil
	}
	return e.URLs
}

// pointsAtEntry reports whether raw links to the entry with the given id,
// including its /photo/N and /video/N sub-pages.
func pointsAtEntry(raw, id string) bool {
	n := normalizeURL(raw)
	if !strings.HasPrefix(n, "x.com/") {
		return false
	}
	marker := "/status/" + id
	idx := strings.Index(n, marker)
	if idx < 0 {
		return false
	}
	rest := n[idx+len(marker):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// normalizeURL reduces a URL to lower-case host+path with twitter.com folded
// into x.com, so links can be compared regardless of scheme or host alias.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")
	if host == "twitter.com" {
		host = "x.com"
	}
	return host + strings.ToLower(strings.TrimSuffix(u.Path, "/"))
}

func mediaKind(kind domain.MediaKind, quoted bool) domain.MediaKind {
	if !quoted {
		return kind
	}
	switch kind {
	case domain.MediaKindAvatar:
		return domain.MediaKindQuoteAvatar
	case domain.MediaKindPhoto:
		return domain.MediaKindQuotePhoto
	case domain.MediaKindVideo:
		return domain.MediaKindQuoteVideo
	case domain.MediaKindAnimatedGIF:
		return domain.MediaKindQuoteAnimated
	}
	return kind
}

func blockquote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	runes := []rune(strings.TrimSpace(line))
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength])
	}
	return string(runes)
}

func parseCreatedAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
