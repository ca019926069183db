package x

// Response is the bookmarks endpoint payload.
type Response struct {
	Data     []Tweet    `json:"data"`
	Includes Includes   `json:"includes"`
	Meta     Meta       `json:"meta"`
	Errors   []APIError `json:"errors,omitempty"`
}

type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	AuthorID         string            `json:"author_id"`
	CreatedAt        string            `json:"created_at"`
	Entities         *Entities         `json:"entities,omitempty"`
	NoteTweet        *NoteTweet        `json:"note_tweet,omitempty"`
	Article          *Article          `json:"article,omitempty"`
	Attachments      *Attachments      `json:"attachments,omitempty"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets,omitempty"`
}

type Entities struct {
	URLs []URLEntity `json:"urls"`
}

type URLEntity struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	MediaKey    string `json:"media_key,omitempty"`
}

// NoteTweet carries the untruncated text of long posts.
type NoteTweet struct {
	Text     string    `json:"text"`
	Entities *Entities `json:"entities,omitempty"`
}

type Article struct {
	Title string `json:"title"`
}

type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

const (
	RefQuoted    = "quoted"
	RefRetweeted = "retweeted"
)

type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Includes struct {
	Users  []User  `json:"users"`
	Media  []Media `json:"media"`
	Tweets []Tweet `json:"tweets"`
}

type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

const (
	MediaTypePhoto       = "photo"
	MediaTypeVideo       = "video"
	MediaTypeAnimatedGIF = "animated_gif"
)

type Media struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Variants        []Variant `json:"variants"`
}

type Variant struct {
	BitRate     int    `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type Meta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// APIError is an entry of the top-level errors array. X reports partial
// failures there, for example a referenced entry that was deleted.
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}
