package domain

import (
	"fmt"
	"time"
)

// FetchResult is the outcome of a single remote page request: exactly one of
// *Page, *RateLimited or *FetchFailure.
type FetchResult interface {
	fetchResult()
}

// Page is a successfully fetched and resolved page. Records are ordered
// oldest-first.
type Page struct {
	Records     []ContentRecord
	NextCursor  string
	ResultCount int
}

// RateLimited signals a 429 from the remote API.
type RateLimited struct {
	ResetAt time.Time
}

// FetchFailure is any other failure: non-2xx status, transport or decode error.
type FetchFailure struct {
	StatusCode int
	Body       string
	Err        error
}

func (*Page) fetchResult()         {}
func (*RateLimited) fetchResult()  {}
func (*FetchFailure) fetchResult() {}

func (f *FetchFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fetch bookmarks: %v", f.Err)
	}
	return fmt.Sprintf("fetch bookmarks: unexpected status %d: %s", f.StatusCode, f.Body)
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// PageRequest describes one page to fetch.
type PageRequest struct {
	MaxResults int
	Cursor     string
}
