package dto

import (
	"time"

	"yt-fetcher/domain/model"
)

// SearchRequest carries the upstream search.list parameters. The url tags define the
// canonical form used for cache fingerprints.
type SearchRequest struct {
	Q               string `url:"q,omitempty" json:"q,omitempty"`
	ChannelID       string `url:"channelId,omitempty" json:"channel_id,omitempty"`
	Order           string `url:"order,omitempty" json:"order,omitempty"` // date, rating, relevance, title, viewCount
	MaxResults      int64  `url:"maxResults,omitempty" json:"max_results,omitempty"`
	PublishedAfter  string `url:"publishedAfter,omitempty" json:"published_after,omitempty"`
	PublishedBefore string `url:"publishedBefore,omitempty" json:"published_before,omitempty"`
}

// VideosRequest is the canonical form of one videos.list batch.
type VideosRequest struct {
	IDs  []string `url:"id,comma"`
	Part string   `url:"part"`
}

// DateRange bounds a channel listing by publishing time. Zero ends are open.
type DateRange struct {
	After  time.Time `json:"after"`
	Before time.Time `json:"before"`
}

// LastHours returns the range ending now and starting h hours ago.
func LastHours(now time.Time, h time.Duration) DateRange {
	return DateRange{After: now.Add(-h), Before: now}
}

// PublishedAfter formats the lower bound the way the upstream expects it.
func (r DateRange) PublishedAfter() string {
	if r.After.IsZero() {
		return ""
	}
	return r.After.UTC().Format(time.RFC3339)
}

// PublishedBefore formats the upper bound the way the upstream expects it.
func (r DateRange) PublishedBefore() string {
	if r.Before.IsZero() {
		return ""
	}
	return r.Before.UTC().Format(time.RFC3339)
}

// Page is one upstream page of results.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// PageResult is the outcome of a full page walk.
type PageResult[T any] struct {
	Items     []T
	Pages     int
	Truncated bool
	// Reason wraps apperror.ErrPaginationTruncated when Truncated is set.
	Reason error
}

// BatchResult is the outcome of a chunked bulk lookup. Items are in chunk completion order.
type BatchResult[T any] struct {
	Items     []T
	Chunks    int
	Completed int
	Truncated bool
}

// VideoList is what the public client returns for listing calls.
type VideoList struct {
	Items     []model.VideoRecord `json:"items"`
	Truncated bool                `json:"truncated"`
}
