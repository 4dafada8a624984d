package model

import (
	"fmt"
	"time"
)

// VideoRecord is the normalized view of one upstream video item.
// Optional fields are nil when the upstream omitted them.
type VideoRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PublishedAt  time.Time `json:"published_at"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelTitle string    `json:"channel_title"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Duration     *Duration `json:"duration,omitempty"`
	ViewCount    *int64    `json:"view_count,omitempty"`
	LikeCount    *int64    `json:"like_count,omitempty"`
	CommentCount *int64    `json:"comment_count,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Duration is a video length split into its ISO-8601 time components.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// TotalSeconds returns the duration as a number of seconds.
func (d Duration) TotalSeconds() int {
	return d.Hours*3600 + d.Minutes*60 + d.Seconds
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.TotalSeconds()) * time.Second
}

// String renders H:MM:SS, or M:SS for videos shorter than an hour.
func (d Duration) String() string {
	total := d.TotalSeconds()
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
