package youtube

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/api/youtube/v3"

	"yt-fetcher/domain/model"
	"yt-fetcher/infrastructure/duration"
	"yt-fetcher/infrastructure/logger"
)

type videoListResponse struct {
	Items []*VideoItem `json:"items"`
}

// VideoItem is one videos.list item with the parts this client requests.
type VideoItem struct {
	ID             string                       `json:"id"`
	Snippet        *youtube.VideoSnippet        `json:"snippet,omitempty"`
	ContentDetails *youtube.VideoContentDetails `json:"contentDetails,omitempty"`
	Statistics     *VideoStatistics             `json:"statistics,omitempty"`
}

// VideoStatistics keeps counts as sent. A count the owner hides is absent, not zero.
type VideoStatistics struct {
	ViewCount    *string `json:"viewCount,omitempty"`
	LikeCount    *string `json:"likeCount,omitempty"`
	CommentCount *string `json:"commentCount,omitempty"`
}

// Normalize builds a VideoRecord from a videos.list item. It never fails: absent parts and
// counts leave their fields empty, and an unparsable value is recorded as a warning.
func Normalize(video *VideoItem) model.VideoRecord {
	record := model.VideoRecord{ID: video.ID}

	if s := video.Snippet; s != nil {
		record.Title = s.Title
		record.ChannelID = s.ChannelId
		record.ChannelTitle = s.ChannelTitle
		if s.PublishedAt != "" {
			publishedAt, err := time.Parse(time.RFC3339, s.PublishedAt)
			if err != nil {
				record.Warnings = append(record.Warnings, fmt.Sprintf("invalid publishedAt %q", s.PublishedAt))
			} else {
				record.PublishedAt = publishedAt.UTC()
			}
		}
		if s.Thumbnails != nil && s.Thumbnails.Medium != nil && s.Thumbnails.Medium.Url != "" {
			url := s.Thumbnails.Medium.Url
			record.ThumbnailURL = &url
		}
	}

	if st := video.Statistics; st != nil {
		record.ViewCount = parseCount("viewCount", st.ViewCount, &record.Warnings)
		record.LikeCount = parseCount("likeCount", st.LikeCount, &record.Warnings)
		record.CommentCount = parseCount("commentCount", st.CommentCount, &record.Warnings)
	}

	if cd := video.ContentDetails; cd != nil && cd.Duration != "" {
		raw := cd.Duration
		d, err := duration.Parse(&raw)
		if err != nil {
			record.Warnings = append(record.Warnings, err.Error())
		} else {
			record.Duration = d
		}
	}

	if len(record.Warnings) > 0 {
		logger.GetLogger().WithFields(map[string]interface{}{
			"videoId":  record.ID,
			"warnings": record.Warnings,
		}).Warn("video normalized with warnings")
	}
	return record
}

func parseCount(field string, raw *string, warnings *[]string) *int64 {
	if raw == nil {
		return nil
	}
	n, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil || n < 0 {
		*warnings = append(*warnings, fmt.Sprintf("invalid %s %q", field, *raw))
		return nil
	}
	return &n
}
