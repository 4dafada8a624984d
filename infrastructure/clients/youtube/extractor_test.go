package youtube

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
)

func count(s string) *string { return &s }

func TestNormalize_FullItem(t *testing.T) {
	record := Normalize(&VideoItem{
		ID: "vid1",
		Snippet: &youtube.VideoSnippet{
			Title:        "Go Concurrency Patterns",
			PublishedAt:  "2024-02-03T04:05:06Z",
			ChannelId:    "UC123",
			ChannelTitle: "GopherCon",
			Thumbnails: &youtube.ThumbnailDetails{
				Default: &youtube.Thumbnail{Url: "https://i.ytimg.com/default.jpg"},
				Medium:  &youtube.Thumbnail{Url: "https://i.ytimg.com/medium.jpg"},
			},
		},
		Statistics:     &VideoStatistics{ViewCount: count("1200"), LikeCount: count("30"), CommentCount: count("0")},
		ContentDetails: &youtube.VideoContentDetails{Duration: "PT1H23M3S"},
	})

	assert.Equal(t, "vid1", record.ID)
	assert.Equal(t, "Go Concurrency Patterns", record.Title)
	assert.Equal(t, time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), record.PublishedAt)
	assert.Equal(t, "UC123", record.ChannelID)
	assert.Equal(t, "GopherCon", record.ChannelTitle)
	require.NotNil(t, record.ThumbnailURL)
	assert.Equal(t, "https://i.ytimg.com/medium.jpg", *record.ThumbnailURL)
	require.NotNil(t, record.ViewCount)
	assert.Equal(t, int64(1200), *record.ViewCount)
	require.NotNil(t, record.LikeCount)
	assert.Equal(t, int64(30), *record.LikeCount)
	require.NotNil(t, record.CommentCount)
	assert.Equal(t, int64(0), *record.CommentCount)
	require.NotNil(t, record.Duration)
	assert.Equal(t, "1:23:03", record.Duration.String())
	assert.Empty(t, record.Warnings)
}

func TestNormalize_MissingParts(t *testing.T) {
	record := Normalize(&VideoItem{ID: "bare"})

	assert.Equal(t, "bare", record.ID)
	assert.Empty(t, record.Title)
	assert.True(t, record.PublishedAt.IsZero())
	assert.Nil(t, record.ThumbnailURL)
	assert.Nil(t, record.ViewCount)
	assert.Nil(t, record.LikeCount)
	assert.Nil(t, record.CommentCount)
	assert.Nil(t, record.Duration)
	assert.Empty(t, record.Warnings)
}

func TestNormalize_HiddenCountsStayNil(t *testing.T) {
	record := Normalize(&VideoItem{
		ID:         "v",
		Statistics: &VideoStatistics{ViewCount: count("10")},
	})

	require.NotNil(t, record.ViewCount)
	assert.Equal(t, int64(10), *record.ViewCount)
	assert.Nil(t, record.LikeCount)
	assert.Nil(t, record.CommentCount)
	assert.Empty(t, record.Warnings)
}

func TestNormalize_BadCountBecomesWarning(t *testing.T) {
	record := Normalize(&VideoItem{
		ID:         "v",
		Statistics: &VideoStatistics{ViewCount: count("lots"), LikeCount: count("3")},
	})

	assert.Nil(t, record.ViewCount)
	require.NotNil(t, record.LikeCount)
	assert.Equal(t, int64(3), *record.LikeCount)
	require.Len(t, record.Warnings, 1)
	assert.Contains(t, record.Warnings[0], "viewCount")
}

func TestNormalize_NoMediumThumbnail(t *testing.T) {
	record := Normalize(&VideoItem{
		ID: "v",
		Snippet: &youtube.VideoSnippet{
			Thumbnails: &youtube.ThumbnailDetails{High: &youtube.Thumbnail{Url: "https://i.ytimg.com/high.jpg"}},
		},
	})
	assert.Nil(t, record.ThumbnailURL)
}

func TestNormalize_BadValuesBecomeWarnings(t *testing.T) {
	record := Normalize(&VideoItem{
		ID:             "live",
		Snippet:        &youtube.VideoSnippet{Title: "Live now", PublishedAt: "yesterday"},
		ContentDetails: &youtube.VideoContentDetails{Duration: "P0D"},
	})

	assert.Equal(t, "Live now", record.Title)
	assert.Nil(t, record.Duration)
	assert.True(t, record.PublishedAt.IsZero())
	require.Len(t, record.Warnings, 2)
	assert.Contains(t, record.Warnings[0], "yesterday")
	assert.Contains(t, record.Warnings[1], "P0D")
}

func TestNormalize_ZeroDuration(t *testing.T) {
	record := Normalize(&VideoItem{ID: "v", ContentDetails: &youtube.VideoContentDetails{Duration: "PT"}})
	require.NotNil(t, record.Duration)
	assert.Equal(t, 0, record.Duration.TotalSeconds())
}
