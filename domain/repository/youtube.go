package repository

import (
	"context"

	"yt-fetcher/domain/dto"
	"yt-fetcher/domain/model"
)

// IYouTube is the upstream transport. Every call is made with the key chosen by the caller
// and returns typed errors from the apperror package.
type IYouTube interface {
	// SearchVideoIDs returns one page of video ids for the request.
	SearchVideoIDs(ctx context.Context, apiKey string, req *dto.SearchRequest, pageToken string) (dto.Page[string], error)
	// GetVideos returns normalized records for up to 50 ids in a single call.
	GetVideos(ctx context.Context, apiKey string, ids []string) ([]model.VideoRecord, error)
}
