package usecase

import (
	"context"
	"fmt"
	"sort"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/dto"
	"yt-fetcher/domain/model"
	"yt-fetcher/domain/repository"
	"yt-fetcher/infrastructure/logger"
)

const (
	opSearch       = "search.list"
	opVideos       = "videos.list"
	opVideoDetails = "videos.get"

	defaultSearchResults = 50
	searchPageSize       = 50
	maxIDsPerCall        = 50
	videoParts           = "snippet,statistics,contentDetails"
)

// IYouTubeUseCase is the public surface of the client.
type IYouTubeUseCase interface {
	// SearchVideos returns up to maxResults videos matching query, in search order.
	SearchVideos(ctx context.Context, query string, maxResults int) (*dto.VideoList, error)
	GetVideoDetails(ctx context.Context, videoID string) (*model.VideoRecord, error)
	// GetChannelRecentVideos lists a channel's uploads inside the range, newest first.
	GetChannelRecentVideos(ctx context.Context, channelID string, dateRange dto.DateRange) (*dto.VideoList, error)
	// ReloadKeys drops any cached key list and re-reads the key store into the running pool.
	ReloadKeys(ctx context.Context) error
	InvalidateCache(ctx context.Context) error
}

// KeyListInvalidator is implemented by key stores that cache the key list.
type KeyListInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CacheClearer drops every cached response.
type CacheClearer interface {
	Clear(ctx context.Context) error
}

// YouTubeUseCase implements IYouTubeUseCase on top of an Executor.
type YouTubeUseCase struct {
	youtubeRepo repository.IYouTube
	executor    *Executor
	keyStore    repository.IKeyStore // optional
	cache       CacheClearer         // optional
	maxPages    int
	batchSize   int
}

// NewYouTubeUseCase creates a use case with default page and batch limits.
func NewYouTubeUseCase(youtubeRepo repository.IYouTube, executor *Executor) *YouTubeUseCase {
	return &YouTubeUseCase{
		youtubeRepo: youtubeRepo,
		executor:    executor,
		maxPages:    DefaultMaxPages,
		batchSize:   DefaultBatchSize,
	}
}

// WithKeyStore sets the store ReloadKeys reads from.
func (u *YouTubeUseCase) WithKeyStore(store repository.IKeyStore) *YouTubeUseCase {
	u.keyStore = store
	return u
}

// WithCache sets the cache InvalidateCache clears.
func (u *YouTubeUseCase) WithCache(cache CacheClearer) *YouTubeUseCase {
	u.cache = cache
	return u
}

// WithLimits overrides the page cap and the detail batch size. Non-positive values keep the
// defaults; batches never exceed the upstream id limit.
func (u *YouTubeUseCase) WithLimits(maxPages, batchSize int) *YouTubeUseCase {
	if maxPages > 0 {
		u.maxPages = maxPages
	}
	if batchSize > 0 {
		u.batchSize = batchSize
	}
	if u.batchSize > maxIDsPerCall {
		u.batchSize = maxIDsPerCall
	}
	return u
}

func (u *YouTubeUseCase) SearchVideos(ctx context.Context, query string, maxResults int) (*dto.VideoList, error) {
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	pageSize := maxResults
	if pageSize > searchPageSize {
		pageSize = searchPageSize
	}
	pages := (maxResults + pageSize - 1) / pageSize
	if pages > u.maxPages {
		pages = u.maxPages
	}

	req := &dto.SearchRequest{Q: query, MaxResults: int64(pageSize)}
	found, err := u.searchIDs(ctx, req, pages)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	ids := found.Items
	truncated := found.Truncated && len(ids) < maxResults
	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}

	records, complete, err := u.fetchDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get video details: %w", err)
	}

	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		return order[records[i].ID] < order[records[j].ID]
	})

	return &dto.VideoList{Items: records, Truncated: truncated || !complete}, nil
}

func (u *YouTubeUseCase) GetVideoDetails(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	if videoID == "" {
		return nil, &apperror.BadRequestError{Op: opVideoDetails, Message: "video id is required"}
	}

	params := dto.VideosRequest{IDs: []string{videoID}, Part: videoParts}
	record, err := Fetch(ctx, u.executor, opVideoDetails, params, func(ctx context.Context, apiKey string) (model.VideoRecord, error) {
		records, err := u.youtubeRepo.GetVideos(ctx, apiKey, []string{videoID})
		if err != nil {
			return model.VideoRecord{}, err
		}
		for _, r := range records {
			if r.ID == videoID {
				return r, nil
			}
		}
		return model.VideoRecord{}, fmt.Errorf("%w: %s", apperror.ErrVideoNotFound, videoID)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (u *YouTubeUseCase) GetChannelRecentVideos(ctx context.Context, channelID string, dateRange dto.DateRange) (*dto.VideoList, error) {
	if channelID == "" {
		return nil, &apperror.BadRequestError{Op: opSearch, Message: "channel id is required"}
	}

	req := &dto.SearchRequest{
		ChannelID:       channelID,
		Order:           "date",
		MaxResults:      searchPageSize,
		PublishedAfter:  dateRange.PublishedAfter(),
		PublishedBefore: dateRange.PublishedBefore(),
	}
	found, err := u.searchIDs(ctx, req, u.maxPages)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel videos: %w", err)
	}

	records, complete, err := u.fetchDetails(ctx, found.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to get video details: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})

	logger.GetLogger().WithFields(map[string]interface{}{
		"channel_id": channelID,
		"videos":     len(records),
		"pages":      found.Pages,
	}).Info("channel videos fetched")

	return &dto.VideoList{Items: records, Truncated: found.Truncated || !complete}, nil
}

func (u *YouTubeUseCase) ReloadKeys(ctx context.Context) error {
	if u.keyStore == nil {
		return nil
	}
	// A change may come from another process, so a locally cached list is stale by definition.
	if inv, ok := u.keyStore.(KeyListInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			return fmt.Errorf("failed to invalidate key list: %w", err)
		}
	}
	keys, err := u.keyStore.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	if err := u.executor.Keys().Reload(keys); err != nil {
		return fmt.Errorf("failed to reload keys: %w", err)
	}
	logger.GetLogger().WithField("keys", len(keys)).Info("key pool reloaded")
	return nil
}

func (u *YouTubeUseCase) InvalidateCache(ctx context.Context) error {
	if u.cache == nil {
		return nil
	}
	return u.cache.Clear(ctx)
}

// searchIDs walks search.list and returns unique video ids in first-seen order.
func (u *YouTubeUseCase) searchIDs(ctx context.Context, req *dto.SearchRequest, maxPages int) (dto.PageResult[string], error) {
	result, err := Paginate(ctx, u.executor, opSearch, req, maxPages, func(ctx context.Context, apiKey, pageToken string) (dto.Page[string], error) {
		return u.youtubeRepo.SearchVideoIDs(ctx, apiKey, req, pageToken)
	})
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{}, len(result.Items))
	ids := result.Items[:0]
	for _, id := range result.Items {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	result.Items = ids
	return result, nil
}

// fetchDetails batches videos.list calls. complete is false when cancellation cut the batch short.
func (u *YouTubeUseCase) fetchDetails(ctx context.Context, ids []string) ([]model.VideoRecord, bool, error) {
	if len(ids) == 0 {
		return []model.VideoRecord{}, true, nil
	}
	result, err := BatchFetch(ctx, u.executor, opVideos, ids, u.batchSize, func(ctx context.Context, apiKey string, chunk []string) ([]model.VideoRecord, error) {
		return u.youtubeRepo.GetVideos(ctx, apiKey, chunk)
	})
	if err != nil {
		return nil, false, err
	}
	if result.Items == nil {
		result.Items = []model.VideoRecord{}
	}
	return result.Items, !result.Truncated, nil
}
