package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"yt-fetcher/domain/dto"
	"yt-fetcher/domain/model"
)

const (
	opSearchList = "search.list"
	opVideosList = "videos.list"

	// MaxSearchResults is the upstream page size limit for search.list.
	MaxSearchResults = 50
	// MaxVideoIDs is the upstream limit of ids per videos.list call.
	MaxVideoIDs = 50
)

var videoParts = []string{"snippet", "statistics", "contentDetails"}

// Config represents YouTube API client configuration
type Config struct {
	// Endpoint overrides the API base URL, for tests and proxies. It must end with "/".
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is the transport to the YouTube Data API. It holds no credentials: the key is chosen
// by the caller for every request.
type Client struct {
	service    *youtube.Service
	httpClient *http.Client
}

// NewYouTubeClient creates a new YouTube API client
func NewYouTubeClient(ctx context.Context, config *Config) (*Client, error) {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &Client{service: service, httpClient: httpClient}, nil
}

// SearchVideoIDs runs one search.list page restricted to videos and returns the video ids.
func (c *Client) SearchVideoIDs(ctx context.Context, apiKey string, req *dto.SearchRequest, pageToken string) (dto.Page[string], error) {
	call := c.service.Search.List([]string{"id"}).
		Type("video").
		Context(ctx)

	maxResults := req.MaxResults
	if maxResults <= 0 || maxResults > MaxSearchResults {
		maxResults = MaxSearchResults
	}
	call = call.MaxResults(maxResults)

	if req.Q != "" {
		call = call.Q(req.Q)
	}
	if req.ChannelID != "" {
		call = call.ChannelId(req.ChannelID)
	}
	if req.Order != "" {
		call = call.Order(req.Order)
	}
	if req.PublishedAfter != "" {
		call = call.PublishedAfter(req.PublishedAfter)
	}
	if req.PublishedBefore != "" {
		call = call.PublishedBefore(req.PublishedBefore)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	response, err := call.Do(googleapi.QueryParameter("key", apiKey))
	if err != nil {
		return dto.Page[string]{}, classifyError(opSearchList, apiKey, err)
	}

	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ids = append(ids, item.Id.VideoId)
	}
	return dto.Page[string]{Items: ids, NextPageToken: response.NextPageToken}, nil
}

// GetVideos fetches snippet, statistics and content details for up to MaxVideoIDs ids and
// normalizes every returned item. Unknown ids are simply absent from the result.
//
// The request is sent on the service's HTTP client and base path but decoded into VideoItem,
// since the generated statistics type cannot tell a hidden count from zero.
func (c *Client) GetVideos(ctx context.Context, apiKey string, ids []string) ([]model.VideoRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxVideoIDs {
		return nil, fmt.Errorf("%s: %d ids exceeds the limit of %d", opVideosList, len(ids), MaxVideoIDs)
	}

	params := url.Values{}
	params.Set("part", strings.Join(videoParts, ","))
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", apiKey)
	params.Set("alt", "json")
	params.Set("prettyPrint", "false")
	endpoint := googleapi.ResolveRelative(c.service.BasePath, "youtube/v3/videos") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opVideosList, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(opVideosList, apiKey, err)
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, classifyError(opVideosList, apiKey, err)
	}

	var response videoListResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, classifyError(opVideosList, apiKey, err)
	}

	records := make([]model.VideoRecord, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.ID == "" {
			continue
		}
		records = append(records, Normalize(item))
	}
	return records, nil
}
