package usecase_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/dto"
	"yt-fetcher/domain/model"
	"yt-fetcher/infrastructure/cache"
	"yt-fetcher/infrastructure/keypool"
	"yt-fetcher/infrastructure/persistence"
	"yt-fetcher/usecase"
)

type MockYouTube struct {
	mock.Mock
}

func (m *MockYouTube) SearchVideoIDs(ctx context.Context, apiKey string, req *dto.SearchRequest, pageToken string) (dto.Page[string], error) {
	args := m.Called(ctx, apiKey, req, pageToken)
	return args.Get(0).(dto.Page[string]), args.Error(1)
}

func (m *MockYouTube) GetVideos(ctx context.Context, apiKey string, ids []string) ([]model.VideoRecord, error) {
	args := m.Called(ctx, apiKey, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VideoRecord), args.Error(1)
}

type MockKeyStore struct {
	mock.Mock
}

func (m *MockKeyStore) ListKeys(ctx context.Context) ([]model.APIKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.APIKey), args.Error(1)
}

func (m *MockKeyStore) Disable(ctx context.Context, key string, reason map[string]interface{}) error {
	return m.Called(ctx, key, reason).Error(0)
}

func (m *MockKeyStore) Enable(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func records(ids ...string) []model.VideoRecord {
	out := make([]model.VideoRecord, len(ids))
	for i, id := range ids {
		out[i] = model.VideoRecord{ID: id, Title: "title " + id}
	}
	return out
}

func newUseCase(t *testing.T, yt *MockYouTube, keys ...string) (*usecase.YouTubeUseCase, *cache.Layer) {
	t.Helper()
	layer := cache.NewLayer(cache.NewMemoryStore(), time.Hour)
	exec := usecase.NewExecutor(newPool(t, keys...), instantPolicy(3, nil),
		usecase.WithCacheStrategy(layer, 0),
		usecase.WithMaxConcurrency(2),
	)
	return usecase.NewYouTubeUseCase(yt, exec).WithCache(layer), layer
}

func TestSearchVideos_KeepsSearchOrder(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1")

	yt.On("SearchVideoIDs", mock.Anything, "k1", mock.MatchedBy(func(req *dto.SearchRequest) bool {
		return req.Q == "golang" && req.MaxResults == 50
	}), "").Return(dto.Page[string]{Items: []string{"v1", "v2", "v3"}}, nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"v1", "v2", "v3"}).
		Return(records("v3", "v1", "v2"), nil).Once()

	list, err := uc.SearchVideos(context.Background(), "golang", 0)

	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	assert.Equal(t, "v1", list.Items[0].ID)
	assert.Equal(t, "v2", list.Items[1].ID)
	assert.Equal(t, "v3", list.Items[2].ID)
	assert.False(t, list.Truncated)
	yt.AssertExpectations(t)
}

func TestSearchVideos_CapsResults(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1")

	yt.On("SearchVideoIDs", mock.Anything, "k1", mock.MatchedBy(func(req *dto.SearchRequest) bool {
		return req.MaxResults == 2
	}), "").Return(dto.Page[string]{Items: []string{"v1", "v2", "v3"}, NextPageToken: "more"}, nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"v1", "v2"}).Return(records("v1", "v2"), nil).Once()

	list, err := uc.SearchVideos(context.Background(), "golang", 2)

	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.False(t, list.Truncated, "stopping at maxResults is not a truncation")
	yt.AssertExpectations(t)
}

func TestSearchVideos_SecondCallServedFromCache(t *testing.T) {
	yt := new(MockYouTube)
	uc, layer := newUseCase(t, yt, "k1")

	yt.On("SearchVideoIDs", mock.Anything, "k1", mock.Anything, "").
		Return(dto.Page[string]{Items: []string{"v1"}}, nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"v1"}).Return(records("v1"), nil).Once()

	_, err := uc.SearchVideos(context.Background(), "golang", 5)
	require.NoError(t, err)
	list, err := uc.SearchVideos(context.Background(), "golang", 5)
	require.NoError(t, err)

	assert.Len(t, list.Items, 1)
	assert.Equal(t, int64(2), layer.Stats().Hits)
	yt.AssertExpectations(t)

	require.NoError(t, uc.InvalidateCache(context.Background()))
	yt.On("SearchVideoIDs", mock.Anything, "k1", mock.Anything, "").
		Return(dto.Page[string]{Items: []string{"v1"}}, nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"v1"}).Return(records("v1"), nil).Once()
	_, err = uc.SearchVideos(context.Background(), "golang", 5)
	require.NoError(t, err)
	yt.AssertNumberOfCalls(t, "SearchVideoIDs", 2)
}

func TestSearchVideos_AllKeysOutOfQuota(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1", "k2")

	for _, k := range []string{"k1", "k2"} {
		yt.On("SearchVideoIDs", mock.Anything, k, mock.Anything, "").
			Return(dto.Page[string]{}, &apperror.QuotaExceededError{Op: "search.list", Key: k, Reason: "quotaExceeded"}).Once()
	}

	_, err := uc.SearchVideos(context.Background(), "golang", 10)

	var exhausted *apperror.KeyPoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.KeysTried)
	yt.AssertExpectations(t)
}

func TestGetVideoDetails(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1")

	yt.On("GetVideos", mock.Anything, "k1", []string{"v1"}).Return(records("v1"), nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"gone"}).Return([]model.VideoRecord{}, nil).Once()

	rec, err := uc.GetVideoDetails(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "title v1", rec.Title)

	_, err = uc.GetVideoDetails(context.Background(), "gone")
	assert.ErrorIs(t, err, apperror.ErrVideoNotFound)

	_, err = uc.GetVideoDetails(context.Background(), "")
	var badReq *apperror.BadRequestError
	assert.ErrorAs(t, err, &badReq)
	yt.AssertExpectations(t)
}

func TestGetChannelRecentVideos_PaginatesBatchesAndSorts(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dr := dto.LastHours(now, 24*time.Hour)

	first := make([]string, 8)
	for i := range first {
		first[i] = fmt.Sprintf("v%02d", i)
	}
	second := []string{"v08", "v09", "v10", "v11", "v00"}

	isChannelReq := mock.MatchedBy(func(req *dto.SearchRequest) bool {
		return req.ChannelID == "UC1" && req.Order == "date" && req.PublishedAfter == "2024-04-30T12:00:00Z" &&
			req.PublishedBefore == "2024-05-01T12:00:00Z"
	})
	yt.On("SearchVideoIDs", mock.Anything, "k1", isChannelReq, "").
		Return(dto.Page[string]{Items: first, NextPageToken: "p2"}, nil).Once()
	yt.On("SearchVideoIDs", mock.Anything, "k1", isChannelReq, "p2").
		Return(dto.Page[string]{Items: second}, nil).Once()

	all := append(append([]string{}, first...), "v08", "v09", "v10", "v11")
	published := func(ids []string) []model.VideoRecord {
		recs := records(ids...)
		for i := range recs {
			n, _ := strconv.Atoi(strings.TrimPrefix(recs[i].ID, "v"))
			recs[i].PublishedAt = now.Add(-time.Duration(24-n) * time.Hour)
		}
		return recs
	}
	yt.On("GetVideos", mock.Anything, "k1", all[:10]).Return(published(all[:10]), nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", all[10:]).Return(published(all[10:]), nil).Once()

	list, err := uc.GetChannelRecentVideos(context.Background(), "UC1", dr)

	require.NoError(t, err)
	require.Len(t, list.Items, 12, "duplicates across pages are dropped")
	assert.Equal(t, "v11", list.Items[0].ID)
	assert.Equal(t, "v00", list.Items[11].ID)
	for i := 1; i < len(list.Items); i++ {
		assert.False(t, list.Items[i].PublishedAt.After(list.Items[i-1].PublishedAt))
	}
	assert.False(t, list.Truncated)
	yt.AssertExpectations(t)
}

func TestGetChannelRecentVideos_PageCapMarksTruncated(t *testing.T) {
	yt := new(MockYouTube)
	uc, _ := newUseCase(t, yt, "k1")
	uc.WithLimits(1, 0)

	yt.On("SearchVideoIDs", mock.Anything, "k1", mock.Anything, "").
		Return(dto.Page[string]{Items: []string{"v1"}, NextPageToken: "p2"}, nil).Once()
	yt.On("GetVideos", mock.Anything, "k1", []string{"v1"}).Return(records("v1"), nil).Once()

	list, err := uc.GetChannelRecentVideos(context.Background(), "UC1", dto.DateRange{})

	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.True(t, list.Truncated)
	yt.AssertExpectations(t)
}

func TestGetChannelRecentVideos_RequiresChannel(t *testing.T) {
	uc, _ := newUseCase(t, new(MockYouTube), "k1")

	_, err := uc.GetChannelRecentVideos(context.Background(), "", dto.DateRange{})

	var badReq *apperror.BadRequestError
	assert.ErrorAs(t, err, &badReq)
}

func TestReloadKeys(t *testing.T) {
	yt := new(MockYouTube)
	store := new(MockKeyStore)
	pool := newPool(t, "k1")
	exec := usecase.NewExecutor(pool, instantPolicy(3, nil))
	uc := usecase.NewYouTubeUseCase(yt, exec).WithKeyStore(store)

	store.On("ListKeys", mock.Anything).Return([]model.APIKey{
		{Key: "k1", Active: false},
		{Key: "k2", Active: true},
	}, nil).Once()

	require.NoError(t, uc.ReloadKeys(context.Background()))
	assert.Equal(t, 2, pool.Len())
	cur, ok := pool.Current()
	require.True(t, ok)
	assert.Equal(t, "k2", cur)

	store.On("ListKeys", mock.Anything).Return([]model.APIKey{}, nil).Once()
	err := uc.ReloadKeys(context.Background())
	assert.ErrorIs(t, err, apperror.ErrEmptyKeyPool)
	assert.Equal(t, 2, pool.Len(), "a failed reload keeps the membership")
	store.AssertExpectations(t)
}

func TestReloadKeys_BypassesCachedKeyList(t *testing.T) {
	ctx := context.Background()
	inner := new(MockKeyStore)
	store := persistence.NewCachedKeyStore(inner, cache.NewMemoryStore(), time.Hour)

	inner.On("ListKeys", mock.Anything).Return([]model.APIKey{
		{Key: "a", Active: true},
		{Key: "b", Active: true},
	}, nil).Once()
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	pool, err := keypool.New(keys)
	require.NoError(t, err)

	// Changed behind the cache, as an admin in another process would.
	inner.On("ListKeys", mock.Anything).Return([]model.APIKey{
		{Key: "a", Active: true},
		{Key: "c", Active: true},
	}, nil).Once()

	uc := usecase.NewYouTubeUseCase(new(MockYouTube), usecase.NewExecutor(pool, instantPolicy(3, nil))).WithKeyStore(store)
	require.NoError(t, uc.ReloadKeys(ctx))

	var members []string
	for _, k := range pool.Snapshot() {
		members = append(members, k.Key)
	}
	assert.Equal(t, []string{"a", "c"}, members)
	inner.AssertExpectations(t)
}

func TestReloadKeys_InvalidationFailure(t *testing.T) {
	store := &failingInvalidateStore{MockKeyStore: new(MockKeyStore)}
	uc := usecase.NewYouTubeUseCase(new(MockYouTube), usecase.NewExecutor(newPool(t, "k1"), instantPolicy(3, nil))).WithKeyStore(store)

	err := uc.ReloadKeys(context.Background())

	assert.ErrorContains(t, err, "invalidate key list")
	store.AssertNotCalled(t, "ListKeys", mock.Anything)
}

type failingInvalidateStore struct {
	*MockKeyStore
}

func (s *failingInvalidateStore) Invalidate(context.Context) error {
	return fmt.Errorf("cache down")
}

func TestReloadKeys_WithoutStore(t *testing.T) {
	uc, _ := newUseCase(t, new(MockYouTube), "k1")

	assert.NoError(t, uc.ReloadKeys(context.Background()))
}
