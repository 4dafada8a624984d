package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/dto"
	"yt-fetcher/infrastructure/keypool"
	"yt-fetcher/infrastructure/logger"
	"yt-fetcher/infrastructure/retry"
)

const (
	DefaultBatchSize      = 10
	DefaultMaxPages       = 20
	DefaultMaxConcurrency = 4
)

// CacheStrategy looks results up by fingerprint before a call and stores them after.
type CacheStrategy interface {
	Fingerprint(op string, params interface{}) (string, error)
	Get(ctx context.Context, fingerprint string, out interface{}) (bool, error)
	Set(ctx context.Context, fingerprint string, value interface{}, ttl time.Duration) error
}

// RetryStrategy runs one logical call under an attempt budget.
type RetryStrategy interface {
	Execute(ctx context.Context, op retry.Operation, onRetry retry.Hook) (*retry.State, error)
}

// Call is one upstream request made with the given key.
type Call[T any] func(ctx context.Context, apiKey string) (T, error)

// PageCall fetches the page behind pageToken. An empty token is the first page.
type PageCall[T any] func(ctx context.Context, apiKey, pageToken string) (dto.Page[T], error)

// BatchCall fetches one chunk of ids.
type BatchCall[T any] func(ctx context.Context, apiKey string, ids []string) ([]T, error)

type callState string

const (
	stateRequesting       callState = "requesting"
	stateSuccess          callState = "success"
	stateRetryableFailure callState = "retryable_failure"
	stateBackoff          callState = "backoff"
	stateRotateKey        callState = "rotate_key"
	stateFatalFailure     callState = "fatal_failure"
	stateExhausted        callState = "exhausted"
)

// Executor runs upstream calls with key selection, caching, retries and an optional rate limit.
// It is safe for concurrent use.
type Executor struct {
	keys           *keypool.KeyPool
	retry          RetryStrategy
	cache          CacheStrategy
	cacheTTL       time.Duration
	limiter        *rate.Limiter
	maxConcurrency int
}

type ExecutorOption func(*Executor)

// WithCacheStrategy enables response caching. ttl of zero uses the strategy default.
func WithCacheStrategy(cache CacheStrategy, ttl time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.cache = cache
		e.cacheTTL = ttl
	}
}

// WithRateLimit caps outbound requests per second across all callers. Zero or less is unlimited.
func WithRateLimit(requestsPerSecond float64) ExecutorOption {
	return func(e *Executor) {
		if requestsPerSecond <= 0 {
			e.limiter = nil
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithMaxConcurrency bounds the chunks BatchFetch runs at once.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) { e.maxConcurrency = n }
}

func NewExecutor(keys *keypool.KeyPool, retryStrategy RetryStrategy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		keys:           keys,
		retry:          retryStrategy,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxConcurrency < 1 {
		e.maxConcurrency = 1
	}
	return e
}

// Keys exposes the pool the executor draws from.
func (e *Executor) Keys() *keypool.KeyPool {
	return e.keys
}

func (e *Executor) fingerprint(op string, params interface{}) string {
	if e.cache == nil {
		return ""
	}
	fp, err := e.cache.Fingerprint(op, params)
	if err != nil {
		logger.GetLogger().WithField("op", op).WithField("error", err).Warn("uncacheable request")
		return ""
	}
	return fp
}

// Fetch returns the cached result for (op, params) or performs call and caches its result.
func Fetch[T any](ctx context.Context, e *Executor, op string, params interface{}, call Call[T]) (T, error) {
	return fetch(ctx, e, e.fingerprint(op, params), op, call)
}

func fetch[T any](ctx context.Context, e *Executor, fingerprint, op string, call Call[T]) (T, error) {
	if fingerprint != "" {
		var cached T
		hit, err := e.cache.Get(ctx, fingerprint, &cached)
		if err != nil {
			logger.GetLogger().WithField("op", op).WithField("error", err).Warn("cache lookup failed")
		} else if hit {
			logger.GetLogger().WithField("op", op).Debug("cache hit")
			return cached, nil
		}
	}

	result, err := execute(ctx, e, op, call)
	if err != nil {
		var zero T
		return zero, err
	}

	if fingerprint != "" {
		if err := e.cache.Set(ctx, fingerprint, result, e.cacheTTL); err != nil {
			logger.GetLogger().WithField("op", op).WithField("error", err).Warn("cache store failed")
		}
	}
	return result, nil
}

// execute runs call through the retry strategy. A quota error moves the pool off the key that
// reported it; once no key is usable the call ends with *apperror.KeyPoolExhaustedError.
func execute[T any](ctx context.Context, e *Executor, op string, call Call[T]) (T, error) {
	var result T
	tried := make(map[string]struct{})

	_, err := e.retry.Execute(ctx, func(ctx context.Context, st *retry.State) error {
		key, ok := e.keys.Current()
		if !ok {
			logState(op, st.Attempt, stateExhausted, "")
			return &apperror.KeyPoolExhaustedError{KeysTried: len(tried), Last: st.LastErr}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		tried[key] = struct{}{}
		logState(op, st.Attempt, stateRequesting, key)

		// In-flight requests finish even if ctx is cancelled; the HTTP client timeout bounds them.
		res, err := call(context.WithoutCancel(ctx), key)
		if err == nil {
			result = res
			logState(op, st.Attempt, stateSuccess, key)
			return nil
		}

		var quota *apperror.QuotaExceededError
		if errors.As(err, &quota) {
			e.keys.RotateFrom(key)
			e.keys.MarkExhausted(key)
			logger.GetLogger().WithFields(map[string]interface{}{
				"op":     op,
				"key":    apperror.MaskKey(key),
				"reason": quota.Reason,
			}).Warn("key out of quota")
			if e.keys.AllExhausted() {
				logState(op, st.Attempt, stateExhausted, key)
				return &apperror.KeyPoolExhaustedError{KeysTried: len(tried), Last: err}
			}
		}
		return err
	}, func(ctx context.Context, st *retry.State) error {
		logState(op, st.Attempt, stateRetryableFailure, "")
		if st.Class == retry.ClassQuotaExceeded {
			logState(op, st.Attempt, stateRotateKey, "")
		} else {
			logState(op, st.Attempt, stateBackoff, "")
		}
		return nil
	})
	if err != nil {
		if retry.Classify(err) == retry.ClassFatal && !errors.As(err, new(*apperror.KeyPoolExhaustedError)) {
			logState(op, 0, stateFatalFailure, "")
		}
		var zero T
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func logState(op string, attempt int, state callState, key string) {
	entry := logger.GetLogger().WithFields(map[string]interface{}{
		"op":      op,
		"attempt": attempt,
		"state":   string(state),
	})
	if key != "" {
		entry = entry.WithField("key", apperror.MaskKey(key))
	}
	entry.Debug("call state")
}

type pageKey struct {
	Base      string `url:"base"`
	PageToken string `url:"pageToken,omitempty"`
}

// Paginate follows nextPageToken until the upstream runs out, a page comes back empty, or
// maxPages pages were read. Hitting the cap with a token left, or cancellation, returns the items
// gathered so far with Truncated set.
func Paginate[T any](ctx context.Context, e *Executor, op string, params interface{}, maxPages int, call PageCall[T]) (dto.PageResult[T], error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	var result dto.PageResult[T]
	base := e.fingerprint(op, params)
	token := ""

	for {
		if err := ctx.Err(); err != nil {
			return truncate(result, fmt.Errorf("%w: %w", apperror.ErrPaginationTruncated, err)), nil
		}
		if result.Pages >= maxPages {
			return truncate(result, fmt.Errorf("%w: stopped after %d pages", apperror.ErrPaginationTruncated, maxPages)), nil
		}

		pageFP := ""
		if base != "" {
			pageFP = e.fingerprint(op+"#page", pageKey{Base: base, PageToken: token})
		}
		pageToken := token
		page, err := fetch(ctx, e, pageFP, op, func(ctx context.Context, apiKey string) (dto.Page[T], error) {
			return call(ctx, apiKey, pageToken)
		})
		if err != nil {
			if ctx.Err() != nil {
				return truncate(result, fmt.Errorf("%w: %w", apperror.ErrPaginationTruncated, ctx.Err())), nil
			}
			return result, err
		}

		result.Pages++
		if len(page.Items) == 0 {
			return result, nil
		}
		result.Items = append(result.Items, page.Items...)
		if page.NextPageToken == "" {
			return result, nil
		}
		token = page.NextPageToken
	}
}

func truncate[T any](result dto.PageResult[T], reason error) dto.PageResult[T] {
	result.Truncated = true
	result.Reason = reason
	logger.GetLogger().WithField("pages", result.Pages).WithField("reason", reason.Error()).Info("pagination truncated")
	return result
}

type batchKey struct {
	IDs []string `url:"id,comma"`
}

// BatchFetch splits ids into chunks and fetches them concurrently, at most maxConcurrency at a
// time. Items are appended in chunk completion order. After cancellation no new chunk starts and
// the finished chunks are returned with Truncated set; a failing chunk fails the whole batch.
func BatchFetch[T any](ctx context.Context, e *Executor, op string, ids []string, batchSize int, call BatchCall[T]) (dto.BatchResult[T], error) {
	chunks := ChunkIDs(ids, batchSize)
	result := dto.BatchResult[T]{Chunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for _, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		chunk := chunk
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			items, err := fetch(gctx, e, e.fingerprint(op, batchKey{IDs: chunk}), op, func(ctx context.Context, apiKey string) ([]T, error) {
				return call(ctx, apiKey, chunk)
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			mu.Lock()
			result.Items = append(result.Items, items...)
			result.Completed++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	if result.Completed < result.Chunks {
		result.Truncated = true
	}
	return result, nil
}

// ChunkIDs splits ids into consecutive slices of at most size elements. size <= 0 means
// DefaultBatchSize.
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
