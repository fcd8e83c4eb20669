package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-processes/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const processRunCacheKeyPrefix = "go-processes::process_run::v1"

// ProcessRunReader is the read side of the run ledger.
type ProcessRunReader interface {
	GetRun(ctx context.Context, id string) (core.ProcessRun, error)
	ListRuns(ctx context.Context, filter core.ProcessRunFilter) (core.ProcessRunPage, error)
}

// CachedProcessRunReader caches single-run lookups. Runs are written once, so
// entries only leave the cache through TTL expiry or Forget.
type CachedProcessRunReader struct {
	base  ProcessRunReader
	cache repositorycache.CacheService
}

func NewCachedProcessRunReader(base ProcessRunReader, cacheService repositorycache.CacheService) (*CachedProcessRunReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base process run reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: process run cache service is required")
	}
	return &CachedProcessRunReader{base: base, cache: cacheService}, nil
}

// ProcessRunCacheKey returns go-processes::process_run::v1::<escaped id>.
func ProcessRunCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", core.ValidationFailed("run_id", "run id is required")
	}
	return processRunCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (r *CachedProcessRunReader) GetRun(ctx context.Context, id string) (core.ProcessRun, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.ProcessRun{}, fmt.Errorf("sqlstore: cached process run reader is not configured")
	}
	key, err := ProcessRunCacheKey(id)
	if err != nil {
		return core.ProcessRun{}, err
	}
	run, err := repositorycache.GetOrFetch(ctx, r.cache, key, func(ctx context.Context) (core.ProcessRun, error) {
		return r.base.GetRun(ctx, strings.TrimSpace(id))
	})
	if err != nil {
		return core.ProcessRun{}, err
	}
	return cloneProcessRun(run), nil
}

// ListRuns is not cached; pages shift as new runs arrive.
func (r *CachedProcessRunReader) ListRuns(ctx context.Context, filter core.ProcessRunFilter) (core.ProcessRunPage, error) {
	if r == nil || r.base == nil {
		return core.ProcessRunPage{}, fmt.Errorf("sqlstore: cached process run reader is not configured")
	}
	return r.base.ListRuns(ctx, filter)
}

func (r *CachedProcessRunReader) Forget(ctx context.Context, id string) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached process run reader is not configured")
	}
	key, err := ProcessRunCacheKey(id)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, key)
}

func cloneProcessRun(run core.ProcessRun) core.ProcessRun {
	cloned := run
	cloned.Errors = append([]string(nil), run.Errors...)
	return cloned
}
