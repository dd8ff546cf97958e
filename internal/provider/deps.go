package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"curator/internal/fetch"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/respcache"
)

// Deps bundles the shared transport every adapter fetches through. The cache
// is optional; a nil cache degrades to direct fetches.
type Deps struct {
	Fetch  *fetch.Client
	Cache  *respcache.Cache
	Logger *slog.Logger
}

// ComponentLogger returns a child logger tagged with the adapter name.
func (d Deps) ComponentLogger(component string) *slog.Logger {
	return logging.NewComponentLogger(d.Logger, component)
}

// CachedDo executes the built request through the rate-limited client, read
// through the response cache under (source, identifier, shape) with ttl.
func (d Deps) CachedDo(ctx context.Context, source media.Source, identifier, shape string, ttl time.Duration, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	dispatch := func(ctx context.Context) ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return d.Fetch.Do(ctx, source, req)
	}
	if d.Cache == nil {
		return dispatch(ctx)
	}
	return d.Cache.GetOrFetch(ctx, respcache.Key(source, identifier, shape), ttl, dispatch)
}
