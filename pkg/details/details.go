// Package details caches the metadata of commits shown in a graph.
//
// The graph only knows hashes. Renderers that show authors and subjects ask
// a [Cache], which serves entries from a [cache.Cache] backend and loads
// misses in batches from a [Loader], typically the repository the graph was
// built from. [Cache.Prefetch] warms the entries around the visible rows so
// that scrolling does not stall on the loader.
package details

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/lanegraph/pkg/cache"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/observability"
)

// DefaultTTL is the lifetime of cached entries when Options.TTL is zero.
// Commits are immutable, so entries only expire to bound the cache size.
const DefaultTTL = 7 * 24 * time.Hour

const keyType = "details"

// Details is the metadata of one commit.
type Details struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
	Subject string    `json:"subject"`
}

// Loader reads commit metadata from the source of truth. Hashes it cannot
// find are left out of the result.
type Loader interface {
	Load(ctx context.Context, hashes []string) (map[string]Details, error)
}

// LoaderFunc adapts a function to [Loader].
type LoaderFunc func(ctx context.Context, hashes []string) (map[string]Details, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, hashes []string) (map[string]Details, error) {
	return f(ctx, hashes)
}

// Options configures a [Cache].
type Options struct {
	Keyer  cache.Keyer
	TTL    time.Duration
	Logger *log.Logger
}

// Cache serves commit details from a backend and fills misses from a loader.
// It is safe for concurrent use.
type Cache struct {
	backend cache.Cache
	loader  Loader
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger
	group   singleflight.Group
}

// NewCache returns a cache over backend. A nil backend stores nothing.
func NewCache(backend cache.Cache, loader Loader, opts Options) *Cache {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Cache{
		backend: backend,
		loader:  loader,
		keyer:   opts.Keyer,
		ttl:     opts.TTL,
		logger:  opts.Logger,
	}
}

// Get returns the details of one commit. Concurrent calls for the same hash
// share one load.
func (c *Cache) Get(ctx context.Context, hash string) (Details, error) {
	if d, ok, err := c.lookup(ctx, hash); err != nil || ok {
		return d, err
	}
	v, err, _ := c.group.Do(hash, func() (any, error) {
		// A call that finished while this one waited may have filled the entry.
		if d, ok, err := c.lookup(ctx, hash); err != nil || ok {
			return d, err
		}
		found, err := c.load(ctx, []string{hash})
		if err != nil {
			return Details{}, err
		}
		d, ok := found[hash]
		if !ok {
			return Details{}, errors.Wrap(errors.ErrCodeNotFound, cache.ErrNotFound, "commit %s", hash)
		}
		return d, nil
	})
	if err != nil {
		return Details{}, err
	}
	return v.(Details), nil
}

// GetMany returns the details of every hash it can find. Misses are loaded in
// one batch.
func (c *Cache) GetMany(ctx context.Context, hashes []string) (map[string]Details, error) {
	out := make(map[string]Details, len(hashes))
	var misses []string
	for _, h := range hashes {
		if _, dup := out[h]; dup {
			continue
		}
		d, ok, err := c.lookup(ctx, h)
		if err != nil {
			return nil, err
		}
		if ok {
			out[h] = d
			continue
		}
		misses = append(misses, h)
	}
	if len(misses) == 0 {
		return out, nil
	}
	found, err := c.load(ctx, misses)
	if err != nil {
		return nil, err
	}
	for h, d := range found {
		out[h] = d
	}
	return out, nil
}

// Prefetch loads the details of hashes into the backend and returns how many
// were not cached yet.
func (c *Cache) Prefetch(ctx context.Context, hashes []string) (int, error) {
	var misses []string
	for _, h := range hashes {
		_, ok, err := c.lookup(ctx, h)
		if err != nil {
			return 0, err
		}
		if !ok && !slices.Contains(misses, h) {
			misses = append(misses, h)
		}
	}
	if len(misses) == 0 {
		return 0, nil
	}
	if _, err := c.load(ctx, misses); err != nil {
		return 0, err
	}
	c.logger.Debug("prefetched details", "commits", len(hashes), "loaded", len(misses))
	return len(misses), nil
}

func (c *Cache) lookup(ctx context.Context, hash string) (Details, bool, error) {
	var (
		data []byte
		hit  bool
	)
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, hit, err = c.backend.Get(ctx, c.keyer.DetailsKey(hash))
		return err
	})
	if err != nil {
		return Details{}, false, fmt.Errorf("details cache: %w", err)
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return Details{}, false, nil
	}
	var d Details
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("dropping malformed details entry", "hash", hash, "err", err)
		_ = c.backend.Delete(ctx, c.keyer.DetailsKey(hash))
		observability.Cache().OnCacheMiss(ctx, keyType)
		return Details{}, false, nil
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return d, true, nil
}

func (c *Cache) load(ctx context.Context, hashes []string) (map[string]Details, error) {
	if c.loader == nil {
		return nil, errors.New(errors.ErrCodeUnsupported, "no details loader configured")
	}
	start := time.Now()
	found, err := c.loader.Load(ctx, hashes)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load %d commits", len(hashes))
	}
	for h, d := range found {
		data, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		if err := c.backend.Set(ctx, c.keyer.DetailsKey(h), data, c.ttl); err != nil {
			// The loaded value is still good; a broken backend only costs a reload.
			c.logger.Warn("storing details failed", "hash", h, "err", err)
			continue
		}
		observability.Cache().OnCacheSet(ctx, keyType, len(data))
	}
	c.logger.Debug("loaded details", "requested", len(hashes), "found", len(found), "took", time.Since(start))
	return found, nil
}
