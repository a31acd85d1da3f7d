package details

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/lanegraph/pkg/cache"
	"github.com/matzehuels/lanegraph/pkg/errors"
)

// memCache is an in-memory cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	return d, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Close() error { return nil }

// countingLoader knows every hash except those starting with "x".
type countingLoader struct {
	calls  atomic.Int32
	hashes atomic.Int32
	gate   chan struct{}
}

func (l *countingLoader) Load(ctx context.Context, hashes []string) (map[string]Details, error) {
	l.calls.Add(1)
	l.hashes.Add(int32(len(hashes)))
	if l.gate != nil {
		<-l.gate
	}
	out := make(map[string]Details, len(hashes))
	for _, h := range hashes {
		if h[0] == 'x' {
			continue
		}
		out[h] = Details{Hash: h, Author: "Ada", Subject: "commit " + h}
	}
	return out, nil
}

func TestGetLoadsOnceAndCaches(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{}
	c := NewCache(newMemCache(), l, Options{})

	d, err := c.Get(ctx, "a1")
	if err != nil || d.Subject != "commit a1" {
		t.Fatalf("Get = %+v, %v", d, err)
	}
	if d, err := c.Get(ctx, "a1"); err != nil || d.Author != "Ada" {
		t.Errorf("cached Get = %+v, %v", d, err)
	}
	if l.calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", l.calls.Load())
	}
}

func TestGetUnknownCommit(t *testing.T) {
	c := NewCache(nil, &countingLoader{}, Options{})
	_, err := c.Get(context.Background(), "xdead")
	if !errors.Is(err, errors.ErrCodeNotFound) || !stderrors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get(unknown) err = %v, want NOT_FOUND", err)
	}
}

func TestGetSharesConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{gate: make(chan struct{})}
	c := NewCache(newMemCache(), l, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(ctx, "a1"); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	if l.calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1", l.calls.Load())
	}
}

func TestGetManyBatchesMisses(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{}
	c := NewCache(newMemCache(), l, Options{})
	if _, err := c.Get(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	got, err := c.GetMany(ctx, []string{"a1", "b2", "c3", "b2", "xmissing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("GetMany returned %d entries, want 3", len(got))
	}
	if l.calls.Load() != 2 || l.hashes.Load() != 4 {
		t.Errorf("loader calls/hashes = %d/%d, want 2/4", l.calls.Load(), l.hashes.Load())
	}
}

func TestPrefetchLoadsOnlyMisses(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{}
	c := NewCache(newMemCache(), l, Options{})
	if _, err := c.Get(ctx, "a1"); err != nil {
		t.Fatal(err)
	}

	n, err := c.Prefetch(ctx, []string{"a1", "b2", "c3", "b2"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Prefetch = %d, want 2", n)
	}
	if _, err := c.GetMany(ctx, []string{"a1", "b2", "c3"}); err != nil {
		t.Fatal(err)
	}
	if l.calls.Load() != 2 || l.hashes.Load() != 3 {
		t.Errorf("loader calls/hashes = %d/%d, want 2/3", l.calls.Load(), l.hashes.Load())
	}
	if n, err := c.Prefetch(ctx, []string{"a1", "c3"}); err != nil || n != 0 {
		t.Errorf("Prefetch of cached = %d, %v; want 0", n, err)
	}
}

func TestNoLoader(t *testing.T) {
	c := NewCache(nil, nil, Options{})
	if _, err := c.Get(context.Background(), "a1"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Get without loader: err = %v, want UNSUPPORTED", err)
	}
}

func TestLoaderFunc(t *testing.T) {
	var f Loader = LoaderFunc(func(_ context.Context, hashes []string) (map[string]Details, error) {
		return map[string]Details{hashes[0]: {Hash: hashes[0]}}, nil
	})
	got, err := f.Load(context.Background(), []string{"a1"})
	if err != nil || got["a1"].Hash != "a1" {
		t.Errorf("LoaderFunc.Load = %v, %v", got, err)
	}
}
