// Package imagecache provides a two-tier (memory and disk) cache for remote
// images keyed by source URL, with in-flight download de-duplication and
// per-URL cancellation.
package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"
)

const (
	// defaultMemoryLimit bounds the memory tier by the encoded byte size of
	// the images it holds; eviction past the limit is the container's LRU.
	defaultMemoryLimit = 50 * 1024 * 1024

	defaultHTTPTimeout = 15 * time.Second

	// Entries never go stale on their own; the disk tier outlives the
	// process and the memory tier is rebuilt from it.
	memoryTTL = 365 * 24 * time.Hour
)

// cachedImage is one memory tier entry. Size reports the encoded byte length
// so the container's budget tracks real memory, not entry count.
type cachedImage struct {
	img  image.Image
	cost int64
}

func (c *cachedImage) Size() int64 {
	return c.cost
}

// flight is one outstanding download. Waiters block on done, which is closed
// exactly once when the download settles; img is set before the close and
// stays nil on failure or cancellation.
type flight struct {
	done   chan struct{}
	cancel context.CancelFunc
	img    image.Image
}

// Cache is the two-tier image cache. The memory tier holds decoded images,
// the disk tier raw encoded bytes, one file per key; anything in memory was
// loaded from disk or from a download that also went to disk, so the tiers
// never diverge. All disk access is serialized through a single worker.
type Cache struct {
	mem    *ccache.Cache[*cachedImage]
	dir    string
	client *http.Client
	log    *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]*flight

	diskJobs chan func()
	diskDone chan struct{}
}

// New creates a Cache with its disk tier under dir.
func New(dir string, log *zap.SugaredLogger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{
		mem:      ccache.New(ccache.Configure[*cachedImage]().MaxSize(defaultMemoryLimit)),
		dir:      dir,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
		log:      log,
		inflight: make(map[string]*flight),
		diskJobs: make(chan func(), 64),
		diskDone: make(chan struct{}),
	}
	go c.diskWorker()
	return c, nil
}

// Close stops the disk worker after it has drained all queued work, so
// pending writes and clears are on disk before the process can exit. The
// cache must not be used afterwards.
func (c *Cache) Close() {
	close(c.diskJobs)
	<-c.diskDone
}

func (c *Cache) diskWorker() {
	defer close(c.diskDone)
	for job := range c.diskJobs {
		job()
	}
}

// Load returns the image for rawURL and whether it came from a cache tier.
// It never fails: an unusable URL, a failed download, or an undecodable
// payload all yield a nil image with fromCache=false. Tiers are consulted in
// order — memory, disk, network — short-circuiting on the first hit.
func (c *Cache) Load(ctx context.Context, rawURL string) (image.Image, bool) {
	if rawURL == "" {
		return nil, false
	}
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}

	key := cacheKey(rawURL)

	if item := c.mem.Get(key); item != nil && !item.Expired() {
		return item.Value().img, true
	}

	if img, ok := c.loadFromDisk(key); ok {
		return img, true
	}

	return c.download(ctx, rawURL, key)
}

// LoadAsync is a callback adapter over Load for callers that cannot block.
func (c *Cache) LoadAsync(ctx context.Context, rawURL string, fn func(img image.Image, fromCache bool)) {
	go func() {
		fn(c.Load(ctx, rawURL))
	}()
}

// Cancel aborts an in-flight download for rawURL, if any. Already-cached
// data is not touched; with nothing in flight this is a no-op.
func (c *Cache) Cancel(rawURL string) {
	key := cacheKey(rawURL)

	c.mu.Lock()
	f, ok := c.inflight[key]
	if ok {
		delete(c.inflight, key)
	}
	c.mu.Unlock()

	if ok {
		f.cancel()
	}
}

// Clear evicts the memory tier immediately and removes the disk tier in the
// background. A download completing concurrently may land its file after the
// sweep; that entry is simply refetched stale data, which is acceptable.
func (c *Cache) Clear() {
	c.mem.Clear()
	c.diskJobs <- func() {
		if err := os.RemoveAll(c.dir); err != nil {
			c.log.Warnw("clear image cache", "error", err)
		}
		if err := os.MkdirAll(c.dir, 0o755); err != nil {
			c.log.Warnw("recreate image cache dir", "error", err)
		}
	}
}

// SizeOnDisk reports the total size of the disk tier in bytes. The scan runs
// on the disk worker, so it observes any previously queued writes or clears.
func (c *Cache) SizeOnDisk() int64 {
	ch := make(chan int64, 1)
	c.diskJobs <- func() {
		var total int64
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			ch <- 0
			return
		}
		for _, e := range entries {
			if info, err := e.Info(); err == nil {
				total += info.Size()
			}
		}
		ch <- total
	}
	return <-ch
}

// loadFromDisk reads and decodes the disk entry for key, populating the
// memory tier on a hit. The file read runs on the disk worker so it never
// races a write for the same key.
func (c *Cache) loadFromDisk(key string) (image.Image, bool) {
	type result struct {
		img  image.Image
		cost int64
	}

	ch := make(chan result, 1)
	c.diskJobs <- func() {
		data, err := os.ReadFile(filepath.Join(c.dir, key))
		if err != nil {
			ch <- result{}
			return
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			ch <- result{}
			return
		}
		ch <- result{img: img, cost: int64(len(data))}
	}

	r := <-ch
	if r.img == nil {
		return nil, false
	}
	c.mem.Set(key, &cachedImage{img: r.img, cost: r.cost}, memoryTTL)
	return r.img, true
}

// download resolves a network fetch for key, de-duplicating against any
// outstanding flight: the check-then-insert on the in-flight table is one
// critical section, and later callers join the first flight's result rather
// than starting their own.
func (c *Cache) download(ctx context.Context, rawURL, key string) (image.Image, bool) {
	c.mu.Lock()
	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.img, false
		case <-ctx.Done():
			return nil, false
		}
	}

	// The flight's lifetime is decoupled from this caller's context: only
	// Cancel (or the HTTP timeout) stops it, so one impatient waiter cannot
	// kill the download for the others.
	dctx, cancel := context.WithCancel(context.Background())
	f := &flight{done: make(chan struct{}), cancel: cancel}
	c.inflight[key] = f
	c.mu.Unlock()

	go c.run(dctx, f, rawURL, key)

	select {
	case <-f.done:
		return f.img, false
	case <-ctx.Done():
		return nil, false
	}
}

// run performs the network download for one flight. The in-flight entry is
// removed the moment the download settles, before either tier is populated.
func (c *Cache) run(ctx context.Context, f *flight, rawURL, key string) {
	defer f.cancel()

	img, data := c.fetch(ctx, rawURL)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	if img != nil {
		c.mem.Set(key, &cachedImage{img: img, cost: int64(len(data))}, memoryTTL)
		c.saveToDisk(key, data)
		f.img = img
	}
	close(f.done)
}

func (c *Cache) fetch(ctx context.Context, rawURL string) (image.Image, []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debugw("image download failed", "url", rawURL, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debugw("image download failed", "url", rawURL, "status", resp.StatusCode)
		return nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.log.Debugw("image decode failed", "url", rawURL, "error", err)
		return nil, nil
	}
	return img, data
}

// saveToDisk writes the encoded bytes through the disk worker, via a temp
// file and rename so a reader never observes a partially written entry.
func (c *Cache) saveToDisk(key string, data []byte) {
	c.diskJobs <- func() {
		path := filepath.Join(c.dir, key)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			c.log.Warnw("write image cache file", "error", err)
			return
		}
		if err := os.Rename(tmp, path); err != nil {
			c.log.Warnw("rename image cache file", "error", err)
		}
	}
}

// cacheKey derives a deterministic, filesystem-safe key from the source URL.
// The raw URL-safe base64 alphabet never collides with the ".tmp" suffix
// used for in-progress writes.
func cacheKey(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}
