package downloader

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryDownloader fetches feeds and, when asked to, keeps them in
// memory until CacheTTL passes. Requests with different headers are
// cached separately, as feeds behind API keys may differ per key.
type MemoryDownloader struct {
	TimeNow func() time.Time

	mu    sync.Mutex
	cache map[string]memoryEntry
}

type memoryEntry struct {
	body    []byte
	expires time.Time
}

func NewMemoryDownloader() *MemoryDownloader {
	return &MemoryDownloader{
		TimeNow: time.Now,
		cache:   map[string]memoryEntry{},
	}
}

// cacheKey is the url followed by the sorted headers.
func cacheKey(url string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
	}
	return b.String()
}

func (d *MemoryDownloader) lookup(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, found := d.cache[key]
	if !found {
		return nil, false
	}
	if !entry.expires.After(d.TimeNow()) {
		delete(d.cache, key)
		return nil, false
	}
	return entry.body, true
}

func (d *MemoryDownloader) store(key string, body []byte, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.TimeNow()
	for k, entry := range d.cache {
		if !entry.expires.After(now) {
			delete(d.cache, k)
		}
	}
	d.cache[key] = memoryEntry{body: body, expires: now.Add(ttl)}
}

// Len is the number of cached entries, expired or not.
func (d *MemoryDownloader) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

func (d *MemoryDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	key := cacheKey(url, headers)

	if options.Cache {
		if body, ok := d.lookup(key); ok {
			return body, nil
		}
	}

	body, err := Fetch(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	if options.Cache && options.CacheTTL > 0 {
		d.store(key, body, options.CacheTTL)
	}

	return body, nil
}
