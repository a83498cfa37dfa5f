package gtfs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/transitkit/gtfs/downloader"
	"github.com/transitkit/gtfs/storage"
)

const (
	DefaultRefreshInterval = 12 * time.Hour
	DefaultTimeout         = 60 * time.Second
	DefaultMaxSize         = 800 << 20 // 800 MB
)

var ErrNoActiveFeed = errors.New("no active feed found")

// Manager downloads feeds, persists them in storage, and hands out
// built Feeds. A feed is only rebuilt from an archive when the
// archive's content changes.
type Manager struct {
	RefreshInterval time.Duration
	Timeout         time.Duration
	MaxSize         int
	Downloader      downloader.Downloader

	// Options used when building feeds.
	Options Options

	TimeNow func() time.Time

	storage storage.Storage

	mu    sync.Mutex
	feeds map[string]*Feed
}

// Creates a new Manager of GTFS data, on top of the given storage.
func NewManager(s storage.Storage) *Manager {
	return &Manager{
		RefreshInterval: DefaultRefreshInterval,
		Timeout:         DefaultTimeout,
		MaxSize:         DefaultMaxSize,
		Downloader:      downloader.NewMemoryDownloader(),
		TimeNow:         time.Now,

		storage: s,
		feeds:   map[string]*Feed{},
	}
}

// Load returns the most recently retrieved feed from url that is
// active at the given time.
//
// If nothing was retrieved from url within RefreshInterval, the
// feed is refreshed first. Should that fail, previously stored
// feeds are still considered.
func (m *Manager) Load(
	ctx context.Context,
	url string,
	headers map[string]string,
	when time.Time,
) (*Feed, error) {
	log := m.Options.logger().With(zap.String("url", url))

	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{URL: url})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	if m.needsRefresh(feeds) {
		_, refreshErr := m.Refresh(ctx, url, headers)
		if refreshErr != nil {
			if len(feeds) == 0 {
				return nil, fmt.Errorf("refreshing: %w", refreshErr)
			}
			log.Warn("refresh failed, using stored feed", zap.Error(refreshErr))
		} else {
			feeds, err = m.storage.ListFeeds(storage.ListFeedsFilter{URL: url})
			if err != nil {
				return nil, fmt.Errorf("listing feeds: %w", err)
			}
		}
	}

	return m.loadMostRecentActive(feeds, when)
}

func (m *Manager) needsRefresh(feeds []*storage.FeedMetadata) bool {
	cutoff := m.TimeNow().Add(-m.RefreshInterval)
	for _, feed := range feeds {
		if feed.RetrievedAt.After(cutoff) {
			return false
		}
	}
	return true
}

// Refresh downloads url. If the data is already in storage, only
// the metadata record for url is written. Otherwise the archive is
// built into a Feed and exported to storage.
func (m *Manager) Refresh(
	ctx context.Context,
	url string,
	headers map[string]string,
) (*storage.FeedMetadata, error) {
	log := m.Options.logger().With(zap.String("url", url))

	body, err := m.Downloader.Get(ctx, url, headers, downloader.GetOptions{
		Timeout: m.Timeout,
		MaxSize: m.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading feed at %s: %w", url, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(body))
	log = log.With(zap.String("hash", hash))

	// The data we just downloaded may already exist in storage,
	// possibly under a different URL.
	existing, err := m.storage.ListFeeds(storage.ListFeedsFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	if len(existing) > 0 {
		metadata := *existing[0]
		metadata.URL = url
		metadata.RetrievedAt = m.TimeNow().UTC()

		err = m.storage.WriteFeedMetadata(&metadata)
		if err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}
		log.Debug("feed unchanged")
		return &metadata, nil
	}

	feed, err := LoadZip(ctx, body, m.Options)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	writer, err := m.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}
	err = feed.Export(writer)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("exporting: %w", err)
	}
	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing writer: %w", err)
	}

	start, end := feed.Calendar().DateRange()
	metadata := &storage.FeedMetadata{
		URL:               url,
		Hash:              hash,
		RetrievedAt:       m.TimeNow().UTC(),
		Timezone:          feed.Timezone(),
		CalendarStartDate: start,
		CalendarEndDate:   end,
	}
	err = m.storage.WriteFeedMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	m.mu.Lock()
	m.feeds[hash] = feed
	m.mu.Unlock()

	log.Info("stored new feed", zap.String("calendar_start", start), zap.String("calendar_end", end))

	return metadata, nil
}

// Selects the most recently retrieved feed from feeds that is also
// active at the given time.
func (m *Manager) loadMostRecentActive(feeds []*storage.FeedMetadata, when time.Time) (*Feed, error) {
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.Before(feeds[j].RetrievedAt)
	})

	for i := len(feeds) - 1; i >= 0; i-- {
		ok, err := feedActive(feeds[i], when)
		if err != nil {
			return nil, fmt.Errorf("checking if feed is active: %w", err)
		}
		if !ok {
			continue
		}

		// This is the one!
		return m.feed(feeds[i].Hash)
	}

	// No active feed found.
	return nil, ErrNoActiveFeed
}

// feed returns the built Feed for hash, rebuilding it from storage
// if it isn't held in memory.
func (m *Manager) feed(hash string) (*Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if feed, found := m.feeds[hash]; found {
		return feed, nil
	}

	reader, err := m.storage.GetReader(hash)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}
	feed, err := FromStorage(reader, m.Options)
	if err != nil {
		return nil, fmt.Errorf("rebuilding feed: %w", err)
	}

	m.feeds[hash] = feed
	return feed, nil
}

func feedActive(feed *storage.FeedMetadata, now time.Time) (bool, error) {
	feedTz, err := time.LoadLocation(feed.Timezone)
	if err != nil {
		return false, fmt.Errorf("loading timezone: %w", err)
	}

	todayThere := now.In(feedTz).Format("20060102")

	if feed.CalendarStartDate > todayThere {
		return false, nil
	}
	if feed.CalendarEndDate < todayThere {
		return false, nil
	}

	return true, nil
}
