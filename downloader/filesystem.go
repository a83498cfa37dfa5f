package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Filesystem caches downloaded files in a directory. Each cached
// file is stored next to a small JSON record of when it was
// retrieved, so the cache survives restarts.
type Filesystem struct {
	Dir    string
	Logger *zap.Logger

	TimeNow func() time.Time

	mutex sync.Mutex
}

type fsRecord struct {
	URL         string    `json:"url"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

func NewFilesystem(dir string, logger *zap.Logger) (*Filesystem, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Filesystem{
		Dir:     dir,
		Logger:  logger,
		TimeNow: time.Now,
	}, nil
}

func (f *Filesystem) paths(url string) (string, string) {
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
	base := filepath.Join(f.Dir, key)
	return base + ".body", base + ".json"
}

func (f *Filesystem) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	bodyPath, recordPath := f.paths(url)
	log := f.Logger.With(zap.String("url", url))

	if options.Cache {
		body, ok, err := f.lookup(bodyPath, recordPath, options.CacheTTL)
		if err != nil {
			log.Warn("reading cache", zap.Error(err))
		} else if ok {
			log.Debug("cache hit")
			return body, nil
		} else {
			log.Debug("cache miss")
		}
	}

	body, err := Fetch(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}

	if options.Cache {
		err = f.store(bodyPath, recordPath, url, body)
		if err != nil {
			return nil, fmt.Errorf("saving: %w", err)
		}
	}

	return body, nil
}

func (f *Filesystem) lookup(bodyPath, recordPath string, ttl time.Duration) ([]byte, bool, error) {
	buf, err := os.ReadFile(recordPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading record: %w", err)
	}

	var record fsRecord
	err = json.Unmarshal(buf, &record)
	if err != nil {
		return nil, false, fmt.Errorf("unmarshalling: %w", err)
	}

	if !record.RetrievedAt.Add(ttl).After(f.TimeNow()) {
		return nil, false, nil
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, false, fmt.Errorf("reading body: %w", err)
	}

	return body, true, nil
}

func (f *Filesystem) store(bodyPath, recordPath, url string, body []byte) error {
	err := os.WriteFile(bodyPath, body, 0644)
	if err != nil {
		return fmt.Errorf("writing body: %w", err)
	}

	buf, err := json.Marshal(fsRecord{URL: url, RetrievedAt: f.TimeNow().UTC()})
	if err != nil {
		return fmt.Errorf("marshalling: %w", err)
	}

	err = os.WriteFile(recordPath, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	return nil
}
