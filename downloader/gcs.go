package downloader

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// parseGCSURL splits gs://bucket/path/to/object.
func parseGCSURL(url string) (string, string, error) {
	rest, found := strings.CutPrefix(url, "gs://")
	if !found {
		return "", "", fmt.Errorf("not a gs:// url: %s", url)
	}
	bucket, object, found := strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed gs:// url: %s", url)
	}
	return bucket, object, nil
}

// Gets an object from Google Cloud Storage, using application
// default credentials. Doesn't cache.
func GCSGet(ctx context.Context, url string, options GetOptions) ([]byte, error) {
	bucket, object, err := parseGCSURL(url)
	if err != nil {
		return nil, err
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", url, err)
	}
	defer r.Close()

	return readLimited(r, options.MaxSize)
}
