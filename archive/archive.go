// Package archive gives access to the files of a GTFS bundle, be it
// a zip file or an unpacked directory.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
)

// Archive is a set of named files. Names are base names such as
// "stops.txt", regardless of where in the bundle the file lives.
type Archive interface {
	// Has reports whether the named file exists.
	Has(name string) bool

	// Names lists all files, sorted.
	Names() []string

	// Open returns the contents of the named file, or an error
	// wrapping fs.ErrNotExist.
	Open(name string) (io.ReadCloser, error)

	// Close releases the archive, removing any temporary files.
	Close() error
}

// Progress is told about each file once it has been read. done
// counts files read so far, out of total.
type Progress func(name string, done, total int)

// ReadFiles reads every file in names that exists in a. Files absent
// from the archive are skipped. The context is checked before each
// file, so a cancellation takes effect between files and never
// mid-file.
func ReadFiles(ctx context.Context, a Archive, names []string, progress Progress) (map[string][]byte, error) {
	present := []string{}
	for _, name := range names {
		if a.Has(name) {
			present = append(present, name)
		}
	}

	files := map[string][]byte{}
	for i, name := range present {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf, err := readFile(a, name)
		if err != nil {
			return nil, err
		}
		files[name] = buf

		if progress != nil {
			progress(name, i+1, len(present))
		}
	}

	return files, nil
}

func readFile(a Archive, name string) ([]byte, error) {
	rc, err := a.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return buf, nil
}

func notExist(name string) error {
	return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
