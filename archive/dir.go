package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Dir is an archive backed by a directory of files.
type Dir struct {
	Path string

	temporary bool
}

// OpenDir uses an existing directory.
func OpenDir(dir string) (*Dir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Dir{Path: dir}, nil
}

// Unpack copies the named files of src into a fresh temporary
// directory, which is removed when the returned Dir is closed.
func Unpack(ctx context.Context, src Archive, names []string, progress Progress) (*Dir, error) {
	tmp, err := os.MkdirTemp("", "gtfs-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	d := &Dir{Path: tmp, temporary: true}

	files, err := ReadFiles(ctx, src, names, progress)
	if err != nil {
		d.Close()
		return nil, err
	}

	for name, buf := range files {
		err = os.WriteFile(filepath.Join(tmp, name), buf, 0644)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	return d, nil
}

func (d *Dir) Has(name string) bool {
	info, err := os.Stat(filepath.Join(d.Path, name))
	return err == nil && !info.IsDir()
}

func (d *Dir) Names() []string {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (d *Dir) Open(name string) (io.ReadCloser, error) {
	if filepath.Base(name) != name {
		return nil, notExist(name)
	}
	return os.Open(filepath.Join(d.Path, name))
}

func (d *Dir) Close() error {
	if !d.temporary {
		return nil
	}
	return os.RemoveAll(d.Path)
}
