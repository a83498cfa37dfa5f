package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
)

// Zip is an archive backed by a zip file.
type Zip struct {
	files  map[string]*zip.File
	closer io.Closer
}

// NewZip reads a zip file held in memory.
func NewZip(buf []byte) (*Zip, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}
	return newZip(r, nil), nil
}

// OpenZip opens a zip file on disk.
func OpenZip(filename string) (*Zip, error) {
	r, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("unzipping %s: %w", filename, err)
	}
	return newZip(&r.Reader, r), nil
}

func newZip(r *zip.Reader, closer io.Closer) *Zip {
	z := &Zip{files: map[string]*zip.File{}, closer: closer}
	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if _, found := z.files[name]; found {
			continue
		}
		z.files[name] = f
	}
	return z
}

func (z *Zip) Has(name string) bool {
	_, found := z.files[name]
	return found
}

func (z *Zip) Names() []string {
	names := make([]string, 0, len(z.files))
	for name := range z.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (z *Zip) Open(name string) (io.ReadCloser, error) {
	f, found := z.files[name]
	if !found {
		return nil, notExist(name)
	}
	return f.Open()
}

func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}
