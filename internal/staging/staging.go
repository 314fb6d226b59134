// Package staging holds uploaded files on disk for the duration of their processing.
package staging

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const (
	dirPerm      = 0o750
	filePrefix   = "cv-"
	fallbackName = "upload"

	// Keeps cv-<random>-<name> well under the usual 255 byte file name limit.
	maxSafeNameLen = 100
)

// Area is the staging directory. Each staged upload gets its own uniquely named file.
type Area struct {
	fs  afero.Fs
	dir string
}

// New prepares the staging directory, creating it when absent.
func New(fs afero.Fs, dir string) (*Area, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("staging directory is required")
	}

	if err := fs.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create staging directory %q: %w", dir, err)
	}

	return &Area{fs: fs, dir: dir}, nil
}

// Dir returns the staging directory path.
func (a *Area) Dir() string { return a.dir }

// File is a staged upload. It must be released once processing is done.
type File struct {
	afero.File

	fs   afero.Fs
	path string
	once sync.Once
	err  error
}

// Path is the location of the staged file inside the staging area.
func (f *File) Path() string { return f.path }

// Release closes and removes the staged file. Calling it more than once is safe.
func (f *File) Release() error {
	f.once.Do(func() {
		closeErr := f.File.Close()
		removeErr := f.fs.Remove(f.path)
		f.err = errors.Join(closeErr, removeErr)
	})
	return f.err
}

// Stage copies r into a fresh file named after the upload and rewinds it for reading.
func (a *Area) Stage(name string, r io.Reader) (*File, error) {
	pattern := filePrefix + "*-" + SafeName(name)

	tmp, err := afero.TempFile(a.fs, a.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	staged := &File{File: tmp, fs: a.fs, path: tmp.Name()}

	if _, err := io.Copy(tmp, r); err != nil {
		return nil, errors.Join(fmt.Errorf("write staged file: %w", err), staged.Release())
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Join(fmt.Errorf("rewind staged file: %w", err), staged.Release())
	}

	return staged, nil
}

// SafeName reduces an uploaded file name to a plain base name made of
// letters, digits, dots, dashes and underscores. Long names are shortened,
// keeping the extension.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	safe := strings.Trim(b.String(), "._")
	if safe == "" {
		return fallbackName
	}

	if len(safe) > maxSafeNameLen {
		ext := filepath.Ext(safe)
		if len(ext) >= maxSafeNameLen/2 {
			ext = ""
		}
		safe = strings.TrimRight(safe[:maxSafeNameLen-len(ext)], "._") + ext
	}

	return safe
}
