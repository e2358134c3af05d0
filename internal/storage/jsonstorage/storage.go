package jsonstorage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/storage"
	"github.com/pkg/errors"
)

const defaultFileMode os.FileMode = 0644

type Options struct {
	// Indent writes the array one field per line.
	Indent bool
	// Sync fsyncs the temporary file before it replaces the original.
	Sync bool
	// TruncateOnOpen discards whatever the file holds.
	TruncateOnOpen bool
	FileMode       os.FileMode
}

// JSONStorage keeps a collection as one json array in a single file.
type JSONStorage struct {
	mu     sync.Mutex
	path   string
	opts   Options
	closed bool
}

// Open prepares the file at path, creating it with an empty array when
// it does not exist yet.
func Open(path string, opts Options) (*JSONStorage, error) {
	if opts.FileMode == 0 {
		opts.FileMode = defaultFileMode
	}

	s := &JSONStorage{path: path, opts: opts}

	_, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) || opts.TruncateOnOpen:
		if err := s.writeAndSwap([]byte("[]\n")); err != nil {
			return nil, errors.Wrapf(err, "could not initialize %s", path)
		}
	case err != nil:
		return nil, errors.Wrapf(storage.ErrStorageFailed, "could not stat %s: %s", path, err.Error())
	}

	return s, nil
}

func (s *JSONStorage) Path() string {
	return s.path
}

// Size of the backing file in bytes.
func (s *JSONStorage) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, errors.Wrapf(storage.ErrStorageFailed, "could not measure %s: %s", s.path, err.Error())
	}

	return info.Size(), nil
}

func (s *JSONStorage) Load(ctx context.Context) ([]*data.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*data.Record, 0), nil
		}
		return nil, errors.Wrapf(storage.ErrStorageFailed, "could not read %s: %s", s.path, err.Error())
	}

	records, err := storage.Decode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "file %s", s.path)
	}

	return records, nil
}

func (s *JSONStorage) Save(ctx context.Context, records []*data.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := storage.Encode(records, s.opts.Indent)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	return s.writeAndSwap(b)
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	s.closed = true
	return nil
}

// writeAndSwap writes b next to the target and renames it over the target,
// so a reader sees either the old or the new collection.
func (s *JSONStorage) writeAndSwap(b []byte) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmpF, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not create temporary file for %s: %s", s.path, err.Error())
	}

	tmpName := tmpF.Name()
	swapped := false
	defer func() {
		if !swapped {
			_ = tmpF.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := tmpF.Write(b)
	if err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not write into %s: %s", tmpName, err.Error())
	}

	if n != len(b) {
		return errors.Wrapf(storage.ErrStorageFailed, "short write into %s: %d of %d bytes", tmpName, n, len(b))
	}

	if s.opts.Sync {
		if err := tmpF.Sync(); err != nil {
			return errors.Wrapf(storage.ErrStorageFailed, "could not sync %s: %s", tmpName, err.Error())
		}
	}

	if err := tmpF.Close(); err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not close %s: %s", tmpName, err.Error())
	}

	if err := os.Chmod(tmpName, s.opts.FileMode); err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not chmod %s: %s", tmpName, err.Error())
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not swap %s for %s: %s", s.path, tmpName, err.Error())
	}

	swapped = true
	return nil
}
