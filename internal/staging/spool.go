package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// ErrReleased возвращается при обращении к уже освобожденному handle
var ErrReleased = errors.New("handle already released")

// Handle временное хранилище байтов одного изображения
type Handle interface {
	// Open открывает данные для чтения
	Open() (io.ReadCloser, error)
	// Release освобождает ресурсы; повторный вызов возвращает ErrReleased
	Release() error
}

// Spool выделяет Handle под загружаемое изображение
type Spool interface {
	// Stage копирует не более limit байт из r; если данных больше, возвращает ErrFileTooLarge
	Stage(name string, r io.Reader, limit int64) (Handle, error)
}

// FileSpool хранит изображения во временных файлах на afero.Fs
type FileSpool struct {
	fs  afero.Fs
	dir string
}

// NewFileSpool создает spool в каталоге dir (пустой dir означает системный временный каталог)
func NewFileSpool(fs afero.Fs, dir string) *FileSpool {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileSpool{fs: fs, dir: dir}
}

// Stage реализует Spool
func (s *FileSpool) Stage(name string, r io.Reader, limit int64) (Handle, error) {
	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	f, err := afero.TempFile(s.fs, s.dir, "keeper-stage-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("spool %s: %w", name, err)
	case closeErr != nil:
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("close %s: %w", path, closeErr)
	case n > limit:
		_ = s.fs.Remove(path)
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
	}

	return &fileHandle{fs: s.fs, path: path}, nil
}

type fileHandle struct {
	fs   afero.Fs
	path string

	mu       sync.Mutex
	released bool
}

func (h *fileHandle) Open() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.fs.Open(h.path)
}

func (h *fileHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased
	}
	h.released = true
	if err := h.fs.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", h.path, err)
	}
	return nil
}
