package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// TokenStore хранилище токена между запусками
type TokenStore interface {
	// Load возвращает сохраненный токен или пустую строку
	Load() (string, error)
	// Save сохраняет токен
	Save(token string) error
	// Clear удаляет сохраненный токен
	Clear() error
}

// TokenWatcher хранилище, умеющее сообщать об изменениях токена извне
type TokenWatcher interface {
	// Watch вызывает fn с новым значением токена (пустым при удалении),
	// пока ctx не отменен. known - токен, который уже известен вызывающему:
	// если к началу наблюдения хранилище содержит другое значение, fn
	// вызывается сразу.
	Watch(ctx context.Context, known string, fn func(token string)) error
}

// MemoryTokenStore хранит токен только в памяти процесса
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// Load возвращает токен
func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save сохраняет токен
func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear удаляет токен
func (s *MemoryTokenStore) Clear() error {
	return s.Save("")
}

// FileTokenStore хранит токен в файле
type FileTokenStore struct {
	fs   afero.Fs
	path string

	// armed вызывается, когда наблюдатель подписан на каталог (для тестов)
	armed func()
}

var (
	_ TokenStore   = (*FileTokenStore)(nil)
	_ TokenWatcher = (*FileTokenStore)(nil)
)

// NewFileTokenStore создает файловое хранилище токена
func NewFileTokenStore(fs afero.Fs, path string) *FileTokenStore {
	return &FileTokenStore{fs: fs, path: filepath.Clean(path)}
}

// Path возвращает путь к файлу токена
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load читает токен из файла; отсутствие файла не является ошибкой
func (s *FileTokenStore) Load() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save записывает токен в файл с правами 0600.
// Запись идет во временный файл с последующим переименованием, чтобы
// наблюдатели не увидели частично записанный токен.
func (s *FileTokenStore) Save(token string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Clear удаляет файл токена
func (s *FileTokenStore) Clear() error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Watch следит за файлом токена через fsnotify.
// Наблюдается каталог, так как файл может заменяться переименованием.
// Работает только с файловой системой ОС.
func (s *FileTokenStore) Watch(ctx context.Context, known string, fn func(token string)) error {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return errors.New("token watch requires the OS filesystem")
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// Изменения между получением known и подпиской на каталог
	last := known
	if token, err := s.Load(); err == nil && token != last {
		last = token
		fn(token)
	}
	if s.armed != nil {
		s.armed()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("token watch: %w", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			token, err := s.Load()
			if err != nil {
				continue
			}
			// Пропускаем повторные события с тем же содержимым
			if token == last {
				continue
			}
			last = token
			fn(token)
		}
	}
}
