// Package staging хранит состояние формы создания или редактирования
// заметки: текст, рисунок и изображения, еще не отправленные на сервер.
//
// Новые изображения сначала копируются во временные handle (Spool) и
// кодируются в data URL только при отправке. Каждый handle освобождается
// ровно один раз: при удалении изображения, после успешной отправки или
// при отмене формы. Неудачная отправка оставляет форму как есть.
package staging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"keeper-notes/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyNote форма пуста: нет ни текста, ни изображений, ни рисунка
	ErrEmptyNote = errors.New("note is empty")
	// ErrFileTooLarge файл превышает допустимый размер
	ErrFileTooLarge = errors.New("file is too large")
	// ErrInvalidType недопустимый тип файла
	ErrInvalidType = errors.New("unsupported file type")
	// ErrTooManyFiles превышено число загружаемых файлов
	ErrTooManyFiles = errors.New("too many files")
	// ErrImageNotFound изображения с таким ID нет в форме
	ErrImageNotFound = errors.New("image not found")
)

// mimeTypes допустимые расширения изображений
var mimeTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Limits ограничения на загружаемые изображения
type Limits struct {
	MaxFiles    int   // Максимум новых изображений в форме
	MaxFileSize int64 // Максимальный размер одного файла в байтах
}

// DefaultLimits ограничения по умолчанию
var DefaultLimits = Limits{MaxFiles: 5, MaxFileSize: 5 << 20}

// Creator создает заметку
type Creator interface {
	Create(ctx context.Context, draft model.Draft) (model.Note, error)
}

// Updater обновляет заметку
type Updater interface {
	Update(ctx context.Context, id string, patch model.NotePatch) (model.Note, error)
}

// entry изображение формы: уже сохраненное на сервере (remote) или загруженное локально (handle)
type entry struct {
	id     string
	name   string
	remote *model.Image
	handle Handle
}

// Form состояние формы заметки
type Form struct {
	spool  Spool
	limits Limits
	log    zerolog.Logger

	mu      sync.Mutex
	title   string
	content string
	drawing string
	images  []entry
}

// Option настройка Form
type Option func(*Form)

// WithLimits задает ограничения на изображения
func WithLimits(l Limits) Option {
	return func(f *Form) {
		if l.MaxFiles > 0 {
			f.limits.MaxFiles = l.MaxFiles
		}
		if l.MaxFileSize > 0 {
			f.limits.MaxFileSize = l.MaxFileSize
		}
	}
}

// WithLogger задает логгер
func WithLogger(log zerolog.Logger) Option {
	return func(f *Form) {
		f.log = log
	}
}

// NewForm создает пустую форму
func NewForm(spool Spool, opts ...Option) *Form {
	f := &Form{
		spool:  spool,
		limits: DefaultLimits,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EditForm создает форму, заполненную данными существующей заметки
func EditForm(note model.Note, spool Spool, opts ...Option) *Form {
	f := NewForm(spool, opts...)
	f.title = note.Title
	f.content = note.Content
	f.drawing = note.Drawing
	for _, img := range note.Images {
		id := img.ID
		if id == "" {
			id = uuid.NewString()
		}
		f.images = append(f.images, entry{id: id, name: img.Name, remote: &img})
	}
	return f
}

// SetTitle задает заголовок
func (f *Form) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
}

// SetContent задает содержимое
func (f *Form) SetContent(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
}

// SetDrawing задает рисунок (закодированное изображение)
func (f *Form) SetDrawing(drawing string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drawing = drawing
}

// ClearDrawing удаляет рисунок
func (f *Form) ClearDrawing() {
	f.SetDrawing("")
}

// AddImage проверяет и загружает изображение, возвращает его ID в форме
func (f *Form) AddImage(name string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := mimeTypes[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidType, name)
	}
	if size > f.limits.MaxFileSize {
		return "", fmt.Errorf("%w: %s", ErrFileTooLarge, name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stagedLocked() >= f.limits.MaxFiles {
		return "", fmt.Errorf("%w: at most %d", ErrTooManyFiles, f.limits.MaxFiles)
	}

	h, err := f.spool.Stage(name, r, f.limits.MaxFileSize)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	f.images = append(f.images, entry{id: id, name: filepath.Base(name), handle: h})
	f.log.Debug().Str("image_id", id).Str("name", name).Msg("image staged")
	return id, nil
}

// RemoveImage удаляет изображение из формы; локальное изображение освобождается
func (f *Form) RemoveImage(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, e := range f.images {
		if e.id != id {
			continue
		}
		f.images = append(f.images[:i:i], f.images[i+1:]...)
		f.release(e)
		return nil
	}
	return ErrImageNotFound
}

// Images возвращает ID изображений формы в порядке отображения
func (f *Form) Images() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.images))
	for i, e := range f.images {
		out[i] = e.id
	}
	return out
}

// Staged возвращает число локально загруженных изображений
func (f *Form) Staged() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stagedLocked()
}

// IsEmpty проверяет, что в форме нет ни текста, ни изображений, ни рисунка
func (f *Form) IsEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isEmptyLocked()
}

// SubmitCreate отправляет форму как новую заметку. При успехе форма очищается.
func (f *Form) SubmitCreate(ctx context.Context, c Creator) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isEmptyLocked() {
		return model.Note{}, ErrEmptyNote
	}

	images, err := f.encodeLocked(ctx)
	if err != nil {
		return model.Note{}, err
	}

	note, err := c.Create(ctx, model.Draft{
		Title:   f.title,
		Content: f.content,
		Images:  images,
		Drawing: f.drawing,
	})
	if err != nil {
		return model.Note{}, err
	}

	f.resetLocked()
	return note, nil
}

// SubmitUpdate отправляет форму как изменение заметки id. При успехе форма очищается.
func (f *Form) SubmitUpdate(ctx context.Context, u Updater, id string) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isEmptyLocked() {
		return model.Note{}, ErrEmptyNote
	}

	images, err := f.encodeLocked(ctx)
	if err != nil {
		return model.Note{}, err
	}

	title := strings.TrimSpace(f.title)
	if title == "" {
		title = model.DefaultTitle
	}
	content := strings.TrimSpace(f.content)
	drawing := f.drawing
	patch := model.NotePatch{
		Title:   &title,
		Content: &content,
		Images:  &images,
		Drawing: &drawing,
	}

	note, err := u.Update(ctx, id, patch)
	if err != nil {
		return model.Note{}, err
	}

	f.resetLocked()
	return note, nil
}

// Cancel освобождает все локальные изображения и очищает форму
func (f *Form) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// encodeLocked собирает изображения формы, кодируя локальные в data URL параллельно
func (f *Form) encodeLocked(ctx context.Context) ([]model.Image, error) {
	images := make([]model.Image, len(f.images))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range f.images {
		if e.remote != nil {
			images[i] = *e.remote
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := encodeDataURL(e.name, e.handle)
			if err != nil {
				return fmt.Errorf("encode %s: %w", e.name, err)
			}
			images[i] = model.Image{ID: e.id, Data: data, Name: e.name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func encodeDataURL(name string, h Handle) (string, error) {
	rc, err := h.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return DataURL(name, raw)
}

// DataURL кодирует содержимое изображения в data URL; тип берется из расширения name
func DataURL(name string, data []byte) (string, error) {
	mime, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidType, name)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (f *Form) resetLocked() {
	for _, e := range f.images {
		f.release(e)
	}
	f.images = nil
	f.title = ""
	f.content = ""
	f.drawing = ""
}

func (f *Form) release(e entry) {
	if e.handle == nil {
		return
	}
	if err := e.handle.Release(); err != nil {
		f.log.Warn().Err(err).Str("image_id", e.id).Msg("failed to release staged image")
	}
}

func (f *Form) stagedLocked() int {
	n := 0
	for _, e := range f.images {
		if e.handle != nil {
			n++
		}
	}
	return n
}

func (f *Form) isEmptyLocked() bool {
	return strings.TrimSpace(f.title) == "" &&
		strings.TrimSpace(f.content) == "" &&
		len(f.images) == 0 &&
		f.drawing == ""
}
