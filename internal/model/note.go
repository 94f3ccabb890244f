package model

import (
	"strings"
	"time"
)

// DefaultTitle подставляется вместо пустого заголовка при создании заметки
const DefaultTitle = "Untitled"

// Image представляет изображение, прикрепленное к заметке
type Image struct {
	ID   string `json:"id"`             // Идентификатор изображения внутри заметки
	Data string `json:"data,omitempty"` // data URL загруженного изображения
	URL  string `json:"url,omitempty"`  // Удаленный URL (если изображение хранится отдельно)
	Name string `json:"name,omitempty"` // Исходное имя файла
}

// Source возвращает данные изображения: data URL или удаленный URL
func (i Image) Source() string {
	if i.Data != "" {
		return i.Data
	}
	return i.URL
}

// Note представляет заметку (доменная модель)
type Note struct {
	ID         string    `json:"_id"`               // Идентификатор, назначенный сервером
	Title      string    `json:"title"`             // Заголовок заметки
	Content    string    `json:"content"`           // Содержание заметки (HTML разметка)
	Images     []Image   `json:"images,omitempty"`  // Изображения в порядке отображения
	Drawing    string    `json:"drawing,omitempty"` // Рисунок (закодированное изображение), пусто если нет
	IsFavorite bool      `json:"isFavorite"`        // Флаг избранного
	Tags       []string  `json:"tags,omitempty"`    // Теги (могут отсутствовать)
	CreatedAt  time.Time `json:"createdAt"`         // Дата создания
	UpdatedAt  time.Time `json:"updatedAt"`         // Дата последнего обновления
}

// HasImages проверяет, есть ли у заметки хотя бы одно изображение
func (n *Note) HasImages() bool {
	return len(n.Images) > 0
}

// HasDrawing проверяет, есть ли у заметки рисунок
func (n *Note) HasDrawing() bool {
	return n.Drawing != ""
}

// IsEmpty проверяет, пуста ли заметка
func (n *Note) IsEmpty() bool {
	return n.ID == "" && n.Title == "" && n.Content == ""
}

// Clone возвращает копию заметки, не разделяющую слайсы с оригиналом
func (n Note) Clone() Note {
	if n.Images != nil {
		n.Images = append([]Image(nil), n.Images...)
	}
	if n.Tags != nil {
		n.Tags = append([]string(nil), n.Tags...)
	}
	return n
}

// Draft - заметка, еще не сохраненная на сервере (без ID и временных меток)
type Draft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Images  []Image  `json:"images"`
	Drawing string   `json:"drawing,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Normalize обрезает пробелы и подставляет заголовок по умолчанию
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	d.Content = strings.TrimSpace(d.Content)
	if d.Images == nil {
		d.Images = []Image{}
	}
	return d
}

// IsEmpty проверяет, что в черновике нет ни текста, ни изображений, ни рисунка
func (d *Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Title) == "" &&
		strings.TrimSpace(d.Content) == "" &&
		len(d.Images) == 0 &&
		d.Drawing == ""
}

// ShareOptions параметры публикации заметки
type ShareOptions struct {
	Type string `json:"type"` // Вид доступа, например "public"
}

// ShareVisibilityPublic публичный доступ по ссылке
const ShareVisibilityPublic = "public"

// ShareResult результат публикации заметки
type ShareResult struct {
	URL     string // Ссылка на опубликованную заметку (может быть пустой)
	Message string // Сообщение сервера (может быть пустым)
}

// Stats агрегированная статистика по заметкам
type Stats struct {
	Total        int `json:"total" yaml:"total"`
	Favorites    int `json:"favorites" yaml:"favorites"`
	WithImages   int `json:"withImages" yaml:"with_images"`
	WithDrawings int `json:"withDrawings" yaml:"with_drawings"`
}
