package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotePatch частичное обновление заметки.
// nil-указатель означает, что поле отсутствует; указатель на пустую строку
// в Drawing означает удаление рисунка.
type NotePatch struct {
	Title      *string
	Content    *string
	Images     *[]Image
	Drawing    *string
	IsFavorite *bool
	Tags       *[]string
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

// PatchFromNote строит патч, содержащий все поля заметки
func PatchFromNote(n Note) NotePatch {
	n = n.Clone()
	p := NotePatch{
		Title:      &n.Title,
		Content:    &n.Content,
		Drawing:    &n.Drawing,
		IsFavorite: &n.IsFavorite,
		Tags:       &n.Tags,
	}
	images := n.Images
	if images == nil {
		images = []Image{}
	}
	p.Images = &images
	if !n.CreatedAt.IsZero() {
		p.CreatedAt = &n.CreatedAt
	}
	if !n.UpdatedAt.IsZero() {
		p.UpdatedAt = &n.UpdatedAt
	}
	return p
}

// IsEmpty проверяет, что патч не содержит ни одного поля
func (p *NotePatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Images == nil && p.Drawing == nil &&
		p.IsFavorite == nil && p.Tags == nil && p.CreatedAt == nil && p.UpdatedAt == nil
}

// Apply накладывает присутствующие поля патча на заметку (shallow merge).
// ID заметки патчем не меняется.
func (p *NotePatch) Apply(n Note) Note {
	n = n.Clone()
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Images != nil {
		n.Images = append([]Image(nil), (*p.Images)...)
	}
	if p.Drawing != nil {
		n.Drawing = *p.Drawing
	}
	if p.IsFavorite != nil {
		n.IsFavorite = *p.IsFavorite
	}
	if p.Tags != nil {
		n.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.CreatedAt != nil {
		n.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		n.UpdatedAt = *p.UpdatedAt
	}
	return n
}

// MarshalJSON сериализует только присутствующие поля; пустой Drawing кодируется как null
func (p NotePatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Content != nil {
		out["content"] = *p.Content
	}
	if p.Images != nil {
		images := *p.Images
		if images == nil {
			images = []Image{}
		}
		out["images"] = images
	}
	if p.Drawing != nil {
		if *p.Drawing == "" {
			out["drawing"] = nil
		} else {
			out["drawing"] = *p.Drawing
		}
	}
	if p.IsFavorite != nil {
		out["isFavorite"] = *p.IsFavorite
	}
	if p.Tags != nil {
		out["tags"] = *p.Tags
	}
	if p.CreatedAt != nil {
		out["createdAt"] = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		out["updatedAt"] = *p.UpdatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON запоминает, какие ключи присутствовали в объекте.
// null для drawing, images и tags означает "поле присутствует и пусто".
func (p *NotePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NotePatch{}

	for key, value := range raw {
		var err error
		switch key {
		case "title":
			p.Title, err = decodeField[string](value)
		case "content":
			p.Content, err = decodeField[string](value)
		case "images":
			p.Images, err = decodeField[[]Image](value)
		case "drawing":
			p.Drawing, err = decodeField[string](value)
		case "isFavorite":
			p.IsFavorite, err = decodeField[bool](value)
		case "tags":
			p.Tags, err = decodeField[[]string](value)
		case "createdAt":
			p.CreatedAt, err = decodeTime(value)
		case "updatedAt":
			p.UpdatedAt, err = decodeTime(value)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

// decodeField декодирует значение поля; null дает нулевое значение типа
func decodeField[T any](value json.RawMessage) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(value, v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeTime декодирует временную метку; null считается отсутствием значения
func decodeTime(value json.RawMessage) (*time.Time, error) {
	if string(value) == "null" {
		return nil, nil
	}
	return decodeField[time.Time](value)
}
