package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"keeper-notes/internal/model"
	"keeper-notes/internal/richtext"

	"gopkg.in/yaml.v3"
)

// Форматы вывода
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

const previewLen = 40

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// noteView заметка в виде для вывода
type noteView struct {
	ID         string   `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Content    string   `json:"content" yaml:"content"`
	Favorite   bool     `json:"favorite" yaml:"favorite"`
	Images     []string `json:"images,omitempty" yaml:"images,omitempty"`
	HasDrawing bool     `json:"hasDrawing" yaml:"has_drawing"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt  string   `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

func viewOf(n model.Note) noteView {
	v := noteView{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		Favorite:   n.IsFavorite,
		HasDrawing: n.HasDrawing(),
		Tags:       n.Tags,
		CreatedAt:  formatTime(n.CreatedAt),
		UpdatedAt:  formatTime(n.UpdatedAt),
	}
	for _, img := range n.Images {
		v.Images = append(v.Images, img.ID)
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

// encode выводит v в формате json или yaml
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printNotes(w io.Writer, format string, list []model.Note) error {
	views := make([]noteView, len(list))
	for i, n := range list {
		views[i] = viewOf(n)
	}
	if format != formatTable {
		return encode(w, format, views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFAV\tIMAGES\tPREVIEW")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			n.ID, n.Title, mark(n.IsFavorite), len(n.Images), preview(n.Content))
	}
	return tw.Flush()
}

func printNote(w io.Writer, format string, n model.Note) error {
	if format != formatTable {
		return encode(w, format, viewOf(n))
	}

	v := viewOf(n)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", v.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", v.Title)
	fmt.Fprintf(tw, "Favorite:\t%s\n", mark(v.Favorite))
	if len(v.Images) > 0 {
		fmt.Fprintf(tw, "Images:\t%s\n", strings.Join(v.Images, ", "))
	}
	if v.HasDrawing {
		fmt.Fprintf(tw, "Drawing:\tyes\n")
	}
	if len(v.Tags) > 0 {
		fmt.Fprintf(tw, "Tags:\t%s\n", strings.Join(v.Tags, ", "))
	}
	if v.CreatedAt != "" {
		fmt.Fprintf(tw, "Created:\t%s\n", v.CreatedAt)
	}
	if v.UpdatedAt != "" {
		fmt.Fprintf(tw, "Updated:\t%s\n", v.UpdatedAt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", richtext.PlainText(n.Content))
	return err
}

func printStats(w io.Writer, format string, s model.Stats) error {
	if format != formatTable {
		return encode(w, format, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total:\t%d\n", s.Total)
	fmt.Fprintf(tw, "Favorites:\t%d\n", s.Favorites)
	fmt.Fprintf(tw, "With images:\t%d\n", s.WithImages)
	fmt.Fprintf(tw, "With drawings:\t%d\n", s.WithDrawings)
	return tw.Flush()
}

func printUser(w io.Writer, format string, u model.User) error {
	if format != formatTable {
		return encode(w, format, u)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range [][2]string{
		{"Name", u.Name}, {"Email", u.Email}, {"Phone", u.Phone}, {"Avatar", u.Avatar},
	} {
		if row[1] != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
		}
	}
	return tw.Flush()
}

func mark(on bool) string {
	if on {
		return "*"
	}
	return ""
}

// preview первая строка текста заметки, обрезанная до previewLen рун
func preview(content string) string {
	text := strings.TrimSpace(richtext.PlainText(content))
	text, _, _ = strings.Cut(text, "\n")
	runes := []rune(text)
	if len(runes) > previewLen {
		return string(runes[:previewLen-1]) + "…"
	}
	return text
}
