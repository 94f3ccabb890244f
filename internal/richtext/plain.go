// Package richtext работает с HTML-разметкой содержимого заметок
package richtext

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText извлекает текст из HTML-разметки: теги отбрасываются,
// сущности (&amp; и т.п.) декодируются, содержимое script/style пропускается.
// Разметка с ошибками не приводит к ошибке: токенизатор читает ее как есть.
func PlainText(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return markup
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF или ошибка чтения: возвращаем накопленный текст
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				writeSpace(&b)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				writeSpace(&b)
			}
		}
	}
}

// writeSpace разделяет текст соседних блоков, не удваивая пробелы
func writeSpace(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteByte(' ')
}

// Contains проверяет, содержит ли текст заметки подстроку term без учета регистра
func Contains(markup, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(PlainText(markup)), strings.ToLower(term))
}
