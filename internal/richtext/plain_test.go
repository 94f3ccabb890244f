package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{name: "plain string", markup: "just text", want: "just text"},
		{name: "inline tags", markup: "<p>Buy <b>milk</b></p>", want: "Buy milk"},
		{name: "entities", markup: "salt &amp; pepper", want: "salt & pepper"},
		{name: "blocks separated", markup: "<p>one</p><p>two</p>", want: "one two"},
		{name: "line break", markup: "a<br/>b", want: "a b"},
		{name: "script skipped", markup: "<script>alert(1)</script>ok", want: "ok"},
		{name: "empty", markup: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.markup))
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("<p>Quarterly <em>Report</em></p>", "report"))
	assert.True(t, Contains("anything", ""))
	assert.False(t, Contains("<p>milk</p>", "p>"), "Expected markup not to be searchable")
	assert.False(t, Contains("<p>milk</p>", "xyz"))
}
