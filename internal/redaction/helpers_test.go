package redaction

import (
	"reflect"
	"strings"
	"testing"
)

// layout places every word on a fixed grid: column c of row r spans
// x = [100c, 100c+80], y = [40r, 40r+30]
func layout(lines ...string) (TokenStream, string) {
	var stream TokenStream
	for row, line := range lines {
		for col, word := range strings.Fields(line) {
			x, y := col*100, row*40
			stream = append(stream, Token{X1: x, Y1: y, X2: x + 80, Y2: y + 30, Text: word})
		}
	}
	return stream, strings.Join(lines, "\n")
}

func newDocument(lines ...string) *Document {
	stream, text := layout(lines...)
	return &Document{
		Default:      stream,
		Raw:          stream,
		Regional:     stream,
		DefaultText:  text,
		RegionalText: text,
		Width:        1000,
		Height:       800,
	}
}

func cell(row, col int) Rectangle {
	return Rectangle{X1: col * 100, Y1: row * 40, X2: col*100 + 80, Y2: row*40 + 30}
}

func span(row, fromCol, toCol int) Rectangle {
	return Rectangle{X1: fromCol * 100, Y1: row * 40, X2: toCol*100 + 80, Y2: row*40 + 30}
}

func assertField(t *testing.T, got FieldResult, value string, rects ...Rectangle) {
	t.Helper()
	if got.Value != value {
		t.Errorf("value = %q, want %q", got.Value, value)
	}
	if !reflect.DeepEqual(got.Rectangles, rects) {
		t.Errorf("rectangles = %v, want %v", got.Rectangles, rects)
	}
}

func assertNotFound(t *testing.T, got FieldResult) {
	t.Helper()
	if got.Found() {
		t.Errorf("expected no match, got %q %v", got.Value, got.Rectangles)
	}
}
