package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLDeclaredFieldPath(t *testing.T) {
	tests := []struct {
		name string
		body string
		opts Options
		want string
	}{
		{
			name: "simple dotted path",
			body: `{"data":{"url":"https://host/x"}}`,
			opts: Options{Shape: ShapeJSON, FieldPath: "data.url"},
			want: "https://host/x",
		},
		{
			name: "bracket array index",
			body: `{"files":[{"url":"https://host/first"},{"url":"https://host/second"}]}`,
			opts: Options{Shape: ShapeJSON, FieldPath: "files[0].url"},
			want: "https://host/first",
		},
		{
			name: "dotted array index",
			body: `{"files":[{"url":"https://host/first"}]}`,
			opts: Options{Shape: ShapeJSON, FieldPath: "files.0.url"},
			want: "https://host/first",
		},
		{
			name: "path into second element",
			body: `{"files":[{"url":"https://host/first"},{"url":"https://host/second"}]}`,
			opts: Options{Shape: ShapeJSON, FieldPath: "files[1].url"},
			want: "https://host/second",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.body, tt.opts))
		})
	}
}

func TestURLCommonFieldProbe(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "top level url",
			body: `{"url":"https://host/a"}`,
			want: "https://host/a",
		},
		{
			name: "nested data link",
			body: `{"status":"ok","data":{"link":"https://host/b"}}`,
			want: "https://host/b",
		},
		{
			name: "gofile download page",
			body: `{"status":"ok","data":{"downloadPage":"https://gofile.io/d/AbC"}}`,
			want: "https://gofile.io/d/AbC",
		},
		{
			name: "files array",
			body: `{"files":[{"url":"https://host/c"}]}`,
			want: "https://host/c",
		},
		{
			name: "non-url field value is skipped",
			body: `{"url":"not a url at all","link":"https://host/real"}`,
			want: "https://host/real",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.body, Options{}))
		})
	}
}

func TestURLFailedPathFallsBackToProbe(t *testing.T) {
	body := `{"data":{"url":"https://host/x"}}`
	got := URL(body, Options{Shape: ShapeJSON, FieldPath: "no.such.path"})
	assert.Equal(t, "https://host/x", got)
}

func TestURLPlainText(t *testing.T) {
	got := URL("https://files.catbox.moe/q2n6cd.png\n", Options{Shape: ShapeText})
	assert.Equal(t, "https://files.catbox.moe/q2n6cd.png", got)
}

func TestURLPlainTextFirstLineOnly(t *testing.T) {
	got := URL("https://host/one\nhttps://host/two-longer", Options{})
	assert.Equal(t, "https://host/one", got)
}

func TestURLRegexFallbackTakesLongest(t *testing.T) {
	body := `<html><a href="https://host/s">s</a> stored at https://host/a-much-longer-path/file.bin now</html>`
	got := URL(body, Options{Shape: ShapeText})
	assert.Equal(t, "https://host/a-much-longer-path/file.bin", got)
}

func TestURLRelativeResolution(t *testing.T) {
	got := URL(`{"url":"/files/abc123"}`, Options{BaseURL: "https://uploads.example.com/api/upload"})
	assert.Equal(t, "https://uploads.example.com/files/abc123", got)

	got = URL("/files/abc123", Options{Shape: ShapeText, BaseURL: "https://uploads.example.com/api/upload"})
	assert.Equal(t, "https://uploads.example.com/files/abc123", got)
}

func TestURLLastResortRawBody(t *testing.T) {
	got := URL("  upload stored, no link available  ", Options{})
	assert.Equal(t, "upload stored, no link available", got)
}
