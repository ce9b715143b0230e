// Package extract locates the hosted file's URL in a service response.
//
// Hosting services are heterogeneous: some return JSON with a well-known field,
// some return JSON with a shape only the user knows, some return the URL as
// plain text. Extraction is therefore a fixed ordered list of strategies, each
// total (value-or-none, never an error), composed by first success.
package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Shape is the declared response body format of a service.
type Shape string

const (
	// ShapeJSON declares the response body as a JSON document.
	ShapeJSON Shape = "json"
	// ShapeText declares the response body as plain text.
	ShapeText Shape = "text"
)

// Options control how the URL is located in the response body.
type Options struct {
	// Shape is the declared response format. An undeclared shape is probed as
	// JSON first and falls through to the text strategies.
	Shape Shape
	// FieldPath navigates the parsed JSON document, e.g. "data.url" or
	// "files[0].url". Both bracket and dotted numeric index forms are accepted.
	FieldPath string
	// BaseURL resolves a relative result (one starting with "/") against the
	// request's origin.
	BaseURL string
}

// Common response fields probed when no field path is given or the given path
// yields nothing. Ordered by how often hosting services use them.
var commonFieldPaths = []string{
	"url",
	"link",
	"href",
	"file",
	"download",
	"data.url",
	"data.link",
	"data.downloadPage",
	"result.url",
	"result.link",
	"files.0.url",
	"file.url",
	"direct_url",
	"image.url",
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// URL extracts the single URL string representing the hosted file from body.
// It always returns a value; as a last resort the trimmed raw body is returned
// and left for the caller's URL validation to reject.
func URL(body string, opts Options) string {
	if value, ok := fromJSON(body, opts); ok {
		return resolveRelative(value, opts.BaseURL)
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return firstLine(trimmed)
	}

	if match := longestURLMatch(trimmed); match != "" {
		return match
	}

	return resolveRelative(trimmed, opts.BaseURL)
}

func fromJSON(body string, opts Options) (string, bool) {
	if opts.Shape == ShapeText {
		return "", false
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &doc); err != nil {
		return "", false
	}

	if opts.FieldPath != "" {
		if value, ok := navigate(doc, opts.FieldPath); ok {
			return value, true
		}
	}

	for _, path := range commonFieldPaths {
		value, ok := navigate(doc, path)
		if ok && looksLikeURLOrPath(value) {
			return value, true
		}
	}

	return "", false
}

// navigate walks doc along a dotted path. Numeric segments index arrays; both
// "files[0].url" and "files.0.url" address the same element.
func navigate(doc interface{}, path string) (string, bool) {
	current := doc
	for _, segment := range splitPath(path) {
		switch node := current.(type) {
		case map[string]interface{}:
			value, ok := node[segment]
			if !ok {
				return "", false
			}
			current = value
		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return "", false
			}
			current = node[index]
		default:
			return "", false
		}
	}

	if s, ok := current.(string); ok && s != "" {
		return s, true
	}
	return "", false
}

func splitPath(path string) []string {
	normalized := strings.NewReplacer("[", ".", "]", "").Replace(path)
	var segments []string
	for _, segment := range strings.Split(normalized, ".") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func looksLikeURLOrPath(value string) bool {
	return strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://") ||
		strings.HasPrefix(value, "/")
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i != -1 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// longestURLMatch scans for URL-shaped substrings and returns the longest one.
// Longer matches are less likely to be truncated or partial.
func longestURLMatch(s string) string {
	var longest string
	for _, match := range urlPattern.FindAllString(s, -1) {
		if len(match) > len(longest) {
			longest = match
		}
	}
	return longest
}

func resolveRelative(value, baseURL string) string {
	if !strings.HasPrefix(value, "/") || baseURL == "" {
		return value
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return value
	}
	relative, err := url.Parse(value)
	if err != nil {
		return value
	}
	return base.ResolveReference(relative).String()
}
