// Package network executes one streaming HTTP upload at a time: the file's
// bytes go out in fixed-size chunks through a pipe, so socket backpressure
// suspends file reads instead of growing buffers, and each chunk boundary is a
// progress report and cancellation check point.
package network

import "time"

// BodyEncoding selects how the file bytes form the request body.
type BodyEncoding string

const (
	// BodyEncodingMultipart wraps the file in a multipart/form-data envelope
	// with text fields around the file part.
	BodyEncodingMultipart BodyEncoding = "multipart"
	// BodyEncodingBinary sends the raw file as the entire request body.
	BodyEncodingBinary BodyEncoding = "binary"
)

// Field is one ordered text field of a multipart body.
type Field struct {
	Name  string
	Value string
}

// Request describes one upload request built by a service adapter.
type Request struct {
	URL      string
	Method   string
	Encoding BodyEncoding
	// FileField is the multipart part name carrying the file. Ignored for
	// binary bodies.
	FileField string
	// Fields are written before the file part, in declared order.
	Fields []Field
	// Headers must already be sanitized by the adapter.
	Headers map[string]string
	Timeout time.Duration
}

// Payload is the file content to stream. Exactly one of Path and Buffer is
// set.
type Payload struct {
	Path        string
	Buffer      []byte
	FileName    string
	Size        int64
	ContentType string
}
