// Package hosts contains one adapter per hosting backend, each mapping a file
// and the user's settings to an upload request and its response to a URL.
package hosts

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"

	"github.com/filedrop-io/go-filedrop/upload/network"
)

// File is the resolved upload content handed to an adapter.
type File struct {
	Name     string
	Path     string
	Buffer   []byte
	Size     int64
	MIMEType string
}

// UploadOptions wire an attempt to the shared registries via the transport.
type UploadOptions struct {
	TaskID         string
	ReportProgress bool
}

// Service is one hosting backend.
type Service interface {
	Name() string
	// Accepts reports whether the service can take this file; reason explains
	// a rejection. Rejected services are skipped instead of attempted.
	Accepts(file File) (bool, string)
	// SupportsBackgroundRetry reports whether a failed attempt of this service
	// may be speculatively retried in the background.
	SupportsBackgroundRetry() bool
	// Upload sends the file and returns the shareable URL.
	Upload(ctx context.Context, file File, opts UploadOptions) (string, error)
}

func (f File) payload() network.Payload {
	return network.Payload{
		Path:        f.Path,
		Buffer:      f.Buffer,
		FileName:    f.Name,
		Size:        f.Size,
		ContentType: f.MIMEType,
	}
}

// matchesAny reports whether the lowercased file name matches any of the glob
// patterns.
func matchesAny(patterns []string, fileName string) (bool, string) {
	lowered := strings.ToLower(fileName)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, lowered); err == nil && ok {
			return true, pattern
		}
	}
	return false, ""
}

// checkSizeLimit returns a rejection reason when the file exceeds limit, given
// as a human-readable size string like "200MB".
func checkSizeLimit(file File, limit string) (bool, string) {
	limitBytes, err := units.FromHumanSize(limit)
	if err != nil {
		return true, ""
	}
	if file.Size > limitBytes {
		return false, "file is larger than the service limit of " + limit +
			" (" + units.HumanSize(float64(file.Size)) + ")"
	}
	return true, ""
}
