// Package source resolves a caller-supplied content source (local path,
// in-memory buffer or remote URL) into the uploadable form the service
// adapters expect.
package source

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/melbahja/got"

	"github.com/filedrop-io/go-filedrop/upload/hosts"
)

// Buffers above this size are spilled to a temp file so the transport can
// stream them from disk instead of holding them resident.
const bufferSpillThreshold = 8 * 1024 * 1024

// Input is the caller's description of the content. Exactly one of Path,
// Buffer and RemoteURL must be set.
type Input struct {
	FileName  string
	Path      string
	Buffer    []byte
	RemoteURL string
	MIMEType  string
}

// Resolver turns Inputs into files the adapters can upload.
type Resolver struct {
	fileManager  fileutil.FileManager
	pathProvider pathutil.PathProvider
	pathChecker  pathutil.PathChecker
	logger       log.Logger
}

// NewResolver ...
func NewResolver(logger log.Logger) Resolver {
	return Resolver{
		fileManager:  fileutil.NewFileManager(),
		pathProvider: pathutil.NewPathProvider(),
		pathChecker:  pathutil.NewPathChecker(),
		logger:       logger,
	}
}

// Resolve produces the uploadable file for the input. A remote URL is
// downloaded to a temp dir first, so the resulting task always carries exactly
// one of a path or a buffer.
func (r Resolver) Resolve(ctx context.Context, input Input) (hosts.File, error) {
	if err := validateInput(input); err != nil {
		return hosts.File{}, err
	}

	switch {
	case input.RemoteURL != "":
		return r.resolveRemote(ctx, input)
	case input.Path != "":
		return r.resolvePath(input)
	default:
		return r.resolveBuffer(input)
	}
}

func validateInput(input Input) error {
	sources := 0
	if input.Path != "" {
		sources++
	}
	if len(input.Buffer) > 0 {
		sources++
	}
	if input.RemoteURL != "" {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of path, buffer and remote URL must be set, got %d", sources)
	}
	return nil
}

func (r Resolver) resolvePath(input Input) (hosts.File, error) {
	exists, err := r.pathChecker.IsPathExists(input.Path)
	if err != nil {
		return hosts.File{}, fmt.Errorf("check path %s: %w", input.Path, err)
	}
	if !exists {
		return hosts.File{}, fmt.Errorf("file %s does not exist", input.Path)
	}

	info, err := os.Stat(input.Path)
	if err != nil {
		return hosts.File{}, fmt.Errorf("stat %s: %w", input.Path, err)
	}
	if info.IsDir() {
		return hosts.File{}, fmt.Errorf("%s is a directory, not a file", input.Path)
	}

	name := input.FileName
	if name == "" {
		name = filepath.Base(input.Path)
	}
	return hosts.File{
		Name:     name,
		Path:     input.Path,
		Size:     info.Size(),
		MIMEType: r.detectMIMEType(input, name),
	}, nil
}

func (r Resolver) resolveBuffer(input Input) (hosts.File, error) {
	name := input.FileName
	if name == "" {
		name = "upload.bin"
	}
	file := hosts.File{
		Name:     name,
		Size:     int64(len(input.Buffer)),
		MIMEType: r.detectMIMEType(input, name),
	}

	if len(input.Buffer) < bufferSpillThreshold {
		file.Buffer = input.Buffer
		return file, nil
	}

	tmpDir, err := r.pathProvider.CreateTempDir("filedrop")
	if err != nil {
		return hosts.File{}, fmt.Errorf("create temp dir: %w", err)
	}
	spillPath := filepath.Join(tmpDir, name)
	if err := r.fileManager.Write(spillPath, string(input.Buffer), 0600); err != nil {
		return hosts.File{}, fmt.Errorf("spill buffer to %s: %w", spillPath, err)
	}
	r.logger.Debugf("Spilled %d byte buffer to %s", len(input.Buffer), spillPath)
	file.Path = spillPath
	return file, nil
}

// resolveRemote re-hosts a URL: the content is downloaded to a temp file and
// the task proceeds as a regular path task.
func (r Resolver) resolveRemote(ctx context.Context, input Input) (hosts.File, error) {
	name := input.FileName
	if name == "" {
		name = fileNameFromURL(input.RemoteURL)
	}

	tmpDir, err := r.pathProvider.CreateTempDir("filedrop-remote")
	if err != nil {
		return hosts.File{}, fmt.Errorf("create temp dir: %w", err)
	}
	destination := filepath.Join(tmpDir, name)

	r.logger.Debugf("Downloading %s", input.RemoteURL)
	downloader := got.New()
	downloader.Client = retryhttp.NewClient(r.logger).StandardClient()
	if err := downloader.Do(got.NewDownload(ctx, input.RemoteURL, destination)); err != nil {
		return hosts.File{}, fmt.Errorf("download %s: %w", input.RemoteURL, err)
	}

	return r.resolvePath(Input{FileName: name, Path: destination, MIMEType: input.MIMEType})
}

// detectMIMEType prefers the caller's declared type, then the extension, then
// a content sniff of the buffer.
func (r Resolver) detectMIMEType(input Input, name string) string {
	if input.MIMEType != "" {
		return input.MIMEType
	}
	if byExtension := mime.TypeByExtension(filepath.Ext(name)); byExtension != "" {
		return byExtension
	}
	if len(input.Buffer) > 0 {
		return http.DetectContentType(input.Buffer)
	}
	if input.Path != "" {
		if file, err := r.fileManager.Open(input.Path); err == nil {
			defer file.Close() //nolint:errcheck
			head := make([]byte, 512)
			if n, err := file.Read(head); err == nil && n > 0 {
				return http.DetectContentType(head[:n])
			}
		}
	}
	return "application/octet-stream"
}

func fileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return "download.bin"
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return "download.bin"
	}
	return name
}
