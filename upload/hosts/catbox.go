package hosts

import (
	"context"
	"net/http"
	"time"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/extract"
	"github.com/filedrop-io/go-filedrop/upload/network"
)

const catboxAPIURL = "https://catbox.moe/user/api.php"
const catboxMaxSize = "200MB"

// File types catbox refuses to host.
var catboxBlockedPatterns = []string{"*.exe", "*.scr", "*.cpl", "*.jar", "*.msi", "*.doc*"}

// Catbox uploads to catbox.moe: a multipart POST with reqtype=fileupload and
// an optional account userhash, answered with the file URL as plain text.
type Catbox struct {
	transport *network.Transport
	userHash  settings.Secret
	timeout   time.Duration
	apiURL    string
}

// NewCatbox ...
func NewCatbox(transport *network.Transport, config settings.Config) *Catbox {
	return &Catbox{
		transport: transport,
		userHash:  config.CatboxUserHash,
		timeout:   config.RequestTimeout,
		apiURL:    catboxAPIURL,
	}
}

// Name implements Service.Name.
func (c *Catbox) Name() string {
	return "catbox"
}

// Accepts implements Service.Accepts.
func (c *Catbox) Accepts(file File) (bool, string) {
	if blocked, pattern := matchesAny(catboxBlockedPatterns, file.Name); blocked {
		return false, "catbox does not host " + pattern + " files"
	}
	return checkSizeLimit(file, catboxMaxSize)
}

// SupportsBackgroundRetry implements Service.SupportsBackgroundRetry.
func (c *Catbox) SupportsBackgroundRetry() bool {
	return true
}

// Upload implements Service.Upload.
func (c *Catbox) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	fields := []network.Field{
		{Name: "reqtype", Value: "fileupload"},
	}
	if c.userHash != "" {
		fields = append(fields, network.Field{Name: "userhash", Value: string(c.userHash)})
	}

	body, err := c.transport.Do(ctx, network.Request{
		URL:       c.apiURL,
		Method:    http.MethodPost,
		Encoding:  network.BodyEncodingMultipart,
		FileField: "fileToUpload",
		Fields:    fields,
		Timeout:   c.timeout,
	}, file.payload(), network.Options{TaskID: opts.TaskID, ReportProgress: opts.ReportProgress})
	if err != nil {
		return "", err
	}

	return extract.URL(body, extract.Options{Shape: extract.ShapeText, BaseURL: c.apiURL}), nil
}
