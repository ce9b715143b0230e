package hosts

import (
	"context"
	"net/http"
	"time"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/extract"
	"github.com/filedrop-io/go-filedrop/upload/network"
)

const litterboxAPIURL = "https://litterbox.catbox.moe/resources/internals/api.php"
const litterboxMaxSize = "1GB"

// Litterbox is catbox's temporary-hosting sibling: same plain-text protocol
// plus an expiry field controlling retention.
type Litterbox struct {
	transport *network.Transport
	expiry    string
	timeout   time.Duration
	apiURL    string
}

// NewLitterbox ...
func NewLitterbox(transport *network.Transport, config settings.Config) *Litterbox {
	return &Litterbox{
		transport: transport,
		expiry:    config.LitterboxExpiry,
		timeout:   config.RequestTimeout,
		apiURL:    litterboxAPIURL,
	}
}

// Name implements Service.Name.
func (l *Litterbox) Name() string {
	return "litterbox"
}

// Accepts implements Service.Accepts.
func (l *Litterbox) Accepts(file File) (bool, string) {
	if blocked, pattern := matchesAny(catboxBlockedPatterns, file.Name); blocked {
		return false, "litterbox does not host " + pattern + " files"
	}
	return checkSizeLimit(file, litterboxMaxSize)
}

// SupportsBackgroundRetry implements Service.SupportsBackgroundRetry.
func (l *Litterbox) SupportsBackgroundRetry() bool {
	return true
}

// Upload implements Service.Upload.
func (l *Litterbox) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	body, err := l.transport.Do(ctx, network.Request{
		URL:       l.apiURL,
		Method:    http.MethodPost,
		Encoding:  network.BodyEncodingMultipart,
		FileField: "fileToUpload",
		Fields: []network.Field{
			{Name: "reqtype", Value: "fileupload"},
			{Name: "time", Value: l.expiry},
		},
		Timeout: l.timeout,
	}, file.payload(), network.Options{TaskID: opts.TaskID, ReportProgress: opts.ReportProgress})
	if err != nil {
		return "", err
	}

	return extract.URL(body, extract.Options{Shape: extract.ShapeText, BaseURL: l.apiURL}), nil
}
