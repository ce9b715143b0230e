package hosts

import (
	"context"
	"time"

	"github.com/filedrop-io/go-filedrop/sanitize"
	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/extract"
	"github.com/filedrop-io/go-filedrop/upload/network"
)

// Custom is a user-defined endpoint. Only the user understands its side
// effects, so it is never retried automatically in the background.
type Custom struct {
	transport  *network.Transport
	definition settings.CustomService
	timeout    time.Duration
}

// NewCustom ...
func NewCustom(transport *network.Transport, definition settings.CustomService, timeout time.Duration) *Custom {
	return &Custom{
		transport:  transport,
		definition: definition,
		timeout:    timeout,
	}
}

// Name implements Service.Name.
func (c *Custom) Name() string {
	return "custom"
}

// Accepts implements Service.Accepts.
func (c *Custom) Accepts(file File) (bool, string) {
	return true, ""
}

// SupportsBackgroundRetry implements Service.SupportsBackgroundRetry.
func (c *Custom) SupportsBackgroundRetry() bool {
	return false
}

// Upload implements Service.Upload.
func (c *Custom) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	var fields []network.Field
	for _, field := range c.definition.ExtraFields {
		fields = append(fields, network.Field{Name: field.Name, Value: field.Value})
	}

	body, err := c.transport.Do(ctx, network.Request{
		URL:       c.definition.EndpointURL,
		Method:    c.definition.Method,
		Encoding:  network.BodyEncoding(c.definition.BodyEncoding),
		FileField: c.definition.FileField,
		Fields:    fields,
		Headers:   sanitize.Headers(c.definition.ExtraHeaders),
		Timeout:   c.timeout,
	}, file.payload(), network.Options{TaskID: opts.TaskID, ReportProgress: opts.ReportProgress})
	if err != nil {
		return "", err
	}

	return extract.URL(body, extract.Options{
		Shape:     extract.Shape(c.definition.ResponseShape),
		FieldPath: c.definition.ResponsePath,
		BaseURL:   c.definition.EndpointURL,
	}), nil
}
