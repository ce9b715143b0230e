package hosts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/extract"
	"github.com/filedrop-io/go-filedrop/upload/network"
)

const gofileAPIBaseURL = "https://api.gofile.io"
const gofileUploadURLPattern = "https://%s.gofile.io/uploadFile"

// Gofile uploads to gofile.io. The control-plane server discovery call goes
// through the retrying HTTP client; the upload itself is a streaming multipart
// POST to the discovered storage server.
type Gofile struct {
	transport        *network.Transport
	apiClient        *retryablehttp.Client
	token            settings.Secret
	timeout          time.Duration
	logger           log.Logger
	apiBaseURL       string
	uploadURLPattern string
}

// NewGofile ...
func NewGofile(transport *network.Transport, config settings.Config, logger log.Logger) *Gofile {
	return &Gofile{
		transport:        transport,
		apiClient:        retryhttp.NewClient(logger),
		token:            config.GofileToken,
		timeout:          config.RequestTimeout,
		logger:           logger,
		apiBaseURL:       gofileAPIBaseURL,
		uploadURLPattern: gofileUploadURLPattern,
	}
}

// Name implements Service.Name.
func (g *Gofile) Name() string {
	return "gofile"
}

// Accepts implements Service.Accepts.
func (g *Gofile) Accepts(file File) (bool, string) {
	return true, ""
}

// SupportsBackgroundRetry implements Service.SupportsBackgroundRetry.
func (g *Gofile) SupportsBackgroundRetry() bool {
	return true
}

// Upload implements Service.Upload.
func (g *Gofile) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	server, err := g.bestServer(ctx)
	if err != nil {
		return "", fmt.Errorf("gofile server discovery: %w", err)
	}
	g.logger.Debugf("Uploading to gofile server %s", server)

	endpoint := fmt.Sprintf(g.uploadURLPattern, server)
	var fields []network.Field
	if g.token != "" {
		fields = append(fields, network.Field{Name: "token", Value: string(g.token)})
	}

	body, err := g.transport.Do(ctx, network.Request{
		URL:       endpoint,
		Method:    http.MethodPost,
		Encoding:  network.BodyEncodingMultipart,
		FileField: "file",
		Fields:    fields,
		Timeout:   g.timeout,
	}, file.payload(), network.Options{TaskID: opts.TaskID, ReportProgress: opts.ReportProgress})
	if err != nil {
		return "", err
	}

	return extract.URL(body, extract.Options{
		Shape:     extract.ShapeJSON,
		FieldPath: "data.downloadPage",
		BaseURL:   endpoint,
	}), nil
}

type gofileServersResponse struct {
	Status string `json:"status"`
	Data   struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	} `json:"data"`
}

func (g *Gofile) bestServer(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.apiBaseURL+"/servers", nil)
	if err != nil {
		return "", err
	}

	resp, err := g.apiClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			g.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &network.ProtocolError{StatusCode: resp.StatusCode}
	}

	var response gofileServersResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode servers response: %w", err)
	}
	if response.Status != "ok" || len(response.Data.Servers) == 0 {
		return "", fmt.Errorf("no gofile servers available (status %q)", response.Status)
	}
	return response.Data.Servers[0].Name, nil
}
