package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/gzip"

	"github.com/filedrop-io/go-filedrop/upload/cancel"
	"github.com/filedrop-io/go-filedrop/upload/progress"
)

const (
	chunkSize        = 256 * 1024
	maxResponseBytes = 1 << 20

	// The stall watchdog is independent of the overall request timeout: a
	// stalled connection gets its own diagnosis instead of a generic timeout.
	defaultStallTimeout       = 5 * time.Minute
	defaultStallCheckInterval = 10 * time.Second
)

// Options wire one request to the shared registries.
type Options struct {
	// TaskID enables cancellation checks at chunk boundaries. Empty disables
	// both cancellation polling and progress reporting.
	TaskID string
	// ReportProgress publishes samples to the progress registry. Background
	// retries run with this off so they cannot corrupt the visible percentage.
	ReportProgress bool
}

// Transport executes single streaming upload requests.
type Transport struct {
	client   *http.Client
	progress *progress.Registry
	cancels  *cancel.Registry
	logger   log.Logger

	stallTimeout       time.Duration
	stallCheckInterval time.Duration
}

// NewTransport ...
func NewTransport(progressRegistry *progress.Registry, cancelRegistry *cancel.Registry, logger log.Logger) *Transport {
	return &Transport{
		client:             defaultHTTPClient(),
		progress:           progressRegistry,
		cancels:            cancelRegistry,
		logger:             logger,
		stallTimeout:       defaultStallTimeout,
		stallCheckInterval: defaultStallCheckInterval,
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		// No client-level timeout, attempt timeouts are enforced via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

type streamState struct {
	total        int64
	written      int64 // atomic
	lastActivity int64 // atomic, unix nanos
	stalled      int32 // atomic
	start        time.Time
}

// Do executes one upload request, streaming the payload as the body, and
// returns the raw response body text on success. The payload is never fully
// materialized: at most one chunk is buffered, and a full socket buffer
// suspends file reads through the body pipe.
func (t *Transport) Do(ctx context.Context, req Request, payload Payload, opts Options) (string, error) {
	if err := validatePayload(&payload); err != nil {
		return "", err
	}
	source, err := payloadReader(payload)
	if err != nil {
		return "", err
	}
	defer source.Close() //nolint:errcheck

	var attemptCtx context.Context
	var abort context.CancelFunc
	if req.Timeout > 0 {
		attemptCtx, abort = context.WithTimeout(ctx, req.Timeout)
	} else {
		attemptCtx, abort = context.WithCancel(ctx)
	}
	defer abort()

	state := &streamState{
		total:        payload.Size,
		lastActivity: time.Now().UnixNano(),
		start:        time.Now(),
	}
	go t.watchStall(attemptCtx, abort, state)

	body, contentType, contentLength := t.buildBody(req, payload, source, state, opts)

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.ContentLength = contentLength
	httpReq.Header.Set("Content-Type", contentType)
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", t.classify(err, state, opts)
	}
	defer resp.Body.Close() //nolint:errcheck

	if opts.TaskID != "" && t.cancels.IsCancelled(opts.TaskID) {
		return "", ErrCancelled
	}

	responseBody, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: responseBody}
	}
	return responseBody, nil
}

// buildBody returns the request body reader along with its content type and
// length. The writer side runs in a goroutine feeding an io.Pipe, so writes
// block when the HTTP transport stops reading.
func (t *Transport) buildBody(req Request, payload Payload, source io.Reader, state *streamState, opts Options) (io.Reader, string, int64) {
	pipeReader, pipeWriter := io.Pipe()

	if req.Encoding == BodyEncodingBinary {
		go func() {
			err := t.streamChunks(pipeWriter, source, state, opts)
			pipeWriter.CloseWithError(err) //nolint:errcheck
		}()
		contentType := payload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return pipeReader, contentType, payload.Size
	}

	envelope := multipart.NewWriter(pipeWriter)
	go func() {
		err := t.writeMultipart(envelope, req, payload, source, state, opts)
		if err == nil {
			err = envelope.Close()
		}
		pipeWriter.CloseWithError(err) //nolint:errcheck
	}()
	return pipeReader, envelope.FormDataContentType(), -1
}

func (t *Transport) writeMultipart(envelope *multipart.Writer, req Request, payload Payload, source io.Reader, state *streamState, opts Options) error {
	for _, field := range req.Fields {
		if err := envelope.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}

	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(req.FileField), escapeQuotes(payload.FileName)))
	header.Set("Content-Type", contentType)
	part, err := envelope.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}

	return t.streamChunks(part, source, state, opts)
}

// streamChunks copies the payload in fixed-size chunks. Each chunk boundary
// checks the cancellation flag, records activity for the stall watchdog and
// publishes a progress sample when due.
func (t *Transport) streamChunks(dst io.Writer, src io.Reader, state *streamState, opts Options) error {
	buffer := make([]byte, chunkSize)
	threshold := reportThreshold(state.total)
	var sinceReport int64
	firstReported := false

	for {
		if opts.TaskID != "" && t.cancels.IsCancelled(opts.TaskID) {
			return ErrCancelled
		}

		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return err
			}
			written := atomic.AddInt64(&state.written, int64(n))
			atomic.StoreInt64(&state.lastActivity, time.Now().UnixNano())
			sinceReport += int64(n)

			lastChunk := readErr == io.EOF || written == state.total
			if opts.ReportProgress && opts.TaskID != "" &&
				(!firstReported || sinceReport >= threshold || lastChunk) {
				t.publishSample(opts.TaskID, written, state)
				firstReported = true
				sinceReport = 0
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read upload content: %w", readErr)
		}
	}
}

// reportThreshold bounds progress callback frequency: larger files report in
// coarser steps.
func reportThreshold(totalSize int64) int64 {
	switch {
	case totalSize >= 100*1024*1024:
		return 5 * 1024 * 1024
	case totalSize >= 50*1024*1024:
		return 2 * 1024 * 1024
	default:
		return 512 * 1024
	}
}

func (t *Transport) publishSample(taskID string, written int64, state *streamState) {
	elapsed := time.Since(state.start).Seconds()
	var throughput float64
	if elapsed > 0 {
		throughput = float64(written) / elapsed
	}
	var eta float64
	if throughput > 0 && state.total > written {
		eta = float64(state.total-written) / throughput
	}
	var percent float64
	if state.total > 0 {
		percent = float64(written) / float64(state.total) * 100
	}
	t.progress.Update(progress.Sample{
		TaskID:           taskID,
		BytesTransferred: written,
		BytesTotal:       state.total,
		Percent:          percent,
		ThroughputBPS:    throughput,
		ETASeconds:       eta,
	})
}

func (t *Transport) watchStall(ctx context.Context, abort context.CancelFunc, state *streamState) {
	ticker := time.NewTicker(t.stallCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastActivity := time.Unix(0, atomic.LoadInt64(&state.lastActivity))
			if time.Since(lastActivity) > t.stallTimeout {
				atomic.StoreInt32(&state.stalled, 1)
				t.logger.Warnf("Upload stalled: no bytes written for %s, aborting request", t.stallTimeout)
				abort()
				return
			}
		}
	}
}

func (t *Transport) classify(err error, state *streamState, opts Options) error {
	if opts.TaskID != "" && t.cancels.IsCancelled(opts.TaskID) {
		return ErrCancelled
	}
	if errors.Is(err, ErrCancelled) {
		return ErrCancelled
	}
	if atomic.LoadInt32(&state.stalled) == 1 {
		return &TransportError{Kind: TransportStall, Err: fmt.Errorf("no bytes written for %s", t.stallTimeout)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{Kind: TransportDNS, Err: err}
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameMismatch x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var badRecord tls.RecordHeaderError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameMismatch) ||
		errors.As(err, &certInvalid) || errors.As(err, &badRecord) {
		return &TransportError{Kind: TransportTLS, Err: err}
	}

	return &TransportError{Kind: TransportConnection, Err: err}
}

func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		decoder, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("decode gzip response: %w", err)
		}
		defer decoder.Close() //nolint:errcheck
		reader = decoder
	}

	// The cap applies to decoded bytes; anything beyond it is discarded and
	// the response treated as failed.
	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBytes+1))
	if err != nil {
		return "", &TransportError{Kind: TransportConnection, Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(body)) > maxResponseBytes {
		return "", &TruncatedResponseError{Limit: maxResponseBytes}
	}
	return string(body), nil
}

func validatePayload(payload *Payload) error {
	if payload.Path != "" && len(payload.Buffer) > 0 {
		return &PreconditionError{Reason: "upload content has both a file path and a buffer"}
	}
	if payload.Path == "" {
		if len(payload.Buffer) == 0 {
			return &PreconditionError{Reason: "there is no file content to upload"}
		}
		payload.Size = int64(len(payload.Buffer))
		return nil
	}

	info, err := os.Stat(payload.Path)
	if err != nil {
		return &PreconditionError{Reason: fmt.Sprintf("file %s is not accessible: %v", payload.Path, err)}
	}
	if info.IsDir() {
		return &PreconditionError{Reason: fmt.Sprintf("%s is a directory, not a file", payload.Path)}
	}
	if info.Size() == 0 {
		return &PreconditionError{Reason: fmt.Sprintf("file %s is empty", payload.Path)}
	}
	payload.Size = info.Size()
	if payload.FileName == "" {
		payload.FileName = filepath.Base(payload.Path)
	}
	return nil
}

// OpenPayload validates the payload and returns a reader over its content, for
// adapters that own their wire protocol instead of going through the
// transport.
func OpenPayload(payload Payload) (io.ReadCloser, error) {
	if err := validatePayload(&payload); err != nil {
		return nil, err
	}
	return payloadReader(payload)
}

func payloadReader(payload Payload) (io.ReadCloser, error) {
	if payload.Path == "" {
		return io.NopCloser(bytes.NewReader(payload.Buffer)), nil
	}
	file, err := os.Open(payload.Path)
	if err != nil {
		return nil, &PreconditionError{Reason: fmt.Sprintf("file %s is not readable: %v", payload.Path, err)}
	}
	return file, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
