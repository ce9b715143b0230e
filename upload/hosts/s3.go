package hosts

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/upload/network"
	"github.com/filedrop-io/go-filedrop/upload/progress"
)

const numS3UploadRetries = 2

// S3 uploads to an S3-compatible bucket (AWS, MinIO, R2) with static
// credentials from the settings. The SDK owns the wire, so progress flows
// through a counting reader instead of the streaming transport.
type S3 struct {
	config   settings.Config
	progress *progress.Registry
	logger   log.Logger
}

// NewS3 ...
func NewS3(config settings.Config, progressRegistry *progress.Registry, logger log.Logger) *S3 {
	return &S3{
		config:   config,
		progress: progressRegistry,
		logger:   logger,
	}
}

// Name implements Service.Name.
func (s *S3) Name() string {
	return "s3"
}

// Accepts implements Service.Accepts.
func (s *S3) Accepts(file File) (bool, string) {
	if s.config.S3Bucket == "" {
		return false, "no S3 bucket configured"
	}
	if s.config.S3Region == "" && s.config.S3Endpoint == "" {
		return false, "no S3 region or endpoint configured"
	}
	if s.config.S3AccessKeyID == "" || s.config.S3SecretAccessKey == "" {
		return false, "no S3 credentials configured"
	}
	return true, ""
}

// SupportsBackgroundRetry implements Service.SupportsBackgroundRetry.
func (s *S3) SupportsBackgroundRetry() bool {
	return true
}

// Upload implements Service.Upload.
func (s *S3) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create S3 client: %w", err)
	}

	key := fmt.Sprintf("uploads/%s/%s", uuid.NewString(), file.Name)
	contentType := file.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = retry.Times(numS3UploadRetries).Wait(2 * time.Second).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			s.logger.Debugf("Retrying S3 upload (attempt %d)", attempt+1)
		}
		if ctx.Err() != nil {
			return network.ErrCancelled, true
		}

		source, err := network.OpenPayload(file.payload())
		if err != nil {
			return err, true
		}
		defer source.Close() //nolint:errcheck

		var body io.Reader = source
		if opts.ReportProgress && opts.TaskID != "" {
			body = &countingReader{
				reader:   source,
				taskID:   opts.TaskID,
				total:    file.Size,
				start:    time.Now(),
				registry: s.progress,
			}
		}

		uploader := manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 1 // keep byte counting in file order
		})
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Body:          body,
			Bucket:        aws.String(s.config.S3Bucket),
			Key:           aws.String(key),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(file.Size),
		})
		if err != nil {
			if ctx.Err() != nil {
				return network.ErrCancelled, true
			}
			return fmt.Errorf("upload object: %w", err), false
		}
		return nil, true
	})
	if err != nil {
		return "", err
	}

	return s.publicURL(key), nil
}

func (s *S3) newClient(ctx context.Context) (*s3.Client, error) {
	region := s.config.S3Region
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			string(s.config.S3AccessKeyID), string(s.config.S3SecretAccessKey), "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(options *s3.Options) {
		if s.config.S3Endpoint != "" {
			options.BaseEndpoint = aws.String(s.config.S3Endpoint)
			options.UsePathStyle = true
		}
	}), nil
}

// publicURL builds the shareable URL for an uploaded object.
func (s *S3) publicURL(key string) string {
	if s.config.S3PublicBaseURL != "" {
		base := strings.TrimRight(s.config.S3PublicBaseURL, "/")
		return base + "/" + escapeKey(key)
	}
	if s.config.S3Endpoint != "" {
		base := strings.TrimRight(s.config.S3Endpoint, "/")
		return base + "/" + s.config.S3Bucket + "/" + escapeKey(key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.S3Bucket, s.config.S3Region, escapeKey(key))
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return path.Join(segments...)
}

// countingReader publishes progress samples as the SDK consumes the file.
type countingReader struct {
	reader   io.Reader
	taskID   string
	total    int64
	read     int64 // atomic
	reported int64
	start    time.Time
	registry *progress.Registry
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		read := atomic.AddInt64(&r.read, int64(n))
		threshold := int64(512 * 1024)
		if read-r.reported >= threshold || read == r.total {
			r.reported = read
			elapsed := time.Since(r.start).Seconds()
			var throughput float64
			if elapsed > 0 {
				throughput = float64(read) / elapsed
			}
			var percent float64
			if r.total > 0 {
				percent = float64(read) / float64(r.total) * 100
			}
			r.registry.Update(progress.Sample{
				TaskID:           r.taskID,
				BytesTransferred: read,
				BytesTotal:       r.total,
				Percent:          percent,
				ThroughputBPS:    throughput,
			})
		}
	}
	return n, err
}
