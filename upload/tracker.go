package upload

import (
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"

	filedropanalytics "github.com/filedrop-io/go-filedrop/analytics"
)

type uploadTracker struct {
	// tracker is nil when no host session ID is present; every log method
	// degrades to a no-op in that case.
	tracker analytics.Tracker
	logger  log.Logger
}

func newUploadTracker(envRepo env.Repository, logger log.Logger) uploadTracker {
	tracker, err := filedropanalytics.NewDefaultUploadTracker(envRepo, logger)
	if err != nil {
		logger.Debugf("Upload telemetry disabled: %s", err)
		return uploadTracker{logger: logger}
	}
	return uploadTracker{
		tracker: tracker,
		logger:  logger,
	}
}

func (t *uploadTracker) logUploadStarted(service string, sizeBytes int64, fallbackEnabled bool) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"service":          service,
		"file_size_bytes":  sizeBytes,
		"fallback_enabled": fallbackEnabled,
	}
	t.tracker.Enqueue("upload_started", properties)
}

func (t *uploadTracker) logAttemptFailed(service string, attemptIndex int, err error) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"service":       service,
		"attempt_index": attemptIndex,
		"error":         err.Error(),
	}
	t.tracker.Enqueue("upload_attempt_failed", properties)
}

func (t *uploadTracker) logUploadSucceeded(service string, sizeBytes int64, uploadTime time.Duration, attempted []string) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"service":         service,
		"file_size_bytes": sizeBytes,
		"upload_time_s":   uploadTime.Truncate(time.Second).Seconds(),
		"services_tried":  strings.Join(attempted, ","),
		"fallback_count":  len(attempted) - 1,
	}
	t.tracker.Enqueue("upload_succeeded", properties)
}

func (t *uploadTracker) logAllFailed(attempted []string, uploadTime time.Duration) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"services_tried": strings.Join(attempted, ","),
		"upload_time_s":  uploadTime.Truncate(time.Second).Seconds(),
	}
	t.tracker.Enqueue("upload_all_failed", properties)
}

func (t *uploadTracker) wait() {
	if t.tracker == nil {
		return
	}
	t.tracker.Wait()
}
