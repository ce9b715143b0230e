// Package upload drives a file upload across a roster of hosting services:
// sequential fallback between services, speculative background retries of the
// failed ones, progress publishing and cooperative cancellation.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/filedrop-io/go-filedrop/settings"
	"github.com/filedrop-io/go-filedrop/source"
	"github.com/filedrop-io/go-filedrop/upload/cancel"
	"github.com/filedrop-io/go-filedrop/upload/hosts"
	"github.com/filedrop-io/go-filedrop/upload/network"
	"github.com/filedrop-io/go-filedrop/upload/notify"
	"github.com/filedrop-io/go-filedrop/upload/progress"
	"github.com/filedrop-io/go-filedrop/urlcheck"
)

// backgroundRetryStagger delays a speculative retry so a transient blip on
// the service has a moment to clear before it is hit again.
var backgroundRetryStagger = 2 * time.Second

// Result is the terminal outcome of one upload task.
type Result struct {
	Success      bool
	URL          string
	ServiceUsed  string
	AllAttempted []string
	Cancelled    bool
	Err          error
	TaskID       string
	BatchID      string
}

// Uploader owns the service roster and the registries shared by every task.
type Uploader struct {
	config        settings.Config
	services      []hosts.Service
	resolver      source.Resolver
	transport     *network.Transport
	progress      *progress.Registry
	cancels       *cancel.Registry
	notifications *notify.Queue
	envRepo       env.Repository
	logger        log.Logger
}

// New reads the configuration from the environment and assembles an Uploader
// with the full service roster.
func New(envRepo env.Repository, logger log.Logger) (*Uploader, error) {
	config, err := settings.Parse(envRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	logger.EnableDebugLog(config.Verbose)

	uploader := NewWithServices(config, nil, envRepo, logger)
	services, err := hosts.Roster(config, uploader.transport, uploader.progress, logger)
	if err != nil {
		return nil, err
	}
	uploader.services = services
	return uploader, nil
}

// NewWithServices assembles an Uploader around a caller-supplied roster.
func NewWithServices(config settings.Config, services []hosts.Service, envRepo env.Repository, logger log.Logger) *Uploader {
	progressRegistry := progress.NewRegistry()
	cancelRegistry := cancel.NewRegistry()
	return &Uploader{
		config:        config,
		services:      services,
		resolver:      source.NewResolver(logger),
		transport:     network.NewTransport(progressRegistry, cancelRegistry, logger),
		progress:      progressRegistry,
		cancels:       cancelRegistry,
		notifications: notify.NewQueue(),
		envRepo:       envRepo,
		logger:        logger,
	}
}

// Upload runs a single task to its terminal state.
func (u *Uploader) Upload(ctx context.Context, input source.Input) Result {
	batchID := uuid.NewString()
	u.progress.RegisterBatch(batchID, 1)
	return u.uploadTask(ctx, batchID, input, true)
}

func (u *Uploader) uploadTask(ctx context.Context, batchID string, input source.Input, dispatchImmediately bool) Result {
	taskID := uuid.NewString()
	startedAt := time.Now()

	tracker := newUploadTracker(u.envRepo, u.logger)
	defer tracker.wait()

	file, err := u.resolver.Resolve(ctx, input)
	if err != nil {
		u.progress.RegisterTask(taskID, batchID, displayName(input), 0)
		u.finishTask(taskID)
		u.notifications.Failure("Upload of %s failed: %s", displayName(input), err)
		return Result{Err: err, TaskID: taskID, BatchID: batchID}
	}
	if file.Size == 0 {
		err := &network.PreconditionError{Reason: fmt.Sprintf("%s is empty, nothing to upload", file.Name)}
		u.progress.RegisterTask(taskID, batchID, file.Name, 0)
		u.finishTask(taskID)
		u.notifications.Failure("Upload of %s failed: %s", file.Name, err)
		return Result{Err: err, TaskID: taskID, BatchID: batchID}
	}

	u.progress.RegisterTask(taskID, batchID, file.Name, file.Size)
	taskCtx, abort := context.WithCancel(ctx)
	defer abort()
	u.cancels.Register(taskID, abort)
	defer u.cancels.Unregister(taskID)

	tracker.logUploadStarted(u.config.Service, file.Size, u.config.FallbackEnabled)

	candidates := u.candidates(file)
	if len(candidates) == 0 {
		err := fmt.Errorf("no service can accept %s (%s)", file.Name, units.HumanSize(float64(file.Size)))
		u.finishTask(taskID)
		u.notifications.Failure("%s", err)
		return Result{Err: err, TaskID: taskID, BatchID: batchID}
	}

	race := newFirstSuccess()
	var attempted []string
	var lastErr error

	for i, service := range candidates {
		// A background retry may have won while the previous candidate was
		// still failing; take its result instead of burning another attempt.
		if win, ok := race.winner(); ok {
			attempted = append(attempted, win.service)
			return u.succeed(taskID, batchID, file, win, attempted, startedAt, dispatchImmediately, &tracker)
		}
		if u.cancels.IsCancelled(taskID) {
			return u.cancelled(taskID, batchID, attempted)
		}

		if i > 0 {
			u.progress.ResetAttempt(taskID)
		}
		attempted = append(attempted, service.Name())
		u.logger.Printf("Uploading %s (%s) to %s...", file.Name, units.HumanSize(float64(file.Size)), service.Name())

		url, err := u.attempt(taskCtx, service, file, hosts.UploadOptions{TaskID: taskID, ReportProgress: true})
		if err == nil {
			return u.succeed(taskID, batchID, file, raceResult{service: service.Name(), url: url}, attempted, startedAt, dispatchImmediately, &tracker)
		}
		if errors.Is(err, network.ErrCancelled) || u.cancels.IsCancelled(taskID) {
			return u.cancelled(taskID, batchID, attempted)
		}

		lastErr = err
		tracker.logAttemptFailed(service.Name(), i, err)
		u.logger.Warnf("Upload to %s failed: %s", service.Name(), err)

		if next := u.nextCandidate(candidates, i); next != "" {
			u.notifications.Failure("Upload to %s failed (%s), trying %s next", service.Name(), err, next)
		} else {
			u.notifications.Failure("Upload to %s failed: %s", service.Name(), err)
		}

		// The fallback setting governs moving on to other services only: the
		// failed service still gets its single staggered retry.
		if service.SupportsBackgroundRetry() {
			service := service
			race.launch(taskCtx, service.Name(), backgroundRetryStagger, func(retryCtx context.Context) (string, error) {
				return u.attempt(retryCtx, service, file, hosts.UploadOptions{TaskID: taskID, ReportProgress: false})
			})
		}
		if !u.config.FallbackEnabled {
			break
		}
	}

	// Every candidate failed; give in-flight background retries a bounded
	// window to deliver a late success before declaring total failure.
	if win, ok := race.wait(taskCtx, u.config.RetryGraceWindow); ok {
		if u.cancels.IsCancelled(taskID) {
			return u.cancelled(taskID, batchID, attempted)
		}
		attempted = append(attempted, win.service)
		return u.succeed(taskID, batchID, file, win, attempted, startedAt, dispatchImmediately, &tracker)
	}
	if u.cancels.IsCancelled(taskID) {
		return u.cancelled(taskID, batchID, attempted)
	}

	u.finishTask(taskID)
	u.notifications.Failure("Upload of %s failed on every service (%s)", file.Name, strings.Join(attempted, ", "))
	tracker.logAllFailed(attempted, time.Since(startedAt))
	if lastErr == nil {
		lastErr = fmt.Errorf("upload of %s failed", file.Name)
	}
	return Result{Err: lastErr, AllAttempted: attempted, TaskID: taskID, BatchID: batchID}
}

// attempt runs one service upload and vets the returned URL before it is
// allowed to become a result.
func (u *Uploader) attempt(ctx context.Context, service hosts.Service, file hosts.File, opts hosts.UploadOptions) (string, error) {
	url, err := service.Upload(ctx, file, opts)
	if err != nil {
		return "", err
	}
	url = strings.TrimSpace(url)
	if err := urlcheck.Validate(url); err != nil {
		return "", fmt.Errorf("%s returned an unusable URL: %w", service.Name(), err)
	}
	return url, nil
}

// candidates orders the roster with the configured service first and drops
// every service that rejects the file. When the configured service itself
// rejects the file, the first accepting fallback takes the primary slot even
// with fallback disabled: a guaranteed failure is never the only attempt.
func (u *Uploader) candidates(file hosts.File) []hosts.Service {
	ordered := make([]hosts.Service, 0, len(u.services))
	for _, service := range u.services {
		if service.Name() == u.config.Service {
			ordered = append(ordered, service)
		}
	}
	for _, service := range u.services {
		if service.Name() != u.config.Service {
			ordered = append(ordered, service)
		}
	}

	accepted := make([]hosts.Service, 0, len(ordered))
	for _, service := range ordered {
		if ok, reason := service.Accepts(file); !ok {
			u.logger.Debugf("Skipping %s: %s", service.Name(), reason)
			continue
		}
		accepted = append(accepted, service)
	}

	if !u.config.FallbackEnabled && len(accepted) > 1 {
		accepted = accepted[:1]
	}
	return accepted
}

func (u *Uploader) nextCandidate(candidates []hosts.Service, i int) string {
	if !u.config.FallbackEnabled || i+1 >= len(candidates) {
		return ""
	}
	return candidates[i+1].Name()
}

func (u *Uploader) succeed(taskID, batchID string, file hosts.File, win raceResult, attempted []string, startedAt time.Time, dispatchImmediately bool, tracker *uploadTracker) Result {
	if dispatchImmediately {
		u.progress.CompleteAndDispatch(taskID)
	} else {
		u.progress.CompleteTask(taskID)
	}
	u.notifications.Success("Uploaded %s (%s) to %s", file.Name, units.HumanSize(float64(file.Size)), win.service)
	u.logger.Donef("Uploaded %s to %s: %s", file.Name, win.service, win.url)
	tracker.logUploadSucceeded(win.service, file.Size, time.Since(startedAt), attempted)
	return Result{
		Success:      true,
		URL:          win.url,
		ServiceUsed:  win.service,
		AllAttempted: attempted,
		TaskID:       taskID,
		BatchID:      batchID,
	}
}

// cancelled produces the terminal state for a user-initiated cancellation.
// No failure notification is queued: the user asked for this outcome.
func (u *Uploader) cancelled(taskID, batchID string, attempted []string) Result {
	u.finishTask(taskID)
	u.logger.Printf("Upload cancelled")
	return Result{
		Cancelled:    true,
		AllAttempted: attempted,
		Err:          network.ErrCancelled,
		TaskID:       taskID,
		BatchID:      batchID,
	}
}

// finishTask advances the batch bookkeeping and drops the task's sample.
func (u *Uploader) finishTask(taskID string) {
	u.progress.CompleteTask(taskID)
	u.progress.Remove(taskID)
}

// Cancel aborts a running upload. The force-close of the socket happens via
// the abort registered for the task; the terminal Cancelled result is
// produced by the task's own goroutine.
func (u *Uploader) Cancel(taskID string) (bool, error) {
	if !u.cancels.Cancel(taskID) {
		return false, fmt.Errorf("no active upload with ID %s", taskID)
	}
	return true, nil
}

// Progress returns the latest sample for a task.
func (u *Uploader) Progress(taskID string) (progress.Sample, bool) {
	return u.progress.TaskSample(taskID)
}

// DisplayedProgress returns the sample a single-slot progress surface should
// show.
func (u *Uploader) DisplayedProgress() (progress.Sample, bool) {
	return u.progress.DisplayedSample()
}

// BatchProgress returns the aggregate state of a batch.
func (u *Uploader) BatchProgress(batchID string) (progress.Batch, bool) {
	return u.progress.BatchState(batchID)
}

// Acknowledge drops a finished task's sample once the caller has consumed
// its result.
func (u *Uploader) Acknowledge(taskID string) {
	u.progress.Remove(taskID)
}

// Notifications drains the queued user-facing messages.
func (u *Uploader) Notifications() []notify.Notification {
	return u.notifications.Drain()
}

func displayName(input source.Input) string {
	switch {
	case input.FileName != "":
		return input.FileName
	case input.Path != "":
		return filepath.Base(input.Path)
	case input.RemoteURL != "":
		return input.RemoteURL
	default:
		return "file"
	}
}
