package analytics

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type TrackerFactory func(log.Logger, ...analytics.Properties) analytics.Tracker

const (
	SessionIDEnvKey  = "FILEDROP_SESSION_ID"
	ClientNameEnvKey = "FILEDROP_CLIENT_NAME"

	sessionIDProperty  = "session_id"
	clientNameProperty = "client_name"
)

// NewUploadTracker returns a tracker carrying the host session ID on every
// event. Telemetry is tied to a host session: without one there is nothing to
// correlate events against, so an error is returned and the caller is
// expected to run without tracking.
func NewUploadTracker(repository env.Repository, logger log.Logger, trackerFactory TrackerFactory) (analytics.Tracker, error) {
	sessionID := repository.Get(SessionIDEnvKey)
	if sessionID == "" {
		return nil, fmt.Errorf("no host session ID found")
	}
	shared := analytics.Properties{sessionIDProperty: sessionID}
	if client := repository.Get(ClientNameEnvKey); client != "" {
		shared[clientNameProperty] = client
	}
	return trackerFactory(logger, shared), nil
}

func NewDefaultUploadTracker(repository env.Repository, logger log.Logger) (analytics.Tracker, error) {
	return NewUploadTracker(repository, logger, analytics.NewDefaultTracker)
}
