package analytics

import (
	"testing"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnvRepo struct {
	values map[string]string
}

func (f fakeEnvRepo) Get(key string) string { return f.values[key] }
func (f fakeEnvRepo) Set(key, value string) error {
	f.values[key] = value
	return nil
}
func (f fakeEnvRepo) Unset(key string) error {
	delete(f.values, key)
	return nil
}
func (f fakeEnvRepo) List() []string { return nil }

func TestNewUploadTrackerFailsWithoutSessionID(t *testing.T) {
	repository := fakeEnvRepo{values: map[string]string{}}
	_, err := NewDefaultUploadTracker(repository, log.NewLogger())
	require.Error(t, err)
}

func TestNewUploadTrackerAddsSessionProperties(t *testing.T) {
	repository := fakeEnvRepo{values: map[string]string{
		SessionIDEnvKey:  "session-123",
		ClientNameEnvKey: "ci-runner",
	}}

	var captured []analytics.Properties
	factory := func(logger log.Logger, shared ...analytics.Properties) analytics.Tracker {
		captured = shared
		return analytics.NewDefaultTracker(logger, shared...)
	}

	tracker, err := NewUploadTracker(repository, log.NewLogger(), factory)
	require.NoError(t, err)
	require.NotNil(t, tracker)
	require.Len(t, captured, 1)
	assert.Equal(t, analytics.Properties{
		"session_id":  "session-123",
		"client_name": "ci-runner",
	}, captured[0])
}

func TestNewUploadTrackerClientNameIsOptional(t *testing.T) {
	repository := fakeEnvRepo{values: map[string]string{
		SessionIDEnvKey: "session-123",
	}}

	var captured []analytics.Properties
	factory := func(logger log.Logger, shared ...analytics.Properties) analytics.Tracker {
		captured = shared
		return nil
	}

	_, err := NewUploadTracker(repository, log.NewLogger(), factory)
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, analytics.Properties{"session_id": "session-123"}, captured[0])
}
