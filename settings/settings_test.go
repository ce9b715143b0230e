package settings

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

func TestParseDefaults(t *testing.T) {
	config, err := Parse(fakeEnvRepo{envVars: map[string]string{}})

	require.NoError(t, err)
	assert.Equal(t, "gofile", config.Service)
	assert.True(t, config.FallbackEnabled)
	assert.Equal(t, 5*time.Minute, config.RequestTimeout)
	assert.Equal(t, 30*time.Second, config.RetryGraceWindow)
	assert.Equal(t, "1h", config.LitterboxExpiry)
}

func TestParseOverrides(t *testing.T) {
	config, err := Parse(fakeEnvRepo{envVars: map[string]string{
		"upload_service":            "catbox",
		"upload_fallback_enabled":   "false",
		"upload_request_timeout":    "90s",
		"upload_retry_grace_window": "10s",
		"catbox_userhash":           "deadbeef",
		"litterbox_expiry":          "24h",
	}})

	require.NoError(t, err)
	assert.Equal(t, "catbox", config.Service)
	assert.False(t, config.FallbackEnabled)
	assert.Equal(t, 90*time.Second, config.RequestTimeout)
	assert.Equal(t, 10*time.Second, config.RetryGraceWindow)
	assert.Equal(t, Secret("deadbeef"), config.CatboxUserHash)
	assert.Equal(t, "24h", config.LitterboxExpiry)
}

func TestParseRejectsUnknownService(t *testing.T) {
	_, err := Parse(fakeEnvRepo{envVars: map[string]string{
		"upload_service": "megaupload",
	}})
	assert.Error(t, err)
}

func TestParseRejectsInvalidExpiry(t *testing.T) {
	_, err := Parse(fakeEnvRepo{envVars: map[string]string{
		"litterbox_expiry": "5h",
	}})
	assert.Error(t, err)
}

func TestCustomServiceDefinition(t *testing.T) {
	config, err := Parse(fakeEnvRepo{envVars: map[string]string{
		"upload_service":       "custom",
		"custom_endpoint_url":  "https://uploads.example.com/api",
		"custom_method":        "put",
		"custom_body_encoding": "binary",
		"custom_response_path": "data.url",
		"custom_extra_fields":  "format=json\nexpiry=1d",
		"custom_extra_headers": "X-My-Key: abc\nAuthorization: Bearer leak",
	}})
	require.NoError(t, err)

	custom, err := config.Custom()
	require.NoError(t, err)
	assert.Equal(t, "https://uploads.example.com/api", custom.EndpointURL)
	assert.Equal(t, "PUT", custom.Method)
	assert.Equal(t, "binary", custom.BodyEncoding)
	assert.Equal(t, "data.url", custom.ResponsePath)
	assert.Equal(t, []Field{
		{Name: "format", Value: "json"},
		{Name: "expiry", Value: "1d"},
	}, custom.ExtraFields)
	// the deny-list is applied later at request build time, the raw
	// definition keeps everything the user declared
	assert.Equal(t, map[string]string{
		"X-My-Key":      "abc",
		"Authorization": "Bearer leak",
	}, custom.ExtraHeaders)
}

func TestCustomServiceValidation(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{
			name: "missing endpoint",
			envs: map[string]string{},
		},
		{
			name: "non-http scheme",
			envs: map[string]string{"custom_endpoint_url": "ftp://host/upload"},
		},
		{
			name: "bad method",
			envs: map[string]string{
				"custom_endpoint_url": "https://host/upload",
				"custom_method":       "DELETE",
			},
		},
		{
			name: "bad encoding",
			envs: map[string]string{
				"custom_endpoint_url":  "https://host/upload",
				"custom_body_encoding": "chunked",
			},
		},
		{
			name: "malformed extra field line",
			envs: map[string]string{
				"custom_endpoint_url": "https://host/upload",
				"custom_extra_fields": "justakeywithnovalue",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.envs["upload_service"] = "custom"
			_, err := Parse(fakeEnvRepo{envVars: tt.envs})
			assert.Error(t, err)
		})
	}
}

func TestSecretString(t *testing.T) {
	assert.Equal(t, "*****", Secret("sensitive").String())
	assert.Equal(t, "", Secret("").String())
	assert.Equal(t, "*****", fmt.Sprintf("%v", Secret("sensitive")))
}
