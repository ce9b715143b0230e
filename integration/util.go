//go:build integration
// +build integration

package integration

import (
	"net/http"
	"os"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
)

var logger = log.NewLogger()

// requireLiveTests skips unless live uploads are explicitly enabled: these
// tests push real bytes to third-party services.
func requireLiveTests(t *testing.T) {
	t.Helper()
	if os.Getenv("FILEDROP_LIVE_TEST") != "1" {
		t.Skip("set FILEDROP_LIVE_TEST=1 to run live upload tests")
	}
}

// requireReachable skips when the returned URL cannot be fetched, so a
// service outage does not fail the suite.
func requireReachable(t *testing.T, url string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Skipf("uploaded URL %s not reachable: %s", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		t.Fatalf("uploaded URL %s returned %d", url, resp.StatusCode)
	}
}

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	}
	return ""
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	var values []string
	for _, v := range repo.envVars {
		values = append(values, v)
	}
	return values
}
