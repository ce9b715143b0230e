package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop-io/go-filedrop/upload"
)

type capturedCommand struct {
	name string
	args []string
}

type fakeCommand struct{}

func (fakeCommand) PrintableCommandArgs() string                        { return "" }
func (fakeCommand) Run() error                                          { return nil }
func (fakeCommand) RunAndReturnExitCode() (int, error)                  { return 0, nil }
func (fakeCommand) RunAndReturnTrimmedOutput() (string, error)          { return "", nil }
func (fakeCommand) RunAndReturnTrimmedCombinedOutput() (string, error)  { return "", nil }
func (fakeCommand) Start() error                                        { return nil }
func (fakeCommand) Wait() error                                         { return nil }

type fakeFactory struct {
	calls []capturedCommand
}

func (f *fakeFactory) Create(name string, args []string, opts *command.Opts) command.Command {
	f.calls = append(f.calls, capturedCommand{name: name, args: args})
	return fakeCommand{}
}

func TestExportOutput(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	require.NoError(t, e.ExportOutput("my_key", "my value"))

	require.Len(t, factory.calls, 1)
	assert.Equal(t, "envman", factory.calls[0].name)
	assert.Equal(t, []string{"add", "--key", "my_key", "--value", "my value"}, factory.calls[0].args)
}

func TestExportOutputNoExpand(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	require.NoError(t, e.ExportOutputNoExpand("my_key", "$NOT_EXPANDED"))

	require.Len(t, factory.calls, 1)
	assert.Equal(t, []string{"add", "--key", "my_key", "--value", "$NOT_EXPANDED", "--no-expand"}, factory.calls[0].args)
}

func TestExportSecretOutput(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	require.NoError(t, e.ExportSecretOutput("my_key", "my secret value"))

	require.Len(t, factory.calls, 1)
	assert.Equal(t, []string{"add", "--key", "my_key", "--value", "my secret value", "--sensitive"}, factory.calls[0].args)
}

func TestExportUploadResult(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	result := upload.Result{
		Success:     true,
		URL:         "https://files.example.com/abc123",
		ServiceUsed: "gofile",
	}
	require.NoError(t, e.ExportUploadResult(result))

	require.Len(t, factory.calls, 2)
	assert.Equal(t, []string{"add", "--key", UploadURLOutputKey, "--value", "https://files.example.com/abc123", "--no-expand"}, factory.calls[0].args)
	assert.Equal(t, []string{"add", "--key", UploadServiceOutputKey, "--value", "gofile"}, factory.calls[1].args)
}

func TestExportUploadResultRefusesFailure(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	require.Error(t, e.ExportUploadResult(upload.Result{Success: false}))
	assert.Empty(t, factory.calls)
}

func TestExportBatchResults(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	listPath := filepath.Join(t.TempDir(), "urls.txt")
	results := []upload.Result{
		{Success: true, URL: "https://files.example.com/1"},
		{Success: false},
		{Success: true, URL: "https://files.example.com/3"},
	}
	require.NoError(t, e.ExportBatchResults(results, listPath))

	content, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/1\nhttps://files.example.com/3\n", string(content))

	require.Len(t, factory.calls, 1)
	assert.Equal(t, []string{"add", "--key", UploadURLListOutputKey, "--value", listPath}, factory.calls[0].args)
}

func TestExportBatchResultsAllFailed(t *testing.T) {
	factory := &fakeFactory{}
	e := NewExporter(factory)

	listPath := filepath.Join(t.TempDir(), "urls.txt")
	err := e.ExportBatchResults([]upload.Result{{Success: false}}, listPath)
	require.Error(t, err)
	assert.Empty(t, factory.calls)
}
