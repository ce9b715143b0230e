// Package export exposes upload results to the host environment. Plain env
// vars do not survive the process boundary between the library's host and the
// tools that run after it, so values go through the envman CLI instead of
// os.Setenv.
package export

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/pathutil"

	"github.com/filedrop-io/go-filedrop/upload"
)

const (
	// UploadURLOutputKey carries the shareable URL of the uploaded file.
	UploadURLOutputKey = "FILEDROP_UPLOAD_URL"
	// UploadServiceOutputKey names the service that ended up hosting it.
	UploadServiceOutputKey = "FILEDROP_UPLOAD_SERVICE"
	// UploadURLListOutputKey points at a file listing one URL per line for a
	// batch upload.
	UploadURLListOutputKey = "FILEDROP_UPLOAD_URL_LIST_PATH"
)

// Exporter ...
type Exporter struct {
	cmdFactory  command.Factory
	fileManager fileutil.FileManager
}

// NewExporter ...
func NewExporter(cmdFactory command.Factory) Exporter {
	return Exporter{
		cmdFactory:  cmdFactory,
		fileManager: fileutil.NewFileManager(),
	}
}

// ExportOutput exposes a value to subsequent tools via envman.
func (e *Exporter) ExportOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value}, nil)
	return runExport(cmd)
}

// ExportOutputNoExpand works like ExportOutput but does not expand environment
// variables in the value. Use it for values beyond the library's control,
// like URLs returned by a hosting service.
func (e *Exporter) ExportOutputNoExpand(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--no-expand"}, nil)
	return runExport(cmd)
}

// ExportSecretOutput exposes a secret value. envman marks it sensitive so the
// host redacts it from logs.
func (e *Exporter) ExportSecretOutput(key, value string) error {
	cmd := e.cmdFactory.Create("envman", []string{"add", "--key", key, "--value", value, "--sensitive"}, nil)
	return runExport(cmd)
}

// ExportUploadResult exposes a successful upload's URL and service.
func (e *Exporter) ExportUploadResult(result upload.Result) error {
	if !result.Success {
		return fmt.Errorf("refusing to export a failed upload")
	}
	if err := e.ExportOutputNoExpand(UploadURLOutputKey, result.URL); err != nil {
		return err
	}
	return e.ExportOutput(UploadServiceOutputKey, result.ServiceUsed)
}

// ExportBatchResults writes the successful URLs of a batch to listPath, one
// per line in input order, and exports the file's absolute path. Failed tasks
// are skipped rather than failing the export.
func (e *Exporter) ExportBatchResults(results []upload.Result, listPath string) error {
	var urls []string
	for _, result := range results {
		if result.Success {
			urls = append(urls, result.URL)
		}
	}
	if len(urls) == 0 {
		return fmt.Errorf("no successful upload in the batch, nothing to export")
	}

	absListPath, err := pathutil.NewPathModifier().AbsPath(listPath)
	if err != nil {
		return err
	}
	if err := e.fileManager.WriteBytes(absListPath, []byte(strings.Join(urls, "\n")+"\n")); err != nil {
		return err
	}
	return e.ExportOutput(UploadURLListOutputKey, absListPath)
}

func runExport(cmd command.Command) error {
	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		return fmt.Errorf("exporting output with envman failed: %s, output: %s", err, out)
	}
	return nil
}
