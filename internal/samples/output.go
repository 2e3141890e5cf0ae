package samples

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// TaskFileGetter downloads files from a task's working directory.
type TaskFileGetter interface {
	GetTaskFile(ctx context.Context, jobID, taskID, name string) ([]byte, error)
}

// PrintTaskOutput writes the stdout and stderr of each task to w. A file
// the service does not have is reported inline; other errors stop printing.
func PrintTaskOutput(ctx context.Context, files TaskFileGetter, w io.Writer, jobID string, taskIDs []string) error {
	for _, taskID := range taskIDs {
		fmt.Fprintf(w, "Task: %s\n", taskID)
		for _, name := range []string{batch.StdoutFile, batch.StderrFile} {
			data, err := files.GetTaskFile(ctx, jobID, taskID, name)
			if err != nil {
				if batch.IsNotFound(err) || batch.IsCode(err, batch.CodeTaskNotYetStarted) {
					fmt.Fprintf(w, "%s: not available\n", name)
					continue
				}
				return fmt.Errorf("read %s of task %s: %w", name, taskID, err)
			}
			fmt.Fprintf(w, "%s (%s):\n%s", name, humanize.IBytes(uint64(len(data))), data)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(w)
			}
		}
	}
	return nil
}

// printBatchError writes the service's error details to w and reports
// whether err was a Batch service error.
func printBatchError(w io.Writer, err error) bool {
	var be *batch.Error
	if !errors.As(err, &be) {
		return false
	}
	fmt.Fprintf(w, "Batch error %s: %s\n", be.Code, be.Message)
	for _, v := range be.Values {
		fmt.Fprintf(w, "  %s: %s\n", v.Key, v.Value)
	}
	return true
}
