package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/filedrop-io/go-filedrop/source"
)

// maxConcurrentUploads bounds batch fan-out so a large batch does not starve
// the network or trip per-host connection limits.
const maxConcurrentUploads = 3

// UploadAll runs every input as its own task under a shared batch and returns
// the results in input order. Individual failures do not stop the rest of the
// batch.
func (u *Uploader) UploadAll(ctx context.Context, inputs []source.Input) []Result {
	if len(inputs) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	u.progress.RegisterBatch(batchID, len(inputs))

	sem := semaphore.NewWeighted(maxConcurrentUploads)
	results := make([]Result, len(inputs))

	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input source.Input) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{
					Err:     fmt.Errorf("waiting for an upload slot: %w", err),
					BatchID: batchID,
				}
				return
			}
			defer sem.Release(1)
			results[i] = u.uploadTask(ctx, batchID, input, false)
		}(i, input)
	}
	wg.Wait()

	// Returning the collected results is the dispatch of this batch.
	u.progress.MarkDispatched(batchID)
	return results
}
