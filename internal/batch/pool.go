package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"invoicecontrol/internal/reconciliation"
	"invoicecontrol/pkg/models"
)

// ProgressFunc is called once per extracted document. Calls are serialized.
type ProgressFunc func(done, total int, outcome reconciliation.Outcome)

// job is one document to extract
type job struct {
	path  string
	index int
}

// FindDocuments lists the PDF files directly inside dir, sorted by name.
// Subdirectories are not searched.
func FindDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}

// extractAll extracts every document on a bounded worker pool. Outcomes are
// slotted by input index, so the result order never depends on scheduling.
func (r *Runner) extractAll(ctx context.Context, paths []string) ([]reconciliation.Outcome, error) {
	outcomes := make([]reconciliation.Outcome, len(paths))
	jobs := make(chan job, len(paths))

	numWorkers := r.opts.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}

				r.log.Debug().
					Int("worker", workerID).
					Str("file", j.path).
					Int("index", j.index+1).
					Msg("Worker extracting document")

				outcome := r.extractOne(ctx, j.path)
				outcomes[j.index] = outcome

				mu.Lock()
				done++
				if r.opts.Progress != nil {
					r.opts.Progress(done, len(paths), outcome)
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, path := range paths {
		jobs <- job{path: path, index: i}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// extractOne reads and extracts one document. Read failures and panics in
// the extractor become the outcome's error.
func (r *Runner) extractOne(ctx context.Context, path string) (outcome reconciliation.Outcome) {
	outcome.FileName = filepath.Base(path)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("file", outcome.FileName).
				Interface("panic", rec).
				Msg("Extraction panicked")
			outcome.Fields = models.ExtractedFields{}
			outcome.Err = fmt.Errorf("extraction panicked: %v", rec)
		}
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to read document: %w", err)
		return outcome
	}

	outcome.Fields = r.extractor.Extract(ctx, models.InvoiceDocument{
		FileName: outcome.FileName,
		Content:  content,
	})
	return outcome
}
