package pipeline

import (
	"context"
	"sync"

	"github.com/bitrise-io/go-assetpipe/report"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency   = 5
	defaultProgressEvery = 10
)

// Summary of a batch run.
type Summary struct {
	RunID string
	Total int
	// ProcessedCount is the number of rewritten documents.
	ProcessedCount int
	// ImageCount is the number of references rewritten across those documents.
	ImageCount int
	Errors     []ProcessingError
	// ReportPath is set when an error report was written.
	ReportPath string
}

// tally is the shared accumulator of the workers.
type tally struct {
	mu        sync.Mutex
	completed int
	processed int
	images    int
	errors    []ProcessingError
}

func (t *tally) record(result ContentResult, docErr *ProcessingError) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Modified {
		t.processed++
		t.images += result.ImagesProcessed
	}
	t.errors = append(t.errors, result.Errors...)
	if docErr != nil {
		t.errors = append(t.errors, *docErr)
	}
	t.completed++
	return t.completed
}

// ProcessAll processes documents with a fixed number of workers. Failures are collected, never
// returned: the run always completes. When anything failed an error report is written.
func (p *Processor) ProcessAll(ctx context.Context, documents []string) Summary {
	total := len(documents)
	summary := Summary{RunID: p.newRunID(), Total: total}
	if total == 0 {
		p.logger.Infof("No markdown files found.")
		return summary
	}

	workers := p.cfg.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	if workers > total {
		workers = total
	}
	progressEvery := p.cfg.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	p.logger.Infof("Starting processing of %d files with %d workers...", total, workers)

	queue := make(chan string, workers)
	stats := &tally{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for _, id := range documents {
			select {
			case queue <- id:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for id := range queue {
				result, err := p.ProcessDocument(gctx, id)

				var docErr *ProcessingError
				if err != nil {
					p.logger.Errorf("Error processing file %s: %s", id, err)
					e := p.newError(id, "", err)
					docErr = &e
					result.Modified = false
				}

				if completed := stats.record(result, docErr); completed%progressEvery == 0 || completed == total {
					p.logger.Infof("Processing: %d/%d files...", completed, total)
				}
			}
			return nil
		})
	}

	// workers never return errors
	_ = g.Wait()

	summary.ProcessedCount = stats.processed
	summary.ImageCount = stats.images
	summary.Errors = stats.errors

	if len(summary.Errors) > 0 {
		path := p.cfg.ReportPath
		if path == "" {
			path = report.DefaultPath
		}
		if err := report.Write(p.store, path, summary.Errors, p.now(), summary.RunID); err != nil {
			p.logger.Errorf("Failed to save error report: %s", err)
		} else {
			summary.ReportPath = path
			p.logger.Warnf("Error report saved to %s", path)
		}
		p.logger.Warnf("Finished processing with %d errors. Files: %d, Images: %d.",
			len(summary.Errors), summary.ProcessedCount, summary.ImageCount)
		return summary
	}

	p.logger.Donef("Finished processing. Files: %d, Images: %d.", summary.ProcessedCount, summary.ImageCount)
	return summary
}
