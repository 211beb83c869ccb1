package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/valpere/transqa/internal/qa"
)

// AnalyzeBatch analyzes several URLs concurrently with a bounded worker
// pool. Page order in the result matches the input order. A cancelled
// context stops dispatching new URLs; pages never dispatched come back with
// the cancellation recorded as their analysis error.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, urls []string) *qa.BatchResult {
	batch := &qa.BatchResult{
		TargetLang: a.cfg.TargetLang,
		StartedAt:  time.Now().UTC(),
	}

	type job struct {
		index int
		url   string
	}
	type outcome struct {
		index int
		page  qa.PageResult
	}

	workers := a.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan job)
	outcomes := make(chan outcome, len(urls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes <- outcome{index: j.index, page: *a.AnalyzeURL(ctx, j.url)}
			}
		}()
	}

	dispatched := make([]bool, len(urls))
	go func() {
		defer close(jobs)
		for i, u := range urls {
			select {
			case jobs <- job{index: i, url: u}:
				dispatched[i] = true
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	pages := make([]qa.PageResult, len(urls))
	for out := range outcomes {
		pages[out.index] = out.page
	}

	for i, done := range dispatched {
		if done {
			continue
		}
		pages[i] = qa.PageResult{
			URL:           urls[i],
			TargetLang:    a.cfg.TargetLang,
			AnalysisError: ctx.Err().Error(),
			AnalyzedAt:    time.Now().UTC(),
		}
	}

	batch.Pages = pages
	batch.FinishedAt = time.Now().UTC()
	return batch
}
