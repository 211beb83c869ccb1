// Package analyzer runs the full pipeline for a page: fetch the HTML,
// extract text blocks, detect each block's language, verify blocks against
// the target language, and score the result.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/extract"
	"github.com/valpere/transqa/internal/fetch"
	"github.com/valpere/transqa/internal/language"
	"github.com/valpere/transqa/internal/qa"
	"github.com/valpere/transqa/internal/store"
	"github.com/valpere/transqa/internal/verify"
)

// verifyConfidenceCeiling gates verification: a block confidently detected
// as some other language is a leak, not a grammar problem, so verifying its
// text against the target language would only produce noise.
const verifyConfidenceCeiling = 0.7

// timeoutCheckInterval is how many blocks are processed between budget
// checks.
const timeoutCheckInterval = 10

type pageFetcher interface {
	GetWithMetadata(ctx context.Context, rawURL string) (*qa.FetchResult, error)
}

type blockExtractor interface {
	ExtractBlocks(htmlContent, pageURL string) *qa.ExtractionResult
}

type languageDetector interface {
	DetectBlock(text string) language.Result
	DetectTokens(text string) map[string]int
}

type blockVerifier interface {
	Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue
}

type resultStore interface {
	GetCached(ctx context.Context, url, targetLang, contentHash string) (*qa.PageResult, bool, error)
	SaveResult(ctx context.Context, result *qa.PageResult, contentHash string) error
	Close() error
}

// Analyzer owns the pipeline components. Construct with New; it is safe for
// concurrent use by the batch workers.
type Analyzer struct {
	cfg       config.Config
	fetcher   pageFetcher
	extractor blockExtractor
	detector  languageDetector
	verifier  blockVerifier
	store     resultStore
}

// New wires the pipeline from configuration. Backend resolution is partial
// by design: unavailable backends are logged and skipped as long as the
// configured minimums hold.
func New(cfg config.Config) (*Analyzer, error) {
	detectors, errs := language.Resolve(cfg.Detector)
	for _, err := range errs {
		slog.Warn("detector backend unavailable", "error", err)
	}
	detector, err := language.NewComposite(detectors, cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("build language detector: %w", err)
	}

	verifiers, errs := verify.Resolve(cfg.Verifier)
	for _, err := range errs {
		slog.Warn("verifier backend unavailable", "error", err)
	}
	verifier, err := verify.NewComposite(verifiers, cfg.Verifier)
	if err != nil {
		return nil, fmt.Errorf("build verifier: %w", err)
	}

	a := &Analyzer{
		cfg:       cfg,
		fetcher:   fetch.New(cfg.Fetcher),
		extractor: extract.New(),
		detector:  detector,
		verifier:  verifier,
	}

	if cfg.DBPath != "" {
		st, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
	}
	return a, nil
}

// Close releases the analyzer's resources.
func (a *Analyzer) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// AnalyzeURL runs the pipeline for one page. It always returns a result:
// page-level failures (fetch, extraction, timeout) are reported through
// AnalysisError plus one synthetic critical issue rather than an error.
func (a *Analyzer) AnalyzeURL(ctx context.Context, pageURL string) *qa.PageResult {
	start := time.Now()
	result := &qa.PageResult{
		URL:        pageURL,
		TargetLang: a.cfg.TargetLang,
		RenderJS:   a.cfg.RenderJS,
		AnalyzedAt: start.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.MaxAnalysisTime)
	defer cancel()

	fetched, err := a.fetcher.GetWithMetadata(ctx, pageURL)
	if err != nil {
		return a.failed(result, "fetch", err, start, "")
	}
	result.PageTitle = fetched.Title

	contentHash := store.ContentHash(fetched.Content)
	if a.store != nil && !a.cfg.NoCache {
		cached, hit, err := a.store.GetCached(ctx, pageURL, a.cfg.TargetLang, contentHash)
		if err != nil {
			slog.Warn("cache lookup failed", "url", pageURL, "error", err)
		} else if hit {
			slog.Debug("serving cached result", "url", pageURL)
			return cached
		}
	}

	extractStart := time.Now()
	extraction := a.extractor.ExtractBlocks(fetched.Content, fetched.FinalURL)
	if !extraction.Success {
		return a.failed(result, "extraction",
			fmt.Errorf("%w: %s", qa.ErrExtraction, extraction.ErrorMessage), start, contentHash)
	}
	extractDuration := time.Since(extractStart)

	if extraction.Title != "" {
		result.PageTitle = extraction.Title
	}
	result.PageLang = extraction.DeclaredLanguage
	result.MetaDescription = extraction.MetaDescription

	var issues []qa.Issue
	langTokens := make(map[string]int)
	totalTokens := 0
	if elapsed := time.Since(start); elapsed > a.cfg.MaxAnalysisTime {
		slog.Warn("analysis budget exhausted by extraction", "url", pageURL, "elapsed", elapsed)
		issues = []qa.Issue{a.timeoutIssue(pageURL, 0, len(extraction.Blocks), elapsed)}
	} else {
		issues, langTokens, totalTokens = a.analyzeBlocks(ctx, pageURL, extraction.Blocks, start)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].OffsetStart != issues[j].OffsetStart {
			return issues[i].OffsetStart < issues[j].OffsetStart
		}
		return issues[i].Severity > issues[j].Severity
	})
	result.Issues = issues

	result.Stats = qa.ComputeStats(issues, langTokens, totalTokens, len(extraction.Blocks),
		a.cfg.TargetLang, a.cfg.NormalizeByBlocks)
	result.Stats.TotalChars = len(extraction.RawText)
	result.Stats.HTMLSizeBytes = len(fetched.Content)
	result.Stats.FetchDuration = fetched.LoadTime.Seconds()
	result.Stats.ExtractDuration = extractDuration.Seconds()
	result.Stats.AnalysisDuration = time.Since(start).Seconds()

	a.save(ctx, result, contentHash)
	return result
}

// analyzeBlocks runs detection and verification per block, rebasing issue
// offsets from block-relative to page-relative positions.
func (a *Analyzer) analyzeBlocks(ctx context.Context, pageURL string, blocks []qa.TextBlock, start time.Time) ([]qa.Issue, map[string]int, int) {
	var issues []qa.Issue
	langTokens := make(map[string]int)
	totalTokens := 0

	for i := range blocks {
		block := &blocks[i]

		if i > 0 && i%timeoutCheckInterval == 0 {
			if elapsed := time.Since(start); elapsed > a.cfg.MaxAnalysisTime {
				issues = append(issues, a.timeoutIssue(pageURL, i, len(blocks), elapsed))
				slog.Warn("analysis budget exceeded", "url", pageURL, "blocks_done", i, "blocks_total", len(blocks))
				break
			}
		}

		detected := a.detector.DetectBlock(block.Text)
		for lang, n := range a.detector.DetectTokens(block.Text) {
			langTokens[lang] += n
			totalTokens += n
		}

		if a.cfg.LeakPolicy != config.LeakHeuristic &&
			detected.DetectedLanguage != a.cfg.TargetLang &&
			detected.DetectedLanguage != language.Unknown {
			issues = append(issues, a.detectionLeak(block, pageURL, detected))
		}

		if !a.shouldVerify(block, detected) {
			continue
		}
		for _, issue := range a.verifier.Check(ctx, block.Text, a.cfg.TargetLang, block) {
			if issue.Type == qa.LanguageLeak && a.cfg.LeakPolicy == config.LeakDirect {
				continue
			}
			issue.OffsetStart += block.OffsetStart
			issue.OffsetEnd += block.OffsetStart
			issue.XPath = block.XPath
			issue.SourceURL = pageURL
			issues = append(issues, issue)
		}
	}

	if a.cfg.LeakPolicy == config.LeakBoth {
		issues = dedupLeaks(issues)
	}
	return issues, langTokens, totalTokens
}

// detectionLeak turns the composite detector's verdict on a block into a
// leak issue. This is the authoritative signal of the "direct" policy; the
// rule-based scorer in the heuristic verifier covers the "heuristic" path.
func (a *Analyzer) detectionLeak(block *qa.TextBlock, pageURL string, detected language.Result) qa.Issue {
	lang := strings.ToUpper(detected.DetectedLanguage)
	issue := qa.NewIssue(qa.LanguageLeak,
		fmt.Sprintf("Block detected as %s where %s was expected", lang, strings.ToUpper(a.cfg.TargetLang)),
		qa.Snip(block.Text, 100), block.OffsetStart, block.OffsetEnd, a.cfg.TargetLang, detected.Confidence)
	issue.DetectedLang = detected.DetectedLanguage
	issue.RuleID = "LANGUAGE_LEAK_" + lang
	issue.XPath = block.XPath
	issue.SourceURL = pageURL
	return issue
}

// timeoutIssue builds the synthetic critical issue reported when the
// analysis budget runs out before all blocks are checked.
func (a *Analyzer) timeoutIssue(pageURL string, done, total int, elapsed time.Duration) qa.Issue {
	terr := &qa.TimeoutError{
		Operation: "analysis",
		Elapsed:   elapsed.Seconds(),
		Limit:     a.cfg.MaxAnalysisTime.Seconds(),
	}
	issue := qa.NewIssue(qa.Grammar,
		fmt.Sprintf("%v; %d of %d blocks analyzed", terr, done, total),
		"", 0, 0, a.cfg.TargetLang, 1.0)
	issue.Severity = qa.Critical
	issue.SourceURL = pageURL
	return issue
}

// shouldVerify decides whether a block's text goes through the verifiers.
// Blocks confidently detected as another language are leaks, and blocks over
// the size cap would swamp the grammar backend.
func (a *Analyzer) shouldVerify(block *qa.TextBlock, detected language.Result) bool {
	if a.cfg.BlockSizeCap > 0 && len(block.Text) >= a.cfg.BlockSizeCap {
		return false
	}
	if detected.DetectedLanguage == a.cfg.TargetLang || detected.DetectedLanguage == language.Unknown {
		return true
	}
	return detected.Confidence < verifyConfidenceCeiling
}

// dedupLeaks collapses leak issues that the direct detector and the
// heuristic verifier both reported for the same block and language, keeping
// the more confident one.
func dedupLeaks(issues []qa.Issue) []qa.Issue {
	type key struct {
		xpath string
		lang  string
	}
	seen := make(map[key]int)
	out := issues[:0]
	for _, issue := range issues {
		if issue.Type != qa.LanguageLeak {
			out = append(out, issue)
			continue
		}
		k := key{xpath: issue.XPath, lang: issue.DetectedLang}
		if idx, dup := seen[k]; dup {
			if issue.Confidence > out[idx].Confidence {
				out[idx] = issue
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, issue)
	}
	return out
}

// failed finalizes a result for a page-level failure: the error is recorded
// and surfaced as one synthetic critical issue so report consumers see it
// alongside ordinary findings.
func (a *Analyzer) failed(result *qa.PageResult, stage string, err error, start time.Time, contentHash string) *qa.PageResult {
	slog.Error("analysis failed", "url", result.URL, "stage", stage, "error", err)
	result.AnalysisError = err.Error()

	issue := qa.NewIssue(qa.Grammar,
		fmt.Sprintf("Analysis failed during %s: %v", stage, err),
		"", 0, 0, a.cfg.TargetLang, 1.0)
	issue.Severity = qa.Critical
	issue.SourceURL = result.URL
	result.Issues = []qa.Issue{issue}

	result.Stats = qa.ComputeStats(result.Issues, nil, 0, 0, a.cfg.TargetLang, a.cfg.NormalizeByBlocks)
	result.Stats.AnalysisDuration = time.Since(start).Seconds()

	a.save(context.Background(), result, contentHash)
	return result
}

func (a *Analyzer) save(ctx context.Context, result *qa.PageResult, contentHash string) {
	if a.store == nil || contentHash == "" {
		return
	}
	if err := a.store.SaveResult(ctx, result, contentHash); err != nil {
		slog.Warn("persisting result failed", "url", result.URL, "error", err)
	}
}
