package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/language"
	"github.com/valpere/transqa/internal/qa"
)

type mockFetcher struct {
	fetchFunc func(ctx context.Context, rawURL string) (*qa.FetchResult, error)
}

func (m *mockFetcher) GetWithMetadata(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
	return m.fetchFunc(ctx, rawURL)
}

type mockExtractor struct {
	calls       atomic.Int32
	extractFunc func(htmlContent, pageURL string) *qa.ExtractionResult
}

func (m *mockExtractor) ExtractBlocks(htmlContent, pageURL string) *qa.ExtractionResult {
	m.calls.Add(1)
	return m.extractFunc(htmlContent, pageURL)
}

type mockDetector struct {
	detectFunc func(text string) language.Result
	tokensFunc func(text string) map[string]int
}

func (m *mockDetector) DetectBlock(text string) language.Result {
	if m.detectFunc == nil {
		return language.Result{DetectedLanguage: "en", Confidence: 0.9, Method: "mock"}
	}
	return m.detectFunc(text)
}

func (m *mockDetector) DetectTokens(text string) map[string]int {
	if m.tokensFunc == nil {
		return map[string]int{"en": len(strings.Fields(text))}
	}
	return m.tokensFunc(text)
}

type mockVerifier struct {
	calls     atomic.Int32
	checkFunc func(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue
}

func (m *mockVerifier) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	m.calls.Add(1)
	if m.checkFunc == nil {
		return nil
	}
	return m.checkFunc(ctx, text, targetLang, block)
}

type mockStore struct {
	cached    *qa.PageResult
	getCalls  atomic.Int32
	saveCalls atomic.Int32
	saved     *qa.PageResult
}

func (m *mockStore) GetCached(ctx context.Context, url, targetLang, contentHash string) (*qa.PageResult, bool, error) {
	m.getCalls.Add(1)
	if m.cached != nil {
		return m.cached, true, nil
	}
	return nil, false, nil
}

func (m *mockStore) SaveResult(ctx context.Context, result *qa.PageResult, contentHash string) error {
	m.saveCalls.Add(1)
	m.saved = result
	return nil
}

func (m *mockStore) Close() error { return nil }

func testCfg() config.Config {
	return config.Config{
		TargetLang:        "en",
		LeakPolicy:        config.LeakBoth,
		BlockSizeCap:      1000,
		MaxAnalysisTime:   30 * time.Second,
		NormalizeByBlocks: true,
		Workers:           2,
	}
}

func blocksOf(texts ...string) []qa.TextBlock {
	blocks := make([]qa.TextBlock, len(texts))
	offset := 0
	for i, text := range texts {
		blocks[i] = qa.TextBlock{
			Text:        text,
			XPath:       fmt.Sprintf("/html/body/p[%d]", i+1),
			TagName:     "p",
			BlockType:   "paragraph",
			OffsetStart: offset,
			OffsetEnd:   offset + len(text),
		}
		offset += len(text) + 2
	}
	return blocks
}

func testAnalyzer(cfg config.Config, fetcher *mockFetcher, extractor *mockExtractor, detector *mockDetector, verifier *mockVerifier, st *mockStore) *Analyzer {
	a := &Analyzer{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		detector:  detector,
		verifier:  verifier,
	}
	if st != nil {
		a.store = st
	}
	return a
}

func okFetcher() *mockFetcher {
	return &mockFetcher{fetchFunc: func(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
		return &qa.FetchResult{Content: "<html>page</html>", StatusCode: 200, FinalURL: rawURL, Title: "Page"}, nil
	}}
}

func extractorOf(blocks []qa.TextBlock) *mockExtractor {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return &mockExtractor{extractFunc: func(htmlContent, pageURL string) *qa.ExtractionResult {
		return &qa.ExtractionResult{
			Blocks:  blocks,
			RawText: strings.Join(texts, "\n\n"),
			Title:   "Extracted Title",
			Success: true,
		}
	}}
}

func TestAnalyzeURLRebasesIssueOffsets(t *testing.T) {
	blocks := blocksOf(
		"The first paragraph reads naturally in English text.",
		"This block contains an empty {} placeholder marker.",
		"The closing paragraph also reads naturally in English.",
	)

	verifier := &mockVerifier{checkFunc: func(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
		idx := strings.Index(text, "{}")
		if idx < 0 {
			return nil
		}
		issue := qa.NewIssue(qa.Placeholder, "Empty placeholder", "{}", idx, idx+2, targetLang, 0.9)
		issue.RuleID = "EMPTY_PLACEHOLDER"
		return []qa.Issue{issue}
	}}

	a := testAnalyzer(testCfg(), okFetcher(), extractorOf(blocks), &mockDetector{}, verifier, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/page")

	if result.AnalysisError != "" {
		t.Fatalf("unexpected analysis error: %s", result.AnalysisError)
	}
	if result.PageTitle != "Extracted Title" {
		t.Errorf("page title = %q", result.PageTitle)
	}
	if len(result.Issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(result.Issues))
	}

	issue := result.Issues[0]
	wantStart := blocks[1].OffsetStart + strings.Index(blocks[1].Text, "{}")
	if issue.OffsetStart != wantStart || issue.OffsetEnd != wantStart+2 {
		t.Errorf("offsets = [%d,%d], want [%d,%d]", issue.OffsetStart, issue.OffsetEnd, wantStart, wantStart+2)
	}
	if issue.XPath != blocks[1].XPath {
		t.Errorf("xpath = %q, want %q", issue.XPath, blocks[1].XPath)
	}
	if issue.SourceURL != "https://example.com/page" {
		t.Errorf("source url = %q", issue.SourceURL)
	}
	if result.Stats.TotalBlocks != 3 || result.Stats.OverallScore >= 1.0 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestFetchFailureYieldsCriticalIssue(t *testing.T) {
	fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
		return nil, &qa.FetchError{URL: rawURL, StatusCode: 503, Err: errors.New("unavailable")}
	}}

	a := testAnalyzer(testCfg(), fetcher, extractorOf(nil), &mockDetector{}, &mockVerifier{}, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/down")

	if result.AnalysisError == "" {
		t.Fatal("AnalysisError not set")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("got %d issues, want 1 synthetic", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.Severity != qa.Critical {
		t.Errorf("severity = %v, want critical", issue.Severity)
	}
	if !strings.Contains(issue.Message, "fetch") {
		t.Errorf("message = %q", issue.Message)
	}
}

func TestExtractionFailureYieldsCriticalIssue(t *testing.T) {
	extractor := &mockExtractor{extractFunc: func(htmlContent, pageURL string) *qa.ExtractionResult {
		return &qa.ExtractionResult{Success: false, ErrorMessage: "malformed markup"}
	}}

	a := testAnalyzer(testCfg(), okFetcher(), extractor, &mockDetector{}, &mockVerifier{}, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/bad")

	if result.AnalysisError == "" || !strings.Contains(result.AnalysisError, "malformed markup") {
		t.Errorf("AnalysisError = %q", result.AnalysisError)
	}
	if len(result.Issues) != 1 || result.Issues[0].Severity != qa.Critical {
		t.Fatalf("issues = %+v", result.Issues)
	}
}

func TestAnalysisTimeoutProducesTimedOutIssue(t *testing.T) {
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("Paragraph number %d with plenty of English words inside.", i)
	}
	blocks := blocksOf(texts...)

	detector := &mockDetector{detectFunc: func(text string) language.Result {
		time.Sleep(2 * time.Millisecond)
		return language.Result{DetectedLanguage: "en", Confidence: 0.9, Method: "mock"}
	}}

	cfg := testCfg()
	cfg.MaxAnalysisTime = 5 * time.Millisecond
	a := testAnalyzer(cfg, okFetcher(), extractorOf(blocks), detector, &mockVerifier{}, nil)

	result := a.AnalyzeURL(context.Background(), "https://example.com/slow")

	found := false
	for _, issue := range result.Issues {
		if issue.Severity == qa.Critical && strings.Contains(issue.Message, "timed out") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no timed-out critical issue in %+v", result.Issues)
	}
}

func TestSlowExtractionProducesTimedOutIssue(t *testing.T) {
	blocks := blocksOf("A block that will never reach the per-block checks.")
	slow := &mockExtractor{extractFunc: func(htmlContent, pageURL string) *qa.ExtractionResult {
		time.Sleep(10 * time.Millisecond)
		return &qa.ExtractionResult{Blocks: blocks, Success: true}
	}}

	cfg := testCfg()
	cfg.MaxAnalysisTime = 5 * time.Millisecond
	verifier := &mockVerifier{}
	a := testAnalyzer(cfg, okFetcher(), slow, &mockDetector{}, verifier, nil)

	result := a.AnalyzeURL(context.Background(), "https://example.com/huge")

	if len(result.Issues) != 1 {
		t.Fatalf("got %d issues, want 1 synthetic timeout", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.Severity != qa.Critical || !strings.Contains(issue.Message, "timed out") {
		t.Errorf("issue = %+v, want critical timed-out", issue)
	}
	if !strings.Contains(issue.Message, "0 of 1 blocks") {
		t.Errorf("message = %q, want zero blocks analyzed", issue.Message)
	}
	if verifier.calls.Load() != 0 {
		t.Errorf("verifier ran %d times after the budget expired", verifier.calls.Load())
	}
}

func TestConfidentForeignBlockSkipsVerification(t *testing.T) {
	blocks := blocksOf("Este es un bloque completamente en otro idioma distinto.")
	detector := &mockDetector{detectFunc: func(text string) language.Result {
		return language.Result{DetectedLanguage: "es", Confidence: 0.95, Method: "mock"}
	}}

	verifier := &mockVerifier{}
	a := testAnalyzer(testCfg(), okFetcher(), extractorOf(blocks), detector, verifier, nil)
	a.AnalyzeURL(context.Background(), "https://example.com/x")

	if got := verifier.calls.Load(); got != 0 {
		t.Errorf("verifier called %d times for confident foreign block, want 0", got)
	}
}

func TestOversizedBlockSkipsVerification(t *testing.T) {
	big := strings.Repeat("An oversized block keeps repeating itself. ", 40)
	blocks := blocksOf(big)

	cfg := testCfg()
	cfg.BlockSizeCap = 100
	verifier := &mockVerifier{}
	a := testAnalyzer(cfg, okFetcher(), extractorOf(blocks), &mockDetector{}, verifier, nil)
	a.AnalyzeURL(context.Background(), "https://example.com/x")

	if got := verifier.calls.Load(); got != 0 {
		t.Errorf("verifier called %d times for oversized block, want 0", got)
	}
}

func TestDetectionLeakFromDetectorVerdict(t *testing.T) {
	blocks := blocksOf("El contenido de la página sigue siendo español aquí mismo.")
	detector := &mockDetector{detectFunc: func(text string) language.Result {
		return language.Result{DetectedLanguage: "es", Confidence: 0.95, Method: "mock"}
	}}

	cfg := testCfg()
	cfg.LeakPolicy = config.LeakDirect
	a := testAnalyzer(cfg, okFetcher(), extractorOf(blocks), detector, &mockVerifier{}, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/x")

	leaks := 0
	for _, issue := range result.Issues {
		if issue.Type != qa.LanguageLeak {
			continue
		}
		leaks++
		if issue.DetectedLang != "es" {
			t.Errorf("DetectedLang = %q, want es", issue.DetectedLang)
		}
		if issue.Confidence != 0.95 {
			t.Errorf("confidence = %g, want the detector's 0.95", issue.Confidence)
		}
		if issue.RuleID != "LANGUAGE_LEAK_ES" {
			t.Errorf("RuleID = %q", issue.RuleID)
		}
		if issue.XPath != blocks[0].XPath {
			t.Errorf("xpath = %q, want %q", issue.XPath, blocks[0].XPath)
		}
	}
	if leaks != 1 {
		t.Fatalf("got %d leak issues for a confidently foreign block, want 1", leaks)
	}
}

func TestDirectLeakPolicyDropsVerifierLeaks(t *testing.T) {
	blocks := blocksOf("El contenido de la página sigue siendo español aquí mismo.")
	// Confidence under the verification ceiling, so the verifiers still run.
	detector := &mockDetector{detectFunc: func(text string) language.Result {
		return language.Result{DetectedLanguage: "es", Confidence: 0.5, Method: "mock"}
	}}
	verifier := &mockVerifier{checkFunc: func(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
		issue := qa.NewIssue(qa.LanguageLeak, "heuristic leak", text, 0, len(text), targetLang, 0.5)
		issue.DetectedLang = "es"
		return []qa.Issue{issue}
	}}

	cfg := testCfg()
	cfg.LeakPolicy = config.LeakDirect
	a := testAnalyzer(cfg, okFetcher(), extractorOf(blocks), detector, verifier, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/x")

	if verifier.calls.Load() == 0 {
		t.Fatal("verifier never ran; the test exercises nothing")
	}
	for _, issue := range result.Issues {
		if issue.Type == qa.LanguageLeak && issue.Message == "heuristic leak" {
			t.Error("verifier leak survived direct policy")
		}
	}
	// The detection-based signal still reports the Spanish content.
	leaks := 0
	for _, issue := range result.Issues {
		if issue.Type == qa.LanguageLeak {
			leaks++
		}
	}
	if leaks == 0 {
		t.Error("direct policy produced no leak issues for Spanish text")
	}
}

func TestBothLeakPolicyDeduplicates(t *testing.T) {
	blocks := blocksOf("El contenido de la página sigue siendo español aquí mismo.")
	detector := &mockDetector{detectFunc: func(text string) language.Result {
		return language.Result{DetectedLanguage: "es", Confidence: 0.6, Method: "mock"}
	}}
	verifier := &mockVerifier{checkFunc: func(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
		issue := qa.NewIssue(qa.LanguageLeak, "heuristic leak", text, 0, len(text), targetLang, 0.2)
		issue.DetectedLang = "es"
		return []qa.Issue{issue}
	}}

	a := testAnalyzer(testCfg(), okFetcher(), extractorOf(blocks), detector, verifier, nil)
	result := a.AnalyzeURL(context.Background(), "https://example.com/x")

	esLeaks := 0
	for _, issue := range result.Issues {
		if issue.Type == qa.LanguageLeak && issue.DetectedLang == "es" {
			esLeaks++
			if issue.Message == "heuristic leak" {
				t.Error("lower-confidence duplicate survived dedup")
			}
		}
	}
	if esLeaks != 1 {
		t.Errorf("got %d Spanish leak issues for one block, want 1", esLeaks)
	}
}

func TestCacheHitSkipsPipeline(t *testing.T) {
	cached := &qa.PageResult{URL: "https://example.com/x", TargetLang: "en", PageTitle: "Cached"}
	st := &mockStore{cached: cached}
	extractor := extractorOf(blocksOf("Some block text that would normally be analyzed here."))

	a := testAnalyzer(testCfg(), okFetcher(), extractor, &mockDetector{}, &mockVerifier{}, st)
	result := a.AnalyzeURL(context.Background(), "https://example.com/x")

	if result.PageTitle != "Cached" {
		t.Errorf("result = %+v, want cached result", result)
	}
	if extractor.calls.Load() != 0 {
		t.Error("extractor ran despite cache hit")
	}
	if st.saveCalls.Load() != 0 {
		t.Error("cache hit re-saved the result")
	}
}

func TestNoCacheBypassesLookup(t *testing.T) {
	st := &mockStore{cached: &qa.PageResult{PageTitle: "Stale"}}
	cfg := testCfg()
	cfg.NoCache = true

	blocks := blocksOf("A perfectly ordinary English sentence for the analyzer.")
	a := testAnalyzer(cfg, okFetcher(), extractorOf(blocks), &mockDetector{}, &mockVerifier{}, st)
	result := a.AnalyzeURL(context.Background(), "https://example.com/x")

	if st.getCalls.Load() != 0 {
		t.Error("cache consulted despite no_cache")
	}
	if result.PageTitle == "Stale" {
		t.Error("stale cached result returned")
	}
	if st.saveCalls.Load() != 1 {
		t.Errorf("save calls = %d, want 1 (fresh result still persisted)", st.saveCalls.Load())
	}
}

func TestAnalyzeBatchPreservesOrder(t *testing.T) {
	extractor := &mockExtractor{extractFunc: func(htmlContent, pageURL string) *qa.ExtractionResult {
		return &qa.ExtractionResult{Success: true}
	}}
	a := testAnalyzer(testCfg(), okFetcher(), extractor, &mockDetector{}, &mockVerifier{}, nil)

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
		"https://example.com/5",
	}
	batch := a.AnalyzeBatch(context.Background(), urls)

	if len(batch.Pages) != len(urls) {
		t.Fatalf("got %d pages, want %d", len(batch.Pages), len(urls))
	}
	for i, page := range batch.Pages {
		if page.URL != urls[i] {
			t.Errorf("page[%d].URL = %q, want %q", i, page.URL, urls[i])
		}
	}
	if batch.FinishedAt.Before(batch.StartedAt) {
		t.Error("finished before started")
	}
}

func TestAnalyzeBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fetching honors the context, so even dispatched pages fail.
	fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &qa.FetchResult{Content: "<html>x</html>", StatusCode: 200}, nil
	}}
	a := testAnalyzer(testCfg(), fetcher, extractorOf(nil), &mockDetector{}, &mockVerifier{}, nil)
	batch := a.AnalyzeBatch(ctx, []string{"https://example.com/1", "https://example.com/2"})

	if len(batch.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(batch.Pages))
	}
	for _, page := range batch.Pages {
		if page.AnalysisError == "" {
			t.Errorf("page %s has no analysis error after cancellation", page.URL)
		}
	}
}
