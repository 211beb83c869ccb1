package qa

import "time"

// TextBlock is one semantically distinct region of page text produced by the
// extractor. Offsets are positions within the page's concatenated raw text.
// Blocks are immutable once created.
type TextBlock struct {
	Text        string            `json:"text"`
	XPath       string            `json:"xpath"`
	TagName     string            `json:"tag_name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	BlockType   string            `json:"block_type"` // text, heading, list_item, ...
	OffsetStart int               `json:"offset_start"`
	OffsetEnd   int               `json:"offset_end"`
}

// ExtractionResult is the outcome of pulling text blocks out of HTML.
type ExtractionResult struct {
	Blocks           []TextBlock `json:"blocks"`
	RawText          string      `json:"raw_text"`
	Title            string      `json:"title,omitempty"`
	MetaDescription  string      `json:"meta_description,omitempty"`
	DeclaredLanguage string      `json:"declared_language,omitempty"` // from <html lang>
	Success          bool        `json:"success"`
	ErrorMessage     string      `json:"error_message,omitempty"`
}

// FetchResult is the outcome of fetching a URL, with response metadata.
type FetchResult struct {
	Content     string
	StatusCode  int
	ContentType string
	Title       string
	FinalURL    string
	LoadTime    time.Duration
}

// AnalysisStats aggregates per-page counts and quality scores. It is derived
// once from the final issue list plus token counts, never updated in place.
type AnalysisStats struct {
	TotalTokens          int                `json:"total_tokens"`
	TotalBlocks          int                `json:"total_blocks"`
	TotalChars           int                `json:"total_chars"`
	LanguageDistribution map[string]float64 `json:"language_distribution"` // lang -> pct of tokens
	IssuesByType         map[string]int     `json:"issues_by_type"`
	IssuesBySeverity     map[string]int     `json:"issues_by_severity"`
	AnalysisDuration     float64            `json:"analysis_duration_seconds"`
	FetchDuration        float64            `json:"fetch_duration_seconds"`
	ExtractDuration      float64            `json:"extraction_duration_seconds"`
	HTMLSizeBytes        int                `json:"html_size_bytes"`
	OverallScore         float64            `json:"overall_score"`         // 1.0 = no issues
	LanguagePurityScore  float64            `json:"language_purity_score"` // fraction of tokens in target lang
}

// Penalty weights per severity used for the overall score.
const (
	criticalPenalty = 0.5
	errorPenalty    = 0.2
	warningPenalty  = 0.05
)

// ComputeStats derives AnalysisStats from the final issue list and the
// token-weighted language distribution. When normalizeByBlocks is set the
// penalty is divided by the block count before being applied, so long pages
// are not scored down by absolute issue counts alone.
func ComputeStats(issues []Issue, langTokens map[string]int, totalTokens, totalBlocks int, targetLang string, normalizeByBlocks bool) AnalysisStats {
	stats := AnalysisStats{
		TotalTokens:          totalTokens,
		TotalBlocks:          totalBlocks,
		LanguageDistribution: make(map[string]float64),
		IssuesByType:         make(map[string]int),
		IssuesBySeverity:     make(map[string]int),
	}

	if totalTokens > 0 {
		for lang, count := range langTokens {
			stats.LanguageDistribution[lang] = float64(count) / float64(totalTokens) * 100
		}
	}

	for _, issue := range issues {
		stats.IssuesByType[string(issue.Type)]++
		stats.IssuesBySeverity[issue.Severity.String()]++
	}

	penalty := criticalPenalty*float64(stats.IssuesBySeverity[Critical.String()]) +
		errorPenalty*float64(stats.IssuesBySeverity[Error.String()]) +
		warningPenalty*float64(stats.IssuesBySeverity[Warning.String()])
	if normalizeByBlocks && totalBlocks > 1 {
		penalty /= float64(totalBlocks)
	}
	if penalty > 1 {
		penalty = 1
	}
	stats.OverallScore = 1 - penalty

	stats.LanguagePurityScore = stats.LanguageDistribution[targetLang] / 100
	return stats
}

// PageResult is one URL's full analysis outcome. The orchestrator owns it
// exclusively while it is being built; it is terminal once returned.
type PageResult struct {
	URL              string        `json:"url"`
	TargetLang       string        `json:"target_lang"`
	RenderJS         bool          `json:"render_js"`
	PageTitle        string        `json:"page_title,omitempty"`
	PageLang         string        `json:"page_lang,omitempty"` // declared language
	MetaDescription  string        `json:"meta_description,omitempty"`
	Issues           []Issue       `json:"issues"`
	Stats            AnalysisStats `json:"stats"`
	AnalysisError    string        `json:"analysis_error,omitempty"`
	AnalyzedAt       time.Time     `json:"analyzed_at"`
}

// CountAtOrAbove returns how many issues are at or above the given severity.
func (r *PageResult) CountAtOrAbove(min Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity >= min {
			n++
		}
	}
	return n
}

// BatchResult bundles the outcomes of a multi-URL run.
type BatchResult struct {
	TargetLang string       `json:"target_lang"`
	Pages      []PageResult `json:"pages"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// TotalIssues sums issues across all pages.
func (b *BatchResult) TotalIssues() int {
	n := 0
	for i := range b.Pages {
		n += len(b.Pages[i].Issues)
	}
	return n
}
