package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/valpere/transqa/internal/qa"
)

func sampleResult() *qa.PageResult {
	issue := qa.NewIssue(qa.Placeholder, "Empty placeholder", "{}", 120, 122, "en", 0.9)
	issue.RuleID = "EMPTY_PLACEHOLDER"
	issue.XPath = "/html/body/p[2]"
	issue.SourceVerifier = "placeholder"
	issue.Suggestion = "Add the variable name"

	leakIssue := qa.NewIssue(qa.LanguageLeak, "Possible ES words detected: el, la", "el texto", 10, 40, "en", 0.7)
	leakIssue.DetectedLang = "es"

	return &qa.PageResult{
		URL:        "https://example.com/page",
		TargetLang: "en",
		PageTitle:  "Example <Page>",
		Issues:     []qa.Issue{leakIssue, issue},
		Stats: qa.AnalysisStats{
			TotalBlocks:          12,
			TotalTokens:          300,
			OverallScore:         0.85,
			LanguagePurityScore:  0.92,
			LanguageDistribution: map[string]float64{"en": 92.0, "es": 8.0},
			IssuesBySeverity:     map[string]int{"error": 2},
			AnalysisDuration:     1.5,
		},
		AnalyzedAt: time.Now().UTC(),
	}
}

func sampleBatch() *qa.BatchResult {
	page := sampleResult()
	failed := &qa.PageResult{
		URL:           "https://example.com/down",
		TargetLang:    "en",
		AnalysisError: "fetch failed: status 503",
	}
	return &qa.BatchResult{
		TargetLang: "en",
		Pages:      []qa.PageResult{*page, *failed},
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range Formats() {
		if _, err := ParseFormat(name); err != nil {
			t.Errorf("ParseFormat(%q): %v", name, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("ParseFormat accepted unknown format")
	}
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat is not case-insensitive: %v, %v", f, err)
	}
}

func TestTextRenderer(t *testing.T) {
	r, _ := New(FormatText)
	var buf bytes.Buffer
	if err := r.RenderPage(&buf, sampleResult()); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"https://example.com/page",
		"Empty placeholder",
		"EMPTY_PLACEHOLDER",
		"0.85",
		"en 92.0%",
		"/html/body/p[2]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestTextRendererFailedPage(t *testing.T) {
	r, _ := New(FormatText)
	var buf bytes.Buffer
	page := &qa.PageResult{URL: "https://example.com/x", TargetLang: "en", AnalysisError: "boom"}
	if err := r.RenderPage(&buf, page); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if !strings.Contains(buf.String(), "ANALYSIS FAILED: boom") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestJSONRendererRoundTrips(t *testing.T) {
	r, _ := New(FormatJSON)
	var buf bytes.Buffer
	if err := r.RenderPage(&buf, sampleResult()); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}

	var decoded qa.PageResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.URL != "https://example.com/page" || len(decoded.Issues) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Issues[1].Severity != qa.Error {
		t.Errorf("severity did not survive round trip: %v", decoded.Issues[1].Severity)
	}
}

func TestCSVRenderer(t *testing.T) {
	r, _ := New(FormatCSV)
	var buf bytes.Buffer
	if err := r.RenderBatch(&buf, sampleBatch()); err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	// Header plus one row per issue; the failed page contributes none.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0][0] != "url" || records[0][2] != "severity" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][3] != "EMPTY_PLACEHOLDER" {
		t.Errorf("rule_id column = %q", records[2][3])
	}
}

func TestHTMLRendererEscapes(t *testing.T) {
	r, _ := New(FormatHTML)
	var buf bytes.Buffer
	if err := r.RenderPage(&buf, sampleResult()); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "Example <Page>") {
		t.Error("title not HTML-escaped")
	}
	if !strings.Contains(out, "Example &lt;Page&gt;") {
		t.Error("escaped title missing")
	}
	if !strings.Contains(out, "sev-error") {
		t.Error("severity class missing")
	}
}

func TestHTMLBatchRenderer(t *testing.T) {
	r, _ := New(FormatHTML)
	var buf bytes.Buffer
	if err := r.RenderBatch(&buf, sampleBatch()); err != nil {
		t.Fatalf("RenderBatch: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2 pages") {
		t.Error("batch summary missing page count")
	}
	if !strings.Contains(out, "fetch failed: status 503") {
		t.Error("failed page error missing")
	}
}
