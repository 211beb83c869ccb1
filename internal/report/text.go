package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/valpere/transqa/internal/qa"
)

type textRenderer struct{}

func (r *textRenderer) RenderPage(w io.Writer, result *qa.PageResult) error {
	fmt.Fprintf(w, "URL:          %s\n", result.URL)
	if result.PageTitle != "" {
		fmt.Fprintf(w, "Title:        %s\n", result.PageTitle)
	}
	fmt.Fprintf(w, "Target lang:  %s\n", result.TargetLang)
	if result.PageLang != "" && result.PageLang != result.TargetLang {
		fmt.Fprintf(w, "Declared lang: %s (differs from target)\n", result.PageLang)
	}

	if result.AnalysisError != "" {
		fmt.Fprintf(w, "\nANALYSIS FAILED: %s\n", result.AnalysisError)
	}

	fmt.Fprintf(w, "\nScore:        %.2f\n", result.Stats.OverallScore)
	fmt.Fprintf(w, "Purity:       %.1f%% %s\n", result.Stats.LanguagePurityScore*100, result.TargetLang)
	fmt.Fprintf(w, "Blocks:       %d (%d tokens)\n", result.Stats.TotalBlocks, result.Stats.TotalTokens)
	fmt.Fprintf(w, "Duration:     %.2fs\n", result.Stats.AnalysisDuration)

	if len(result.Stats.LanguageDistribution) > 0 {
		fmt.Fprintf(w, "Languages:    %s\n", formatDistribution(result.Stats.LanguageDistribution))
	}

	if len(result.Issues) == 0 {
		fmt.Fprintln(w, "\nNo issues found.")
		return nil
	}

	fmt.Fprintf(w, "\nIssues (%d):\n", len(result.Issues))
	for _, sev := range []qa.Severity{qa.Critical, qa.Error, qa.Warning, qa.Info} {
		if n := result.Stats.IssuesBySeverity[sev.String()]; n > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", sev.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	for i, issue := range result.Issues {
		fmt.Fprintf(w, "%3d. [%s] %s: %s\n", i+1, strings.ToUpper(issue.Severity.String()), issue.Type, issue.Message)
		if issue.Snippet != "" {
			fmt.Fprintf(w, "     text:    %q\n", qa.Snip(issue.Snippet, 80))
		}
		if issue.Suggestion != "" {
			fmt.Fprintf(w, "     suggest: %s\n", issue.Suggestion)
		}
		fmt.Fprintf(w, "     where:   %s [%d:%d]", issue.XPath, issue.OffsetStart, issue.OffsetEnd)
		if issue.RuleID != "" {
			fmt.Fprintf(w, "  rule=%s", issue.RuleID)
		}
		fmt.Fprintf(w, "  confidence=%.2f\n", issue.Confidence)
	}
	return nil
}

func (r *textRenderer) RenderBatch(w io.Writer, batch *qa.BatchResult) error {
	fmt.Fprintf(w, "Batch: %d pages, %d issues total (target %s)\n",
		len(batch.Pages), batch.TotalIssues(), batch.TargetLang)
	fmt.Fprintf(w, "Ran:   %s .. %s\n\n",
		batch.StartedAt.Format("2006-01-02 15:04:05"),
		batch.FinishedAt.Format("2006-01-02 15:04:05"))

	for i := range batch.Pages {
		page := &batch.Pages[i]
		status := fmt.Sprintf("score %.2f, %d issues", page.Stats.OverallScore, len(page.Issues))
		if page.AnalysisError != "" {
			status = "FAILED: " + page.AnalysisError
		}
		fmt.Fprintf(w, "%3d. %s  (%s)\n", i+1, page.URL, status)
	}

	fmt.Fprintln(w)
	for i := range batch.Pages {
		page := &batch.Pages[i]
		if len(page.Issues) == 0 && page.AnalysisError == "" {
			continue
		}
		fmt.Fprintf(w, "==== %s ====\n", page.URL)
		if err := r.RenderPage(w, page); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func formatDistribution(dist map[string]float64) string {
	langs := make([]string, 0, len(dist))
	for lang := range dist {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return dist[langs[i]] > dist[langs[j]] })

	parts := make([]string, 0, len(langs))
	for _, lang := range langs {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", lang, dist[lang]))
	}
	return strings.Join(parts, ", ")
}
