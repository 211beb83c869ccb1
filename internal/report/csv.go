package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/valpere/transqa/internal/qa"
)

type csvRenderer struct{}

var csvHeader = []string{
	"url", "type", "severity", "rule_id", "message", "suggestion",
	"snippet", "xpath", "offset_start", "offset_end", "confidence",
	"detected_lang", "source_verifier",
}

func (r *csvRenderer) RenderPage(w io.Writer, result *qa.PageResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writeIssueRows(writer, result); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (r *csvRenderer) RenderBatch(w io.Writer, batch *qa.BatchResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range batch.Pages {
		if err := writeIssueRows(writer, &batch.Pages[i]); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeIssueRows(writer *csv.Writer, result *qa.PageResult) error {
	for _, issue := range result.Issues {
		row := []string{
			result.URL,
			string(issue.Type),
			issue.Severity.String(),
			issue.RuleID,
			issue.Message,
			issue.Suggestion,
			issue.Snippet,
			issue.XPath,
			fmt.Sprintf("%d", issue.OffsetStart),
			fmt.Sprintf("%d", issue.OffsetEnd),
			fmt.Sprintf("%.2f", issue.Confidence),
			issue.DetectedLang,
			issue.SourceVerifier,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return nil
}
