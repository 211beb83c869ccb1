/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/valpere/transqa/internal/analyzer"
	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
	"github.com/valpere/transqa/internal/report"
)

var (
	analyzeFormat     string
	analyzeOutput     string
	analyzeRenderJS   bool
	analyzeLeakPolicy string
	analyzeLTURL      string
	analyzeFailOn     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one web page for translation quality",
	Long: `Fetch a page, extract its text blocks, and check each block against the
target language: language leaks, grammar and spelling (via a LanguageTool
server), placeholder integrity, and formatting heuristics.

Example:
  transqa analyze -t nl https://example.com/over-ons
  transqa analyze -t es -f json -o report.json https://example.com/es/
  transqa analyze -t en --fail-on error https://example.com/  # CI gate`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if analyzeRenderJS {
			cfg.RenderJS = true
			slog.Warn("JS rendering is not available in this build; fetching static HTML")
		}
		if analyzeLeakPolicy != "" {
			cfg.LeakPolicy = config.LeakPolicy(analyzeLeakPolicy)
		}
		if analyzeLTURL != "" {
			cfg.Verifier.LanguageToolURL = analyzeLTURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		format, err := report.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}
		renderer, err := report.New(format)
		if err != nil {
			return err
		}

		a, err := analyzer.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.AnalyzeURL(cmd.Context(), args[0])

		out, err := openOutput(analyzeOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		if err := renderer.RenderPage(out, result); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}

		if result.AnalysisError != "" {
			return fmt.Errorf("analysis failed: %s", result.AnalysisError)
		}
		return checkFailOn(analyzeFailOn, result.CountAtOrAbove)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "Output format: text, json, csv, html")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Output file (default: stdout)")
	analyzeCmd.Flags().BoolVar(&analyzeRenderJS, "render-js", false, "Request JS rendering (recorded in the result)")
	analyzeCmd.Flags().StringVar(&analyzeLeakPolicy, "leak-policy", "", "Leak reporting policy: direct, heuristic, both")
	analyzeCmd.Flags().StringVar(&analyzeLTURL, "languagetool-url", "", "LanguageTool server base URL")
	analyzeCmd.Flags().StringVar(&analyzeFailOn, "fail-on", "", "Exit non-zero when issues at or above this severity exist (info, warning, error, critical)")
}

// countBatchAtOrAbove counts issues at or above a severity across all pages.
func countBatchAtOrAbove(batch *qa.BatchResult, min qa.Severity) int {
	n := 0
	for i := range batch.Pages {
		n += batch.Pages[i].CountAtOrAbove(min)
	}
	return n
}
