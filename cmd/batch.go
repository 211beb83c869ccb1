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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/transqa/internal/analyzer"
	"github.com/valpere/transqa/internal/qa"
	"github.com/valpere/transqa/internal/report"
)

var (
	batchInputFile string
	batchFormat    string
	batchOutput    string
	batchWorkers   int
	batchFailOn    string
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Analyze several web pages concurrently",
	Long: `Analyze a list of URLs with a bounded worker pool. URLs come from the
command line, from a file (-i, one URL per line, # starts a comment), or
both.

Example:
  transqa batch -t nl -i pages.txt -f html -o report.html
  transqa batch -t es --workers 8 https://example.com/a https://example.com/b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := append([]string(nil), args...)
		if batchInputFile != "" {
			fromFile, err := readURLFile(batchInputFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs given (pass them as arguments or with -i)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if batchWorkers > 0 {
			cfg.Workers = batchWorkers
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		format, err := report.ParseFormat(batchFormat)
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

		batch := a.AnalyzeBatch(cmd.Context(), urls)

		out, err := openOutput(batchOutput)
		if err != nil {
			return err
		}
		defer out.Close()

		if err := renderer.RenderBatch(out, batch); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}

		failed := 0
		for i := range batch.Pages {
			if batch.Pages[i].AnalysisError != "" {
				failed++
			}
		}
		if failed > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %d of %d pages failed to analyze\n", failed, len(batch.Pages))
		}

		return checkFailOn(batchFailOn, func(min qa.Severity) int {
			return countBatchAtOrAbove(batch, min)
		})
	},
}

// readURLFile loads URLs from a file, one per line. Blank lines and lines
// starting with # are skipped.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchInputFile, "input", "i", "", "File with URLs to analyze, one per line")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "text", "Output format: text, json, csv, html")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output file (default: stdout)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent workers (default: from config)")
	batchCmd.Flags().StringVar(&batchFailOn, "fail-on", "", "Exit non-zero when issues at or above this severity exist")
}
