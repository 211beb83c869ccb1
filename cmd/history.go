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
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/transqa/internal/report"
	"github.com/valpere/transqa/internal/store"
)

var (
	historyURL    string
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past analysis results",
	Long:  `List, inspect, and clear the stored analysis history.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past analyses, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.History(context.Background(), historyURL, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No analyses recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tLANG\tSCORE\tPURITY\tISSUES\tCRIT\tWHEN\tSTATUS")
		for _, e := range entries {
			status := "ok"
			if e.AnalysisError != "" {
				status = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%d\t%d\t%s\t%s\n",
				e.ID, e.URL, e.TargetLang, e.OverallScore, e.PurityScore,
				e.IssueCount, e.CriticalCount,
				e.AnalyzedAt.Format("2006-01-02 15:04"), status)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render one stored analysis result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := db.GetResult(context.Background(), args[0])
		if err != nil {
			return err
		}

		format, err := report.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		renderer, err := report.New(format)
		if err != nil {
			return err
		}
		return renderer.RenderPage(os.Stdout, result)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearHistory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d analyses from history.\n", n)
		return nil
	},
}

// openStore opens the database from the persistent --db flag or the config.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("no database configured (set --db or db_path)")
	}
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyListCmd.Flags().StringVar(&historyURL, "url", "", "Only show analyses of this URL")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to list")
	historyShowCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format: text, json, csv, html")
}
