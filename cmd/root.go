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
	"os"

	"github.com/spf13/cobra"
)

var version = "0.2.0"

var (
	cfgFile        string
	flagTargetLang string
	flagDBPath     string
	flagNoCache    bool
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "transqa",
	Short: "Translation QA analyzer for web pages",
	Long: `Analyzes web pages for translation quality: language leaks, grammar and
spelling problems, broken placeholders, and formatting inconsistencies.

Pages are fetched, split into text blocks, and each block is checked by a
set of language detectors and verifiers. Results can be rendered as text,
JSON, CSV, or HTML.

Supported target languages: es, en, nl

Use "transqa analyze --help" for single-page analysis options.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(flagVerbose)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: built-in defaults plus TRANSQA_* env)")
	rootCmd.PersistentFlags().StringVarP(&flagTargetLang, "target", "t", "", "Target language code (es, en, nl)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Database path for result history and cache")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the result cache")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}
