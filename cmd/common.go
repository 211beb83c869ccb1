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
	"io"
	"log/slog"
	"os"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig merges the config file, TRANSQA_* environment variables, and
// the persistent command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}

	if flagTargetLang != "" {
		cfg.TargetLang = flagTargetLang
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagNoCache {
		cfg.NoCache = true
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openOutput returns stdout when path is empty, otherwise the created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// checkFailOn turns findings at or above a severity into a command error,
// for CI-style usage where the exit code gates a deployment.
func checkFailOn(failOn string, count func(qa.Severity) int) error {
	if failOn == "" {
		return nil
	}
	sev, err := qa.ParseSeverity(failOn)
	if err != nil {
		return err
	}
	if n := count(sev); n > 0 {
		return fmt.Errorf("%d issue(s) at or above %s severity", n, sev)
	}
	return nil
}
