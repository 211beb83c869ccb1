// Package verify runs translation-quality checks on text blocks. Backends
// are fail-open: a backend that cannot check a block reports nothing rather
// than failing the analysis.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

// Verifier checks one text block for issues. Offsets in returned issues are
// relative to the checked text; the caller rebases them onto the page.
type Verifier interface {
	Name() string
	Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue
}

// Factory builds a verifier backend from configuration.
type Factory func(cfg config.VerifierConfig) (Verifier, error)

var backendRegistry = map[string]Factory{
	"grammar":     newGrammarVerifier,
	"placeholder": newPlaceholderVerifier,
	"heuristic":   newHeuristicVerifier,
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve constructs the configured verifier backends. Backends that fail to
// build are skipped and reported; the composite constructor requires at
// least one survivor.
func Resolve(cfg config.VerifierConfig) ([]Verifier, []error) {
	var verifiers []Verifier
	var errs []error
	for _, name := range cfg.Backends {
		factory, ok := backendRegistry[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown verifier backend %q (have: %s)",
				name, strings.Join(Backends(), ", ")))
			continue
		}
		v, err := factory(cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("verifier backend %q: %w", name, err))
			continue
		}
		verifiers = append(verifiers, v)
	}
	return verifiers, errs
}

// Dedup priority per backend: when two backends report the same finding the
// more precise backend's issue wins.
var verifierPriority = map[string]int{
	"grammar":     100,
	"placeholder": 90,
	"heuristic":   80,
}

const defaultPriority = 50

func priorityOf(name string) int {
	if p, ok := verifierPriority[name]; ok {
		return p
	}
	return defaultPriority
}
