// Package language provides pluggable language detection backends and a
// composite detector that combines them by voting. Backends never fail on
// malformed input: they report "unknown" with zero confidence instead.
package language

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/valpere/transqa/internal/config"
)

// Unknown is the detected-language value used when no reliable detection
// is possible.
const Unknown = "unknown"

// Alternative is a candidate language with its score, ordered best-first in
// Result.Alternatives.
type Alternative struct {
	Lang  string  `json:"lang"`
	Score float64 `json:"score"`
}

// Result is a single, ephemeral language detection outcome.
type Result struct {
	DetectedLanguage string        `json:"detected_language"`
	Confidence       float64       `json:"confidence"`
	Alternatives     []Alternative `json:"alternative_languages,omitempty"`
	Method           string        `json:"method"`
}

func unknownResult(method string) Result {
	return Result{DetectedLanguage: Unknown, Confidence: 0, Method: method}
}

// Detector is a single language detection backend.
type Detector interface {
	Name() string
	// DetectBlock detects the language of a text block. It never panics or
	// errors; undetectable input yields Unknown with confidence 0. Text
	// shorter than the configured minimum length is unconditionally Unknown.
	DetectBlock(text string) Result
}

// Factory builds a detector backend from configuration.
type Factory func(cfg config.DetectorConfig) (Detector, error)

var backendRegistry = map[string]Factory{
	"lingua":    newLinguaDetector,
	"stopwords": newStopwordDetector,
	"google":    newGoogleDetector,
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

// Resolve constructs the configured backends. A backend that fails to build
// is skipped (the caller logs it); the composite constructor enforces the
// minimum count.
func Resolve(cfg config.DetectorConfig) ([]Detector, []error) {
	var detectors []Detector
	var errs []error
	for _, name := range cfg.Backends {
		factory, ok := backendRegistry[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown detector backend %q (have: %s)",
				name, strings.Join(Backends(), ", ")))
			continue
		}
		det, err := factory(cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("detector backend %q: %w", name, err))
			continue
		}
		detectors = append(detectors, det)
	}
	return detectors, errs
}

var (
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	spacePattern = regexp.MustCompile(`\s+`)
	tokenPattern = regexp.MustCompile(`\pL{2,}`)
)

const maxDetectionChars = 10000

// preprocess normalizes whitespace and strips URLs and email addresses,
// which carry no language signal and skew character statistics.
func preprocess(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = emailPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) > maxDetectionChars {
		text = text[:maxDetectionChars]
	}
	return text
}

// tooShort reports whether text is below the reliable-detection floor.
func tooShort(text string, minLen int) bool {
	return len(strings.TrimSpace(text)) < minLen
}

// tokenize extracts lowercase alphabetic tokens, excluding likely acronyms.
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if tok == strings.ToUpper(tok) && len(tok) > 3 {
			continue
		}
		tokens = append(tokens, strings.ToLower(tok))
	}
	return tokens
}
