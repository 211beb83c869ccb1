// Package qa defines the core data model of transqa: issues found on a page,
// the text blocks they refer to, per-page statistics, and the error taxonomy
// shared by all pipeline components.
package qa

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// IssueType classifies a detected translation-quality problem.
type IssueType string

const (
	LanguageLeak   IssueType = "language_leak"
	Grammar        IssueType = "grammar"
	Spelling       IssueType = "spelling"
	Style          IssueType = "style"
	Placeholder    IssueType = "placeholder"
	Punctuation    IssueType = "punctuation"
	Capitalization IssueType = "capitalization"
	Consistency    IssueType = "consistency"
)

// Severity orders issues from least to most serious.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

var severityNames = [...]string{"info", "warning", "error", "critical"}

func (s Severity) String() string {
	if s < Info || s > Critical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a severity name to its value.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return Info, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// DefaultSeverity returns the severity an issue type carries unless a
// configured override applies.
func DefaultSeverity(t IssueType) Severity {
	switch t {
	case Spelling, Placeholder, LanguageLeak:
		return Error
	case Grammar, Punctuation, Capitalization, Consistency:
		return Warning
	case Style:
		return Info
	default:
		return Warning
	}
}

// Issue is one detected problem in a block of page text. Offsets index into
// the page's concatenated raw text; OffsetStart ≤ OffsetEnd always holds for
// issues built through NewIssue.
type Issue struct {
	ID             string    `json:"id"`
	Type           IssueType `json:"type"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	Suggestion     string    `json:"suggestion,omitempty"`
	Snippet        string    `json:"snippet"`
	XPath          string    `json:"xpath"`
	OffsetStart    int       `json:"offset_start"`
	OffsetEnd      int       `json:"offset_end"`
	Confidence     float64   `json:"confidence"`
	RuleID         string    `json:"rule_id,omitempty"`
	TargetLang     string    `json:"target_lang"`
	DetectedLang   string    `json:"detected_lang,omitempty"`
	SourceURL      string    `json:"source_url,omitempty"`
	SourceVerifier string    `json:"source_verifier,omitempty"`
}

// NewIssue builds an issue with a fresh ID and the type's default severity.
// Swapped offsets are normalized so the ordering invariant holds.
func NewIssue(t IssueType, message, snippet string, start, end int, targetLang string, confidence float64) Issue {
	if end < start {
		start, end = end, start
	}
	return Issue{
		ID:          uuid.New().String(),
		Type:        t,
		Severity:    DefaultSeverity(t),
		Message:     message,
		Snippet:     snippet,
		XPath:       "/",
		OffsetStart: start,
		OffsetEnd:   end,
		TargetLang:  targetLang,
		Confidence:  confidence,
	}
}

// Snip shortens text for use as an issue snippet.
func Snip(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
