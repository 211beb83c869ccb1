package verify

import (
	"context"
	"testing"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

type mockVerifier struct {
	name  string
	check func(text, targetLang string) []qa.Issue
}

func (m *mockVerifier) Name() string { return m.name }

func (m *mockVerifier) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	if m.check != nil {
		return m.check(text, targetLang)
	}
	return nil
}

func issueAt(t qa.IssueType, msg string, start, end int, conf float64) qa.Issue {
	return qa.NewIssue(t, msg, "snippet", start, end, "en", conf)
}

func TestCompositePanickingBackendIsIsolated(t *testing.T) {
	panicky := &mockVerifier{
		name:  "panicky",
		check: func(string, string) []qa.Issue { panic("boom") },
	}
	steady := &mockVerifier{
		name: "steady",
		check: func(string, string) []qa.Issue {
			return []qa.Issue{issueAt(qa.Grammar, "found", 0, 5, 0.8)}
		},
	}

	c, err := NewComposite([]Verifier{panicky, steady}, config.VerifierConfig{})
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "some text", "en", nil)
	if len(issues) != 1 || issues[0].Message != "found" {
		t.Fatalf("issues = %v, want the steady backend's single issue", issues)
	}
}

func TestCompositeTagsSourceVerifier(t *testing.T) {
	v := &mockVerifier{
		name: "tagger",
		check: func(string, string) []qa.Issue {
			return []qa.Issue{issueAt(qa.Style, "untagged", 0, 3, 0.5)}
		},
	}
	c, err := NewComposite([]Verifier{v}, config.VerifierConfig{})
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "abc", "en", nil)
	if issues[0].SourceVerifier != "tagger" {
		t.Errorf("SourceVerifier = %q, want tagger", issues[0].SourceVerifier)
	}
}

func TestCompositeDeduplicatesIdenticalFindings(t *testing.T) {
	mk := func(name string, conf float64) *mockVerifier {
		return &mockVerifier{
			name: name,
			check: func(string, string) []qa.Issue {
				issue := issueAt(qa.Spelling, "Possible typo", 4, 9, conf)
				issue.Suggestion = name + "-fix"
				return []qa.Issue{issue}
			},
		}
	}

	c, err := NewComposite(
		[]Verifier{mk("grammar", 0.9), mk("heuristic", 0.6)},
		config.VerifierConfig{DeduplicateIssues: true},
	)
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "the textt here", "en", nil)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1 after dedup", len(issues))
	}
	if issues[0].SourceVerifier != "grammar" {
		t.Errorf("survivor = %q, want the higher-confidence grammar issue", issues[0].SourceVerifier)
	}
	if issues[0].Suggestion != "grammar-fix; heuristic-fix" {
		t.Errorf("suggestion = %q, want both folded in", issues[0].Suggestion)
	}
}

func TestCompositeDedupTieBreaksByPriority(t *testing.T) {
	mk := func(name string) *mockVerifier {
		return &mockVerifier{
			name: name,
			check: func(string, string) []qa.Issue {
				return []qa.Issue{issueAt(qa.Grammar, "same finding", 0, 4, 0.8)}
			},
		}
	}

	c, err := NewComposite(
		[]Verifier{mk("heuristic"), mk("grammar")},
		config.VerifierConfig{DeduplicateIssues: true},
	)
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "text", "en", nil)
	if len(issues) != 1 || issues[0].SourceVerifier != "grammar" {
		t.Fatalf("issues = %v, want grammar to win the priority tie-break", issues)
	}
}

func TestMergeOverlappingSameType(t *testing.T) {
	a := issueAt(qa.Punctuation, "first", 10, 20, 0.6)
	b := issueAt(qa.Punctuation, "second", 15, 30, 0.8)

	merged := mergeOverlapping([]qa.Issue{a, b})
	if len(merged) != 1 {
		t.Fatalf("got %d issues, want 1 merged", len(merged))
	}
	got := merged[0]
	if got.OffsetStart != 10 || got.OffsetEnd != 30 {
		t.Errorf("span = [%d,%d], want union [10,30]", got.OffsetStart, got.OffsetEnd)
	}
	if got.Message != "Multiple issues: first; second" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestMergeKeepsDistinctTypesApart(t *testing.T) {
	a := issueAt(qa.Punctuation, "punct", 10, 20, 0.6)
	b := issueAt(qa.Spelling, "spell", 12, 18, 0.8)

	if merged := mergeOverlapping([]qa.Issue{a, b}); len(merged) != 2 {
		t.Fatalf("got %d issues, want 2 (different types never merge)", len(merged))
	}
}

func TestMergeRespectsProximityLimit(t *testing.T) {
	// Overlapping spans whose starts are 60 apart stay separate.
	a := issueAt(qa.Style, "wide", 0, 100, 0.6)
	b := issueAt(qa.Style, "far", 60, 80, 0.8)

	if merged := mergeOverlapping([]qa.Issue{a, b}); len(merged) != 2 {
		t.Fatalf("got %d issues, want 2 (starts too far apart)", len(merged))
	}
}

func TestCompositeIgnoreRules(t *testing.T) {
	v := &mockVerifier{
		name: "rules",
		check: func(string, string) []qa.Issue {
			kept := issueAt(qa.Grammar, "keep", 0, 4, 0.8)
			kept.RuleID = "KEEP_ME"
			dropped := issueAt(qa.Grammar, "drop", 5, 9, 0.8)
			dropped.RuleID = "NOISY_RULE"
			return []qa.Issue{kept, dropped}
		},
	}
	c, err := NewComposite([]Verifier{v}, config.VerifierConfig{
		IgnoreRules: []string{"NOISY_RULE"},
	})
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "text here", "en", nil)
	if len(issues) != 1 || issues[0].RuleID != "KEEP_ME" {
		t.Fatalf("issues = %v, want only KEEP_ME", issues)
	}
}

func TestCompositeSeverityOverrides(t *testing.T) {
	v := &mockVerifier{
		name: "rules",
		check: func(string, string) []qa.Issue {
			byRule := issueAt(qa.Grammar, "by rule", 0, 4, 0.8)
			byRule.RuleID = "SPECIAL"
			byType := issueAt(qa.Style, "by type", 5, 9, 0.8)
			return []qa.Issue{byRule, byType}
		},
	}
	c, err := NewComposite([]Verifier{v}, config.VerifierConfig{
		SeverityOverrides: map[string]string{
			"SPECIAL": "critical",
			"style":   "error",
		},
	})
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	issues := c.Check(context.Background(), "text here", "en", nil)
	if issues[0].Severity != qa.Critical {
		t.Errorf("rule override: severity = %v, want critical", issues[0].Severity)
	}
	if issues[1].Severity != qa.Error {
		t.Errorf("type override: severity = %v, want error", issues[1].Severity)
	}
}

func TestNewCompositeRejectsEmpty(t *testing.T) {
	if _, err := NewComposite(nil, config.VerifierConfig{}); err == nil {
		t.Fatal("expected error for empty verifier list")
	}
}

func TestNewCompositeRejectsBadOverride(t *testing.T) {
	_, err := NewComposite([]Verifier{&mockVerifier{name: "v"}}, config.VerifierConfig{
		SeverityOverrides: map[string]string{"x": "catastrophic"},
	})
	if err == nil {
		t.Fatal("expected error for unknown severity name")
	}
}
