package verify

import (
	"context"
	"testing"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

func newPlaceholderForTest(t *testing.T) Verifier {
	t.Helper()
	v, err := newPlaceholderVerifier(config.VerifierConfig{})
	if err != nil {
		t.Fatalf("newPlaceholderVerifier: %v", err)
	}
	return v
}

func findRule(issues []qa.Issue, ruleID string) *qa.Issue {
	for i := range issues {
		if issues[i].RuleID == ruleID {
			return &issues[i]
		}
	}
	return nil
}

func TestEmptyPlaceholder(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Welcome back, {}!", "en", nil)

	issue := findRule(issues, "EMPTY_PLACEHOLDER")
	if issue == nil {
		t.Fatalf("no EMPTY_PLACEHOLDER in %v", issues)
	}
	if issue.Type != qa.Placeholder {
		t.Errorf("type = %v, want placeholder", issue.Type)
	}
	if issue.OffsetStart != 14 || issue.OffsetEnd != 16 {
		t.Errorf("span = [%d,%d], want [14,16]", issue.OffsetStart, issue.OffsetEnd)
	}
}

func TestInvalidVariableName(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Order {123abc} is ready", "en", nil)

	if findRule(issues, "INVALID_VARIABLE_NAME") == nil {
		t.Fatalf("no INVALID_VARIABLE_NAME in %v", issues)
	}
}

func TestInvalidPrintfSpecifier(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Value is %q today", "en", nil)

	if findRule(issues, "INVALID_PRINTF_SPECIFIER") == nil {
		t.Fatalf("no INVALID_PRINTF_SPECIFIER in %v", issues)
	}
}

func TestValidPrintfSpecifiersPass(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Show %s and %d and 100%%", "en", nil)

	if issue := findRule(issues, "INVALID_PRINTF_SPECIFIER"); issue != nil {
		t.Fatalf("unexpected issue: %+v", issue)
	}
}

func TestMixedPlaceholderStyles(t *testing.T) {
	v := newPlaceholderForTest(t)
	text := "Use {name} with ${path} and :param here"
	issues := v.Check(context.Background(), text, "en", nil)

	if findRule(issues, "MIXED_PLACEHOLDER_STYLES") == nil {
		t.Fatalf("no MIXED_PLACEHOLDER_STYLES in %v", issues)
	}
}

func TestUnmatchedTags(t *testing.T) {
	v := newPlaceholderForTest(t)

	issues := v.Check(context.Background(), "Click <link>here to continue", "en", nil)
	if findRule(issues, "UNMATCHED_OPENING_TAG") == nil {
		t.Errorf("no UNMATCHED_OPENING_TAG in %v", issues)
	}

	issues = v.Check(context.Background(), "Click here</link> to continue", "en", nil)
	if findRule(issues, "UNMATCHED_CLOSING_TAG") == nil {
		t.Errorf("no UNMATCHED_CLOSING_TAG in %v", issues)
	}
}

func TestMatchedTagsPass(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Click <link>here</link> now", "en", nil)

	for _, issue := range issues {
		if issue.RuleID == "UNMATCHED_OPENING_TAG" || issue.RuleID == "UNMATCHED_CLOSING_TAG" {
			t.Fatalf("unexpected pairing issue: %+v", issue)
		}
	}
}

func TestWhitelistedHTMLTagsPass(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Line one<br>line two", "en", nil)

	for _, issue := range issues {
		if issue.Type == qa.Placeholder {
			t.Fatalf("whitelisted tag flagged: %+v", issue)
		}
	}
}

func TestMixedNumberFormats(t *testing.T) {
	v := newPlaceholderForTest(t)
	text := "Prices range from 1,234.56 to 2.345,67 this year"
	issues := v.Check(context.Background(), text, "en", nil)

	issue := findRule(issues, "INCORRECT_NUMBER_FORMAT_EN")
	if issue == nil {
		t.Fatalf("no INCORRECT_NUMBER_FORMAT_EN in %v", issues)
	}
	if issue.Type != qa.Consistency {
		t.Errorf("type = %v, want consistency", issue.Type)
	}
}

func TestConsistentNumberFormatsPass(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "From 1,234.56 to 7,890.12 total", "en", nil)

	for _, issue := range issues {
		if issue.Type == qa.Consistency {
			t.Fatalf("unexpected consistency issue: %+v", issue)
		}
	}
}

func TestCurrencyPlacementSpanish(t *testing.T) {
	v := newPlaceholderForTest(t)
	// Spanish convention puts the euro sign after the amount.
	issues := v.Check(context.Background(), "El precio es €100 hoy", "es", nil)

	if findRule(issues, "CURRENCY_PLACEMENT_ES") == nil {
		t.Fatalf("no CURRENCY_PLACEMENT_ES in %v", issues)
	}
}

func TestMultipleSpaces(t *testing.T) {
	v := newPlaceholderForTest(t)
	issues := v.Check(context.Background(), "Too  many   spaces", "en", nil)

	count := 0
	for _, issue := range issues {
		if issue.RuleID == "MULTIPLE_SPACES" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("got %d MULTIPLE_SPACES issues, want 2", count)
	}
}

func TestNumberFormatSuggestion(t *testing.T) {
	if got := numberFormatSuggestion("2.345,67", "en"); got != "2,345.67" {
		t.Errorf("en suggestion = %q, want 2,345.67", got)
	}
	if got := numberFormatSuggestion("2,345.67", "nl"); got != "2.345,67" {
		t.Errorf("nl suggestion = %q, want 2.345,67", got)
	}
}
