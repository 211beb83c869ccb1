package verify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

// placeholderRule describes one placeholder syntax family.
type placeholderRule struct {
	name    string
	pattern *regexp.Regexp
	// index of the capture group holding the variable content, 0 = whole match
	contentGroup int
}

var placeholderRules = []placeholderRule{
	{name: "double_curly", pattern: regexp.MustCompile(`\{\{([^}]*)\}\}`), contentGroup: 1},
	{name: "curly_braces", pattern: regexp.MustCompile(`\{([^{}]*)\}`), contentGroup: 1},
	{name: "printf_style", pattern: regexp.MustCompile(`%[a-zA-Z%]`), contentGroup: 0},
	{name: "dollar_braces", pattern: regexp.MustCompile(`\$\{([^}]*)\}`), contentGroup: 1},
	{name: "colon_params", pattern: regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`), contentGroup: 1},
	{name: "angle_brackets", pattern: regexp.MustCompile(`<([^<>]*)>`), contentGroup: 1},
}

var validVariableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var validPrintfSpecifiers = map[string]struct{}{
	"%s": {}, "%d": {}, "%i": {}, "%f": {}, "%g": {},
	"%e": {}, "%E": {}, "%G": {}, "%c": {}, "%%": {},
}

// placeholderWhitelist covers UI instructions, plain HTML tags, and
// emoticons that would otherwise trip the syntax rules.
var placeholderWhitelist = map[string]struct{}{
	"{enter}": {}, "{tab}": {}, "{space}": {}, "{click}": {}, "{hover}": {},
	"<br>": {}, "<hr>": {}, "<b>": {}, "<i>": {}, "<em>": {}, "<strong>": {},
	":)": {}, ":D": {}, ":(": {}, ":P": {}, ":o": {},
}

var (
	usNumberPattern   = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b`)
	euNumberPattern   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{3})+(?:,\d+)?\b`)
	currencyPattern   = regexp.MustCompile(`([€$£¥₹])\s*(\d[\d\s,.]*\d|\d)|(\d[\d\s,.]*\d|\d)\s*([€$£¥₹])`)
	multiSpacePattern = regexp.MustCompile(`  +`)
)

// placeholderVerifier validates placeholder syntax, tag pairing, and number
// and currency format conventions.
type placeholderVerifier struct{}

func newPlaceholderVerifier(cfg config.VerifierConfig) (Verifier, error) {
	return &placeholderVerifier{}, nil
}

func (p *placeholderVerifier) Name() string { return "placeholder" }

func (p *placeholderVerifier) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	var issues []qa.Issue
	issues = append(issues, p.checkPlaceholders(text, targetLang)...)
	issues = append(issues, p.checkNumberFormats(text, targetLang)...)
	issues = append(issues, p.checkCurrencyFormats(text, targetLang)...)
	issues = append(issues, p.checkGeneralConsistency(text, targetLang)...)
	return issues
}

type foundPlaceholder struct {
	rule    string
	content string
	full    string
	start   int
	end     int
}

func (p *placeholderVerifier) checkPlaceholders(text, targetLang string) []qa.Issue {
	var issues []qa.Issue
	var found []foundPlaceholder
	styles := make(map[string]struct{})

	for _, rule := range placeholderRules {
		for _, loc := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			full := text[loc[0]:loc[1]]
			if _, white := placeholderWhitelist[full]; white {
				continue
			}
			content := full
			if rule.contentGroup > 0 && loc[2*rule.contentGroup] >= 0 {
				content = text[loc[2*rule.contentGroup]:loc[2*rule.contentGroup+1]]
			}

			ph := foundPlaceholder{
				rule:    rule.name,
				content: content,
				full:    full,
				start:   loc[0],
				end:     loc[1],
			}
			found = append(found, ph)
			styles[rule.name] = struct{}{}
			issues = append(issues, p.validateSyntax(ph, targetLang)...)
		}
	}

	// Some mixing is normal; more than two styles in one block is not.
	if len(styles) > 2 {
		names := make([]string, 0, len(styles))
		for s := range styles {
			names = append(names, s)
		}
		sort.Strings(names)
		issue := qa.NewIssue(qa.Placeholder,
			fmt.Sprintf("Mixed placeholder styles detected: %s", strings.Join(names, ", ")),
			qa.Snip(text, 80), 0, len(text), targetLang, 0.7)
		issue.Suggestion = "Consider using consistent placeholder style throughout text"
		issue.RuleID = "MIXED_PLACEHOLDER_STYLES"
		issues = append(issues, issue)
	}

	issues = append(issues, p.checkTagPairing(found, targetLang)...)
	return issues
}

func (p *placeholderVerifier) validateSyntax(ph foundPlaceholder, targetLang string) []qa.Issue {
	var issues []qa.Issue

	switch ph.rule {
	case "curly_braces", "dollar_braces":
		trimmed := strings.TrimSpace(ph.content)
		if trimmed == "" {
			issue := qa.NewIssue(qa.Placeholder,
				"Empty placeholder - should contain variable name",
				ph.full, ph.start, ph.end, targetLang, 0.9)
			issue.Suggestion = "Add variable name: {variable_name}"
			issue.RuleID = "EMPTY_PLACEHOLDER"
			issues = append(issues, issue)
		} else if !validVariableName.MatchString(trimmed) {
			issue := qa.NewIssue(qa.Placeholder,
				fmt.Sprintf("Invalid variable name in placeholder: %q", ph.content),
				ph.full, ph.start, ph.end, targetLang, 0.8)
			issue.Suggestion = "Variable names should start with letter or underscore"
			issue.RuleID = "INVALID_VARIABLE_NAME"
			issues = append(issues, issue)
		}
	case "printf_style":
		if _, ok := validPrintfSpecifiers[ph.content]; !ok {
			issue := qa.NewIssue(qa.Placeholder,
				fmt.Sprintf("Invalid printf format specifier: %s", ph.content),
				ph.full, ph.start, ph.end, targetLang, 0.9)
			issue.Suggestion = "Use valid specifiers: %s (string), %d (integer), %f (float)"
			issue.RuleID = "INVALID_PRINTF_SPECIFIER"
			issues = append(issues, issue)
		}
	}

	return issues
}

// checkTagPairing flags unmatched opening/closing tags among angle-bracket
// placeholders using a simple stack.
func (p *placeholderVerifier) checkTagPairing(found []foundPlaceholder, targetLang string) []qa.Issue {
	var issues []qa.Issue

	var angles []foundPlaceholder
	for _, ph := range found {
		if ph.rule == "angle_brackets" {
			angles = append(angles, ph)
		}
	}
	sort.Slice(angles, func(i, j int) bool { return angles[i].start < angles[j].start })

	type openTag struct {
		name string
		ph   foundPlaceholder
	}
	var stack []openTag
	for _, ph := range angles {
		content := strings.TrimSpace(ph.content)
		switch {
		case strings.HasPrefix(content, "/"):
			name := content[1:]
			if len(stack) > 0 && stack[len(stack)-1].name == name {
				stack = stack[:len(stack)-1]
			} else {
				issue := qa.NewIssue(qa.Placeholder,
					fmt.Sprintf("Unmatched closing tag: </%s>", name),
					ph.full, ph.start, ph.end, targetLang, 0.7)
				issue.Suggestion = fmt.Sprintf("Ensure there's a matching <%s> tag", name)
				issue.RuleID = "UNMATCHED_CLOSING_TAG"
				issues = append(issues, issue)
			}
		case !strings.HasSuffix(content, "/"):
			stack = append(stack, openTag{name: content, ph: ph})
		}
	}

	for _, open := range stack {
		issue := qa.NewIssue(qa.Placeholder,
			fmt.Sprintf("Unmatched opening tag: <%s>", open.name),
			open.ph.full, open.ph.start, open.ph.end, targetLang, 0.7)
		issue.Suggestion = fmt.Sprintf("Add closing tag: </%s>", open.name)
		issue.RuleID = "UNMATCHED_OPENING_TAG"
		issues = append(issues, issue)
	}

	return issues
}

type foundNumber struct {
	text   string
	start  int
	end    int
	format string // US or EU
}

// checkNumberFormats flags numbers in the wrong thousands/decimal convention
// when the text mixes both conventions.
func (p *placeholderVerifier) checkNumberFormats(text, targetLang string) []qa.Issue {
	var numbers []foundNumber
	for _, loc := range usNumberPattern.FindAllStringIndex(text, -1) {
		numbers = append(numbers, foundNumber{text: text[loc[0]:loc[1]], start: loc[0], end: loc[1], format: "US"})
	}
	for _, loc := range euNumberPattern.FindAllStringIndex(text, -1) {
		overlaps := false
		for _, n := range numbers {
			if n.start <= loc[0] && loc[0] < n.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			numbers = append(numbers, foundNumber{text: text[loc[0]:loc[1]], start: loc[0], end: loc[1], format: "EU"})
		}
	}

	if len(numbers) < 2 {
		return nil
	}
	mixed := false
	for _, n := range numbers[1:] {
		if n.format != numbers[0].format {
			mixed = true
			break
		}
	}
	if !mixed {
		return nil
	}

	expected := "EU"
	if targetLang == "en" {
		expected = "US"
	}

	var issues []qa.Issue
	for _, n := range numbers {
		if n.format == expected {
			continue
		}
		issue := qa.NewIssue(qa.Consistency,
			fmt.Sprintf("Incorrect number format for %s: %s", strings.ToUpper(targetLang), n.text),
			n.text, n.start, n.end, targetLang, 0.8)
		issue.Suggestion = numberFormatSuggestion(n.text, targetLang)
		issue.RuleID = "INCORRECT_NUMBER_FORMAT_" + strings.ToUpper(targetLang)
		issues = append(issues, issue)
	}
	return issues
}

// numberFormatSuggestion converts a number between US (1,234.56) and
// European (1.234,56) conventions.
func numberFormatSuggestion(number, targetLang string) string {
	if targetLang == "en" {
		if strings.Contains(number, ".") && strings.Contains(number, ",") {
			parts := strings.SplitN(number, ",", 2)
			if len(parts) == 2 {
				return strings.ReplaceAll(parts[0], ".", ",") + "." + parts[1]
			}
		}
		return strings.ReplaceAll(number, ".", ",")
	}
	if strings.Contains(number, ",") && strings.Contains(number, ".") {
		parts := strings.SplitN(number, ".", 2)
		if len(parts) == 2 {
			return strings.ReplaceAll(parts[0], ",", ".") + "," + parts[1]
		}
	}
	return strings.ReplaceAll(number, ",", ".")
}

// checkCurrencyFormats flags currency symbols placed against the target
// language's convention.
func (p *placeholderVerifier) checkCurrencyFormats(text, targetLang string) []qa.Issue {
	var issues []qa.Issue
	for _, loc := range currencyPattern.FindAllStringSubmatchIndex(text, -1) {
		var symbol, amount, placement string
		if loc[2] >= 0 {
			symbol = text[loc[2]:loc[3]]
			amount = text[loc[4]:loc[5]]
			placement = "before"
		} else {
			amount = text[loc[6]:loc[7]]
			symbol = text[loc[8]:loc[9]]
			placement = "after"
		}

		correct := currencyPlacement(symbol, targetLang)
		if placement == correct {
			continue
		}
		suggestion := amount + symbol
		if correct == "before" {
			suggestion = symbol + amount
		}

		full := text[loc[0]:loc[1]]
		issue := qa.NewIssue(qa.Consistency,
			fmt.Sprintf("Incorrect currency symbol placement for %s: %s", strings.ToUpper(targetLang), full),
			full, loc[0], loc[1], targetLang, 0.7)
		issue.Suggestion = strings.TrimSpace(suggestion)
		issue.RuleID = "CURRENCY_PLACEMENT_" + strings.ToUpper(targetLang)
		issues = append(issues, issue)
	}
	return issues
}

func currencyPlacement(symbol, targetLang string) string {
	if symbol == "€" && targetLang != "en" {
		return "after" // 100€ in Spanish and Dutch
	}
	return "before"
}

func (p *placeholderVerifier) checkGeneralConsistency(text, targetLang string) []qa.Issue {
	var issues []qa.Issue

	for _, loc := range multiSpacePattern.FindAllStringIndex(text, -1) {
		issue := qa.NewIssue(qa.Punctuation,
			fmt.Sprintf("Multiple consecutive spaces: %d spaces", loc[1]-loc[0]),
			text[loc[0]:loc[1]], loc[0], loc[1], targetLang, 0.8)
		issue.Suggestion = "Use single space"
		issue.RuleID = "MULTIPLE_SPACES"
		issues = append(issues, issue)
	}

	if strings.Contains(text, "\t") && strings.Contains(text, " ") {
		issue := qa.NewIssue(qa.Consistency,
			"Mixed tabs and spaces detected",
			qa.Snip(text, 80), 0, len(text), targetLang, 0.4)
		issue.Suggestion = "Use consistent indentation (either tabs or spaces)"
		issue.RuleID = "MIXED_TABS_SPACES"
		issues = append(issues, issue)
	}

	if strings.Contains(text, "\r\n") && strings.Contains(strings.ReplaceAll(text, "\r\n", ""), "\n") {
		issue := qa.NewIssue(qa.Consistency,
			"Mixed line endings detected (CRLF and LF)",
			qa.Snip(text, 80), 0, len(text), targetLang, 0.6)
		issue.Suggestion = "Use consistent line endings"
		issue.RuleID = "MIXED_LINE_ENDINGS"
		issues = append(issues, issue)
	}

	return issues
}
