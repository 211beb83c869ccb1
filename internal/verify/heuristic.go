package verify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/leak"
	"github.com/valpere/transqa/internal/qa"
)

var (
	sentenceSplit     = regexp.MustCompile(`[.!?]+\s*`)
	allCapsRun        = regexp.MustCompile(`\b[A-Z][A-Z\s]+[A-Z]\b`)
	missingSpaceAfter = regexp.MustCompile(`[.!?,:;][a-zA-Z]`)
	quoteChars        = regexp.MustCompile("[\"“”'‘’]")
	mixedHeadingCase  = regexp.MustCompile(`[a-z].*[A-Z]|[A-Z].*[a-z].*[A-Z]`)

	// Spanish questions and exclamations need inverted opening marks.
	missingOpeningQuestion    = regexp.MustCompile(`[^¿]\s*[A-ZÁÉÍÓÚÑÜ][^.!?]*\?`)
	missingOpeningExclamation = regexp.MustCompile(`[^¡]\s*[A-ZÁÉÍÓÚÑÜ][^.!?]*!`)
)

// Lowercase words allowed at sentence start per language.
var capitalizationExceptions = map[string]map[string]struct{}{
	"es": wordSet("de del el la y o por para con en"),
	"en": wordSet("a an the and or but for nor so yet in on at to of"),
	"nl": wordSet("de het een en van in op aan met voor door"),
}

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// heuristicVerifier applies rule-based checks that need no external service:
// language leakage, capitalization, punctuation, and consistency rules.
type heuristicVerifier struct {
	leaks *leak.Detector
}

func newHeuristicVerifier(cfg config.VerifierConfig) (Verifier, error) {
	opts := []leak.Option{}
	if cfg.LeakThreshold > 0 {
		opts = append(opts, leak.WithThreshold(cfg.LeakThreshold))
	}
	if cfg.MinWordsForLeak > 0 {
		opts = append(opts, leak.WithMinWords(cfg.MinWordsForLeak))
	}
	if len(cfg.Whitelist) > 0 {
		opts = append(opts, leak.WithWhitelist(cfg.Whitelist))
	}
	return &heuristicVerifier{leaks: leak.New(opts...)}, nil
}

func (h *heuristicVerifier) Name() string { return "heuristic" }

func (h *heuristicVerifier) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	var issues []qa.Issue
	issues = append(issues, h.checkLeakage(text, targetLang)...)
	issues = append(issues, h.checkCapitalization(text, targetLang)...)
	issues = append(issues, h.checkPunctuation(text, targetLang)...)
	issues = append(issues, h.checkConsistency(text, targetLang, block)...)
	return issues
}

func (h *heuristicVerifier) checkLeakage(text, targetLang string) []qa.Issue {
	var issues []qa.Issue
	for _, l := range h.leaks.Detect(text, targetLang) {
		issue := qa.NewIssue(qa.LanguageLeak, l.Message,
			qa.Snip(text, 80), 0, len(text), targetLang, l.Confidence)
		issue.Suggestion = fmt.Sprintf("Review content - expected %s text", strings.ToUpper(targetLang))
		issue.RuleID = "LANGUAGE_LEAK_" + strings.ToUpper(l.Language)
		issue.DetectedLang = l.Language
		issues = append(issues, issue)
	}
	return issues
}

func (h *heuristicVerifier) checkCapitalization(text, targetLang string) []qa.Issue {
	var issues []qa.Issue
	exceptions := capitalizationExceptions[targetLang]

	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		first := strings.Fields(sentence)[0]
		r := []rune(first)[0]
		if !unicode.IsLower(r) {
			continue
		}
		if _, ok := exceptions[strings.ToLower(first)]; ok {
			continue
		}
		start := strings.Index(text, sentence)
		if start < 0 {
			continue
		}
		issue := qa.NewIssue(qa.Capitalization,
			fmt.Sprintf("Sentence should start with capital letter: %q", first),
			first, start, start+len(first), targetLang, 0.7)
		issue.Suggestion = strings.ToUpper(first[:1]) + first[1:]
		issue.RuleID = "SENTENCE_CAPITALIZATION"
		issues = append(issues, issue)
	}

	// All-caps runs read as shouting in English prose.
	if targetLang == "en" {
		for _, loc := range allCapsRun.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			words := strings.Fields(match)
			if len(words) < 2 {
				continue
			}
			for i, w := range words {
				words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
			}
			issue := qa.NewIssue(qa.Capitalization,
				fmt.Sprintf("Consider title case instead of all caps: %q", match),
				match, loc[0], loc[1], targetLang, 0.4)
			issue.Suggestion = strings.Join(words, " ")
			issue.RuleID = "ALL_CAPS_TITLE"
			issues = append(issues, issue)
		}
	}

	return issues
}

func (h *heuristicVerifier) checkPunctuation(text, targetLang string) []qa.Issue {
	var issues []qa.Issue

	for _, loc := range missingSpaceAfter.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		issue := qa.NewIssue(qa.Punctuation,
			fmt.Sprintf("Missing space after punctuation: %q", match),
			match, loc[0], loc[1], targetLang, 0.8)
		issue.Suggestion = match[:1] + " " + match[1:]
		issue.RuleID = "MISSING_SPACE_AFTER_PUNCT"
		issues = append(issues, issue)
	}

	if targetLang == "es" {
		for _, loc := range missingOpeningQuestion.FindAllStringIndex(text, -1) {
			issue := qa.NewIssue(qa.Punctuation,
				"Spanish question missing opening ¿",
				qa.Snip(text[loc[0]:loc[1]], 80), loc[0], loc[1], targetLang, 0.6)
			issue.Suggestion = "Add ¿ at the beginning of the question"
			issue.RuleID = "MISSING_SPANISH_QUESTION_MARK"
			issues = append(issues, issue)
		}
		for _, loc := range missingOpeningExclamation.FindAllStringIndex(text, -1) {
			issue := qa.NewIssue(qa.Punctuation,
				"Spanish exclamation missing opening ¡",
				qa.Snip(text[loc[0]:loc[1]], 80), loc[0], loc[1], targetLang, 0.6)
			issue.Suggestion = "Add ¡ at the beginning of the exclamation"
			issue.RuleID = "MISSING_SPANISH_EXCLAMATION_MARK"
			issues = append(issues, issue)
		}
	}

	return issues
}

func (h *heuristicVerifier) checkConsistency(text, targetLang string, block *qa.TextBlock) []qa.Issue {
	var issues []qa.Issue

	quotes := quoteChars.FindAllString(text, -1)
	if len(quotes) >= 4 {
		kinds := make(map[string]struct{})
		for _, q := range quotes {
			kinds[q] = struct{}{}
		}
		if len(kinds) > 2 {
			names := make([]string, 0, len(kinds))
			for k := range kinds {
				names = append(names, k)
			}
			sort.Strings(names)
			issue := qa.NewIssue(qa.Consistency,
				fmt.Sprintf("Inconsistent quotation marks: %s", strings.Join(names, ", ")),
				qa.Snip(text, 80), 0, len(text), targetLang, 0.5)
			issue.Suggestion = "Use consistent quotation mark style"
			issue.RuleID = "INCONSISTENT_QUOTES"
			issues = append(issues, issue)
		}
	}

	if block != nil && isHeadingTag(block.TagName) {
		if mixedHeadingCase.MatchString(text) {
			issue := qa.NewIssue(qa.Capitalization,
				"Inconsistent capitalization in heading",
				qa.Snip(text, 80), 0, len(text), targetLang, 0.4)
			issue.Suggestion = "Use consistent title case or sentence case"
			issue.RuleID = "INCONSISTENT_HEADING_CASE"
			issues = append(issues, issue)
		}
	}

	return issues
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
