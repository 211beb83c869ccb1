package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valpere/transqa/internal/chunker"
	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

// LanguageTool language codes per target language.
var ltLanguageCodes = map[string]string{
	"es": "es",
	"en": "en-US",
	"nl": "nl",
}

// ltCategoryTypes maps LanguageTool rule categories to issue types.
var ltCategoryTypes = map[string]qa.IssueType{
	"GRAMMAR":     qa.Grammar,
	"TYPOS":       qa.Spelling,
	"STYLE":       qa.Style,
	"PUNCTUATION": qa.Punctuation,
	"TYPOGRAPHY":  qa.Style,
	"CASING":      qa.Capitalization,
	"REPETITION":  qa.Style,
	"REDUNDANCY":  qa.Style,
	"MISC":        qa.Grammar,
}

const (
	ltCheckTimeout  = 30 * time.Second
	ltMaxTextLength = 20000
)

// grammarVerifier checks text against a LanguageTool HTTP server. It keeps
// no per-language state; the language code is sent with each request.
type grammarVerifier struct {
	baseURL       string
	client        *http.Client
	disabledRules []string
	enabledRules  []string
}

func newGrammarVerifier(cfg config.VerifierConfig) (Verifier, error) {
	base := strings.TrimSuffix(cfg.LanguageToolURL, "/")
	if base == "" {
		return nil, fmt.Errorf("languagetool_url is empty")
	}
	return &grammarVerifier{
		baseURL:       base,
		client:        &http.Client{Timeout: ltCheckTimeout},
		disabledRules: cfg.IgnoreRules,
		enabledRules:  cfg.EnableRules,
	}, nil
}

func (g *grammarVerifier) Name() string { return "grammar" }

func (g *grammarVerifier) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	ltLang, ok := ltLanguageCodes[targetLang]
	if !ok {
		slog.Warn("languagetool has no code for language", "lang", targetLang)
		return nil
	}

	if len(text) <= ltMaxTextLength {
		return g.checkChunk(ctx, text, targetLang, ltLang, 0)
	}

	// Long text: check sentence-aligned pieces and rebase their offsets.
	var issues []qa.Issue
	for _, piece := range chunker.Split(text, ltMaxTextLength) {
		issues = append(issues, g.checkChunk(ctx, piece.Text, targetLang, ltLang, piece.Offset)...)
	}
	return issues
}

func (g *grammarVerifier) checkChunk(ctx context.Context, text, targetLang, ltLang string, base int) []qa.Issue {
	matches, err := g.query(ctx, text, ltLang)
	if err != nil {
		slog.Error("languagetool check failed", "lang", targetLang, "error", err)
		return nil
	}

	issues := make([]qa.Issue, 0, len(matches))
	for _, m := range matches {
		issues = append(issues, g.matchToIssue(m, text, targetLang, base))
	}
	return issues
}

// ltMatch mirrors the relevant parts of the /v2/check response.
type ltMatch struct {
	Message      string `json:"message"`
	ShortMessage string `json:"shortMessage"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
	Rule struct {
		ID       string `json:"id"`
		Category struct {
			ID string `json:"id"`
		} `json:"category"`
	} `json:"rule"`
}

type ltResponse struct {
	Matches []ltMatch `json:"matches"`
}

func (g *grammarVerifier) query(ctx context.Context, text, ltLang string) ([]ltMatch, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", ltLang)
	if len(g.disabledRules) > 0 {
		form.Set("disabledRules", strings.Join(g.disabledRules, ","))
	}
	if len(g.enabledRules) > 0 {
		form.Set("enabledRules", strings.Join(g.enabledRules, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qa.ErrVerification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", qa.ErrVerification, resp.StatusCode, string(body))
	}

	var parsed ltResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", qa.ErrVerification, err)
	}
	return parsed.Matches, nil
}

func (g *grammarVerifier) matchToIssue(m ltMatch, text, targetLang string, base int) qa.Issue {
	category := m.Rule.Category.ID
	issueType, ok := ltCategoryTypes[category]
	if !ok {
		issueType = qa.Grammar
	}

	// LanguageTool reports offsets and lengths in characters, not bytes.
	start, end := runeSpan(text, m.Offset, m.Length)
	snippet := text[start:end]

	issue := qa.NewIssue(issueType, m.Message, snippet, base+start, base+end, targetLang, ltConfidence(category))
	issue.Severity = ltSeverity(category)
	issue.RuleID = m.Rule.ID
	issue.SourceVerifier = "grammar"
	if len(m.Replacements) > 0 {
		issue.Suggestion = m.Replacements[0].Value
	}
	return issue
}

// runeSpan converts a character offset and length into byte positions
// within text, clamped to the text's bounds.
func runeSpan(text string, offset, length int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if length < 0 {
		length = 0
	}
	start, end := len(text), len(text)
	chars := 0
	for i := range text {
		if chars == offset {
			start = i
		}
		if chars == offset+length {
			end = i
			break
		}
		chars++
	}
	if end < start {
		end = start
	}
	return start, end
}

func ltSeverity(category string) qa.Severity {
	switch category {
	case "TYPOS":
		return qa.Error
	case "STYLE", "TYPOGRAPHY", "REPETITION", "REDUNDANCY":
		return qa.Info
	default:
		return qa.Warning
	}
}

func ltConfidence(category string) float64 {
	switch category {
	case "TYPOS":
		return 0.9
	case "STYLE", "TYPOGRAPHY":
		return 0.6
	default:
		return 0.8
	}
}

// Ping verifies the LanguageTool server answers a trivial check, for use in
// startup diagnostics.
func (g *grammarVerifier) Ping(ctx context.Context) error {
	_, err := g.query(ctx, "Test.", "en-US")
	return err
}
