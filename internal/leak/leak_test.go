package leak

import (
	"strings"
	"testing"
)

func TestDetectSpanishInEnglish(t *testing.T) {
	d := New()
	text := "Welcome to our store. El envío es gratis para todos los pedidos hoy."

	leaks := d.Detect(text, "en")
	if len(leaks) == 0 {
		t.Fatal("no leak detected for mixed Spanish text")
	}
	if leaks[0].Language != "es" {
		t.Errorf("top leak language = %q, want es", leaks[0].Language)
	}
	if leaks[0].Confidence <= 0 || leaks[0].Confidence > 0.95 {
		t.Errorf("confidence = %g, want (0, 0.95]", leaks[0].Confidence)
	}
	if !strings.Contains(leaks[0].Message, "ES") {
		t.Errorf("message = %q", leaks[0].Message)
	}
	if len(leaks[0].Evidence) == 0 {
		t.Error("no evidence words recorded")
	}
}

func TestCleanTextHasNoLeaks(t *testing.T) {
	d := New()
	text := "Our products ship worldwide. Delivery takes between three and five business days."

	if leaks := d.Detect(text, "en"); len(leaks) != 0 {
		t.Errorf("clean English text produced leaks: %+v", leaks)
	}
}

func TestTooFewTokens(t *testing.T) {
	d := New()
	if leaks := d.Detect("el la", "en"); leaks != nil {
		t.Errorf("short text scored: %+v", leaks)
	}
}

func TestUnsupportedTargetLanguage(t *testing.T) {
	d := New()
	if leaks := d.Detect("some text with enough words here", "fr"); leaks != nil {
		t.Errorf("unsupported target produced leaks: %+v", leaks)
	}
}

func TestTargetLanguageIsNotScored(t *testing.T) {
	d := New()
	text := "El envío es gratis para todos los pedidos de hoy en la tienda."

	for _, lk := range d.Detect(text, "es") {
		if lk.Language == "es" {
			t.Error("target language reported as its own leak")
		}
	}
}

func TestWhitelistSuppressesEvidence(t *testing.T) {
	text := "Check your email online and download the app to see el catálogo de productos."

	base := New(WithThreshold(0.01))
	baseLeaks := base.Detect(text, "en")

	custom := New(WithThreshold(0.01), WithWhitelist([]string{"el", "de", "catálogo", "productos"}))
	customLeaks := custom.Detect(text, "en")

	baseScore, customScore := 0.0, 0.0
	for _, lk := range baseLeaks {
		if lk.Language == "es" {
			baseScore = lk.Score
		}
	}
	for _, lk := range customLeaks {
		if lk.Language == "es" {
			customScore = lk.Score
		}
	}
	if customScore >= baseScore {
		t.Errorf("whitelist did not lower score: base=%g custom=%g", baseScore, customScore)
	}
}

func TestTokensFiltersFalsePositives(t *testing.T) {
	d := New()
	tokens := d.Tokens("Visit https://example.com or email info@example.com about the API v2 spec today")

	joined := strings.ToLower(strings.Join(tokens, " "))
	for _, banned := range []string{"https", "api", "v2"} {
		if strings.Contains(joined, banned) {
			t.Errorf("token list still contains %q: %v", banned, tokens)
		}
	}
	if len(tokens) == 0 {
		t.Error("all tokens filtered out")
	}
}

func TestEvidenceCapInMessage(t *testing.T) {
	d := New(WithThreshold(0.01), WithMinWords(1))
	text := "el la de que y en un es se no te lo con para una"

	leaks := d.Detect(text, "en")
	if len(leaks) == 0 {
		t.Fatal("no leak for pure Spanish stopwords")
	}
	var es *Leak
	for i := range leaks {
		if leaks[i].Language == "es" {
			es = &leaks[i]
		}
	}
	if es == nil {
		t.Fatal("no Spanish leak found")
	}
	if !strings.Contains(es.Message, "more)") {
		t.Errorf("message does not indicate truncated evidence: %q", es.Message)
	}
}

func TestLeaksSortedByScore(t *testing.T) {
	d := New(WithThreshold(0.01))
	text := "El envío es gratis y de het een van de beste aanbiedingen die er zijn."

	leaks := d.Detect(text, "en")
	for i := 1; i < len(leaks); i++ {
		if leaks[i].Score > leaks[i-1].Score {
			t.Errorf("leaks not sorted by score: %+v", leaks)
		}
	}
}
