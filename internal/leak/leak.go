// Package leak scores text for language leakage using rule-based evidence:
// language-specific characters, stopwords, and structural patterns. It is
// independent of any statistical language model.
package leak

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Evidence weights. Stopword hits are the strongest signal; diacritics and
// structural patterns supplement them.
const (
	charWeight    = 0.3
	wordWeight    = 0.5
	patternWeight = 0.2
)

// DefaultThreshold is the combined score at which leakage is reported.
const DefaultThreshold = 0.08

// DefaultMinWords is the minimum token count required to score reliably.
const DefaultMinWords = 3

const maxEvidenceWords = 5

// profile holds the per-language evidence sources.
type profile struct {
	chars    *regexp.Regexp
	words    map[string]struct{}
	patterns []*regexp.Regexp
}

var profiles = map[string]profile{
	"es": {
		chars: regexp.MustCompile(`[ñáéíóúüÑÁÉÍÓÚÜ¿¡]`),
		words: wordSet("el la de que y en un es se no te lo con para una del todo le da su por son pero esto ya muy hacer como fue ser han cuando hasta más desde"),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:el|la|los|las)\s+\pL+`),
			regexp.MustCompile(`\b\pL+(?:ión|ado|ida|mente)\b`),
		},
	},
	"en": {
		chars: regexp.MustCompile(`[a-zA-Z]`),
		words: wordSet("the be to of and a in that have it for not on with he as you do at this but his by from they she or an will my one all would there their"),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:the|a|an)\s+\pL+`),
			regexp.MustCompile(`\b\pL+(?:ing|ed|ly|tion)\b`),
		},
	},
	"nl": {
		chars: regexp.MustCompile(`[ëïöüÿ]|ij`),
		words: wordSet("de het een en van te dat die in is hij niet zijn op aan met als voor had er maar om hem dan zou nu wel nog worden bij onder tegen"),
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:de|het)\s+\pL+`),
			regexp.MustCompile(`\bij\b`),
			regexp.MustCompile(`\b\pL+(?:lijk|heid|tie)\b`),
		},
	},
}

// falsePositivePatterns strip tokens that look foreign but are not natural
// language: acronyms, number-bearing terms, URLs, emails, technical jargon.
var falsePositivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2,}\b`),
	regexp.MustCompile(`\b\w*[0-9]\w*\b`),
	regexp.MustCompile(`\b(?:https?|www|\.com|\.org|\.net)\b`),
	regexp.MustCompile(`\b[a-zA-Z]+@[a-zA-Z]+\.[a-zA-Z]+\b`),
	regexp.MustCompile(`\b(?:API|JSON|XML|HTML|CSS|JS|SQL|HTTP)\b`),
}

// tokenPattern extracts alphabetic words of length ≥2, Unicode-aware.
var tokenPattern = regexp.MustCompile(`\pL{2,}`)

// defaultWhitelist covers technical terms, brand names, and borrowed words
// that legitimately appear untranslated in any language.
var defaultWhitelist = wordSet(
	"email online website app software hardware " +
		"login logout password username admin user " +
		"click download upload submit cancel ok " +
		"google microsoft apple facebook twitter " +
		"blog podcast streaming wifi smartphone")

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// Detector scores text against every supported language other than the
// target. The zero value is not usable; construct with New.
type Detector struct {
	threshold float64
	minWords  int
	whitelist map[string]struct{}
}

// Option adjusts detector construction.
type Option func(*Detector)

// WithThreshold overrides the leak score threshold.
func WithThreshold(t float64) Option {
	return func(d *Detector) { d.threshold = t }
}

// WithMinWords overrides the minimum token count.
func WithMinWords(n int) Option {
	return func(d *Detector) { d.minWords = n }
}

// WithWhitelist adds terms that never count as leak evidence.
func WithWhitelist(terms []string) Option {
	return func(d *Detector) {
		for _, t := range terms {
			d.whitelist[strings.ToLower(t)] = struct{}{}
		}
	}
}

// New builds a leak detector with the default threshold and whitelist.
func New(opts ...Option) *Detector {
	d := &Detector{
		threshold: DefaultThreshold,
		minWords:  DefaultMinWords,
		whitelist: make(map[string]struct{}),
	}
	for w := range defaultWhitelist {
		d.whitelist[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Leak is one scored leakage finding against a single language.
type Leak struct {
	Language   string
	Score      float64
	Confidence float64
	Evidence   []string // up to maxEvidenceWords matched stopwords
	Message    string
}

// Detect scores text against every supported language except targetLang and
// returns the languages whose combined score reaches the threshold, highest
// score first. Texts with fewer than the minimum token count return nil:
// too little evidence to score reliably.
func (d *Detector) Detect(text, targetLang string) []Leak {
	if _, ok := profiles[targetLang]; !ok {
		return nil
	}

	tokens := d.Tokens(text)
	if len(tokens) < d.minWords {
		return nil
	}

	var leaks []Leak
	for lang, prof := range profiles {
		if lang == targetLang {
			continue
		}

		score, evidence := d.score(text, tokens, prof)
		if score < d.threshold {
			continue
		}

		confidence := score * 2
		if confidence > 0.95 {
			confidence = 0.95
		}

		leaks = append(leaks, Leak{
			Language:   lang,
			Score:      score,
			Confidence: confidence,
			Evidence:   evidence,
			Message:    leakMessage(lang, evidence),
		})
	}

	sort.Slice(leaks, func(i, j int) bool { return leaks[i].Score > leaks[j].Score })
	return leaks
}

func (d *Detector) score(text string, tokens []string, prof profile) (float64, []string) {
	charScore := float64(len(prof.chars.FindAllString(text, -1))) / float64(max(len(text), 1))

	var evidence []string
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if _, white := d.whitelist[low]; white {
			continue
		}
		if _, hit := prof.words[low]; hit {
			evidence = append(evidence, tok)
		}
	}
	wordScore := float64(len(evidence)) / float64(len(tokens))

	patternMatches := 0
	for _, p := range prof.patterns {
		patternMatches += len(p.FindAllString(text, -1))
	}
	patternScore := float64(patternMatches) / float64(max(len(tokens), 1))

	return charWeight*charScore + wordWeight*wordScore + patternWeight*patternScore, evidence
}

// Tokens extracts the alphabetic words used for scoring, after removing
// false-positive material (acronyms, numbers, URLs, emails, jargon).
func (d *Detector) Tokens(text string) []string {
	filtered := text
	for _, p := range falsePositivePatterns {
		filtered = p.ReplaceAllString(filtered, " ")
	}
	return tokenPattern.FindAllString(filtered, -1)
}

func leakMessage(lang string, evidence []string) string {
	upper := strings.ToUpper(lang)
	if len(evidence) == 0 {
		return fmt.Sprintf("Text appears to contain %s content", upper)
	}
	sample := evidence
	extra := ""
	if len(sample) > maxEvidenceWords {
		extra = fmt.Sprintf(" (+%d more)", len(sample)-maxEvidenceWords)
		sample = sample[:maxEvidenceWords]
	}
	return fmt.Sprintf("Possible %s words detected: %s%s", upper, strings.Join(sample, ", "), extra)
}
