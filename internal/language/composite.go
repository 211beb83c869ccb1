package language

import (
	"fmt"
	"sort"
	"sync"

	"github.com/valpere/transqa/internal/config"
)

const (
	consensusBonus  = 0.1
	maxAlternatives = 4
)

// tokenDetector is implemented by backends that can classify individual
// tokens without the block-length floor.
type tokenDetector interface {
	detectToken(token string) Result
}

// DetectorStat tracks one backend's running diagnostics.
type DetectorStat struct {
	Calls         int     `json:"calls"`
	Unknowns      int     `json:"unknowns"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Composite combines several detection backends by voting. It is safe for
// concurrent use.
type Composite struct {
	detectors []Detector
	weights   map[string]float64
	voting    string
	minLength int
	sample    int

	mu    sync.Mutex
	stats map[string]*runningStat
}

type runningStat struct {
	calls    int
	unknowns int
	confSum  float64
}

// NewComposite builds the voting detector from already-resolved backends.
// Construction fails when fewer backends are available than the configured
// minimum: a single silently-degraded voter is worse than a hard error.
func NewComposite(detectors []Detector, cfg config.DetectorConfig) (*Composite, error) {
	minDetectors := cfg.MinDetectors
	if minDetectors < 1 {
		minDetectors = 1
	}
	if len(detectors) < minDetectors {
		return nil, fmt.Errorf("need at least %d detector backend(s), have %d", minDetectors, len(detectors))
	}

	weights := make(map[string]float64, len(detectors))
	for _, det := range detectors {
		w, ok := cfg.Weights[det.Name()]
		if !ok || w <= 0 {
			w = 1.0
		}
		weights[det.Name()] = w
	}

	sample := cfg.SampleSize
	if sample <= 0 {
		sample = 200
	}

	return &Composite{
		detectors: detectors,
		weights:   weights,
		voting:    cfg.VotingMethod,
		minLength: cfg.MinTextLength,
		sample:    sample,
		stats:     make(map[string]*runningStat),
	}, nil
}

func (c *Composite) Name() string { return "composite/" + c.voting }

// DetectBlock queries every backend and combines their votes. Backends that
// answer Unknown abstain; if all abstain the block is Unknown.
func (c *Composite) DetectBlock(text string) Result {
	if tooShort(text, c.minLength) {
		return unknownResult(c.Name())
	}

	votes := c.collect(text)
	if len(votes) == 0 {
		return unknownResult(c.Name())
	}

	switch c.voting {
	case "majority":
		return c.majorityVote(votes)
	case "best":
		return c.bestVote(votes)
	default:
		return c.weightedVote(votes)
	}
}

func (c *Composite) collect(text string) []Result {
	var votes []Result
	for _, det := range c.detectors {
		res := det.DetectBlock(text)
		c.record(det.Name(), res)
		if res.DetectedLanguage == Unknown {
			continue
		}
		votes = append(votes, res)
	}
	return votes
}

func (c *Composite) record(name string, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stats[name]
	if !ok {
		st = &runningStat{}
		c.stats[name] = st
	}
	st.calls++
	if res.DetectedLanguage == Unknown {
		st.unknowns++
	} else {
		st.confSum += res.Confidence
	}
}

// DetectorStats reports per-backend call counts and mean confidence over
// the detector's lifetime, for diagnostics output.
func (c *Composite) DetectorStats() map[string]DetectorStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]DetectorStat, len(c.stats))
	for name, st := range c.stats {
		stat := DetectorStat{Calls: st.calls, Unknowns: st.unknowns}
		if answered := st.calls - st.unknowns; answered > 0 {
			stat.AvgConfidence = st.confSum / float64(answered)
		}
		out[name] = stat
	}
	return out
}

// weightedVote ranks languages by the raw sum of confidence×weight, so a
// heavier backend can outvote a more confident light one. The reported
// confidence is the weight-normalized average plus a consensus bonus that
// grows with the fraction of backends agreeing, capped at 1.
func (c *Composite) weightedVote(votes []Result) Result {
	type tally struct {
		weighted  float64
		weightSum float64
		count     int
	}
	tallies := make(map[string]*tally)
	for _, v := range votes {
		w := c.weights[v.Method]
		if w <= 0 {
			w = 1.0
		}
		t, ok := tallies[v.DetectedLanguage]
		if !ok {
			t = &tally{}
			tallies[v.DetectedLanguage] = t
		}
		t.weighted += v.Confidence * w
		t.weightSum += w
		t.count++
	}

	winner, best := "", (*tally)(nil)
	for lang, t := range tallies {
		if best == nil || t.weighted > best.weighted {
			winner, best = lang, t
		}
	}

	bonus := consensusBonus * float64(best.count) / float64(len(c.detectors))
	confidence := min(best.weighted/best.weightSum+bonus, 1.0)

	result := Result{
		DetectedLanguage: winner,
		Confidence:       confidence,
		Method:           c.Name(),
	}
	for lang, t := range tallies {
		if lang == winner {
			continue
		}
		result.Alternatives = append(result.Alternatives, Alternative{
			Lang:  lang,
			Score: t.weighted / t.weightSum,
		})
	}
	sort.Slice(result.Alternatives, func(i, j int) bool {
		return result.Alternatives[i].Score > result.Alternatives[j].Score
	})
	if len(result.Alternatives) > maxAlternatives {
		result.Alternatives = result.Alternatives[:maxAlternatives]
	}
	return result
}

// majorityVote picks the language most backends chose; ties break toward
// the higher mean confidence. The reported confidence is the mean of the
// winning votes.
func (c *Composite) majorityVote(votes []Result) Result {
	type tally struct {
		count   int
		confSum float64
	}
	tallies := make(map[string]*tally)
	for _, v := range votes {
		t, ok := tallies[v.DetectedLanguage]
		if !ok {
			t = &tally{}
			tallies[v.DetectedLanguage] = t
		}
		t.count++
		t.confSum += v.Confidence
	}

	winner, best := "", (*tally)(nil)
	for lang, t := range tallies {
		if best == nil || t.count > best.count ||
			(t.count == best.count && t.confSum/float64(t.count) > best.confSum/float64(best.count)) {
			winner, best = lang, t
		}
	}

	result := Result{
		DetectedLanguage: winner,
		Confidence:       best.confSum / float64(best.count),
		Method:           c.Name(),
	}
	for lang, t := range tallies {
		if lang == winner {
			continue
		}
		result.Alternatives = append(result.Alternatives, Alternative{
			Lang:  lang,
			Score: t.confSum / float64(t.count),
		})
	}
	sort.Slice(result.Alternatives, func(i, j int) bool {
		return result.Alternatives[i].Score > result.Alternatives[j].Score
	})
	if len(result.Alternatives) > maxAlternatives {
		result.Alternatives = result.Alternatives[:maxAlternatives]
	}
	return result
}

// bestVote takes the single most confident answer. The alternatives are the
// union of the other votes' primary and secondary picks, keeping the highest
// confidence seen per language.
func (c *Composite) bestVote(votes []Result) Result {
	best := votes[0]
	for _, v := range votes[1:] {
		if v.Confidence > best.Confidence {
			best = v
		}
	}

	altScores := make(map[string]float64)
	merge := func(lang string, score float64) {
		if lang == best.DetectedLanguage || lang == Unknown {
			return
		}
		if score > altScores[lang] {
			altScores[lang] = score
		}
	}
	for _, v := range votes {
		if v.Method != best.Method {
			merge(v.DetectedLanguage, v.Confidence)
		}
		for _, alt := range v.Alternatives {
			merge(alt.Lang, alt.Score)
		}
	}

	result := Result{
		DetectedLanguage: best.DetectedLanguage,
		Confidence:       best.Confidence,
		Method:           c.Name(),
	}
	for lang, score := range altScores {
		result.Alternatives = append(result.Alternatives, Alternative{Lang: lang, Score: score})
	}
	sort.Slice(result.Alternatives, func(i, j int) bool {
		return result.Alternatives[i].Score > result.Alternatives[j].Score
	})
	if len(result.Alternatives) > maxAlternatives {
		result.Alternatives = result.Alternatives[:maxAlternatives]
	}
	return result
}

// DetectTokens classifies individual tokens and counts them per language.
// Long texts are sampled evenly down to the configured sample size. Tokens
// no backend can place count as Unknown.
func (c *Composite) DetectTokens(text string) map[string]int {
	tokens := tokenize(preprocess(text))
	tokens = sampleEvenly(tokens, c.sample)

	counts := make(map[string]int)
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		counts[c.detectOneToken(tok)]++
	}
	return counts
}

func (c *Composite) detectOneToken(tok string) string {
	bestLang, bestConf := Unknown, 0.0
	for _, det := range c.detectors {
		td, ok := det.(tokenDetector)
		if !ok {
			continue
		}
		res := td.detectToken(tok)
		if res.DetectedLanguage != Unknown && res.Confidence > bestConf {
			bestLang, bestConf = res.DetectedLanguage, res.Confidence
		}
	}
	return bestLang
}

// Distribution returns the per-language share of tokens as percentages.
func (c *Composite) Distribution(text string) map[string]float64 {
	counts := c.DetectTokens(text)
	total := 0
	for _, n := range counts {
		total += n
	}
	dist := make(map[string]float64, len(counts))
	if total == 0 {
		return dist
	}
	for lang, n := range counts {
		dist[lang] = float64(n) / float64(total) * 100
	}
	return dist
}

// sampleEvenly keeps at most n tokens, spread across the whole slice rather
// than truncated from the front, so late-page leaks still surface.
func sampleEvenly(tokens []string, n int) []string {
	if len(tokens) <= n {
		return tokens
	}
	out := make([]string, 0, n)
	step := float64(len(tokens)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, tokens[int(float64(i)*step)])
	}
	return out
}
