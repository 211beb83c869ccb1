package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

// Stat tracks one backend's cumulative work.
type Stat struct {
	Checks   int           `json:"checks"`
	Issues   int           `json:"issues"`
	Duration time.Duration `json:"duration"`
}

// Composite fans a block out to every backend and post-processes the
// combined findings: deduplication, overlap merging, rule filtering, and
// severity overrides. A panicking or failing backend contributes nothing;
// verification itself never fails a block.
type Composite struct {
	verifiers []Verifier
	dedup     bool
	merge     bool

	ignoreRules map[string]struct{}
	enableRules map[string]struct{}
	overrides   map[string]qa.Severity

	mu    sync.Mutex
	stats map[string]*Stat
}

// NewComposite builds the composite from already-resolved backends.
func NewComposite(verifiers []Verifier, cfg config.VerifierConfig) (*Composite, error) {
	if len(verifiers) == 0 {
		return nil, fmt.Errorf("at least one verifier backend required")
	}

	c := &Composite{
		verifiers:   verifiers,
		dedup:       cfg.DeduplicateIssues,
		merge:       cfg.MergeOverlapping,
		ignoreRules: make(map[string]struct{}),
		enableRules: make(map[string]struct{}),
		overrides:   make(map[string]qa.Severity),
		stats:       make(map[string]*Stat),
	}
	for _, r := range cfg.IgnoreRules {
		c.ignoreRules[r] = struct{}{}
	}
	for _, r := range cfg.EnableRules {
		c.enableRules[r] = struct{}{}
	}
	for key, name := range cfg.SeverityOverrides {
		sev, err := qa.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("severity override %q: %w", key, err)
		}
		c.overrides[key] = sev
	}
	return c, nil
}

// Check runs every backend on the block and returns the post-processed
// issue list. It never returns an error: backend failures are logged and
// their findings dropped.
func (c *Composite) Check(ctx context.Context, text, targetLang string, block *qa.TextBlock) []qa.Issue {
	var all []qa.Issue
	for _, v := range c.verifiers {
		issues := c.runOne(ctx, v, text, targetLang, block)
		for i := range issues {
			if issues[i].SourceVerifier == "" {
				issues[i].SourceVerifier = v.Name()
			}
		}
		all = append(all, issues...)
	}

	if c.dedup {
		all = c.deduplicate(all)
	}
	if c.merge {
		all = mergeOverlapping(all)
	}
	return c.applyFilters(all)
}

// runOne isolates a single backend call so a panic inside one backend
// cannot take down the analysis.
func (c *Composite) runOne(ctx context.Context, v Verifier, text, targetLang string, block *qa.TextBlock) (issues []qa.Issue) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("verifier panicked", "verifier", v.Name(), "panic", r)
			issues = nil
		}
	}()

	start := time.Now()
	issues = v.Check(ctx, text, targetLang, block)
	c.track(v.Name(), len(issues), time.Since(start))
	return issues
}

func (c *Composite) track(name string, issueCount int, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stats[name]
	if !ok {
		st = &Stat{}
		c.stats[name] = st
	}
	st.Checks++
	st.Issues += issueCount
	st.Duration += d
}

// Stats returns per-backend cumulative counters.
func (c *Composite) Stats() map[string]Stat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stat, len(c.stats))
	for name, st := range c.stats {
		out[name] = *st
	}
	return out
}

type dedupKey struct {
	start int
	end   int
	typ   qa.IssueType
	msg   string
}

// deduplicate collapses issues that share position, type, and message. The
// survivor is the highest-confidence issue, backend priority breaking ties;
// distinct suggestions from the losers are folded into it.
func (c *Composite) deduplicate(issues []qa.Issue) []qa.Issue {
	if len(issues) < 2 {
		return issues
	}

	groups := make(map[dedupKey][]qa.Issue)
	var order []dedupKey
	for _, issue := range issues {
		key := dedupKey{issue.OffsetStart, issue.OffsetEnd, issue.Type, strings.ToLower(issue.Message)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], issue)
	}

	out := make([]qa.Issue, 0, len(order))
	for _, key := range order {
		group := groups[key]
		best := group[0]
		for _, candidate := range group[1:] {
			if candidate.Confidence > best.Confidence ||
				(candidate.Confidence == best.Confidence &&
					priorityOf(candidate.SourceVerifier) > priorityOf(best.SourceVerifier)) {
				best = candidate
			}
		}

		suggestions := []string{}
		seen := map[string]struct{}{}
		for _, issue := range append([]qa.Issue{best}, group...) {
			if issue.Suggestion == "" {
				continue
			}
			if _, dup := seen[issue.Suggestion]; dup {
				continue
			}
			seen[issue.Suggestion] = struct{}{}
			suggestions = append(suggestions, issue.Suggestion)
		}
		if len(suggestions) > 1 {
			best.Suggestion = strings.Join(suggestions, "; ")
		}
		out = append(out, best)
	}
	return out
}

const mergeProximity = 50

// mergeOverlapping folds same-type issues whose spans overlap and whose
// starts sit within close proximity into one issue covering the union span.
func mergeOverlapping(issues []qa.Issue) []qa.Issue {
	if len(issues) < 2 {
		return issues
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].OffsetStart != issues[j].OffsetStart {
			return issues[i].OffsetStart < issues[j].OffsetStart
		}
		return issues[i].OffsetEnd < issues[j].OffsetEnd
	})

	var merged []qa.Issue
	var group []qa.Issue
	flush := func() {
		if len(group) == 0 {
			return
		}
		if len(group) == 1 {
			merged = append(merged, group[0])
		} else {
			merged = append(merged, mergeGroup(group))
		}
		group = nil
	}

	for _, issue := range issues {
		if len(group) > 0 {
			last := group[len(group)-1]
			if issue.Type == last.Type &&
				issue.OffsetStart <= last.OffsetEnd &&
				abs(issue.OffsetStart-last.OffsetStart) < mergeProximity {
				group = append(group, issue)
				continue
			}
		}
		flush()
		group = []qa.Issue{issue}
	}
	flush()
	return merged
}

func mergeGroup(group []qa.Issue) qa.Issue {
	base := group[0]
	for _, issue := range group[1:] {
		if issue.Confidence > base.Confidence {
			base = issue
		}
	}

	minStart, maxEnd := group[0].OffsetStart, group[0].OffsetEnd
	var messages, suggestions []string
	seenMsg, seenSug := map[string]struct{}{}, map[string]struct{}{}
	for _, issue := range group {
		if issue.OffsetStart < minStart {
			minStart = issue.OffsetStart
		}
		if issue.OffsetEnd > maxEnd {
			maxEnd = issue.OffsetEnd
		}
		if _, dup := seenMsg[issue.Message]; !dup {
			seenMsg[issue.Message] = struct{}{}
			messages = append(messages, issue.Message)
		}
		if issue.Suggestion != "" {
			if _, dup := seenSug[issue.Suggestion]; !dup {
				seenSug[issue.Suggestion] = struct{}{}
				suggestions = append(suggestions, issue.Suggestion)
			}
		}
	}

	base.OffsetStart = minStart
	base.OffsetEnd = maxEnd
	if len(messages) > 1 {
		base.Message = "Multiple issues: " + strings.Join(messages, "; ")
	}
	if len(suggestions) > 0 {
		base.Suggestion = strings.Join(suggestions, "; ")
	}
	return base
}

// applyFilters drops ignored rules, applies the enable-list when one is
// configured, and rewrites severities per the configured overrides. An
// override keyed by rule ID beats one keyed by issue type.
func (c *Composite) applyFilters(issues []qa.Issue) []qa.Issue {
	out := issues[:0]
	for _, issue := range issues {
		if _, ignored := c.ignoreRules[issue.RuleID]; ignored {
			continue
		}
		if len(c.enableRules) > 0 && issue.RuleID != "" {
			if _, enabled := c.enableRules[issue.RuleID]; !enabled {
				continue
			}
		}
		if sev, ok := c.overrides[issue.RuleID]; ok {
			issue.Severity = sev
		} else if sev, ok := c.overrides[string(issue.Type)]; ok {
			issue.Severity = sev
		}
		out = append(out, issue)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
