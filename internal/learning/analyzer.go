// Package learning mines the correction log for repeatable description
// patterns and turns accepted suggestions into persisted category rules.
package learning

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/service"
)

// Confidence scoring constants. Contains-matches are capped and based lower
// than exact matches: a substring explains the evidence less specifically
// than a full description.
const (
	exactBaseConfidence    = 0.85
	exactConfidenceCap     = 0.95
	containsBaseConfidence = 0.80
	containsConfidenceCap  = 0.90
	confidenceStep         = 0.02
)

// Defaults for Config.
const (
	DefaultLookbackDays   = 90
	DefaultMinCorrections = 3
	DefaultCoverageRatio  = 0.5
	DefaultMaxSamples     = 5
	DefaultRecentLimit    = 10

	minTokenLength = 3
)

// stopWords are tokens too generic to anchor a contains-pattern: articles,
// currency codes, and payment-method boilerplate that appears on most
// statement lines.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {},
	"usd": {}, "gbp": {}, "eur": {}, "cad": {}, "aud": {}, "nzd": {},
	"card": {}, "payment": {}, "purchase": {}, "debit": {}, "credit": {},
	"visa": {}, "mastercard": {}, "pos": {}, "ref": {},
}

// Config holds the analysis tunables.
type Config struct {
	// LookbackDays bounds the analysis window; corrections older than this
	// are never loaded.
	LookbackDays int
	// MinCorrections is the evidence floor for any suggestion.
	MinCorrections int
	// CoverageRatio is the share of a category group a contains-pattern
	// must explain before it qualifies.
	CoverageRatio float64
	// MaxSamples bounds the sample descriptions attached to a suggestion.
	MaxSamples int
	// RecentLimit bounds the recent-corrections list in the report.
	RecentLimit int
}

// Normalize fills zero fields with defaults.
func (c *Config) Normalize() {
	if c.LookbackDays <= 0 {
		c.LookbackDays = DefaultLookbackDays
	}
	if c.MinCorrections <= 0 {
		c.MinCorrections = DefaultMinCorrections
	}
	if c.CoverageRatio <= 0 || c.CoverageRatio > 1 {
		c.CoverageRatio = DefaultCoverageRatio
	}
	if c.MaxSamples <= 0 {
		c.MaxSamples = DefaultMaxSamples
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = DefaultRecentLimit
	}
}

// Report is the result of one analysis pass.
type Report struct {
	Suggestions       []model.RuleSuggestion
	RecentCorrections []model.Correction
	TotalCorrections  int
}

// Analyzer mines unprocessed corrections for rule suggestions. It is
// stateless: every call recomputes from the current log, so concurrent
// callers need no coordination.
type Analyzer struct {
	corrections service.CorrectionStore
	categories  service.CategoryStore
	now         func() time.Time
	cfg         Config
}

// NewAnalyzer creates an analyzer over the given stores.
func NewAnalyzer(corrections service.CorrectionStore, categories service.CategoryStore, cfg Config) *Analyzer {
	cfg.Normalize()
	return &Analyzer{
		corrections: corrections,
		categories:  categories,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Analyze scans the lookback window and returns ranked, deduplicated rule
// suggestions plus window statistics. Read failures are logged and produce
// an empty report rather than an error: the learning loop is an
// enhancement, not a critical path.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	since := a.windowStart()

	total, err := a.corrections.CountCorrections(ctx, since)
	if err != nil {
		slog.Error("failed to count corrections, returning empty report", "error", err)
		return &Report{}, nil
	}

	unprocessed, err := a.corrections.GetUnprocessedCorrections(ctx, since)
	if err != nil {
		slog.Error("failed to load corrections, returning empty report", "error", err)
		return &Report{}, nil
	}

	recent, err := a.corrections.GetRecentCorrections(ctx, since, a.cfg.RecentLimit)
	if err != nil {
		slog.Error("failed to load recent corrections", "error", err)
		recent = nil
	}

	report := &Report{
		TotalCorrections:  total,
		RecentCorrections: recent,
	}

	if len(unprocessed) == 0 {
		return report, nil
	}

	names := a.categoryNames(ctx)

	// Group the window by corrected category; both strategies operate
	// within a single category's corrections.
	groups := make(map[int64][]model.Correction)
	for _, c := range unprocessed {
		groups[c.CorrectedCategoryID] = append(groups[c.CorrectedCategoryID], c)
	}

	var suggestions []model.RuleSuggestion
	for categoryID, group := range groups {
		exact := a.mineExact(categoryID, names[categoryID], group)
		contains := a.mineContains(categoryID, names[categoryID], group)
		suggestions = append(suggestions, exact...)
		suggestions = append(suggestions, dedupAgainstExact(exact, contains)...)
	}

	// Most evidence first. Ties keep mining order; no further tiebreak.
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].CorrectionCount > suggestions[j].CorrectionCount
	})

	report.Suggestions = suggestions

	slog.Debug("analysis complete",
		"window_start", since,
		"total_corrections", total,
		"unprocessed", len(unprocessed),
		"suggestions", len(suggestions))

	return report, nil
}

// windowStart returns the inclusive lower bound of the analysis window.
func (a *Analyzer) windowStart() time.Time {
	return a.now().UTC().AddDate(0, 0, -a.cfg.LookbackDays)
}

func (a *Analyzer) categoryNames(ctx context.Context) map[int64]string {
	names := make(map[int64]string)
	cats, err := a.categories.GetCategories(ctx)
	if err != nil {
		slog.Warn("failed to load category names", "error", err)
		return names
	}
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}

// mineExact groups a category's corrections by normalised description and
// emits one suggestion per group that reaches the evidence floor.
func (a *Analyzer) mineExact(categoryID int64, categoryName string, group []model.Correction) []model.RuleSuggestion {
	type exactGroup struct {
		display string
		ids     []string
		samples []string
	}

	byText := make(map[string]*exactGroup)
	var order []string
	for _, c := range group {
		norm := normalizeDescription(c.Description)
		if norm == "" {
			continue
		}
		g, ok := byText[norm]
		if !ok {
			// Keep the first member's original casing for display.
			g = &exactGroup{display: strings.TrimSpace(c.Description)}
			byText[norm] = g
			order = append(order, norm)
		}
		g.ids = append(g.ids, c.ID)
		if len(g.samples) < a.cfg.MaxSamples {
			g.samples = append(g.samples, c.Description)
		}
	}

	var suggestions []model.RuleSuggestion
	for _, norm := range order {
		g := byText[norm]
		count := len(g.ids)
		if count < a.cfg.MinCorrections {
			continue
		}
		suggestions = append(suggestions, model.RuleSuggestion{
			Pattern:            g.display,
			MatchType:          model.MatchExact,
			CategoryID:         categoryID,
			CategoryName:       categoryName,
			CorrectionCount:    count,
			SampleDescriptions: g.samples,
			CorrectionIDs:      g.ids,
			Confidence:         exactConfidence(count, a.cfg.MinCorrections),
		})
	}
	return suggestions
}

// mineContains tallies word and adjacent-bigram candidates across a
// category group and emits those with both enough absolute evidence and
// majority coverage of the group.
func (a *Analyzer) mineContains(categoryID int64, categoryName string, group []model.Correction) []model.RuleSuggestion {
	if len(group) < a.cfg.MinCorrections {
		return nil
	}

	type tally struct {
		ids     []string
		samples []string
	}

	tallies := make(map[string]*tally)
	var order []string
	for _, c := range group {
		// Count each candidate at most once per description so one
		// verbose line cannot dominate the tally.
		for _, candidate := range candidatePatterns(c.Description) {
			t, ok := tallies[candidate]
			if !ok {
				t = &tally{}
				tallies[candidate] = t
				order = append(order, candidate)
			}
			t.ids = append(t.ids, c.ID)
			if len(t.samples) < a.cfg.MaxSamples {
				t.samples = append(t.samples, c.Description)
			}
		}
	}

	required := int(math.Ceil(a.cfg.CoverageRatio * float64(len(group))))

	var suggestions []model.RuleSuggestion
	for _, candidate := range order {
		t := tallies[candidate]
		freq := len(t.ids)
		if freq < a.cfg.MinCorrections || freq < required {
			continue
		}
		suggestions = append(suggestions, model.RuleSuggestion{
			Pattern:            candidate,
			MatchType:          model.MatchContains,
			CategoryID:         categoryID,
			CategoryName:       categoryName,
			CorrectionCount:    freq,
			SampleDescriptions: t.samples,
			CorrectionIDs:      t.ids,
			Confidence:         containsConfidence(freq, a.cfg.MinCorrections),
		})
	}
	return suggestions
}

// dedupAgainstExact drops contains-suggestions whose substring is already
// covered by an exact suggestion for the same category; the narrower exact
// match supersedes the weaker one.
func dedupAgainstExact(exact, contains []model.RuleSuggestion) []model.RuleSuggestion {
	if len(exact) == 0 || len(contains) == 0 {
		return contains
	}

	kept := contains[:0]
	for _, c := range contains {
		covered := false
		for _, e := range exact {
			if strings.Contains(strings.ToLower(e.Pattern), strings.ToLower(c.Pattern)) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, c)
		}
	}
	return kept
}

func exactConfidence(count, floor int) float64 {
	return math.Min(exactConfidenceCap,
		exactBaseConfidence+confidenceStep*float64(count-floor))
}

func containsConfidence(count, floor int) float64 {
	return math.Min(containsConfidenceCap,
		containsBaseConfidence+confidenceStep*float64(count-floor))
}

// normalizeDescription lower-cases and trims a description for grouping.
func normalizeDescription(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits a description into lower-case alphanumeric words of at
// least minTokenLength characters, excluding stop words.
func tokenize(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < minTokenLength {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// candidatePatterns returns the distinct single-word and adjacent-bigram
// candidates of one description.
func candidatePatterns(description string) []string {
	tokens := tokenize(description)

	seen := make(map[string]struct{}, len(tokens)*2)
	var candidates []string
	add := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}

	for i, tok := range tokens {
		add(tok)
		if i+1 < len(tokens) {
			add(tok + " " + tokens[i+1])
		}
	}
	return candidates
}
