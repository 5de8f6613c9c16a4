// Package rolling maintains the sliding translation context carried between
// requests: recent speakers, recent source lines, recent translated lines,
// and a frequency-ranked glossary of candidate names/terms.
package rolling

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	DefaultWindowSize   = 4
	DefaultGlossaryCap  = 40
	sourceSeparator     = " / "
	minCandidateTermLen = 3
)

// termPattern is a deliberately loose proper-noun detector: an uppercase
// letter (Swedish letters included) followed by word characters, hyphens or
// apostrophes. It over-matches sentence-initial words; the glossary is a
// consistency aid, not ground truth.
var termPattern = regexp.MustCompile(`[A-ZÅÄÖ][\wÅÄÖåäö\-']+`)

type glossaryEntry struct {
	count    int
	lastSeen int
}

// Tracker is single-writer state owned by the pipeline driver. It is
// created per run and never shared across goroutines.
type Tracker struct {
	windowSize  int
	glossaryCap int
	targetLang  string

	speakers     []string
	sourceLines  []string
	translations []string
	glossary     map[string]glossaryEntry
	seq          int
}

func New(windowSize, glossaryCap int, targetLang string) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if glossaryCap <= 0 {
		glossaryCap = DefaultGlossaryCap
	}
	if targetLang == "" {
		targetLang = "translated"
	}
	return &Tracker{
		windowSize:  windowSize,
		glossaryCap: glossaryCap,
		targetLang:  targetLang,
		glossary:    make(map[string]glossaryEntry),
	}
}

// ExtractCandidateTerms returns the capitalized tokens of text longer than
// two runes.
func ExtractCandidateTerms(text string) []string {
	return lo.Filter(termPattern.FindAllString(text, -1), func(t string, _ int) bool {
		return utf8.RuneCountInString(t) >= minCandidateTermLen
	})
}

// Update records one row, in row order: glossary terms first, then the
// source window, speaker window and output window, then glossary pruning.
func (t *Tracker) Update(speaker, sourceA, sourceB, output string) {
	t.seq++
	combined := strings.TrimSpace(strings.Join(
		lo.Compact([]string{speaker, sourceA, sourceB}), " "))
	for _, term := range ExtractCandidateTerms(combined) {
		e := t.glossary[term]
		e.count++
		e.lastSeen = t.seq
		t.glossary[term] = e
	}

	if sourceA != "" || sourceB != "" {
		snippet := sourceA
		if sourceA != "" && sourceB != "" {
			snippet += sourceSeparator
		}
		snippet += sourceB
		t.sourceLines = pushBounded(t.sourceLines, snippet, t.windowSize)
	}

	if speaker != "" {
		t.speakers = pushBounded(t.speakers, speaker, t.windowSize)
	}

	if output != "" {
		t.translations = pushBounded(t.translations, output, t.windowSize)
	}

	t.pruneGlossary()
}

func pushBounded(window []string, v string, capacity int) []string {
	window = append(window, v)
	if len(window) > capacity {
		window = window[1:]
	}
	return window
}

// pruneGlossary keeps the glossaryCap highest-frequency terms. Ties are
// broken by recency: the term seen more recently survives.
func (t *Tracker) pruneGlossary() {
	if len(t.glossary) <= t.glossaryCap {
		return
	}
	terms := lo.Keys(t.glossary)
	sort.Slice(terms, func(i, j int) bool {
		a, b := t.glossary[terms[i]], t.glossary[terms[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.lastSeen > b.lastSeen
	})
	for _, term := range terms[t.glossaryCap:] {
		delete(t.glossary, term)
	}
}

// Speakers returns the recent-speaker window, oldest first.
func (t *Tracker) Speakers() []string { return append([]string(nil), t.speakers...) }

// SourceLines returns the recent source-snippet window, oldest first.
func (t *Tracker) SourceLines() []string { return append([]string(nil), t.sourceLines...) }

// Translations returns the recent output window, oldest first.
func (t *Tracker) Translations() []string { return append([]string(nil), t.translations...) }

// GlossaryTerms returns the retained terms sorted lexicographically.
func (t *Tracker) GlossaryTerms() []string {
	terms := lo.Keys(t.glossary)
	sort.Strings(terms)
	return terms
}

// GlossaryCount returns the observed frequency of term, 0 if absent.
func (t *Tracker) GlossaryCount(term string) int { return t.glossary[term].count }

// BuildContextBlock renders the non-empty sections into the text block sent
// with every translation request. Empty state renders to "".
func (t *Tracker) BuildContextBlock() string {
	var parts []string
	if len(t.speakers) > 0 {
		parts = append(parts, "Recent speakers:\n"+bulleted(t.speakers))
	}
	if len(t.sourceLines) > 0 {
		parts = append(parts, "Recent lines (source):\n"+bulleted(t.sourceLines))
	}
	if len(t.translations) > 0 {
		parts = append(parts, fmt.Sprintf("Recent %s lines:\n%s", t.targetLang, bulleted(t.translations)))
	}
	if len(t.glossary) > 0 {
		parts = append(parts, "Names/Terms glossary (keep consistent): "+strings.Join(t.GlossaryTerms(), ", "))
	}
	return strings.Join(parts, "\n\n")
}

func bulleted(lines []string) string {
	return strings.Join(lo.Map(lines, func(s string, _ int) string {
		return "- " + s
	}), "\n")
}
