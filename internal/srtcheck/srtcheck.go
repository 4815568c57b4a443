// Package srtcheck repairs characters OCR engines commonly confuse in
// subtitle text. Every rule is a rewrite whose output no rule matches
// again, and Check runs the catalogue to a fixed point, so checking a
// checked file changes nothing.
package srtcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/subtitle"
)

// maxPasses bounds the fixed point loop
const maxPasses = 16

type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
	// Languages restricts the rule to these OCR codes; empty means all
	Languages []string
}

func (r Rule) appliesTo(lang string) bool {
	if lang == "" || len(r.Languages) == 0 {
		return true
	}
	return slices.Contains(r.Languages, lang)
}

// DefaultRules is the built-in catalogue.
var DefaultRules = []Rule{
	{
		Name:    "pipe-as-capital-i",
		Pattern: regexp.MustCompile(`\|`),
		Replace: "I",
	},
	{
		Name:    "double-apostrophe-quote",
		Pattern: regexp.MustCompile(`''`),
		Replace: `"`,
	},
	{
		Name:    "spaced-ellipsis",
		Pattern: regexp.MustCompile(`\. \. \.`),
		Replace: "...",
	},
	{
		Name:    "lowercase-l-in-capitals",
		Pattern: regexp.MustCompile(`([A-Z])l([A-Z])`),
		Replace: "${1}I${2}",
	},
	{
		Name:    "zero-inside-word",
		Pattern: regexp.MustCompile(`([a-z])0([a-z])`),
		Replace: "${1}o${2}",
	},
	{
		Name:    "space-before-comma-or-period",
		Pattern: regexp.MustCompile(`(\pL) +([,.])`),
		Replace: "${1}${2}",
	},
	{
		Name:    "repeated-spaces",
		Pattern: regexp.MustCompile(`  +`),
		Replace: " ",
	},
	{
		Name:      "l-contraction",
		Pattern:   regexp.MustCompile(`\bl'(m|ll|ve|d)\b`),
		Replace:   "I'${1}",
		Languages: []string{"eng"},
	},
	{
		Name:      "standalone-lowercase-l",
		Pattern:   regexp.MustCompile(`(?m)(^|[\s"-])l( |$)`),
		Replace:   "${1}I${2}",
		Languages: []string{"eng"},
	},
}

// Finding records the rewrites one rule made in one entry.
type Finding struct {
	Index int
	Rule  string
	Count int
}

type Checker struct {
	rules []Rule
	log   *logging.Logger
}

func New(lang string, log *logging.Logger) *Checker {
	return NewWithRules(DefaultRules, lang, log)
}

func NewWithRules(rules []Rule, lang string, log *logging.Logger) *Checker {
	if log == nil {
		log = logging.Nop()
	}
	lang = language.Normalize(lang)
	var active []Rule
	for _, r := range rules {
		if r.appliesTo(lang) {
			active = append(active, r)
		}
	}
	return &Checker{rules: active, log: log}
}

// Check rewrites text until no rule matches and returns the result with
// the number of replacements made.
func (c *Checker) Check(text string) (string, int) {
	out, findings := c.check(0, text)
	n := 0
	for _, f := range findings {
		n += f.Count
	}
	return out, n
}

func (c *Checker) check(index int, text string) (string, []Finding) {
	var findings []Finding
	for range maxPasses {
		changed := false
		for _, r := range c.rules {
			count := 0
			for {
				matches := r.Pattern.FindAllStringIndex(text, -1)
				if len(matches) == 0 {
					break
				}
				next := r.Pattern.ReplaceAllString(text, r.Replace)
				if next == text {
					break
				}
				count += len(matches)
				text = next
			}
			if count > 0 {
				findings = append(findings, Finding{
					Index: index,
					Rule:  r.Name,
					Count: count,
				})
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return text, findings
}

// CheckSubtitle rewrites every entry in place.
func (c *Checker) CheckSubtitle(sub *subtitle.Subtitle) []Finding {
	var all []Finding
	for i := range sub.Entries {
		text, findings := c.check(sub.Entries[i].Index, sub.Entries[i].Text)
		sub.Entries[i].Text = text
		all = append(all, findings...)
	}
	return all
}

// CheckFile checks a SubRip file and rewrites it unless dryRun is set.
// The file is replaced atomically and left untouched when nothing
// changes.
func (c *Checker) CheckFile(path string, dryRun bool) ([]Finding, error) {
	file, err := subtitle.Open(path)
	if err != nil {
		return nil, err
	}

	sub := file.Subtitle()
	findings := c.CheckSubtitle(sub)
	fixes := 0
	for _, f := range findings {
		fixes += f.Count
		c.log.Debugw("ocr fix",
			"file", filepath.Base(path),
			"index", f.Index,
			"rule", f.Rule,
			"count", f.Count,
		)
	}
	if len(findings) == 0 || dryRun {
		return findings, nil
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := subtitle.EncodeSRT(out, sub); err != nil {
		out.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", path, err)
	}

	c.log.Infow("fixed OCR errors",
		"file", filepath.Base(path),
		"fixes", fixes,
	)
	return findings, nil
}
