package language

import (
	"fmt"
	"slices"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is used when nothing better is installed
const DefaultLanguage = "eng"

type entry struct {
	code2 string   // ISO 639-1
	code3 string   // OCR language code (ISO 639-2/T, tesseract naming)
	alt3  []string // bibliographic and other aliases
	words []string
}

var languages = []entry{
	{"en", "eng", nil, []string{"english"}},
	{"es", "spa", []string{"esp"}, []string{"spanish"}},
	{"fr", "fra", []string{"fre"}, []string{"french"}},
	{"de", "deu", []string{"ger", "ge"}, []string{"german"}},
	{"it", "ita", nil, []string{"italian"}},
	{"pt", "por", nil, []string{"portuguese"}},
	{"ja", "jpn", nil, []string{"japanese"}},
	{"ko", "kor", nil, []string{"korean"}},
	{"zh", "chi_sim", []string{"chi", "zho", "chs"}, []string{"chinese"}},
	{"", "chi_tra", []string{"cht"}, nil},
	{"ru", "rus", nil, []string{"russian"}},
	{"ar", "ara", nil, []string{"arabic"}},
	{"hi", "hin", nil, []string{"hindi"}},
	{"nl", "nld", []string{"dut"}, []string{"dutch"}},
	{"pl", "pol", nil, []string{"polish"}},
	{"sv", "swe", nil, []string{"swedish"}},
	{"da", "dan", nil, []string{"danish"}},
	{"no", "nor", []string{"nob"}, []string{"norwegian"}},
	{"fi", "fin", nil, []string{"finnish"}},
	{"cs", "ces", []string{"cze"}, []string{"czech"}},
	{"el", "ell", []string{"gre"}, []string{"greek"}},
	{"eu", "eus", []string{"baq"}, []string{"basque"}},
	{"hu", "hun", nil, []string{"hungarian"}},
	{"ro", "ron", []string{"rum"}, []string{"romanian"}},
	{"sk", "slk", []string{"slo"}, []string{"slovak"}},
	{"tr", "tur", nil, []string{"turkish"}},
	{"uk", "ukr", nil, []string{"ukrainian"}},
	{"he", "heb", nil, []string{"hebrew"}},
	{"fa", "fas", []string{"per"}, []string{"persian"}},
	{"is", "isl", []string{"ice"}, []string{"icelandic"}},
	{"mk", "mkd", []string{"mac"}, []string{"macedonian"}},
	{"sq", "sqi", []string{"alb"}, []string{"albanian"}},
	{"hy", "hye", []string{"arm"}, []string{"armenian"}},
	{"ka", "kat", []string{"geo"}, []string{"georgian"}},
	{"cy", "cym", []string{"wel"}, []string{"welsh"}},
	{"ms", "msa", []string{"may"}, []string{"malay"}},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		if e.code2 != "" {
			index[e.code2] = e
		}
		index[e.code3] = e
		for _, a := range e.alt3 {
			index[a] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
}

// Normalize maps a container or user language code to the code the OCR
// engine uses ("ger" and "de" both become "deu"). Unknown codes are resolved
// through the IANA registry; anything else is returned lower-cased.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" {
		return ""
	}
	if e, ok := index[code]; ok {
		return e.code3
	}
	if base, err := xlanguage.ParseBase(code); err == nil {
		if iso3 := base.ISO3(); iso3 != "" {
			return iso3
		}
	}
	return code
}

// English display name of a code, or the code itself
func Name(code string) string {
	norm := Normalize(code)
	if norm == "" {
		return "undetermined"
	}
	lookup := norm
	if e, ok := index[norm]; ok && e.code2 != "" {
		lookup = e.code2
	}
	tag, err := xlanguage.Parse(lookup)
	if err != nil {
		return norm
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return norm
}

// every OCR code in the table, used by engines without a language list
func Known() []string {
	codes := make([]string, 0, len(languages))
	for _, e := range languages {
		codes = append(codes, e.code3)
	}
	return codes
}

// outcome of Resolve
type Resolution struct {
	Language string
	// Fallback is set when neither the override nor the requested code was
	// installed and Warning explains why
	Fallback bool
	Warning  string
}

// Resolve picks the OCR language for a track: the override for the requested
// code when installed, else the requested code when installed, else fallback
// (DefaultLanguage when empty). It has no side effects.
func Resolve(installed []string, requested string, overrides map[string]string, fallback string) Resolution {
	if fallback == "" {
		fallback = DefaultLanguage
	}
	has := func(code string) bool {
		return code != "" && slices.Contains(installed, code)
	}

	req := Normalize(requested)
	var warnings []string

	for from, to := range overrides {
		if Normalize(from) != req && from != requested {
			continue
		}
		target := Normalize(to)
		if has(target) {
			return Resolution{Language: target}
		}
		warnings = append(warnings, fmt.Sprintf("override %q for %q is not installed", to, requested))
		break
	}

	if has(req) {
		return Resolution{Language: req}
	}

	if req == "" {
		warnings = append(warnings, "track has no language")
	} else {
		warnings = append(warnings, fmt.Sprintf("language %q is not installed", req))
	}
	warnings = append(warnings, fmt.Sprintf("falling back to %q", fallback))
	return Resolution{
		Language: fallback,
		Fallback: true,
		Warning:  strings.Join(warnings, "; "),
	}
}
