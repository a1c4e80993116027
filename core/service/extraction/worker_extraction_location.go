package extraction

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultGazetteer lists the place names recognised without explicit phrasing.
// Messages mentioning places outside the list yield no location unless they use
// "Location:" or "based in" phrasing.
var DefaultGazetteer = []string{
	"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide", "Canberra", "Hobart", "Darwin",
	"Gold Coast", "Sunshine Coast", "Newcastle", "Wollongong", "Geelong", "Townsville", "Cairns",
	"Parramatta", "North Sydney", "Macquarie Park", "Chatswood", "Ballarat", "Bendigo", "Launceston",
	"New South Wales", "Victoria", "Queensland", "Western Australia", "South Australia", "Tasmania",
	"Australian Capital Territory", "Northern Territory",
	"NSW", "VIC", "QLD", "ACT",
}

var locationPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blocation\s*:\s*([^\n|•·]+)`),
	regexp.MustCompile(`(?i)\bbased (?:in|out of) ([A-Z][\w.'\- ]{1,40}?)(?:[,.!;)\n]|$| and | with )`),
}

type gazetteer struct {
	re *regexp.Regexp
}

func newGazetteer(names []string) *gazetteer {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			cleaned = append(cleaned, regexp.QuoteMeta(n))
		}
	}
	if len(cleaned) == 0 {
		return &gazetteer{}
	}
	// longest first so "North Sydney" wins over "Sydney"
	sort.SliceStable(cleaned, func(i, j int) bool { return len(cleaned[i]) > len(cleaned[j]) })
	return &gazetteer{re: regexp.MustCompile(`\b(` + strings.Join(cleaned, "|") + `)\b`)}
}

func (g *gazetteer) find(text string) string {
	if g.re == nil {
		return ""
	}
	m := g.re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func (e *Engine) extractLocation(text string) string {
	for _, re := range locationPhrases {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := CleanValue(m[1]); v != "" && len(v) <= 60 {
				return v
			}
		}
	}
	return e.places.find(text)
}
