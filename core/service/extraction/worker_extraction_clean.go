package extraction

import (
	"html"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	corporateSuffix = regexp.MustCompile(`(?i)[,\s]+(pty\.?\s+ltd\.?|pty\.?\s+limited|proprietary limited|ltd\.?|limited|inc\.?|incorporated|llc|l\.l\.c\.?|corp\.?|corporation|gmbh|plc|co\.)$`)

	roleSuffix = regexp.MustCompile(`(?i)[\s\-–|,]+(careers?|recruiting|recruitment|talent acquisition|talent|hiring team|hiring|jobs|hr|human resources|people( team)?|team|no-?reply|notifications?)$`)

	leadingArticle = regexp.MustCompile(`(?i)^(the|a|an)\s+`)

	titleSuffix = regexp.MustCompile(`(?i)\s+(position|role|vacancy|opening|opportunity|job)$`)

	// values that are never a company name
	notCompany = regexp.MustCompile(`(?i)^(you|your|us|our|we|the (role|position|job)|this (role|position|job)|a (role|position|job)|linkedin|seek|indeed|glassdoor|jora|no-?reply|notifications?|team|careers?|hr)$|\b(position|role|vacancy)\b`)
)

const quoteChars = "\"'`“”‘’«»"

const trailingPunct = ".,;:!?-–—|·•*"

func baseClean(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return trimEdges(s)
}

func trimEdges(s string) string {
	for {
		prev := s
		s = strings.TrimSpace(s)
		s = strings.Trim(s, quoteChars)
		s = strings.TrimRight(s, trailingPunct)
		s = strings.TrimLeft(s, "-–—|·•*:")
		if s == prev {
			return s
		}
	}
}

// CleanCompany normalizes a captured company value: entities decoded,
// whitespace collapsed, quotes and trailing punctuation removed, corporate and
// sender-role suffixes stripped. Returns "" when nothing usable remains.
func CleanCompany(s string) string {
	s = baseClean(s)
	for {
		prev := s
		s = corporateSuffix.ReplaceAllString(s, "")
		s = roleSuffix.ReplaceAllString(s, "")
		s = trimEdges(s)
		if s == prev {
			break
		}
	}
	s = leadingArticle.ReplaceAllString(s, "")
	if !plausibleCompany(s) {
		return ""
	}
	return s
}

// CleanTitle normalizes a captured job title.
func CleanTitle(s string) string {
	s = baseClean(s)
	s = leadingArticle.ReplaceAllString(s, "")
	for {
		prev := s
		s = titleSuffix.ReplaceAllString(s, "")
		s = trimEdges(s)
		if s == prev {
			break
		}
	}
	if !plausibleTitle(s) {
		return ""
	}
	return s
}

// CleanValue is the generic cleaner for free-text fields.
func CleanValue(s string) string {
	return baseClean(s)
}

func plausibleCompany(s string) bool {
	if len(s) < 2 || len(s) > 80 {
		return false
	}
	if len(strings.Fields(s)) > 8 {
		return false
	}
	return !notCompany.MatchString(s)
}

func plausibleTitle(s string) bool {
	if len(s) < 2 || len(s) > 100 {
		return false
	}
	if len(strings.Fields(s)) > 12 {
		return false
	}
	lower := strings.ToLower(s)
	return !strings.HasPrefix(lower, "http") && !strings.Contains(lower, "@")
}
