// Package extraction pulls structured job fields out of normalized messages
// with source-aware regex cascades. It never performs I/O.
package extraction

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"jobtrack_worker/core/domain"

	"golang.org/x/net/publicsuffix"
)

// Config is the data the engine is built from.
type Config struct {
	Sources   []SourceSpec
	Gazetteer []string
}

// DefaultConfig returns the built-in tables.
func DefaultConfig() Config {
	return Config{
		Sources:   DefaultSources(),
		Gazetteer: append([]string(nil), DefaultGazetteer...),
	}
}

type source struct {
	name    string
	domains []string
	subject *regexp.Regexp
	company []*regexp.Regexp
	title   []*regexp.Regexp
}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	sources        []source
	genericCompany []*regexp.Regexp
	genericTitle   []*regexp.Regexp
	places         *gazetteer
}

func NewEngine(cfg Config) (*Engine, error) {
	e := &Engine{places: newGazetteer(cfg.Gazetteer)}
	for _, spec := range cfg.Sources {
		s, err := compileSource(spec)
		if err != nil {
			return nil, err
		}
		e.sources = append(e.sources, s)
	}
	var err error
	if e.genericCompany, err = compileAll(genericCompany); err != nil {
		return nil, fmt.Errorf("generic company: %w", err)
	}
	if e.genericTitle, err = compileAll(genericTitle); err != nil {
		return nil, fmt.Errorf("generic title: %w", err)
	}
	return e, nil
}

// Default returns an engine over the built-in tables.
func Default() *Engine {
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

func compileSource(spec SourceSpec) (source, error) {
	if spec.Name == "" {
		return source{}, fmt.Errorf("source without name")
	}
	s := source{name: spec.Name}
	for _, d := range spec.Domains {
		s.domains = append(s.domains, strings.ToLower(strings.TrimSpace(d)))
	}
	var err error
	if spec.SubjectPattern != "" {
		if s.subject, err = regexp.Compile(spec.SubjectPattern); err != nil {
			return source{}, fmt.Errorf("source %s subject: %w", spec.Name, err)
		}
	}
	if s.company, err = compileAll(spec.Company); err != nil {
		return source{}, fmt.Errorf("source %s company: %w", spec.Name, err)
	}
	if s.title, err = compileAll(spec.Title); err != nil {
		return source{}, fmt.Errorf("source %s title: %w", spec.Name, err)
	}
	return s, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%q: needs a capturing group", p)
		}
		out = append(out, re)
	}
	return out, nil
}

// Extract runs the rule-based pass. It always returns a value; fields it
// cannot find are nil.
func (e *Engine) Extract(msg *domain.NormalizedMessage) domain.ExtractedData {
	var data domain.ExtractedData
	if msg == nil {
		return data
	}
	text := msg.Subject + "\n" + msg.TextBody

	src := e.detectSource(msg)
	if src != nil {
		data.Source = domain.Str(src.name)
	}

	// Source-specific cascade first, generic cascade as fallback.
	var companyPatterns, titlePatterns []*regexp.Regexp
	if src != nil {
		companyPatterns = append(companyPatterns, src.company...)
		titlePatterns = append(titlePatterns, src.title...)
	}
	companyPatterns = append(companyPatterns, e.genericCompany...)
	titlePatterns = append(titlePatterns, e.genericTitle...)

	data.Company = domain.Str(firstMatch(companyPatterns, text, CleanCompany))
	data.JobTitle = domain.Str(firstMatch(titlePatterns, text, CleanTitle))

	if data.Company == nil && !msg.IsOutbound {
		data.Company = domain.Str(companyFromSender(msg.FromName, src))
	}

	data.Location = domain.Str(e.extractLocation(text))
	data.ApplicationURL = domain.Str(extractURL(msg.TextBody))
	data.JobType = domain.Str(extractJobType(text))
	data.RecruiterName = domain.Str(extractRecruiter(msg))
	data.SalaryRange = domain.Str(extractSalary(text))
	return data
}

// NeedsLLMFallback is true when company or job title is still missing.
func NeedsLLMFallback(d domain.ExtractedData) bool {
	return !d.IsComplete()
}

func firstMatch(patterns []*regexp.Regexp, text string, clean func(string) string) string {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, 3) {
			if v := clean(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

// detectSource checks the counterpart's registrable domain, then the subject.
func (e *Engine) detectSource(msg *domain.NormalizedMessage) *source {
	host := msg.FromDomain()
	if msg.IsOutbound {
		host = firstAddressDomain(msg.To)
	}
	if host != "" {
		registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err != nil {
			registrable = host
		}
		for i := range e.sources {
			for _, d := range e.sources[i].domains {
				if registrable == d || host == d || strings.HasSuffix(host, "."+d) {
					return &e.sources[i]
				}
			}
		}
	}
	for i := range e.sources {
		if s := e.sources[i].subject; s != nil && s.MatchString(msg.Subject) {
			return &e.sources[i]
		}
	}
	return nil
}

func firstAddressDomain(header string) string {
	if header == "" {
		return ""
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	at := strings.LastIndexByte(addrs[0].Address, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(addrs[0].Address[at+1:])
}

var (
	senderOrgSuffix = regexp.MustCompile(`(?i)^(.+?)[\s\-–|,]+(careers?|recruiting|recruitment|talent acquisition|talent|hiring team|hiring|jobs|hr|people team)$`)
	senderVia       = regexp.MustCompile(`(?i)^(.+?)\s+(?:via|@|at|from)\s+(.+)$`)
	personalName    = regexp.MustCompile(`^[A-Z][a-z'\-]+ [A-Z][a-z'\-]+$`)
	genericSender   = regexp.MustCompile(`(?i)^(no-?reply|do-?not-?reply|notifications?|alerts?|info|support|admin|mailer-daemon|jobs|careers|recruiting|hr|team)$`)
)

// isPersonalName matches "First Last" shapes that are not "Acme Careers".
func isPersonalName(s string) bool {
	return personalName.MatchString(s) && !senderOrgSuffix.MatchString(s)
}

// companyFromSender derives a company from the sender display name when it
// looks like an organization rather than a two-word personal name.
func companyFromSender(fromName string, src *source) string {
	name := baseClean(fromName)
	if name == "" || strings.Contains(name, "@") {
		return ""
	}
	if m := senderOrgSuffix.FindStringSubmatch(name); m != nil {
		return CleanCompany(m[1])
	}
	if m := senderVia.FindStringSubmatch(name); m != nil {
		// "Jane Smith via LinkedIn" is a person; "Acme via Workday" is an org.
		if isPersonalName(m[1]) {
			return ""
		}
		name = m[1]
	}
	if isPersonalName(name) || genericSender.MatchString(name) {
		return ""
	}
	if src != nil && strings.EqualFold(name, src.name) {
		return ""
	}
	return CleanCompany(name)
}

var signOff = regexp.MustCompile(`(?i:kind regards|best regards|warm regards|regards|many thanks|thanks|cheers|sincerely|best),?\s*\n+\s*([A-Z][a-z'\-]+ [A-Z][a-z'\-]+)\s*(?:\n|$)`)

func extractRecruiter(msg *domain.NormalizedMessage) string {
	if msg.IsOutbound {
		return ""
	}
	if m := senderVia.FindStringSubmatch(baseClean(msg.FromName)); m != nil && isPersonalName(m[1]) {
		return m[1]
	}
	if name := baseClean(msg.FromName); isPersonalName(name) {
		return name
	}
	if m := signOff.FindStringSubmatch(msg.TextBody); m != nil {
		return m[1]
	}
	return ""
}

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)
	urlExclusion = regexp.MustCompile(`(?i)unsubscribe|opt-?out|email-?preferences|manage-?(alerts|subscriptions|notifications)|/track|tracking|/click|click\.|/open|pixel|beacon|/wf/|list-manage|\.(png|jpe?g|gif|svg|webp|ico)(\?|$)`)
)

// extractURL returns the first body link that is not an unsubscribe, tracking or image link.
func extractURL(body string) string {
	for _, u := range urlPattern.FindAllString(body, -1) {
		u = strings.TrimRight(u, ".,;:!?>*")
		if urlExclusion.MatchString(u) {
			continue
		}
		return u
	}
	return ""
}

type jobTypeKeywords struct {
	jobType  string
	keywords []string
}

// jobTypes is checked in order; the first type with a matching keyword wins.
var jobTypes = []jobTypeKeywords{
	{"internship", []string{"internship", "intern program", "graduate program", "graduate programme"}},
	{"contract", []string{"contract role", "contract position", "contractor", "fixed term", "fixed-term", "contract basis"}},
	{"part-time", []string{"part-time", "part time"}},
	{"casual", []string{"casual role", "casual position", "casual basis"}},
	{"temporary", []string{"temporary", "temp role", "locum"}},
	{"full-time", []string{"full-time", "full time", "fulltime", "permanent"}},
}

func extractJobType(text string) string {
	lower := strings.ToLower(text)
	for _, jt := range jobTypes {
		for _, kw := range jt.keywords {
			if strings.Contains(lower, kw) {
				return jt.jobType
			}
		}
	}
	return ""
}

var salaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?\s?k?\s*(?:-|–|to)\s*\$?\s?\d[\d,]*(?:\.\d+)?\s?k?(?:\s*(?:per|/|a)\s*(?:year|annum|hour|hr|day|yr)|\s*p\.?a\.?|\s*\+\s*super)?`),
	regexp.MustCompile(`(?i)\$\s?\d[\d,]*(?:\.\d+)?\s?k?\s*(?:(?:per|/|a)\s*(?:year|annum|hour|hr|day|yr)|p\.?a\b\.?)`),
}

func extractSalary(text string) string {
	for _, re := range salaryPatterns {
		if m := re.FindString(text); m != "" {
			return CleanValue(m)
		}
	}
	return ""
}
