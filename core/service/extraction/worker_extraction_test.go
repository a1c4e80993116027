package extraction

import (
	"testing"

	"jobtrack_worker/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRoundTrip(t *testing.T) {
	e := Default()
	msg := &domain.NormalizedMessage{
		TextBody: "your application for Senior Backend Engineer was successfully submitted to Acme Pty Ltd.",
	}

	data := e.Extract(msg)
	assert.Equal(t, "Senior Backend Engineer", domain.Deref(data.JobTitle))
	assert.Equal(t, "Acme", domain.Deref(data.Company))
	assert.False(t, NeedsLLMFallback(data))
}

func TestCleanCompany(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Pty Ltd.", "Acme"},
		{"  \"Globex Inc.\" ", "Globex"},
		{"Initech, LLC", "Initech"},
		{"Acme Careers", "Acme"},
		{"The Acme Recruiting Team", "Acme"},
		{"Ben &amp; Jerry&#39;s", "Ben & Jerry's"},
		{"Umbrella   Corporation", "Umbrella"},
		{"the role", ""},
		{"LinkedIn", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCompany(tt.in))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Data Analyst", CleanTitle("the Data Analyst position"))
	assert.Equal(t, "Site Reliability Engineer", CleanTitle("Site Reliability Engineer."))
	assert.Equal(t, "", CleanTitle("https://example.com/job"))
}

func TestExtractSourceSpecific(t *testing.T) {
	e := Default()

	t.Run("seek by registrable domain", func(t *testing.T) {
		data := e.Extract(&domain.NormalizedMessage{
			From:     "noreply@s.seek.com.au",
			Subject:  "Your application was successfully submitted",
			TextBody: "Your application for Graduate Developer was successfully submitted to Initech Pty Ltd.\nLocation: Melbourne VIC",
		})
		assert.Equal(t, "Seek", domain.Deref(data.Source))
		assert.Equal(t, "Graduate Developer", domain.Deref(data.JobTitle))
		assert.Equal(t, "Initech", domain.Deref(data.Company))
		assert.Equal(t, "Melbourne VIC", domain.Deref(data.Location))
	})

	t.Run("indeed subject", func(t *testing.T) {
		data := e.Extract(&domain.NormalizedMessage{
			From:     "indeedapply@indeed.com",
			Subject:  "Indeed Application: Support Analyst",
			TextBody: "The following items were sent to Globex Corporation.",
		})
		assert.Equal(t, "Indeed", domain.Deref(data.Source))
		assert.Equal(t, "Support Analyst", domain.Deref(data.JobTitle))
		assert.Equal(t, "Globex", domain.Deref(data.Company))
	})
}

func TestCompanyFromSender(t *testing.T) {
	tests := []struct {
		name     string
		fromName string
		want     string
	}{
		{"role suffix", "Acme Talent Acquisition", "Acme"},
		{"org via ats", "Globex via Workday", "Globex"},
		{"personal name", "Jane Smith", ""},
		{"person via board", "Jane Smith via LinkedIn", ""},
		{"generic", "noreply", ""},
		{"single word org", "Initech", "Initech"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, companyFromSender(tt.fromName, nil))
		})
	}
}

func TestExtractURL(t *testing.T) {
	body := "View: https://click.mail.example.com/track?id=1\n" +
		"Logo https://cdn.example.com/logo.png\n" +
		"Unsubscribe https://example.com/unsubscribe?u=2\n" +
		"Apply here: https://jobs.example.com/apply/123.\n"
	assert.Equal(t, "https://jobs.example.com/apply/123", extractURL(body))
	assert.Equal(t, "", extractURL("mailto:jobs@example.com only"))
}

func TestExtractJobTypeAndSalary(t *testing.T) {
	text := "This is a full-time permanent role paying $120,000 - $140,000 per year plus super."
	assert.Equal(t, "full-time", extractJobType(text))
	assert.Equal(t, "$120,000 - $140,000 per year", extractSalary(text))
	assert.Equal(t, "contract", extractJobType("A 6 month fixed-term contract role"))
	assert.Equal(t, "", extractJobType("nothing here"))
}

func TestRecruiterName(t *testing.T) {
	assert.Equal(t, "Jane Smith", extractRecruiter(&domain.NormalizedMessage{FromName: "Jane Smith"}))
	assert.Equal(t, "Tom Baker", extractRecruiter(&domain.NormalizedMessage{
		FromName: "Acme Careers",
		TextBody: "Hi,\nWe'd love to chat.\n\nKind regards,\nTom Baker\nAcme",
	}))
	assert.Equal(t, "", extractRecruiter(&domain.NormalizedMessage{FromName: "Jane Smith", IsOutbound: true}))
}

func TestGazetteerIsSwappable(t *testing.T) {
	msg := &domain.NormalizedMessage{TextBody: "The team sits in Toronto and Sydney."}

	def := Default()
	assert.Equal(t, "Sydney", domain.Deref(def.Extract(msg).Location))

	cfg := Overlay{Gazetteer: []string{"Toronto"}}.Apply(DefaultConfig())
	custom, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Toronto", domain.Deref(custom.Extract(msg).Location))

	none := Default().Extract(&domain.NormalizedMessage{TextBody: "Office in Berlin."})
	assert.Nil(t, none.Location)
}

func TestNeedsLLMFallback(t *testing.T) {
	assert.True(t, NeedsLLMFallback(domain.ExtractedData{Company: domain.Str("Acme")}))
	assert.True(t, NeedsLLMFallback(domain.ExtractedData{JobTitle: domain.Str("Engineer")}))
	assert.False(t, NeedsLLMFallback(domain.ExtractedData{Company: domain.Str("Acme"), JobTitle: domain.Str("Engineer")}))
}

func TestOverlayReplacesSourceByName(t *testing.T) {
	cfg := Overlay{Sources: []SourceSpec{
		{Name: "Seek", Domains: []string{"seek.example"}},
		{Name: "Hatch", Domains: []string{"hatch.team"}},
	}}.Apply(DefaultConfig())

	e, err := NewEngine(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Hatch", domain.Deref(e.Extract(&domain.NormalizedMessage{From: "hi@mail.hatch.team"}).Source))
	assert.Equal(t, "Seek", domain.Deref(e.Extract(&domain.NormalizedMessage{From: "x@seek.example"}).Source))
	assert.Len(t, cfg.Sources, len(DefaultSources())+1)
}
