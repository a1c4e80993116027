package extraction

// SourceSpec describes a job board: how to recognise its mail and the pattern
// cascades tuned to its phrasing. Company and Title patterns must have one
// capturing group; they run against subject + "\n" + body.
type SourceSpec struct {
	Name           string   `yaml:"name"`
	Domains        []string `yaml:"domains"`
	SubjectPattern string   `yaml:"subjectPattern"`
	Company        []string `yaml:"company"`
	Title          []string `yaml:"title"`
}

// DefaultSources is the built-in source table.
func DefaultSources() []SourceSpec {
	return []SourceSpec{
		{
			Name:           "LinkedIn",
			Domains:        []string{"linkedin.com"},
			SubjectPattern: `(?i)\blinkedin\b|your application was sent to`,
			Company: []string{
				`(?i)your application was sent to ([^\n]+)`,
				`(?i)you applied (?:for [^\n]+? )?(?:at|to) ([^\n·•|]+)`,
				`(?im)^[^\n]+\n([^\n·•]+?)\s*[·•]\s*[^\n]+$`,
			},
			Title: []string{
				`(?i)you applied for (?:the )?([^\n]+?) (?:(?:position|role) )?at `,
				`(?i)your application for (?:the )?([^\n]+?) (?:(?:position|role) )?at `,
				`(?i)your application was sent to [^\n]+\n+([^\n]+)`,
			},
		},
		{
			Name:           "Seek",
			Domains:        []string{"seek.com.au", "seek.co.nz", "seekmail.com.au"},
			SubjectPattern: `(?i)\bseek\b`,
			Company: []string{
				`(?i)(?:was|has been) (?:successfully )?(?:submitted|sent) to ([^\n]+?)(?:\.\s|\.$|\n|$)`,
				`(?i)your application with ([^\n.]+)`,
			},
			Title: []string{
				`(?i)your application for (?:the )?([^\n]+?) (?:was|has been) (?:successfully )?(?:submitted|sent)`,
				`(?i)you applied for (?:the )?([^\n]+?) (?:at|with) `,
			},
		},
		{
			Name:           "Indeed",
			Domains:        []string{"indeed.com", "indeedemail.com", "indeed.com.au"},
			SubjectPattern: `(?i)\bindeed\b`,
			Company: []string{
				`(?i)(?:items were sent to|application has been submitted to|sent to) ([^\n]+?)(?:\.\s|\.$|\n|$)`,
				`(?i)indeed application:[^\n]+? (?:at|-) ([^\n]+)`,
			},
			Title: []string{
				`(?i)indeed application:\s*([^\n]+?)(?: at | - |\n|$)`,
				`(?i)you applied (?:for|to) (?:the )?([^\n]+?) (?:(?:position|role|job) )?(?:at|with) `,
			},
		},
		{
			Name:    "Glassdoor",
			Domains: []string{"glassdoor.com", "glassdoor.com.au"},
		},
		{
			Name:    "Workday",
			Domains: []string{"myworkday.com", "myworkdayjobs.com", "workday.com"},
			Company: []string{
				`(?i)thank you for (?:applying|your interest) (?:to|at|with|in) ([^\n,.!]+)`,
			},
		},
		{
			Name:    "Greenhouse",
			Domains: []string{"greenhouse.io", "greenhouse-mail.io"},
			Company: []string{
				`(?i)thank(?:s| you) for (?:applying|your interest) (?:to|at|in) ([^\n,.!]+)`,
			},
			Title: []string{
				`(?i)application (?:for|to) (?:the )?([^\n]+?) (?:(?:position|role) )?at `,
			},
		},
		{
			Name:    "Lever",
			Domains: []string{"lever.co"},
		},
		{
			Name:    "SmartRecruiters",
			Domains: []string{"smartrecruiters.com", "smartrecruiters.net"},
		},
		{
			Name:    "Workable",
			Domains: []string{"workable.com", "workablemail.com"},
		},
		{
			Name:           "Jora",
			Domains:        []string{"jora.com"},
			SubjectPattern: `(?i)\bjora\b`,
		},
		{
			Name:    "Ashby",
			Domains: []string{"ashbyhq.com"},
		},
	}
}

// genericCompany is the fallback company cascade.
var genericCompany = []string{
	`(?i)(?:was|has been) (?:successfully )?(?:submitted|sent|received|forwarded) to ([^\n]+?)(?:\.\s|\.$|!|\n|$)`,
	`(?i)thank(?:s| you) for (?:applying|your application|your interest)(?: for [^\n]+?)? (?:to|at|with|in) ([^\n,.!]+)`,
	`(?i)(?:position|role|job|opportunity|vacancy) (?:at|with) ([^\n,.!()]+)`,
	`(?i)(?:application|applying|applied) (?:to|with|at) ([^\n,.!()]+)`,
	`(?i)interview (?:at|with) ([^\n,.!()]+)`,
	`(?i)on behalf of ([^\n,.!]+)`,
	`(?i)\bjoin(?:ing)? (?:the )?([^\n,.!]+?) team\b`,
	`(?im)^the ([^\n,.!]+?) (?:recruiting |recruitment |talent |hiring |people )?team\s*$`,
}

// genericTitle is the fallback job title cascade.
var genericTitle = []string{
	`(?i)your application (?:for|to) (?:the )?(?:position of |role of )?([^\n]+?) (?:was|has been) (?:successfully )?(?:submitted|sent|received)`,
	`(?i)(?:applying|applied|application|interest) (?:for|in) (?:the )?(?:position of |role of )?([^\n]+?) (?:(?:position|role|job|vacancy) )?(?:at|with) `,
	`(?i)(?:position|role|job title|vacancy)\s*:\s*([^\n]+)`,
	`(?i)for the (?:position|role) of ([^\n,.!]+)`,
	`(?i)for the ([^\n,.!]+?) (?:position|role|vacancy|opening)`,
	`(?im)^(?:re:\s*)?(?:job application|application|interview(?: invitation| request)?)\s*(?:for|:|-)\s*(?:the )?([^\n]+?)(?: at | with | - |\n|$)`,
}
