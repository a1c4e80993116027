package classification

import (
	"jobtrack_worker/core/domain"
)

// =============================================================================
// Built-in rule table
// =============================================================================

// Rejection vocabulary shared by the interview guard and the rejection rules.
const rejectionWords = `unfortunately|regret to inform|not (be )?(moving|progressing) forward|will not be (moving|progressing)|decided to (move|proceed) forward with other|pursue other candidates|other candidates whose|unsuccessful|no longer under consideration`

// DefaultRules is the built-in rule table. Order within a label matters: the
// first matching rule wins.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		// === other ===
		{
			ID:      "other-job-alert",
			Label:   domain.TypeOther,
			Field:   FieldSubject,
			Pattern: `job alert|jobs? (you may be interested in|recommended for you|for you)|new jobs? (matching|that match)|jobs? similar to|is hiring|are hiring`,
		},
		{
			ID:      "other-social-network",
			Label:   domain.TypeOther,
			Field:   FieldSubject,
			Pattern: `wants to connect|invitation to connect|viewed your profile|endorsed you|appeared in \d+ searches|new followers?|your weekly|you have \d+ new`,
		},
		{
			ID:      "other-account-security",
			Label:   domain.TypeOther,
			Field:   FieldSubject,
			Pattern: `verify your email|confirm your email|password reset|reset your password|security alert|sign-in attempt|one-time (pass)?code|verification code`,
		},
		{
			ID:      "other-marketing",
			Label:   domain.TypeOther,
			Field:   FieldSubject,
			Pattern: `\d+% off|sale ends|newsletter|webinar|free trial|limited time|your receipt|order (confirmation|#)`,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: `your application|interview`, Negate: true},
			},
		},
		{
			ID:      "other-bulk-sender",
			Label:   domain.TypeOther,
			Field:   FieldFrom,
			Pattern: `^(newsletters?|news|marketing|promo(tions)?|offers|deals)@`,
		},

		// === interview ===
		{
			ID:      "interview-subject",
			Label:   domain.TypeInterview,
			Field:   FieldSubject,
			Pattern: `\binterview`,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: rejectionWords, Negate: true},
			},
		},
		{
			ID:      "interview-scheduling",
			Label:   domain.TypeInterview,
			Field:   FieldSubject,
			Pattern: `phone screen|technical (assessment|screen|test)|coding (challenge|assessment)|(schedule|book) (a )?(time|call|chat)|invitation: .+@`,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: rejectionWords, Negate: true},
			},
		},
		{
			ID:        "interview-invite-body",
			Label:     domain.TypeInterview,
			Field:     FieldTextBody,
			Pattern:   `(invite|invitation for) you to (an? )?(interview|phone call|video call|chat)|would like to (schedule|arrange|set up) (an? )?(interview|call|time to chat)|next step (is|will be) (an? )?(interview|call)`,
			Direction: DirectionInbound,
		},

		// === rejection ===
		{
			ID:        "rejection-body",
			Label:     domain.TypeRejection,
			Field:     FieldTextBody,
			Pattern:   rejectionWords,
			Direction: DirectionInbound,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: `appl(y|ication|ied)|candida|position|role|opportunity`},
			},
		},
		{
			ID:        "rejection-subject",
			Label:     domain.TypeRejection,
			Field:     FieldSubject,
			Pattern:   `unsuccessful|regret|update on your application|application outcome`,
			Direction: DirectionInbound,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: `other candidates|not (be )?(moving|progressing)|decided`},
			},
		},

		// === job_response ===
		{
			ID:        "response-received-subject",
			Label:     domain.TypeJobResponse,
			Field:     FieldSubject,
			Pattern:   `thank(s| you) for (your )?(appl|interest)|application (received|submitted|confirmation)|we('ve| have) received your application|your application (to|for|with)`,
			Direction: DirectionInbound,
		},
		{
			ID:        "response-received-body",
			Label:     domain.TypeJobResponse,
			Field:     FieldTextBody,
			Pattern:   `we('ve| have) received your application|your application (for|to) .+ (was|has been) (successfully )?(submitted|received)|thank(s| you) for applying`,
			Direction: DirectionInbound,
		},
		{
			ID:        "response-recruiter-sender",
			Label:     domain.TypeJobResponse,
			Field:     FieldSenderName,
			Pattern:   `\b(talent acquisition|recruit(ing|ment|er)|careers|hiring team|people team)\b`,
			Direction: DirectionInbound,
			Conditions: []Condition{
				{Field: FieldTextBody, Pattern: `appl(y|ication|ied)|position|role`},
			},
		},

		// === follow_up ===
		{
			ID:        "follow-up-outbound",
			Label:     domain.TypeFollowUp,
			Field:     FieldSubject,
			Pattern:   `follow(ing)?[- ]?up|checking in|touching base|status of my application`,
			Direction: DirectionOutbound,
		},
		{
			ID:      "follow-up-subject",
			Label:   domain.TypeFollowUp,
			Field:   FieldSubject,
			Pattern: `^(re: )*(follow(ing)?[- ]?up|just checking in)`,
		},
	}
}

// DefaultRuleSet returns the built-in priority order and rule table.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Priority: append([]domain.EmailType(nil), DefaultPriority...),
		Rules:    DefaultRules(),
	}
}
