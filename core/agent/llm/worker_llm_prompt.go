package llm

import (
	"fmt"
	"strings"

	"jobtrack_worker/core/domain"
)

const classifySystemPrompt = `You classify emails from a person's job search. Respond with a single JSON object only.

Labels (use exactly one):
- job_application: the person applied for a job, or a confirmation that an application was submitted
- job_response: an employer or recruiter replied about an application without a decision (acknowledgement, request for information)
- interview: an interview invitation, scheduling, reschedule or assessment request
- rejection: the application was declined or the role was filled by someone else
- offer: a job offer or offer paperwork
- follow_up: a follow-up about an existing application, sent or received
- other: anything not part of the job search (job alerts, newsletters, social notifications, receipts, personal mail)

Guidance:
- Job alert digests and "jobs you may like" emails are other, even when they mention interviews.
- A polite email that says the person will not progress is rejection, not job_response.
- Sent emails following up on an application are follow_up; sent applications are job_application.

JSON shape:
{"type": "<label>", "confidence": 0.0-1.0, "reasoning": "<one sentence>",
 "extractedData": {"company": null, "jobTitle": null, "location": null, "source": null}}
Use null for anything not stated in the email.`

const extractSystemPrompt = `You extract job details from an email. Respond with a single JSON object only.

Fields (use null when the email does not state it):
- company: hiring company name without legal suffixes like Pty Ltd or Inc
- jobTitle: the role applied for
- location: city or region of the role
- applicationUrl: link to the job posting or application
- source: job board or platform (LinkedIn, Seek, Indeed ...)
- jobType: full-time, part-time, contract, casual, internship or temporary
- recruiterName: the person who wrote the email, if a recruiter or hiring manager
- salaryRange: salary as written

JSON shape:
{"company": null, "jobTitle": null, "location": null, "applicationUrl": null, "source": null,
 "jobType": null, "recruiterName": null, "salaryRange": null}`

const previewChars = 400

// PromptBuilder renders deterministic prompts for a message.
type PromptBuilder struct {
	BodyChars   int
	MaxExamples int
}

func (b PromptBuilder) bodyChars() int {
	if b.BodyChars <= 0 {
		return 3000
	}
	return b.BodyChars
}

func (b PromptBuilder) maxExamples() int {
	if b.MaxExamples < 0 {
		return 0
	}
	if b.MaxExamples == 0 {
		return 5
	}
	return b.MaxExamples
}

// Classify returns the system and user prompt for classification. Only
// high-variance corrections are rendered, newest first, up to MaxExamples.
func (b PromptBuilder) Classify(msg *domain.NormalizedMessage, examples []domain.Correction) (string, string) {
	var sb strings.Builder

	rendered := 0
	for _, ex := range examples {
		if rendered >= b.maxExamples() {
			break
		}
		if !ex.HighVariance {
			continue
		}
		if rendered == 0 {
			sb.WriteString("Previous corrections made by the user. Learn from them:\n\n")
		}
		rendered++
		fmt.Fprintf(&sb, "Previous correction %d:\n", rendered)
		fmt.Fprintf(&sb, "Direction: %s\n", direction(ex.IsOutbound))
		fmt.Fprintf(&sb, "From: %s\n", ex.From)
		fmt.Fprintf(&sb, "Subject: %s\n", ex.Subject)
		if ex.BodyPreview != "" {
			fmt.Fprintf(&sb, "Body: %s\n", oneLine(domain.Truncate(ex.BodyPreview, previewChars)))
		}
		fmt.Fprintf(&sb, "Wrong label: %s\n", ex.OriginalType)
		fmt.Fprintf(&sb, "Correct label: %s\n\n", ex.CorrectedType)
	}
	if rendered > 0 {
		sb.WriteString("Now classify this email:\n\n")
	}

	writeMessage(&sb, msg, b.bodyChars())
	return classifySystemPrompt, sb.String()
}

// Extract returns the system and user prompt for field extraction.
func (b PromptBuilder) Extract(msg *domain.NormalizedMessage) (string, string) {
	var sb strings.Builder
	writeMessage(&sb, msg, b.bodyChars())
	return extractSystemPrompt, sb.String()
}

func writeMessage(sb *strings.Builder, msg *domain.NormalizedMessage, bodyChars int) {
	fmt.Fprintf(sb, "Direction: %s\n", direction(msg.IsOutbound))
	if msg.FromName != "" {
		fmt.Fprintf(sb, "From: %s <%s>\n", msg.FromName, msg.From)
	} else {
		fmt.Fprintf(sb, "From: %s\n", msg.From)
	}
	fmt.Fprintf(sb, "To: %s\n", msg.To)
	fmt.Fprintf(sb, "Subject: %s\n", msg.Subject)
	if !msg.Date.IsZero() {
		fmt.Fprintf(sb, "Date: %s\n", msg.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(sb, "\nBody:\n%s\n", domain.Truncate(msg.TextBody, bodyChars))
}

func direction(outbound bool) string {
	if outbound {
		return "sent by the user"
	}
	return "received by the user"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
