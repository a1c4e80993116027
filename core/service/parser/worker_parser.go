// Package parser turns raw RFC 5322 messages into normalized records.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"

	"jobtrack_worker/core/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// ErrMalformed is returned for input that is not a parseable email.
var ErrMalformed = errors.New("malformed message")

const maxPartDepth = 8

// Parser normalizes raw messages. Safe for concurrent use.
type Parser struct {
	monitored map[string]struct{}
	words     *mime.WordDecoder
}

// New creates a parser that flags messages from any of monitored as outbound.
func New(monitored []string) *Parser {
	set := make(map[string]struct{}, len(monitored))
	for _, a := range monitored {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			set[a] = struct{}{}
		}
	}
	return &Parser{monitored: set, words: &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}}
}

// IsMonitored reports whether addr case-insensitively matches a monitored address.
func (p *Parser) IsMonitored(addr string) bool {
	_, ok := p.monitored[strings.ToLower(strings.TrimSpace(addr))]
	return ok
}

// Parse builds a NormalizedMessage from raw bytes. MessageID may be empty when the
// header is missing; callers fall back to the store's identifier.
func (p *Parser) Parse(raw []byte) (*domain.NormalizedMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := &domain.NormalizedMessage{
		MessageID: domain.NormalizeMessageID(msg.Header.Get("Message-Id")),
		Subject:   p.decodeHeader(msg.Header.Get("Subject")),
		To:        p.decodeHeader(msg.Header.Get("To")),
	}

	if from := msg.Header.Get("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			out.From = strings.ToLower(addr.Address)
			out.FromName = addr.Name
		} else {
			out.From = strings.ToLower(strings.Trim(strings.TrimSpace(from), "<>"))
		}
	}
	if date, err := msg.Header.Date(); err == nil {
		out.Date = date.UTC()
	}

	var text, html string
	if err := p.walk(msg.Header, msg.Body, 0, &text, &html); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if html != "" {
		out.HTMLBody = &html
	}
	if strings.TrimSpace(text) == "" && html != "" {
		text = HTMLToText(html)
	}
	out.TextBody = strings.TrimSpace(text)
	out.IsOutbound = p.IsMonitored(out.From)
	return out, nil
}

type partHeader interface {
	Get(key string) string
}

// walk collects the first text/plain and text/html leaves of a MIME tree.
func (p *Parser) walk(h partHeader, body io.Reader, depth int, text, html *string) error {
	if depth > maxPartDepth {
		return nil
	}
	ctype := h.Get("Content-Type")
	if ctype == "" {
		ctype = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(ctype)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return errors.New("multipart without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// Truncated trailing parts are common; keep what was read.
				if *text != "" || *html != "" {
					return nil
				}
				return err
			}
			if err := p.walk(part.Header, part, depth+1, text, html); err != nil {
				return err
			}
		}
	}

	if strings.EqualFold(disposition(h), "attachment") {
		return nil
	}

	switch mediaType {
	case "text/plain":
		if *text != "" {
			return nil
		}
		decoded, err := decodeBody(h.Get("Content-Transfer-Encoding"), body)
		if err != nil {
			return err
		}
		*text = toUTF8(decoded, params["charset"])
	case "text/html":
		if *html != "" {
			return nil
		}
		decoded, err := decodeBody(h.Get("Content-Transfer-Encoding"), body)
		if err != nil {
			return err
		}
		*html = toUTF8(decoded, params["charset"])
	}
	return nil
}

func disposition(h partHeader) string {
	d, _, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return d
}

func decodeBody(encoding string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		clean := strings.Map(func(c rune) rune {
			if c == '\r' || c == '\n' || c == ' ' || c == '\t' {
				return -1
			}
			return c
		}, string(data))
		out, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			// Some senders drop padding.
			return base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
		}
		return out, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}

// toUTF8 decodes b from its declared charset. Unknown or missing labels leave
// the bytes as they are.
func toUTF8(b []byte, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return string(b)
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(b))
	if err != nil {
		return string(b)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func (p *Parser) decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	dec, err := p.words.DecodeHeader(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(dec)
}

var (
	blankLines = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	spaceRun   = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// HTMLToText renders an HTML body as plain text. Link targets are kept in
// parentheses so URL extraction still sees them.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head, title").Remove()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		label := strings.TrimSpace(s.Text())
		if href == "" || strings.HasPrefix(href, "#") || label == href {
			return
		}
		s.SetText(label + " (" + href + ")")
	})
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, table, section").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = spaceRun.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
