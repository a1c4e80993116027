// Package mailstore implements out.MailStore over notmuch, a Maildir directory and Gmail.
package mailstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var (
	ErrMessageNotFound = errors.New("message not found in mail store")
	ErrBadQuery        = errors.New("invalid tag query")
)

// Runner executes an external command and returns stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// =============================================================================
// Notmuch
// =============================================================================

// Notmuch talks to a notmuch index through its CLI. Message ids are RFC Message-IDs.
type Notmuch struct {
	bin    string
	runner Runner
	log    zerolog.Logger
}

var _ out.MailStore = (*Notmuch)(nil)

func NewNotmuch(bin string, runner Runner, log zerolog.Logger) *Notmuch {
	if bin == "" {
		bin = "notmuch"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Notmuch{bin: bin, runner: runner, log: log.With().Str("component", "notmuch").Logger()}
}

func (n *Notmuch) Query(ctx context.Context, q out.TagQuery) ([]out.MessageRef, error) {
	expr, err := NotmuchQuery(q)
	if err != nil {
		return nil, err
	}
	args := []string{"search", "--output=messages", "--format=json"}
	if q.Limit > 0 {
		args = append(args, "--limit="+strconv.Itoa(q.Limit))
	}
	args = append(args, expr)

	raw, err := n.runner.Run(ctx, n.bin, args...)
	if err != nil {
		return nil, fmt.Errorf("notmuch search: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode notmuch search: %w", err)
	}

	refs := make([]out.MessageRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, out.MessageRef{ID: id})
	}
	n.log.Debug().Str("query", expr).Int("matches", len(refs)).Msg("search")
	return refs, nil
}

func (n *Notmuch) MutateTags(ctx context.Context, messageID string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	args := []string{"tag"}
	for _, t := range add {
		args = append(args, "+"+t)
	}
	for _, t := range remove {
		args = append(args, "-"+t)
	}
	args = append(args, "--", idTerm(messageID))

	if _, err := n.runner.Run(ctx, n.bin, args...); err != nil {
		return fmt.Errorf("notmuch tag: %w", err)
	}
	return nil
}

// ReadRaw reads ref.Path when set, otherwise asks notmuch for the raw message.
func (n *Notmuch) ReadRaw(ctx context.Context, ref out.MessageRef) ([]byte, error) {
	if ref.Path != "" {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ref.Path, err)
		}
		return data, nil
	}
	raw, err := n.runner.Run(ctx, n.bin, "show", "--format=raw", idTerm(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("notmuch show: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, ref.ID)
	}
	return raw, nil
}

func (n *Notmuch) Tags(ctx context.Context, messageID string) ([]string, error) {
	raw, err := n.runner.Run(ctx, n.bin, "search", "--output=tags", "--format=json", idTerm(messageID))
	if err != nil {
		return nil, fmt.Errorf("notmuch search tags: %w", err)
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, fmt.Errorf("decode notmuch tags: %w", err)
	}
	return tags, nil
}

// NotmuchQuery renders a TagQuery in notmuch search syntax.
func NotmuchQuery(q out.TagQuery) (string, error) {
	var terms []string
	for _, t := range q.Include {
		if t == "" {
			return "", fmt.Errorf("%w: empty include tag", ErrBadQuery)
		}
		terms = append(terms, "tag:"+quote(t))
	}
	for _, t := range q.Exclude {
		if t == "" {
			return "", fmt.Errorf("%w: empty exclude tag", ErrBadQuery)
		}
		terms = append(terms, "not tag:"+quote(t))
	}
	if q.Prefix != "" {
		terms = append(terms, "tag:/^"+regexpEscape(q.Prefix)+"/")
	}
	if len(terms) == 0 {
		return "*", nil
	}
	return strings.Join(terms, " and "), nil
}

func idTerm(id string) string {
	return "id:" + quote(id)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func regexpEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$/`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
