package mailstore

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

// =============================================================================
// Notmuch
// =============================================================================

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string // first arg -> stdout
	err     error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	key := args[0]
	if len(args) > 1 && strings.HasPrefix(args[1], "--output=") {
		key += " " + args[1]
	}
	return []byte(f.outputs[key]), nil
}

func TestNotmuchQuery(t *testing.T) {
	tests := []struct {
		name string
		q    out.TagQuery
		want string
	}{
		{"all", out.TagQuery{}, "*"},
		{"unprocessed", out.TagQuery{Exclude: []string{domain.TagProcessed}}, `not tag:"job-processed"`},
		{"include and prefix", out.TagQuery{Include: []string{"inbox"}, Prefix: "label-was/"}, `tag:"inbox" and tag:/^label-was\//`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NotmuchQuery(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NotmuchQuery(out.TagQuery{Include: []string{""}})
	assert.True(t, errors.Is(err, ErrBadQuery))
}

func TestNotmuchCommands(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"search --output=messages": `["a@x","b@x"]`,
		"search --output=tags":     `["inbox","job/interview"]`,
		"show":                     "Subject: hi\r\n\r\nbody",
	}}
	n := NewNotmuch("/usr/bin/notmuch", r, zerolog.Nop())
	ctx := context.Background()

	refs, err := n.Query(ctx, out.TagQuery{Exclude: []string{"job-processed"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "a@x", refs[0].ID)
	assert.Contains(t, r.calls[0], "--limit=10")

	require.NoError(t, n.MutateTags(ctx, "a@x", []string{"job-processed", "job/interview"}, []string{"label-was/other"}))
	assert.Equal(t, []string{"/usr/bin/notmuch", "tag", "+job-processed", "+job/interview", "-label-was/other", "--", `id:"a@x"`}, r.calls[1])

	tags, err := n.Tags(ctx, "a@x")
	require.NoError(t, err)
	assert.Equal(t, []string{"inbox", "job/interview"}, tags)

	raw, err := n.ReadRaw(ctx, out.MessageRef{ID: "a@x"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: hi")

	calls := len(r.calls)
	require.NoError(t, n.MutateTags(ctx, "a@x", nil, nil))
	assert.Len(t, r.calls, calls, "no-op mutation should not shell out")
}

func TestNotmuchSurfacesRunnerError(t *testing.T) {
	n := NewNotmuch("", &fakeRunner{err: errors.New("exit status 1")}, zerolog.Nop())
	_, err := n.Query(context.Background(), out.TagQuery{})
	assert.Error(t, err)
}

// =============================================================================
// Maildir
// =============================================================================

func writeMail(t *testing.T, dir, name, id string) {
	t.Helper()
	body := "Message-ID: <" + id + ">\r\nSubject: test\r\nFrom: a@b.example\r\n\r\nhello\r\n"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestMaildirStore(t *testing.T) {
	root := t.TempDir()
	writeMail(t, filepath.Join(root, "cur"), "1.eml", "one@x")
	writeMail(t, filepath.Join(root, "new"), "2.eml", "two@x")
	require.NoError(t, os.WriteFile(filepath.Join(root, "new", "3.eml"), []byte("Subject: no id\r\n\r\nx"), 0o644))

	m := NewMaildir(root)
	ctx := context.Background()

	refs, err := m.Query(ctx, out.TagQuery{Exclude: []string{domain.TagProcessed}})
	require.NoError(t, err)
	require.Len(t, refs, 3)

	require.NoError(t, m.MutateTags(ctx, "one@x", []string{domain.TagProcessed, "job/offer", "label-was/other"}, nil))
	refs, err = m.Query(ctx, out.TagQuery{Exclude: []string{domain.TagProcessed}})
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	refs, err = m.Query(ctx, out.TagQuery{Prefix: domain.WasPrefix})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "one@x", refs[0].ID)

	raw, err := m.ReadRaw(ctx, out.MessageRef{ID: "one@x"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Message-ID: <one@x>")

	require.NoError(t, m.MutateTags(ctx, "one@x", nil, []string{"label-was/other"}))
	tags, err := m.Tags(ctx, "one@x")
	require.NoError(t, err)
	assert.Equal(t, []string{"job-processed", "job/offer"}, tags)

	_, err = m.ReadRaw(ctx, out.MessageRef{ID: "missing@x"})
	assert.True(t, errors.Is(err, ErrMessageNotFound))
}

// =============================================================================
// Gmail
// =============================================================================

type fakeGmail struct {
	mu       sync.Mutex
	labels   []*gmail.Label
	labelIDs map[string][]string // message -> label ids
	queries  []string
	modifies []gmail.ModifyMessageRequest
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")

	switch {
	case path == "labels" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(gmail.ListLabelsResponse{Labels: f.labels})
	case path == "labels" && r.Method == http.MethodPost:
		var l gmail.Label
		json.NewDecoder(r.Body).Decode(&l)
		l.Id = "L" + l.Name
		f.labels = append(f.labels, &l)
		json.NewEncoder(w).Encode(l)
	case path == "messages" && r.Method == http.MethodGet:
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "g1"}, {Id: "g2"}}})
	case strings.HasSuffix(path, "/modify"):
		var req gmail.ModifyMessageRequest
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		f.modifies = append(f.modifies, req)
		json.NewEncoder(w).Encode(gmail.Message{Id: "g1"})
	case path == "messages/g1" && r.URL.Query().Get("format") == "raw":
		raw := base64.URLEncoding.EncodeToString([]byte("Message-ID: <g1@x>\r\nSubject: hi\r\n\r\nbody"))
		json.NewEncoder(w).Encode(gmail.Message{Id: "g1", Raw: raw})
	case path == "messages/g1":
		json.NewEncoder(w).Encode(gmail.Message{Id: "g1", LabelIds: f.labelIDs["g1"]})
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newTestGmail(t *testing.T, fake *fakeGmail) *Gmail {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	g, err := NewGmail(context.Background(), GmailConfig{Endpoint: srv.URL + "/", HTTPClient: srv.Client()}, zerolog.Nop())
	require.NoError(t, err)
	return g
}

func TestGmailStore(t *testing.T) {
	fake := &fakeGmail{
		labels: []*gmail.Label{
			{Id: "Lproc", Name: "job-processed"},
			{Id: "Lwas", Name: "label-was/other"},
			{Id: "INBOX", Name: "INBOX"},
		},
		labelIDs: map[string][]string{"g1": {"INBOX", "Lwas"}},
	}
	g := newTestGmail(t, fake)
	ctx := context.Background()

	refs, err := g.Query(ctx, out.TagQuery{Exclude: []string{"job-processed"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "-label:job-processed", fake.queries[0])

	_, err = g.Query(ctx, out.TagQuery{Prefix: "label-was/"})
	require.NoError(t, err)
	assert.Equal(t, "{label:label-was-other}", fake.queries[1])

	tags, err := g.Tags(ctx, "g1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"INBOX", "label-was/other"}, tags)

	require.NoError(t, g.MutateTags(ctx, "g1", []string{"job-processed", "job/interview"}, []string{"label-was/other", "never-created"}))
	require.Len(t, fake.modifies, 1)
	assert.Equal(t, []string{"Lproc", "Ljob/interview"}, fake.modifies[0].AddLabelIds)
	assert.Equal(t, []string{"Lwas"}, fake.modifies[0].RemoveLabelIds)

	raw, err := g.ReadRaw(ctx, out.MessageRef{ID: "g1"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: hi")

	_, err = g.ReadRaw(ctx, out.MessageRef{ID: "nope"})
	assert.True(t, errors.Is(err, ErrMessageNotFound))
	assert.Equal(t, "closed", g.State())
}
