package mailstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
)

const tagsFile = ".tags.json"

// Maildir is a directory of raw message files with tags kept in a JSON sidecar.
// Files are found recursively, so cur/ and new/ Maildir layouts work unchanged.
type Maildir struct {
	root string

	mu    sync.Mutex
	index map[string]string // message id -> path
}

var _ out.MailStore = (*Maildir)(nil)

func NewMaildir(root string) *Maildir {
	return &Maildir{root: root}
}

func (m *Maildir) Query(ctx context.Context, q out.TagQuery) ([]out.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reindex(ctx); err != nil {
		return nil, err
	}
	tags, err := m.loadTags()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(m.index))
	for id := range m.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var refs []out.MessageRef
	for _, id := range ids {
		if !q.Matches(tags[id]) {
			continue
		}
		refs = append(refs, out.MessageRef{ID: id, Path: m.index[id]})
		if q.Limit > 0 && len(refs) >= q.Limit {
			break
		}
	}
	return refs, nil
}

func (m *Maildir) MutateTags(_ context.Context, messageID string, add, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags, err := m.loadTags()
	if err != nil {
		return err
	}
	set := make(map[string]struct{})
	for _, t := range tags[messageID] {
		set[t] = struct{}{}
	}
	for _, t := range remove {
		delete(set, t)
	}
	for _, t := range add {
		set[t] = struct{}{}
	}
	next := make([]string, 0, len(set))
	for t := range set {
		next = append(next, t)
	}
	sort.Strings(next)
	tags[messageID] = next
	return m.saveTags(tags)
}

func (m *Maildir) ReadRaw(ctx context.Context, ref out.MessageRef) ([]byte, error) {
	path := ref.Path
	if path == "" {
		m.mu.Lock()
		if m.index == nil {
			if err := m.reindex(ctx); err != nil {
				m.mu.Unlock()
				return nil, err
			}
		}
		path = m.index[ref.ID]
		m.mu.Unlock()
	}
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, ref.ID)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, ref.ID)
	}
	return data, err
}

func (m *Maildir) Tags(_ context.Context, messageID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags, err := m.loadTags()
	if err != nil {
		return nil, err
	}
	return tags[messageID], nil
}

// reindex maps Message-IDs to files. Files without one are keyed by file name.
func (m *Maildir) reindex(ctx context.Context) error {
	index := make(map[string]string)
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		index[messageIDOf(path)] = path
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan maildir %s: %w", m.root, err)
	}
	m.index = index
	return nil
}

func messageIDOf(path string) string {
	base := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return base
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return base
	}
	if id := domain.NormalizeMessageID(msg.Header.Get("Message-Id")); id != "" {
		return id
	}
	return base
}

func (m *Maildir) loadTags() (map[string][]string, error) {
	tags := make(map[string][]string)
	data, err := os.ReadFile(filepath.Join(m.root, tagsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return tags, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	if len(data) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func (m *Maildir) saveTags(tags map[string][]string) error {
	data, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	tmp := filepath.Join(m.root, tagsFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return os.Rename(tmp, filepath.Join(m.root, tagsFile))
}
