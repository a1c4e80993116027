// Package filestore keeps the correction pools in a local JSON file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/out"

	"github.com/goccy/go-json"
)

// CorrectionFile stores every pool in one JSON document, newest entry first.
// Writes go through a temp file and rename so a crash never leaves a torn file.
type CorrectionFile struct {
	path string
	mu   sync.Mutex
}

var _ out.CorrectionRepository = (*CorrectionFile)(nil)

type correctionDoc struct {
	Pools map[domain.CorrectionPool][]domain.Correction `json:"pools"`
}

func NewCorrectionFile(path string) *CorrectionFile {
	return &CorrectionFile{path: path}
}

func (f *CorrectionFile) Append(_ context.Context, pool domain.CorrectionPool, c domain.Correction, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("correction pool limit must be positive, got %d", limit)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	list := append([]domain.Correction{c}, doc.Pools[pool]...)
	if len(list) > limit {
		list = list[:limit]
	}
	doc.Pools[pool] = list
	return f.save(doc)
}

func (f *CorrectionFile) Recent(_ context.Context, pool domain.CorrectionPool, n int) ([]domain.Correction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	list := doc.Pools[pool]
	if n < len(list) {
		list = list[:n]
	}
	return append([]domain.Correction(nil), list...), nil
}

func (f *CorrectionFile) load() (*correctionDoc, error) {
	doc := &correctionDoc{}
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read corrections: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decode corrections %s: %w", f.path, err)
		}
	}
	if doc.Pools == nil {
		doc.Pools = make(map[domain.CorrectionPool][]domain.Correction)
	}
	return doc, nil
}

func (f *CorrectionFile) save(doc *correctionDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corrections: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corrections dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".corrections-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write corrections: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close corrections: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace corrections: %w", err)
	}
	return nil
}
