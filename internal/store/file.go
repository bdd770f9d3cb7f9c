package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KaramelBytes/sheetlens/internal/utils"
)

// FileStore keeps one JSON document per record under a data directory:
// records/uploads/<id>.json and records/analyses/<id>.json.
type FileStore struct {
	mu          sync.RWMutex
	uploadsDir  string
	analysesDir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store requires a data directory")
	}
	s := &FileStore{
		uploadsDir:  filepath.Join(dir, "records", "uploads"),
		analysesDir: filepath.Join(dir, "records", "analyses"),
	}
	for _, d := range []string{s.uploadsDir, s.analysesDir} {
		if err := utils.EnsureDir(d); err != nil {
			return nil, fmt.Errorf("ensure dir: %w", err)
		}
	}
	return s, nil
}

func (s *FileStore) SaveUpload(_ context.Context, u *Upload) error {
	if !validID(u.ID) {
		return fmt.Errorf("invalid upload id %q", u.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeRecord(filepath.Join(s.uploadsDir, u.ID+".json"), u)
}

func (s *FileStore) GetUpload(_ context.Context, owner, id string) (*Upload, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var u Upload
	if err := readRecord(filepath.Join(s.uploadsDir, id+".json"), &u); err != nil {
		return nil, err
	}
	if u.Owner != owner {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *FileStore) ListUploads(_ context.Context, owner string, limit int) ([]*Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Upload
	err := eachRecord(s.uploadsDir, func(path string) error {
		var u Upload
		if err := readRecord(path, &u); err != nil {
			return err
		}
		if u.Owner == owner {
			out = append(out, &u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortUploads(out, limit), nil
}

func (s *FileStore) DeleteUpload(_ context.Context, owner, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.uploadsDir, id+".json")
	var u Upload
	if err := readRecord(path, &u); err != nil {
		return err
	}
	if u.Owner != owner {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	return eachRecord(s.analysesDir, func(p string) error {
		var a Analysis
		if err := readRecord(p, &a); err != nil {
			return err
		}
		if a.UploadID == id {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove analysis: %w", err)
			}
		}
		return nil
	})
}

func (s *FileStore) AppendAnalysis(_ context.Context, a *Analysis) error {
	if !validID(a.ID) {
		return fmt.Errorf("invalid analysis id %q", a.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeRecord(filepath.Join(s.analysesDir, a.ID+".json"), a)
}

func (s *FileStore) ListAnalyses(_ context.Context, owner, uploadID string, limit int) ([]*Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Analysis
	err := eachRecord(s.analysesDir, func(path string) error {
		var a Analysis
		if err := readRecord(path, &a); err != nil {
			return err
		}
		if a.Owner == owner && (uploadID == "" || a.UploadID == uploadID) {
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortAnalyses(out, limit), nil
}

func (s *FileStore) Close() error { return nil }

func writeRecord(path string, v any) error {
	data, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, data)
}

func readRecord(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse record %s: %w", filepath.Base(path), err)
	}
	return nil
}

func eachRecord(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := fn(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
