package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charleshuang3/cf-ping/internal/models"
)

// ErrConflict is returned by Put when the stored version differs from the
// expected one, meaning another writer got there first.
var ErrConflict = errors.New("record version conflict")

// Store is the durable map from entity name to its status record.
type Store interface {
	// Get returns the record for name and whether it exists.
	Get(ctx context.Context, name string) (models.EntityStatus, bool, error)
	// Put writes rec if the stored version equals expectedVersion. 0 means
	// the record is absent or was written without a version. The written
	// version is expectedVersion+1.
	Put(ctx context.Context, rec models.EntityStatus, expectedVersion int64) error
}

// FileStore keeps all records in one JSON document on disk.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]models.EntityStatus
}

// NewFileStore creates a storage instance and loads existing records if present.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the stored record.
func (s *FileStore) Get(ctx context.Context, name string) (models.EntityStatus, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.EntityStatus{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[name]
	return rec, ok, nil
}

// Put stores rec and persists the whole document. On a write failure the
// in-memory map is rolled back so memory never runs ahead of disk.
func (s *FileStore) Put(ctx context.Context, rec models.EntityStatus, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Name == "" {
		return errors.New("record name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.Name]
	if (existed && prev.Version != expectedVersion) || (!existed && expectedVersion != 0) {
		return fmt.Errorf("put %s: %w", rec.Name, ErrConflict)
	}

	rec.Version = expectedVersion + 1
	s.records[rec.Name] = rec
	if err := s.persistLocked(); err != nil {
		if existed {
			s.records[rec.Name] = prev
		} else {
			delete(s.records, rec.Name)
		}
		return err
	}
	return nil
}

func (s *FileStore) load() error {
	s.records = make(map[string]models.EntityStatus)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read records: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []models.EntityStatus
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse records: %w", err)
	}
	for _, entry := range entries {
		s.records[entry.Name] = entry
	}
	return nil
}

func (s *FileStore) persistLocked() error {
	entries := make([]models.EntityStatus, 0, len(s.records))
	for _, rec := range s.records {
		entries = append(entries, rec)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	bytes, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp records: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace records file: %w", err)
	}
	return nil
}
