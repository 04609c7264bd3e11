package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultStorageFileName = ".moleswap-history.json"
)

// Storage persists swap records in a JSON file
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*Record
}

// historyFile is the JSON layout on disk
type historyFile struct {
	Records map[string]*Record `json:"records"`
}

// NewStorage opens the history at filePath, defaulting to the home directory
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	s := &Storage{
		filePath: filePath,
		records:  make(map[string]*Record),
	}

	// A missing file is created on first save
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return s, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = file.Records
	if s.records == nil {
		s.records = make(map[string]*Record)
	}
	return nil
}

// saveLocked writes the records atomically. Callers hold the lock.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(historyFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Add stores a new record, assigning its id and timestamp when unset
func (s *Storage) Add(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("record '%s' already exists", r.ID)
	}

	s.records[r.ID] = r
	return s.saveLocked()
}

// Get retrieves a record by id
func (s *Storage) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("record '%s' not found", id)
	}
	return r, nil
}

// Update replaces an existing record
func (s *Storage) Update(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ID]; !exists {
		return fmt.Errorf("record '%s' not found", r.ID)
	}
	s.records[r.ID] = r
	return s.saveLocked()
}

// Delete removes a record
func (s *Storage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("record '%s' not found", id)
	}
	delete(s.records, id)
	return s.saveLocked()
}

// List returns all records, newest first
func (s *Storage) List() []*Record {
	return s.filter(func(*Record) bool { return true })
}

// ListByStatus returns records with the given status, newest first
func (s *Storage) ListByStatus(status Status) []*Record {
	return s.filter(func(r *Record) bool { return r.Status == status })
}

func (s *Storage) filter(keep func(*Record) bool) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// FindByRequestID returns the record whose remote request id matches
func (s *Storage) FindByRequestID(requestID string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.RequestID != "" && r.RequestID == requestID {
			return r, true
		}
	}
	return nil, false
}

// Count returns the number of records
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// FilePath returns the storage file path
func (s *Storage) FilePath() string {
	return s.filePath
}
