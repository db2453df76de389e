package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"opdscore/internal/core/domain/models"
	"opdscore/internal/core/domain/ports"
)

// Ensure FileStatusStore implements StatusStore
var _ ports.StatusStore = (*FileStatusStore)(nil)

// FileStatusStore implements ports.StatusStore using a local JSON file.
type FileStatusStore struct {
	filepath string
	mu       sync.Mutex
}

type stateData struct {
	Statuses []models.StatusRecord `json:"statuses"`
}

// NewFileStatusStore prepares a store at path. The file itself is created on
// the first Save.
func NewFileStatusStore(path string) (*FileStatusStore, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStatusStore{filepath: path}, nil
}

func (s *FileStatusStore) Load(ctx context.Context) ([]models.BookStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filepath)
	if os.IsNotExist(err) {
		// File doesn't exist, start fresh
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var state stateData
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		if err == io.EOF {
			return nil, nil // Empty file is fine
		}
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.filepath, err)
	}

	statuses := make([]models.BookStatus, 0, len(state.Statuses))
	for _, r := range state.Statuses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		status, err := models.DecodeStatus(r)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Save replaces the file contents with statuses.
func (s *FileStatusStore) Save(ctx context.Context, statuses []models.BookStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := stateData{Statuses: make([]models.StatusRecord, 0, len(statuses))}
	for _, st := range statuses {
		state.Statuses = append(state.Statuses, models.EncodeStatus(st))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Atomic write: write to temp file then rename
	tmpFile := s.filepath + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, s.filepath)
}

func (s *FileStatusStore) Close() error {
	return nil
}
