package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
)

// FileJournal appends line-delimited JSON records to a local file. It is the
// independent secondary log for disaster recovery: writes are synced so a
// crash loses at most the line being written.
type FileJournal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileJournal opens (or creates) the journal file in append mode.
func NewFileJournal(path string) (*FileJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &FileJournal{file: file, enc: json.NewEncoder(file)}, nil
}

func (j *FileJournal) AppendSignal(_ context.Context, entry *models.JournalEntry) error {
	return j.append(entry)
}

func (j *FileJournal) AppendReport(_ context.Context, report *models.IntegrityReport) error {
	return j.append(struct {
		Event string    `json:"event"`
		At    time.Time `json:"timestamp"`
		*models.IntegrityReport
	}{Event: "integrity_report", At: time.Now().UTC(), IntegrityReport: report})
}

func (j *FileJournal) append(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(v); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal sync: %w", err)
	}
	return nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

var _ domrepo.Journal = (*FileJournal)(nil)
