// Package store persists uploaded images and completed analysis records.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pixelprobe/pixelprobe/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a record lookup misses.
var ErrNotFound = errors.New("store: record not found")

// Store wraps the database handle and the upload directory.
type Store struct {
	db        *gorm.DB
	uploadDir string
}

// New builds a Store. The upload directory is created if missing.
func New(db *gorm.DB, uploadDir string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create upload dir %s: %w", uploadDir, err)
	}
	return &Store{db: db, uploadDir: uploadDir}, nil
}

// UploadDir reports where uploads are written.
func (s *Store) UploadDir() string {
	return s.uploadDir
}

// SaveUpload writes an uploaded file into the upload directory. When the
// name is taken, a _N counter is appended before the extension so earlier
// uploads are never overwritten. Returns the path actually written.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	// Strip any client-supplied directory components.
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = "upload"
	}

	path := filepath.Join(s.uploadDir, filename)
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(s.uploadDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("store: write %s: %w", path, err)
	}
	return path, nil
}

// CreateRecord persists a completed analysis and assigns it an ID.
func (s *Store) CreateRecord(rec *models.InferenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("store: create record: %w", err)
	}
	return nil
}

// FindRecord returns the record with the given ID, or ErrNotFound.
func (s *Store) FindRecord(id string) (*models.InferenceRecord, error) {
	var rec models.InferenceRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find record %s: %w", id, err)
	}
	return &rec, nil
}

// RecentRecords returns the newest records, newest first, capped at limit.
func (s *Store) RecentRecords(limit int) ([]models.InferenceRecord, error) {
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.InferenceRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	return recs, nil
}

// AllRecords returns every stored record, oldest first. Used to rehydrate
// the leaderboard after a restart.
func (s *Store) AllRecords() ([]models.InferenceRecord, error) {
	var recs []models.InferenceRecord
	if err := s.db.Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	return recs, nil
}

// PruneRecords deletes records older than the retention window and reports
// how many were removed. A non-positive window removes nothing.
func (s *Store) PruneRecords(olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.InferenceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: prune records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
