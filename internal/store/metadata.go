package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flanksource/code-intel/models"
)

// MetadataStore persists per-file indexing metadata (content hash, sizes,
// timestamps) in a SQLite database so unchanged files can be recognized
// across runs. Cached ASTs are never written here; only bookkeeping is.
type MetadataStore struct {
	db *gorm.DB
}

// NewMetadataStore opens (or creates) the metadata database under dir.
func NewMetadataStore(dir string) (*MetadataStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "index.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure SQLite for better concurrency
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.AutoMigrate(&models.FileMetadata{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata schema: %w", err)
	}

	return &MetadataStore{db: db}, nil
}

// Upsert inserts or refreshes the metadata row for md.FilePath.
func (s *MetadataStore) Upsert(md *models.FileMetadata) error {
	existing := models.FileMetadata{}
	err := s.db.Where("file_path = ?", md.FilePath).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(md).Error; err != nil {
			return fmt.Errorf("failed to create metadata for %s: %w", md.FilePath, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up metadata for %s: %w", md.FilePath, err)
	}

	md.ID = existing.ID
	if err := s.db.Save(md).Error; err != nil {
		return fmt.Errorf("failed to update metadata for %s: %w", md.FilePath, err)
	}
	return nil
}

// Lookup returns the metadata for a file path, or nil if none is recorded.
func (s *MetadataStore) Lookup(path string) (*models.FileMetadata, error) {
	var md models.FileMetadata
	err := s.db.Where("file_path = ?", path).First(&md).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up metadata for %s: %w", path, err)
	}
	return &md, nil
}

// IsUpToDate reports whether the recorded hash for path matches hash.
func (s *MetadataStore) IsUpToDate(path, hash string) (bool, error) {
	md, err := s.Lookup(path)
	if err != nil {
		return false, err
	}
	return md != nil && md.FileHash == hash, nil
}

// Touch records that path with the given content hash was analyzed now.
func (s *MetadataStore) Touch(path, hash string, size int64, modTime time.Time) error {
	return s.Upsert(&models.FileMetadata{
		FilePath:     path,
		FileHash:     hash,
		FileSize:     size,
		LastModified: modTime,
		LastAnalyzed: time.Now(),
	})
}

// Delete removes the metadata row for a file path; no-op when absent.
func (s *MetadataStore) Delete(path string) error {
	if err := s.db.Where("file_path = ?", path).Delete(&models.FileMetadata{}).Error; err != nil {
		return fmt.Errorf("failed to delete metadata for %s: %w", path, err)
	}
	return nil
}

// DeleteAll removes every metadata row, e.g. before a full re-index.
func (s *MetadataStore) DeleteAll() error {
	if err := s.db.Where("1 = 1").Delete(&models.FileMetadata{}).Error; err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// Count returns the number of files with recorded metadata.
func (s *MetadataStore) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&models.FileMetadata{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count metadata rows: %w", err)
	}
	return count, nil
}

// TotalSize returns the aggregate size in bytes of all indexed files.
func (s *MetadataStore) TotalSize() (int64, error) {
	var total int64
	err := s.db.Model(&models.FileMetadata{}).Select("COALESCE(SUM(file_size), 0)").Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return total, nil
}

// Close closes the underlying database connection.
func (s *MetadataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
