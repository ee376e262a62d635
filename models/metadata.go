package models

import "time"

// FileMetadata records what the indexer last saw for a file: the content hash
// that was parsed and when. It is the only state persisted across runs; cached
// ASTs themselves stay in memory.
type FileMetadata struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FilePath     string    `json:"file_path" gorm:"column:file_path;uniqueIndex;not null"`
	FileHash     string    `json:"file_hash" gorm:"column:file_hash;not null;index"`
	FileSize     int64     `json:"file_size" gorm:"column:file_size"`
	LastModified time.Time `json:"last_modified" gorm:"column:last_modified;not null;index"`
	LastAnalyzed time.Time `json:"last_analyzed" gorm:"column:last_analyzed"`
}

// TableName specifies the table name for FileMetadata
func (FileMetadata) TableName() string {
	return "file_metadata"
}
