package store

import "time"

// SubjectModel is the GORM row for a subject's generation state. Questions
// and answers are stored as JSON text; they are opaque to queries.
type SubjectModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	Phase           string `gorm:"size:32;not null"`
	QuestionsJSON   string `gorm:"type:text"`
	AnswersJSON     string `gorm:"type:text"`
	CurrentArtifact string `gorm:"type:text"`
	CurrentOp       string `gorm:"size:32"`
	Version         int    `gorm:"not null;default:0"`
	ActiveJobID     string `gorm:"size:64"`
	UpdatedAt       time.Time
}

func (SubjectModel) TableName() string { return "generation_subjects" }

// VersionModel is one preserved artifact version. Large bodies live in the
// object archive; ArchiveKey is set instead of Body in that case.
type VersionModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SubjectID  string `gorm:"size:64;not null;uniqueIndex:idx_subject_version,priority:1"`
	Version    int    `gorm:"not null;uniqueIndex:idx_subject_version,priority:2"`
	Operation  string `gorm:"size:32;not null"`
	Body       string `gorm:"type:text"`
	ArchiveKey string `gorm:"size:255"`
	CreatedAt  time.Time
}

func (VersionModel) TableName() string { return "artifact_versions" }
