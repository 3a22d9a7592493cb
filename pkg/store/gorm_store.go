package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"draftforge/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&SubjectModel{}, &VersionModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// GetSubject loads a subject's generation state.
func (s *GormStore) GetSubject(id string) (domain.Subject, bool, error) {
	var row SubjectModel
	err := s.db.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Subject{}, false, nil
	}
	if err != nil {
		return domain.Subject{}, false, fmt.Errorf("get subject: %w", err)
	}
	subject, err := subjectFromModel(row)
	if err != nil {
		return domain.Subject{}, false, err
	}
	return subject, true, nil
}

// SaveSubject upserts the subject row.
func (s *GormStore) SaveSubject(subject domain.Subject) error {
	row, err := modelFromSubject(subject)
	if err != nil {
		return err
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	return nil
}

// AppendVersion records a superseded artifact. The (subject, version) unique
// index rejects duplicate version numbers.
func (s *GormStore) AppendVersion(version domain.ArtifactVersion) error {
	row := VersionModel{
		SubjectID:  version.SubjectID,
		Version:    version.Version,
		Operation:  string(version.Operation),
		Body:       version.Body,
		ArchiveKey: version.ArchiveKey,
		CreatedAt:  version.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append version: %w", err)
	}
	return nil
}

// ListVersions returns a subject's version history, oldest first.
func (s *GormStore) ListVersions(subjectID string) ([]domain.ArtifactVersion, error) {
	var rows []VersionModel
	if err := s.db.Where("subject_id = ?", subjectID).Order("version asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := make([]domain.ArtifactVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ArtifactVersion{
			SubjectID:  row.SubjectID,
			Version:    row.Version,
			Operation:  domain.Operation(row.Operation),
			Body:       row.Body,
			ArchiveKey: row.ArchiveKey,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func subjectFromModel(row SubjectModel) (domain.Subject, error) {
	subject := domain.Subject{
		ID:              row.ID,
		Phase:           domain.SubjectPhase(row.Phase),
		CurrentArtifact: row.CurrentArtifact,
		CurrentOp:       domain.Operation(row.CurrentOp),
		Version:         row.Version,
		ActiveJobID:     row.ActiveJobID,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.QuestionsJSON != "" {
		if err := json.Unmarshal([]byte(row.QuestionsJSON), &subject.Questions); err != nil {
			return domain.Subject{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	if row.AnswersJSON != "" {
		if err := json.Unmarshal([]byte(row.AnswersJSON), &subject.Answers); err != nil {
			return domain.Subject{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	return subject, nil
}

func modelFromSubject(subject domain.Subject) (SubjectModel, error) {
	row := SubjectModel{
		ID:              subject.ID,
		Phase:           string(subject.Phase),
		CurrentArtifact: subject.CurrentArtifact,
		CurrentOp:       string(subject.CurrentOp),
		Version:         subject.Version,
		ActiveJobID:     subject.ActiveJobID,
		UpdatedAt:       subject.UpdatedAt,
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if len(subject.Questions) > 0 {
		raw, err := json.Marshal(subject.Questions)
		if err != nil {
			return SubjectModel{}, err
		}
		row.QuestionsJSON = string(raw)
	}
	if len(subject.Answers) > 0 {
		raw, err := json.Marshal(subject.Answers)
		if err != nil {
			return SubjectModel{}, err
		}
		row.AnswersJSON = string(raw)
	}
	return row, nil
}
