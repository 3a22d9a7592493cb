package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"draftforge/pkg/domain"
)

// MemoryStore keeps subject state in-process. Used in tests and single-node
// development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]domain.Subject
	versions map[string][]domain.ArtifactVersion
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]domain.Subject),
		versions: make(map[string][]domain.ArtifactVersion),
	}
}

// GetSubject returns the subject, if known.
func (m *MemoryStore) GetSubject(id string) (domain.Subject, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	subject, ok := m.subjects[id]
	return subject, ok, nil
}

// SaveSubject stores or replaces the subject state.
func (m *MemoryStore) SaveSubject(subject domain.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subject.UpdatedAt.IsZero() {
		subject.UpdatedAt = time.Now().UTC()
	}
	m.subjects[subject.ID] = subject
	return nil
}

// AppendVersion records a superseded artifact, rejecting duplicates.
func (m *MemoryStore) AppendVersion(version domain.ArtifactVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions[version.SubjectID] {
		if existing.Version == version.Version {
			return fmt.Errorf("version %d already recorded for subject %s", version.Version, version.SubjectID)
		}
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	m.versions[version.SubjectID] = append(m.versions[version.SubjectID], version)
	return nil
}

// ListVersions returns the history, oldest first.
func (m *MemoryStore) ListVersions(subjectID string) ([]domain.ArtifactVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]domain.ArtifactVersion(nil), m.versions[subjectID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
