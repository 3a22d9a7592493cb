package store

import "draftforge/pkg/domain"

// Store persists subject lifecycle state and artifact version history.
// Generated artifacts themselves are returned to the caller; what lives here
// is the orchestrator's own state: phase, pending questions, answers, the
// current artifact, and the audit trail of superseded versions.
type Store interface {
	GetSubject(id string) (domain.Subject, bool, error)
	SaveSubject(subject domain.Subject) error
	AppendVersion(version domain.ArtifactVersion) error
	ListVersions(subjectID string) ([]domain.ArtifactVersion, error)
}
