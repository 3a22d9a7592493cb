package domain

import "time"

// Operation identifies what kind of artifact a generation request produces.
type Operation string

const (
	OpReadiness        Operation = "readiness"
	OpQuestions        Operation = "questions"
	OpTOC              Operation = "toc"
	OpChapterQuestions Operation = "chapter_questions"
	OpDraft            Operation = "draft"
)

// Valid reports whether the operation is one the pipeline knows.
func (op Operation) Valid() bool {
	switch op {
	case OpReadiness, OpQuestions, OpTOC, OpChapterQuestions, OpDraft:
		return true
	}
	return false
}

// Priority orders requests within a batch cycle.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ContextPayload carries the text and parameters a generation operation
// depends on. The context hash is computed over a normalization of these
// fields only; nothing outside this struct influences the output.
type ContextPayload struct {
	Summary        string            `json:"summary"`
	Genre          string            `json:"genre,omitempty"`
	TargetAudience string            `json:"targetAudience,omitempty"`
	WordTarget     int               `json:"wordTarget,omitempty"`
	ChapterTitle   string            `json:"chapterTitle,omitempty"`
	Answers        map[string]string `json:"answers,omitempty"`
	// BypassCache forces a fresh upstream call even when an equivalent
	// result is cached. Set on explicit regeneration with unchanged
	// parameters.
	BypassCache bool `json:"bypassCache,omitempty"`
}

// GenerationRequest is an immutable unit of work submitted to the batcher.
// Created by the caller, consumed exactly once.
type GenerationRequest struct {
	Operation   Operation      `json:"operation"`
	SubjectID   string         `json:"subjectId"`
	UserID      string         `json:"userId"`
	Payload     ContextPayload `json:"payload"`
	Priority    Priority       `json:"priority"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// JobState is the lifecycle state of a GenerationJob. Transitions are
// strictly forward: RETRYING loops back to RUNNING, but a dequeued job never
// returns to QUEUED.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobRetrying  JobState = "retrying"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// GenerationJob tracks one unit of batched upstream work. Owned exclusively
// by the worker pool once dequeued; callers read it via status polling.
type GenerationJob struct {
	ID              string         `json:"id"`
	BatchID         string         `json:"batchId"`
	Operation       Operation      `json:"operation"`
	SubjectID       string         `json:"subjectId"`
	UserID          string         `json:"userId"`
	ContextHash     string         `json:"contextHash"`
	Payload         ContextPayload `json:"payload"`
	State           JobState       `json:"state"`
	AttemptCount    int            `json:"attemptCount"`
	ProgressPercent int            `json:"progressPercent"`
	Result          string         `json:"result,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	CompletedAt     time.Time      `json:"completedAt,omitzero"`
}

// ReadinessAssessment scores whether free-text input carries enough
// information to proceed to structured generation. Pure function output,
// never persisted by this subsystem.
type ReadinessAssessment struct {
	ConfidenceScore float64  `json:"confidenceScore"`
	MeetsMinimum    bool     `json:"meetsMinimum"`
	Suggestions     []string `json:"suggestions"`
	WordCount       int      `json:"wordCount"`
	CharacterCount  int      `json:"characterCount"`
}

// ClarifyingQuestion is a targeted follow-up generated when readiness fails.
type ClarifyingQuestion struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// QuestionResponse records a user's answer to a clarifying question.
type QuestionResponse struct {
	QuestionID string    `json:"questionId"`
	AnswerText string    `json:"answerText"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// ArtifactVersion preserves a superseded generated artifact for audit and
// undo. Bodies over the inline threshold live in the object archive and the
// row holds only the key.
type ArtifactVersion struct {
	SubjectID  string    `json:"subjectId"`
	Version    int       `json:"version"`
	Operation  Operation `json:"operation"`
	Body       string    `json:"body,omitempty"`
	ArchiveKey string    `json:"archiveKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Subject is the per-book or per-chapter generation state tracked by the
// orchestrator.
type Subject struct {
	ID              string               `json:"id"`
	Phase           SubjectPhase         `json:"phase"`
	Questions       []ClarifyingQuestion `json:"questions,omitempty"`
	Answers         []QuestionResponse   `json:"answers,omitempty"`
	CurrentArtifact string               `json:"currentArtifact,omitempty"`
	CurrentOp       Operation            `json:"currentOp,omitempty"`
	Version         int                  `json:"version"`
	ActiveJobID     string               `json:"activeJobId,omitempty"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// SubjectContext is what the book/chapter CRUD collaborator knows about a
// subject. Read-only from this subsystem's point of view.
type SubjectContext struct {
	SummaryText    string            `json:"summaryText"`
	PriorAnswers   map[string]string `json:"priorAnswers,omitempty"`
	Genre          string            `json:"genre,omitempty"`
	TargetAudience string            `json:"targetAudience,omitempty"`
}
