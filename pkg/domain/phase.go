package domain

// SubjectPhase is the orchestrator-level lifecycle of a book or chapter.
type SubjectPhase string

const (
	PhaseNotReady         SubjectPhase = "not_ready"
	PhaseQuestionsPending SubjectPhase = "questions_pending"
	PhaseReady            SubjectPhase = "ready"
	PhaseGenerating       SubjectPhase = "generating"
	PhaseGenerated        SubjectPhase = "generated"
	PhaseEdited           SubjectPhase = "edited"
)

// phaseTransitions lists the allowed forward edges. EDITED loops on itself:
// every further edit produces a new version but stays in the same phase, and
// regeneration re-enters GENERATING from GENERATED or EDITED.
var phaseTransitions = map[SubjectPhase][]SubjectPhase{
	PhaseNotReady:         {PhaseQuestionsPending, PhaseReady},
	PhaseQuestionsPending: {PhaseReady},
	PhaseReady:            {PhaseGenerating, PhaseGenerated},
	PhaseGenerating:       {PhaseGenerated, PhaseReady},
	PhaseGenerated:        {PhaseEdited, PhaseGenerating},
	PhaseEdited:           {PhaseEdited, PhaseGenerating},
}

// CanTransition reports whether moving from one phase to another is legal.
func CanTransition(from, to SubjectPhase) bool {
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
