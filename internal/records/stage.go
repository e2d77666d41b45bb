package records

// Stage is the lifecycle state of a tracked application.
type Stage string

const (
	StageSaved     Stage = "SAVED"
	StageApplied   Stage = "APPLIED"
	StageInterview Stage = "INTERVIEW"
	StageOffer     Stage = "OFFER"
	StageRejected  Stage = "REJECTED"
	StageWithdrawn Stage = "WITHDRAWN"
)

// stageTransitions enumerates the legal moves. REJECTED and WITHDRAWN are
// terminal.
var stageTransitions = map[Stage][]Stage{
	StageSaved:     {StageApplied, StageWithdrawn},
	StageApplied:   {StageInterview, StageRejected, StageWithdrawn},
	StageInterview: {StageOffer, StageRejected, StageWithdrawn},
	StageOffer:     {StageRejected, StageWithdrawn},
	StageRejected:  {},
	StageWithdrawn: {},
}

// ValidStage reports whether s names a known stage.
func ValidStage(s Stage) bool {
	_, ok := stageTransitions[s]
	return ok
}

// CanTransition reports whether moving from one stage to another is legal.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
