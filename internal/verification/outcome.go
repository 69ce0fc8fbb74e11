package verification

// Stage is a pipeline state. Stages run strictly in order; Failed is absorbing.
type Stage string

const (
	StageValidating         Stage = "validating"
	StageAnalyzingPrimary   Stage = "analyzing_primary"
	StageAnalyzingSecondary Stage = "analyzing_secondary"
	StageComparingFaces     Stage = "comparing_faces"
	StageEnqueuing          Stage = "enqueuing"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// prefix is the user-facing name of the stage, in the submitter's language.
func (s Stage) prefix() string {
	switch s {
	case StageAnalyzingPrimary:
		return "frente do documento"
	case StageAnalyzingSecondary:
		return "verso do documento"
	case StageComparingFaces:
		return "selfie"
	case StageEnqueuing:
		return "envio para moderação"
	default:
		return string(s)
	}
}

// User-facing outcome messages.
const (
	MsgReadyForReview = "ready for review"
	MsgTimedOut       = "processing timed out"
	MsgTryAgainLater  = "temporary problem, please try again later"
)

// Outcome is the terminal, user-safe result of one submission.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Stage is StageDone on success, else the stage that failed.
	Stage Stage `json:"stage"`
}

func stageFailure(stage Stage, message string) Outcome {
	return Outcome{Message: stage.prefix() + ": " + message, Stage: stage}
}
