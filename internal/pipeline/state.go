package pipeline

// State is the orchestrator's position in the run lifecycle. Completed and
// Aborted are terminal.
type State string

const (
	StateCreated         State = "created"
	StateIngesting       State = "ingesting"
	StateExtractingAudio State = "extracting_audio"
	StateTranscribing    State = "transcribing"
	StateDetecting       State = "detecting_highlights"
	StateSelecting       State = "selecting"
	StateProcessing      State = "processing"
	StateCompleted       State = "completed"
	StateAborted         State = "aborted"
)

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
