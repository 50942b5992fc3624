package voice

// TurnPhase is where the current turn is in its lifecycle
type TurnPhase string

const (
	PhaseIdle         TurnPhase = "idle"
	PhaseListening    TurnPhase = "listening"
	PhaseAnswering    TurnPhase = "answering"
	PhaseSynthesizing TurnPhase = "synthesizing"
	PhaseResolved     TurnPhase = "resolved"
	PhaseFailed       TurnPhase = "failed"
)

// State is the controller state shown to the user
type State struct {
	IsListening          bool      `json:"isListening"`
	IsLoading            bool      `json:"isLoading"`
	InterimText          string    `json:"interimText"`
	IsBackendConfigured  bool      `json:"isBackendConfigured"`
	RecognitionAvailable bool      `json:"recognitionAvailable"`
	Turn                 TurnPhase `json:"turn"`
	// LastOutcome is PhaseResolved or PhaseFailed once a turn has finished
	LastOutcome TurnPhase `json:"lastOutcome,omitempty"`
	Language    string    `json:"language"`
}

// CanStartTurn reports whether a new turn may begin
func (s State) CanStartTurn() bool {
	return s.IsBackendConfigured && !s.IsLoading
}
