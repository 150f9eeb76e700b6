package domain

// TurnKind classifies one entry in a run transcript.
type TurnKind string

const (
	TurnThought     TurnKind = "thought"
	TurnAction      TurnKind = "action"
	TurnObservation TurnKind = "observation"
	TurnFinalAnswer TurnKind = "final_answer"
)

// Turn is a single transcript entry. Action turns carry the tool name and
// its raw input; all other kinds carry free text.
type Turn struct {
	Kind  TurnKind `json:"kind"`
	Text  string   `json:"text"`
	Tool  string   `json:"tool,omitempty"`
	Input string   `json:"input,omitempty"`
}

// Decision is the parsed outcome of one model turn: either a final answer
// or a tool call. Thought may accompany either.
type Decision struct {
	Thought string `json:"thought,omitempty"`

	Final  bool   `json:"final"`
	Answer string `json:"answer,omitempty"`

	Tool  string `json:"tool,omitempty"`
	Input string `json:"input,omitempty"`
}

// ResultStatus is the terminal status of one agent run.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// AgentResult is the only externally visible output of one query.
// Question always carries the caller's input verbatim.
type AgentResult struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Status   ResultStatus `json:"status"`
}
