package domain

// AnswerState is the terminal state reached by the answer generator.
type AnswerState string

const (
	StateGrounded AnswerState = "grounded_answer"
	StateFallback AnswerState = "fallback_answer"
	StateApology  AnswerState = "apology"
)

// AnswerOutcome is the variant returned for every answer request. It is
// never accompanied by an error: failures are folded into State.
type AnswerOutcome struct {
	State       AnswerState        `json:"state"`
	Text        string             `json:"text"`
	UsedContext bool               `json:"usedContext"`
	Degraded    bool               `json:"degraded"`
	Error       bool               `json:"error"`
	TopScore    float64            `json:"topScore"`
	Sources     []RetrievalContext `json:"sources,omitempty"`
}

// CaptionRequest asks for a social media caption of a given tone and length.
type CaptionRequest struct {
	Tone   string `json:"tone"`
	Length string `json:"length"`
}

type Caption struct {
	Text     string `json:"caption"`
	Degraded bool   `json:"degraded"`
	Error    bool   `json:"error,omitempty"`
}
