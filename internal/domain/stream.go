package domain

const (
	EventMessageDelta = "thread.message.delta"
	EventRunCompleted = "thread.run.completed"
	EventRunFailed    = "thread.run.failed"
	EventError        = "error"
	EventDone         = "done"
)

// StreamEvent is one normalized event of a reply stream. Text holds the first
// text content value of a message delta and is empty for every other kind.
type StreamEvent struct {
	Kind  string
	Text  string
	Usage *Usage
}

// Usage reports token counts of a completed run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
