package domain

import "time"

// DialogueState is a node of the post-publishing conversation.
type DialogueState string

const (
	DialogueIdle          DialogueState = ""
	DialogueAwaitTone     DialogueState = "await_tone"
	DialogueAwaitImage    DialogueState = "await_image"
	DialogueAwaitAIChoice DialogueState = "await_ai_choice"
	DialogueAwaitLength   DialogueState = "await_length"
	DialogueAwaitCaption  DialogueState = "await_caption"
	DialogueAwaitApproval DialogueState = "await_approval"
)

// DialogueSession is the per-conversation context of the bot dialogue.
type DialogueSession struct {
	ConversationID string        `json:"conversation_id"`
	State          DialogueState `json:"state"`
	Tone           string        `json:"tone,omitempty"`
	ImageRef       string        `json:"image_ref,omitempty"`
	Length         string        `json:"length,omitempty"`
	Caption        string        `json:"caption,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// DialogueEvent is one inbound user message. Exactly one of Command, Text
// or ImageRef is expected to be set.
type DialogueEvent struct {
	Command  string
	Text     string
	ImageRef string
}

// DialogueReply is what the bot should send back.
type DialogueReply struct {
	Text      string
	Published bool
}
