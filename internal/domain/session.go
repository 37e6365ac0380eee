package domain

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is an immutable entry of the conversation log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the state owned by one conversation: the access token presented,
// the external thread handle, the message log and the upload registry.
// It is mutated only by the single active turn.
type Session struct {
	Key       string
	Token     string
	APIKey    string // per-session override when no key is configured
	ThreadID  string
	Messages  []Message
	Uploads   []*UploadedFile
	FileIDs   []string
	Synced    int // messages of the log already present in the external thread
	CreatedAt time.Time
}

// Upload returns the registered file with the given name.
func (s *Session) Upload(name string) (*UploadedFile, bool) {
	for _, u := range s.Uploads {
		if u.Name == name {
			return u, true
		}
	}
	return nil, false
}

// History returns a copy of the message log.
func (s *Session) History() []Message {
	cp := make([]Message, len(s.Messages))
	copy(cp, s.Messages)
	return cp
}

// UploadedFile is a user-submitted file. Sent flips to true once the external
// file store accepted it and never reverts.
type UploadedFile struct {
	Name   string
	Data   []byte
	Sent   bool
	FileID string
}

// Attachment references an external file for the retrieval tool.
type Attachment struct {
	FileID string           `json:"file_id"`
	Tools  []AttachmentTool `json:"tools"`
}

type AttachmentTool struct {
	Type string `json:"type"`
}
