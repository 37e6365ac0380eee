package config

import "time"

const (
	// Attachment payloads reference at most this many of the most recent file ids.
	MaxAttachments = 20

	// Text of the dedicated message that carries attachments.
	AttachmentMessageText = "Die angehängten Dateien stehen für diese Unterhaltung zur Verfügung."

	// Purpose passed to the file store for uploads.
	FilePurpose = "assistants"

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Minimum gap between progressive edits of a streaming reply
	StreamEditInterval = 1500 * time.Millisecond

	// Timeout for non-streaming OpenAI calls
	RequestTimeout = 90 * time.Second

	// Rate limit window
	RateLimitWindow = time.Minute

	// Upload size accepted from front ends
	MaxUploadBytes = 20 << 20

	// HTTP server shutdown grace period
	ShutdownTimeout = 10 * time.Second

	// Access token date layout (MM/DD/YYYY, single-digit month/day accepted)
	TokenDateLayout = "1/2/2006"
)
