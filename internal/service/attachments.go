package service

import (
	"log/slog"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

const retrievalTool = "file_search"

// BuildAttachments wraps the most recent file ids, oldest first, for use by
// the retrieval tool. An empty input yields an empty payload.
func BuildAttachments(ids []string, logger *slog.Logger) []domain.Attachment {
	if len(ids) > config.MaxAttachments {
		ids = ids[len(ids)-config.MaxAttachments:]
	}
	payload := make([]domain.Attachment, 0, len(ids))
	for _, id := range ids {
		payload = append(payload, domain.Attachment{
			FileID: id,
			Tools:  []domain.AttachmentTool{{Type: retrievalTool}},
		})
	}
	if logger != nil {
		logger.Info("attachment payload built", "count", len(payload), "file_ids", ids)
	}
	return payload
}
