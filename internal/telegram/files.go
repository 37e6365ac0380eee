package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/go-telegram/bot"
	"github.com/set-night/chatgate/internal/domain"
)

// DownloadFile downloads a file from Telegram by file ID. Files larger than
// maxBytes fail with domain.ErrUploadTooLarge.
func DownloadFile(ctx context.Context, b *bot.Bot, fileID string, maxBytes int64) ([]byte, string, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if file.FileSize > maxBytes {
		return nil, "", domain.ErrUploadTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file data: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", domain.ErrUploadTooLarge
	}

	return data, path.Base(file.FilePath), nil
}
