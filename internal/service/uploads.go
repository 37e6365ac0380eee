package service

import (
	"context"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

// FileStore is the external file storage.
type FileStore interface {
	CreateFile(ctx context.Context, name string, data []byte, purpose string) (string, error)
}

// RegisterUpload stores data under name unless a file with that name is
// already registered, in which case it returns false and changes nothing.
func RegisterUpload(sess *domain.Session, name string, data []byte) bool {
	if _, exists := sess.Upload(name); exists {
		return false
	}
	sess.Uploads = append(sess.Uploads, &domain.UploadedFile{Name: name, Data: data})
	return true
}

// UploadPending pushes every registered file not yet sent to the store, in
// registration order. A failed file is reported through onError, stays
// pending and does not stop the remaining uploads.
func UploadPending(ctx context.Context, sess *domain.Session, store FileStore, onError func(name string, err error)) (ids []string, names []string) {
	ids = []string{}
	names = []string{}
	for _, f := range sess.Uploads {
		if f.Sent {
			continue
		}
		id, err := store.CreateFile(ctx, f.Name, f.Data, config.FilePurpose)
		if err != nil {
			if onError != nil {
				onError(f.Name, err)
			}
			continue
		}
		f.Sent = true
		f.FileID = id
		sess.FileIDs = append(sess.FileIDs, id)
		ids = append(ids, id)
		names = append(names, f.Name)
	}
	return ids, names
}
