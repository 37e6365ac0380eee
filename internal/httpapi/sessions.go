package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
	"github.com/set-night/chatgate/internal/service"
)

const maxFilesPerRequest = 10

type fileView struct {
	Name string `json:"name"`
	Sent bool   `json:"sent"`
}

func fileViews(uploads []*domain.UploadedFile) []fileView {
	out := make([]fileView, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, fileView{Name: u.Name, Sent: u.Sent})
	}
	return out
}

func sessionKey(id string) string {
	return "web:" + id
}

// claim takes the session named by the :id path parameter. On failure the
// response has been written.
func (s *Server) claim(c *gin.Context) (*domain.Session, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		s.fail(c, domain.ErrSessionNotFound)
		return nil, false
	}
	sess, err := s.sessions.TryBegin(c.Request.Context(), sessionKey(id), false)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) createSession(c *gin.Context) {
	id := uuid.NewString()
	sess, err := s.sessions.Create(c.Request.Context(), sessionKey(id))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("session created", "session", sess.Key)
	c.JSON(http.StatusCreated, gin.H{"id": id, "messages": sess.History()})
}

func (s *Server) listMessages(c *gin.Context) {
	sess, ok := s.claim(c)
	if !ok {
		return
	}
	defer s.sessions.End(sess.Key)

	c.JSON(http.StatusOK, gin.H{
		"messages": sess.History(),
		"files":    fileViews(sess.Uploads),
	})
}

func (s *Server) uploadFiles(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFilesPerRequest*config.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, domain.ErrUploadTooLarge)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_form", "message": err.Error()})
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 || len(headers) > maxFilesPerRequest {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "file_required",
			"message": fmt.Sprintf("send 1 to %d parts named \"file\"", maxFilesPerRequest),
		})
		return
	}

	files := make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			s.fail(c, fmt.Errorf("read %s: %w", fh.Filename, err))
			return
		}
		files = append(files, service.FileUpload{Name: fh.Filename, Data: data})
	}

	sess, ok := s.claim(c)
	if !ok {
		return
	}
	defer s.sessions.End(sess.Key)

	added := []string{}
	duplicates := []string{}
	for _, f := range files {
		if service.RegisterUpload(sess, f.Name, f.Data) {
			added = append(added, f.Name)
		} else {
			duplicates = append(duplicates, f.Name)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"added":      added,
		"duplicates": duplicates,
		"files":      fileViews(sess.Uploads),
	})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > config.MaxUploadBytes {
		return nil, domain.ErrUploadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) resetSession(c *gin.Context) {
	sess, ok := s.claim(c)
	if !ok {
		return
	}
	key := sess.Key
	s.sessions.End(key)

	fresh, err := s.sessions.Reset(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "messages": fresh.History()})
}
