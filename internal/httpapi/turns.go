package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/set-night/chatgate/internal/domain"
	"github.com/set-night/chatgate/internal/service"
)

const (
	headerAccessToken = "X-Access-Token"
	headerOpenAIKey   = "X-OpenAI-Key"
)

type turnRequest struct {
	Prompt string `json:"prompt"`
}

// createTurn runs one turn and streams it as server-sent events: delta for
// each text increment, upload_error per failed file, then done or error.
// Request problems found before the stream starts are plain JSON errors.
func (s *Server) createTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json", "message": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.fail(c, domain.ErrEmptyPrompt)
		return
	}
	token := strings.TrimSpace(c.GetHeader(headerAccessToken))
	if _, err := s.access.Authorize(token); err != nil {
		s.fail(c, err)
		return
	}
	apiKey := strings.TrimSpace(c.GetHeader(headerOpenAIKey))
	if s.turns.NeedsAPIKey() && apiKey == "" {
		s.fail(c, domain.ErrAPIKeyMissing)
		return
	}

	sess, ok := s.claim(c)
	if !ok {
		return
	}
	defer s.sessions.End(sess.Key)

	ctx := c.Request.Context()
	if sess.Token != token {
		if err := s.sessions.SetToken(ctx, sess, token); err != nil {
			s.fail(c, err)
			return
		}
	}
	if apiKey != "" {
		sess.APIKey = apiKey
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	res, err := s.turns.Run(ctx, sess, service.TurnRequest{Prompt: req.Prompt}, func(text string) {
		if text == "" {
			return
		}
		c.SSEvent("delta", gin.H{"text": text})
		c.Writer.Flush()
	})

	if res != nil {
		for _, f := range res.UploadFailures {
			c.SSEvent("upload_error", gin.H{"name": f.Name, "message": f.Err.Error()})
		}
	}
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("turn failed", "session", sess.Key, "error", err)
		}
		c.SSEvent("error", gin.H{"error": code, "message": err.Error()})
		c.Writer.Flush()
		return
	}

	done := gin.H{
		"turn_id":  res.TurnID,
		"reply":    res.Reply,
		"uploaded": res.UploadedNames,
		"attached": res.Attached,
	}
	if res.Usage != nil {
		done["usage"] = res.Usage
	}
	if res.Cost != nil {
		done["cost"] = res.Cost.String()
	}
	c.SSEvent("done", done)
	c.Writer.Flush()
}
