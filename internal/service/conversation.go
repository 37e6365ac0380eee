package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

// AssistantsAPI is the thread/run surface of the external API.
type AssistantsAPI interface {
	CreateThread(ctx context.Context) (string, error)
	CreateMessage(ctx context.Context, threadID string, msg ThreadMessage) error
	StreamRun(ctx context.Context, threadID, assistantID string) (EventStream, error)
}

// ResponsesAPI is the synchronous prompt/response surface of the external API.
type ResponsesAPI interface {
	CreateResponse(ctx context.Context, r ResponseRequest) (*ResponseResult, error)
}

// ChatAPI is everything a turn needs from the external platform.
type ChatAPI interface {
	AssistantsAPI
	ResponsesAPI
	FileStore
}

type ConversationOptions struct {
	ReplyMode      config.ReplyMode
	ReplayMode     config.ReplayMode
	AssistantID    string
	PromptID       string
	VectorStoreIDs []string
}

type ConversationService struct {
	opts   ConversationOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewConversationService(opts ConversationOptions, logger *slog.Logger) *ConversationService {
	if opts.ReplyMode == "" {
		opts.ReplyMode = config.ReplyModeAssistant
	}
	if opts.ReplayMode == "" {
		opts.ReplayMode = config.ReplayModeIncremental
	}
	return &ConversationService{opts: opts, logger: logger, now: time.Now}
}

// Ready reports a configuration error that would make every turn fail.
func (s *ConversationService) Ready() error {
	switch s.opts.ReplyMode {
	case config.ReplyModeResponse:
		if s.opts.PromptID == "" {
			return fmt.Errorf("%w: OPENAI_PROMPT_ID", domain.ErrAssistantMissing)
		}
	default:
		if s.opts.AssistantID == "" {
			return fmt.Errorf("%w: OPENAI_ASSISTANT_ID", domain.ErrAssistantMissing)
		}
	}
	return nil
}

// SubmitTurn sends the new user turn (and whatever history the external side
// lacks) and starts the reply. The prompt is appended to the session log as
// soon as it has been submitted, so it stays in the log even when the reply
// fails.
func (s *ConversationService) SubmitTurn(ctx context.Context, api ChatAPI, sess *domain.Session, prompt string, attachments []domain.Attachment) (EventStream, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	if s.opts.ReplyMode == config.ReplyModeResponse {
		return s.submitResponse(ctx, api, sess, prompt, attachments)
	}
	return s.submitThread(ctx, api, sess, prompt, attachments)
}

func (s *ConversationService) submitThread(ctx context.Context, api AssistantsAPI, sess *domain.Session, prompt string, attachments []domain.Attachment) (EventStream, error) {
	if sess.ThreadID == "" {
		id, err := api.CreateThread(ctx)
		if err != nil {
			return nil, err
		}
		sess.ThreadID = id
		sess.Synced = 0
		s.logger.Info("thread created", "session", sess.Key, "thread_id", id)
	}

	start := sess.Synced
	if s.opts.ReplayMode == config.ReplayModeFull || start > len(sess.Messages) {
		start = 0
	}
	// Synced advances per message so a failed replay resumes where it stopped.
	for i, m := range sess.Messages[start:] {
		// threads accept user and assistant messages only
		if m.Role != domain.RoleSystem {
			if err := api.CreateMessage(ctx, sess.ThreadID, ThreadMessage{Role: string(m.Role), Content: m.Content}); err != nil {
				return nil, fmt.Errorf("replay history: %w", err)
			}
		}
		sess.Synced = start + i + 1
	}

	if len(attachments) > 0 {
		if err := api.CreateMessage(ctx, sess.ThreadID, ThreadMessage{
			Role:        string(domain.RoleUser),
			Content:     config.AttachmentMessageText,
			Attachments: attachments,
		}); err != nil {
			return nil, fmt.Errorf("attach files: %w", err)
		}
	}

	if err := api.CreateMessage(ctx, sess.ThreadID, ThreadMessage{Role: string(domain.RoleUser), Content: prompt}); err != nil {
		return nil, fmt.Errorf("submit prompt: %w", err)
	}
	s.appendUser(sess, prompt)

	return api.StreamRun(ctx, sess.ThreadID, s.opts.AssistantID)
}

func (s *ConversationService) submitResponse(ctx context.Context, api ResponsesAPI, sess *domain.Session, prompt string, attachments []domain.Attachment) (EventStream, error) {
	input := make([]ResponseInput, 0, len(sess.Messages)+1)
	for _, m := range sess.Messages {
		input = append(input, ResponseInput{Role: string(m.Role), Text: m.Content})
	}
	turn := ResponseInput{Role: string(domain.RoleUser), Text: prompt}
	for _, a := range attachments {
		turn.FileIDs = append(turn.FileIDs, a.FileID)
	}
	input = append(input, turn)
	s.appendUser(sess, prompt)

	result, err := api.CreateResponse(ctx, ResponseRequest{
		PromptID:       s.opts.PromptID,
		Input:          input,
		VectorStoreIDs: s.opts.VectorStoreIDs,
	})
	if err != nil {
		return nil, err
	}
	return newStaticStream(result.Text, result.Usage), nil
}

func (s *ConversationService) appendUser(sess *domain.Session, prompt string) {
	sess.Messages = append(sess.Messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   prompt,
		CreatedAt: s.now(),
	})
	if s.opts.ReplyMode == config.ReplyModeAssistant {
		sess.Synced = len(sess.Messages)
	}
}

// RecordReply appends the assistant reply to the log. In assistant mode the
// run already added it to the thread.
func (s *ConversationService) RecordReply(sess *domain.Session, reply string) {
	sess.Messages = append(sess.Messages, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: s.now(),
	})
	if s.opts.ReplyMode == config.ReplyModeAssistant {
		sess.Synced = len(sess.Messages)
	}
}
