package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
	"github.com/shopspring/decimal"
)

// ChatAPIFactory returns a client authenticated with apiKey.
type ChatAPIFactory func(apiKey string) ChatAPI

type FileUpload struct {
	Name string
	Data []byte
}

type TurnRequest struct {
	Prompt string
	Files  []FileUpload
}

type UploadFailure struct {
	Name string
	Err  error
}

type TurnResult struct {
	TurnID         string
	Owner          string
	Reply          string
	UploadedIDs    []string
	UploadedNames  []string
	UploadFailures []UploadFailure
	Attached       int
	Usage          *domain.Usage
	Cost           *decimal.Decimal
}

type TurnService struct {
	access          *AccessService
	conversation    *ConversationService
	sessions        *SessionService
	newAPI          ChatAPIFactory
	apiKey          string
	costEnabled     bool
	promptPrice     decimal.Decimal
	completionPrice decimal.Decimal
	logger          *slog.Logger
}

type TurnDeps struct {
	Access       *AccessService
	Conversation *ConversationService
	Sessions     *SessionService
	NewAPI       ChatAPIFactory
	Cfg          *config.Config
	Logger       *slog.Logger
}

func NewTurnService(deps TurnDeps) *TurnService {
	s := &TurnService{
		access:       deps.Access,
		conversation: deps.Conversation,
		sessions:     deps.Sessions,
		newAPI:       deps.NewAPI,
		logger:       deps.Logger,
	}
	if deps.Cfg != nil {
		s.apiKey = deps.Cfg.OpenAIKey
		s.costEnabled = deps.Cfg.CostEnabled()
		s.promptPrice = deps.Cfg.PromptPricePer1M
		s.completionPrice = deps.Cfg.CompletionPricePer1M
	}
	return s
}

// NeedsAPIKey reports whether sessions must bring their own API key.
func (s *TurnService) NeedsAPIKey() bool {
	return strings.TrimSpace(s.apiKey) == ""
}

// Run executes one user turn on a session claimed with SessionService.TryBegin.
// Configuration and authorization are checked before any external call.
// Upload failures are reported in the result and do not stop the turn. On a
// reply failure no assistant message is appended.
func (s *TurnService) Run(ctx context.Context, sess *domain.Session, req TurnRequest, onDelta func(string)) (*TurnResult, error) {
	res := &TurnResult{TurnID: uuid.NewString()}
	logger := s.logger.With("turn_id", res.TurnID, "session", sess.Key)

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	api, err := s.apiFor(sess)
	if err != nil {
		return nil, err
	}
	if err := s.conversation.Ready(); err != nil {
		return nil, err
	}
	owner, err := s.access.Authorize(sess.Token)
	if err != nil {
		return nil, err
	}
	res.Owner = owner.OwnerName

	for _, f := range req.Files {
		if !RegisterUpload(sess, f.Name, f.Data) {
			logger.Debug("duplicate upload ignored", "name", f.Name)
		}
	}
	res.UploadedIDs, res.UploadedNames = UploadPending(ctx, sess, api, func(name string, err error) {
		logger.Warn("upload file", "name", name, "error", err)
		res.UploadFailures = append(res.UploadFailures, UploadFailure{Name: name, Err: err})
	})

	var attachments []domain.Attachment
	if len(res.UploadedIDs) > 0 {
		attachments = BuildAttachments(sess.FileIDs, logger)
	}
	res.Attached = len(attachments)

	snap := TakeSnapshot(sess)
	defer func() {
		if err := s.sessions.Persist(context.WithoutCancel(ctx), sess, snap); err != nil {
			logger.Error("persist session", "error", err)
		}
	}()

	stream, err := s.conversation.SubmitTurn(ctx, api, sess, prompt, attachments)
	if err != nil {
		return res, fmt.Errorf("submit turn: %w", err)
	}
	reply, usage, err := Collect(stream, onDelta)
	if err != nil {
		return res, fmt.Errorf("read reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return res, domain.ErrEmptyReply
	}

	s.conversation.RecordReply(sess, reply)
	res.Reply = reply
	res.Usage = usage
	if usage != nil && s.costEnabled {
		cost := CalculateCost(*usage, s.promptPrice, s.completionPrice)
		res.Cost = &cost
	}
	logger.Info("turn completed",
		"owner", res.Owner,
		"reply_len", len(reply),
		"uploaded", len(res.UploadedIDs),
		"upload_failures", len(res.UploadFailures),
	)
	return res, nil
}

func (s *TurnService) apiFor(sess *domain.Session) (ChatAPI, error) {
	key := strings.TrimSpace(s.apiKey)
	if key == "" {
		key = strings.TrimSpace(sess.APIKey)
	}
	if key == "" {
		return nil, domain.ErrAPIKeyMissing
	}
	return s.newAPI(key), nil
}
