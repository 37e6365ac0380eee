package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

func newTestConversation(opts ConversationOptions) *ConversationService {
	if opts.AssistantID == "" {
		opts.AssistantID = "asst_1"
	}
	return NewConversationService(opts, discardLogger())
}

func greetedSession() *domain.Session {
	return &domain.Session{Key: "s1", Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "Hallo!"}}}
}

func TestSubmitTurnSendsAttachmentsBeforePrompt(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{events: []domain.StreamEvent{delta("ok")}}
	sess := greetedSession()

	attachments := BuildAttachments([]string{"file-1", "file-2"}, nil)
	stream, err := conv.SubmitTurn(context.Background(), api, sess, "Summarize both", attachments)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stream.Close()

	want := []string{
		"assistant:Hallo!",
		"user:" + config.AttachmentMessageText,
		"user:Summarize both",
	}
	if got := api.contents(); !slices.Equal(got, want) {
		t.Fatalf("expected messages %q, got %q", want, got)
	}
	if n := len(api.sent[1].msg.Attachments); n != 2 {
		t.Fatalf("expected 2 attachments on the attachment message, got %d", n)
	}
	if len(api.sent[2].msg.Attachments) != 0 {
		t.Fatalf("expected prompt message without attachments")
	}
	if len(api.runs) != 1 || api.runs[0] != "thread-1/asst_1" {
		t.Fatalf("unexpected runs %v", api.runs)
	}
	if sess.ThreadID != "thread-1" {
		t.Fatalf("expected thread to be recorded, got %q", sess.ThreadID)
	}
	if last := sess.Messages[len(sess.Messages)-1]; last.Role != domain.RoleUser || last.Content != "Summarize both" {
		t.Fatalf("expected prompt appended to the log, got %+v", last)
	}
	if sess.Synced != len(sess.Messages) {
		t.Fatalf("expected log to be marked synced, got %d of %d", sess.Synced, len(sess.Messages))
	}
}

func TestSubmitTurnWithoutAttachments(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{}
	sess := greetedSession()

	if _, err := conv.SubmitTurn(context.Background(), api, sess, "Hi", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := []string{"assistant:Hallo!", "user:Hi"}
	if got := api.contents(); !slices.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSubmitTurnReplayModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   config.ReplayMode
		second []string
	}{
		{
			name:   "incremental",
			mode:   config.ReplayModeIncremental,
			second: []string{"user:Second"},
		},
		{
			name:   "full",
			mode:   config.ReplayModeFull,
			second: []string{"assistant:Hallo!", "user:First", "assistant:Reply one", "user:Second"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := newTestConversation(ConversationOptions{ReplayMode: tt.mode})
			api := &fakeChatAPI{}
			sess := greetedSession()

			if _, err := conv.SubmitTurn(context.Background(), api, sess, "First", nil); err != nil {
				t.Fatalf("first turn: %v", err)
			}
			conv.RecordReply(sess, "Reply one")
			api.sent = nil

			if _, err := conv.SubmitTurn(context.Background(), api, sess, "Second", nil); err != nil {
				t.Fatalf("second turn: %v", err)
			}
			if got := api.contents(); !slices.Equal(got, tt.second) {
				t.Fatalf("expected %q, got %q", tt.second, got)
			}
			if api.threads != 1 {
				t.Fatalf("expected thread to be reused, created %d", api.threads)
			}
		})
	}
}

func TestSubmitTurnSkipsSystemMessages(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{}
	sess := &domain.Session{Messages: []domain.Message{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleAssistant, Content: "Hallo!"},
	}}
	if _, err := conv.SubmitTurn(context.Background(), api, sess, "Hi", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := []string{"assistant:Hallo!", "user:Hi"}
	if got := api.contents(); !slices.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSubmitTurnPropagatesNotFound(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{runErr: domain.ErrResourceNotFound}
	sess := greetedSession()

	_, err := conv.SubmitTurn(context.Background(), api, sess, "Hi", nil)
	if !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
	if last := sess.Messages[len(sess.Messages)-1]; last.Content != "Hi" {
		t.Fatalf("expected submitted prompt to stay in the log, got %+v", last)
	}
}

func TestSubmitTurnThreadCreationFailure(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{threadErr: domain.ErrUnauthorized}
	sess := greetedSession()

	_, err := conv.SubmitTurn(context.Background(), api, sess, "Hi", nil)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(sess.Messages) != 1 || sess.ThreadID != "" {
		t.Fatalf("expected session untouched, got %+v", sess)
	}
}

func TestReadyRequiresIdentifiers(t *testing.T) {
	conv := NewConversationService(ConversationOptions{}, discardLogger())
	if err := conv.Ready(); !errors.Is(err, domain.ErrAssistantMissing) {
		t.Fatalf("expected ErrAssistantMissing, got %v", err)
	}
	conv = NewConversationService(ConversationOptions{ReplyMode: config.ReplyModeResponse, AssistantID: "asst_1"}, discardLogger())
	if err := conv.Ready(); !errors.Is(err, domain.ErrAssistantMissing) {
		t.Fatalf("expected prompt id to be required, got %v", err)
	}
	api := &fakeChatAPI{}
	if _, err := conv.SubmitTurn(context.Background(), api, greetedSession(), "Hi", nil); !errors.Is(err, domain.ErrAssistantMissing) {
		t.Fatalf("expected submit to fail before any call, got %v", err)
	}
	if len(api.requests) != 0 {
		t.Fatalf("expected no external calls")
	}
}

func TestSubmitTurnResponseMode(t *testing.T) {
	conv := NewConversationService(ConversationOptions{
		ReplyMode:      config.ReplyModeResponse,
		PromptID:       "pmpt_1",
		VectorStoreIDs: []string{"vs_1"},
	}, discardLogger())
	api := &fakeChatAPI{responseText: "Antwort"}
	sess := greetedSession()

	stream, err := conv.SubmitTurn(context.Background(), api, sess, "Frage", BuildAttachments([]string{"file-9"}, nil))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	reply, usage, err := Collect(stream, nil)
	if err != nil || reply != "Antwort" || usage == nil {
		t.Fatalf("unexpected reply %q usage %+v err %v", reply, usage, err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(api.requests))
	}
	req := api.requests[0]
	if req.PromptID != "pmpt_1" || len(req.Input) != 2 {
		t.Fatalf("unexpected request %+v", req)
	}
	if turn := req.Input[1]; turn.Text != "Frage" || len(turn.FileIDs) != 1 || turn.FileIDs[0] != "file-9" {
		t.Fatalf("unexpected turn input %+v", turn)
	}
	if api.threads != 0 {
		t.Fatalf("expected no thread in response mode")
	}
	if sess.Synced != 0 {
		t.Fatalf("expected sync position untouched in response mode, got %d", sess.Synced)
	}
}

func TestSubmitTurnResumesInterruptedReplay(t *testing.T) {
	conv := newTestConversation(ConversationOptions{})
	api := &fakeChatAPI{messageErr: domain.ErrUnavailable, failAt: 3}
	sess := greetedSession()
	sess.Messages = append(sess.Messages,
		domain.Message{Role: domain.RoleUser, Content: "u1"},
		domain.Message{Role: domain.RoleAssistant, Content: "a1"},
	)

	if _, err := conv.SubmitTurn(context.Background(), api, sess, "p1", nil); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if sess.Synced != 2 {
		t.Fatalf("expected the two replayed messages to count as synced, got %d", sess.Synced)
	}

	if _, err := conv.SubmitTurn(context.Background(), api, sess, "p2", nil); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	want := []string{"assistant:Hallo!", "user:u1", "assistant:a1", "user:p2"}
	if got := api.contents(); !slices.Equal(got, want) {
		t.Fatalf("expected thread %q, got %q", want, got)
	}
}
