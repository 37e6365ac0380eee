package service

import (
	"context"
	"fmt"

	"github.com/set-night/chatgate/internal/domain"
)

type sliceStream struct {
	events []domain.StreamEvent
	err    error
	pos    int
	closed bool
}

func (s *sliceStream) Next() bool {
	if s.closed || s.pos >= len(s.events) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Event() domain.StreamEvent { return s.events[s.pos-1] }

func (s *sliceStream) Err() error {
	if s.pos < len(s.events) {
		return nil
	}
	return s.err
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func delta(text string) domain.StreamEvent {
	return domain.StreamEvent{Kind: domain.EventMessageDelta, Text: text}
}

type sentMessage struct {
	threadID string
	msg      ThreadMessage
}

type fakeChatAPI struct {
	fakeFileStore

	threadErr  error
	threads    int
	messageErr error
	failAt     int // with messageErr, fail only the failAt-th CreateMessage call
	messages   int
	sent       []sentMessage
	runErr     error
	runs       []string
	events     []domain.StreamEvent
	streamErr  error

	responseErr  error
	responseText string
	requests     []ResponseRequest
}

func (f *fakeChatAPI) CreateThread(context.Context) (string, error) {
	if f.threadErr != nil {
		return "", f.threadErr
	}
	f.threads++
	return fmt.Sprintf("thread-%d", f.threads), nil
}

func (f *fakeChatAPI) CreateMessage(_ context.Context, threadID string, msg ThreadMessage) error {
	f.messages++
	if f.messageErr != nil && (f.failAt == 0 || f.failAt == f.messages) {
		return f.messageErr
	}
	f.sent = append(f.sent, sentMessage{threadID: threadID, msg: msg})
	return nil
}

func (f *fakeChatAPI) StreamRun(_ context.Context, threadID, assistantID string) (EventStream, error) {
	f.runs = append(f.runs, threadID+"/"+assistantID)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &sliceStream{events: f.events, err: f.streamErr}, nil
}

func (f *fakeChatAPI) CreateResponse(_ context.Context, r ResponseRequest) (*ResponseResult, error) {
	f.requests = append(f.requests, r)
	if f.responseErr != nil {
		return nil, f.responseErr
	}
	return &ResponseResult{ID: "resp-1", Text: f.responseText, Usage: &domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
}

func (f *fakeChatAPI) contents() []string {
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = string(s.msg.Role) + ":" + s.msg.Content
	}
	return out
}
