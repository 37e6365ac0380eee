package service

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/set-night/chatgate/internal/domain"
)

func TestTextDeltasHandlesDeltasAndOtherEvents(t *testing.T) {
	stream := &sliceStream{events: []domain.StreamEvent{
		delta("hello"),
		delta(" world"),
		{Kind: "thread.message.trace"},
	}}
	got := slices.Collect(TextDeltas(stream))
	want := []string{"hello", " world", ""}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if strings.Join(got, "") != "hello world" {
		t.Fatalf("unexpected concatenation %q", strings.Join(got, ""))
	}
	if more := slices.Collect(TextDeltas(stream)); len(more) != 0 {
		t.Fatalf("expected consumed stream to yield nothing, got %q", more)
	}
}

func TestCollectForwardsIncrementsAndUsage(t *testing.T) {
	stream := &sliceStream{events: []domain.StreamEvent{
		{Kind: "thread.run.created"},
		delta("Hi"),
		delta("!"),
		{Kind: domain.EventRunCompleted, Usage: &domain.Usage{PromptTokens: 3, CompletionTokens: 2}},
	}}
	var increments []string
	reply, usage, err := Collect(stream, func(s string) { increments = append(increments, s) })
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if reply != "Hi!" {
		t.Fatalf("expected reply %q, got %q", "Hi!", reply)
	}
	if len(increments) != 4 {
		t.Fatalf("expected one increment per event, got %q", increments)
	}
	if usage == nil || usage.CompletionTokens != 2 {
		t.Fatalf("expected usage to be captured, got %+v", usage)
	}
	if !stream.closed {
		t.Fatalf("expected stream closed")
	}
}

func TestCollectReturnsStreamError(t *testing.T) {
	boom := errors.New("boom")
	stream := &sliceStream{events: []domain.StreamEvent{delta("part")}, err: boom}
	reply, _, err := Collect(stream, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if reply != "part" {
		t.Fatalf("expected partial reply, got %q", reply)
	}
}

const sseBody = `event: thread.created
data: {"id":"thread_1","object":"thread"}

event: thread.run.created
data: {"id":"run_1","status":"queued"}

: keep-alive

event: thread.message.delta
data: {"id":"msg_1","object":"thread.message.delta","delta":{"content":[{"index":0,"type":"text","text":{"value":"Hallo"}}]}}

event: thread.message.delta
data: {"id":"msg_1","object":"thread.message.delta","delta":{"content":[{"index":0,"type":"text","text":{"value":" Welt"}}]}}

event: thread.run.completed
data: {"id":"run_1","status":"completed","usage":{"prompt_tokens":120,"completion_tokens":8,"total_tokens":128}}

event: done
data: [DONE]

`

func TestSSEStreamDecodesAssistantEvents(t *testing.T) {
	stream := newSSEStream(io.NopCloser(strings.NewReader(sseBody)))
	var kinds []string
	for stream.Next() {
		kinds = append(kinds, stream.Event().Kind)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []string{"thread.created", "thread.run.created", "thread.message.delta", "thread.message.delta", "thread.run.completed"}
	if !slices.Equal(kinds, want) {
		t.Fatalf("expected kinds %v, got %v", want, kinds)
	}

	stream = newSSEStream(io.NopCloser(strings.NewReader(sseBody)))
	reply, usage, err := Collect(stream, nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if reply != "Hallo Welt" {
		t.Fatalf("expected %q, got %q", "Hallo Welt", reply)
	}
	if usage == nil || usage.PromptTokens != 120 || usage.TotalTokens != 128 {
		t.Fatalf("unexpected usage %+v", usage)
	}
}

func TestSSEStreamSurfacesRunFailure(t *testing.T) {
	body := "event: thread.message.delta\n" +
		`data: {"delta":{"content":[{"type":"text","text":{"value":"Hal"}}]}}` + "\n\n" +
		"event: thread.run.failed\n" +
		`data: {"status":"failed","last_error":{"code":"server_error","message":"something broke"}}` + "\n\n" +
		"event: thread.message.delta\n" +
		`data: {"delta":{"content":[{"type":"text","text":{"value":"never"}}]}}` + "\n\n"
	reply, _, err := Collect(newSSEStream(io.NopCloser(strings.NewReader(body))), nil)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "something broke") {
		t.Fatalf("expected failure detail, got %v", err)
	}
	if reply != "Hal" {
		t.Fatalf("expected events after failure to be dropped, got %q", reply)
	}
}

func TestSSEStreamSurfacesErrorEvent(t *testing.T) {
	body := "event: error\ndata: {\"error\":{\"message\":\"bad things\"}}\n\n"
	_, _, err := Collect(newSSEStream(io.NopCloser(strings.NewReader(body))), nil)
	if !errors.Is(err, domain.ErrUnavailable) || !strings.Contains(err.Error(), "bad things") {
		t.Fatalf("expected error event to surface, got %v", err)
	}
}

func TestStaticStreamYieldsSingleDelta(t *testing.T) {
	usage := &domain.Usage{PromptTokens: 1}
	got := slices.Collect(TextDeltas(newStaticStream("full reply", usage)))
	if !slices.Equal(got, []string{"full reply", ""}) {
		t.Fatalf("unexpected increments %q", got)
	}
}
