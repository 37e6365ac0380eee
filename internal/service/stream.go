package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/set-night/chatgate/internal/domain"
)

// EventStream is a single-use sequence of reply events.
type EventStream interface {
	Next() bool
	Event() domain.StreamEvent
	Err() error
	Close() error
}

// TextDeltas yields one text increment per event: the delta text for message
// delta events and an empty string for every other kind. Concatenating the
// increments gives the full reply.
func TextDeltas(stream EventStream) iter.Seq[string] {
	return func(yield func(string) bool) {
		for stream.Next() {
			ev := stream.Event()
			text := ""
			if ev.Kind == domain.EventMessageDelta {
				text = ev.Text
			}
			if !yield(text) {
				return
			}
		}
	}
}

// Collect drains stream through TextDeltas, forwarding each increment to
// onDelta, and returns the concatenated reply plus the last usage seen.
func Collect(stream EventStream, onDelta func(string)) (string, *domain.Usage, error) {
	defer stream.Close()
	var (
		b     strings.Builder
		usage *domain.Usage
	)
	for text := range TextDeltas(usageTap{stream, &usage}) {
		b.WriteString(text)
		if onDelta != nil {
			onDelta(text)
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), usage, err
	}
	return b.String(), usage, nil
}

// usageTap records the usage of completed runs while the stream is consumed.
type usageTap struct {
	EventStream
	usage **domain.Usage
}

func (u usageTap) Event() domain.StreamEvent {
	ev := u.EventStream.Event()
	if ev.Usage != nil {
		*u.usage = ev.Usage
	}
	return ev
}

type sseMessageDelta struct {
	Delta struct {
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
}

type sseRun struct {
	Status    string        `json:"status"`
	Usage     *domain.Usage `json:"usage"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type sseError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// sseStream decodes the server-sent events of an assistants run.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	current domain.StreamEvent
	err     error
	done    bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

func (s *sseStream) Next() bool {
	if s.done {
		return false
	}
	var (
		event string
		data  strings.Builder
	)
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if event == "" && data.Len() == 0 {
				continue
			}
			if s.dispatch(event, data.String()) {
				return true
			}
			if s.done {
				return false
			}
			event = ""
			data.Reset()
			continue
		}
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("%w: read stream: %v", domain.ErrUnavailable, err)
	} else if event != "" || data.Len() > 0 {
		// unterminated last frame
		if s.dispatch(event, data.String()) {
			s.done = true
			return true
		}
	}
	s.done = true
	return false
}

// dispatch turns one frame into the current event. It returns false for
// frames that produce no event (keep-alives, [DONE]).
func (s *sseStream) dispatch(event, data string) bool {
	if data == "[DONE]" || event == domain.EventDone {
		s.done = true
		return false
	}
	ev := domain.StreamEvent{Kind: event}
	switch event {
	case domain.EventMessageDelta:
		var d sseMessageDelta
		if err := json.Unmarshal([]byte(data), &d); err == nil && len(d.Delta.Content) > 0 {
			ev.Text = d.Delta.Content[0].Text.Value
		}
	case domain.EventRunCompleted:
		var r sseRun
		if err := json.Unmarshal([]byte(data), &r); err == nil {
			ev.Usage = r.Usage
		}
	case domain.EventRunFailed:
		var r sseRun
		detail := "run failed"
		if err := json.Unmarshal([]byte(data), &r); err == nil && r.LastError != nil {
			detail = r.LastError.Code + ": " + r.LastError.Message
		}
		s.err = fmt.Errorf("%w: %s", domain.ErrUnavailable, detail)
		s.done = true
	case domain.EventError:
		var e sseError
		detail := data
		if err := json.Unmarshal([]byte(data), &e); err == nil {
			if e.Error != nil && e.Error.Message != "" {
				detail = e.Error.Message
			} else if e.Message != "" {
				detail = e.Message
			}
		}
		s.err = fmt.Errorf("%w: %s", domain.ErrUnavailable, detail)
		s.done = true
	}
	s.current = ev
	return true
}

func (s *sseStream) Event() domain.StreamEvent { return s.current }

func (s *sseStream) Err() error { return s.err }

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}

// staticStream presents an already complete reply as a one-delta stream so
// synchronous replies flow through the same collector.
type staticStream struct {
	events []domain.StreamEvent
	pos    int
}

func newStaticStream(text string, usage *domain.Usage) *staticStream {
	return &staticStream{events: []domain.StreamEvent{
		{Kind: domain.EventMessageDelta, Text: text},
		{Kind: domain.EventRunCompleted, Usage: usage},
	}}
}

func (s *staticStream) Next() bool {
	if s.pos >= len(s.events) {
		return false
	}
	s.pos++
	return true
}

func (s *staticStream) Event() domain.StreamEvent { return s.events[s.pos-1] }

func (s *staticStream) Err() error { return nil }

func (s *staticStream) Close() error {
	s.pos = len(s.events)
	return nil
}
