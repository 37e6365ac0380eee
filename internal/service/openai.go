package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

const (
	maxErrorBodyBytes   = 4096
	maxErrorDetailRunes = 200
)

type OpenAIService struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

func NewOpenAIService(baseURL, apiKey string) *OpenAIService {
	return &OpenAIService{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: config.RequestTimeout},
		streamClient: &http.Client{},
	}
}

// WithAPIKey returns a client sharing connections but authenticating with key.
func (s *OpenAIService) WithAPIKey(key string) *OpenAIService {
	cp := *s
	cp.apiKey = key
	return &cp
}

// ThreadMessage is a message appended to an assistants thread.
type ThreadMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// ResponseInput is one input item of a Responses API request.
type ResponseInput struct {
	Role    string
	Text    string
	FileIDs []string
}

type ResponseRequest struct {
	PromptID       string
	Input          []ResponseInput
	VectorStoreIDs []string
}

// ResponseResult is the normalized synchronous reply.
type ResponseResult struct {
	ID    string
	Text  string
	Usage *domain.Usage
}

func (s *OpenAIService) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, "/threads", struct{}{}, true, &out); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return out.ID, nil
}

func (s *OpenAIService) CreateMessage(ctx context.Context, threadID string, msg ThreadMessage) error {
	var out struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, "/threads/"+threadID+"/messages", msg, true, &out); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// StreamRun starts a run of assistantID on the thread and returns its event stream.
// The request carries no timeout; ctx cancellation is the only way to stop it.
func (s *OpenAIService) StreamRun(ctx context.Context, threadID, assistantID string) (EventStream, error) {
	payload, err := json.Marshal(map[string]any{
		"assistant_id": assistantID,
		"stream":       true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/threads/"+threadID+"/runs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, true)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start run: %w: %v", domain.ErrUnavailable, err)
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("start run: %w", err)
	}
	return newSSEStream(resp.Body), nil
}

func (s *OpenAIService) CreateFile(ctx context.Context, name string, data []byte, purpose string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("purpose", purpose); err != nil {
		return "", fmt.Errorf("write purpose: %w", err)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, false)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := s.do(req, &out); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return out.ID, nil
}

func (s *OpenAIService) CreateResponse(ctx context.Context, r ResponseRequest) (*ResponseResult, error) {
	type contentPart struct {
		Type   string `json:"type"`
		Text   string `json:"text,omitempty"`
		FileID string `json:"file_id,omitempty"`
	}
	type inputItem struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}

	input := make([]inputItem, 0, len(r.Input))
	for _, in := range r.Input {
		textType := "input_text"
		if in.Role == string(domain.RoleAssistant) {
			textType = "output_text"
		}
		parts := []contentPart{{Type: textType, Text: in.Text}}
		for _, id := range in.FileIDs {
			parts = append(parts, contentPart{Type: "input_file", FileID: id})
		}
		input = append(input, inputItem{Role: in.Role, Content: parts})
	}

	payload := map[string]any{
		"prompt": map[string]string{"id": r.PromptID},
		"input":  input,
	}
	if len(r.VectorStoreIDs) > 0 {
		payload["tools"] = []map[string]any{{
			"type":             retrievalTool,
			"vector_store_ids": r.VectorStoreIDs,
		}}
	}

	var out struct {
		ID     string `json:"id"`
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := s.postJSON(ctx, "/responses", payload, false, &out); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}

	var b strings.Builder
	for _, item := range out.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("create response: %w", domain.ErrEmptyReply)
	}

	result := &ResponseResult{ID: out.ID, Text: b.String()}
	if out.Usage != nil {
		result.Usage = &domain.Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.TotalTokens,
		}
	}
	return result, nil
}

func (s *OpenAIService) postJSON(ctx context.Context, path string, body any, assistants bool, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, assistants)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *OpenAIService) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (s *OpenAIService) setHeaders(req *http.Request, assistants bool) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if assistants {
		req.Header.Set("OpenAI-Beta", "assistants=v2")
	}
}

// checkResponse maps a non-2xx status to a domain error carrying the
// server's explanation.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail := errorDetail(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrResourceNotFound, detail)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s (%d)", domain.ErrUnavailable, detail, resp.StatusCode)
	default:
		return fmt.Errorf("openai error %d: %s", resp.StatusCode, detail)
	}
}

// errorDetail extracts a short explanation from an error body. The API
// answers with JSON; its edge proxies sometimes answer with an HTML page.
func errorDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return title
			}
			if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
				return h1
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		if r := []rune(text); len(r) > maxErrorDetailRunes {
			text = string(r[:maxErrorDetailRunes]) + "..."
		}
		return text
	}
	return resp.Status
}
