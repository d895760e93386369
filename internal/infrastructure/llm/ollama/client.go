package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkessler/zettelwerk/internal/infrastructure/resilience"
)

// Client talks to a local Ollama instance over its chat API. All requests
// ask for JSON-formatted output at a low temperature; the analyzer does
// its own response parsing on top.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Generate sends one prompt and returns the raw model reply. Transient
// connectivity failures are retried through the shared executor; an empty
// reply after a successful call is reported as an error so callers can
// fall back.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	request := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
		Options: map[string]any{
			"temperature": 0.1,
		},
	}

	var response chatResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/chat", request, &response, "chat")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama_chat", call, classifyChatError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", markTemporary("ollama chat", err)
	}

	reply := strings.TrimSpace(response.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("ollama chat: empty response from model %s", c.model)
	}
	return reply, nil
}
