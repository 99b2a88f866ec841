package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const defaultBaseUrl = "https://api.groq.com/openai/v1"
const defaultModel = "llama-3.1-70b-versatile"
const defaultTemperature = 0.35
const defaultMaxTokens = 650
const providerTimeout = 60 * time.Second
const maxResponseBody = 10 << 20

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

type ChatRequest struct {
	Messages    []Message
	Tools       []ToolSchema
	Temperature float64
	MaxTokens   int
}

type ChatResponse struct {
	Message      Message
	FinishReason string
}

// ChatProvider is the model boundary the agent loop talks to.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Provider calls any OpenAI compatible chat completions api; the
// defaults target Groq, which is what the dashboard ships with.
type Provider struct {
	BaseUrl string
	ApiKey  string
	Model   string

	client *http.Client
	logger *log.Logger
}

func NewProvider(baseUrl, apiKey, model string, logger *log.Logger) *Provider {
	if len(baseUrl) == 0 {
		baseUrl = defaultBaseUrl
	}
	if len(model) == 0 {
		model = defaultModel
	}
	return &Provider{
		BaseUrl: strings.TrimRight(baseUrl, "/"),
		ApiKey:  apiKey,
		Model:   model,
		client:  &http.Client{Timeout: providerTimeout},
		logger:  logger.With("model", model),
	}
}

func (pr *Provider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(pr.toWireRequest(req))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pr.BaseUrl+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if len(pr.ApiKey) > 0 {
		httpReq.Header.Set("Authorization", "Bearer "+pr.ApiKey)
	}

	httpResp, err := pr.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "chat request failed")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed reading chat response")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("chat completions returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	wireResp := wireResponse{}
	err = json.Unmarshal(respBody, &wireResp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat response")
	}
	if len(wireResp.Choices) == 0 {
		return nil, errors.New("chat completions returned no choices")
	}

	choice := wireResp.Choices[0]
	response := &ChatResponse{
		Message: Message{
			Role:    choice.Message.Role,
			Content: choice.Message.Content,
		},
		FinishReason: choice.FinishReason,
	}
	for _, call := range choice.Message.ToolCalls {
		response.Message.ToolCalls = append(response.Message.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	pr.logger.Debug("chat completed",
		"finish_reason", choice.FinishReason,
		"tool_calls", len(response.Message.ToolCalls),
		"total_tokens", wireResp.Usage.TotalTokens)

	return response, nil
}

// --- chat completions wire types ---

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type wireToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type wireToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function wireToolCallFunction `json:"function"`
}

type wireToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (pr *Provider) toWireRequest(req ChatRequest) wireRequest {
	wireReq := wireRequest{
		Model:     pr.Model,
		MaxTokens: req.MaxTokens,
	}
	if wireReq.MaxTokens == 0 {
		wireReq.MaxTokens = defaultMaxTokens
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	wireReq.Temperature = &temperature

	for _, msg := range req.Messages {
		wireMsg := wireMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, wireToolCall{
				ID:   call.ID,
				Type: "function",
				Function: wireToolCallFunction{
					Name:      call.Name,
					Arguments: string(call.Arguments),
				},
			})
		}
		wireReq.Messages = append(wireReq.Messages, wireMsg)
	}

	for _, tool := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, wireTool{
			Type: "function",
			Function: wireToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return wireReq
}
