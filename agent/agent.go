package agent

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const maxIterations = 12

const systemPromptTemplate = `You are a helpful pin controller assistant for a microcontroller board.
Available pins: %s

Rules:
- Use the get_all_pin_status tool when the user asks about current state or status.
- Use the set_pin tool only when the user clearly wants to change a pin state (on/off).
- Be concise and polite.
- If a command is ambiguous, ask for clarification instead of guessing.`

// Agent turns free text into pin commands by letting the model call
// the registered tools, and returns the final assistant reply.
type Agent struct {
	provider ChatProvider
	tools    []Tool
	logger   *log.Logger
}

func New(provider ChatProvider, controller PinController, logger *log.Logger) *Agent {
	return &Agent{
		provider: provider,
		tools: []Tool{
			&SetPinTool{Controller: controller},
			&PinStatusTool{Controller: controller},
		},
		logger: logger,
	}
}

func (ag *Agent) findTool(name string) Tool {
	for _, tool := range ag.tools {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}

func (ag *Agent) schemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(ag.tools))
	for _, tool := range ag.tools {
		schemas = append(schemas, tool.Schema())
	}
	return schemas
}

// Run executes the tool call loop for a single user message. The
// loop is bounded: a model that keeps calling tools without ever
// producing an answer is cut off after maxIterations rounds.
func (ag *Agent) Run(ctx context.Context, userMessage string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, availablePins())},
		{Role: RoleUser, Content: userMessage},
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		response, err := ag.provider.Chat(ctx, ChatRequest{
			Messages: messages,
			Tools:    ag.schemas(),
		})
		if err != nil {
			return "", errors.Wrap(err, "chat provider failed")
		}

		if len(response.Message.ToolCalls) == 0 {
			return response.Message.Content, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   response.Message.Content,
			ToolCalls: response.Message.ToolCalls,
		})

		for _, call := range response.Message.ToolCalls {
			messages = append(messages, ag.executeCall(ctx, call))
		}
	}

	return "", errors.Errorf("agent gave up after %d tool call rounds", maxIterations)
}

func (ag *Agent) executeCall(ctx context.Context, call ToolCall) Message {
	tool := ag.findTool(call.Name)
	if tool == nil {
		ag.logger.Warn("model requested unknown tool", "tool", call.Name)
		return Message{
			Role:       RoleTool,
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("unknown tool: %s", call.Name),
		}
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		ag.logger.Warn("tool execution failed", "tool", call.Name, "err", err)
		return Message{
			Role:       RoleTool,
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("tool %s failed: %v", call.Name, err),
		}
	}

	ag.logger.Debug("tool executed", "tool", call.Name, "is_error", result.IsError)
	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		Content:    result.Content,
	}
}
